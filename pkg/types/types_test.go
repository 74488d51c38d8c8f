package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorDetail(t *testing.T) {
	tests := []struct {
		name string
		err  Error
		want string
	}{
		{
			name: "with subcode",
			err:  NewError(CodeNetwork, SubCodeNoConnection, "No internet connection"),
			want: "[1003-01] No internet connection",
		},
		{
			name: "without subcode",
			err:  NewError(CodeInitialization, "", "Init failed"),
			want: "[1001] Init failed",
		},
		{
			name: "bridge unauthorized",
			err:  NewError(CodeBridge, SubCodeUnauthorized, "token expired"),
			want: "[1004-401] token expired",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Detail())
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorWireShape(t *testing.T) {
	b, err := json.Marshal(NewError(CodeTimeout, "", "flow did not load"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"1005","subCode":null,"message":"flow did not load"}`, string(b))

	var decoded Error
	require.NoError(t, json.Unmarshal([]byte(`{"code":"1003","subCode":"04","message":"refused"}`), &decoded))
	assert.Equal(t, CodeNetwork, decoded.Code)
	assert.Equal(t, "04", decoded.SubCode.String())
	assert.Equal(t, "[1003-04] refused", decoded.Detail())
}

func TestErrorCodeNames(t *testing.T) {
	assert.Equal(t, "CAMERA_PERMISSION", CodeCameraPermission.Name())
	assert.True(t, CodeInvalidConfig.IsKnown())
	assert.False(t, ErrorCode("9999").IsKnown())
}

func TestResultMatch(t *testing.T) {
	var got []string
	record := func(r Result) {
		r.Match(
			func() { got = append(got, "success") },
			func(e Error) { got = append(got, "failure:"+string(e.Code)) },
			func() { got = append(got, "closed") },
		)
	}
	record(Success())
	record(Failure(NewError(CodeTimeout, "", "t")))
	record(Closed())
	record(Result{})
	assert.Equal(t, []string{"success", "failure:1005", "closed"}, got)

	assert.False(t, Result{}.IsValid())
	_, ok := Success().Err()
	assert.False(t, ok)
	e, ok := Failure(NewError(CodeCameraPermission, "", "denied")).Err()
	assert.True(t, ok)
	assert.Equal(t, CodeCameraPermission, e.Code)
}

func TestResultJSON(t *testing.T) {
	b, err := json.Marshal(Closed())
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":"closed"}`, string(b))

	b, err = json.Marshal(Failure(NewError(CodeBridge, SubCodeUnauthorized, "bad token")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":"failure","error":{"code":"1004","subCode":"401","message":"bad token"}}`, string(b))
}

func TestNewConfigurationDefaults(t *testing.T) {
	c := NewConfiguration(EnvironmentSandbox, "issuer")
	assert.Equal(t, ThemeSystem, c.Theme)
	assert.Equal(t, "en", c.Language)
	assert.True(t, c.Embedded)
	assert.False(t, c.LogSetting.Enabled)
	assert.True(t, c.Flow.IsNil())

	params := map[string]any{"amount": 10}
	c = NewConfiguration(EnvironmentProduction, "issuer",
		WithAccessToken("tok"),
		WithTheme(ThemeDark),
		WithFlow("payouts"),
		WithFlowParams(params),
		WithStandalone(),
		WithLogSetting(true, LogLevelDebug),
	)
	params["amount"] = 20
	assert.Equal(t, 10, c.FlowParams["amount"])
	assert.Equal(t, "payouts", c.Flow.String())
	assert.False(t, c.Embedded)
	assert.Equal(t, LogSetting{Enabled: true, Level: LogLevelDebug}, c.LogSetting)
}

func TestLogLevelVerbosity(t *testing.T) {
	assert.Less(t, LogLevelError.Verbosity(), LogLevelInfo.Verbosity())
	assert.Less(t, LogLevelInfo.Verbosity(), LogLevelDebug.Verbosity())
	assert.Equal(t, LogLevelError.Verbosity(), LogLevel("TRACE").Verbosity())
}
