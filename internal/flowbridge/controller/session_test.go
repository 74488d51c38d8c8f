package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tansive/flowbridge/internal/common/uuid"
	"github.com/tansive/flowbridge/internal/flowbridge/bridge"
	"github.com/tansive/flowbridge/pkg/types"
	"github.com/tidwall/gjson"
)

type recorder struct {
	mu          sync.Mutex
	transitions []State
	results     []types.Result
}

func (r *recorder) OnTransition(_ uuid.UUID, _, to State, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, to)
}

func (r *recorder) OnResult(_ uuid.UUID, res types.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recorder) snapshot() ([]State, []types.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.transitions...), append([]types.Result(nil), r.results...)
}

// fakeSurface records the directive it receives and then posts msgs.
type fakeSurface struct {
	msgs      []string
	holdOpen  bool
	directive chan []byte
}

func newFakeSurface(holdOpen bool, msgs ...string) *fakeSurface {
	return &fakeSurface{msgs: msgs, holdOpen: holdOpen, directive: make(chan []byte, 1)}
}

func (f *fakeSurface) Run(ctx context.Context, directives <-chan []byte, post func([]byte)) error {
	select {
	case d := <-directives:
		f.directive <- d
	case <-ctx.Done():
		return ctx.Err()
	}
	for _, m := range f.msgs {
		post([]byte(m))
	}
	if f.holdOpen {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func validConfig() types.Configuration {
	return types.NewConfiguration(types.EnvironmentSandbox, "acme", types.WithAccessToken("token"))
}

func runSession(t *testing.T, cfg types.Configuration, opts Options) (*Session, types.Result) {
	t.Helper()
	opts.Logger = zerolog.Nop()
	s := New(cfg, opts)
	s.Start(t.Context())
	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	r, err := s.Wait(ctx)
	require.NoError(t, err)
	return s, r
}

func TestSessionSuccess(t *testing.T) {
	surface := newFakeSurface(true, `{"event":"ready","protocolVersion":"1.0.0"}`, `{"event":"result:success"}`)
	rec := &recorder{}
	s, r := runSession(t, validConfig(), Options{Surface: surface, Observers: []Observer{rec}})

	assert.Equal(t, types.ResultSuccess, r.Kind())
	assert.Equal(t, StateTerminal, s.State())

	transitions, results := rec.snapshot()
	assert.Equal(t, []State{StateValidating, StateLoading, StateActive, StateTerminal}, transitions)
	assert.Len(t, results, 1)

	d := <-surface.directive
	assert.Equal(t, s.ID().String(), gjson.GetBytes(d, "sessionId").String())
	assert.Equal(t, "token", gjson.GetBytes(d, "auth.accessToken").String())

	<-s.br.Load().Done()
	assert.Equal(t, 1, s.Teardowns())
}

func TestSessionInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     types.Configuration
		resumed bool
		message string
	}{
		{name: "unsupported environment", cfg: types.NewConfiguration("staging", "acme", types.WithAccessToken("t")),
			message: "Environment is not supported"},
		{name: "missing issuer", cfg: types.NewConfiguration(types.EnvironmentSandbox, "", types.WithAccessToken("t")),
			message: "appIssuer is required"},
		{name: "missing token", cfg: types.NewConfiguration(types.EnvironmentProduction, "acme"),
			message: "accessToken is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			surface := newFakeSurface(true)
			s, r := runSession(t, tt.cfg, Options{Surface: surface, Resumed: tt.resumed})

			e, ok := r.Err()
			require.True(t, ok)
			assert.Equal(t, types.CodeInvalidConfig, e.Code)
			assert.Equal(t, tt.message, e.Message)
			assert.Zero(t, s.Teardowns())
			assert.Empty(t, surface.directive)
		})
	}
}

func TestSessionResumedWithoutToken(t *testing.T) {
	surface := newFakeSurface(true, `{"event":"ready"}`, `{"event":"result:closed"}`)
	_, r := runSession(t, types.NewConfiguration(types.EnvironmentSandbox, "acme"), Options{Surface: surface, Resumed: true})

	assert.Equal(t, types.ResultClosed, r.Kind())
	d := <-surface.directive
	assert.True(t, gjson.GetBytes(d, "auth.resumed").Bool())
	assert.False(t, gjson.GetBytes(d, "auth.accessToken").Exists())
}

func TestSessionLoadTimeout(t *testing.T) {
	surface := newFakeSurface(true)
	s, r := runSession(t, validConfig(), Options{Surface: surface, LoadTimeout: 20 * time.Millisecond})

	e, ok := r.Err()
	require.True(t, ok)
	assert.Equal(t, types.CodeTimeout, e.Code)
	<-s.br.Load().Done()
	assert.Equal(t, 1, s.Teardowns())
}

func TestSessionNoTimeoutAfterReady(t *testing.T) {
	surface := delayedSurface(`{"event":"ready"}`, 60*time.Millisecond, `{"event":"result:success"}`)
	_, r := runSession(t, validConfig(), Options{Surface: surface, LoadTimeout: 20 * time.Millisecond})
	assert.Equal(t, types.ResultSuccess, r.Kind())
}

func TestSessionFailureClassification(t *testing.T) {
	tests := []struct {
		name    string
		msgs    []string
		code    types.ErrorCode
		subCode string
	}{
		{name: "camera", msgs: []string{`{"event":"ready"}`, `{"event":"result:failure","error":{"kind":"camera_permission"}}`},
			code: types.CodeCameraPermission},
		{name: "network", msgs: []string{`{"event":"result:failure","error":{"kind":"network","reason":"host_not_found"}}`},
			code: types.CodeNetwork, subCode: types.SubCodeHostNotFound},
		{name: "unauthorized", msgs: []string{`{"event":"result:failure","error":{"kind":"unauthorized"}}`},
			code: types.CodeBridge, subCode: types.SubCodeUnauthorized},
		{name: "garbage before ready", msgs: []string{`not json`}, code: types.CodeInitialization},
		{name: "garbage after ready", msgs: []string{`{"event":"ready"}`, `{"event":"bogus"}`}, code: types.CodeBridge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, r := runSession(t, validConfig(), Options{Surface: newFakeSurface(true, tt.msgs...)})
			e, ok := r.Err()
			require.True(t, ok)
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, tt.subCode, e.SubCode.String())
		})
	}
}

func TestSessionSurfaceEndsWithoutResult(t *testing.T) {
	_, r := runSession(t, validConfig(), Options{Surface: newFakeSurface(false, `{"event":"ready"}`)})
	e, ok := r.Err()
	require.True(t, ok)
	assert.Equal(t, types.CodeBridge, e.Code)
}

func TestSessionCancel(t *testing.T) {
	for _, ready := range []bool{false, true} {
		var msgs []string
		if ready {
			msgs = []string{`{"event":"ready"}`}
		}
		surface := newFakeSurface(true, msgs...)
		rec := &recorder{}
		s := New(validConfig(), Options{Surface: surface, Logger: zerolog.Nop(), Observers: []Observer{rec}})
		s.Start(t.Context())

		<-surface.directive
		if ready {
			require.Eventually(t, func() bool { return s.State() == StateActive }, time.Second, 5*time.Millisecond)
		}
		s.Cancel()
		s.Cancel()

		r, err := s.Wait(t.Context())
		require.NoError(t, err)
		assert.Equal(t, types.ResultClosed, r.Kind())
		_, isFailure := r.Err()
		assert.False(t, isFailure)

		<-s.br.Load().Done()
		assert.Equal(t, 1, s.Teardowns())
		_, results := rec.snapshot()
		assert.Len(t, results, 1)
	}
}

func TestSessionCancelBeforeStart(t *testing.T) {
	tests := []struct {
		name   string
		cancel func(s *Session, cancelCtx context.CancelFunc)
	}{
		{"cancel", func(s *Session, _ context.CancelFunc) { s.Cancel() }},
		{"context", func(_ *Session, cancelCtx context.CancelFunc) { cancelCtx() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			surface := newFakeSurface(true, `{"event":"ready"}`)
			rec := &recorder{}
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()
			s := New(validConfig(), Options{Surface: surface, Logger: zerolog.Nop(), Observers: []Observer{rec}})
			tt.cancel(s, cancel)
			s.Start(ctx)

			r, err := s.Wait(t.Context())
			require.NoError(t, err)
			assert.Equal(t, types.ResultClosed, r.Kind())
			assert.Nil(t, s.br.Load())
			assert.Equal(t, 0, s.Teardowns())
			assert.Empty(t, surface.directive)

			transitions, results := rec.snapshot()
			assert.Equal(t, []State{StateTerminal}, transitions)
			assert.Len(t, results, 1)
		})
	}
}

func TestSessionContextCancel(t *testing.T) {
	surface := newFakeSurface(true)
	ctx, cancel := context.WithCancel(t.Context())
	s := New(validConfig(), Options{Surface: surface, Logger: zerolog.Nop()})
	s.Start(ctx)
	<-surface.directive
	cancel()

	r, err := s.Wait(t.Context())
	require.NoError(t, err)
	assert.Equal(t, types.ResultClosed, r.Kind())
}

func TestSessionEventsAfterTerminal(t *testing.T) {
	surface := newFakeSurface(true,
		`{"event":"ready"}`,
		`{"event":"result:success"}`,
		`{"event":"result:failure","error":{"kind":"timeout"}}`,
		`{"event":"result:closed"}`,
	)
	rec := &recorder{}
	s, r := runSession(t, validConfig(), Options{Surface: surface, Observers: []Observer{rec}})
	assert.Equal(t, types.ResultSuccess, r.Kind())

	s.Cancel()
	time.Sleep(20 * time.Millisecond)
	again, ok := s.Result()
	require.True(t, ok)
	assert.Equal(t, types.ResultSuccess, again.Kind())
	_, results := rec.snapshot()
	assert.Len(t, results, 1)
}

func TestSessionResultBeforeDone(t *testing.T) {
	s := New(validConfig(), Options{Surface: newFakeSurface(true), Logger: zerolog.Nop()})
	_, ok := s.Result()
	assert.False(t, ok)
	assert.Equal(t, StateIdle, s.State())
}

// delayedSurface posts first, waits delay and then posts second.
func delayedSurface(first string, delay time.Duration, second string) bridge.Surface {
	return bridge.SurfaceFunc(func(ctx context.Context, directives <-chan []byte, post func([]byte)) error {
		<-directives
		post([]byte(first))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		post([]byte(second))
		<-ctx.Done()
		return ctx.Err()
	})
}
