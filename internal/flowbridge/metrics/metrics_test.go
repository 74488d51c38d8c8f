package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tansive/flowbridge/internal/common/uuid"
	"github.com/tansive/flowbridge/internal/flowbridge/controller"
	"github.com/tansive/flowbridge/pkg/types"
)

func loadSamples(t *testing.T, m *Metrics) uint64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "flowbridge_load_seconds" {
			return f.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	t.Fatal("load histogram not registered")
	return 0
}

func TestSessionLifecycle(t *testing.T) {
	m := New()
	id := uuid.New()
	start := time.Now()

	m.OnTransition(id, controller.StateIdle, controller.StateValidating, start)
	m.OnTransition(id, controller.StateValidating, controller.StateLoading, start)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.active))

	m.OnTransition(id, controller.StateLoading, controller.StateActive, start.Add(300*time.Millisecond))
	m.OnTransition(id, controller.StateActive, controller.StateTerminal, start.Add(time.Second))
	m.OnResult(id, types.Success())

	assert.Equal(t, 0.0, testutil.ToFloat64(m.active))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessions.WithLabelValues("success", "")))
	assert.Equal(t, uint64(1), loadSamples(t, m))
	assert.Empty(t, m.loading)
}

func TestFailuresByCode(t *testing.T) {
	m := New()
	for i := 0; i < 2; i++ {
		id := uuid.New()
		m.OnTransition(id, controller.StateIdle, controller.StateValidating, time.Now())
		m.OnTransition(id, controller.StateValidating, controller.StateTerminal, time.Now())
		m.OnResult(id, types.Failure(types.NewError(types.CodeInvalidConfig, "", "appIssuer is required")))
	}
	m.OnResult(uuid.New(), types.Closed())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessions.WithLabelValues("failure", "1002")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessions.WithLabelValues("closed", "")))
	assert.Equal(t, uint64(0), loadSamples(t, m))
}

func TestHandler(t *testing.T) {
	m := New()
	m.OnResult(uuid.New(), types.Success())

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, `flowbridge_sessions_total{code="",result="success"} 1`), body)
}
