package api

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tansive/flowbridge/internal/flowbridge/controller"
	"github.com/tansive/flowbridge/pkg/types"
	"github.com/tidwall/gjson"
)

func postingSurface(msgs ...string) Surface {
	return SurfaceFunc(func(ctx context.Context, directives <-chan []byte, post func([]byte)) error {
		select {
		case <-directives:
		case <-ctx.Done():
			return ctx.Err()
		}
		for _, m := range msgs {
			post([]byte(m))
		}
		<-ctx.Done()
		return ctx.Err()
	})
}

type counters struct {
	success, failure, closed atomic.Int32
	lastErr                  atomic.Value
}

func (c *counters) attach(h *Handle) *Handle {
	return h.
		OnSuccess(func() { c.success.Add(1) }).
		OnFailure(func(e types.Error) {
			c.lastErr.Store(e)
			c.failure.Add(1)
		}).
		OnClosed(func() { c.closed.Add(1) })
}

func wait(t *testing.T, h *Handle) types.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	r, err := h.Wait(ctx)
	require.NoError(t, err)
	return r
}

// handlers run on their own goroutine after Done closes
func settle(t *testing.T, c *counters) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.success.Load()+c.failure.Load()+c.closed.Load() > 0
	}, time.Second, 5*time.Millisecond)
	time.Sleep(10 * time.Millisecond)
}

func sandboxConfig(opts ...types.ConfigOption) types.Configuration {
	opts = append([]types.ConfigOption{types.WithAccessToken("t")}, opts...)
	return types.NewConfiguration(types.EnvironmentSandbox, "x", opts...)
}

func TestEmbedSuccess(t *testing.T) {
	var mu sync.Mutex
	var indicator []bool
	c := &counters{}
	h := c.attach(Embed(t.Context(), sandboxConfig(),
		postingSurface(`{"event":"ready"}`, `{"event":"result:success"}`),
		WithLoadingIndicator(func(loading bool) {
			mu.Lock()
			defer mu.Unlock()
			indicator = append(indicator, loading)
		}),
	))

	r := wait(t, h)
	assert.Equal(t, types.ResultSuccess, r.Kind())
	settle(t, c)
	assert.Equal(t, int32(1), c.success.Load())
	assert.Zero(t, c.failure.Load())
	assert.Zero(t, c.closed.Load())

	mu.Lock()
	assert.Equal(t, []bool{true, false}, indicator)
	mu.Unlock()

	var states []State
	var final *types.Result
	for ev := range h.Lifecycle() {
		states = append(states, ev.To)
		assert.Equal(t, h.ID(), ev.SessionID)
		final = ev.Result
	}
	assert.Equal(t, []State{controller.StateValidating, controller.StateLoading, controller.StateActive, controller.StateTerminal}, states)
	require.NotNil(t, final)
	assert.Equal(t, types.ResultSuccess, final.Kind())
}

func TestEmbedInvalidConfig(t *testing.T) {
	var indicatorCalls atomic.Int32
	sent := make(chan struct{}, 1)
	surface := SurfaceFunc(func(ctx context.Context, directives <-chan []byte, post func([]byte)) error {
		sent <- struct{}{}
		return nil
	})

	c := &counters{}
	h := c.attach(Embed(t.Context(), types.NewConfiguration(types.EnvironmentSandbox, ""), surface,
		WithLoadingIndicator(func(bool) { indicatorCalls.Add(1) })))

	r := wait(t, h)
	e, ok := r.Err()
	require.True(t, ok)
	assert.Equal(t, types.CodeInvalidConfig, e.Code)
	settle(t, c)
	assert.Equal(t, int32(1), c.failure.Load())
	assert.Equal(t, "appIssuer is required", c.lastErr.Load().(types.Error).Message)
	assert.Zero(t, indicatorCalls.Load())
	assert.Empty(t, sent)
}

func TestEmbedFreshSessionRequiresToken(t *testing.T) {
	h := Embed(t.Context(), types.NewConfiguration(types.EnvironmentSandbox, "x"), postingSurface())
	e, ok := wait(t, h).Err()
	require.True(t, ok)
	assert.Equal(t, "[1002] accessToken is required", e.Detail())

	h = Embed(t.Context(), types.NewConfiguration(types.EnvironmentSandbox, "x"),
		postingSurface(`{"event":"result:closed"}`), WithResumedSession())
	assert.Equal(t, types.ResultClosed, wait(t, h).Kind())
}

func TestEmbedCancel(t *testing.T) {
	c := &counters{}
	h := c.attach(Embed(t.Context(), sandboxConfig(), postingSurface(`{"event":"ready"}`)))
	require.Eventually(t, func() bool { return h.session.State() == controller.StateActive }, time.Second, 5*time.Millisecond)

	h.Cancel()
	h.Cancel()
	assert.Equal(t, types.ResultClosed, wait(t, h).Kind())
	settle(t, c)
	assert.Equal(t, int32(1), c.closed.Load())
	assert.Zero(t, c.failure.Load())
	assert.Equal(t, 1, h.session.Teardowns())
}

func TestEmbedTimeout(t *testing.T) {
	c := &counters{}
	h := c.attach(Embed(t.Context(), sandboxConfig(), postingSurface(), WithLoadTimeout(20*time.Millisecond)))
	e, ok := wait(t, h).Err()
	require.True(t, ok)
	assert.Equal(t, types.CodeTimeout, e.Code)
	settle(t, c)
	assert.Equal(t, int32(1), c.failure.Load())
}

func TestHandlersRegisteredAfterResult(t *testing.T) {
	h := Embed(t.Context(), sandboxConfig(), postingSurface(`{"event":"result:failure","error":{"kind":"camera_permission"}}`))
	wait(t, h)
	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.resolved
	}, time.Second, 5*time.Millisecond)

	c := &counters{}
	c.attach(h)
	assert.Equal(t, int32(1), c.failure.Load())
	assert.Zero(t, c.success.Load())
	assert.Equal(t, types.CodeCameraPermission, c.lastErr.Load().(types.Error).Code)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) lines() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Split(bytes.TrimSpace(s.buf.Bytes()), []byte("\n"))
}

func TestEmbedLogging(t *testing.T) {
	out := &syncBuffer{}
	cfg := sandboxConfig(types.WithLogSetting(true, types.LogLevelInfo))
	h := Embed(t.Context(), cfg, postingSurface(`{"event":"result:closed"}`), WithLogWriter(out))
	wait(t, h)

	lines := out.lines()
	require.NotEmpty(t, lines)
	for _, l := range lines {
		assert.Equal(t, "FlowBridge", gjson.GetBytes(l, "tag").String())
		assert.NotEqual(t, "debug", gjson.GetBytes(l, "level").String())
	}
	assert.Equal(t, "session closed", gjson.GetBytes(lines[len(lines)-1], "message").String())
}

func TestEmbedLoggingSuppressedInProduction(t *testing.T) {
	out := &syncBuffer{}
	cfg := types.NewConfiguration(types.EnvironmentProduction, "x",
		types.WithAccessToken("t"), types.WithLogSetting(true, types.LogLevelDebug))
	h := Embed(t.Context(), cfg, postingSurface(`{"event":"result:success"}`), WithLogWriter(out))
	wait(t, h)
	time.Sleep(20 * time.Millisecond)

	out.mu.Lock()
	defer out.mu.Unlock()
	assert.Zero(t, out.buf.Len())
}
