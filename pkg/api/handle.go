// Package api is the host-facing entry point. Embed validates a configuration, drives the
// embedded surface through one session and delivers exactly one Result to the handlers
// registered on the returned Handle:
//
//	h := api.Embed(ctx, cfg, surface).
//		OnSuccess(func() { ... }).
//		OnFailure(func(err types.Error) { log.Print(err.Detail()) }).
//		OnClosed(func() { ... })
//
// Only the handlers matching the actual result fire, each at most once. Handlers registered
// after the session resolved fire immediately on the registering goroutine.
package api

import (
	"context"
	"sync"
	"time"

	"github.com/tansive/flowbridge/internal/common/logtrace"
	"github.com/tansive/flowbridge/internal/common/uuid"
	"github.com/tansive/flowbridge/internal/flowbridge/controller"
	"github.com/tansive/flowbridge/internal/flowbridge/eventbus"
	"github.com/tansive/flowbridge/internal/flowbridge/eventlogger"
	"github.com/tansive/flowbridge/pkg/types"
)

// lifecycleBuffer holds every lifecycle event a session can produce.
const lifecycleBuffer = 8

// LifecycleEvent reports a state change. Result is set on the final event only.
type LifecycleEvent struct {
	SessionID string
	From      State
	To        State
	Loading   bool
	Result    *types.Result
	At        time.Time
}

// Handle is the host's view of one session.
type Handle struct {
	session   *controller.Session
	bus       *eventbus.EventBus
	lifecycle chan LifecycleEvent

	mu        sync.Mutex
	resolved  bool
	onSuccess []func()
	onFailure []func(types.Error)
	onClosed  []func()
}

// Embed starts a session for cfg on surface. It never blocks and never fails: invalid
// configurations and every later failure arrive as a Failure result. Canceling ctx closes the
// session.
func Embed(ctx context.Context, cfg types.Configuration, surface Surface, opts ...Option) *Handle {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.New()
	bus := eventbus.New()
	h := &Handle{
		bus:       bus,
		lifecycle: make(chan LifecycleEvent, lifecycleBuffer),
	}
	events, unsubscribe := bus.Subscribe(eventbus.SessionTopic(id.String(), eventbus.TopicLifecycle), lifecycleBuffer)
	go h.forwardLifecycle(events, unsubscribe)

	observers := append([]controller.Observer{&publisher{bus: bus, show: o.loadingIndicator}}, o.observers...)
	logger := logtrace.NewGate(cfg.LogSetting, cfg.Environment, eventlogger.NewSessionWriter(bus, id.String(), o.logWriter))

	h.session = controller.New(cfg, controller.Options{
		ID:          id,
		Surface:     surface,
		LoadTimeout: o.loadTimeout,
		Resumed:     o.resumed,
		Logger:      logger,
		Observers:   observers,
	})
	h.session.Start(ctx)
	go h.dispatch()
	return h
}

func (h *Handle) ID() string { return h.session.ID().String() }

// OnSuccess registers fn to run if the session succeeds.
func (h *Handle) OnSuccess(fn func()) *Handle {
	h.register(types.ResultSuccess, func(types.Result) { fn() }, func() { h.onSuccess = append(h.onSuccess, fn) })
	return h
}

// OnFailure registers fn to run with the classified error if the session fails.
func (h *Handle) OnFailure(fn func(err types.Error)) *Handle {
	h.register(types.ResultFailure, func(r types.Result) {
		e, _ := r.Err()
		fn(e)
	}, func() { h.onFailure = append(h.onFailure, fn) })
	return h
}

// OnClosed registers fn to run if the user dismisses the flow or the host cancels it.
func (h *Handle) OnClosed(fn func()) *Handle {
	h.register(types.ResultClosed, func(types.Result) { fn() }, func() { h.onClosed = append(h.onClosed, fn) })
	return h
}

func (h *Handle) register(kind types.ResultKind, now func(types.Result), later func()) {
	h.mu.Lock()
	if !h.resolved {
		later()
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()
	if r, _ := h.session.Result(); r.Kind() == kind {
		now(r)
	}
}

func (h *Handle) dispatch() {
	<-h.session.Done()
	r, _ := h.session.Result()

	h.mu.Lock()
	h.resolved = true
	onSuccess, onFailure, onClosed := h.onSuccess, h.onFailure, h.onClosed
	h.onSuccess, h.onFailure, h.onClosed = nil, nil, nil
	h.mu.Unlock()
	defer h.bus.Shutdown()

	r.Match(
		func() {
			for _, fn := range onSuccess {
				fn()
			}
		},
		func(e types.Error) {
			for _, fn := range onFailure {
				fn(e)
			}
		},
		func() {
			for _, fn := range onClosed {
				fn()
			}
		},
	)
}

// Lifecycle yields every state change of the session and is closed after the terminal event.
// It is buffered for the whole session, so reading it is optional.
func (h *Handle) Lifecycle() <-chan LifecycleEvent {
	return h.lifecycle
}

func (h *Handle) forwardLifecycle(events <-chan eventbus.Event, unsubscribe func()) {
	defer close(h.lifecycle)
	defer unsubscribe()
	for ev := range events {
		le, ok := ev.Data.(LifecycleEvent)
		if !ok {
			continue
		}
		h.lifecycle <- le
		if le.Result != nil {
			return
		}
	}
}

// Logs streams the session's gated log records, one JSON object per element. Records emitted
// before the first call are not replayed. The channel is closed after the result handlers ran.
func (h *Handle) Logs(buffer int) <-chan []byte {
	records, unsubscribe := h.bus.Subscribe(eventbus.SessionTopic(h.ID(), eventbus.TopicLog), buffer)
	out := make(chan []byte, buffer)
	go func() {
		defer close(out)
		defer unsubscribe()
		for ev := range records {
			if b, ok := ev.Data.([]byte); ok {
				out <- b
			}
		}
	}()
	return out
}

// Cancel closes the session on behalf of the host. It is idempotent.
func (h *Handle) Cancel() { h.session.Cancel() }

// Done is closed once the result is available.
func (h *Handle) Done() <-chan struct{} { return h.session.Done() }

// Result returns the session result; ok is false until the session resolved.
func (h *Handle) Result() (types.Result, bool) { return h.session.Result() }

// Wait blocks until the session resolves or ctx ends.
func (h *Handle) Wait(ctx context.Context) (types.Result, error) { return h.session.Wait(ctx) }

// publisher turns session transitions into lifecycle events and drives the loading indicator.
type publisher struct {
	bus      *eventbus.EventBus
	show     func(bool)
	lastFrom State
}

func (p *publisher) OnTransition(id uuid.UUID, from, to State, at time.Time) {
	if p.show != nil {
		switch {
		case to == controller.StateLoading:
			p.show(true)
		case from == controller.StateLoading:
			p.show(false)
		}
	}
	if to == controller.StateTerminal {
		// published with the result
		p.lastFrom = from
		return
	}
	p.bus.Publish(eventbus.SessionTopic(id.String(), eventbus.TopicLifecycle), LifecycleEvent{
		SessionID: id.String(),
		From:      from,
		To:        to,
		Loading:   to == controller.StateLoading,
		At:        at,
	}, 0)
}

func (p *publisher) OnResult(id uuid.UUID, r types.Result) {
	p.bus.Publish(eventbus.SessionTopic(id.String(), eventbus.TopicLifecycle), LifecycleEvent{
		SessionID: id.String(),
		From:      p.lastFrom,
		To:        controller.StateTerminal,
		Result:    &r,
		At:        time.Now(),
	}, 0)
}
