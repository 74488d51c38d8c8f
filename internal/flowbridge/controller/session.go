package controller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/tansive/flowbridge/internal/common/uuid"
	"github.com/tansive/flowbridge/internal/flowbridge/bridge"
	"github.com/tansive/flowbridge/internal/flowbridge/config"
	"github.com/tansive/flowbridge/pkg/types"
)

// DefaultLoadTimeout bounds how long a surface may take to signal readiness.
const DefaultLoadTimeout = 30 * time.Second

// Observer is notified from the session goroutine. OnTransition fires for every state change
// and OnResult exactly once, after the transition into Terminal. Observers must not block.
type Observer interface {
	OnTransition(id uuid.UUID, from, to State, at time.Time)
	OnResult(id uuid.UUID, r types.Result)
}

// Options configure a session.
type Options struct {
	// ID identifies the session. A new one is generated when zero.
	ID          uuid.UUID
	Surface     bridge.Surface
	LoadTimeout time.Duration
	// Resumed marks a session that continues an authenticated state the host retains, which
	// makes the access token optional.
	Resumed   bool
	Logger    zerolog.Logger
	Observers []Observer
}

// Session is one embedding attempt. It is created by New, started once with Start and resolves
// to exactly one Result.
type Session struct {
	id       uuid.UUID
	cfg      types.Configuration
	opts     Options
	logger   zerolog.Logger
	state    atomic.Int32
	result   types.Result
	br       atomic.Pointer[bridge.Bridge]
	watchdog *time.Timer
	pending  []Input

	startOnce  sync.Once
	cancelOnce sync.Once
	cancelCh   chan struct{}
	done       chan struct{}
}

// New prepares a session for cfg. Nothing runs until Start.
func New(cfg types.Configuration, opts Options) *Session {
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}
	id := opts.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &Session{
		id:       id,
		cfg:      cfg.Clone(),
		opts:     opts,
		logger:   opts.Logger.With().Str("session_id", id.String()).Logger(),
		cancelCh: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// ID identifies the session in logs, lifecycle topics and the start directive.
func (s *Session) ID() uuid.UUID { return s.id }

// State returns the current lifecycle state. Safe to call from any goroutine.
func (s *Session) State() State { return State(s.state.Load()) }

// Done is closed once the Result is available.
func (s *Session) Done() <-chan struct{} { return s.done }

// Result returns the terminal result. ok is false until Done is closed.
func (s *Session) Result() (r types.Result, ok bool) {
	select {
	case <-s.done:
		return s.result, true
	default:
		return types.Result{}, false
	}
}

// Wait blocks until the session resolves or ctx ends. Ending ctx does not cancel the session.
func (s *Session) Wait(ctx context.Context) (types.Result, error) {
	select {
	case <-s.done:
		return s.result, nil
	case <-ctx.Done():
		return types.Result{}, ctx.Err()
	}
}

// Teardowns reports how many times the embedded surface was torn down: zero if it never
// opened, one otherwise once the session is terminal.
func (s *Session) Teardowns() int {
	if br := s.br.Load(); br != nil {
		return br.Teardowns()
	}
	return 0
}

// Cancel dismisses the session on behalf of the host. It is idempotent and may be called in
// any state; a session that is not yet terminal resolves to Closed and its surface is torn down.
func (s *Session) Cancel() {
	s.cancelOnce.Do(func() { close(s.cancelCh) })
}

// Start runs the session on its own goroutine. Canceling ctx has the same effect as Cancel.
// Later calls are no-ops.
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() { go s.run(ctx) })
}

func (s *Session) run(ctx context.Context) {
	if s.canceled(ctx) {
		s.apply(ctx, Input{Kind: InputCancel})
		return
	}
	s.apply(ctx, Input{Kind: InputEmbed})

	in := Input{Kind: InputValid}
	if _, err := config.Validate(s.cfg, s.opts.Resumed); err != nil {
		in = Input{Kind: InputInvalid, Err: err}
	}
	// a cancel that lands during validation must not open the bridge
	if s.canceled(ctx) {
		in = Input{Kind: InputCancel}
	}
	s.apply(ctx, in)

	for s.State() != StateTerminal {
		if len(s.pending) > 0 {
			in := s.pending[0]
			s.pending = s.pending[1:]
			s.apply(ctx, in)
			continue
		}

		var events <-chan bridge.Event
		if br := s.br.Load(); br != nil {
			events = br.Events()
		}
		var expired <-chan time.Time
		if s.watchdog != nil {
			expired = s.watchdog.C
		}

		select {
		case ev, ok := <-events:
			if !ok {
				ev = bridge.TransportError(bridge.ErrFlowEnded)
			}
			s.apply(ctx, Input{Kind: InputBridge, Event: ev})
		case <-expired:
			s.watchdog = nil
			s.apply(ctx, Input{Kind: InputTimeout})
		case <-s.cancelCh:
			s.apply(ctx, Input{Kind: InputCancel})
		case <-ctx.Done():
			s.apply(ctx, Input{Kind: InputCancel})
		}
	}
}

// canceled reports without blocking whether the host has canceled the session.
func (s *Session) canceled(ctx context.Context) bool {
	select {
	case <-s.cancelCh:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// apply runs one transition and its effects. Only the session goroutine calls it.
func (s *Session) apply(ctx context.Context, in Input) {
	from := s.State()
	step := Transition(from, in)
	if step.Next != from {
		s.state.Store(int32(step.Next))
		s.logger.Debug().Stringer("from", from).Stringer("to", step.Next).Msg("session state changed")
		now := time.Now()
		for _, o := range s.opts.Observers {
			o.OnTransition(s.id, from, step.Next, now)
		}
	}

	if step.Effects.Has(EffectOpenBridge) {
		s.openBridge(ctx)
	}
	if step.Effects.Has(EffectArmWatchdog) {
		s.watchdog = time.NewTimer(s.opts.LoadTimeout)
	}
	if step.Effects.Has(EffectDisarmWatchdog) && s.watchdog != nil {
		s.watchdog.Stop()
		s.watchdog = nil
	}
	if br := s.br.Load(); step.Effects.Has(EffectTeardown) && br != nil {
		br.Close()
	}
	if step.Effects.Has(EffectEmit) {
		s.emit(step.Result)
	}
}

func (s *Session) openBridge(ctx context.Context) {
	// The bridge outlives ctx only until the terminal transition tears it down.
	br := bridge.Open(context.WithoutCancel(ctx), s.opts.Surface, s.logger)
	s.br.Store(br)
	err := br.Send(bridge.StartDirective{
		SessionID: s.id.String(),
		Config:    s.cfg,
		Resumed:   s.opts.Resumed,
	})
	if err != nil && !errors.Is(err, bridge.ErrBridgeClosed) {
		s.logger.Error().Err(err).Msg("unable to send start directive")
		s.pending = append(s.pending, Input{Kind: InputBridge, Event: bridge.TransportError(err)})
	}
}

func (s *Session) emit(r types.Result) {
	s.result = r
	switch r.Kind() {
	case types.ResultFailure:
		e, _ := r.Err()
		s.logger.Error().Str("code", string(e.Code)).Str("detail", e.Detail()).Msg("session failed")
	case types.ResultClosed:
		s.logger.Info().Msg("session closed")
	default:
		s.logger.Info().Msg("session succeeded")
	}
	for _, o := range s.opts.Observers {
		o.OnResult(s.id, r)
	}
	close(s.done)
}
