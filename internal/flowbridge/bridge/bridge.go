// Package bridge is the message channel between a session and its embedded surface. It sends
// the start directive, decodes what the surface posts back and hands the session at most one
// terminal event. The surface runs on its own goroutine; everything it posts is marshalled
// onto the Events channel, which the session reads from its own serialized loop.
package bridge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Surface is the embedded content surface: anything that can load a flow, receive the start
// directive and post messages back.
//
// Run must read the start directive from directives, call post for every message the flow
// emits and return when the flow finishes, when ctx is canceled or when the transport fails.
// post is safe to call from any goroutine but must not be called after Run returns.
type Surface interface {
	Run(ctx context.Context, directives <-chan []byte, post func(msg []byte)) error
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func(ctx context.Context, directives <-chan []byte, post func(msg []byte)) error

func (f SurfaceFunc) Run(ctx context.Context, directives <-chan []byte, post func(msg []byte)) error {
	return f(ctx, directives, post)
}

// Bridge owns one surface for the lifetime of one session.
type Bridge struct {
	logger   zerolog.Logger
	outbound chan []byte
	inbound  chan Event
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}

	mu       sync.Mutex
	ready    bool
	terminal bool
	closed   bool
	sent     bool

	teardownOnce sync.Once
	teardowns    atomic.Int32
}

// Open starts surface on its own goroutine. The surface is torn down when a terminal event is
// delivered, when Close is called or when ctx is canceled.
func Open(ctx context.Context, surface Surface, logger zerolog.Logger) *Bridge {
	runCtx, cancel := context.WithCancel(ctx)
	b := &Bridge{
		logger:   logger,
		outbound: make(chan []byte, 1),
		// one ready and one terminal event at most, so delivery never blocks
		inbound: make(chan Event, 2),
		ctx:     runCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go b.run(surface)
	return b
}

func (b *Bridge) run(surface Surface) {
	defer close(b.done)
	err := b.runSurface(surface)

	switch {
	case b.ctx.Err() != nil:
		// torn down; whatever the surface returned is a consequence of that
	case err != nil:
		b.logger.Debug().Err(err).Msg("surface failed")
		b.deliver(TransportError(err))
	default:
		b.deliver(TransportError(ErrFlowEnded))
	}

	b.mu.Lock()
	b.closed = true
	close(b.inbound)
	b.mu.Unlock()
}

func (b *Bridge) runSurface(surface Surface) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrSurfacePanic.Msg(fmt.Sprintf("embedded surface panicked: %v", r))
		}
	}()
	return surface.Run(b.ctx, b.outbound, b.post)
}

// Send encodes and sends the start directive. It may be called once.
func (b *Bridge) Send(d StartDirective) error {
	payload, err := d.Encode()
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.ctx.Err() != nil {
		return ErrBridgeClosed
	}
	if b.sent {
		return ErrDirectiveSent
	}
	b.sent = true
	b.outbound <- payload
	close(b.outbound)
	b.logger.Debug().Str("protocol_version", ProtocolVersion).Msg("start directive sent")
	return nil
}

// Events delivers decoded inbound events: at most one ready followed by at most one terminal
// event. The channel is closed once the surface has stopped.
func (b *Bridge) Events() <-chan Event {
	return b.inbound
}

func (b *Bridge) post(msg []byte) {
	b.deliver(Decode(msg))
}

// deliver applies the emit-once rule: duplicate ready events and anything after a terminal
// event are dropped. A terminal event tears the surface down.
func (b *Bridge) deliver(ev Event) {
	b.mu.Lock()
	if b.closed || b.terminal || (ev.Kind == EventReady && b.ready) {
		b.mu.Unlock()
		b.logger.Debug().Stringer("event", ev.Kind).Msg("inbound event ignored")
		return
	}
	if ev.IsTerminal() {
		b.terminal = true
	} else {
		b.ready = true
	}
	b.inbound <- ev
	b.mu.Unlock()

	b.logger.Debug().Stringer("event", ev.Kind).Msg("inbound event delivered")
	if ev.IsTerminal() {
		b.Close()
	}
}

// Close tears the surface down. It is idempotent and does not wait for the surface to stop;
// use Done for that.
func (b *Bridge) Close() {
	b.teardownOnce.Do(func() {
		b.teardowns.Add(1)
		b.cancel()
		b.logger.Debug().Msg("embedded surface torn down")
	})
}

// Done is closed once the surface's Run has returned.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

// Teardowns reports how many times the surface was torn down. It is never more than one.
func (b *Bridge) Teardowns() int {
	return int(b.teardowns.Load())
}
