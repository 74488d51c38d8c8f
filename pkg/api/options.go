package api

import (
	"io"
	"time"

	"github.com/tansive/flowbridge/internal/flowbridge/bridge"
	"github.com/tansive/flowbridge/internal/flowbridge/controller"
)

// Surface is the embedded content surface a session drives.
type Surface = bridge.Surface

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc = bridge.SurfaceFunc

// Observer receives every state change and the result of a session.
type Observer = controller.Observer

// State is a session lifecycle state.
type State = controller.State

type Option func(*options)

type options struct {
	resumed          bool
	loadTimeout      time.Duration
	loadingIndicator func(loading bool)
	logWriter        io.Writer
	observers        []controller.Observer
}

// WithResumedSession continues an authenticated session the host retains, so the access token
// may be omitted.
func WithResumedSession() Option {
	return func(o *options) {
		o.resumed = true
	}
}

// WithLoadTimeout overrides how long the surface may take to become ready.
func WithLoadTimeout(d time.Duration) Option {
	return func(o *options) {
		o.loadTimeout = d
	}
}

// WithLoadingIndicator installs the host's loading representation. show is called with true
// when the surface starts loading and with false once it is ready or the session ends. It
// runs on the session goroutine and must not block.
func WithLoadingIndicator(show func(loading bool)) Option {
	return func(o *options) {
		o.loadingIndicator = show
	}
}

// WithLogWriter copies the session's gated log records to w. Nothing is written when logging
// is disabled or the environment is production.
func WithLogWriter(w io.Writer) Option {
	return func(o *options) {
		o.logWriter = w
	}
}

// WithObserver attaches an observer such as the metrics collector.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observers = append(o.observers, obs)
	}
}
