// Package eventlogger lets a session's gated log records be streamed to the host. The writer
// plugs into zerolog and publishes every record onto the session's log topic.
package eventlogger

import (
	"io"
	"time"

	"github.com/tansive/flowbridge/internal/flowbridge/eventbus"
)

const publishTimeout = 50 * time.Millisecond

// LogWriter is an io.Writer that publishes each zerolog record to an EventBus topic.
type LogWriter struct {
	Bus   *eventbus.EventBus
	Topic string
}

// Write publishes a copy of p; zerolog reuses its buffers.
func (lw *LogWriter) Write(p []byte) (int, error) {
	dup := make([]byte, len(p))
	copy(dup, p)
	lw.Bus.Publish(lw.Topic, dup, publishTimeout)
	return len(p), nil
}

// NewSessionWriter returns a writer that publishes to the log topic of session id and, when
// host is non-nil, also writes every record to host.
func NewSessionWriter(bus *eventbus.EventBus, id string, host io.Writer) io.Writer {
	lw := &LogWriter{Bus: bus, Topic: eventbus.SessionTopic(id, eventbus.TopicLog)}
	if host == nil {
		return lw
	}
	return io.MultiWriter(host, lw)
}
