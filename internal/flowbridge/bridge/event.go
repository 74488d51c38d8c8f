package bridge

import (
	"fmt"

	"github.com/tansive/flowbridge/internal/flowbridge/taxonomy"
)

// EventKind enumerates the inbound events a surface can produce.
type EventKind int

const (
	EventReady EventKind = iota + 1
	EventSuccess
	EventFailure
	EventClosed
	EventTransportError
)

var eventNames = map[EventKind]string{
	EventReady:          "ready",
	EventSuccess:        "result:success",
	EventFailure:        "result:failure",
	EventClosed:         "result:closed",
	EventTransportError: "transport-error",
}

func (k EventKind) String() string {
	if s, ok := eventNames[k]; ok {
		return s
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is one inbound message, already decoded. Failure is set for EventFailure and Cause for
// EventTransportError.
type Event struct {
	Kind            EventKind
	Failure         taxonomy.RawFailure
	Cause           error
	ProtocolVersion string
}

// IsTerminal reports whether the event resolves the session.
func (e Event) IsTerminal() bool {
	return e.Kind != EventReady
}

// Err returns the failure carried by the event, if any.
func (e Event) Err() error {
	switch e.Kind {
	case EventFailure:
		return e.Failure
	case EventTransportError:
		return e.Cause
	}
	return nil
}

func TransportError(cause error) Event {
	return Event{Kind: EventTransportError, Cause: cause}
}
