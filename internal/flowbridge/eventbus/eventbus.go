// Package eventbus is a small in-memory publish/subscribe bus. Each session owns one bus and
// uses it to fan lifecycle records and gated log records out to whoever the host attached.
// Nothing is shared between sessions.
package eventbus

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Topic names used by sessions. Subscribers may use "*" as a segment wildcard.
const (
	TopicLifecycle = "lifecycle"
	TopicLog       = "log"
)

// SessionTopic returns the topic for kind within session id.
func SessionTopic(id string, kind string) string {
	return fmt.Sprintf("session.%s.%s", id, kind)
}

// AllSessionTopics returns a pattern matching every topic of session id.
func AllSessionTopics(id string) string {
	return fmt.Sprintf("session.%s.*", id)
}

type Event struct {
	Topic string
	Data  any
}

type subscriber struct {
	id      string
	pattern string
	ch      chan Event

	mu     sync.Mutex
	closed bool
}

// send delivers ev or gives up after timeout. Slow subscribers lose events rather than stall
// the session loop.
func (s *subscriber) send(ev Event, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if timeout <= 0 {
		select {
		case s.ch <- ev:
			return true
		default:
			return false
		}
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case s.ch <- ev:
		return true
	case <-t.C:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	counter     atomic.Uint64
	shutdown    bool
}

func New() *EventBus {
	return &EventBus{
		subscribers: make(map[string]*subscriber),
	}
}

// Subscribe registers interest in pattern and returns the delivery channel and a function
// that unsubscribes and closes it. Subscribing to a shut down bus yields a closed channel.
func (bus *EventBus) Subscribe(pattern string, bufferSize int) (<-chan Event, func()) {
	id := fmt.Sprintf("sub-%d", bus.counter.Add(1))
	sub := &subscriber{
		id:      id,
		pattern: pattern,
		ch:      make(chan Event, bufferSize),
	}

	bus.mu.Lock()
	if bus.shutdown {
		bus.mu.Unlock()
		sub.close()
		return sub.ch, func() {}
	}
	bus.subscribers[id] = sub
	bus.mu.Unlock()

	return sub.ch, func() {
		bus.mu.Lock()
		defer bus.mu.Unlock()
		if s, ok := bus.subscribers[id]; ok {
			s.close()
			delete(bus.subscribers, id)
		}
	}
}

// Publish sends data to every subscriber whose pattern matches topic. It reports how many
// subscribers received the event.
func (bus *EventBus) Publish(topic string, data any, timeout time.Duration) int {
	ev := Event{Topic: topic, Data: data}

	bus.mu.RLock()
	defer bus.mu.RUnlock()

	delivered := 0
	for _, sub := range bus.subscribers {
		if matchTopic(sub.pattern, topic) && sub.send(ev, timeout) {
			delivered++
		}
	}
	return delivered
}

// Shutdown closes every subscriber. Later publishes are dropped.
func (bus *EventBus) Shutdown() {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	for id, sub := range bus.subscribers {
		sub.close()
		delete(bus.subscribers, id)
	}
	bus.shutdown = true
}

// matchTopic matches dot-separated topics; "*" matches one segment, a bare "*" matches all.
func matchTopic(pattern, topic string) bool {
	if pattern == "" || topic == "" {
		return false
	}
	if pattern == "*" || pattern == topic {
		return true
	}
	patternParts := strings.Split(pattern, ".")
	topicParts := strings.Split(topic, ".")
	if len(patternParts) != len(topicParts) {
		return false
	}
	for i := range patternParts {
		if patternParts[i] != "*" && patternParts[i] != topicParts[i] {
			return false
		}
	}
	return true
}
