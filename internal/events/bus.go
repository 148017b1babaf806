// Package events provides the pub/sub bus between the correlation engine and
// the real-time transports. Publishing never blocks ingestion: slow
// subscribers lose messages rather than delaying the writer.
package events

import (
	"sync"
	"time"
)

// Type classifies bus events.
type Type string

const (
	// IncidentUpdated is published after an incident aggregate commit.
	IncidentUpdated Type = "incident_updated"
)

// Event is one incident-change notification.
type Event struct {
	Type      Type      `json:"type"`
	DedupeKey string    `json:"dedupe_key"`
	Namespace string    `json:"namespace"`
	Service   string    `json:"service"`
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// DropFunc is invoked each time a message is dropped for a slow subscriber.
// Used for metrics.
type DropFunc func(subscriberID string)

// Bus is a bounded-buffer pub/sub hub.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	bufferSize  int
	onDrop      DropFunc
}

// NewBus creates a bus with the given per-subscriber buffer size.
func NewBus(bufferSize int) *Bus {
	if bufferSize < 1 {
		bufferSize = 64
	}
	return &Bus{
		subscribers: make(map[string]chan Event),
		bufferSize:  bufferSize,
	}
}

// SetDropHook installs a callback for dropped messages.
func (b *Bus) SetDropHook(fn DropFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onDrop = fn
}

// Publish delivers the event to every subscriber. Non-blocking: a full
// subscriber buffer drops the message for that subscriber only.
func (b *Bus) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			if b.onDrop != nil {
				b.onDrop(id)
			}
		}
	}
}

// Subscribe registers a subscriber and returns its channel. The channel is
// closed by Unsubscribe.
func (b *Bus) Subscribe(id string) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	b.subscribers[id] = ch
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
