// Package events is a small in-process notification bus. Local-store writes
// publish here so UI surfaces (pending badge, sync spinner) can stay live
// without polling.
package events

import (
	"sync"
	"time"
)

// Topic names the part of the local store that changed.
type Topic string

const (
	// TopicSubscribers fires when the cached subscriber snapshot changes.
	TopicSubscribers Topic = "subscribers"
	// TopicPending fires when the pending-change queue grows or shrinks.
	TopicPending Topic = "pending"
	// TopicSync fires when a drain starts or finishes.
	TopicSync Topic = "sync"
)

type Event struct {
	Topic Topic
	At    time.Time
}

// Bus fans events out to subscribers. Publishing never blocks: a subscriber
// that is not draining its channel misses events rather than stalling a
// mutation.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of events and a cancel func that must be
// called to release the subscription.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, 16)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers the topic to every current subscriber, dropping the event
// for subscribers with a full buffer.
func (b *Bus) Publish(topic Topic) {
	e := Event{Topic: topic, At: time.Now()}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
