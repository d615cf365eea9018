// Package events is a small typed publish/subscribe bus. The server publishes consensus notifications on it (role
// changes, leader changes, applied operations) and outer layers such as the HTTP gateway subscribe.
package events

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Type identifies a kind of event.
type Type int

// SubscriberID identifies a single subscription and is required to unsubscribe.
type SubscriberID uint64

// Event is a typed event. Every instantiation of Event[T] is a distinct type, so subscribers receive payloads
// without type assertions.
type Event[T any] struct {
	Type    Type
	Payload T
}

// NewEvent builds an Event.
func NewEvent[T any](eventType Type, payload T) *Event[T] {
	return &Event[T]{Type: eventType, Payload: payload}
}

// subscriber stores type-erased closures over a typed channel, so subscribers of different payload types fit in
// one registry.
type subscriber struct {
	send    func(eventType Type, payload any) bool
	close   func()
	dropped atomic.Uint64
}

type message struct {
	eventType Type
	payload   any
}

// Bus fans published events out to subscribers from a single goroutine. Delivery is non-blocking: a subscriber
// whose channel is full misses the event.
type Bus struct {
	mu       sync.RWMutex // guards registry
	queueMu  sync.RWMutex // guards sends on queue against Close
	wg       sync.WaitGroup
	nextID   atomic.Uint64
	registry map[Type]map[SubscriberID]*subscriber
	queue    chan message
	closed   atomic.Bool
	logger   logrus.FieldLogger
}

// NewBus starts a bus with the given queue capacity.
func NewBus(capacity int, logger logrus.FieldLogger) *Bus {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	b := &Bus{
		registry: make(map[Type]map[SubscriberID]*subscriber),
		queue:    make(chan message, capacity),
		logger:   logger.WithField("component", "events"),
	}

	b.wg.Add(1)
	go b.run()

	return b
}

// Subscribe registers ch for events of eventType. The caller owns the channel's buffer size; the bus closes the
// channel on Unsubscribe or Close.
func Subscribe[T any](b *Bus, eventType Type, ch chan *Event[T]) SubscriberID {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := SubscriberID(b.nextID.Add(1))
	sub := &subscriber{
		send: func(evType Type, payload any) bool {
			typed, ok := payload.(T)
			if !ok {
				b.logger.Warnf("Type mismatch for event %v: expected %T, got %T", evType, *new(T), payload)
				return false
			}
			select {
			case ch <- &Event[T]{Type: evType, Payload: typed}:
				return true
			default:
				return false
			}
		},
		close: func() { close(ch) },
	}

	if _, ok := b.registry[eventType]; !ok {
		b.registry[eventType] = make(map[SubscriberID]*subscriber)
	}
	b.registry[eventType][id] = sub
	return id
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(eventType Type, id SubscriberID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.registry[eventType]
	if !ok {
		return
	}
	if sub, ok := subs[id]; ok {
		delete(subs, id)
		sub.close()
		if len(subs) == 0 {
			delete(b.registry, eventType)
		}
	}
}

// Publish queues an event. Events published after Close are dropped. Publish on a nil Bus is a no-op so that
// components can publish unconditionally.
func Publish[T any](b *Bus, event *Event[T]) {
	if b == nil {
		return
	}

	// Holding the read lock keeps Close from closing the queue between the check and the send
	b.queueMu.RLock()
	defer b.queueMu.RUnlock()

	if b.closed.Load() {
		return
	}
	b.queue <- message{eventType: event.Type, payload: event.Payload}
}

// Close stops accepting events, delivers what is queued and closes every subscriber channel. It is idempotent.
func (b *Bus) Close() {
	b.queueMu.Lock()
	if b.closed.Swap(true) {
		b.queueMu.Unlock()
		b.wg.Wait()
		return
	}
	close(b.queue)
	b.queueMu.Unlock()

	b.wg.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	for eventType, subs := range b.registry {
		for id, sub := range subs {
			sub.close()
			delete(subs, id)
		}
		delete(b.registry, eventType)
	}
}

func (b *Bus) run() {
	defer b.wg.Done()

	for msg := range b.queue {
		b.mu.RLock()
		for id, sub := range b.registry[msg.eventType] {
			if !sub.send(msg.eventType, msg.payload) {
				dropped := sub.dropped.Add(1)
				b.logger.Debugf("Dropped event %v for subscriber %d (total dropped: %d)", msg.eventType, id, dropped)
			}
		}
		b.mu.RUnlock()
	}
}
