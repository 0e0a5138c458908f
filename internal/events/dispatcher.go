package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Handler handles a published event. Handlers run synchronously on the
// publishing goroutine; UI-facing observers redispatch to their own context.
type Handler func(context.Context, Event)

// Dispatcher fans events out to subscribers.
type Dispatcher interface {
	Publish(ctx context.Context, event Event)
	Subscribe(eventType EventType, handler Handler) *Subscription
}

// Subscription is the handle returned by Subscribe. Cancelling it removes
// the handler, so observers carry no manual bookkeeping beyond the handle.
type Subscription struct {
	cancel func()
	once   sync.Once
}

// Cancel removes the subscription. Safe to call more than once.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

type subscriber struct {
	id      uint64
	handler Handler
}

// inMemoryDispatcher is a simple synchronous dispatcher.
type inMemoryDispatcher struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[EventType][]subscriber
}

// NewInMemoryDispatcher creates a dispatcher instance.
func NewInMemoryDispatcher() Dispatcher {
	return &inMemoryDispatcher{
		listeners: make(map[EventType][]subscriber),
	}
}

// Publish synchronously invokes handlers registered for the event type at
// the moment of publication. Handlers added afterwards see nothing
// retroactively.
func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	d.mu.RLock()
	handlers := make([]Handler, 0, len(d.listeners[event.Type]))
	for _, sub := range d.listeners[event.Type] {
		handlers = append(handlers, sub.handler)
	}
	d.mu.RUnlock()

	for _, handler := range handlers {
		handler(ctx, event)
	}
}

// Subscribe registers a handler and returns its cancellation handle.
func (d *inMemoryDispatcher) Subscribe(eventType EventType, handler Handler) *Subscription {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.listeners[eventType] = append(d.listeners[eventType], subscriber{id: id, handler: handler})
	d.mu.Unlock()

	return &Subscription{cancel: func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		subs := d.listeners[eventType]
		for i, sub := range subs {
			if sub.id == id {
				d.listeners[eventType] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
	}}
}
