// Package event provides an ordered, multi-subscriber completion signal.
//
// An Event holds a list of handlers. Fire invokes each handler that was
// subscribed at the moment Fire was called, in subscription order, on the
// goroutine calling Fire. There is no buffering or replay: a handler that
// subscribes after Fire has returned never sees that value, and firing with
// no subscribers drops the value.
package event

import "sync"

// Handler receives a fired value.
type Handler[T any] func(T)

// Event is a multicast notification channel. The zero value is ready to use.
type Event[T any] struct {
	mu       sync.Mutex
	nextID   uint64
	handlers []subscription[T]
}

type subscription[T any] struct {
	id uint64
	h  Handler[T]
}

// Subscribe appends h to the handler list. Subscriptions are additive; the
// same function may be subscribed more than once and will then run once per
// subscription.
func (e *Event[T]) Subscribe(h Handler[T]) {
	e.Listen(h)
}

// Listen subscribes h like Subscribe and returns a func that removes this
// subscription. A Fire already in progress may still call h once.
func (e *Event[T]) Listen(h Handler[T]) (cancel func()) {
	if h == nil {
		return func() {}
	}
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.handlers = append(e.handlers, subscription[T]{id: id, h: h})
	e.mu.Unlock()

	return func() { e.remove(id) }
}

// remove builds a new slice so snapshots held by Fire stay intact.
func (e *Event[T]) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, s := range e.handlers {
		if s.id != id {
			continue
		}
		kept := make([]subscription[T], 0, len(e.handlers)-1)
		kept = append(kept, e.handlers[:i]...)
		e.handlers = append(kept, e.handlers[i+1:]...)
		return
	}
}

// Fire delivers v to every current handler in subscription order and reports
// how many handlers ran.
func (e *Event[T]) Fire(v T) int {
	e.mu.Lock()
	handlers := e.handlers[:len(e.handlers):len(e.handlers)]
	e.mu.Unlock()

	for _, s := range handlers {
		s.h(v)
	}
	return len(handlers)
}

// Len returns the number of subscribed handlers.
func (e *Event[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers)
}

// Clear removes every handler.
func (e *Event[T]) Clear() {
	e.mu.Lock()
	e.handlers = nil
	e.mu.Unlock()
}
