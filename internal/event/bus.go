// Package event provides the observer registry used to publish model and
// lifecycle changes to independent subscribers.
package event

import "sync"

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Bus delivers published values synchronously to every subscriber, in
// registration order, on the publishing goroutine.
type Bus[T any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscriber[T]
}

// Subscribe registers fn and returns a function that removes it again.
// Calling the returned function more than once is a no-op.
func (b *Bus[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber[T]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus[T]) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers v to the subscribers registered at the time of the call.
// Subscribers may subscribe or unsubscribe from inside their callback; such
// changes take effect from the next Publish.
func (b *Bus[T]) Publish(v T) {
	b.mu.Lock()
	subs := append([]subscriber[T]{}, b.subs...)
	b.mu.Unlock()

	// Deliver outside the lock to allow re-entrant publishing.
	for _, s := range subs {
		s.fn(v)
	}
}

// Len returns the number of registered subscribers.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Signal is a Bus without a payload.
type Signal struct {
	bus Bus[struct{}]
}

// Subscribe registers fn and returns its unsubscribe function.
func (s *Signal) Subscribe(fn func()) (unsubscribe func()) {
	return s.bus.Subscribe(func(struct{}) { fn() })
}

// Fire notifies every subscriber.
func (s *Signal) Fire() {
	s.bus.Publish(struct{}{})
}

// Len returns the number of registered subscribers.
func (s *Signal) Len() int {
	return s.bus.Len()
}
