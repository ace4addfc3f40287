package pubsub

import "context"

// Listener is a pull-style subscription for consumers that handle one
// event at a time.
type Listener[T any] struct {
	ctx context.Context
	ch  <-chan Event[T]
}

// NewListener subscribes to the given event types of broker (all types
// when none are named) for the lifetime of ctx.
func NewListener[T any](ctx context.Context, broker *Broker[T], types ...EventType) *Listener[T] {
	return &Listener[T]{ctx: ctx, ch: broker.Subscribe(ctx, types...)}
}

// Next blocks until the next event arrives.
// It returns false once the context is cancelled or the broker is closed.
func (l *Listener[T]) Next() (Event[T], bool) {
	select {
	case <-l.ctx.Done():
		return Event[T]{}, false
	case event, ok := <-l.ch:
		return event, ok
	}
}
