// Package task runs a single background job while the caller renders its
// progress. The worker is the only writer of the result; the caller only
// reads events until the channel closes, then collects the result.
package task

import "context"

// Event is one progress update. Total is 0 when the size is unknown.
type Event struct {
	Stage   string
	Written int64
	Total   int64
}

// Report is handed to the worker to publish progress. It never blocks:
// updates the renderer has not consumed yet are dropped.
type Report func(Event)

// Task is a running background job producing a T.
type Task[T any] struct {
	events chan Event
	done   chan struct{}
	result T
	err    error
}

// Go starts fn in a goroutine. The events channel closes when fn returns.
func Go[T any](ctx context.Context, fn func(ctx context.Context, report Report) (T, error)) *Task[T] {
	t := &Task[T]{
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
	report := func(e Event) {
		select {
		case t.events <- e:
		default:
		}
	}
	go func() {
		defer close(t.done)
		defer close(t.events)
		t.result, t.err = fn(ctx, report)
	}()
	return t
}

// Events returns the progress stream. Range over it to drain until the
// worker finishes.
func (t *Task[T]) Events() <-chan Event {
	return t.events
}

// Wait blocks until the worker returns and yields its result.
func (t *Task[T]) Wait() (T, error) {
	<-t.done
	return t.result, t.err
}
