package rt

import (
	"context"
	"fmt"
)

// Future is the deferred result of a suspending call.
type Future interface {
	Await(ctx context.Context) (any, error)
}

type task struct {
	done chan struct{}
	val  any
	err  error
}

func (t *task) Await(ctx context.Context) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-t.done:
		return t.val, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Go runs fn on a new goroutine and returns its Future. A panic inside fn is
// reported as the future's error.
func Go(ctx context.Context, fn func(context.Context) (any, error)) Future {
	t := &task{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				t.val, t.err = nil, fmt.Errorf("rt: panic in task: %v", r)
			}
		}()
		t.val, t.err = fn(ctx)
	}()
	return t
}

// Completed returns a Future that is already resolved.
func Completed(v any, err error) Future {
	t := &task{done: make(chan struct{}), val: v, err: err}
	close(t.done)
	return t
}
