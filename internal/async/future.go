package async

import (
	"context"
	"sync"
	"sync/atomic"
)

const (
	statePending int32 = iota
	stateRunning
	stateFinished
)

// Future is the eventual result of a task submitted to a Pool.
type Future[T any] struct {
	state atomic.Int32
	done  chan struct{}
	once  sync.Once
	val   T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Done is closed once the future is resolved or cancelled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future resolves or ctx ends. An ended ctx does not
// cancel the task; use Cancel for that.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Cancel resolves the future with context.Canceled if its task has not been
// picked up by a worker yet. It reports whether the cancellation took effect;
// once a task is running Cancel is a no-op.
func (f *Future[T]) Cancel() bool {
	return f.abort(context.Canceled)
}

func (f *Future[T]) abort(err error) bool {
	if !f.state.CompareAndSwap(statePending, stateFinished) {
		return false
	}
	f.finish(*new(T), err)
	return true
}

// claim moves a pending future to running; false means it was cancelled.
func (f *Future[T]) claim() bool {
	return f.state.CompareAndSwap(statePending, stateRunning)
}

func (f *Future[T]) resolve(v T, err error) {
	f.state.Store(stateFinished)
	f.finish(v, err)
}

func (f *Future[T]) finish(v T, err error) {
	f.once.Do(func() {
		f.val, f.err = v, err
		close(f.done)
	})
}
