// Package future provides a single-assignment result that can be awaited.
package future

import (
	"context"
	"sync"
)

// Future is the eventual result of an asynchronous call. It is resolved
// exactly once; later resolutions are ignored.
type Future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

// New returns an unresolved Future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Go runs fn in a new goroutine and returns a Future resolved with its result.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := New[T]()
	go func() {
		f.Resolve(fn())
	}()
	return f
}

// Resolve sets the result. It reports whether this call resolved the Future.
func (f *Future[T]) Resolve(value T, err error) bool {
	resolved := false
	f.once.Do(func() {
		f.value, f.err = value, err
		close(f.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the Future is resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the Future is resolved or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then calls fn with the result once the Future resolves. fn runs on its own
// goroutine and is called exactly once.
func (f *Future[T]) Then(fn func(T, error)) {
	go func() {
		<-f.done
		fn(f.value, f.err)
	}()
}
