package future

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

var (
	// ErrUnexpectedResult is returned when an operation succeeds with a value of the wrong type
	ErrUnexpectedResult = errors.New("future: unexpected result type")
)

// --------------------------------------------------------------------------
// Operation (the engine side)
// --------------------------------------------------------------------------

// ErrorClass builds a typed error from the value reported by the engine
type ErrorClass func(value any) error

// Operation is the dual callback object the engine reports an outcome through.
// The engine calls exactly one of the slots once; after the bridge settled the
// operation both slots are nil.
type Operation struct {
	OnSuccess func(result any)
	OnError   func(class ErrorClass, value any, trace string)
}

// Succeed reports a result if the success slot is still installed
func (op *Operation) Succeed(result any) {
	if fn := op.OnSuccess; fn != nil {
		fn(result)
	}
}

// Fail reports an error if the error slot is still installed
func (op *Operation) Fail(class ErrorClass, value any, trace string) {
	if fn := op.OnError; fn != nil {
		fn(class, value, trace)
	}
}

// Settled reports whether both slots have been released
func (op *Operation) Settled() bool {
	return op.OnSuccess == nil && op.OnError == nil
}

// --------------------------------------------------------------------------
// Future
// --------------------------------------------------------------------------

// State of a future
type State uint32

const (
	Pending State = iota
	Fulfilled
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fulfilled:
		return "fulfilled"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// pending is the single-owner right to settle a future. Whoever swaps it
// out of the future settles it, every later attempt finds nil.
type pending struct {
	op *Operation
}

// Future is the awaitable result of an operation
type Future[T any] struct {
	done  chan struct{}
	state atomic.Uint32
	owner atomic.Pointer[pending]
	value T
	err   error
	trace string
}

func newFuture[T any](op *Operation) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	f.owner.Store(&pending{op: op})
	return f
}

// Wrap installs success and error handlers on op and returns the future they settle.
// Whichever handler runs first wins, both slots are released afterwards.
func Wrap[T any](op *Operation) *Future[T] {
	f := newFuture[T](op)

	op.OnSuccess = func(result any) {
		p := f.owner.Swap(nil)
		if p == nil {
			return
		}
		release(p.op)

		value, ok := result.(T)
		if !ok && result != nil {
			var zero T
			f.settle(zero, fmt.Errorf("%w: got %T", ErrUnexpectedResult, result), "")
			return
		}
		f.settle(value, nil, "")
	}

	op.OnError = func(class ErrorClass, value any, trace string) {
		p := f.owner.Swap(nil)
		if p == nil {
			return
		}
		release(p.op)

		var err error
		if class != nil {
			err = class(value)
		}
		if err == nil {
			err = fmt.Errorf("operation failed: %v", value)
		}
		var zero T
		f.settle(zero, err, trace)
	}

	return f
}

// Resolved returns an already fulfilled future
func Resolved[T any](value T) *Future[T] {
	f := newFuture[T](nil)
	f.owner.Store(nil)
	f.settle(value, nil, "")
	return f
}

// Rejected returns an already failed future
func Rejected[T any](err error) *Future[T] {
	f := newFuture[T](nil)
	f.owner.Store(nil)
	var zero T
	f.settle(zero, err, "")
	return f
}

func release(op *Operation) {
	if op == nil {
		return
	}
	op.OnSuccess = nil
	op.OnError = nil
}

func (f *Future[T]) settle(value T, err error, trace string) {
	f.value = value
	f.err = err
	f.trace = trace
	if err != nil {
		f.state.Store(uint32(Failed))
	} else {
		f.state.Store(uint32(Fulfilled))
	}
	close(f.done)
}

// Done is closed once the future settled
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// State returns the current state
func (f *Future[T]) State() State {
	return State(f.state.Load())
}

// Await blocks until the future settled or ctx is done.
// A cancelled wait leaves the operation running.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the outcome without blocking. ok is false while pending.
func (f *Future[T]) Result() (value T, err error, ok bool) {
	select {
	case <-f.done:
		return f.value, f.err, true
	default:
		var zero T
		return zero, nil, false
	}
}

// Trace returns the context the engine attached to a failure
func (f *Future[T]) Trace() string {
	select {
	case <-f.done:
		return f.trace
	default:
		return ""
	}
}
