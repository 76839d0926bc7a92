// Package future bridges the dual callback operations of the networking engine to
// awaitable futures.
//
// The engine reports the outcome of an operation by calling either OnSuccess or
// OnError on an Operation. Wrap installs both slots and returns a Future. The first
// slot to run settles the future and releases both slots, so any further call by
// the engine is a no-op. Settling consumes a single pending handle with an atomic
// swap, a future can therefore never be settled twice.
//
// A Connector holds the single connect future of a client: the first Connect call
// issues the connect, all later calls (while pending or after completion) return
// the same future.
//
// Usage:
//
//	op := &future.Operation{}
//	ft := future.Wrap[*GetResult](op)
//	engine.Schedule(req, op)
//
//	res, err := ft.Await(ctx)
package future
