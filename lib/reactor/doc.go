// Package reactor implements a single-goroutine cooperative event loop.
//
// A Loop multiplexes readiness of file descriptors (epoll on Linux) and one-shot
// timers onto a single goroutine. Callbacks never run concurrently with each other,
// so code driven by the loop needs no locking as long as it only runs inside
// callbacks.
//
// Key Components:
//
//   - Loop: AddReader/RemoveReader, AddWriter/RemoveWriter for readiness,
//     CallLater/CallSoon for scheduling and Post to hand work over from other
//     goroutines.
//
//   - Handle: returned by CallLater, Cancel disarms the timer idempotently.
//
// Dispatch order within one step: descriptors in the order reported by the poller,
// then posted callbacks, then expired timers (earliest deadline first).
// There is no ordering guarantee across descriptors.
//
// Usage:
//
//	loop, _ := reactor.New()
//	defer loop.Close()
//
//	go loop.Run(ctx)
//	_ = loop.Post(func() {
//		loop.CallLater(100*time.Millisecond, func() { fmt.Println("tick") })
//	})
package reactor
