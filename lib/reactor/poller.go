package reactor

import "time"

// interest bits handed to the poller
const (
	interestRead  uint8 = 1 << 0
	interestWrite uint8 = 1 << 1
)

// poller is the OS readiness backend of a Loop.
type poller interface {
	// control sets the interest set for fd. An empty set removes fd from the poller.
	control(fd int, interest uint8) error
	// wait blocks up to timeout (negative blocks forever) and reports every
	// ready descriptor through fn. A wake() interrupts the wait.
	wait(timeout time.Duration, fn func(fd int, readable, writable bool)) error
	// wake interrupts a concurrent wait. Safe to call from any goroutine.
	wake() error
	close() error
}
