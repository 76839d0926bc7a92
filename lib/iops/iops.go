package iops

import (
	"fmt"
	"math"
	"time"

	"github.com/ValentinKolb/dDoc/lib/reactor"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("iops")

// --------------------------------------------------------------------------
// Flags and Actions
// --------------------------------------------------------------------------

// Flags is a readiness bitmask
type Flags uint8

const (
	EventRead  Flags = 1 << 0
	EventWrite Flags = 1 << 1
	EventRW          = EventRead | EventWrite
)

func (f Flags) String() string {
	switch f {
	case 0:
		return "NONE"
	case EventRead:
		return "READ"
	case EventWrite:
		return "WRITE"
	case EventRW:
		return "READ|WRITE"
	default:
		return fmt.Sprintf("Flags(%d)", uint8(f))
	}
}

// Action tells the adapter whether to start or stop watching
type Action uint8

const (
	ActionWatch Action = iota
	ActionUnwatch
)

func (a Action) String() string {
	if a == ActionUnwatch {
		return "UNWATCH"
	}
	return "WATCH"
}

// Loop is the part of the reactor the adapter drives.
// *reactor.Loop satisfies it.
type Loop interface {
	AddReader(fd int, fn func()) error
	RemoveReader(fd int) bool
	AddWriter(fd int, fn func()) error
	RemoveWriter(fd int) bool
	CallLater(d time.Duration, fn func()) reactor.Handle
}

// --------------------------------------------------------------------------
// Timer
// --------------------------------------------------------------------------

// Timer is a cancellable one-shot deadline. At most one pending fire exists at a time.
type Timer struct {
	handle   reactor.Handle
	callback func()
}

// Schedule arms the timer to fire after usec microseconds, delays beyond the
// range of time.Duration saturate. A pending arm is cancelled first.
func (t *Timer) Schedule(loop Loop, usec uint64) {
	t.Cancel()
	var h reactor.Handle
	h = loop.CallLater(usecToDuration(usec), func() { t.ready(h) })
	t.handle = h
}

func usecToDuration(usec uint64) time.Duration {
	if usec > uint64(math.MaxInt64/int64(time.Microsecond)) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(usec) * time.Microsecond
}

// Cancel disarms the timer. No-op if not armed.
func (t *Timer) Cancel() {
	if t.handle == nil {
		return
	}
	t.handle.Cancel()
	t.handle = nil
}

// Armed reports whether a fire is pending
func (t *Timer) Armed() bool {
	return t.handle != nil
}

// ready runs the callback for the arm identified by h. A stale arm that was
// replaced in the meantime does nothing.
func (t *Timer) ready(h reactor.Handle) {
	if t.handle != h {
		return
	}
	t.handle = nil
	if t.callback != nil {
		t.callback()
	}
}

// --------------------------------------------------------------------------
// Readiness Event
// --------------------------------------------------------------------------

// Event tracks read/write interest for one socket. Each readiness
// notification is delivered once, the engine re-requests interest after handling it.
type Event struct {
	fd      int
	watched Flags
	loop    Loop
	onRead  func()
	onWrite func()
}

// FD returns the watched descriptor
func (e *Event) FD() int { return e.fd }

// Watched returns the current interest bitmask
func (e *Event) Watched() Flags { return e.watched }

func (e *Event) readReady() {
	e.loop.RemoveReader(e.fd)
	e.watched &^= EventRead
	if e.onRead != nil {
		e.onRead()
	}
}

func (e *Event) writeReady() {
	e.loop.RemoveWriter(e.fd)
	e.watched &^= EventWrite
	if e.onWrite != nil {
		e.onWrite()
	}
}

// --------------------------------------------------------------------------
// Adapter
// --------------------------------------------------------------------------

// Adapter translates the engine's watch/unwatch and timer requests into
// reactor registrations. It runs on the loop goroutine only.
type Adapter struct {
	loop Loop
}

// New creates an adapter bound to loop
func New(loop Loop) *Adapter {
	return &Adapter{loop: loop}
}

// Loop returns the reactor the adapter is bound to
func (a *Adapter) Loop() Loop { return a.loop }

// UpdateEvent changes the registrations of ev.
//
// UNWATCH removes the reader and/or writer for the bits currently set and clears
// the mask. WATCH registers every bit of flags that is not yet watched and then
// sets the mask to flags. Bits watched before but absent from flags stay registered
// with the reactor until they fire or are unwatched.
func (a *Adapter) UpdateEvent(ev *Event, action Action, flags Flags) error {
	if action == ActionUnwatch {
		if ev.watched&EventRead != 0 {
			a.loop.RemoveReader(ev.fd)
		}
		if ev.watched&EventWrite != 0 {
			a.loop.RemoveWriter(ev.fd)
		}
		ev.watched = 0
		return nil
	}

	if flags&EventRead != 0 && ev.watched&EventRead == 0 {
		if err := a.loop.AddReader(ev.fd, ev.readReady); err != nil {
			return fmt.Errorf("watch read on fd %d: %w", ev.fd, err)
		}
	}
	if flags&EventWrite != 0 && ev.watched&EventWrite == 0 {
		if err := a.loop.AddWriter(ev.fd, ev.writeReady); err != nil {
			ev.watched = flags &^ EventWrite
			return fmt.Errorf("watch write on fd %d: %w", ev.fd, err)
		}
	}
	ev.watched = flags
	return nil
}

// UpdateTimer cancels any pending fire of t and, for WATCH, re-arms it after usec microseconds.
func (a *Adapter) UpdateTimer(t *Timer, action Action, usec uint64) {
	t.Cancel()
	if action == ActionUnwatch {
		return
	}
	t.Schedule(a.loop, usec)
}

// StartWatching is a no-op, the reactor is always dispatching while running.
func (a *Adapter) StartWatching() {}

// StopWatching is a no-op, see StartWatching.
func (a *Adapter) StopWatching() {}

// TimerEventFactory creates an unarmed timer that calls fn when it fires
func (a *Adapter) TimerEventFactory(fn func()) *Timer {
	return &Timer{callback: fn}
}

// IOEventFactory creates an event for fd with an empty mask.
// onRead and onWrite are called after the reactor reported readiness.
func (a *Adapter) IOEventFactory(fd int, onRead, onWrite func()) *Event {
	return &Event{
		fd:      fd,
		loop:    a.loop,
		onRead:  onRead,
		onWrite: onWrite,
	}
}
