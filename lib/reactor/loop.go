package reactor

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("reactor")

var (
	ErrUnsupportedPlatform = errors.New("reactor: platform not supported")
	ErrClosed              = errors.New("reactor: loop is closed")
	ErrRunning             = errors.New("reactor: loop is already running")
)

// Handle is returned by CallLater and disarms the scheduled callback.
type Handle interface {
	// Cancel disarms the callback. Calling it after the callback fired
	// or calling it twice has no effect.
	Cancel()
}

// fdCallback is a registered reader or writer. Removing a registration
// marks it so that an already queued dispatch is skipped.
type fdCallback struct {
	fn      func()
	removed bool
}

// timerHandle implements Handle for timers of a Loop
type timerHandle struct {
	loop *Loop
	id   uint64
}

func (h *timerHandle) Cancel() {
	h.loop.timers.cancel(h.id)
}

// Loop is a single-goroutine cooperative event loop.
//
// AddReader, RemoveReader, AddWriter, RemoveWriter, CallLater and CallSoon must
// only be called from the loop goroutine (from inside a callback) or while the
// loop is not running. Post and Stop may be called from any goroutine.
type Loop struct {
	poller  poller
	readers map[int]*fdCallback
	writers map[int]*fdCallback
	timers  *timerHeap
	ready   *queue.Queue // of func()

	postMu sync.Mutex
	posted *queue.Queue // of func(), guarded by postMu

	running  atomic.Bool
	stopping atomic.Bool
	closed   atomic.Bool
}

// New creates a new loop backed by the platform poller
func New() (*Loop, error) {
	p, err := newPoller()
	if err != nil {
		return nil, err
	}
	return newLoop(p), nil
}

func newLoop(p poller) *Loop {
	return &Loop{
		poller:  p,
		readers: make(map[int]*fdCallback),
		writers: make(map[int]*fdCallback),
		timers:  newTimerHeap(),
		ready:   queue.New(),
		posted:  queue.New(),
	}
}

// --------------------------------------------------------------------------
// Readiness registration (loop goroutine only)
// --------------------------------------------------------------------------

// AddReader invokes fn whenever fd is readable until RemoveReader is called.
// An existing reader for fd is replaced.
func (l *Loop) AddReader(fd int, fn func()) error {
	return l.addCallback(l.readers, fd, fn)
}

// RemoveReader stops watching fd for readability.
// Returns false if no reader was registered.
func (l *Loop) RemoveReader(fd int) bool {
	return l.removeCallback(l.readers, fd)
}

// AddWriter invokes fn whenever fd is writable until RemoveWriter is called.
// An existing writer for fd is replaced.
func (l *Loop) AddWriter(fd int, fn func()) error {
	return l.addCallback(l.writers, fd, fn)
}

// RemoveWriter stops watching fd for writability.
// Returns false if no writer was registered.
func (l *Loop) RemoveWriter(fd int) bool {
	return l.removeCallback(l.writers, fd)
}

func (l *Loop) addCallback(m map[int]*fdCallback, fd int, fn func()) error {
	if l.closed.Load() {
		return ErrClosed
	}
	old, replaced := m[fd]
	m[fd] = &fdCallback{fn: fn}
	if err := l.updateInterest(fd); err != nil {
		if replaced {
			m[fd] = old
		} else {
			delete(m, fd)
		}
		return err
	}
	if replaced {
		old.removed = true
	}
	return nil
}

func (l *Loop) removeCallback(m map[int]*fdCallback, fd int) bool {
	cb, ok := m[fd]
	if !ok {
		return false
	}
	cb.removed = true
	delete(m, fd)
	if err := l.updateInterest(fd); err != nil {
		Logger.Warningf("failed to update interest for fd %d: %v", fd, err)
	}
	return true
}

func (l *Loop) updateInterest(fd int) error {
	var interest uint8
	if _, ok := l.readers[fd]; ok {
		interest |= interestRead
	}
	if _, ok := l.writers[fd]; ok {
		interest |= interestWrite
	}
	return l.poller.control(fd, interest)
}

// --------------------------------------------------------------------------
// Scheduling
// --------------------------------------------------------------------------

// CallLater schedules fn to run once after d (loop goroutine only).
func (l *Loop) CallLater(d time.Duration, fn func()) Handle {
	if d < 0 {
		d = 0
	}
	now := time.Now().UnixNano()
	deadline := int64(math.MaxInt64)
	if int64(d) < math.MaxInt64-now {
		deadline = now + int64(d)
	}
	id := l.timers.schedule(deadline, fn)
	return &timerHandle{loop: l, id: id}
}

// CallSoon queues fn for the next dispatch phase (loop goroutine only).
func (l *Loop) CallSoon(fn func()) {
	l.ready.Add(fn)
}

// Post hands fn to the loop from any goroutine and wakes the loop.
func (l *Loop) Post(fn func()) error {
	if l.closed.Load() {
		return ErrClosed
	}
	l.postMu.Lock()
	l.posted.Add(fn)
	l.postMu.Unlock()
	return l.poller.wake()
}

// --------------------------------------------------------------------------
// Running
// --------------------------------------------------------------------------

// Run dispatches events until Stop is called or ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer l.running.Store(false)

	stop := context.AfterFunc(ctx, l.Stop)
	defer stop()

	Logger.Debugf("loop started")
	for !l.stopping.Load() {
		if err := l.RunOnce(-1); err != nil {
			return err
		}
	}
	l.stopping.Store(false)
	Logger.Debugf("loop stopped")

	return ctx.Err()
}

// RunOnce performs a single poll and dispatch step. It blocks at most timeout
// (negative means until an event, a due timer or a Post arrives).
func (l *Loop) RunOnce(timeout time.Duration) error {
	if l.closed.Load() {
		return ErrClosed
	}

	l.drainPosted()

	wait := timeout
	if l.ready.Length() > 0 || l.stopping.Load() {
		wait = 0
	} else if deadline, ok := l.timers.next(); ok {
		due := time.Duration(deadline - time.Now().UnixNano())
		if due < 0 {
			due = 0
		}
		if wait < 0 || due < wait {
			wait = due
		}
	}

	if err := l.poller.wait(wait, l.dispatch); err != nil {
		return err
	}

	l.drainPosted()
	l.timers.popExpired(time.Now().UnixNano(), func(fn func()) { l.ready.Add(fn) })

	// callbacks queued while dispatching run in the next step
	for n := l.ready.Length(); n > 0; n-- {
		l.invoke(l.ready.Remove().(func()))
	}
	return nil
}

// Stop makes Run return after the current step. Safe from any goroutine.
func (l *Loop) Stop() {
	l.stopping.Store(true)
	if l.closed.Load() {
		return
	}
	if err := l.poller.wake(); err != nil {
		Logger.Warningf("failed to wake loop: %v", err)
	}
}

// Close releases the poller. The loop must not be running.
func (l *Loop) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	return l.poller.close()
}

// Pending returns the number of armed timers and registered descriptors
// (loop goroutine only).
func (l *Loop) Pending() (timers, readers, writers int) {
	return l.timers.Len(), len(l.readers), len(l.writers)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// dispatch queues the registered callbacks of a ready descriptor
func (l *Loop) dispatch(fd int, readable, writable bool) {
	if readable {
		if cb, ok := l.readers[fd]; ok {
			l.ready.Add(cb.run)
		}
	}
	if writable {
		if cb, ok := l.writers[fd]; ok {
			l.ready.Add(cb.run)
		}
	}
}

func (cb *fdCallback) run() {
	if !cb.removed {
		cb.fn()
	}
}

// drainPosted moves cross-goroutine posts into the ready queue
func (l *Loop) drainPosted() {
	l.postMu.Lock()
	for l.posted.Length() > 0 {
		l.ready.Add(l.posted.Remove())
	}
	l.postMu.Unlock()
}

// invoke runs a callback, a panicking callback must not take the loop down
func (l *Loop) invoke(fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			Logger.Errorf("callback panicked: %v", r)
		}
	}()
	fn()
}
