package iops

import (
	"errors"
	"testing"
	"time"

	"github.com/ValentinKolb/dDoc/lib/reactor"
)

// --------------------------------------------------------------------------
// Fake Loop
// --------------------------------------------------------------------------

type fakeHandle struct {
	loop      *fakeLoop
	id        int
	cancelled bool
}

func (h *fakeHandle) Cancel() {
	if !h.cancelled {
		h.cancelled = true
		h.loop.cancels++
	}
}

type fakeTimer struct {
	delay  time.Duration
	fn     func()
	handle *fakeHandle
}

type fakeLoop struct {
	readers  map[int]func()
	writers  map[int]func()
	timers   []*fakeTimer
	cancels  int
	failRead bool
}

func newFakeLoop() *fakeLoop {
	return &fakeLoop{
		readers: make(map[int]func()),
		writers: make(map[int]func()),
	}
}

func (l *fakeLoop) AddReader(fd int, fn func()) error {
	if l.failRead {
		return errors.New("refused")
	}
	l.readers[fd] = fn
	return nil
}

func (l *fakeLoop) RemoveReader(fd int) bool {
	_, ok := l.readers[fd]
	delete(l.readers, fd)
	return ok
}

func (l *fakeLoop) AddWriter(fd int, fn func()) error {
	l.writers[fd] = fn
	return nil
}

func (l *fakeLoop) RemoveWriter(fd int) bool {
	_, ok := l.writers[fd]
	delete(l.writers, fd)
	return ok
}

func (l *fakeLoop) CallLater(d time.Duration, fn func()) reactor.Handle {
	h := &fakeHandle{loop: l, id: len(l.timers)}
	l.timers = append(l.timers, &fakeTimer{delay: d, fn: fn, handle: h})
	return h
}

// fire runs every armed timer once
func (l *fakeLoop) fire() int {
	pending := l.timers
	l.timers = nil
	fired := 0
	for _, t := range pending {
		if t.handle.cancelled {
			continue
		}
		t.handle.cancelled = true
		t.fn()
		fired++
	}
	return fired
}

func (l *fakeLoop) armed() int {
	n := 0
	for _, t := range l.timers {
		if !t.handle.cancelled {
			n++
		}
	}
	return n
}

// --------------------------------------------------------------------------
// Timer Tests
// --------------------------------------------------------------------------

// TestTimerScheduleFiresOnce tests that an armed timer fires exactly once
func TestTimerScheduleFiresOnce(t *testing.T) {
	loop := newFakeLoop()
	a := New(loop)

	fired := 0
	timer := a.TimerEventFactory(func() { fired++ })
	if timer.Armed() {
		t.Fatal("Fresh timer should not be armed")
	}

	a.UpdateTimer(timer, ActionWatch, 1500)
	if !timer.Armed() {
		t.Fatal("Timer should be armed after WATCH")
	}
	if loop.timers[0].delay != 1500*time.Microsecond {
		t.Errorf("Expected delay of 1.5ms, got %s", loop.timers[0].delay)
	}

	loop.fire()
	loop.fire()
	if fired != 1 {
		t.Errorf("Expected one fire, got %d", fired)
	}
	if timer.Armed() {
		t.Error("Timer should not be armed after firing")
	}
}

// TestTimerRearmCancelsPrevious tests that re-arming leaves only the latest arm pending
func TestTimerRearmCancelsPrevious(t *testing.T) {
	loop := newFakeLoop()
	a := New(loop)

	fired := 0
	timer := a.TimerEventFactory(func() { fired++ })

	a.UpdateTimer(timer, ActionWatch, 10)
	a.UpdateTimer(timer, ActionWatch, 20)
	timer.Schedule(loop, 30)

	if loop.armed() != 1 {
		t.Fatalf("Expected exactly one armed timer, got %d", loop.armed())
	}
	loop.fire()
	if fired != 1 {
		t.Errorf("Expected one fire, got %d", fired)
	}
}

// TestTimerUnwatch tests that UNWATCH prevents the fire and repeated cancel is harmless
func TestTimerUnwatch(t *testing.T) {
	loop := newFakeLoop()
	a := New(loop)

	fired := false
	timer := a.TimerEventFactory(func() { fired = true })

	// cancel on a never armed timer
	timer.Cancel()
	a.UpdateTimer(timer, ActionUnwatch, 0)

	a.UpdateTimer(timer, ActionWatch, 5)
	a.UpdateTimer(timer, ActionUnwatch, 0)
	timer.Cancel()

	if loop.fire() != 0 || fired {
		t.Error("Unwatched timer fired")
	}
	if loop.cancels != 1 {
		t.Errorf("Expected one cancel on the loop handle, got %d", loop.cancels)
	}
}

// TestTimerStaleArm tests that the callback of a replaced arm neither fires
// nor disarms the current one
func TestTimerStaleArm(t *testing.T) {
	loop := newFakeLoop()
	a := New(loop)

	fired := 0
	timer := a.TimerEventFactory(func() { fired++ })
	a.UpdateTimer(timer, ActionWatch, 10)
	stale := loop.timers[0].fn
	a.UpdateTimer(timer, ActionWatch, 20)

	stale()
	if fired != 0 {
		t.Errorf("Stale arm fired %d times", fired)
	}
	if !timer.Armed() {
		t.Fatal("Current arm should survive the stale callback")
	}
	loop.fire()
	if fired != 1 || timer.Armed() {
		t.Errorf("Expected one fire of the current arm, got %d (armed=%v)", fired, timer.Armed())
	}
}

// TestUsecToDuration tests the conversion and its saturation
func TestUsecToDuration(t *testing.T) {
	tests := map[string]struct {
		usec uint64
		want time.Duration
	}{
		"Zero":      {0, 0},
		"Millis":    {1500, 1500 * time.Microsecond},
		"Saturated": {1 << 63, time.Duration(1<<63 - 1)},
		"MaxUint":   {^uint64(0), time.Duration(1<<63 - 1)},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := usecToDuration(tc.usec); got != tc.want {
				t.Errorf("Expected %d, got %d", tc.want, got)
			}
		})
	}
}

// --------------------------------------------------------------------------
// Event Tests
// --------------------------------------------------------------------------

// TestUpdateEventWatch tests that WATCH registers each requested direction
func TestUpdateEventWatch(t *testing.T) {
	loop := newFakeLoop()
	a := New(loop)
	ev := a.IOEventFactory(7, nil, nil)

	if ev.Watched() != 0 {
		t.Fatalf("Fresh event should have empty mask, got %s", ev.Watched())
	}

	if err := a.UpdateEvent(ev, ActionWatch, EventRW); err != nil {
		t.Fatalf("UpdateEvent failed: %v", err)
	}
	if ev.Watched() != EventRW {
		t.Errorf("Expected READ|WRITE, got %s", ev.Watched())
	}
	if _, ok := loop.readers[7]; !ok {
		t.Error("Reader not registered")
	}
	if _, ok := loop.writers[7]; !ok {
		t.Error("Writer not registered")
	}
}

// TestReadReadyFiresOnce tests the fire-once contract of the read hook
func TestReadReadyFiresOnce(t *testing.T) {
	loop := newFakeLoop()
	a := New(loop)

	reads := 0
	var ev *Event
	ev = a.IOEventFactory(3, func() {
		reads++
		if ev.Watched()&EventRead != 0 {
			t.Error("READ bit must be cleared before the engine callback runs")
		}
		if _, ok := loop.readers[3]; ok {
			t.Error("Reader must be removed before the engine callback runs")
		}
	}, nil)

	if err := a.UpdateEvent(ev, ActionWatch, EventRead); err != nil {
		t.Fatalf("UpdateEvent failed: %v", err)
	}

	loop.readers[3]()
	if reads != 1 {
		t.Errorf("Expected one read notification, got %d", reads)
	}
	if _, ok := loop.readers[3]; ok {
		t.Error("Reader still registered after fire")
	}
}

// TestWriteReadyKeepsRead tests that a write fire leaves the read registration alone
func TestWriteReadyKeepsRead(t *testing.T) {
	loop := newFakeLoop()
	a := New(loop)

	writes := 0
	ev := a.IOEventFactory(4, nil, func() { writes++ })
	if err := a.UpdateEvent(ev, ActionWatch, EventRW); err != nil {
		t.Fatalf("UpdateEvent failed: %v", err)
	}

	loop.writers[4]()
	if writes != 1 {
		t.Errorf("Expected one write notification, got %d", writes)
	}
	if ev.Watched() != EventRead {
		t.Errorf("Expected READ after write fire, got %s", ev.Watched())
	}
	if _, ok := loop.readers[4]; !ok {
		t.Error("Reader should still be registered")
	}
}

// TestUpdateEventUnwatch tests that UNWATCH removes everything and clears the mask
func TestUpdateEventUnwatch(t *testing.T) {
	loop := newFakeLoop()
	a := New(loop)
	ev := a.IOEventFactory(5, nil, nil)

	_ = a.UpdateEvent(ev, ActionWatch, EventRW)
	if err := a.UpdateEvent(ev, ActionUnwatch, 0); err != nil {
		t.Fatalf("UpdateEvent failed: %v", err)
	}

	if ev.Watched() != 0 {
		t.Errorf("Expected empty mask, got %s", ev.Watched())
	}
	if len(loop.readers) != 0 || len(loop.writers) != 0 {
		t.Error("Registrations left after UNWATCH")
	}

	// unwatching twice is harmless
	if err := a.UpdateEvent(ev, ActionUnwatch, EventRW); err != nil {
		t.Errorf("Second UNWATCH failed: %v", err)
	}
}

// TestWatchReplacesMask tests that WATCH sets the mask to the requested flags
// while previously registered directions stay with the loop
func TestWatchReplacesMask(t *testing.T) {
	loop := newFakeLoop()
	a := New(loop)
	ev := a.IOEventFactory(6, nil, nil)

	_ = a.UpdateEvent(ev, ActionWatch, EventRW)
	_ = a.UpdateEvent(ev, ActionWatch, EventRead)

	if ev.Watched() != EventRead {
		t.Errorf("Expected mask READ, got %s", ev.Watched())
	}
	if _, ok := loop.writers[6]; !ok {
		t.Error("Writer should remain registered with the loop")
	}

	// re-watching WRITE registers it again (replacing the old registration)
	_ = a.UpdateEvent(ev, ActionWatch, EventWrite)
	if ev.Watched() != EventWrite {
		t.Errorf("Expected mask WRITE, got %s", ev.Watched())
	}
}

// TestUpdateEventError tests that a refused registration is reported
func TestUpdateEventError(t *testing.T) {
	loop := newFakeLoop()
	loop.failRead = true
	a := New(loop)
	ev := a.IOEventFactory(8, nil, nil)

	if err := a.UpdateEvent(ev, ActionWatch, EventRead); err == nil {
		t.Fatal("Expected error from refused registration")
	}
	if ev.Watched() != 0 {
		t.Errorf("Mask should stay empty after refused registration, got %s", ev.Watched())
	}
}

// TestStartStopWatching tests that the watching hooks have no effect
func TestStartStopWatching(t *testing.T) {
	loop := newFakeLoop()
	a := New(loop)
	a.StartWatching()
	a.StopWatching()
	if len(loop.readers)+len(loop.writers)+len(loop.timers) != 0 {
		t.Error("StartWatching/StopWatching must not touch the loop")
	}
	if a.Loop() != Loop(loop) {
		t.Error("Adapter should expose the bound loop")
	}
}
