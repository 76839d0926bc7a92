package reactor

import (
	"container/heap"
	"strconv"
)

// timerItem is a single scheduled callback. Items are ordered by deadline,
// equal deadlines fire in scheduling order (by id).
type timerItem struct {
	id       uint64 // Unique identifier, used by handles to cancel
	deadline int64  // Unix nanoseconds
	fn       func()
	index    int // Index in the heap, maintained by the heap package
}

func (i *timerItem) String() string {
	return "{ID: " + strconv.FormatUint(i.id, 10) + ", Deadline: " + strconv.FormatInt(i.deadline, 10) + "}"
}

// timerHeap is a min-heap of timers with O(1) access by id.
// It combines container/heap with a map so that cancelled timers
// can be removed in O(log n) instead of being skipped lazily.
// An expired timer stays in the map until its callback runs, so it can
// still be cancelled while it waits in the ready queue.
//
// Not thread-safe, only the loop goroutine touches it.
type timerHeap struct {
	items  []*timerItem
	byID   map[uint64]*timerItem
	nextID uint64
}

func newTimerHeap() *timerHeap {
	return &timerHeap{
		items: make([]*timerItem, 0),
		byID:  make(map[uint64]*timerItem),
	}
}

// Len returns the number of armed timers (part of heap.Interface)
func (h *timerHeap) Len() int { return len(h.items) }

// Less orders by deadline, then by id (part of heap.Interface)
func (h *timerHeap) Less(i, j int) bool {
	if h.items[i].deadline == h.items[j].deadline {
		return h.items[i].id < h.items[j].id
	}
	return h.items[i].deadline < h.items[j].deadline
}

// Swap exchanges items at positions i and j (part of heap.Interface)
func (h *timerHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

// Push adds an item to the heap (part of heap.Interface)
func (h *timerHeap) Push(x interface{}) {
	it := x.(*timerItem)
	it.index = len(h.items)
	h.items = append(h.items, it)
	h.byID[it.id] = it
}

// Pop removes and returns the last item (part of heap.Interface)
func (h *timerHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil // Avoid memory leak
	it.index = -1
	h.items = old[:n-1]
	return it
}

// schedule arms a new timer and returns its id
func (h *timerHeap) schedule(deadline int64, fn func()) uint64 {
	h.nextID++
	heap.Push(h, &timerItem{
		id:       h.nextID,
		deadline: deadline,
		fn:       fn,
	})
	return h.nextID
}

// cancel disarms the timer with the given id.
// Returns false if the timer already fired or was cancelled before.
func (h *timerHeap) cancel(id uint64) bool {
	it, ok := h.byID[id]
	if !ok {
		return false
	}
	if it.index >= 0 {
		heap.Remove(h, it.index)
	}
	delete(h.byID, id)
	it.fn = nil
	return true
}

// armed reports whether the timer with the given id is still pending,
// either in the heap or expired and waiting to run
func (h *timerHeap) armed(id uint64) bool {
	_, ok := h.byID[id]
	return ok
}

// next returns the earliest deadline, if any
func (h *timerHeap) next() (int64, bool) {
	if len(h.items) == 0 {
		return 0, false
	}
	return h.items[0].deadline, true
}

// popExpired removes every timer with deadline <= now from the heap and
// hands a runner to emit, earliest first. The runner does nothing if the
// timer was cancelled in between.
func (h *timerHeap) popExpired(now int64, emit func(fn func())) int {
	count := 0
	for len(h.items) > 0 && h.items[0].deadline <= now {
		it := heap.Pop(h).(*timerItem)
		emit(func() { h.fire(it) })
		count++
	}
	return count
}

// fire runs an expired timer unless it was cancelled
func (h *timerHeap) fire(it *timerItem) {
	fn := it.fn
	if fn == nil {
		return
	}
	it.fn = nil
	delete(h.byID, it.id)
	fn()
}
