package events

import "sync"

// RingBuffer keeps the most recent events in memory, oldest evicted first.
type RingBuffer struct {
	mu    sync.RWMutex
	slots []Event
	next  int
	count int
	total uint64
}

func NewRingBuffer(size int) *RingBuffer {
	if size < 1 {
		size = 1
	}
	return &RingBuffer{slots: make([]Event, size)}
}

func (rb *RingBuffer) Add(e Event) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.slots[rb.next] = e
	rb.next = (rb.next + 1) % len(rb.slots)
	if rb.count < len(rb.slots) {
		rb.count++
	}
	rb.total++
}

// Snapshot returns the buffered events in emission order.
func (rb *RingBuffer) Snapshot() []Event {
	return rb.Filter(nil)
}

// Last returns up to n of the newest events in emission order. n <= 0
// means all of them.
func (rb *RingBuffer) Last(n int) []Event {
	all := rb.Snapshot()
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

// Filter returns the buffered events for which keep is true, in emission
// order. A nil keep matches everything.
func (rb *RingBuffer) Filter(keep func(Event) bool) []Event {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	out := make([]Event, 0, rb.count)
	start := (rb.next - rb.count + len(rb.slots)) % len(rb.slots)
	for i := 0; i < rb.count; i++ {
		e := rb.slots[(start+i)%len(rb.slots)]
		if keep == nil || keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// Total is the number of events added since the last Clear.
func (rb *RingBuffer) Total() uint64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.total
}

func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.slots = make([]Event, len(rb.slots))
	rb.next, rb.count, rb.total = 0, 0, 0
}
