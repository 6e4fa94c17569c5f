package sim

import "container/heap"

type event struct {
	at  int64
	seq uint64
	fn  func()
}

// eventQueue orders events by time, then by scheduling order.
type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(*event)) }

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return ev
}

// scheduler is a deterministic virtual-time event loop.
type scheduler struct {
	now    int64
	seq    uint64
	events eventQueue
}

func (s *scheduler) at(t int64, fn func()) {
	if t < s.now {
		t = s.now
	}
	s.seq++
	heap.Push(&s.events, &event{at: t, seq: s.seq, fn: fn})
}

// every fires fn at start and then each period until the run ends.
func (s *scheduler) every(start, period int64, fn func()) {
	s.at(start, func() {
		fn()
		s.every(start+period, period, fn)
	})
}

// runUntil processes every event due at or before end.
func (s *scheduler) runUntil(end int64) {
	for len(s.events) > 0 && s.events[0].at <= end {
		ev := heap.Pop(&s.events).(*event)
		s.now = ev.at
		ev.fn()
	}
	if end > s.now {
		s.now = end
	}
}
