// Package event implements the discrete-event kernel: a priority
// queue of pending events ordered by simulation time with stable
// FIFO tie-break, plus tracking of each node's armed self-timers so
// they can be cancelled by (destination, kind) alone.
package event

import (
	"container/heap"

	"github.com/kprusa/leachsim/internal/proto"
	"github.com/kprusa/leachsim/internal/simtime"
)

// Handler dispatches a delivered event. Sensor and BaseStation are
// the two implementations (spec.md §9's EventHandler trait).
type Handler interface {
	HandleEvent(ev *Event)
}

// Event is a scheduled delivery: either a message addressed to Dst
// from some other node, or a timer Dst armed on itself. An Event has
// no sender field; payloads that need one (Adv, Join, Data) carry it.
type Event struct {
	Time    simtime.Time
	Seq     uint64
	Dst     proto.NodeID
	Kind    proto.Kind
	Payload any

	cancelled bool
	self      bool
	index     int // heap.Interface bookkeeping
}

// Cancelled reports whether the event was removed from the queue
// before it was due to fire. A cancelled self-timer is skipped by Pop.
func (e *Event) Cancelled() bool { return e.cancelled }

type selfKey struct {
	dst  proto.NodeID
	kind proto.Kind
}

// Scheduler owns the pending-event queue and the virtual clock. It is
// not safe for concurrent use: the simulation is single-threaded and
// cooperative by design (see the concurrency model in SPEC_FULL.md).
type Scheduler struct {
	now     simtime.Time
	seq     uint64
	pq      eventHeap
	pending map[selfKey]*Event
}

// NewScheduler returns an empty scheduler with the clock at t=0.
func NewScheduler() *Scheduler {
	return &Scheduler{
		pending: make(map[selfKey]*Event),
	}
}

// Now returns the virtual time of the last popped event (t=0 if
// nothing has been popped yet).
func (s *Scheduler) Now() simtime.Time { return s.now }

// Send schedules a message addressed to dst, to be delivered at t.
// Messages are not cancellable and are not deduplicated: a node may
// have any number of pending inbound messages of the same kind.
func (s *Scheduler) Send(t simtime.Time, dst proto.NodeID, kind proto.Kind, payload any) {
	s.push(&Event{Time: t, Dst: dst, Kind: kind, Payload: payload})
}

// ScheduleSelf arms a timer that owner will receive at t. Per the
// invariant that at most one self-timer of a given kind may be
// pending for a node at once, arming a new one implicitly cancels any
// previously armed timer of the same kind for that owner.
func (s *Scheduler) ScheduleSelf(t simtime.Time, owner proto.NodeID, kind proto.Kind, payload any) *Event {
	key := selfKey{owner, kind}
	if prev, ok := s.pending[key]; ok {
		prev.cancelled = true
	}
	ev := &Event{Time: t, Dst: owner, Kind: kind, Payload: payload, self: true}
	s.pending[key] = ev
	s.push(ev)
	return ev
}

// Cancel removes a pending self-timer identified by (dst, kind). It
// reports whether a pending timer was found and cancelled.
func (s *Scheduler) Cancel(dst proto.NodeID, kind proto.Kind) bool {
	key := selfKey{dst, kind}
	ev, ok := s.pending[key]
	if !ok {
		return false
	}
	ev.cancelled = true
	delete(s.pending, key)
	return true
}

// Pending reports whether owner currently has a live (uncancelled)
// self-timer of the given kind armed.
func (s *Scheduler) Pending(owner proto.NodeID, kind proto.Kind) bool {
	_, ok := s.pending[selfKey{owner, kind}]
	return ok
}

func (s *Scheduler) push(ev *Event) {
	s.seq++
	ev.Seq = s.seq
	heap.Push(&s.pq, ev)
}

// Pop removes and returns the earliest non-cancelled event, advancing
// the virtual clock to its time. It reports false once the queue is
// exhausted.
func (s *Scheduler) Pop() (*Event, bool) {
	for s.pq.Len() > 0 {
		ev := heap.Pop(&s.pq).(*Event)
		if ev.cancelled {
			continue
		}
		if ev.self {
			key := selfKey{ev.Dst, ev.Kind}
			if s.pending[key] == ev {
				delete(s.pending, key)
			}
		}
		s.now = ev.Time
		return ev, true
	}
	return nil, false
}

// Len reports the number of events still pending (including any
// lazily-cancelled entries not yet reclaimed).
func (s *Scheduler) Len() int { return s.pq.Len() }

// eventHeap orders by (Time, Seq): earliest time first, ties broken
// by insertion order (FIFO), matching the ε-ordering contract.
type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].Time != h[j].Time {
		return h[i].Time < h[j].Time
	}
	return h[i].Seq < h[j].Seq
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *eventHeap) Push(x any) {
	ev := x.(*Event)
	ev.index = len(*h)
	*h = append(*h, ev)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	ev.index = -1
	*h = old[:n-1]
	return ev
}
