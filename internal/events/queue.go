// Package events provides the mailbox primitive used by every actor in the
// server: a multi-producer, single-consumer queue with three delivery
// classes (normal, immediate, timed).
package events

import (
	"container/heap"
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	normalDepth    = 1024
	immediateDepth = 64
	timerDepth     = 64
)

// timed pairs an event with the instant it becomes deliverable.
type timed[E any] struct {
	at    time.Time
	seq   uint64
	event E
}

// timerHeap is a min-heap of timed events ordered by deadline, with the
// enqueue sequence breaking ties so same-deadline events keep send order.
type timerHeap[E any] struct {
	items []timed[E]
}

func (h *timerHeap[E]) Len() int { return len(h.items) }

func (h *timerHeap[E]) Less(i, j int) bool {
	if h.items[i].at.Equal(h.items[j].at) {
		return h.items[i].seq < h.items[j].seq
	}
	return h.items[i].at.Before(h.items[j].at)
}

func (h *timerHeap[E]) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *timerHeap[E]) Push(x any) { h.items = append(h.items, x.(timed[E])) }

func (h *timerHeap[E]) Pop() any {
	old := h.items
	n := len(old)
	it := old[n-1]
	h.items = old[:n-1]
	return it
}

// Queue is a per-actor mailbox. It must be owned and received from by
// exactly one control loop; any number of producers may hold its Sender.
type Queue[E any] struct {
	normal    chan E
	immediate chan E
	timerIn   chan timed[E]
	done      chan struct{}
	pending   timerHeap[E]
	logger    *zap.Logger
	seq       uint64
}

// NewQueue creates an empty queue. A nil logger disables drop logging.
//
// Postcondition: Returns a queue whose Sender may be handed to other actors.
func NewQueue[E any](logger *zap.Logger) *Queue[E] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue[E]{
		normal:    make(chan E, normalDepth),
		immediate: make(chan E, immediateDepth),
		timerIn:   make(chan timed[E], timerDepth),
		done:      make(chan struct{}),
		logger:    logger,
	}
}

// Sender returns the producer handle for this queue. The zero-cost copy of
// a Sender is the only way other actors may reach the owning loop.
func (q *Queue[E]) Sender() Sender[E] {
	return Sender[E]{
		normal:    q.normal,
		immediate: q.immediate,
		timerIn:   q.timerIn,
		done:      q.done,
		logger:    q.logger,
	}
}

// Close marks the queue closed. Subsequent sends are dropped; events already
// queued remain receivable. Safe to call once, from the owning loop.
func (q *Queue[E]) Close() {
	select {
	case <-q.done:
	default:
		close(q.done)
	}
}

// drainTimers moves any newly-sent timed events into the deadline heap.
func (q *Queue[E]) drainTimers() {
	for {
		select {
		case te := <-q.timerIn:
			q.pushTimed(te)
		default:
			return
		}
	}
}

func (q *Queue[E]) pushTimed(te timed[E]) {
	te.seq = q.seq
	q.seq++
	heap.Push(&q.pending, te)
}

// popDue returns the earliest timed event whose deadline has passed.
func (q *Queue[E]) popDue(now time.Time) (E, bool) {
	if q.pending.Len() > 0 && !q.pending.items[0].at.After(now) {
		te := heap.Pop(&q.pending).(timed[E])
		return te.event, true
	}
	var zero E
	return zero, false
}

// Recv blocks until an event of any class is ready, or ctx is done.
// When both an immediate and a normal event are pending, the immediate one
// is returned first. Timed events become visible once their deadline passes.
//
// Precondition: Called only from the owning control loop.
func (q *Queue[E]) Recv(ctx context.Context) (E, error) {
	for {
		q.drainTimers()

		select {
		case e := <-q.immediate:
			return e, nil
		default:
		}

		if e, ok := q.popDue(time.Now()); ok {
			return e, nil
		}

		var deadlineC <-chan time.Time
		var tm *time.Timer
		if q.pending.Len() > 0 {
			tm = time.NewTimer(time.Until(q.pending.items[0].at))
			deadlineC = tm.C
		}

		select {
		case e := <-q.immediate:
			stopTimer(tm)
			return e, nil
		case e := <-q.normal:
			stopTimer(tm)
			return e, nil
		case te := <-q.timerIn:
			stopTimer(tm)
			q.pushTimed(te)
		case <-deadlineC:
		case <-ctx.Done():
			stopTimer(tm)
			var zero E
			return zero, ctx.Err()
		}
	}
}

// RecvTimeout behaves like Recv but gives up after d.
//
// Postcondition: Returns (event, true) or (zero, false) on timeout.
func (q *Queue[E]) RecvTimeout(d time.Duration) (E, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	e, err := q.Recv(ctx)
	if err != nil {
		var zero E
		return zero, false
	}
	return e, true
}

// TryRecv returns a ready event without blocking.
//
// Postcondition: Returns (event, true) or (zero, false) when nothing is ready.
func (q *Queue[E]) TryRecv() (E, bool) {
	q.drainTimers()

	select {
	case e := <-q.immediate:
		return e, true
	default:
	}

	if e, ok := q.popDue(time.Now()); ok {
		return e, true
	}

	select {
	case e := <-q.normal:
		return e, true
	default:
	}

	var zero E
	return zero, false
}

func stopTimer(tm *time.Timer) {
	if tm != nil {
		tm.Stop()
	}
}

// Sender is the clonable producer half of a Queue. Sends never block and
// never fail observably: a full or closed queue drops the event with a log.
type Sender[E any] struct {
	normal    chan<- E
	immediate chan<- E
	timerIn   chan<- timed[E]
	done      <-chan struct{}
	logger    *zap.Logger
}

// Send delivers e with normal priority. FIFO order is preserved between a
// single sender and the consumer.
func (s Sender[E]) Send(e E) {
	if s.closed() {
		s.drop("queue closed")
		return
	}
	select {
	case s.normal <- e:
	default:
		s.drop("queue full")
	}
}

// SendImmediate delivers e ahead of any pending normal events.
func (s Sender[E]) SendImmediate(e E) {
	if s.closed() {
		s.drop("queue closed")
		return
	}
	select {
	case s.immediate <- e:
	default:
		s.drop("immediate queue full")
	}
}

// SendAfter delivers e with normal priority once d has elapsed. The event
// is invisible to the consumer until then.
func (s Sender[E]) SendAfter(e E, d time.Duration) {
	if s.closed() {
		s.drop("queue closed")
		return
	}
	select {
	case s.timerIn <- timed[E]{at: time.Now().Add(d), event: e}:
	default:
		s.drop("timer queue full")
	}
}

func (s Sender[E]) closed() bool {
	if s.done == nil {
		return true
	}
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s Sender[E]) drop(reason string) {
	if s.logger != nil {
		s.logger.Warn("event dropped", zap.String("reason", reason))
	}
}
