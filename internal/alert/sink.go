// Package alert defines the AlertSink egress contract and a default
// bounded, priority-ordered in-memory implementation, per spec.md §6.
// The outbound notification channel itself (message formatter, chat
// gateway, job queue) is an explicit non-goal of spec.md §1; Sink only
// models the ordered, retry-budgeted handoff to that external collaborator.
package alert

import (
	"container/heap"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/metrics"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/opportunity"
)

// Sink is the only egress for detection results, per spec.md §6. The core
// never formats user-visible messages; it only enqueues typed events with
// a priority and a retry budget.
type Sink interface {
	Enqueue(event opportunity.AlertEvent, retries int) error
}

type item struct {
	event   opportunity.AlertEvent
	retries int
	seq     int
	index   int
}

// priorityQueue orders by Priority descending, then FIFO within equal
// priority (lower seq first).
type priorityQueue []*item

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].event.Priority != pq[j].event.Priority {
		return pq[i].event.Priority > pq[j].event.Priority
	}
	return pq[i].seq < pq[j].seq
}
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index, pq[j].index = i, j
}
func (pq *priorityQueue) Push(x any) {
	it := x.(*item)
	it.index = len(*pq)
	*pq = append(*pq, it)
}
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return it
}

// QueueSink is a bounded in-memory priority queue. When full, the lowest
// priority item is evicted to make room for an enqueue, matching
// "backpressure on sink" being the engine's problem to tolerate, not the
// queue's to block on, per spec.md §7 (BackpressureOnSink is retried by
// the caller, not blocked on indefinitely here).
type QueueSink struct {
	mu       sync.Mutex
	pq       priorityQueue
	capacity int
	nextSeq  int
	logger   zerolog.Logger
	metrics  *metrics.Registry
}

// NewQueueSink builds a bounded priority sink of the given capacity.
func NewQueueSink(capacity int, logger zerolog.Logger, reg *metrics.Registry) *QueueSink {
	if capacity <= 0 {
		capacity = 1000
	}
	return &QueueSink{capacity: capacity, logger: logger, metrics: reg}
}

// Enqueue adds event to the queue, evicting the lowest-priority item if at
// capacity. retries records the remaining retry budget reported by the
// caller; QueueSink itself does not retry — it only orders and bounds.
func (s *QueueSink) Enqueue(event opportunity.AlertEvent, retries int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pq) >= s.capacity {
		heap.Remove(&s.pq, s.worstIndex())
		s.logger.Warn().Msg("alert sink at capacity, evicting lowest priority event")
	}

	it := &item{event: event, retries: retries, seq: s.nextSeq}
	s.nextSeq++
	heap.Push(&s.pq, it)

	if s.metrics != nil {
		s.metrics.AlertsEnqueued.WithLabelValues(string(event.Kind)).Inc()
	}
	return nil
}

// worstIndex returns the index of the lowest-priority item in the heap
// (highest seq among ties), the one Enqueue evicts when at capacity. The
// heap array only orders its root correctly; the tail must be scanned.
func (s *QueueSink) worstIndex() int {
	worst := 0
	for i := 1; i < len(s.pq); i++ {
		if s.pq[worst].event.Priority > s.pq[i].event.Priority ||
			(s.pq[worst].event.Priority == s.pq[i].event.Priority && s.pq[worst].seq < s.pq[i].seq) {
			worst = i
		}
	}
	return worst
}

// Dequeue removes and returns the highest-priority pending event, for a
// delivery worker to drain. ok is false when the queue is empty.
func (s *QueueSink) Dequeue() (opportunity.AlertEvent, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pq) == 0 {
		return opportunity.AlertEvent{}, 0, false
	}
	it := heap.Pop(&s.pq).(*item)
	return it.event, it.retries, true
}

// Len reports the number of events currently queued.
func (s *QueueSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pq)
}

// Requeue re-enqueues event with retries-1 remaining, or logs a terminal
// failure and drops it if the budget is exhausted, per spec.md §7's
// BackpressureOnSink handling: terminal failure drops the event and is
// logged; the active-opportunity state is unaffected.
func (s *QueueSink) Requeue(event opportunity.AlertEvent, retries int) {
	if retries <= 0 {
		s.logger.Error().Str("id", event.ID).Msg("alert delivery retry budget exhausted, dropping event")
		return
	}
	_ = s.Enqueue(event, retries-1)
}
