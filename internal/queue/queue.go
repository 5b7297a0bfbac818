// Package queue implements C7, the BackpressureQueue: a capacity-bounded
// priority queue that, on overflow, evicts the lowest-priority entry
// rather than rejecting the newest arrival — so a burst of low-value
// transactions never starves out a high-value one already queued.
//
// Two heaps share the same underlying items: a max-heap to serve Pop() in
// priority order and a min-heap to find the eviction candidate in O(log
// n). Each item tracks its own slot in both, the same way go-ethereum's
// blobpool evictHeap tracks an account's single heap slot, extended here
// to two independently-indexed heaps instead of one.
package queue

import (
	"container/heap"
	"sync"

	"github.com/lux-mev/searcher/internal/errs"
)

// Priority is higher-is-more-important; Pop always returns the highest
// priority item present.
type Priority int64

type item struct {
	value    interface{}
	priority Priority
	maxIdx   int
	minIdx   int
}

type maxHeap []*item

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].priority > h[j].priority }
func (h maxHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].maxIdx, h[j].maxIdx = i, j
}
func (h *maxHeap) Push(x interface{}) {
	it := x.(*item)
	it.maxIdx = len(*h)
	*h = append(*h, it)
}
func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.maxIdx = -1
	*h = old[:n-1]
	return it
}

type minHeap []*item

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return h[i].priority < h[j].priority }
func (h minHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].minIdx, h[j].minIdx = i, j
}
func (h *minHeap) Push(x interface{}) {
	it := x.(*item)
	it.minIdx = len(*h)
	*h = append(*h, it)
}
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.minIdx = -1
	*h = old[:n-1]
	return it
}

// Queue is a bounded, thread-safe priority queue. Capacity 0 is treated as
// unbounded (no eviction ever triggers).
type Queue struct {
	mu       sync.Mutex
	max      maxHeap
	min      minHeap
	capacity int
}

// New builds a Queue with the given capacity.
func New(capacity int) *Queue {
	q := &Queue{capacity: capacity}
	heap.Init(&q.max)
	heap.Init(&q.min)
	return q
}

// Push inserts value at priority. If the queue is at capacity, the current
// lowest-priority entry is evicted first; if value's own priority would
// itself be the new lowest (no room is freed by evicting anything else),
// Push returns errs.QueueOverflow and the queue is left unchanged.
func (q *Queue) Push(value interface{}, priority Priority) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.capacity > 0 && len(q.max) >= q.capacity {
		lowest := q.min[0]
		if lowest.priority >= priority {
			return errs.New(errs.StageIngest, errs.QueueOverflow, errs.Operational)
		}
		heap.Remove(&q.max, lowest.maxIdx)
		heap.Remove(&q.min, lowest.minIdx)
	}

	it := &item{value: value, priority: priority}
	heap.Push(&q.max, it)
	heap.Push(&q.min, it)
	return nil
}

// Pop removes and returns the highest-priority value. ok is false if the
// queue is empty.
func (q *Queue) Pop() (value interface{}, priority Priority, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.max) == 0 {
		return nil, 0, false
	}
	it := heap.Pop(&q.max).(*item)
	heap.Remove(&q.min, it.minIdx)
	return it.value, it.priority, true
}

// Len returns the current number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.max)
}

// Capacity returns the bound passed to New; 0 means unbounded.
func (q *Queue) Capacity() int {
	return q.capacity
}

// FeePercentile returns the percentile rank, in [0,100], of priority among
// the fees of entries currently queued: the fraction of queued entries at
// or below priority. An empty queue has no competitor signal and returns
// the neutral midpoint, 50.
func (q *Queue) FeePercentile(priority Priority) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.max) == 0 {
		return 50
	}
	atOrBelow := 0
	for _, it := range q.max {
		if it.priority <= priority {
			atOrBelow++
		}
	}
	return atOrBelow * 100 / len(q.max)
}
