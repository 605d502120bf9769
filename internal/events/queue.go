package events

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Queue is a priority queue over events. Equal priorities pop in arrival
// order. All methods are safe for concurrent use.
type Queue struct {
	mu     sync.Mutex
	items  eventHeap
	seq    uint64
	notify chan struct{}
}

func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Push admits an event.
func (q *Queue) Push(event *Event) {
	q.mu.Lock()
	q.seq++
	heap.Push(&q.items, &queueItem{event: event, seq: q.seq})
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop removes the highest-priority event, waiting up to wait for one to
// arrive. Returns false on timeout or context cancellation.
func (q *Queue) Pop(ctx context.Context, wait time.Duration) (*Event, bool) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if q.items.Len() > 0 {
			item := heap.Pop(&q.items).(*queueItem)
			q.mu.Unlock()
			return item.event, true
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-timer.C:
			return nil, false
		case <-ctx.Done():
			return nil, false
		}
	}
}

// Len reports the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

type queueItem struct {
	event *Event
	seq   uint64
}

type eventHeap []*queueItem

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].event.Priority != h[j].event.Priority {
		return h[i].event.Priority < h[j].event.Priority
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x interface{}) {
	*h = append(*h, x.(*queueItem))
}

func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
