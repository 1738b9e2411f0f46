// Package sequence holds ordered containers.
package sequence

import "container/heap"

type timedItem[T any] struct {
	at    float64
	order uint64
	value T
}

type timedHeap[T any] struct {
	items []timedItem[T]
}

func (h *timedHeap[T]) Len() int { return len(h.items) }

func (h *timedHeap[T]) Less(i, j int) bool {
	if h.items[i].at != h.items[j].at {
		return h.items[i].at < h.items[j].at
	}
	return h.items[i].order < h.items[j].order
}

func (h *timedHeap[T]) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *timedHeap[T]) Push(x any) { h.items = append(h.items, x.(timedItem[T])) }

func (h *timedHeap[T]) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	old[n-1] = timedItem[T]{}
	h.items = old[:n-1]
	return item
}

// Timeline releases values in time order. Values pushed with equal times
// come out in push order. Not safe for concurrent use.
type Timeline[T any] struct {
	h     timedHeap[T]
	order uint64
}

func NewTimeline[T any]() *Timeline[T] {
	t := &Timeline[T]{}
	heap.Init(&t.h)
	return t
}

func (t *Timeline[T]) Push(at float64, value T) {
	t.order++
	heap.Push(&t.h, timedItem[T]{at: at, order: t.order, value: value})
}

// Peek returns the earliest value and its time.
func (t *Timeline[T]) Peek() (T, float64, bool) {
	if t.h.Len() == 0 {
		var zero T
		return zero, 0, false
	}
	item := t.h.items[0]
	return item.value, item.at, true
}

// PopDue removes and returns, in order, every value whose time is <= now.
func (t *Timeline[T]) PopDue(now float64) []T {
	var out []T
	for t.h.Len() > 0 && t.h.items[0].at <= now {
		out = append(out, heap.Pop(&t.h).(timedItem[T]).value)
	}
	return out
}

func (t *Timeline[T]) Len() int { return t.h.Len() }
