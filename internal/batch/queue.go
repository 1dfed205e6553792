// Package batch runs queued work on a fixed set of goroutines.
package batch

import (
	"sync"
)

// Queue is an unbounded FIFO drained by a fixed number of workers.
//
// Push never blocks: excess work waits in the queue instead of spawning more
// goroutines. Close stops accepting work, lets the workers finish what is
// already queued, and waits for them to exit.
type Queue[T any] struct {
	handle func(T)

	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	active int
	closed bool

	wg sync.WaitGroup
}

// NewQueue starts workers goroutines (at least one) that call handle for
// each pushed item. A panic in handle is recovered and the item dropped.
func NewQueue[T any](workers int, handle func(T)) *Queue[T] {
	q := &Queue[T]{handle: handle}
	q.cond = sync.NewCond(&q.mu)
	for range max(workers, 1) {
		q.wg.Add(1)
		go q.work()
	}
	return q
}

// Push appends items. It reports false, dropping the items, after Close.
func (q *Queue[T]) Push(items ...T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, items...)
	// Broadcast: Wait shares the condition with idle workers.
	q.cond.Broadcast()
	return true
}

// Len returns the number of items not yet picked up by a worker.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Wait blocks until the queue is empty and no item is being handled.
func (q *Queue[T]) Wait() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) > 0 || q.active > 0 {
		q.cond.Wait()
	}
}

// Close drains the queue and stops the workers. It is safe to call more
// than once.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue[T]) work() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.items) == 0 {
			q.mu.Unlock()
			return
		}
		item := q.items[0]
		var zero T
		q.items[0] = zero
		q.items = q.items[1:]
		q.active++
		q.mu.Unlock()

		q.run(item)

		q.mu.Lock()
		q.active--
		if len(q.items) == 0 && q.active == 0 {
			q.cond.Broadcast()
		}
		q.mu.Unlock()
	}
}

func (q *Queue[T]) run(item T) {
	defer func() {
		_ = recover() //nolint:errcheck // a failed item must not kill the worker
	}()
	q.handle(item)
}
