// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import "sync"

// queue is an unbounded FIFO. Push never blocks, which is what lets
// the transport's receive callback hand work to the server consumer
// without ever stalling on a slow handler.
type queue[T any] struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond
	items    []T
	closed   bool
}

func newQueue[T any]() *queue[T] {
	q := &queue[T]{}
	q.nonEmpty = sync.NewCond(&q.mu)
	return q
}

// Push appends item. It reports false, discarding item, if the queue
// is closed.
func (q *queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, item)
	q.nonEmpty.Signal()
	return true
}

// Pop blocks until an item is available or the queue is closed. Once
// closed, Pop returns false immediately; items still queued are
// discarded.
func (q *queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.nonEmpty.Wait()
	}
	var zero T
	if q.closed {
		q.items = nil
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

// Len returns the number of queued items.
func (q *queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops intake and wakes every blocked Pop. Idempotent.
func (q *queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.nonEmpty.Broadcast()
}
