// Copyright 2024 The Cockroach Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

// Adapted from https://github.com/cockroachdb/fifo/blob/0bbfbd93/queue.go

// Package fifo provides the queue backing the debugger-thread dispatcher.
package fifo

// Queue is a FIFO queue of values. It is not safe for concurrent access.
//
// It is a linked list of fixed-size ring buffers; emptied rings are kept on a
// free list and reused, so a queue that is repeatedly filled and drained
// stops allocating.
type Queue[T any] struct {
	len        int
	head, tail *ring[T]
	free       *ring[T]
}

// Len returns the number of queued values.
func (q *Queue[T]) Len() int {
	return q.len
}

// PushBack appends t.
func (q *Queue[T]) PushBack(t T) {
	switch {
	case q.head == nil:
		q.head = q.newRing()
		q.tail = q.head
	case q.tail.full():
		r := q.newRing()
		q.tail.next = r
		q.tail = r
	}
	q.tail.push(t)
	q.len++
}

// PopFront removes and returns the oldest value. ok is false if the queue is
// empty.
func (q *Queue[T]) PopFront() (t T, ok bool) {
	if q.len == 0 {
		return t, false
	}
	t = q.head.pop()
	q.len--
	if q.head.len == 0 {
		old := q.head
		q.head = old.next
		if q.head == nil {
			q.tail = nil
		}
		q.release(old)
	}
	return t, true
}

// Clear drops every queued value.
func (q *Queue[T]) Clear() {
	for q.len > 0 {
		q.PopFront()
	}
}

func (q *Queue[T]) newRing() *ring[T] {
	if q.free == nil {
		return new(ring[T])
	}
	r := q.free
	q.free = r.next
	r.next = nil
	return r
}

func (q *Queue[T]) release(r *ring[T]) {
	r.head, r.len = 0, 0
	r.next = q.free
	q.free = r
}

// ringSize is the number of values held by one ring. It amortizes
// allocations without holding on to much memory when T is a closure.
const ringSize = 64

type ring[T any] struct {
	buf       [ringSize]T
	head, len int
	next      *ring[T]
}

func (r *ring[T]) full() bool {
	return r.len == ringSize
}

func (r *ring[T]) push(t T) {
	r.buf[(r.head+r.len)%ringSize] = t
	r.len++
}

func (r *ring[T]) pop() T {
	t := r.buf[r.head]
	var zero T
	r.buf[r.head] = zero
	r.head = (r.head + 1) % ringSize
	r.len--
	return t
}
