/*
Copyright AppsCode Inc. and Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package session

import (
	"sync"
	"time"

	"github.com/eapache/queue"
)

// FIFO is the unbounded, thread-safe queue backing C2 (outgoing), C3
// (pending) and C6 (waiting events) from spec.md §3. The ring buffer
// itself is github.com/eapache/queue, the same dependency the ambient
// pack reaches for on the receive side of a socket pump
// (momentics-hioload-ws's pump.go/ring_buffer.go); the blocking-take-
// with-timeout semantics spec.md §4.2 step 3 needs are layered on top
// with a dedicated wake channel rather than a condition variable, so
// that Take honors a timeout and a cancellation signal at once.
type FIFO struct {
	mu     sync.Mutex
	items  *queue.Queue
	notify chan struct{}
	wake   chan struct{}
}

// NewFIFO returns an empty FIFO.
func NewFIFO() *FIFO {
	return &FIFO{
		items:  queue.New(),
		notify: make(chan struct{}, 1),
		wake:   make(chan struct{}, 1),
	}
}

// Push appends v and wakes at most one blocked Take/TakeTimeout caller.
func (f *FIFO) Push(v any) {
	f.mu.Lock()
	f.items.Add(v)
	f.mu.Unlock()
	f.signal()
}

// Wake makes one pending TakeTimeout caller return (nil, false) without
// adding an item; a Wake that arrives while no TakeTimeout is blocked is
// held for the next one that finds the queue empty. Take does not
// observe it. This replaces the "queue a null sentinel" trick spec.md §9 flags
// as a design smell in the original implementation: the receive path
// uses this to wake the send loop on socket death (spec.md §4.3 step 1)
// instead of pushing a fake packet that downstream code must special-
// case.
func (f *FIFO) Wake() {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *FIFO) signal() {
	select {
	case f.notify <- struct{}{}:
	default:
	}
}

// TryPop removes and returns the front item, if any, without blocking.
func (f *FIFO) TryPop() (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.items.Length() == 0 {
		return nil, false
	}
	return f.items.Remove(), true
}

// Peek returns the front item without removing it.
func (f *FIFO) Peek() (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.items.Length() == 0 {
		return nil, false
	}
	return f.items.Peek(), true
}

// Len reports the current queue depth.
func (f *FIFO) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items.Length()
}

// DrainAll removes and returns every queued item, front to back.
func (f *FIFO) DrainAll() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.items.Length()
	if n == 0 {
		return nil
	}
	out := make([]any, 0, n)
	for f.items.Length() > 0 {
		out = append(out, f.items.Remove())
	}
	return out
}

// TakeTimeout blocks for up to d for an item to become available (or a
// Wake call), returning (nil, false) on timeout or on cancel closing.
// d <= 0 is treated as "no wait": a single non-blocking attempt.
func (f *FIFO) TakeTimeout(d time.Duration, cancel <-chan struct{}) (any, bool) {
	if v, ok := f.TryPop(); ok {
		return v, true
	}
	if d <= 0 {
		return nil, false
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-f.notify:
			if v, ok := f.TryPop(); ok {
				return v, true
			}
			// Spurious wake (e.g. another goroutine won the race, or a
			// stale signal from an item already popped): keep waiting
			// out the remaining budget.
			continue
		case <-f.wake:
			return nil, false
		case <-timer.C:
			return nil, false
		case <-cancel:
			return nil, false
		}
	}
}

// Take blocks indefinitely for an item to become available, returning
// (nil, false) only if cancel closes first. This backs C6's unbounded
// take (spec.md §5: "C6 suspends in the unbounded take on the event
// queue").
func (f *FIFO) Take(cancel <-chan struct{}) (any, bool) {
	for {
		if v, ok := f.TryPop(); ok {
			return v, true
		}
		select {
		case <-f.notify:
			continue
		case <-cancel:
			return nil, false
		}
	}
}
