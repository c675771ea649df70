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

import "fmt"

// queuedEvent pairs a WatchedEvent with the watchers already
// materialized for it at enqueue time (spec.md §4.7 step 1). Carrying
// the materialized set through the queue, rather than re-querying the
// registry at dispatch time, is what makes "later re-registration does
// not change who this event is delivered to" hold.
type queuedEvent struct {
	event    WatchedEvent
	watchers []Watcher
}

// runConsumer is C6, spec.md §4.7: a single goroutine blocking on the
// waiting-events queue, invoking materialized watchers one event at a
// time. Grounded on the teacher's vendored Conn.eventLoop
// (vendor/.../conn.go:530-582), adapted to add the session-state dedup
// spec.md requires (dedup already happened at enqueue time in
// Session.queueEvent; this loop only dispatches).
func (s *Session) runConsumer() {
	defer close(s.consumerDone)
	for {
		item, ok := s.events.Take(s.cancel)
		if !ok {
			return
		}
		qe, ok := item.(queuedEvent)
		if !ok {
			continue
		}
		s.dispatchEvent(qe)
	}
}

// dispatchEvents delivers a batch synchronously, used by Dispose to
// flush whatever remained queued when the consumer goroutine exited
// (spec.md §4.7 "Shutdown").
func (s *Session) dispatchEvents(items []any) {
	for _, item := range items {
		if qe, ok := item.(queuedEvent); ok {
			s.dispatchEvent(qe)
		}
	}
}

func (s *Session) dispatchEvent(qe queuedEvent) {
	for _, w := range qe.watchers {
		s.invokeWatcher(w, qe.event)
	}
}

// invokeWatcher runs a single watcher, recovering from a panic so that
// one bad watcher cannot poison the rest of the dispatch (spec.md
// §4.7 step 2, §7 "exceptions inside a user watcher -> logged and
// swallowed").
func (s *Session) invokeWatcher(w Watcher, ev WatchedEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.logger().withServer(s.Server()).error(fmt.Errorf("%v", r), "watcher panicked", "state", ev.State.String(), "path", ev.Path)
		}
	}()
	w(ev)
}
