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
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Session is the engine described by spec.md §1-§5: it owns the
// lifecycle of a single logical session, multiplexing ordered
// request/response traffic over one TCP connection at a time,
// reestablishing it on failure while preserving session identity, and
// delivering watch notifications to user-registered callbacks.
//
// Grounded on the teacher's vendored zk.Conn (vendor/github.com/Shopify/zk/conn.go):
// this type collapses that struct's exported surface into the six
// components spec.md names (C1-C6), see DESIGN.md.
type Session struct {
	cfg Config
	log sessionLogger

	stateCell atomicState

	idMu          sync.Mutex
	sessionID     int64
	sessionPasswd []byte

	lastZxid          atomic.Int64
	sentCount         atomic.Int64
	recvCount         atomic.Int64
	xidCounter        atomic.Int32
	negotiatedTimeout atomic.Int64 // time.Duration nanoseconds; 0 until handshake
	lastPingSentAt    atomic.Int64 // UnixNano; 0 if no ping outstanding

	closing            atomic.Bool
	initialized        atomic.Bool
	connAlive          atomic.Bool
	connClosedByServer atomic.Bool
	isDisposed         atomic.Bool

	outgoing *FIFO // C2
	pending  *FIFO // C3
	events   *FIFO // waiting events queue feeding C6

	lastQueuedState atomicState // C6's dedup key, spec.md §4.7

	cancel       chan struct{}
	producerDone chan struct{}
	consumerDone chan struct{}

	connMu sync.Mutex
	conn   net.Conn
	server string

	nextAddrToTry    int
	lastConnectIndex int

	lastPingSent time.Time // single-writer: producer goroutine only
}

// NewSession constructs a Session and starts its two worker goroutines
// (spec.md §5: "exactly two long-running worker threads per session:
// the send thread (C4) and the event thread (C6)"). The caller must
// eventually call Dispose.
func NewSession(opts ...Option) (*Session, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	s := &Session{
		cfg:              cfg,
		outgoing:         NewFIFO(),
		pending:          NewFIFO(),
		events:           NewFIFO(),
		cancel:           make(chan struct{}),
		producerDone:     make(chan struct{}),
		consumerDone:     make(chan struct{}),
		lastConnectIndex: -1,
	}
	s.log = newSessionLogger(cfg.Logger, 0)
	s.setState(StateNotConnected)
	s.lastQueuedState.set(StateNotConnected)

	go s.runProducer()
	go s.runConsumer()
	return s, nil
}

// State returns the current session state (spec.md §4.1).
func (s *Session) State() State { return s.stateCell.load() }

// SessionID returns the server-assigned session id, 0 prior to first
// successful negotiation (spec.md §3).
func (s *Session) SessionID() int64 {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return s.sessionID
}

// logger returns the current sessionLogger, re-seeded with the
// negotiated session id once readConnectResult observes one (spec.md
// §7: "All log output MUST be structured around the session id (hex)
// and the current server address"). Guarded by idMu, the same lock
// that serializes writes to sessionID, so a caller never observes a
// logger whose sessionID kv lags the field it was read alongside.
func (s *Session) logger() sessionLogger {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return s.log
}

// Server returns the address of the currently connected server, or ""
// if not connected. Supplemented feature grounded on the teacher's
// Conn.Server (vendor/.../conn.go:1726-1731).
func (s *Session) Server() string {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.server
}

// LastZxid returns the highest transaction id observed so far
// (spec.md §3: "monotonic non-decreasing across reconnects").
func (s *Session) LastZxid() int64 { return s.lastZxid.Load() }

func (s *Session) nextXid() int32 {
	return s.xidCounter.Add(1)
}

// setState transitions the state cell and reports the new value to the
// configured MetricsSink in the same step, so zk_session_state never
// drifts from stateCell.
func (s *Session) setState(st State) bool {
	ok := s.stateCell.set(st)
	if ok {
		s.cfg.Metrics.SessionState(st)
	}
	return ok
}

// QueuePacket is the facade-facing inbound interface (spec.md §6:
// "queue_packet(header?, reply_header?, request_body?, response_body?,
// client_path?, server_path?, watch_registration?) -> Packet"). It
// assigns the next xid, builds the Packet (which precomputes its wire
// encoding at construction, spec.md §3), and appends it to C2; the
// caller observes completion via Packet.Done()/Packet.Err().
//
// If the session is closing or already terminal, the packet is
// finalized in place with the appropriate error and never reaches the
// socket (spec.md §8 boundary behavior; spec.md §7 propagation
// policy).
func (s *Session) QueuePacket(opType int32, body Encoder, response Decoder, clientPath, serverPath string, watch WatchRegistration) (*Packet, error) {
	header := &RequestHeader{Xid: s.nextXid(), Type: opType}
	p, err := NewPacket(header, body, response, clientPath, serverPath, watch)
	if err != nil {
		return nil, err
	}

	st := s.stateCell.load()
	if s.closing.Load() || st == StateClosed || st == StateAuthFailed {
		conLossPacket(p, st)
		return p, nil
	}
	s.outgoing.Push(p)
	return p, nil
}

// queueEvent appends a WatchedEvent to C6's waiting queue, applying
// spec.md §4.7's session-state dedup at enqueue time for type==None
// events: "When an event with type == None arrives whose state equals
// the last queued session state, it is silently dropped." The
// interested watchers are materialized right here, at enqueue time,
// per spec.md §4.7 step 1 ("the materialized set is captured at
// enqueue time so that later re-registration does not change who this
// event is delivered to") — not later, at dispatch.
func (s *Session) queueEvent(ev WatchedEvent) {
	if ev.Type == EventNone {
		if s.lastQueuedState.load() == ev.State {
			return
		}
		s.lastQueuedState.set(ev.State)
	}
	if s.cfg.EventCallback != nil {
		s.cfg.EventCallback(ev)
	}
	var watchers []Watcher
	if s.cfg.Watches != nil {
		watchers = s.cfg.Watches.Materialize(ev.State, ev.Type, ev.Path)
	}
	s.events.Push(queuedEvent{event: ev, watchers: watchers})
}

// setTimeouts records the server-negotiated timeout, invoked by the
// receive path after a successful handshake (spec.md §6:
// "set_timeouts(negotiated_timeout_ms): invoked by C5 after handshake").
func (s *Session) setTimeouts(negotiated time.Duration) {
	s.negotiatedTimeout.Store(int64(negotiated))
}

func (s *Session) pingInterval() time.Duration {
	n := time.Duration(s.negotiatedTimeout.Load())
	if n <= 0 {
		n = s.cfg.SessionTimeout
	}
	return s.cfg.pingInterval(n)
}

// readTimeout bounds a single blocking frame read on the receive path:
// twice the ping interval, so the connection is given at least one full
// ping/pong round before a silent socket is treated as dead. This wires
// readFullWithDeadline (wire.go) into the receive path instead of
// leaving it an unused helper.
func (s *Session) readTimeout() time.Duration {
	return 2 * s.pingInterval()
}

// Close requests a graceful shutdown: it queues a CloseSession packet
// (flipping the closing flag once the producer dequeues it, spec.md
// §4.2 "Closing semantics"), waits up to timeout for that packet to be
// finalized, and then unconditionally calls Dispose. Grounded on the
// teacher's vendored Conn.Close, which waits on a shutdown channel with
// a bound before tearing the connection down (vendor/.../conn.go:301-310).
func (s *Session) Close(timeout time.Duration) {
	p, err := s.QueuePacket(closeRequestType, nil, nil, "", "", nil)
	if err == nil {
		select {
		case <-p.Done():
		case <-time.After(timeout):
		}
	}
	s.Dispose()
}

// Dispose cancels both worker goroutines, joins them, drains any
// remaining events for final delivery, and closes the socket. Dispose
// is idempotent, guarded by a compare-and-set on isDisposed (spec.md
// §5).
func (s *Session) Dispose() {
	if !s.isDisposed.CompareAndSwap(false, true) {
		return
	}
	s.closing.Store(true)
	close(s.cancel)

	<-s.producerDone

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	s.events.Wake()
	<-s.consumerDone

	// Drain synchronously so any event still queued when the consumer
	// exited is still delivered (spec.md §4.7 "Shutdown").
	s.dispatchEvents(s.events.DrainAll())

	s.setState(StateClosed)
}
