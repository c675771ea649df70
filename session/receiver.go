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
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// runReceiver is C5, spec.md §4.3: a length-payload reader FSM driven
// by blocking reads on its own goroutine (spec.md §9's "explicit
// reader thread" realization of the continuation-passing async read).
// One goroutine is started per successful connectOnce; it exits the
// instant the socket misbehaves, leaving reconnection entirely to the
// producer goroutine. Grounded on the teacher's vendored
// Conn.readLoop/reader (vendor/.../conn.go:843-920, 162-217), adapted
// into an explicit two-buffer state machine.
func (s *Session) runReceiver(conn net.Conn) {
	lengthBuf := make([]byte, 4)
	// scratch is reused across frames that fit within it (SUPPLEMENTED
	// FEATURES #3); a frame larger than scratch but still under
	// PacketLenMax gets a one-off allocation instead of growing scratch,
	// since this engine processes one frame at a time rather than
	// pipelining reads.
	scratch := make([]byte, s.cfg.BufferSize)
	for {
		deadline := s.readTimeout()
		if _, err := readFullWithDeadline(conn, lengthBuf, deadline); err != nil {
			s.onReceiveFailure(conn, err)
			return
		}

		length := int32(binary.BigEndian.Uint32(lengthBuf))
		if length < 0 || length >= s.cfg.PacketLenMax {
			s.onReceiveFailure(conn, fmt.Errorf("session: frame length %d out of range [0,%d)", length, s.cfg.PacketLenMax))
			return
		}

		var payload []byte
		if length == 0 {
			payload = nil
		} else if int(length) <= len(scratch) {
			payload = scratch[:length]
		} else {
			payload = make([]byte, length)
		}
		if length > 0 {
			if _, err := readFullWithDeadline(conn, payload, deadline); err != nil {
				s.onReceiveFailure(conn, err)
				return
			}
		}

		if !s.initialized.Load() {
			if err := s.readConnectResult(payload); err != nil {
				s.onReceiveFailure(conn, err)
				return
			}
			s.initialized.Store(true)
			continue
		}

		if err := s.readResponse(payload); err != nil {
			s.onReceiveFailure(conn, err)
			return
		}
	}
}

// onReceiveFailure handles every way the receive path can end: server
// EOF, a protocol violation (bad length, xid mismatch), or a plain
// socket error. All three translate to the same spec.md §4.3/§7
// outcome: log, mark the connection dead, wake the send loop so it
// re-enters reconnect. A stale receiver from an already-replaced
// connection is a no-op.
func (s *Session) onReceiveFailure(conn net.Conn, err error) {
	s.connMu.Lock()
	current := s.conn == conn
	s.connMu.Unlock()
	if !current {
		return
	}

	if errors.Is(err, io.EOF) {
		s.connClosedByServer.Store(true)
		s.logger().withServer(s.Server()).info("server closed connection")
	} else {
		s.logger().withServer(s.Server()).error(err, "receive path failed")
	}

	if s.stateCell.load() == StateConnected {
		s.setState(StateNotConnected)
		s.queueEvent(WatchedEvent{State: StateNotConnected, Type: EventNone})
	}
	s.connAlive.Store(false)
	s.outgoing.Wake()
}

// readConnectResult implements spec.md §4.5.
func (s *Session) readConnectResult(payload []byte) error {
	var resp connectResponse
	if err := resp.Decode(bytes.NewReader(payload)); err != nil {
		return err
	}
	s.recvCount.Add(1)
	s.cfg.Metrics.PacketReceived()

	if resp.TimeoutMs <= 0 {
		s.setState(StateClosed)
		s.queueEvent(WatchedEvent{State: StateClosed, Type: EventNone})
		return ErrSessionExpired
	}

	s.setTimeouts(time.Duration(resp.TimeoutMs) * time.Millisecond)
	s.idMu.Lock()
	s.sessionID = resp.SessionID
	s.sessionPasswd = resp.Passwd
	s.log = newSessionLogger(s.cfg.Logger, resp.SessionID)
	s.idMu.Unlock()

	s.setState(StateConnected)
	s.queueEvent(WatchedEvent{State: StateConnected, Type: EventNone})
	return nil
}

// readResponse implements reply routing, spec.md §4.6.
func (s *Session) readResponse(payload []byte) error {
	r := bytes.NewReader(payload)
	xid, err := readInt32(r)
	if err != nil {
		return err
	}
	zxid, err := readInt64(r)
	if err != nil {
		return err
	}
	errCodeVal, err := readInt32(r)
	if err != nil {
		return err
	}
	s.recvCount.Add(1)
	s.cfg.Metrics.PacketReceived()

	switch xid {
	case XidPing:
		if sentAt := s.lastPingSentAt.Swap(0); sentAt != 0 {
			s.cfg.Metrics.PingRoundTrip(time.Since(time.Unix(0, sentAt)))
		}
		return nil

	case XidAuth:
		if ErrCode(errCodeVal) != ErrCodeOK {
			s.setState(StateAuthFailed)
			s.queueEvent(WatchedEvent{State: StateAuthFailed, Type: EventNone})
		}
		return nil

	case XidNotification:
		var we watcherEvent
		if err := we.Decode(r); err != nil {
			return err
		}
		path := we.Path
		if s.cfg.Chroot != nil {
			path = s.cfg.Chroot.StripChroot(path)
		}
		s.queueEvent(WatchedEvent{State: we.State, Type: we.Type, Path: path})
		return nil

	default:
		return s.routeReply(xid, zxid, ErrCode(errCodeVal), r)
	}
}

// routeReply implements the "any other xid" branch of spec.md §4.6:
// dequeue the front of C3, match it against the incoming xid, and
// either finalize it (on match) or finalize it with CONNECTIONLOSS and
// surface an I/O error that triggers reconnect (on mismatch) — spec.md
// §8 invariant 3.
func (s *Session) routeReply(xid int32, zxid int64, errCode ErrCode, body *bytes.Reader) error {
	item, ok := s.pending.TryPop()
	if !ok {
		return fmt.Errorf("session: reply xid %d arrived with an empty pending queue", xid)
	}
	p, ok := item.(*Packet)
	if !ok {
		return fmt.Errorf("session: pending queue held a non-packet value")
	}

	if headerXid(p) != xid {
		p.ReplyHeader = &ReplyHeader{Xid: xid, Err: ErrCodeConnectionLoss, Zxid: zxid}
		finishPacket(p)
		return fmt.Errorf("session: reply xid %d does not match pending xid %d", xid, headerXid(p))
	}

	p.ReplyHeader = &ReplyHeader{Xid: xid, Err: errCode, Zxid: zxid}
	if errCode == ErrCodeOK && p.ResponseBody != nil {
		if err := p.ResponseBody.Decode(body); err != nil {
			p.ReplyHeader.Err = ErrCodeConnectionLoss
			finishPacket(p)
			return err
		}
	}
	if zxid > 0 {
		s.advanceLastZxid(zxid)
	}
	finishPacket(p)
	s.cfg.Metrics.PendingQueueDepth(s.pending.Len())
	return nil
}

// advanceLastZxid implements last_zxid = max(last_zxid, zxid)
// (spec.md §4.6), monotone per spec.md §8 invariant 4.
func (s *Session) advanceLastZxid(zxid int64) {
	for {
		cur := s.lastZxid.Load()
		if zxid <= cur {
			return
		}
		if s.lastZxid.CompareAndSwap(cur, zxid) {
			return
		}
	}
}
