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
	"math/rand"
	"net"
	"time"
)

// connectOnce implements connection bring-up, spec.md §4.4. It runs on
// the producer goroutine only. On success it installs the new
// net.Conn, starts the receive goroutine for it, and marks the
// connection alive; on failure it leaves state NOT_CONNECTED for the
// main loop to retry. Grounded on the teacher's vendored Conn.connect
// and Conn.authenticate (vendor/.../conn.go:352-385, 715-767).
func (s *Session) connectOnce(first bool) error {
	if !first {
		time.Sleep(time.Duration(rand.Intn(51)) * time.Millisecond)
	}
	if s.nextAddrToTry == s.lastConnectIndex {
		// We have cycled through every server without a successful
		// write; avoid a tight spin (spec.md §4.4 step 2).
		time.Sleep(1 * time.Second)
	}

	addr := s.cfg.Servers[s.nextAddrToTry]
	connectIndex := s.nextAddrToTry
	s.nextAddrToTry = (s.nextAddrToTry + 1) % len(s.cfg.Servers)

	s.setState(StateConnecting)
	s.cleanup()

	conn, err := s.cfg.Dialer("tcp", addr, s.cfg.ConnectTimeout)
	if err != nil {
		s.logger().withServer(addr).error(err, "dial failed")
		s.setState(StateNotConnected)
		return err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
		_ = tc.SetLinger(0)
	}

	s.connMu.Lock()
	s.conn = conn
	s.server = addr
	s.connMu.Unlock()
	s.initialized.Store(false)
	s.connClosedByServer.Store(false)

	if err := s.primeConnection(conn); err != nil {
		s.logger().withServer(addr).error(err, "prime connection failed")
		conn.Close()
		s.connMu.Lock()
		s.conn = nil
		s.server = ""
		s.connMu.Unlock()
		s.setState(StateNotConnected)
		return err
	}

	// Record the index actually used only after a socket write
	// succeeded (spec.md §4.4 step 7: "this lets the jitter logic
	// detect a full cycle without progress").
	s.lastConnectIndex = connectIndex
	s.connAlive.Store(true)
	s.cfg.Metrics.Reconnected(addr)

	go s.runReceiver(conn)
	return nil
}

// primeConnection writes the ConnectRequest, any configured auth
// credentials, and (if the watcher registry has previously installed
// watches and reports them) a SetWatches packet, in that order
// (spec.md §4.4 step 6).
func (s *Session) primeConnection(conn net.Conn) error {
	s.idMu.Lock()
	sessionID := s.sessionID
	passwd := append([]byte(nil), s.sessionPasswd...)
	s.idMu.Unlock()

	req := &connectRequest{
		ProtocolVersion: 0,
		LastZxidSeen:    s.lastZxid.Load(),
		TimeoutMs:       int32(s.cfg.SessionTimeout / time.Millisecond),
		SessionID:       sessionID,
		Passwd:          passwd,
	}
	buf, err := encodeFramedRequest(nil, req)
	if err != nil {
		return err
	}
	if _, err := writeWithDeadline(conn, buf, s.cfg.ConnectTimeout); err != nil {
		return err
	}

	for _, cred := range s.cfg.AuthCreds {
		header := &RequestHeader{Xid: XidAuth, Type: 0}
		body := &authPacket{Type: 0, Scheme: cred.Scheme, Auth: cred.Auth}
		b, err := encodeFramedRequest(header, body)
		if err != nil {
			return err
		}
		if _, err := writeWithDeadline(conn, b, s.cfg.ConnectTimeout); err != nil {
			return err
		}
	}

	if provider, ok := s.cfg.Watches.(WatchSetProvider); ok {
		data, exist, child := provider.InstalledWatches()
		if len(data)+len(exist)+len(child) > 0 {
			header := &RequestHeader{Xid: XidSetWatches, Type: 0}
			body := &setWatchesRequest{
				RelativeZxid: s.lastZxid.Load(),
				DataWatches:  data,
				ExistWatches: exist,
				ChildWatches: child,
			}
			p, err := NewPacket(header, body, nil, "", "", nil)
			if err != nil {
				return err
			}
			// SetWatches is not in the {Ping, Auth} exclusion set
			// (spec.md §4.2 DoSend), so it must enter C3 before the
			// bytes reach the socket: its reply is matched by xid like
			// any other request (spec.md §4.6), not logged-and-dropped
			// the way ping/auth replies are.
			s.pending.Push(p)
			if _, err := writeWithDeadline(conn, p.Serialized, s.cfg.ConnectTimeout); err != nil {
				return err
			}
		}
	}

	return nil
}
