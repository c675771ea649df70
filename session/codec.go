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

import "io"

// The records below are the subset of the ZooKeeper Jute schema this
// engine itself must speak to manage a session (spec.md §6): connect
// handshake, auth, notifications and set-watches. Operation-specific
// request/response records (create, get, set, delete, ...) are opaque
// Encoder/Decoder values supplied by the facade; this engine never
// parses their contents.

// connectRequest is the first packet on a new connection, spec.md
// §4.4 step 6. It has no RequestHeader (spec.md §3: "request_header
// ... absent only for the initial connect packet").
type connectRequest struct {
	ProtocolVersion int32
	LastZxidSeen    int64
	TimeoutMs       int32
	SessionID       int64
	Passwd          []byte
}

func (r *connectRequest) Encode(w io.Writer) error {
	if err := writeInt32(w, r.ProtocolVersion); err != nil {
		return err
	}
	if err := writeInt64(w, r.LastZxidSeen); err != nil {
		return err
	}
	if err := writeInt32(w, r.TimeoutMs); err != nil {
		return err
	}
	if err := writeInt64(w, r.SessionID); err != nil {
		return err
	}
	return writeBuffer(w, r.Passwd)
}

// connectResponse is the handshake reply, spec.md §4.5.
type connectResponse struct {
	ProtocolVersion int32
	TimeoutMs       int32
	SessionID       int64
	Passwd          []byte
}

func (r *connectResponse) Decode(rd io.Reader) error {
	var err error
	if r.ProtocolVersion, err = readInt32(rd); err != nil {
		return err
	}
	if r.TimeoutMs, err = readInt32(rd); err != nil {
		return err
	}
	if r.SessionID, err = readInt64(rd); err != nil {
		return err
	}
	r.Passwd, err = readBuffer(rd)
	return err
}

// authPacket is the body of an Auth request, xid=-4.
type authPacket struct {
	Type   int32
	Scheme string
	Auth   []byte
}

func (a *authPacket) Encode(w io.Writer) error {
	if err := writeInt32(w, a.Type); err != nil {
		return err
	}
	if err := writeString(w, a.Scheme); err != nil {
		return err
	}
	return writeBuffer(w, a.Auth)
}

// watcherEvent is the body of a server notification, xid=-1.
type watcherEvent struct {
	Type  EventType
	State State
	Path  string
}

func (e *watcherEvent) Decode(r io.Reader) error {
	t, err := readInt32(r)
	if err != nil {
		return err
	}
	e.Type = EventType(t)
	s, err := readInt32(r)
	if err != nil {
		return err
	}
	e.State = State(s)
	e.Path, err = readString(r)
	return err
}

// setWatchesRequest re-establishes watches after a reconnect, spec.md
// §4.4 step 6: "a SetWatches (xid=-8) containing last_zxid and the
// three watch-path sets (data, exist, child)".
type setWatchesRequest struct {
	RelativeZxid int64
	DataWatches  []string
	ExistWatches []string
	ChildWatches []string
}

func (s *setWatchesRequest) Encode(w io.Writer) error {
	if err := writeInt64(w, s.RelativeZxid); err != nil {
		return err
	}
	if err := writeStringVector(w, s.DataWatches); err != nil {
		return err
	}
	if err := writeStringVector(w, s.ExistWatches); err != nil {
		return err
	}
	return writeStringVector(w, s.ChildWatches)
}

// closeRequestType is the opcode value used for the CloseSession
// packet, spec.md §4.2 "Closing semantics". Concrete opcode values
// beyond the ones this engine itself interprets (ping/auth/set-watches/
// close) are defined by the facade's codec and are opaque ints here.
const closeRequestType int32 = -11
