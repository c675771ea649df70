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

import "sync/atomic"

// Reserved xids, spec.md §3/§6. User xids are assigned starting at 1.
const (
	XidNotification int32 = -1
	XidPing         int32 = -2
	XidAuth         int32 = -4
	XidSetWatches   int32 = -8
)

// RequestHeader is the per-request envelope written ahead of a request
// body, spec.md §3. Absent only for the initial connect packet.
type RequestHeader struct {
	Xid  int32
	Type int32
}

// ReplyHeader is the per-reply envelope, spec.md §3. Absent for
// fire-and-forget packets (ping, auth).
type ReplyHeader struct {
	Xid  int32
	Err  ErrCode
	Zxid int64
}

// WatchRegistration is invoked by FinishPacket once a request completes,
// so that on success the watcher is recorded in the (external) watcher
// registry, and on specific errors (e.g. NoNode for an exist-watch) the
// appropriate entry is still made. This is the "watch_registration"
// collaborator from spec.md §3/§6 — defined here as a function value
// rather than an interface since the only thing FinishPacket needs is a
// single callback.
type WatchRegistration func(err ErrCode)

// Packet is one in-flight request/response unit, spec.md §3.
//
// Ownership: created by the facade, queued to the outgoing FIFO, handed
// to the pending FIFO on send, finalized by the receive path or by the
// reconnect-loss path; then owned by the awaiting caller. Once Finished
// is observed true, no field may be mutated. The type does not enforce
// this (its fields are exported); the engine writes ReplyHeader only on
// the paths that then call finishPacket.
type Packet struct {
	Header      *RequestHeader // nil only for the initial connect packet
	ReplyHeader *ReplyHeader   // nil until a response is received

	RequestBody  Encoder // opaque; nil for header-only packets (ping)
	ResponseBody Decoder // opaque; nil if no response body is expected

	ClientPath string
	ServerPath string

	WatchRegistration WatchRegistration

	// Serialized is the precomputed length-prefixed on-wire form, fixed
	// at construction (spec.md §3: "serialized_bytes ... fixed at
	// construction").
	Serialized []byte

	finished int32 // atomic bool
	done     chan struct{}
}

// NewPacket constructs a Packet and precomputes its wire encoding.
// Precomputing at construction (rather than at send time) is the
// invariant spec.md §3 names for serialized_bytes; it also means a
// packet finalized before ever reaching the socket (e.g. queued while
// closing) never needed the connection to know how to encode it.
func NewPacket(header *RequestHeader, body Encoder, response Decoder, clientPath, serverPath string, watch WatchRegistration) (*Packet, error) {
	p := &Packet{
		Header:            header,
		RequestBody:       body,
		ResponseBody:      response,
		ClientPath:        clientPath,
		ServerPath:        serverPath,
		WatchRegistration: watch,
		done:              make(chan struct{}),
	}
	buf, err := encodeFramedRequest(header, body)
	if err != nil {
		return nil, err
	}
	p.Serialized = buf
	return p, nil
}

// Finished reports whether the packet has reached a terminal state.
func (p *Packet) Finished() bool {
	return atomic.LoadInt32(&p.finished) == 1
}

// Done returns a channel closed once the packet is finalized, for
// callers that want to select on completion alongside a context or
// timeout.
func (p *Packet) Done() <-chan struct{} {
	return p.done
}

// Err returns the packet's terminal error, or nil if not yet finished or
// finished with ErrCodeOK.
func (p *Packet) Err() error {
	if p.ReplyHeader == nil {
		return nil
	}
	return p.ReplyHeader.Err.toGoError()
}

// finishPacket implements spec.md §4.8's FinishPacket: invoke the watch
// registration (if any) with the final error code, then mark the packet
// finished. The atomic store on p.finished is the memory-barrier-
// carrying signal spec.md requires the original caller to observe.
func finishPacket(p *Packet) {
	if p.WatchRegistration != nil && p.ReplyHeader != nil {
		p.WatchRegistration(p.ReplyHeader.Err)
	}
	if atomic.CompareAndSwapInt32(&p.finished, 0, 1) {
		close(p.done)
	}
}

// conLossPacket implements spec.md §4.8's ConLossPacket: assign an error
// derived from the current session state, then finalize.
func conLossPacket(p *Packet, state State) {
	if p.ReplyHeader == nil {
		p.ReplyHeader = &ReplyHeader{Xid: headerXid(p)}
	}
	p.ReplyHeader.Err = errCodeForState(state)
	finishPacket(p)
}

func headerXid(p *Packet) int32 {
	if p.Header != nil {
		return p.Header.Xid
	}
	return 0
}
