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

import "github.com/pkg/errors"

// ErrCode is the error kind surfaced to callers through a Packet's
// reply header, spec.md §7.
type ErrCode int32

const (
	ErrCodeOK ErrCode = 0

	// ErrCodeConnectionLoss: socket broken, xid mismatch, or unsent
	// packet dropped during reconnect.
	ErrCodeConnectionLoss ErrCode = -4

	// ErrCodeSessionExpired: server refused the session on handshake,
	// negotiated_timeout <= 0 was observed, or a packet was queued
	// after CLOSED.
	ErrCodeSessionExpired ErrCode = -112

	// ErrCodeAuthFailed: packet queued after AUTH_FAILED, or the server
	// rejected an auth credential.
	ErrCodeAuthFailed ErrCode = -115
)

// Sentinel Go errors mirroring ErrCode, for callers that prefer
// errors.Is over inspecting a raw reply header. Grounded on the
// teacher's vendored errCodeToError table (vendor/.../constants.go),
// reimplemented for this engine's own reserved error space rather than
// imported.
var (
	ErrConnectionLoss = errors.New("session: connection loss")
	ErrSessionExpired = errors.New("session: session expired")
	ErrAuthFailed     = errors.New("session: authentication failed")
	ErrClosing        = errors.New("session: session is closing")
	ErrNoServer       = errors.New("session: no reachable server in the configured list")

	errNoServersConfigured = errors.New("session: at least one server must be configured")
)

func (c ErrCode) Error() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeConnectionLoss:
		return ErrConnectionLoss.Error()
	case ErrCodeSessionExpired:
		return ErrSessionExpired.Error()
	case ErrCodeAuthFailed:
		return ErrAuthFailed.Error()
	default:
		return "server error code"
	}
}

// toGoError converts a server-or-client-assigned ErrCode into a Go
// error, nil for ErrCodeOK. Domain codes beyond the three reserved ones
// here are passed through untouched as a bare ErrCode, per spec.md §7
// ("Server-supplied domain codes ... passed through untouched").
func (c ErrCode) toGoError() error {
	switch c {
	case ErrCodeOK:
		return nil
	case ErrCodeConnectionLoss:
		return ErrConnectionLoss
	case ErrCodeSessionExpired:
		return ErrSessionExpired
	case ErrCodeAuthFailed:
		return ErrAuthFailed
	default:
		return c
	}
}

// errCodeForState implements ConLossPacket's err-selection rule,
// spec.md §4.8: "AUTHFAILED if AUTH_FAILED; SESSIONEXPIRED if CLOSED;
// else CONNECTIONLOSS". Matching on the typed State enum rather than a
// string field resolves the brittleness spec.md §9 flags in the
// original implementation.
func errCodeForState(s State) ErrCode {
	switch s {
	case StateAuthFailed:
		return ErrCodeAuthFailed
	case StateClosed:
		return ErrCodeSessionExpired
	default:
		return ErrCodeConnectionLoss
	}
}
