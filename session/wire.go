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
	"fmt"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
)

// Jute primitive read/write helpers, spec.md §6: "Integers are
// big-endian; strings are [len: i32][UTF-8 bytes] with len == -1 meaning
// null; byte arrays are [len: i32][bytes]; vectors are
// [count: i32][elements...]; booleans are one byte."

func writeInt32(w io.Writer, v int32) error {
	return binary.Write(w, binary.BigEndian, v)
}

func writeInt64(w io.Writer, v int64) error {
	return binary.Write(w, binary.BigEndian, v)
}

func writeBool(w io.Writer, v bool) error {
	var b byte
	if v {
		b = 1
	}
	_, err := w.Write([]byte{b})
	return err
}

func writeBuffer(w io.Writer, b []byte) error {
	if b == nil {
		return writeInt32(w, -1)
	}
	if err := writeInt32(w, int32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func writeString(w io.Writer, s string) error {
	return writeBuffer(w, []byte(s))
}

func readInt32(r io.Reader) (int32, error) {
	var v int32
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}

func readInt64(r io.Reader) (int64, error) {
	var v int64
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}

func readBool(r io.Reader) (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

func readBuffer(r io.Reader) ([]byte, error) {
	n, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, nil
	}
	if n > maxReasonableRecordField {
		return nil, fmt.Errorf("session: field length %d exceeds sanity limit", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func readString(r io.Reader) (string, error) {
	b, err := readBuffer(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func readStringVector(r io.Reader) ([]string, error) {
	n, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, nil
	}
	out := make([]string, n)
	for i := range out {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func writeStringVector(w io.Writer, ss []string) error {
	if err := writeInt32(w, int32(len(ss))); err != nil {
		return err
	}
	for _, s := range ss {
		if err := writeString(w, s); err != nil {
			return err
		}
	}
	return nil
}

// maxReasonableRecordField guards against a corrupt/hostile field length
// inflating an allocation: readBuffer allocates the declared size before
// reading it. It is independent of PacketLenMax and, at 64 MiB, larger
// than its 4 MiB default.
const maxReasonableRecordField = 64 * 1024 * 1024

// encodeFramedRequest serializes header (if non-nil) followed by body
// (if non-nil) and prefixes the result with a 4-byte big-endian length,
// producing the precomputed Packet.Serialized bytes spec.md §3
// describes.
func encodeFramedRequest(header *RequestHeader, body Encoder) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(make([]byte, 4)) // placeholder length prefix
	if header != nil {
		if err := writeInt32(&buf, header.Xid); err != nil {
			return nil, err
		}
		if err := writeInt32(&buf, header.Type); err != nil {
			return nil, err
		}
	}
	if body != nil {
		if err := body.Encode(&buf); err != nil {
			return nil, errors.Wrap(err, "encode request body")
		}
	}
	out := buf.Bytes()
	binary.BigEndian.PutUint32(out[:4], uint32(len(out)-4))
	return out, nil
}

// writeWithDeadline mirrors the teacher's vendored helper of the same
// name (vendor/.../conn.go callers): apply a write deadline, write the
// full buffer, then clear the deadline so unrelated later operations are
// not affected by a stale deadline.
func writeWithDeadline(conn net.Conn, buf []byte, timeout time.Duration) (int, error) {
	if timeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return 0, err
		}
		defer conn.SetWriteDeadline(time.Time{})
	}
	return conn.Write(buf)
}

// readFullWithDeadline reads len(buf) bytes applying a read deadline for
// the duration of the call.
func readFullWithDeadline(conn net.Conn, buf []byte, timeout time.Duration) (int, error) {
	if timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return 0, err
		}
		defer conn.SetReadDeadline(time.Time{})
	}
	return io.ReadFull(conn, buf)
}
