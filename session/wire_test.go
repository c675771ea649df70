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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrimitiveRoundTrips(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, writeInt32(&buf, -42))
	v, err := readInt32(&buf)
	require.NoError(t, err)
	require.Equal(t, int32(-42), v)

	buf.Reset()
	require.NoError(t, writeInt64(&buf, 1<<40))
	v64, err := readInt64(&buf)
	require.NoError(t, err)
	require.Equal(t, int64(1<<40), v64)

	buf.Reset()
	require.NoError(t, writeBool(&buf, true))
	b, err := readBool(&buf)
	require.NoError(t, err)
	require.True(t, b)
}

func TestBufferNullEncodesAsLenMinusOne(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, writeBuffer(&buf, nil))
	require.Equal(t, int32(-1), int32(binary.BigEndian.Uint32(buf.Bytes())))

	got, err := readBuffer(&buf)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestBufferRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	want := []byte{0x01, 0x02, 0x03}
	require.NoError(t, writeBuffer(&buf, want))
	got, err := readBuffer(&buf)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestStringVectorRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	want := []string{"/a", "/b/c", ""}
	require.NoError(t, writeStringVector(&buf, want))
	got, err := readStringVector(&buf)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestEncodeFramedRequestPrefixesLength(t *testing.T) {
	t.Parallel()

	header := &RequestHeader{Xid: 7, Type: 1}
	body := &authPacket{Type: 0, Scheme: "digest", Auth: []byte("user:pass")}
	buf, err := encodeFramedRequest(header, body)
	require.NoError(t, err)

	length := binary.BigEndian.Uint32(buf[:4])
	require.Equal(t, int(length), len(buf)-4)

	r := bytes.NewReader(buf[4:])
	xid, err := readInt32(r)
	require.NoError(t, err)
	require.Equal(t, int32(7), xid)
}

func TestReadBufferRejectsUnreasonableLength(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, writeInt32(&buf, maxReasonableRecordField+1))
	_, err := readBuffer(&buf)
	require.Error(t, err)
}
