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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnectRequestEncodeFieldOrder(t *testing.T) {
	t.Parallel()

	req := &connectRequest{
		ProtocolVersion: 0,
		LastZxidSeen:    42,
		TimeoutMs:       30000,
		SessionID:       0xABCD,
		Passwd:          []byte{0x01, 0x02},
	}
	var buf bytes.Buffer
	require.NoError(t, req.Encode(&buf))

	pv, err := readInt32(&buf)
	require.NoError(t, err)
	require.Equal(t, req.ProtocolVersion, pv)

	zxid, err := readInt64(&buf)
	require.NoError(t, err)
	require.Equal(t, req.LastZxidSeen, zxid)

	timeout, err := readInt32(&buf)
	require.NoError(t, err)
	require.Equal(t, req.TimeoutMs, timeout)

	sessID, err := readInt64(&buf)
	require.NoError(t, err)
	require.Equal(t, req.SessionID, sessID)

	passwd, err := readBuffer(&buf)
	require.NoError(t, err)
	require.Equal(t, req.Passwd, passwd)
}

func TestConnectResponseRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, writeInt32(&buf, 0))
	require.NoError(t, writeInt32(&buf, 20000))
	require.NoError(t, writeInt64(&buf, 0xABCD))
	require.NoError(t, writeBuffer(&buf, []byte{0x01, 0x02}))

	var resp connectResponse
	require.NoError(t, resp.Decode(&buf))
	require.Equal(t, int32(20000), resp.TimeoutMs)
	require.Equal(t, int64(0xABCD), resp.SessionID)
	require.Equal(t, []byte{0x01, 0x02}, resp.Passwd)
}

func TestAuthPacketEncode(t *testing.T) {
	t.Parallel()

	a := &authPacket{Type: 0, Scheme: "digest", Auth: []byte("user:pass")}
	var buf bytes.Buffer
	require.NoError(t, a.Encode(&buf))

	typ, err := readInt32(&buf)
	require.NoError(t, err)
	require.Equal(t, int32(0), typ)

	scheme, err := readString(&buf)
	require.NoError(t, err)
	require.Equal(t, "digest", scheme)

	auth, err := readBuffer(&buf)
	require.NoError(t, err)
	require.Equal(t, []byte("user:pass"), auth)
}

func TestWatcherEventDecode(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, writeInt32(&buf, int32(EventNodeDataChanged)))
	require.NoError(t, writeInt32(&buf, int32(StateConnected)))
	require.NoError(t, writeString(&buf, "/chroot/foo"))

	var ev watcherEvent
	require.NoError(t, ev.Decode(&buf))
	require.Equal(t, EventNodeDataChanged, ev.Type)
	require.Equal(t, StateConnected, ev.State)
	require.Equal(t, "/chroot/foo", ev.Path)
}

func TestSetWatchesRequestEncode(t *testing.T) {
	t.Parallel()

	s := &setWatchesRequest{
		RelativeZxid: 9,
		DataWatches:  []string{"/a"},
		ExistWatches: nil,
		ChildWatches: []string{"/b", "/c"},
	}
	var buf bytes.Buffer
	require.NoError(t, s.Encode(&buf))

	zxid, err := readInt64(&buf)
	require.NoError(t, err)
	require.Equal(t, int64(9), zxid)

	data, err := readStringVector(&buf)
	require.NoError(t, err)
	require.Equal(t, []string{"/a"}, data)

	exist, err := readStringVector(&buf)
	require.NoError(t, err)
	require.Empty(t, exist)

	child, err := readStringVector(&buf)
	require.NoError(t, err)
	require.Equal(t, []string{"/b", "/c"}, child)
}
