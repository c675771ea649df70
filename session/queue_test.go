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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFIFOFIFOOrder(t *testing.T) {
	t.Parallel()

	f := NewFIFO()
	f.Push(1)
	f.Push(2)
	f.Push(3)
	require.Equal(t, 3, f.Len())

	for _, want := range []int{1, 2, 3} {
		v, ok := f.TryPop()
		require.True(t, ok)
		require.Equal(t, want, v)
	}
	_, ok := f.TryPop()
	require.False(t, ok)
}

func TestFIFODrainAll(t *testing.T) {
	t.Parallel()

	f := NewFIFO()
	f.Push("a")
	f.Push("b")
	require.Equal(t, []any{"a", "b"}, f.DrainAll())
	require.Equal(t, 0, f.Len())
	require.Nil(t, f.DrainAll())
}

func TestFIFOTakeTimeoutExpires(t *testing.T) {
	t.Parallel()

	f := NewFIFO()
	start := time.Now()
	_, ok := f.TakeTimeout(20*time.Millisecond, nil)
	require.False(t, ok)
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestFIFOTakeTimeoutWokenByPush(t *testing.T) {
	t.Parallel()

	f := NewFIFO()
	go func() {
		time.Sleep(5 * time.Millisecond)
		f.Push("item")
	}()
	v, ok := f.TakeTimeout(time.Second, nil)
	require.True(t, ok)
	require.Equal(t, "item", v)
}

func TestFIFOWakeUnblocksTakeWithoutAnItem(t *testing.T) {
	t.Parallel()

	f := NewFIFO()
	done := make(chan struct{})
	cancel := make(chan struct{})
	var gotItem bool
	go func() {
		_, gotItem = f.TakeTimeout(time.Second, cancel)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	f.Wake()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wake did not unblock TakeTimeout")
	}
	require.False(t, gotItem)
}

func TestFIFOTakeBlocksUntilCancel(t *testing.T) {
	t.Parallel()

	f := NewFIFO()
	cancel := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	var ok bool
	go func() {
		defer wg.Done()
		_, ok = f.Take(cancel)
	}()
	time.Sleep(10 * time.Millisecond)
	close(cancel)
	wg.Wait()
	require.False(t, ok)
}
