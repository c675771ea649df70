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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAtomicStateTransitions(t *testing.T) {
	t.Parallel()

	var a atomicState
	a.set(StateNotConnected)
	require.Equal(t, StateNotConnected, a.load())

	require.True(t, a.set(StateConnecting))
	require.True(t, a.set(StateConnected))
	require.Equal(t, StateConnected, a.load())
}

func TestAtomicStateNeverLeavesTerminal(t *testing.T) {
	t.Parallel()

	for _, terminal := range []State{StateClosed, StateAuthFailed} {
		var a atomicState
		a.set(StateConnected)
		require.True(t, a.set(terminal))

		require.False(t, a.set(StateNotConnected))
		require.False(t, a.set(StateConnecting))
		require.False(t, a.set(StateConnected))
		require.Equal(t, terminal, a.load())
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "CONNECTED", StateConnected.String())
	require.Equal(t, "UNKNOWN", State(99).String())
}
