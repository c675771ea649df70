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
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrCodeForState(t *testing.T) {
	t.Parallel()

	require.Equal(t, ErrCodeAuthFailed, errCodeForState(StateAuthFailed))
	require.Equal(t, ErrCodeSessionExpired, errCodeForState(StateClosed))
	require.Equal(t, ErrCodeConnectionLoss, errCodeForState(StateNotConnected))
	require.Equal(t, ErrCodeConnectionLoss, errCodeForState(StateConnecting))
	require.Equal(t, ErrCodeConnectionLoss, errCodeForState(StateConnected))
}

func TestErrCodeToGoError(t *testing.T) {
	t.Parallel()

	require.NoError(t, ErrCodeOK.toGoError())
	require.True(t, errors.Is(ErrCodeConnectionLoss.toGoError(), ErrConnectionLoss))
	require.True(t, errors.Is(ErrCodeSessionExpired.toGoError(), ErrSessionExpired))
	require.True(t, errors.Is(ErrCodeAuthFailed.toGoError(), ErrAuthFailed))

	// A server-supplied domain code passes through untouched.
	domain := ErrCode(-101)
	err := domain.toGoError()
	var asCode ErrCode
	require.True(t, errors.As(err, &asCode))
	require.Equal(t, domain, asCode)
}
