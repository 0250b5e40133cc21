package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithInternalPreservesIdentity(t *testing.T) {
	inner := stderrors.New("token expired")
	err := ErrAuthFailed.WithInternal(inner)

	require.ErrorIs(t, err, ErrAuthFailed)
	require.ErrorIs(t, err, inner)
	require.Contains(t, err.Error(), "Authentication against the Okta API failed")
	require.Contains(t, err.Error(), "token expired")

	// The sentinel itself is untouched.
	require.Nil(t, ErrAuthFailed.Internal)
}

func TestExitCodeFor(t *testing.T) {
	require.Equal(t, ExitOK, ExitCodeFor(nil))
	require.Equal(t, ExitSyncFailure, ExitCodeFor(ErrSyncFailed))
	require.Equal(t, ExitConfigFailure, ExitCodeFor(ErrMissingConfig))
	require.Equal(t, ExitCleanupFailure, ExitCodeFor(ErrCleanupFailed))

	// Wrapped sentinels keep their exit code; unknown errors default to sync failure.
	require.Equal(t, ExitConfigFailure, ExitCodeFor(ErrMissingConfig.WithInternal(stderrors.New("no token"))))
	require.Equal(t, ExitSyncFailure, ExitCodeFor(stderrors.New("boom")))
}

func TestFromError(t *testing.T) {
	require.Nil(t, FromError(nil))

	plain := stderrors.New("boom")
	converted := FromError(plain)
	require.Equal(t, ErrSyncFailed.Code, converted.Code)
	require.ErrorIs(t, converted, plain)

	require.Same(t, ErrMissingConfig, FromError(ErrMissingConfig))
}

func TestWrap(t *testing.T) {
	inner := stderrors.New("disk full")
	err := Wrap(inner, "writing snapshot")
	require.Equal(t, "INTERNAL_ERROR", err.Code)
	require.ErrorIs(t, err, inner)
	require.Contains(t, err.Error(), "writing snapshot")
}
