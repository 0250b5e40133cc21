package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuthenticatorName(t *testing.T) {
	require.Equal(t, "Okta FastPass", AuthenticatorName("signed_nonce", "OKTA"))
	require.Equal(t, "Okta Verify", AuthenticatorName("push", "OKTA"))
	require.Equal(t, "Google Authenticator", AuthenticatorName("token:software:totp", "GOOGLE"))
	require.Equal(t, "FIDO2 (WebAuthn)", AuthenticatorName("webauthn", "FIDO"))

	// Unknown pairs fall back to the raw factor type.
	require.Equal(t, "hotp", AuthenticatorName("hotp", "CUSTOM"))
	require.Equal(t, "push", AuthenticatorName("push", "DUO"))
}

func TestSyncOrderCoversAllEntityTypes(t *testing.T) {
	require.Equal(t, []EntityType{
		EntityGroups,
		EntityApplications,
		EntityUsers,
		EntityDevices,
		EntityPolicies,
	}, SyncOrder)
}

func TestCounterColumn(t *testing.T) {
	require.Equal(t, "users_count", CounterColumn(EntityUsers))
	require.Equal(t, "groups_count", CounterColumn(EntityGroups))
	require.Equal(t, "apps_count", CounterColumn(EntityApplications))
	require.Equal(t, "policies_count", CounterColumn(EntityPolicies))
	require.Equal(t, "devices_count", CounterColumn(EntityDevices))
	require.Equal(t, "", CounterColumn(EntityType("bogus")))
}

func TestSyncStatusTerminal(t *testing.T) {
	for _, status := range []SyncStatus{SyncStatusCompleted, SyncStatusSuccess, SyncStatusFailed, SyncStatusCanceled} {
		require.True(t, status.Terminal(), string(status))
	}
	for _, status := range []SyncStatus{SyncStatusStarted, SyncStatusIdle, SyncStatusRunning, SyncStatusInProgress} {
		require.False(t, status.Terminal(), string(status))
	}
}
