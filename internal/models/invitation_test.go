package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInvitationEffectiveStatus(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	pending := Invitation{Status: InvitationStatusPending, ExpiresAt: now.Add(time.Hour)}
	require.Equal(t, InvitationStatusPending, pending.EffectiveStatus(now))

	// a stored PENDING row past its deadline reads as expired even before
	// the sweep rewrites it
	overdue := Invitation{Status: InvitationStatusPending, ExpiresAt: now.Add(-time.Minute)}
	require.Equal(t, InvitationStatusExpired, overdue.EffectiveStatus(now))

	// answered rows never flip back, whatever the deadline says
	accepted := Invitation{Status: InvitationStatusAccepted, ExpiresAt: now.Add(-time.Hour)}
	require.Equal(t, InvitationStatusAccepted, accepted.EffectiveStatus(now))

	declined := Invitation{Status: InvitationStatusDeclined, ExpiresAt: now.Add(-time.Hour)}
	require.Equal(t, InvitationStatusDeclined, declined.EffectiveStatus(now))
}

func TestInvitationEffectiveStatusAtBoundary(t *testing.T) {
	deadline := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	invite := Invitation{Status: InvitationStatusPending, ExpiresAt: deadline}

	require.Equal(t, InvitationStatusPending, invite.EffectiveStatus(deadline))
	require.Equal(t, InvitationStatusExpired, invite.EffectiveStatus(deadline.Add(time.Nanosecond)))
}
