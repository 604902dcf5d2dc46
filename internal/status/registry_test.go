package status

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestRegistry_QuotaWindow(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC))
	r := NewRegistry(clock)

	assert.False(t, r.IsLikelyHavingQuotaIssues())

	r.RecordQuotaIssue()
	assert.True(t, r.IsLikelyHavingQuotaIssues())

	clock.Advance(59 * time.Minute)
	assert.True(t, r.IsLikelyHavingQuotaIssues())

	clock.Advance(time.Minute)
	assert.False(t, r.IsLikelyHavingQuotaIssues())
}

func TestRegistry_AuthenticationError(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC))
	r := NewRegistry(clock)

	_, ok := r.AuthenticationErrorMessage()
	assert.False(t, ok)
	assert.False(t, r.HasRecentAuthenticationError())

	r.RecordAuthenticationError("API key not valid")
	assert.True(t, r.HasRecentAuthenticationError())
	msg, ok := r.AuthenticationErrorMessage()
	assert.True(t, ok)
	assert.Equal(t, "API key not valid", msg)

	clock.Advance(23 * time.Hour)
	assert.True(t, r.HasRecentAuthenticationError())
	clock.Advance(time.Hour)
	assert.False(t, r.HasRecentAuthenticationError())

	// The message outlives the window until explicitly cleared.
	_, ok = r.AuthenticationErrorMessage()
	assert.True(t, ok)

	r.ClearAuthenticationError()
	_, ok = r.AuthenticationErrorMessage()
	assert.False(t, ok)
}

func TestRegistry_SnapshotAndReset(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC))
	r := NewRegistry(clock)

	r.RecordQuotaIssue()
	r.RecordAuthenticationError("PERMISSION_DENIED")

	snap := r.Snapshot()
	assert.True(t, snap.QuotaIssues)
	assert.True(t, snap.AuthError)
	assert.Equal(t, clock.Now(), snap.LastQuotaIssueAt)
	assert.Equal(t, "PERMISSION_DENIED", snap.AuthErrorMessage)

	r.Reset()
	assert.Equal(t, Snapshot{}, r.Snapshot())
}
