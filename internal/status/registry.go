// Package status holds the process-wide API failure markers that UI
// banners poll, independent of which orchestrator recorded them.
package status

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// QuotaWindow is how long a recorded quota issue stays relevant.
	QuotaWindow = time.Hour

	// AuthWindow is how long a recorded authentication error stays relevant.
	AuthWindow = 24 * time.Hour
)

// Snapshot is a point-in-time copy of the registry.
type Snapshot struct {
	QuotaIssues      bool      `json:"quota_issues"`
	LastQuotaIssueAt time.Time `json:"last_quota_issue_at,omitempty"`
	AuthError        bool      `json:"auth_error"`
	LastAuthErrorAt  time.Time `json:"last_auth_error_at,omitempty"`
	AuthErrorMessage string    `json:"auth_error_message,omitempty"`
}

// Registry records quota and authentication failures. A single instance
// is created at startup and shared by every orchestrator and status reader.
type Registry struct {
	clock clockwork.Clock

	mu             sync.RWMutex
	lastQuotaIssue time.Time
	lastAuthError  time.Time
	authMessage    string
}

// NewRegistry creates an empty Registry. A nil clock uses wall time.
func NewRegistry(clock clockwork.Clock) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{clock: clock}
}

// RecordQuotaIssue marks that the API budget was exhausted just now.
func (r *Registry) RecordQuotaIssue() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastQuotaIssue = r.clock.Now()
}

// IsLikelyHavingQuotaIssues reports whether a quota issue was recorded
// within QuotaWindow.
func (r *Registry) IsLikelyHavingQuotaIssues() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return within(r.clock.Now(), r.lastQuotaIssue, QuotaWindow)
}

// RecordAuthenticationError marks that the API rejected the credential.
func (r *Registry) RecordAuthenticationError(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastAuthError = r.clock.Now()
	r.authMessage = message
}

// HasRecentAuthenticationError reports whether an authentication error was
// recorded within AuthWindow.
func (r *Registry) HasRecentAuthenticationError() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return within(r.clock.Now(), r.lastAuthError, AuthWindow)
}

// AuthenticationErrorMessage returns the last recorded message, if any.
func (r *Registry) AuthenticationErrorMessage() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.authMessage, r.authMessage != ""
}

// ClearAuthenticationError forgets the recorded authentication error,
// typically after the user updated the key.
func (r *Registry) ClearAuthenticationError() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastAuthError = time.Time{}
	r.authMessage = ""
}

// Snapshot returns the current state for display.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.clock.Now()
	return Snapshot{
		QuotaIssues:      within(now, r.lastQuotaIssue, QuotaWindow),
		LastQuotaIssueAt: r.lastQuotaIssue,
		AuthError:        within(now, r.lastAuthError, AuthWindow),
		LastAuthErrorAt:  r.lastAuthError,
		AuthErrorMessage: r.authMessage,
	}
}

// Reset clears every marker. Called at shutdown.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastQuotaIssue = time.Time{}
	r.lastAuthError = time.Time{}
	r.authMessage = ""
}

func within(now, at time.Time, window time.Duration) bool {
	return !at.IsZero() && now.Sub(at) < window
}
