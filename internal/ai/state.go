package ai

import (
	"fmt"
	"time"
)

// State is the orchestrator's initialization state.
type State int

const (
	StateUninitialized State = iota
	StateProbing
	StateReady
	StateFailedRetryable
	StateFailedPermanent
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateProbing:
		return "probing"
	case StateReady:
		return "ready"
	case StateFailedRetryable:
		return "failed_retryable"
	case StateFailedPermanent:
		return "failed_permanent"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for st := StateUninitialized; st <= StateFailedPermanent; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// FailureCause explains a permanent failure.
type FailureCause string

const (
	CauseNone  FailureCause = "none"
	CauseAuth  FailureCause = "auth"
	CauseQuota FailureCause = "quota"
)

// APIStatus is a snapshot of the orchestrator for status displays.
type APIStatus struct {
	Available               bool         `json:"available"`
	Initialized             bool         `json:"initialized"`
	InitializationAttempted bool         `json:"initialization_attempted"`
	QuotaIssues             bool         `json:"quota_issues"`
	State                   State        `json:"state"`
	Cause                   FailureCause `json:"cause"`
	RetryCount              int          `json:"retry_count"`
	MaxRetries              int          `json:"max_retries"`
	Model                   string       `json:"model,omitempty"`
	NextAttemptAt           time.Time    `json:"next_attempt_at,omitempty"`
	LastQuotaIssueAt        time.Time    `json:"last_quota_issue_at,omitempty"`
	LastAuthErrorAt         time.Time    `json:"last_auth_error_at,omitempty"`
	LastAuthErrorMessage    string       `json:"last_auth_error_message,omitempty"`
}
