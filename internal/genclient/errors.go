package genclient

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// Kind classifies a generative API failure.
type Kind int

const (
	KindGeneric Kind = iota
	KindNotFound
	KindQuota
	KindAuth
	KindTimeout
	KindNotInitialized
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindQuota:
		return "quota"
	case KindAuth:
		return "auth"
	case KindTimeout:
		return "timeout"
	case KindNotInitialized:
		return "not_initialized"
	default:
		return "generic"
	}
}

// Error is a classified API failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	// ErrNotInitialized is returned when a capability runs without a model.
	ErrNotInitialized = &Error{Kind: KindNotInitialized, Msg: "model not initialized"}

	// ErrTimeout is returned by Call when the request outlives its timeout.
	ErrTimeout = &Error{Kind: KindTimeout, Msg: "request timed out"}
)

var (
	authSignatures = []string{
		"403",
		"permission_denied",
		"unregistered callers",
		"api key",
		"unauthenticated",
		"invalid_api_key",
	}
	quotaSignatures    = []string{"quota", "429", "rate limit", "resource_exhausted"}
	notFoundSignatures = []string{"404", "not found"}
)

// Classify inspects err and returns its Kind. Structured API errors are
// checked first, then the message text.
func Classify(err error) Kind {
	if err == nil {
		return KindGeneric
	}

	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return KindAuth
		case http.StatusTooManyRequests:
			return KindQuota
		case http.StatusNotFound:
			return KindNotFound
		}
		switch apiErr.Status {
		case "UNAUTHENTICATED", "PERMISSION_DENIED":
			return KindAuth
		case "RESOURCE_EXHAUSTED":
			return KindQuota
		case "NOT_FOUND":
			return KindNotFound
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, authSignatures):
		return KindAuth
	case containsAny(msg, quotaSignatures):
		return KindQuota
	case containsAny(msg, notFoundSignatures):
		return KindNotFound
	}
	return KindGeneric
}

// Wrap classifies err and returns it as an *Error. nil stays nil.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	return &Error{Kind: Classify(err), Err: err}
}

// IsReinitTrigger reports whether a capability failure should schedule a
// fresh initialization attempt.
func IsReinitTrigger(err error) bool {
	if err == nil {
		return false
	}
	switch Classify(err) {
	case KindNotInitialized, KindQuota, KindNotFound:
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "model")
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
