// Package credential resolves the generative API key from persisted
// storage or the environment and reports its format status.
package credential

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/nhle/smart-onboard/internal/store"
)

// StorageKey is the store key under which the API key is persisted.
const StorageKey = "gemini_api_key"

const minKeyLength = 30

var keyCharset = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ErrInvalidKeyFormat is returned by Update for keys that fail ValidateFormat.
var ErrInvalidKeyFormat = errors.New("invalid API key format")

// KeyOrigin identifies where a key was found.
type KeyOrigin string

const (
	OriginStorage     KeyOrigin = "storage"
	OriginEnvironment KeyOrigin = "environment"
	OriginNone        KeyOrigin = "none"
)

// Status reports whether a key is configured and whether its format is
// plausible. It is derived fresh on every query.
type Status struct {
	HasKey   bool      `json:"has_key"`
	KeyValid bool      `json:"key_valid"`
	Origin   KeyOrigin `json:"key_source"`
}

// ValidateFormat reports whether key looks like a Gemini API key. It never
// contacts the API.
func ValidateFormat(key string) bool {
	return len(key) >= minKeyLength && keyCharset.MatchString(key)
}

// Resolver looks up the API key in persisted storage first and in the
// environment-provided value second.
type Resolver struct {
	store     store.Store
	envKey    string
	log       zerolog.Logger
	persisted atomic.Bool
}

// NewResolver creates a Resolver. envKey is the value read from the
// environment at startup and may be empty.
func NewResolver(s store.Store, envKey string, log zerolog.Logger) *Resolver {
	return &Resolver{
		store:  s,
		envKey: strings.TrimSpace(envKey),
		log:    log.With().Str("component", "credential").Logger(),
	}
}

// Initialize persists the environment key when storage holds none.
func (r *Resolver) Initialize(ctx context.Context) {
	if r.envKey == "" {
		return
	}
	if stored, ok := r.stored(ctx); ok && stored != "" {
		return
	}
	r.persistEnv(ctx)
}

// Status resolves the current credential status.
func (r *Resolver) Status(ctx context.Context) Status {
	st, _ := r.resolve(ctx)
	return st
}

// APIKey returns the key that Status considers valid.
func (r *Resolver) APIKey(ctx context.Context) (string, bool) {
	st, key := r.resolve(ctx)
	if !st.KeyValid {
		return "", false
	}
	return key, true
}

// Update validates and persists a new key.
func (r *Resolver) Update(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if !ValidateFormat(key) {
		return ErrInvalidKeyFormat
	}
	return r.store.Set(ctx, StorageKey, key)
}

// Clear removes the persisted key. Failures are logged only.
func (r *Resolver) Clear(ctx context.Context) {
	if err := r.store.Remove(ctx, StorageKey); err != nil {
		r.log.Warn().Err(err).Msg("failed to clear stored API key")
	}
}

func (r *Resolver) resolve(ctx context.Context) (Status, string) {
	stored, hasStored := r.stored(ctx)
	hasStored = hasStored && stored != ""

	if hasStored && ValidateFormat(stored) {
		return Status{HasKey: true, KeyValid: true, Origin: OriginStorage}, stored
	}

	if r.envKey != "" && ValidateFormat(r.envKey) {
		if !hasStored && !r.persisted.Load() {
			r.persistEnv(ctx)
		}
		return Status{HasKey: true, KeyValid: true, Origin: OriginEnvironment}, r.envKey
	}

	switch {
	case hasStored:
		return Status{HasKey: true, Origin: OriginStorage}, ""
	case r.envKey != "":
		return Status{HasKey: true, Origin: OriginEnvironment}, ""
	}
	return Status{Origin: OriginNone}, ""
}

func (r *Resolver) stored(ctx context.Context) (string, bool) {
	v, ok, err := r.store.Get(ctx, StorageKey)
	if err != nil {
		r.log.Warn().Err(err).Msg("failed to read stored API key")
		return "", false
	}
	return strings.TrimSpace(v), ok
}

// persistEnv stores the environment key once; later calls are no-ops even
// when the first write failed.
func (r *Resolver) persistEnv(ctx context.Context) {
	if !r.persisted.CompareAndSwap(false, true) {
		return
	}
	if err := r.store.Set(ctx, StorageKey, r.envKey); err != nil {
		r.log.Warn().Err(err).Msg("failed to persist API key from environment")
		return
	}
	r.log.Debug().Msg("persisted API key from environment")
}
