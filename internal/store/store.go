package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Store is an opaque string-keyed persistence interface. Reads and writes
// are atomic per key; no multi-key transactions are offered.
type Store interface {
	// Get returns the value stored under key. ok is false when the key
	// has never been set or was removed.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// GetJSON decodes the JSON document stored under key into dst.
// It reports false when the key is absent.
func GetJSON(ctx context.Context, s Store, key string, dst any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decoding %q: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v as JSON and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}
