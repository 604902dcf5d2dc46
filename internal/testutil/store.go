// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/nhle/smart-onboard/internal/store"
)

// NewTestStore opens an in-memory SQLiteStore that is closed with the test.
// Each seed map is written before the store is returned: string values are
// stored as-is, anything else as a JSON document.
func NewTestStore(t *testing.T, seed ...map[string]any) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("opening kv store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing kv store: %v", err)
		}
	})

	ctx := context.Background()
	for _, entries := range seed {
		for key, v := range entries {
			if raw, ok := v.(string); ok {
				err = s.Set(ctx, key, raw)
			} else {
				err = store.SetJSON(ctx, s, key, v)
			}
			if err != nil {
				t.Fatalf("seeding %q: %v", key, err)
			}
		}
	}

	return s
}
