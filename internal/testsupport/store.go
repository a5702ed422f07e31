package testsupport

import (
	"testing"

	"fetcharr/internal/config"
	"fetcharr/internal/tracking"
)

// MustOpenStore opens a tracking store for tests and closes it on cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *tracking.Store {
	t.Helper()

	store, err := tracking.Open(cfg)
	if err != nil {
		t.Fatalf("open tracking store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close tracking store: %v", err)
		}
	})
	return store
}
