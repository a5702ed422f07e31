package services_test

import (
	"errors"
	"strings"
	"testing"

	"fetcharr/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("connection refused")
	err := services.Wrap(services.ErrUnavailable, "sonarr", "fetch wanted", base)
	if !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped base error, got %v", err)
	}
	if !strings.Contains(err.Error(), "sonarr: fetch wanted") {
		t.Fatalf("expected component detail in message, got %q", err.Error())
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient fallback, got %v", err)
	}
}

func TestFailsRun(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"unavailable", services.Wrap(services.ErrUnavailable, "store", "batch get", nil), true},
		{"configuration", services.Wrap(services.ErrConfiguration, "queue", "load", nil), true},
		{"transient", services.Wrap(services.ErrTransient, "dispatch", "command", nil), false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := services.FailsRun(tc.err); got != tc.fatal {
			t.Fatalf("%s: FailsRun = %v, want %v", tc.name, got, tc.fatal)
		}
	}
}
