package services_test

import (
	"errors"
	"strings"
	"testing"

	"cardsorter/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrUnavailable, "grid", "load", "source failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"grid", "load", "source failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestFailureKindMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"validation", services.Wrap(services.ErrValidation, "api", "preview", "bad mode", nil), services.KindValidation},
		{"not found", services.Wrap(services.ErrNotFound, "catalog", "identify", "no match", nil), services.KindNotFound},
		{"unavailable", services.Wrap(services.ErrUnavailable, "daemon", "commit", "offline", nil), services.KindUnavailable},
		{"conflict", services.Wrap(services.ErrConflict, "pipeline", "step", "auto active", nil), services.KindConflict},
		{"plain", errors.New("io"), services.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.FailureKind(tt.err); got != tt.want {
				t.Fatalf("FailureKind = %q, want %q", got, tt.want)
			}
		})
	}
}
