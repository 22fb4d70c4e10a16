package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestFailureReason(t *testing.T) {
	cases := map[string]error{
		"timeout":       fmt.Errorf("generate: %w", context.DeadlineExceeded),
		"rate_limited":  WrapError(ErrRateLimited, "gemini generate", errors.New("429")),
		"access_denied": WrapError(ErrAccessDenied, "gemini generate", errors.New("403")),
		"other":         errors.New("boom"),
	}
	for want, err := range cases {
		if got := FailureReason(err); got != want {
			t.Fatalf("FailureReason(%v) = %q, want %q", err, got, want)
		}
	}
	if got := FailureReason(nil); got != "" {
		t.Fatalf("expected empty reason for nil error, got %q", got)
	}
}

func TestWrapErrorKeepsKind(t *testing.T) {
	err := WrapError(ErrInvalidInput, "ingest", errors.New("empty document"))
	if !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput kind, got %v", err)
	}
	if WrapError(ErrInvalidInput, "ingest", nil) != nil {
		t.Fatalf("expected nil for nil cause")
	}
}
