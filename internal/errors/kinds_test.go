// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package errors

import (
	"errors"
	"fmt"
	"testing"
)

// TestError_Error verifies the rendered error text keeps the kind prefix.
func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "message only",
			err:  E(UnknownTask, "task %q not supported", "translate"),
			want: `UnknownTask: task "translate" not supported`,
		},
		{
			name: "message and cause",
			err:  Wrap(ProviderTransport, "embedding request failed", fmt.Errorf("connection refused")),
			want: "ProviderTransport: embedding request failed: connection refused",
		},
		{
			name: "cause only",
			err:  &Error{Kind: StorageIO, Err: fmt.Errorf("disk full")},
			want: "StorageIO: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestKindOf verifies kind extraction through wrapped chains.
func TestKindOf(t *testing.T) {
	inner := E(EmbeddingFailure, "no vector produced")
	wrapped := fmt.Errorf("add failed: %w", inner)

	if got := KindOf(wrapped); got != EmbeddingFailure {
		t.Errorf("KindOf(wrapped) = %q, want %q", got, EmbeddingFailure)
	}
	if got := KindOf(fmt.Errorf("plain")); got != Kind("") {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}
	if !IsKind(wrapped, EmbeddingFailure) {
		t.Error("IsKind should match the wrapped kind")
	}
	if IsKind(wrapped, Timeout) {
		t.Error("IsKind should not match a different kind")
	}
}

// TestKindOf_OutermostWins verifies that nesting taxonomy errors reports the
// outer classification, matching how workers re-wrap provider errors.
func TestKindOf_OutermostWins(t *testing.T) {
	inner := E(ProviderTransport, "dial tcp: refused")
	outer := Wrap(EmbeddingFailure, "embed query", inner)

	if got := KindOf(outer); got != EmbeddingFailure {
		t.Errorf("KindOf = %q, want %q", got, EmbeddingFailure)
	}
	// The inner kind stays reachable for callers that need it.
	var te *Error
	if !errors.As(outer.Err, &te) || te.Kind != ProviderTransport {
		t.Error("inner taxonomy error should remain in the chain")
	}
}

// TestRetryable pins the retryable subset of the taxonomy.
func TestRetryable(t *testing.T) {
	retryable := []Kind{Timeout, ProviderTransport, RateLimited, StorageIO}
	for _, k := range retryable {
		if !Retryable(E(k, "x")) {
			t.Errorf("Retryable(%s) = false, want true", k)
		}
	}

	terminal := []Kind{
		ConfigInvalid, QueueFull, FileNotFound, UnknownTask,
		InvalidInput, AuthFailure, NoProviderAvailable,
		EmbeddingFailure, DimensionMismatch, Cancelled,
		NotFound, MissingVariable, UnknownPlaceholder,
	}
	for _, k := range terminal {
		if Retryable(E(k, "x")) {
			t.Errorf("Retryable(%s) = true, want false", k)
		}
	}

	if Retryable(fmt.Errorf("untagged")) {
		t.Error("untagged errors must not be retryable")
	}
}
