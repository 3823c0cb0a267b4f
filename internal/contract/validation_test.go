// Copyright 2026 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package contract

import (
	"strings"
	"testing"
)

func TestMaxContentBytes_Default(t *testing.T) {
	t.Setenv("CORTEX_MAX_CONTENT_BYTES", "")
	if got := MaxContentBytes(); got != DefaultMaxContentBytes {
		t.Errorf("MaxContentBytes() = %d, want %d", got, DefaultMaxContentBytes)
	}
}

func TestMaxContentBytes_EnvOverride(t *testing.T) {
	t.Setenv("CORTEX_MAX_CONTENT_BYTES", "1024")
	if got := MaxContentBytes(); got != 1024 {
		t.Errorf("MaxContentBytes() = %d, want 1024", got)
	}
}

func TestMaxContentBytes_InvalidEnvFallsBack(t *testing.T) {
	for _, v := range []string{"abc", "-5", "0"} {
		t.Setenv("CORTEX_MAX_CONTENT_BYTES", v)
		if got := MaxContentBytes(); got != DefaultMaxContentBytes {
			t.Errorf("MaxContentBytes() with env %q = %d, want default %d", v, got, DefaultMaxContentBytes)
		}
	}
}

func TestValidateContent(t *testing.T) {
	t.Setenv("CORTEX_MAX_CONTENT_BYTES", "16")

	if r := ValidateContent("short"); !r.OK {
		t.Errorf("ValidateContent(short) = %q, want OK", r.Message)
	}
	if r := ValidateContent(strings.Repeat("x", 17)); r.OK {
		t.Error("ValidateContent(oversized) should fail")
	}
}

func TestValidateID(t *testing.T) {
	if r := ValidateID(""); r.OK {
		t.Error("empty id should fail")
	}
	if r := ValidateID(strings.Repeat("a", DocumentIDMaxBytes+1)); r.OK {
		t.Error("oversized id should fail")
	}
	if r := ValidateID("notes_summarize_1756000000"); !r.OK {
		t.Errorf("valid id rejected: %s", r.Message)
	}
}
