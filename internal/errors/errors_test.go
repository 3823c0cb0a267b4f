// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package errors

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
)

// TestUserError_Error verifies the Error() method implementation.
func TestUserError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *UserError
		want string
	}{
		{
			name: "with underlying error",
			err: &UserError{
				Message: "Cannot open vector store",
				Err:     fmt.Errorf("file locked"),
			},
			want: "Cannot open vector store: file locked",
		},
		{
			name: "without underlying error",
			err: &UserError{
				Message: "Invalid input",
				Err:     nil,
			},
			want: "Invalid input",
		},
		{
			name: "empty message with underlying error",
			err: &UserError{
				Message: "",
				Err:     fmt.Errorf("some error"),
			},
			want: ": some error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if got != tt.want {
				t.Errorf("UserError.Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestExitCodes verifies that exit code constants have the documented values.
func TestExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		want     int
	}{
		{"ExitSuccess", ExitSuccess, 0},
		{"ExitConfig", ExitConfig, 1},
		{"ExitDatabase", ExitDatabase, 2},
		{"ExitNetwork", ExitNetwork, 3},
		{"ExitInput", ExitInput, 4},
		{"ExitPermission", ExitPermission, 5},
		{"ExitNotFound", ExitNotFound, 6},
		{"ExitInternal", ExitInternal, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.exitCode != tt.want {
				t.Errorf("%s = %d, want %d", tt.name, tt.exitCode, tt.want)
			}
		})
	}
}

// TestConstructors verifies that each constructor sets the matching exit code
// and carries the underlying error only where documented.
func TestConstructors(t *testing.T) {
	underlyingErr := fmt.Errorf("underlying error")

	tests := []struct {
		name         string
		constructor  func() *UserError
		wantExitCode int
		wantHasErr   bool
	}{
		{
			name: "NewConfigError",
			constructor: func() *UserError {
				return NewConfigError("msg", "cause", "fix", underlyingErr)
			},
			wantExitCode: ExitConfig,
			wantHasErr:   true,
		},
		{
			name: "NewDatabaseError",
			constructor: func() *UserError {
				return NewDatabaseError("msg", "cause", "fix", underlyingErr)
			},
			wantExitCode: ExitDatabase,
			wantHasErr:   true,
		},
		{
			name: "NewNetworkError",
			constructor: func() *UserError {
				return NewNetworkError("msg", "cause", "fix", underlyingErr)
			},
			wantExitCode: ExitNetwork,
			wantHasErr:   true,
		},
		{
			name: "NewInputError",
			constructor: func() *UserError {
				return NewInputError("msg", "cause", "fix")
			},
			wantExitCode: ExitInput,
			wantHasErr:   false,
		},
		{
			name: "NewPermissionError",
			constructor: func() *UserError {
				return NewPermissionError("msg", "cause", "fix", underlyingErr)
			},
			wantExitCode: ExitPermission,
			wantHasErr:   true,
		},
		{
			name: "NewNotFoundError",
			constructor: func() *UserError {
				return NewNotFoundError("msg", "cause", "fix")
			},
			wantExitCode: ExitNotFound,
			wantHasErr:   false,
		},
		{
			name: "NewInternalError",
			constructor: func() *UserError {
				return NewInternalError("msg", "cause", "fix", underlyingErr)
			},
			wantExitCode: ExitInternal,
			wantHasErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.constructor()

			if got.Message != "msg" || got.Cause != "cause" || got.Fix != "fix" {
				t.Errorf("fields = (%q, %q, %q), want (msg, cause, fix)", got.Message, got.Cause, got.Fix)
			}
			if got.ExitCode != tt.wantExitCode {
				t.Errorf("ExitCode = %d, want %d", got.ExitCode, tt.wantExitCode)
			}
			hasErr := got.Err != nil
			if hasErr != tt.wantHasErr {
				t.Errorf("has underlying error = %v, want %v", hasErr, tt.wantHasErr)
			}
		})
	}
}

// TestErrorChain verifies error wrapping compatibility with the stdlib errors package.
func TestErrorChain(t *testing.T) {
	t.Run("errors.Is works through UserError", func(t *testing.T) {
		sentinel := fmt.Errorf("sentinel error")
		wrapped := fmt.Errorf("wrapped: %w", sentinel)
		userErr := NewDatabaseError("store error", "cause", "fix", wrapped)

		if !errors.Is(userErr, sentinel) {
			t.Error("errors.Is should find sentinel error in chain")
		}
	})

	t.Run("errors.As extracts the outermost UserError", func(t *testing.T) {
		innerErr := NewConfigError("config error", "cause", "fix", nil)
		outerErr := NewDatabaseError("store error", "cause", "fix", innerErr)

		var targetErr *UserError
		if !errors.As(outerErr, &targetErr) {
			t.Fatal("errors.As should extract UserError")
		}
		if targetErr.ExitCode != ExitDatabase {
			t.Errorf("ExitCode = %d, want %d", targetErr.ExitCode, ExitDatabase)
		}

		var cfgErr *UserError
		if !errors.As(targetErr.Err, &cfgErr) {
			t.Fatal("errors.As should extract nested UserError")
		}
		if cfgErr.ExitCode != ExitConfig {
			t.Errorf("nested ExitCode = %d, want %d", cfgErr.ExitCode, ExitConfig)
		}
	})
}

// TestUserError_Format verifies the Format() method implementation.
func TestUserError_Format(t *testing.T) {
	tests := []struct {
		name    string
		err     *UserError
		noColor bool
		want    []string // Substrings that must be present
	}{
		{
			name: "full error with color disabled",
			err: &UserError{
				Message:  "Cannot open vector store",
				Cause:    "The database file is locked",
				Fix:      "Close other cortex instances",
				ExitCode: ExitDatabase,
			},
			noColor: true,
			want:    []string{"Error: Cannot open vector store", "Cause: The database file is locked", "Fix:   Close other cortex instances"},
		},
		{
			name: "error without cause",
			err: &UserError{
				Message:  "Invalid input",
				Fix:      "Use valid format",
				ExitCode: ExitInput,
			},
			noColor: true,
			want:    []string{"Error: Invalid input", "Fix:   Use valid format"},
		},
		{
			name: "minimal error (message only)",
			err: &UserError{
				Message:  "Something failed",
				ExitCode: ExitInternal,
			},
			noColor: true,
			want:    []string{"Error: Something failed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Format(tt.noColor)
			for _, substr := range tt.want {
				if !strings.Contains(got, substr) {
					t.Errorf("Format() output missing %q\nGot: %s", substr, got)
				}
			}
		})
	}
}

// TestUserError_Format_NoColor verifies that NO_COLOR is respected.
func TestUserError_Format_NoColor(t *testing.T) {
	oldNoColor := os.Getenv("NO_COLOR")
	defer func() {
		if oldNoColor != "" {
			os.Setenv("NO_COLOR", oldNoColor)
		} else {
			os.Unsetenv("NO_COLOR")
		}
	}()

	err := &UserError{
		Message:  "Test error",
		Cause:    "Test cause",
		Fix:      "Test fix",
		ExitCode: ExitConfig,
	}

	os.Setenv("NO_COLOR", "1")
	output := err.Format(false)

	if strings.Contains(output, "\x1b[") {
		t.Error("Format() output contains ANSI codes despite NO_COLOR being set")
	}
}

// TestUserError_ToJSON verifies the ToJSON() method implementation.
func TestUserError_ToJSON(t *testing.T) {
	err := &UserError{
		Message:  "Invalid configuration",
		Cause:    "Missing required field",
		Fix:      "Run: cortex init",
		ExitCode: ExitConfig,
	}

	got := err.ToJSON()
	if got.Error != "Invalid configuration" {
		t.Errorf("ToJSON().Error = %q, want %q", got.Error, "Invalid configuration")
	}
	if got.Cause != "Missing required field" {
		t.Errorf("ToJSON().Cause = %q, want %q", got.Cause, "Missing required field")
	}
	if got.Fix != "Run: cortex init" {
		t.Errorf("ToJSON().Fix = %q, want %q", got.Fix, "Run: cortex init")
	}
	if got.ExitCode != ExitConfig {
		t.Errorf("ToJSON().ExitCode = %d, want %d", got.ExitCode, ExitConfig)
	}
}

// TestFatalError_NilDoesNothing verifies that a nil error does not exit.
func TestFatalError_NilDoesNothing(t *testing.T) {
	FatalError(nil, false)
}
