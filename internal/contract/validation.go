// Copyright 2026 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package contract

import (
	"fmt"
	"os"
	"strconv"
)

const (
	// DefaultMaxContentBytes is the baseline soft limit for processed content.
	DefaultMaxContentBytes = 8 << 20 // 8 MiB

	// DocumentIDMaxBytes is the maximum length for a document or item id.
	DocumentIDMaxBytes = 128
)

// MaxContentBytes returns the effective soft limit for content size.
// Controlled via env CORTEX_MAX_CONTENT_BYTES; falls back to DefaultMaxContentBytes.
func MaxContentBytes() int {
	if v := os.Getenv("CORTEX_MAX_CONTENT_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultMaxContentBytes
}

// ValidationResult represents the result of a validation check.
type ValidationResult struct {
	OK      bool
	Message string
}

// ValidateContent checks a content payload against the size limit.
func ValidateContent(content string) *ValidationResult {
	if limit := MaxContentBytes(); len(content) > limit {
		return &ValidationResult{
			OK:      false,
			Message: fmt.Sprintf("content is %d bytes, limit is %d", len(content), limit),
		}
	}
	return &ValidationResult{OK: true}
}

// ValidateID checks an id against the length limit and rejects empties.
func ValidateID(id string) *ValidationResult {
	if id == "" {
		return &ValidationResult{OK: false, Message: "id must not be empty"}
	}
	if len(id) > DocumentIDMaxBytes {
		return &ValidationResult{
			OK:      false,
			Message: fmt.Sprintf("id is %d bytes, limit is %d", len(id), DocumentIDMaxBytes),
		}
	}
	return &ValidationResult{OK: true}
}
