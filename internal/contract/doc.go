// Copyright 2026 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package contract provides input limits and validation utilities for cortex.
//
// This internal package contains the size limits enforced at processing
// boundaries: workers refuse to load files larger than the content limit,
// and processors reject oversized payloads before any provider call.
//
// # Content Size Limits
//
// Cortex enforces a soft limit on processed content to prevent memory
// exhaustion and runaway LLM bills:
//
//	// Default limit is 8 MiB
//	limit := contract.MaxContentBytes()
//
//	// Validate content before handing it to a processor
//	result := contract.ValidateContent(content)
//	if !result.OK {
//	    log.Printf("Validation failed: %s", result.Message)
//	}
//
// # Configuration via Environment
//
// The limit can be adjusted via the CORTEX_MAX_CONTENT_BYTES environment
// variable. This is useful for hosts with limited memory or when
// intentionally processing very large documents:
//
//	export CORTEX_MAX_CONTENT_BYTES=1048576  # 1 MiB
//
// If the environment variable is not set or invalid, the default limit
// of 8 MiB (DefaultMaxContentBytes) is used.
package contract
