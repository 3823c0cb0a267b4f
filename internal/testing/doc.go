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

// Package testing provides shared fixtures for cortex tests: temp-dir
// vector stores wired to a deterministic mock embedder, template
// registries with the default tasks seeded, and queue helpers.
//
// # Quick Start
//
//	func TestMyFeature(t *testing.T) {
//	    store, _ := testing.SetupStore(t)
//	    ids := testing.SeedDocuments(t, store, "first", "second")
//
//	    matches, err := store.Query(context.Background(), "first", 1, nil)
//	    // ...
//	}
//
// Everything registered here is cleaned up via t.Cleanup; tests never have
// to close stores or delete files themselves. The mock embedder produces
// stable vectors from a content hash, so similarity assertions are
// deterministic across runs.
package testing
