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

// Package embedding turns text into fixed-dimension float vectors.
//
// Providers:
//   - Ollama: local server, preferred when reachable (nomic-embed-text and
//     friends). No API key required.
//   - OpenAI: remote fallback, requires OPENAI_API_KEY.
//   - Mock: deterministic hash-based vectors for tests.
//   - Fallback: prefers local, falls back to remote, caches results.
//
// Every call reports the model actually used so the vector store can persist
// it alongside the document; vectors produced by different models are not
// comparable.
//
// Environment variables:
//
//	OLLAMA_BASE_URL     Ollama URL (default: http://localhost:11434)
//	OLLAMA_EMBED_MODEL  Preferred local model (default: nomic-embed-text)
//	OPENAI_API_KEY      Remote fallback credentials
//	OPENAI_BASE_URL     OpenAI-compatible endpoint (default: https://api.openai.com/v1)
//	OPENAI_EMBED_MODEL  Remote model (default: text-embedding-3-small)
package embedding
