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

// Package vectorstore persists documents with their embeddings in a local
// SQLite database and answers semantic queries over them.
//
// The store is collection-scoped: one Store instance binds to a single
// (db path, collection) pair, and opening the same pair again reattaches the
// existing data. A collection's vector dimension is locked by the first
// successful add; later writes with a different dimension are refused.
//
// Queries are brute-force k-NN over the collection: the query text is
// embedded, L2 distance is computed against every stored vector, and
// similarity = 1/(1+distance). That scales fine to the tens of thousands of
// documents a personal workspace holds; an ANN index is not worth the
// dependency below that.
package vectorstore
