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
package testing

import (
	"context"
	stdtesting "testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/cortex/pkg/queue"
)

func TestSetupStoreAndSeed(t *stdtesting.T) {
	store, mock := SetupStore(t)

	ids := SeedDocuments(t, store, "alpha", "beta", "gamma")
	require.Len(t, ids, 3)
	assert.Equal(t, 3, mock.Calls())

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Count)
	assert.Equal(t, MockDimension, stats.EmbeddingInfo.Dimension)
}

func TestSetupRegistryHasDefaults(t *stdtesting.T) {
	registry := SetupRegistry(t)

	for _, name := range []string{"summarize", "enhance", "extract_insights", "questions", "classify"} {
		_, err := registry.GetByName(name)
		require.NoError(t, err, "default template %q missing", name)
	}
}

func TestEnqueueContent(t *stdtesting.T) {
	q := SetupQueue(t, 10)

	item := EnqueueContent(t, q, "summarize", "inline body")
	require.NotEmpty(t, item.ID)

	got, ok := q.Get(item.ID)
	require.True(t, ok)
	assert.Equal(t, queue.StatusPending, got.Status)
	assert.Equal(t, queue.DefaultPriority, got.Priority)
}
