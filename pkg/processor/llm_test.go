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
package processor

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/kraklabs/cortex/internal/errors"
	"github.com/kraklabs/cortex/pkg/llm"
	"github.com/kraklabs/cortex/pkg/prompt"
)

func newTestRegistry(t *testing.T) *prompt.Registry {
	t.Helper()
	r, err := prompt.NewRegistry(t.TempDir(), nil)
	require.NoError(t, err)
	_, err = r.EnsureDefaults()
	require.NoError(t, err)
	return r
}

func TestLLMProcessorSummarize(t *testing.T) {
	registry := newTestRegistry(t)
	var gotPrompt string
	provider := &llm.MockProvider{
		GenerateFunc: func(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
			gotPrompt = req.Prompt
			return &llm.GenerateResponse{
				Text:        "A short summary.",
				Model:       req.Model,
				TotalTokens: 42,
				Done:        true,
			}, nil
		},
	}

	p := NewLLMProcessor(provider, registry, KindLocalLLM, "llama3.2", nil)
	res := p.Process(context.Background(), "The quick brown fox jumps over the lazy dog.", "summarize", Options{})

	require.True(t, res.OK, "err = %v", res.Err)
	assert.Equal(t, "A short summary.", res.Content)
	assert.Contains(t, gotPrompt, "The quick brown fox", "content must be substituted into the template")
	assert.Equal(t, "llama3.2", res.Metadata["model"])
	assert.Equal(t, "summarize", res.Metadata["task"])
	assert.Equal(t, 42, res.Metadata["estimated_tokens"])
	assert.Greater(t, res.Elapsed.Nanoseconds(), int64(0))
}

func TestLLMProcessorUnknownTask(t *testing.T) {
	p := NewLLMProcessor(&llm.MockProvider{}, newTestRegistry(t), KindLocalLLM, "m", nil)

	res := p.Process(context.Background(), "content", "translate", Options{})
	assert.False(t, res.OK)
	assert.True(t, errs.IsKind(res.Err, errs.UnknownTask), "got %v", res.Err)
}

func TestLLMProcessorEmptyContent(t *testing.T) {
	p := NewLLMProcessor(&llm.MockProvider{}, newTestRegistry(t), KindLocalLLM, "m", nil)

	res := p.Process(context.Background(), "", "summarize", Options{})
	assert.False(t, res.OK)
	assert.True(t, errs.IsKind(res.Err, errs.InvalidInput), "got %v", res.Err)
}

func TestLLMProcessorExplicitOptionsWin(t *testing.T) {
	registry := newTestRegistry(t)

	var gotReq llm.GenerateRequest
	provider := &llm.MockProvider{
		GenerateFunc: func(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
			gotReq = req
			return &llm.GenerateResponse{Text: "ok", Model: req.Model, Done: true}, nil
		},
	}

	temp := 0.9
	maxTokens := 128
	p := NewLLMProcessor(provider, registry, KindRemoteLLM, "default-model", nil)
	res := p.Process(context.Background(), "text", "enhance", Options{
		Model:       "explicit-model",
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})

	require.True(t, res.OK, "err = %v", res.Err)
	assert.Equal(t, "explicit-model", gotReq.Model)
	require.NotNil(t, gotReq.Temperature)
	assert.Equal(t, 0.9, *gotReq.Temperature)
	assert.Equal(t, 128, gotReq.MaxTokens)
}

func TestLLMProcessorRetriesTransientErrors(t *testing.T) {
	registry := newTestRegistry(t)

	calls := 0
	provider := &llm.MockProvider{
		GenerateFunc: func(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
			calls++
			if calls < 3 {
				return nil, errs.E(errs.ProviderTransport, "connection refused")
			}
			return &llm.GenerateResponse{Text: "recovered", Model: "m", Done: true}, nil
		},
	}

	p := NewLLMProcessor(provider, registry, KindLocalLLM, "m", nil)
	p.maxRetries = 5
	res := p.Process(context.Background(), "text", "summarize", Options{})

	require.True(t, res.OK, "err = %v", res.Err)
	assert.Equal(t, "recovered", res.Content)
	assert.Equal(t, 3, calls)
}

func TestLLMProcessorFatalErrorNotRetried(t *testing.T) {
	registry := newTestRegistry(t)

	calls := 0
	provider := &llm.MockProvider{
		GenerateFunc: func(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
			calls++
			return nil, errs.E(errs.AuthFailure, "bad key")
		},
	}

	p := NewLLMProcessor(provider, registry, KindRemoteLLM, "m", nil)
	res := p.Process(context.Background(), "text", "summarize", Options{})

	assert.False(t, res.OK)
	assert.True(t, errs.IsKind(res.Err, errs.AuthFailure), "got %v", res.Err)
	assert.Equal(t, 1, calls, "auth failures must not be retried")
}

func TestLLMProcessorRecordsUsage(t *testing.T) {
	registry := newTestRegistry(t)
	p := NewLLMProcessor(&llm.MockProvider{}, registry, KindLocalLLM, "m", nil)

	res := p.Process(context.Background(), "some text", "classify", Options{})
	require.True(t, res.OK, "err = %v", res.Err)

	tmpl, err := registry.GetByName("classify")
	require.NoError(t, err)
	assert.Equal(t, 1, tmpl.UsageCount)
	assert.NotNil(t, tmpl.LastUsed)
}

func TestLLMProcessorTasks(t *testing.T) {
	p := NewLLMProcessor(&llm.MockProvider{}, newTestRegistry(t), KindLocalLLM, "m", nil)

	tasks := p.Tasks()
	assert.ElementsMatch(t, []string{"summarize", "enhance", "extract_insights", "questions", "classify"}, tasks)
	assert.Equal(t, KindLocalLLM, p.Kind())

	// returned slice is a copy
	tasks[0] = "mutated"
	assert.NotContains(t, p.Tasks(), "mutated")
}

func TestLLMProcessorEstimatedTokensFallback(t *testing.T) {
	registry := newTestRegistry(t)
	provider := &llm.MockProvider{
		GenerateFunc: func(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
			// no token usage reported
			return &llm.GenerateResponse{Text: strings.Repeat("word ", 20), Model: "m", Done: true}, nil
		},
	}

	p := NewLLMProcessor(provider, registry, KindLocalLLM, "m", nil)
	res := p.Process(context.Background(), "content body", "questions", Options{})

	require.True(t, res.OK, "err = %v", res.Err)
	tokens, ok := res.Metadata["estimated_tokens"].(int)
	require.True(t, ok)
	assert.Greater(t, tokens, 0)
}
