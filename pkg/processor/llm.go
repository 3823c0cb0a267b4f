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
	"time"
	"unicode/utf8"

	"log/slog"

	"github.com/cenkalti/backoff/v4"

	"github.com/kraklabs/cortex/internal/contract"
	errs "github.com/kraklabs/cortex/internal/errors"
	"github.com/kraklabs/cortex/pkg/llm"
	"github.com/kraklabs/cortex/pkg/prompt"
)

// llmTasks are the convention task names; each selects the registry
// template of the same name.
var llmTasks = []string{"summarize", "enhance", "extract_insights", "questions", "classify"}

// LLMProcessor runs prompt-template tasks through an LLM provider. The same
// implementation serves both the local and remote processor kinds; only the
// injected provider and Kind differ.
type LLMProcessor struct {
	provider     llm.Provider
	registry     *prompt.Registry
	kind         Kind
	defaultModel string
	logger       *slog.Logger

	// maxRetries bounds the exponential backoff on transient provider
	// failures.
	maxRetries uint64
}

// NewLLMProcessor builds a processor over the given provider. kind should be
// KindLocalLLM or KindRemoteLLM; it is what queue items dispatch on.
func NewLLMProcessor(provider llm.Provider, registry *prompt.Registry, kind Kind, defaultModel string, logger *slog.Logger) *LLMProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMProcessor{
		provider:     provider,
		registry:     registry,
		kind:         kind,
		defaultModel: defaultModel,
		logger:       logger,
		maxRetries:   3,
	}
}

func (p *LLMProcessor) Kind() Kind { return p.kind }

func (p *LLMProcessor) Tasks() []string {
	tasks := make([]string, len(llmTasks))
	copy(tasks, llmTasks)
	return tasks
}

func (p *LLMProcessor) Process(ctx context.Context, content, task string, opts Options) Result {
	started := time.Now()

	if content == "" {
		return failure(errs.E(errs.InvalidInput, "content must not be empty"), started)
	}
	if res := contract.ValidateContent(content); !res.OK {
		return failure(errs.E(errs.InvalidInput, "%s", res.Message), started)
	}
	if !containsTask(llmTasks, task) {
		return failure(errs.E(errs.UnknownTask, "unknown task %q", task), started)
	}

	tmpl, err := p.registry.GetByName(task)
	if err != nil {
		return failure(errs.Wrap(errs.UnknownTask, "no template for task "+task, err), started)
	}

	model := opts.Model
	if model == "" {
		model = p.defaultModel
	}

	rendered, err := p.registry.Render(tmpl.ID, map[string]string{"content": content}, model)
	if err != nil {
		return failure(err, started)
	}

	req := llm.GenerateRequest{
		Prompt: rendered.Text,
		Model:  model,
	}
	// Explicit call options win over the template's per-model overrides.
	if opts.Temperature != nil {
		req.Temperature = opts.Temperature
	} else if rendered.Options != nil {
		req.Temperature = rendered.Options.Temperature
	}
	if opts.MaxTokens != nil {
		req.MaxTokens = *opts.MaxTokens
	} else if rendered.Options != nil && rendered.Options.MaxTokens != nil {
		req.MaxTokens = *rendered.Options.MaxTokens
	}
	if rendered.Options != nil {
		req.TopP = rendered.Options.TopP
	}

	resp, err := p.generateWithRetry(ctx, req)

	usedModel := model
	if resp != nil && resp.Model != "" {
		usedModel = resp.Model
	}
	if logErr := p.registry.LogExecution(tmpl.ID, prompt.Execution{
		Model:   usedModel,
		Success: err == nil,
	}); logErr != nil {
		p.logger.Warn("processor.log_execution", "template", tmpl.ID, "err", logErr)
	}

	if err != nil {
		return failure(err, started)
	}

	elapsed := time.Since(started)
	tokens := resp.TotalTokens
	if tokens == 0 {
		tokens = (utf8.RuneCountInString(rendered.Text) + utf8.RuneCountInString(resp.Text)) / 4
	}
	return Result{
		OK:      true,
		Content: resp.Text,
		Metadata: map[string]any{
			"model":            usedModel,
			"task":             task,
			"estimated_tokens": tokens,
			"elapsed_seconds":  elapsed.Seconds(),
		},
		Elapsed: elapsed,
	}
}

// generateWithRetry retries transient provider failures with exponential
// backoff. Fatal classifications (auth, bad request, unknown model) abort
// immediately via backoff.Permanent.
func (p *LLMProcessor) generateWithRetry(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 3 * time.Second

	var resp *llm.GenerateResponse
	attempt := 0
	err := backoff.Retry(func() error {
		r, err := p.provider.Generate(ctx, req)
		if err != nil {
			if !errs.Retryable(err) {
				return backoff.Permanent(err)
			}
			attempt++
			p.logger.Warn("processor.llm.retry",
				"provider", p.provider.Name(),
				"attempt", attempt,
				"err", err,
			)
			return err
		}
		resp = r
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(policy, p.maxRetries), ctx))
	if err != nil {
		return nil, err
	}
	return resp, nil
}
