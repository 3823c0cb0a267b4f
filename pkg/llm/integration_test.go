// Copyright 2026 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

//go:build integration
// +build integration

package llm

import (
	"context"
	"os"
	"testing"
	"time"
)

// Run against a live OpenAI-compatible server:
//
//	LLM_SERVER_URL=http://localhost:8000/v1 go test -tags integration ./pkg/llm/
func TestLiveServer_Integration(t *testing.T) {
	serverURL := os.Getenv("LLM_SERVER_URL")
	if serverURL == "" {
		t.Skip("LLM_SERVER_URL not set")
	}

	provider, err := NewProvider(Config{
		Type:         "openai",
		BaseURL:      serverURL,
		DefaultModel: os.Getenv("LLM_SERVER_MODEL"),
		Timeout:      2 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewProvider error: %v", err)
	}

	t.Logf("Provider: %s", provider.Name())

	ctx := context.Background()
	resp, err := provider.Generate(ctx, GenerateRequest{
		Prompt:      "What is 2+2? Answer with just the number.",
		MaxTokens:   10,
		Temperature: Float64(0.1),
	})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}

	t.Logf("Response: %s", resp.Text)
	t.Logf("Tokens: %d prompt + %d output = %d total", resp.PromptTokens, resp.OutputTokens, resp.TotalTokens)
	t.Logf("Duration: %v", resp.Duration)
}
