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

package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"log/slog"

	errs "github.com/kraklabs/cortex/internal/errors"
)

// Result is the outcome of one Embed call: one vector per input text, in
// input order, plus the model that produced them.
type Result struct {
	Vectors   [][]float32
	ModelName string
}

// Provider generates embeddings for document and query text.
type Provider interface {
	// Embed generates one normalized vector (L2 norm = 1.0) per text.
	Embed(ctx context.Context, texts []string) (*Result, error)

	// EmbedOne is the single-text convenience form of Embed.
	EmbedOne(ctx context.Context, text string) ([]float32, string, error)

	// Name returns the provider identifier.
	Name() string
}

// embedOne adapts a batch Embed to the single-text form. All providers share
// this so EmbedOne never diverges from Embed semantics.
func embedOne(ctx context.Context, p Provider, text string) ([]float32, string, error) {
	res, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, "", err
	}
	if len(res.Vectors) == 0 || len(res.Vectors[0]) == 0 {
		return nil, "", errs.E(errs.EmbeddingFailure, "provider %s returned no vector", p.Name())
	}
	return res.Vectors[0], res.ModelName, nil
}

// =============================================================================
// OLLAMA PROVIDER (local)
// =============================================================================

// OllamaProvider generates embeddings using a local Ollama server.
// Supports models like nomic-embed-text, mxbai-embed-large, all-minilm.
type OllamaProvider struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	retry      RetryConfig
	workers    int

	mu    sync.Mutex
	model string
}

// NewOllamaProvider creates a local embedding provider. Empty baseURL and
// model fall back to OLLAMA_BASE_URL / OLLAMA_EMBED_MODEL and then to
// http://localhost:11434 / nomic-embed-text.
func NewOllamaProvider(baseURL, model string, logger *slog.Logger) *OllamaProvider {
	if logger == nil {
		logger = slog.Default()
	}
	if baseURL == "" {
		baseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = os.Getenv("OLLAMA_EMBED_MODEL")
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	return &OllamaProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // local models may be slow on first load
		},
		logger:  logger,
		retry:   DefaultRetryConfig(),
		workers: 4,
	}
}

func (o *OllamaProvider) Name() string { return "ollama" }

// Model returns the model currently used for embedding calls.
func (o *OllamaProvider) Model() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.model
}

// SetModel pins the model used for subsequent calls. The fallback chain uses
// this after probing /api/tags for a usable embedding model.
func (o *OllamaProvider) SetModel(model string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.model = model
}

// AvailableModels lists the model names the Ollama server has pulled.
func (o *OllamaProvider) AvailableModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.ProviderTransport,
			fmt.Sprintf("ollama list models (is Ollama running at %s?)", o.baseURL), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, errs.E(errs.ProviderTransport,
			"ollama list models (status %d): %s", resp.StatusCode, string(body))
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errs.Wrap(errs.ProviderTransport, "ollama parse tags", err)
	}

	models := make([]string, len(result.Models))
	for i, m := range result.Models {
		models[i] = m.Name
	}
	return models, nil
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

type ollamaErrorResponse struct {
	Error string `json:"error"`
}

// isNomicModel checks if the model is a Nomic embedding model that supports
// asymmetric search prefixes (search_document/search_query).
func isNomicModel(model string) bool {
	return strings.Contains(strings.ToLower(model), "nomic")
}

// Embed generates embeddings for each text. Multi-text batches run on a
// bounded worker pool; single texts stay on the calling goroutine.
func (o *OllamaProvider) Embed(ctx context.Context, texts []string) (*Result, error) {
	model := o.Model()
	res := &Result{
		Vectors:   make([][]float32, len(texts)),
		ModelName: model,
	}
	if len(texts) == 0 {
		return res, nil
	}

	if len(texts) == 1 {
		vec, err := o.embedText(ctx, model, texts[0])
		if err != nil {
			return nil, err
		}
		res.Vectors[0] = vec
		return res, nil
	}

	workers := o.workers
	if workers > len(texts) {
		workers = len(texts)
	}
	jobs := make(chan int, len(texts))
	errCh := make(chan error, len(texts))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				default:
				}
				vec, err := o.embedText(ctx, model, texts[i])
				if err != nil {
					errCh <- err
					return
				}
				res.Vectors[i] = vec
			}
		}()
	}
	for i := range texts {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	select {
	case err := <-errCh:
		return nil, err
	default:
	}
	return res, nil
}

func (o *OllamaProvider) EmbedOne(ctx context.Context, text string) ([]float32, string, error) {
	return embedOne(ctx, o, text)
}

// embedText embeds a single text with classified retry and jittered backoff.
func (o *OllamaProvider) embedText(ctx context.Context, model, text string) ([]float32, error) {
	// Nomic models use asymmetric embeddings: documents get a
	// "search_document: " prefix, queries get "search_query: ".
	prompt := text
	if isNomicModel(model) {
		prompt = "search_document: " + text
	}

	var vec []float32
	err := withRetry(ctx, o.retry, o.logger, "embedding.retry", func() error {
		v, err := o.embedOnce(ctx, model, prompt)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		recordEmbedFailure()
		return nil, err
	}
	return vec, nil
}

func (o *OllamaProvider) embedOnce(ctx context.Context, model, prompt string) ([]float32, error) {
	reqBody := ollamaEmbedRequest{Model: model, Prompt: prompt}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errs.Wrap(errs.EmbeddingFailure, "marshal request", err)
	}

	url := o.baseURL + "/api/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, errs.Wrap(errs.EmbeddingFailure, "create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.ProviderTransport,
			fmt.Sprintf("ollama embed (is Ollama running at %s?)", o.baseURL), err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.ProviderTransport, "read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp ollamaErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return nil, classifyHTTPStatus("ollama", resp.StatusCode, errResp.Error)
		}
		return nil, classifyHTTPStatus("ollama", resp.StatusCode, string(body))
	}

	var embedResp ollamaEmbedResponse
	if err := json.Unmarshal(body, &embedResp); err != nil {
		return nil, errs.Wrap(errs.EmbeddingFailure, "parse response", err)
	}
	if len(embedResp.Embedding) == 0 {
		return nil, errs.E(errs.EmbeddingFailure, "ollama returned empty embedding")
	}

	embedding := make([]float32, len(embedResp.Embedding))
	for i, v := range embedResp.Embedding {
		embedding[i] = float32(v)
	}
	return normalizeEmbedding(embedding), nil
}

// =============================================================================
// OPENAI-COMPATIBLE PROVIDER (remote fallback)
// =============================================================================

// OpenAIProvider generates embeddings using OpenAI or compatible APIs.
// Works with OpenAI, Azure OpenAI, Together AI, etc.
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
	retry      RetryConfig
}

// NewOpenAIProvider creates a remote embedding provider. Empty arguments fall
// back to OPENAI_API_KEY / OPENAI_BASE_URL / OPENAI_EMBED_MODEL. A missing
// key is not an immediate error: the fallback chain checks Ready and reports
// NoProviderAvailable only when this provider is the last candidate.
func NewOpenAIProvider(apiKey, baseURL, model string, logger *slog.Logger) *OpenAIProvider {
	if logger == nil {
		logger = slog.Default()
	}
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = os.Getenv("OPENAI_EMBED_MODEL")
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &OpenAIProvider{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
		retry:  DefaultRetryConfig(),
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

// Ready reports whether the provider has credentials to make calls.
func (p *OpenAIProvider) Ready() bool { return p.apiKey != "" }

type openaiEmbedRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
}

type openaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Embed generates embeddings for all texts in a single API call.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) (*Result, error) {
	if !p.Ready() {
		return nil, errs.E(errs.AuthFailure, "openai embedding provider has no API key (set OPENAI_API_KEY)")
	}
	res := &Result{
		Vectors:   make([][]float32, len(texts)),
		ModelName: p.model,
	}
	if len(texts) == 0 {
		return res, nil
	}

	err := withRetry(ctx, p.retry, p.logger, "embedding.retry", func() error {
		vectors, model, err := p.embedOnce(ctx, texts)
		if err != nil {
			return err
		}
		res.Vectors = vectors
		if model != "" {
			res.ModelName = model
		}
		return nil
	})
	if err != nil {
		recordEmbedFailure()
		return nil, err
	}
	return res, nil
}

func (p *OpenAIProvider) EmbedOne(ctx context.Context, text string) ([]float32, string, error) {
	return embedOne(ctx, p, text)
}

func (p *OpenAIProvider) embedOnce(ctx context.Context, texts []string) ([][]float32, string, error) {
	reqBody := openaiEmbedRequest{
		Input:          texts,
		Model:          p.model,
		EncodingFormat: "float",
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, "", errs.Wrap(errs.EmbeddingFailure, "marshal request", err)
	}

	url := p.baseURL + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, "", errs.Wrap(errs.EmbeddingFailure, "create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, "", errs.Wrap(errs.ProviderTransport, "openai embed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", errs.Wrap(errs.ProviderTransport, "read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp openaiErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, "", classifyHTTPStatus("openai", resp.StatusCode, errResp.Error.Message)
		}
		return nil, "", classifyHTTPStatus("openai", resp.StatusCode, string(body))
	}

	var embedResp openaiEmbedResponse
	if err := json.Unmarshal(body, &embedResp); err != nil {
		return nil, "", errs.Wrap(errs.EmbeddingFailure, "parse response", err)
	}
	if len(embedResp.Data) != len(texts) {
		return nil, "", errs.E(errs.EmbeddingFailure,
			"openai returned %d embeddings for %d inputs", len(embedResp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range embedResp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, "", errs.E(errs.EmbeddingFailure, "openai returned out-of-range index %d", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		vectors[d.Index] = normalizeEmbedding(vec)
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, "", errs.E(errs.EmbeddingFailure, "openai returned empty embedding for input %d", i)
		}
	}
	return vectors, embedResp.Model, nil
}

// =============================================================================
// MOCK PROVIDER (for testing)
// =============================================================================

// MockProvider generates deterministic hash-based embeddings for tests.
// Not semantically meaningful, but stable: equal texts get equal vectors.
type MockProvider struct {
	Dimension int
	// EmbedFunc, when set, replaces the default behaviour entirely.
	EmbedFunc func(ctx context.Context, texts []string) (*Result, error)

	mu    sync.Mutex
	calls int
}

// NewMockProvider creates a mock embedding provider with the given dimension.
func NewMockProvider(dimension int) *MockProvider {
	if dimension <= 0 {
		dimension = 384
	}
	return &MockProvider{Dimension: dimension}
}

func (m *MockProvider) Name() string { return "mock" }

// Calls returns how many Embed invocations the mock has served.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockProvider) Embed(ctx context.Context, texts []string) (*Result, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, texts)
	}

	res := &Result{
		Vectors:   make([][]float32, len(texts)),
		ModelName: "mock-embed",
	}
	for i, text := range texts {
		res.Vectors[i] = mockVector(text, m.Dimension)
	}
	return res, nil
}

func (m *MockProvider) EmbedOne(ctx context.Context, text string) ([]float32, string, error) {
	return embedOne(ctx, m, text)
}

// mockVector derives a unit vector from a djb2 hash of the text.
func mockVector(text string, dimension int) []float32 {
	hash := hashString(text)
	vec := make([]float32, dimension)
	for i := 0; i < dimension; i++ {
		val := float32((hash+uint64(i)*7919)%10000) / 10000.0
		vec[i] = val*2.0 - 1.0
	}
	return normalizeEmbedding(vec)
}

func hashString(s string) uint64 {
	var hash uint64 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint64(c)
	}
	return hash
}

// =============================================================================
// HELPERS
// =============================================================================

// classifyHTTPStatus maps a provider HTTP error onto the pipeline taxonomy.
func classifyHTTPStatus(provider string, status int, detail string) error {
	msg := fmt.Sprintf("%s API error (status %d): %s", provider, status, detail)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errs.E(errs.AuthFailure, "%s", msg)
	case status == http.StatusTooManyRequests:
		return errs.E(errs.RateLimited, "%s", msg)
	case status == http.StatusNotFound:
		return errs.E(errs.NotFound, "%s", msg)
	case status >= 500:
		return errs.E(errs.ProviderTransport, "%s", msg)
	default:
		return errs.E(errs.EmbeddingFailure, "%s", msg)
	}
}

// normalizeEmbedding normalizes an embedding vector to unit length (L2 norm = 1).
func normalizeEmbedding(embedding []float32) []float32 {
	if len(embedding) == 0 {
		return embedding
	}

	var norm float64
	for _, v := range embedding {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return embedding
	}

	normf := float32(norm)
	for i := range embedding {
		embedding[i] /= normf
	}
	return embedding
}
