// Copyright 2025 KrakLabs
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

package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Provider defines the interface for LLM chat completions.
type Provider interface {
	// Chat sends a conversation and returns the model's reply.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Name returns the provider identifier.
	Name() string
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ChatRequest represents a chat completion request.
type ChatRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// ChatResponse contains the chat completion response.
type ChatResponse struct {
	Message      Message       `json:"message"`
	Model        string        `json:"model"`
	PromptTokens int           `json:"prompt_tokens,omitempty"`
	OutputTokens int           `json:"output_tokens,omitempty"`
	TotalTokens  int           `json:"total_tokens,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	Attempts     int           `json:"attempts,omitempty"`
	Done         bool          `json:"done"`
}

// Provider defaults.
const (
	GroqBaseURL      = "https://api.groq.com/openai/v1"
	GroqDefaultModel = "llama3-70b-8192"

	OpenAIBaseURL      = "https://api.openai.com/v1"
	OpenAIDefaultModel = "gpt-4o-mini"

	OllamaBaseURL = "http://localhost:11434"

	DefaultTimeout      = 120 * time.Second
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = time.Second
)

// ProviderConfig holds configuration for creating providers.
type ProviderConfig struct {
	// Provider type: "groq", "openai", "ollama", "mock"
	Type string `json:"type" yaml:"type"`

	// BaseURL for the API endpoint
	BaseURL string `json:"base_url,omitempty" yaml:"base_url"`

	// APIKey for authenticated providers (Groq, OpenAI)
	APIKey string `json:"api_key,omitempty" yaml:"api_key"`

	// DefaultModel to use if not specified in requests
	DefaultModel string `json:"default_model,omitempty" yaml:"model"`

	// Timeout for a single API request
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout"`

	// MaxRetries for transient failures. Negative disables retries.
	MaxRetries int `json:"max_retries,omitempty" yaml:"max_retries"`

	// RetryBackoff is multiplied by the attempt number between retries.
	RetryBackoff time.Duration `json:"retry_backoff,omitempty" yaml:"retry_backoff"`
}

// RequiresAPIKey reports whether the provider type needs a credential.
func RequiresAPIKey(providerType string) bool {
	switch strings.ToLower(providerType) {
	case "groq", "", "openai", "openai-compatible":
		return true
	}
	return false
}

// NewProvider creates a Provider based on configuration.
// Supported types: "groq" (default), "openai", "ollama", "mock".
func NewProvider(cfg ProviderConfig) (Provider, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}

	switch strings.ToLower(cfg.Type) {
	case "groq", "":
		return newOpenAIProvider("groq", cfg, GroqBaseURL, GroqDefaultModel), nil
	case "openai", "openai-compatible":
		return newOpenAIProvider("openai", cfg, OpenAIBaseURL, OpenAIDefaultModel), nil
	case "ollama", "local":
		return newOllamaProvider(cfg), nil
	case "mock", "test":
		return &MockProvider{model: cfg.DefaultModel}, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider type: %s (supported: groq, openai, ollama, mock)", cfg.Type)
	}
}

// =============================================================================
// OPENAI-COMPATIBLE PROVIDER (OpenAI, Groq)
// =============================================================================

type openaiProvider struct {
	name         string
	baseURL      string
	apiKey       string
	defaultModel string
	client       *http.Client
	retry        retryPolicy
}

func newOpenAIProvider(name string, cfg ProviderConfig, baseURL, model string) *openaiProvider {
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	if cfg.DefaultModel != "" {
		model = cfg.DefaultModel
	}
	return &openaiProvider{
		name:         name,
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		apiKey:       cfg.APIKey,
		defaultModel: model,
		client:       &http.Client{Timeout: cfg.Timeout},
		retry:        retryPolicy{maxRetries: cfg.MaxRetries, backoff: cfg.RetryBackoff},
	}
}

func (p *openaiProvider) Name() string { return p.name }

func (p *openaiProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	payload := map[string]any{
		"model":    model,
		"messages": req.Messages,
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		payload["temperature"] = req.Temperature
	}

	headers := map[string]string{}
	if p.apiKey != "" {
		headers["Authorization"] = "Bearer " + p.apiKey
	}

	var result struct {
		Choices []struct {
			Message struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Model string `json:"model"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}

	start := time.Now()
	attempts, err := postJSON(ctx, p.client, p.retry, p.name, p.baseURL+"/chat/completions", headers, payload, &result)
	if err != nil {
		return nil, err
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("%s returned no choices", p.name)
	}

	return &ChatResponse{
		Message: Message{
			Role:    result.Choices[0].Message.Role,
			Content: result.Choices[0].Message.Content,
		},
		Model:        result.Model,
		PromptTokens: result.Usage.PromptTokens,
		OutputTokens: result.Usage.CompletionTokens,
		TotalTokens:  result.Usage.TotalTokens,
		Duration:     time.Since(start),
		Attempts:     attempts,
		Done:         result.Choices[0].FinishReason == "stop",
	}, nil
}

// =============================================================================
// OLLAMA PROVIDER
// =============================================================================

type ollamaProvider struct {
	baseURL      string
	defaultModel string
	client       *http.Client
	retry        retryPolicy
}

func newOllamaProvider(cfg ProviderConfig) *ollamaProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = OllamaBaseURL
	}
	return &ollamaProvider{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		defaultModel: cfg.DefaultModel,
		client:       &http.Client{Timeout: cfg.Timeout},
		retry:        retryPolicy{maxRetries: cfg.MaxRetries, backoff: cfg.RetryBackoff},
	}
}

func (p *ollamaProvider) Name() string { return "ollama" }

func (p *ollamaProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	if model == "" {
		return nil, fmt.Errorf("ollama: model not specified (set llm.model or pass in request)")
	}

	payload := map[string]any{
		"model":    model,
		"messages": req.Messages,
		"stream":   false,
	}
	options := map[string]any{}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	if len(options) > 0 {
		payload["options"] = options
	}

	var result struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		Model           string `json:"model"`
		Done            bool   `json:"done"`
		PromptEvalCount int    `json:"prompt_eval_count"`
		EvalCount       int    `json:"eval_count"`
	}

	start := time.Now()
	attempts, err := postJSON(ctx, p.client, p.retry, "ollama", p.baseURL+"/api/chat", nil, payload, &result)
	if err != nil {
		return nil, err
	}

	return &ChatResponse{
		Message: Message{
			Role:    result.Message.Role,
			Content: result.Message.Content,
		},
		Model:        result.Model,
		PromptTokens: result.PromptEvalCount,
		OutputTokens: result.EvalCount,
		TotalTokens:  result.PromptEvalCount + result.EvalCount,
		Duration:     time.Since(start),
		Attempts:     attempts,
		Done:         result.Done,
	}, nil
}

// =============================================================================
// MOCK PROVIDER (for testing)
// =============================================================================

// MockProvider is a test provider that returns predictable responses.
type MockProvider struct {
	model    string
	ChatFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if p.ChatFunc != nil {
		return p.ChatFunc(ctx, req)
	}
	lastMsg := ""
	if len(req.Messages) > 0 {
		lastMsg = req.Messages[len(req.Messages)-1].Content
	}
	model := p.model
	if model == "" {
		model = "mock-model"
	}
	return &ChatResponse{
		Message: Message{
			Role:    "assistant",
			Content: fmt.Sprintf("# Mock README\n\n[mock] Response to: %.50s...", lastMsg),
		},
		Model:        model,
		PromptTokens: len(lastMsg) / 4,
		OutputTokens: 20,
		TotalTokens:  len(lastMsg)/4 + 20,
		Duration:     10 * time.Millisecond,
		Attempts:     1,
		Done:         true,
	}, nil
}
