// Package llm is the single boundary to the language-model providers used to
// generate fixes.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultTimeout     = 120 * time.Second
	DefaultMaxTokens   = 4096
	DefaultTemperature = 0.0
)

type Request struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
}

func (r Request) maxTokens() int {
	if r.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return r.MaxTokens
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }

type Response struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   Usage  `json:"usage"`
}

// Provider generates one completion per call.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	IsConfigured() bool
	Name() string
	Model() string
}

type ErrorType string

const (
	ErrConfiguration ErrorType = "configuration_error"
	ErrAPI           ErrorType = "api_error"
	ErrTimeout       ErrorType = "timeout"
	ErrUnknown       ErrorType = "unknown"
)

// Error is returned by every provider. StatusCode is zero when no HTTP
// response was received.
type Error struct {
	Type       ErrorType
	Message    string
	StatusCode int
	// RetryAfter is the server's retry hint, zero when absent.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Retryable reports whether the request may succeed if sent again.
func (e *Error) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

type Options struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
	Retry    RetryPolicy
}

// NewProvider builds the named provider wrapped in the retry policy.
func NewProvider(ctx context.Context, opts Options) (Provider, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = "anthropic"
	}

	var p Provider
	switch provider {
	case "openai":
		p = NewOpenAIProvider(opts.APIKey, opts.Model, opts.BaseURL, opts.Timeout)
	case "anthropic", "claude":
		p = NewAnthropicProvider(opts.APIKey, opts.Model, opts.BaseURL, opts.Timeout)
	case "gemini":
		g, err := NewGeminiProvider(ctx, opts.APIKey, opts.Model)
		if err != nil {
			return nil, err
		}
		p = g
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", opts.Provider)
	}
	return WithRetry(p, opts.Retry), nil
}
