package llm

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultAnthropicModel    = "claude-sonnet-4-20250514"
	defaultAnthropicEndpoint = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion      = "2023-06-01"
)

type AnthropicProvider struct {
	client   *http.Client
	apiKey   string
	model    string
	endpoint string
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
	MaxTokens   int                `json:"max_tokens"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func NewAnthropicProvider(apiKey, model, baseURL string, timeout time.Duration) *AnthropicProvider {
	endpoint := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	switch {
	case endpoint == "":
		endpoint = defaultAnthropicEndpoint
	case !strings.HasSuffix(endpoint, "/messages"):
		if !strings.HasSuffix(endpoint, "/v1") {
			endpoint += "/v1"
		}
		endpoint += "/messages"
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultAnthropicModel
	}
	return &AnthropicProvider{
		client:   newHTTPClient(timeout),
		apiKey:   apiKey,
		model:    model,
		endpoint: endpoint,
	}
}

func (p *AnthropicProvider) Name() string       { return "anthropic" }
func (p *AnthropicProvider) Model() string      { return p.model }
func (p *AnthropicProvider) IsConfigured() bool { return strings.TrimSpace(p.apiKey) != "" }

func (p *AnthropicProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	if !p.IsConfigured() {
		return nil, &Error{Type: ErrConfiguration, Message: "Anthropic API key not configured"}
	}

	payload := anthropicRequest{
		Model:       p.model,
		System:      req.SystemPrompt,
		Messages:    []anthropicMessage{{Role: "user", Content: req.UserPrompt}},
		Temperature: req.Temperature,
		MaxTokens:   req.maxTokens(),
	}
	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicAPIVersion,
	}
	var parsed anthropicResponse
	if err := postJSON(ctx, p.client, "Anthropic", p.endpoint, headers, payload, &parsed); err != nil {
		return nil, err
	}

	var sb strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	model := parsed.Model
	if model == "" {
		model = p.model
	}
	return &Response{
		Content: sb.String(),
		Model:   model,
		Usage:   Usage{InputTokens: parsed.Usage.InputTokens, OutputTokens: parsed.Usage.OutputTokens},
	}, nil
}
