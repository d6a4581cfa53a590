package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-pro"

type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider leaves the client unset when apiKey is empty so the
// provider reports itself unconfigured instead of failing construction.
func NewGeminiProvider(ctx context.Context, apiKey, modelName string) (*GeminiProvider, error) {
	if strings.TrimSpace(modelName) == "" {
		modelName = DefaultGeminiModel
	}
	p := &GeminiProvider{model: modelName}
	if strings.TrimSpace(apiKey) == "" {
		return p, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	p.client = client
	return p, nil
}

func (p *GeminiProvider) Name() string       { return "gemini" }
func (p *GeminiProvider) Model() string      { return p.model }
func (p *GeminiProvider) IsConfigured() bool { return p.client != nil }

func (p *GeminiProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	if !p.IsConfigured() {
		return nil, &Error{Type: ErrConfiguration, Message: "Gemini API key not configured"}
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens: int32(req.maxTokens()),
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(req.UserPrompt), config)
	if err != nil {
		return nil, geminiError(err)
	}

	out := &Response{Content: resp.Text(), Model: p.model}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out, nil
}

func geminiError(err error) error {
	if isTimeout(err) {
		return &Error{Type: ErrTimeout, Message: "Gemini API request timed out"}
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &Error{Type: ErrAPI, Message: apiErr.Message, StatusCode: apiErr.Code}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &Error{Type: ErrAPI, Message: apiErrPtr.Message, StatusCode: apiErrPtr.Code}
	}
	return &Error{Type: ErrUnknown, Message: err.Error()}
}
