// Package agent turns a group context into an LLM request and the reply
// back into a FixPlan.
package agent

import (
	"context"
	"errors"
	"fmt"

	"sigfix/internal/codectx"
	"sigfix/internal/fixplan"
	"sigfix/internal/llm"
	"sigfix/internal/logx"
)

// Result is the outcome of one group's LLM round trip. Failures are
// reported here, never returned as errors.
type Result struct {
	Success      bool             `json:"success"`
	FixPlan      *fixplan.FixPlan `json:"fix_plan,omitempty"`
	Error        string           `json:"error,omitempty"`
	ErrorType    llm.ErrorType    `json:"error_type,omitempty"`
	RawResponse  string           `json:"raw_response,omitempty"`
	Model        string           `json:"model,omitempty"`
	Usage        llm.Usage        `json:"usage"`
	SystemPrompt string           `json:"system_prompt,omitempty"`
	UserPrompt   string           `json:"user_prompt,omitempty"`
	Units        []RequestUnit    `json:"request_units,omitempty"`
}

type Handler struct {
	provider    llm.Provider
	prompts     *PromptBuilder
	temperature float64
	maxTokens   int
}

type HandlerOption func(*Handler)

func WithTemperature(t float64) HandlerOption { return func(h *Handler) { h.temperature = t } }

func WithMaxTokens(n int) HandlerOption { return func(h *Handler) { h.maxTokens = n } }

func NewHandler(provider llm.Provider, opts ...HandlerOption) *Handler {
	h := &Handler{
		provider:    provider,
		prompts:     &PromptBuilder{},
		temperature: llm.DefaultTemperature,
		maxTokens:   llm.DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Provider() llm.Provider { return h.provider }

func (h *Handler) GenerateFixPlan(ctx context.Context, gc *codectx.GroupContext) Result {
	if h.provider == nil || !h.provider.IsConfigured() {
		name := "llm"
		if h.provider != nil {
			name = h.provider.Name()
		}
		return Result{
			Error:     fmt.Sprintf("Provider %s is not configured. Set API key.", name),
			ErrorType: llm.ErrConfiguration,
		}
	}

	units, skipped := RequestUnits(gc)
	res := Result{Units: units, SystemPrompt: SystemPrompt(gc.ToolID)}
	if len(units) == 0 {
		res.Error = "no signals in the group have an editable region"
		return res
	}
	res.UserPrompt = h.prompts.BuildUserPrompt(gc, units)

	logx.Debugf("requesting fix for %s/%s: %d request unit(s)", gc.ToolID, gc.Type, len(units))
	resp, err := h.provider.Generate(ctx, llm.Request{
		SystemPrompt: res.SystemPrompt,
		UserPrompt:   res.UserPrompt,
		Temperature:  h.temperature,
		MaxTokens:    h.maxTokens,
	})
	if err != nil {
		var llmErr *llm.Error
		if errors.As(err, &llmErr) {
			res.ErrorType = llmErr.Type
			res.Error = fmt.Sprintf("LLM error (%s): %s", llmErr.Type, llmErr.Message)
		} else {
			res.ErrorType = llm.ErrUnknown
			res.Error = fmt.Sprintf("LLM error: %v", err)
		}
		return res
	}
	res.RawResponse = resp.Content
	res.Model = resp.Model
	res.Usage = resp.Usage

	blocks, err := ParseFixBlocks(resp.Content)
	if err != nil {
		res.Error = fmt.Sprintf("Failed to parse LLM response: %v", err)
		return res
	}

	plan := BuildFixPlan(gc, units, blocks)
	plan.Warnings = append(plan.Warnings, skipped...)
	res.FixPlan = plan
	res.Success = true
	return res
}
