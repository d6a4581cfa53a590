// Package planner routes a signal group to a fix plan: tool-provided format
// fixes are converted directly, everything else goes through the LLM agent.
package planner

import (
	"context"
	"fmt"

	"sigfix/internal/agent"
	"sigfix/internal/codectx"
	"sigfix/internal/fixplan"
	"sigfix/internal/logx"
	"sigfix/internal/report"
	"sigfix/internal/signal"
)

type ContextBuilder interface {
	BuildGroupContext(ctx context.Context, group signal.Group) *codectx.GroupContext
}

type FixGenerator interface {
	GenerateFixPlan(ctx context.Context, gc *codectx.GroupContext) agent.Result
}

// Result never carries a Go error; failures are described in Error so a
// batch can continue with the next group.
type Result struct {
	Success bool             `json:"success"`
	FixPlan *fixplan.FixPlan `json:"fix_plan,omitempty"`
	Error   string           `json:"error,omitempty"`
	UsedLLM bool             `json:"used_llm"`
	Agent   *agent.Result    `json:"agent_result,omitempty"`
}

type Planner struct {
	builder         ContextBuilder
	generator       FixGenerator
	autoApplyFormat bool
	debug           *report.Dumper
}

type Option func(*Planner)

func WithAutoApplyFormat(enabled bool) Option {
	return func(p *Planner) { p.autoApplyFormat = enabled }
}

// WithDebugDumper dumps each LLM round trip (context, prompts, result).
func WithDebugDumper(d *report.Dumper) Option {
	return func(p *Planner) { p.debug = d }
}

func New(builder ContextBuilder, generator FixGenerator, opts ...Option) *Planner {
	p := &Planner{builder: builder, generator: generator, autoApplyFormat: true}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Planner) AutoApplyFormat() bool { return p.autoApplyFormat }

func (p *Planner) CreateFixPlan(ctx context.Context, group signal.Group) Result {
	if len(group.Signals) == 0 {
		return Result{Error: "Empty signal group"}
	}
	if group.Type == signal.TypeFormat && p.autoApplyFormat {
		return directFixPlan(group)
	}
	return p.llmFixPlan(ctx, group)
}

// directFixPlan copies each signal's own edits into one FileEdit per file,
// in order of first appearance.
func directFixPlan(group signal.Group) Result {
	byFile := make(map[string]int)
	var fileEdits []fixplan.FileEdit

	for _, sig := range group.Signals {
		if sig.Fix == nil {
			continue
		}
		idx, ok := byFile[sig.FilePath]
		if !ok {
			idx = len(fileEdits)
			byFile[sig.FilePath] = idx
			fileEdits = append(fileEdits, fixplan.FileEdit{
				FilePath:   sig.FilePath,
				Reasoning:  fmt.Sprintf("Auto-applied format fixes from %s", group.ToolID),
				Confidence: 1.0,
			})
		}
		description := sig.Fix.Message
		if description == "" {
			description = "Apply formatting"
		}
		for _, te := range sig.Fix.Edits {
			fileEdits[idx].Edits = append(fileEdits[idx].Edits, fixplan.CodeEdit{
				Type:        editTypeFor(te),
				Span:        te.Span,
				Content:     te.Content,
				Description: description,
			})
		}
	}

	if len(fileEdits) == 0 {
		return Result{Error: "No edits found in signal fixes"}
	}

	plan := &fixplan.FixPlan{
		GroupToolID:     group.ToolID,
		GroupSignalType: group.Type,
		FileEdits:       fileEdits,
		Summary:         fmt.Sprintf("Auto-applied %d format fix(es) across %d file(s)", len(group.Signals), len(fileEdits)),
		Warnings:        []string{},
		Confidence:      1.0,
	}
	fixplan.Validate(plan)
	return Result{Success: true, FixPlan: plan}
}

func editTypeFor(te signal.TextEdit) fixplan.EditType {
	switch {
	case te.Span.IsEmpty():
		return fixplan.EditInsert
	case te.Content == "":
		return fixplan.EditDelete
	default:
		return fixplan.EditReplace
	}
}

func (p *Planner) llmFixPlan(ctx context.Context, group signal.Group) Result {
	gc := p.builder.BuildGroupContext(ctx, group)
	res := p.generator.GenerateFixPlan(ctx, gc)
	p.dumpRoundTrip(group, gc, &res)

	if !res.Success {
		return Result{Error: res.Error, UsedLLM: true, Agent: &res}
	}
	return Result{Success: true, FixPlan: res.FixPlan, UsedLLM: true, Agent: &res}
}

type roundTripDump struct {
	Metadata struct {
		ToolID           string   `json:"tool_id"`
		SignalType       string   `json:"signal_type"`
		NumSignals       int      `json:"num_signals"`
		SignalFiles      []string `json:"signal_files"`
		SystemPromptSize int      `json:"system_prompt_length"`
		UserPromptSize   int      `json:"user_prompt_length"`
	} `json:"_debug_metadata"`
	Context *codectx.GroupContext `json:"context"`
	Prompts struct {
		System string `json:"system_prompt"`
		User   string `json:"user_prompt"`
	} `json:"prompts"`
	Result *agent.Result `json:"result"`
}

func (p *Planner) dumpRoundTrip(group signal.Group, gc *codectx.GroupContext, res *agent.Result) {
	if p.debug == nil {
		return
	}
	var d roundTripDump
	d.Metadata.ToolID = group.ToolID
	d.Metadata.SignalType = string(group.Type)
	d.Metadata.NumSignals = len(group.Signals)
	d.Metadata.SignalFiles = group.Files()
	d.Metadata.SystemPromptSize = len(res.SystemPrompt)
	d.Metadata.UserPromptSize = len(res.UserPrompt)
	d.Context = gc
	d.Prompts.System = res.SystemPrompt
	d.Prompts.User = res.UserPrompt
	d.Result = res

	name := fmt.Sprintf("context_%s_%s_%dsignals", group.ToolID, group.Type, len(group.Signals))
	path, err := p.debug.Dump(name, d)
	if err != nil {
		logx.Warningf("failed to dump llm context: %v", err)
		return
	}
	logx.Debugf("llm context dumped to %s", path)
}
