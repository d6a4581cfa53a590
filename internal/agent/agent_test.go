package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigfix/internal/codectx"
	"sigfix/internal/fixplan"
	"sigfix/internal/llm"
	"sigfix/internal/signal"
)

func snippet(path string, start, end int, text, base string) *codectx.EditSnippet {
	return &codectx.EditSnippet{
		FilePath: path, StartRow: start, EndRow: end, Text: text, BaseIndent: base,
		ErrorLine: start, ErrorLineInSnippet: 1, SnippetLength: end - start + 1,
	}
}

func sigCtx(path, rule string, row int, s *codectx.EditSnippet) codectx.SignalContext {
	span := signal.NewSpan(row, 1, row, 5)
	return codectx.SignalContext{
		ToolID:      "mypy",
		Signal:      signal.Signal{Type: signal.TypeTypeCheck, Severity: signal.SeverityHigh, FilePath: path, Span: &span, RuleCode: rule, Message: "problem " + rule},
		EditSnippet: s,
		Code: codectx.CodeContext{
			Window: &codectx.FileSnippet{FilePath: path, StartRow: 1, EndRow: 30, Text: "window"},
		},
	}
}

// sampleGroup has signal 0 and 2 merged, signal 1 standalone and signal 3
// without a snippet.
func sampleGroup() *codectx.GroupContext {
	merged := snippet("app/a.py", 10, 12, "x = f()\ny = g()\n", "    ")
	return &codectx.GroupContext{
		ToolID: "mypy",
		Type:   signal.TypeTypeCheck,
		Signals: []codectx.SignalContext{
			sigCtx("app/a.py", "union-attr", 10, snippet("app/a.py", 10, 11, "x = f()\ny = g()", "    ")),
			sigCtx("app/b.py", "arg-type", 3, snippet("app/b.py", 1, 5, "def h(a):\n    return a", "")),
			sigCtx("app/a.py", "return-value", 12, snippet("app/a.py", 11, 12, "y = g()\n", "    ")),
			{ToolID: "mypy", Signal: signal.Signal{FilePath: "app/c.py", RuleCode: "misc"}, FileReadError: "open app/c.py: no such file"},
		},
		MergedGroups:      []codectx.MergedSnippetGroup{{SignalIndices: []int{0, 2}, EditSnippet: merged}},
		StandaloneIndices: []int{1, 3},
	}
}

func TestRequestUnits(t *testing.T) {
	units, warnings := RequestUnits(sampleGroup())
	require.Len(t, units, 2)
	assert.Equal(t, []int{0, 2}, units[0].SignalIndices)
	assert.True(t, units[0].Merged)
	assert.Equal(t, []int{1}, units[1].SignalIndices)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "no such file")
}

func TestBuildUserPrompt(t *testing.T) {
	gc := sampleGroup()
	units, _ := RequestUnits(gc)
	prompt := (&PromptBuilder{}).BuildUserPrompt(gc, units)

	assert.Contains(t, prompt, "Return exactly 2 fix block(s)")
	merged := prompt[strings.Index(prompt, "REQUEST 1 of 2"):strings.Index(prompt, "REQUEST 2 of 2")]
	standalone := prompt[strings.Index(prompt, "REQUEST 2 of 2"):]

	assert.Contains(t, merged, "MERGED SIGNALS (shared edit region)")
	assert.Contains(t, merged, "Error 1")
	assert.Contains(t, merged, "Error 2")
	assert.Contains(t, merged, "FIX ALL ERRORS ABOVE AND RETURN THIS")
	assert.Equal(t, 1, strings.Count(merged, "FOR UNDERSTANDING ONLY"), "shared window is emitted once")

	assert.Contains(t, standalone, "SIGNAL 2")
	assert.Contains(t, standalone, "FIX AND RETURN THIS")
	assert.Contains(t, standalone, "def h(a):\n    return a\n```")
	assert.NotContains(t, standalone, "shared edit region")
}

func TestSystemPrompt(t *testing.T) {
	assert.Equal(t, baseSystemPrompt, SystemPrompt("unknown-tool"))
	assert.Equal(t, baseSystemPrompt, SystemPrompt(""))
	assert.Contains(t, SystemPrompt("Bandit"), "Security (bandit)")
	assert.Equal(t, SystemPrompt("ruff"), SystemPrompt("ruff-lint"))
	assert.Equal(t, SystemPrompt("bandit"), SystemPrompt("ruff-security"))
	assert.Contains(t, SystemPrompt("mypy"), "===== FIX FOR:")
}

const twoBlockReply = "Here are the fixes.\n\n" +
	"===== FIX FOR: app/a.py =====\n" +
	"CONFIDENCE: 0.9\n" +
	"REASONING: Guard against None.\n" +
	"It is only None on startup.\n" +
	"FIXED_CODE:\n" +
	"```py\n" +
	"x = f()\n" +
	"if x is not None:\n" +
	"    y = g()\n" +
	"\n" +
	"```\n" +
	"WARNINGS: None\n" +
	"===== END FIX =====\n" +
	"\n" +
	"===== FIX FOR: app/b.py =====\n" +
	"CONFIDENCE: high\n" +
	"REASONING: Annotate.\n" +
	"FIXED_CODE:\n" +
	"```\n" +
	"def h(a: int):\n" +
	"    return a\n" +
	"```\n" +
	"WARNINGS: check callers\n" +
	"===== END FIX =====\n"

func TestParseFixBlocks(t *testing.T) {
	blocks, err := ParseFixBlocks(twoBlockReply)
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	assert.Equal(t, "app/a.py", blocks[0].FilePath)
	assert.Equal(t, 0.9, blocks[0].Confidence)
	assert.Equal(t, "Guard against None.\nIt is only None on startup.", blocks[0].Reasoning)
	assert.Equal(t, "x = f()\nif x is not None:\n    y = g()\n", blocks[0].FixedCode)
	assert.True(t, blocks[0].HasCode)
	assert.Empty(t, blocks[0].Warnings)

	assert.Equal(t, defaultBlockConfidence, blocks[1].Confidence)
	assert.Equal(t, "check callers", blocks[1].Warnings)
}

func TestParseFixBlocksEdgeCases(t *testing.T) {
	_, err := ParseFixBlocks("I could not fix this.")
	assert.ErrorIs(t, err, ErrNoFixBlocks)

	blocks, err := ParseFixBlocks("===== FIX FOR: a.py =====\nCONFIDENCE: 7\nFIXED_CODE:\n```python\npass\n```")
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, 1.0, blocks[0].Confidence, "clamped")
	assert.Equal(t, "pass", blocks[0].FixedCode)

	_, err = ParseFixBlocks("===== FIX FOR: a.py =====\nFIXED_CODE:\n```python\npass\n")
	assert.ErrorIs(t, err, ErrNoFixBlocks, "unterminated fence")
}

func TestBuildFixPlan(t *testing.T) {
	gc := sampleGroup()
	units, _ := RequestUnits(gc)
	blocks, err := ParseFixBlocks(twoBlockReply)
	require.NoError(t, err)

	plan := BuildFixPlan(gc, units, blocks)
	require.Len(t, plan.FileEdits, 2)

	first := plan.FileEdits[0]
	assert.Equal(t, "app/a.py", first.FilePath)
	require.Len(t, first.Edits, 1)
	edit := first.Edits[0]
	assert.Equal(t, fixplan.EditReplace, edit.Type)
	assert.Equal(t, signal.NewSpan(10, 1, 12, signal.EndOfLine), edit.Span)
	assert.Equal(t, "    x = f()\n    if x is not None:\n        y = g()\n", edit.Content)
	assert.Contains(t, edit.Description, "return-value, union-attr")
	assert.Equal(t, 0.9, first.Confidence)

	assert.Equal(t, "def h(a: int):\n    return a", plan.FileEdits[1].Edits[0].Content)
	assert.InDelta(t, 0.7, plan.Confidence, 1e-9)
	assert.Contains(t, plan.Warnings, "app/b.py: check callers")
}

func TestBuildFixPlanFewerBlocks(t *testing.T) {
	gc := sampleGroup()
	units, _ := RequestUnits(gc)
	blocks := []FixBlock{{FilePath: "elsewhere.py", Confidence: 0.8, FixedCode: "x = 1", HasCode: true}}

	plan := BuildFixPlan(gc, units, blocks)
	require.Len(t, plan.FileEdits, 1)
	assert.Equal(t, "app/a.py", plan.FileEdits[0].FilePath)
	assert.Equal(t, 0.8, plan.Confidence)

	joined := strings.Join(plan.Warnings, "\n")
	assert.Contains(t, joined, "1 fix block(s) for 2 request(s)")
	assert.Contains(t, joined, "No fix returned for arg-type at app/b.py:1-5")
	assert.Contains(t, joined, "names elsewhere.py")
}

type fakeProvider struct {
	reply      string
	err        error
	configured bool
	got        llm.Request
}

func (f *fakeProvider) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.reply, Model: "fake-1", Usage: llm.Usage{InputTokens: 10, OutputTokens: 4}}, nil
}
func (f *fakeProvider) IsConfigured() bool { return f.configured }
func (f *fakeProvider) Name() string       { return "fake" }
func (f *fakeProvider) Model() string      { return "fake-1" }

func TestHandlerGenerateFixPlan(t *testing.T) {
	p := &fakeProvider{reply: twoBlockReply, configured: true}
	res := NewHandler(p, WithMaxTokens(1000)).GenerateFixPlan(context.Background(), sampleGroup())

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "fake-1", res.Model)
	assert.Equal(t, 1000, p.got.MaxTokens)
	assert.Equal(t, SystemPrompt("mypy"), p.got.SystemPrompt)
	assert.Len(t, res.FixPlan.FileEdits, 2)
	assert.Contains(t, strings.Join(res.FixPlan.Warnings, "\n"), "Signal 4 (misc app/c.py)")
}

func TestHandlerFailures(t *testing.T) {
	res := NewHandler(&fakeProvider{}).GenerateFixPlan(context.Background(), sampleGroup())
	assert.False(t, res.Success)
	assert.Equal(t, llm.ErrConfiguration, res.ErrorType)

	p := &fakeProvider{configured: true, err: &llm.Error{Type: llm.ErrTimeout, Message: "slow"}}
	res = NewHandler(p).GenerateFixPlan(context.Background(), sampleGroup())
	assert.False(t, res.Success)
	assert.Equal(t, llm.ErrTimeout, res.ErrorType)
	assert.Equal(t, "LLM error (timeout): slow", res.Error)

	p = &fakeProvider{configured: true, err: errors.New("boom")}
	res = NewHandler(p).GenerateFixPlan(context.Background(), sampleGroup())
	assert.Equal(t, llm.ErrUnknown, res.ErrorType)

	p = &fakeProvider{configured: true, reply: "Sorry."}
	res = NewHandler(p).GenerateFixPlan(context.Background(), sampleGroup())
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, ErrNoFixBlocks.Error())
	assert.Equal(t, "Sorry.", res.RawResponse)
}
