package agent

import (
	"fmt"
	"sort"
	"strings"

	"sigfix/internal/codectx"
	"sigfix/internal/fixplan"
	"sigfix/internal/signal"
)

// BuildFixPlan maps the Nth block onto the Nth request unit. Each block
// becomes one whole-line REPLACE over its unit's snippet rows.
func BuildFixPlan(gc *codectx.GroupContext, units []RequestUnit, blocks []FixBlock) *fixplan.FixPlan {
	plan := &fixplan.FixPlan{
		GroupToolID:     gc.ToolID,
		GroupSignalType: gc.Type,
		FileEdits:       []fixplan.FileEdit{},
		Warnings:        []string{},
	}

	if len(blocks) < len(units) {
		plan.AddWarning("LLM returned %d fix block(s) for %d request(s); the remaining requests were dropped",
			len(blocks), len(units))
	} else if len(blocks) > len(units) {
		plan.AddWarning("LLM returned %d fix block(s) for %d request(s); extra blocks were ignored",
			len(blocks), len(units))
	}

	var confidences []float64
	fixed := 0
	for i, unit := range units {
		if i >= len(blocks) {
			plan.AddWarning("No fix returned for %s", describeUnit(gc, unit))
			continue
		}
		block := blocks[i]
		snippet := unit.Snippet
		if !block.HasCode {
			plan.AddWarning("Fix block %d for %s has no FIXED_CODE section", i+1, snippet.FilePath)
			continue
		}
		if block.FilePath != "" && !samePath(block.FilePath, snippet.FilePath) {
			plan.AddWarning("Fix block %d names %s but request %d is for %s; using the request's file",
				i+1, block.FilePath, i+1, snippet.FilePath)
		}
		if block.Warnings != "" {
			plan.AddWarning("%s: %s", snippet.FilePath, block.Warnings)
		}

		edit := fixplan.CodeEdit{
			Type:        fixplan.EditReplace,
			Span:        signal.NewSpan(snippet.StartRow, 1, snippet.EndRow, signal.EndOfLine),
			Content:     codectx.RestoreIndent(block.FixedCode, snippet.BaseIndent),
			Description: "Fix " + describeUnit(gc, unit),
		}
		plan.FileEdits = append(plan.FileEdits, fixplan.FileEdit{
			FilePath:   snippet.FilePath,
			Edits:      []fixplan.CodeEdit{edit},
			Reasoning:  block.Reasoning,
			Confidence: block.Confidence,
		})
		confidences = append(confidences, block.Confidence)
		fixed += len(unit.SignalIndices)
	}

	plan.Confidence = fixplan.MeanConfidence(confidences, defaultBlockConfidence)
	plan.Summary = fmt.Sprintf("LLM fix for %d of %d %s signal(s) across %d file(s)",
		fixed, len(gc.Signals), gc.ToolID, len(plan.Files()))
	fixplan.Validate(plan)
	return plan
}

func describeUnit(gc *codectx.GroupContext, unit RequestUnit) string {
	codes := make([]string, 0, len(unit.SignalIndices))
	seen := make(map[string]bool)
	for _, i := range unit.SignalIndices {
		code := gc.Signals[i].Signal.RuleCode
		if code == "" {
			code = string(gc.Signals[i].Signal.Type)
		}
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	s := unit.Snippet
	return fmt.Sprintf("%s at %s:%d-%d", strings.Join(codes, ", "), s.FilePath, s.StartRow, s.EndRow)
}

func samePath(a, b string) bool {
	clean := func(p string) string {
		return strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(p), "./"), "/")
	}
	a, b = clean(a), clean(b)
	return a == b || strings.HasSuffix(a, "/"+b) || strings.HasSuffix(b, "/"+a)
}
