package agent

import (
	"fmt"
	"strings"

	"sigfix/internal/codectx"
)

// PromptBuilder renders a group context as the user prompt.
type PromptBuilder struct{}

func (pb *PromptBuilder) BuildUserPrompt(gc *codectx.GroupContext, units []RequestUnit) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Fix the following issues reported by %s (%s).\n", gc.ToolID, gc.Type)
	fmt.Fprintf(&sb, "There are %d request(s). Return exactly %d fix block(s), one per request, in the same order.\n", len(units), len(units))

	for n, unit := range units {
		fmt.Fprintf(&sb, "\n\n==================================================================\n")
		fmt.Fprintf(&sb, "### REQUEST %d of %d\n", n+1, len(units))
		sb.WriteString("==================================================================\n")
		if unit.Merged {
			pb.writeMerged(&sb, gc, unit)
		} else {
			pb.writeStandalone(&sb, gc, unit)
		}
	}
	return sb.String()
}

func (pb *PromptBuilder) writeStandalone(sb *strings.Builder, gc *codectx.GroupContext, unit RequestUnit) {
	idx := unit.SignalIndices[0]
	fmt.Fprintf(sb, "SIGNAL %d\n", idx+1)
	writeSignalMeta(sb, gc.Signals[idx])

	s := unit.Snippet
	fmt.Fprintf(sb, "\n--- FIX AND RETURN THIS: %s rows %d-%d", s.FilePath, s.StartRow, s.EndRow)
	if s.ErrorLineInSnippet > 0 {
		fmt.Fprintf(sb, ", issue on line %d of this snippet", s.ErrorLineInSnippet)
	}
	sb.WriteString(" ---\n")
	writeCode(sb, s.Text)

	writeReadOnly(sb, []codectx.SignalContext{gc.Signals[idx]})
}

func (pb *PromptBuilder) writeMerged(sb *strings.Builder, gc *codectx.GroupContext, unit RequestUnit) {
	sb.WriteString("MERGED SIGNALS (shared edit region)\n")
	fmt.Fprintf(sb, "These %d issues fall in one region. Fix all of them in a single rewrite.\n", len(unit.SignalIndices))

	members := make([]codectx.SignalContext, 0, len(unit.SignalIndices))
	for n, idx := range unit.SignalIndices {
		fmt.Fprintf(sb, "\nError %d\n", n+1)
		writeSignalMeta(sb, gc.Signals[idx])
		members = append(members, gc.Signals[idx])
	}

	s := unit.Snippet
	fmt.Fprintf(sb, "\n--- FIX ALL ERRORS ABOVE AND RETURN THIS: %s rows %d-%d ---\n", s.FilePath, s.StartRow, s.EndRow)
	writeCode(sb, s.Text)

	writeReadOnly(sb, members)
}

func writeSignalMeta(sb *strings.Builder, sc codectx.SignalContext) {
	sig := sc.Signal
	fmt.Fprintf(sb, "File: %s\n", sig.FilePath)
	if sig.RuleCode != "" {
		fmt.Fprintf(sb, "Rule: %s\n", sig.RuleCode)
	}
	fmt.Fprintf(sb, "Severity: %s\n", sig.Severity)
	if sig.Span != nil {
		fmt.Fprintf(sb, "Location: %s\n", sig.Span)
	}
	fmt.Fprintf(sb, "Message: %s\n", sig.Message)
	if sig.DocsURL != "" {
		fmt.Fprintf(sb, "Docs: %s\n", sig.DocsURL)
	}
	if fc := sc.Fix; fc != nil {
		fmt.Fprintf(sb, "Tool fix (%s): %s\n", fc.Applicability, fc.ToolMessage)
		for _, e := range fc.Edits {
			fmt.Fprintf(sb, "  replace %s with %q\n", e.Span, e.Content)
		}
	}
}

type readOnlyBlock struct {
	label   string
	snippet *codectx.FileSnippet
}

// writeReadOnly emits every context block of members once.
func writeReadOnly(sb *strings.Builder, members []codectx.SignalContext) {
	seen := make(map[string]bool)
	for _, sc := range members {
		for _, b := range contextBlocks(sc.Code) {
			key := fmt.Sprintf("%s:%s:%d:%d", b.label, b.snippet.FilePath, b.snippet.StartRow, b.snippet.EndRow)
			if seen[key] {
				continue
			}
			seen[key] = true
			fmt.Fprintf(sb, "\n--- FOR UNDERSTANDING ONLY, DO NOT RETURN: %s (%s rows %d-%d) ---\n",
				b.label, b.snippet.FilePath, b.snippet.StartRow, b.snippet.EndRow)
			writeCode(sb, b.snippet.Text)
		}
	}
}

func contextBlocks(c codectx.CodeContext) []readOnlyBlock {
	var out []readOnlyBlock
	add := func(label string, s *codectx.FileSnippet) {
		if s != nil {
			out = append(out, readOnlyBlock{label: label, snippet: s})
		}
	}
	add("surrounding code", c.Window)
	add("imports", c.Imports)
	add("enclosing function", c.EnclosingFunction)
	add("enclosing class", c.EnclosingClass)
	add("try/except block", c.TryExcept)
	add("class definition", c.ClassDefinition)
	for i := range c.TypeAliases {
		add("type definition", &c.TypeAliases[i])
	}
	for i := range c.RelatedFunctions {
		add("called function", &c.RelatedFunctions[i])
	}
	for i := range c.ModuleConstants {
		add("module constant", &c.ModuleConstants[i])
	}
	return out
}

func writeCode(sb *strings.Builder, text string) {
	sb.WriteString("```python\n")
	sb.WriteString(text)
	sb.WriteString("\n```\n")
}
