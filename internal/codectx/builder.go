package codectx

import (
	"context"

	"sigfix/internal/signal"
)

const (
	DefaultWindowLines  = 20
	DefaultMaxFileBytes = 512_000
)

type Options struct {
	// WindowLines is the ± row count of the read-only window.
	WindowLines  int
	MaxFileBytes int64
	MergeGap     int
	Windows      *EditWindowTable
}

func (o Options) withDefaults() Options {
	if o.WindowLines <= 0 {
		o.WindowLines = DefaultWindowLines
	}
	if o.MaxFileBytes <= 0 {
		o.MaxFileBytes = DefaultMaxFileBytes
	}
	if o.MergeGap <= 0 {
		o.MergeGap = DefaultMergeGap
	}
	if o.Windows == nil {
		o.Windows = DefaultEditWindowTable()
	}
	return o
}

// Builder assembles GroupContexts. It never edits files.
type Builder struct {
	source FileSource
	opts   Options
}

func NewBuilder(source FileSource, opts Options) *Builder {
	return &Builder{source: source, opts: opts.withDefaults()}
}

// BuildGroupContext reads each distinct file once and builds one context per
// signal, then merges overlapping edit snippets. Read failures are recorded
// on the affected signals only.
func (b *Builder) BuildGroupContext(ctx context.Context, group signal.Group) *GroupContext {
	cache := make(fileCache)
	gc := &GroupContext{
		ToolID:  group.ToolID,
		Type:    group.Type,
		Signals: make([]SignalContext, 0, len(group.Signals)),
	}
	for _, sig := range group.Signals {
		gc.Signals = append(gc.Signals, b.buildSignal(ctx, cache, group.ToolID, sig))
	}
	gc.MergedGroups, gc.StandaloneIndices = mergeOverlappingSnippets(gc.Signals, cache, b.opts.MergeGap)
	return gc
}

func (b *Builder) buildSignal(ctx context.Context, cache fileCache, toolID string, sig signal.Signal) SignalContext {
	sc := SignalContext{ToolID: toolID, Signal: sig, Fix: fixContext(sig)}

	entry := cache.load(ctx, b.source, sig.FilePath, b.opts.MaxFileBytes)
	if entry.err != nil {
		sc.FileReadError = entry.err.Error()
		return sc
	}
	lines := entry.lines
	if len(lines) == 0 {
		return sc
	}

	row, endRow := 0, 0
	if sig.Span != nil {
		row = clampRow(sig.Span.Start.Row, len(lines))
		endRow = clampRow(sig.Span.EndRow(), len(lines))
		n := max(b.opts.WindowLines, b.opts.Windows.MinContextLines)
		sc.Code.Window = newFileSnippet(sig.FilePath, lines, LineWindow(len(lines), row, endRow, n))
	}

	sel := b.opts.Windows.SelectContext(toolID, sig.RuleCode, sig.Message)
	b.addSelectedBlocks(&sc, lines, row, sel)

	if row > 0 {
		spec := b.opts.Windows.Lookup(toolID, sig.RuleCode)
		sc.EditWindowType, sc.EditSnippet = b.editSnippet(sig.FilePath, lines, spec, row, endRow)
	}
	return sc
}

func (b *Builder) addSelectedBlocks(sc *SignalContext, lines []string, row int, sel Selection) {
	path := sc.Signal.FilePath
	if sel.Imports {
		if r, ok := ImportBlock(lines); ok {
			sc.Code.Imports = newFileSnippet(path, lines, r)
		}
	}
	if row > 0 && sel.EnclosingFunction {
		if r, ok := EnclosingFunction(lines, row); ok {
			sc.Code.EnclosingFunction = newFileSnippet(path, lines, r)
		}
	}
	if row > 0 && sel.ClassHeader {
		if r, ok := EnclosingClass(lines, row); ok {
			sc.Code.EnclosingClass = newFileSnippet(path, lines, ClassHeader(lines, r))
		}
	}
	if row > 0 && sel.TryExcept {
		if r, ok := TryExceptBlock(lines, row); ok {
			sc.Code.TryExcept = newFileSnippet(path, lines, r)
		}
	}

	req := sel.Requirements
	if req.ClassDefinition && row > 0 {
		if r, ok := EnclosingClass(lines, row); ok {
			if r.Len() > maxClassDefinitionRows {
				r = ClassHeader(lines, r)
			}
			sc.Code.ClassDefinition = newFileSnippet(path, lines, r)
		}
	}
	for _, name := range req.TypeAliases {
		if r, ok := FindTypeDefinition(lines, name); ok {
			sc.Code.TypeAliases = append(sc.Code.TypeAliases, *newFileSnippet(path, lines, r))
		}
	}
	if req.RelatedFunctionName != "" {
		if r, ok := FindFunction(lines, req.RelatedFunctionName); ok && !r.Contains(row) {
			sc.Code.RelatedFunctions = append(sc.Code.RelatedFunctions, *newFileSnippet(path, lines, r))
		}
	}
	if req.ModuleConstants {
		for _, r := range ModuleConstants(lines) {
			sc.Code.ModuleConstants = append(sc.Code.ModuleConstants, *newFileSnippet(path, lines, r))
		}
	}
}

const maxClassDefinitionRows = 80

// editSnippet resolves the editable region for one signal. Structural
// windows fall back to a line window when the structure is not found.
func (b *Builder) editSnippet(path string, lines []string, spec WindowSpec, row, endRow int) (WindowType, *EditSnippet) {
	if r, ok := b.structuralRange(lines, spec, row); ok {
		return spec.Type, newEditSnippet(path, lines, r, row)
	}
	n := spec.fallbackLines(b.opts.Windows.Default.Lines)
	return WindowLines, newEditSnippet(path, lines, LineWindow(len(lines), row, endRow, n), row)
}

func (b *Builder) structuralRange(lines []string, spec WindowSpec, row int) (Range, bool) {
	switch spec.Type {
	case WindowImports:
		r, ok := ImportBlock(lines)
		if !ok {
			return Range{}, false
		}
		// an import placed below the block (E402) extends it when close by
		if row > r.End && row-r.End <= b.opts.WindowLines {
			r.End = statementEnd(lines, row)
		}
		return r, r.Contains(row)
	case WindowTryExcept:
		return TryExceptBlock(lines, row)
	case WindowFunction:
		r, ok := EnclosingFunction(lines, row)
		if ok && spec.HeaderOnly {
			r = HeaderRegion(lines, r, b.opts.Windows.MinEditLines)
		}
		return r, ok
	case WindowClass:
		r, ok := EnclosingClass(lines, row)
		if ok && spec.HeaderOnly {
			r = HeaderRegion(lines, r, b.opts.Windows.MinEditLines)
		}
		return r, ok
	}
	return Range{}, false
}

func clampRow(row, total int) int {
	return min(max(row, 1), total)
}

func fixContext(sig signal.Signal) *FixContext {
	if sig.Fix == nil {
		return nil
	}
	return &FixContext{
		Applicability: sig.Fix.Applicability,
		ToolMessage:   sig.Fix.Message,
		Edits:         sig.Fix.Edits,
	}
}
