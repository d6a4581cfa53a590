// Package codectx assembles the source context the fix generator sees: a
// read-only window around each signal, specialized blocks (imports, enclosing
// function, class, try/except) and the one editable snippet per signal, with
// overlapping snippets merged into shared edit regions.
package codectx

import "sigfix/internal/signal"

type WindowType string

const (
	WindowLines     WindowType = "lines"
	WindowImports   WindowType = "imports"
	WindowFunction  WindowType = "function"
	WindowClass     WindowType = "class"
	WindowTryExcept WindowType = "try_except"
)

// Range is an inclusive 1-based row range.
type Range struct {
	Start int `json:"start_row"`
	End   int `json:"end_row"`
}

func (r Range) Len() int { return r.End - r.Start + 1 }

func (r Range) Contains(row int) bool { return row >= r.Start && row <= r.End }

// FileSnippet is read-only context. It is never edited or returned.
type FileSnippet struct {
	FilePath string `json:"file_path"`
	StartRow int    `json:"start_row"`
	EndRow   int    `json:"end_row"`
	Text     string `json:"text"`
}

// EditSnippet is the region the fix generator may rewrite. Text has
// BaseIndent stripped from every non-blank line of OriginalText.
type EditSnippet struct {
	FilePath           string `json:"file_path"`
	StartRow           int    `json:"start_row"`
	EndRow             int    `json:"end_row"`
	Text               string `json:"text"`
	OriginalText       string `json:"original_text"`
	ErrorLine          int    `json:"error_line"`
	ErrorLineInSnippet int    `json:"error_line_in_snippet"`
	SnippetLength      int    `json:"snippet_length"`
	BaseIndent         string `json:"base_indent"`
}

type CodeContext struct {
	Window            *FileSnippet  `json:"window,omitempty"`
	Imports           *FileSnippet  `json:"imports,omitempty"`
	EnclosingFunction *FileSnippet  `json:"enclosing_function,omitempty"`
	EnclosingClass    *FileSnippet  `json:"enclosing_class,omitempty"`
	TryExcept         *FileSnippet  `json:"try_except,omitempty"`
	ClassDefinition   *FileSnippet  `json:"class_definition,omitempty"`
	TypeAliases       []FileSnippet `json:"type_aliases,omitempty"`
	RelatedFunctions  []FileSnippet `json:"related_functions,omitempty"`
	ModuleConstants   []FileSnippet `json:"module_constants,omitempty"`
}

// FixContext mirrors a tool-provided deterministic fix.
type FixContext struct {
	Applicability signal.Applicability `json:"applicability"`
	ToolMessage   string               `json:"tool_message,omitempty"`
	Edits         []signal.TextEdit    `json:"edits"`
}

type SignalContext struct {
	ToolID         string        `json:"tool_id"`
	Signal         signal.Signal `json:"signal"`
	FileReadError  string        `json:"file_read_error,omitempty"`
	Code           CodeContext   `json:"code_context"`
	EditWindowType WindowType    `json:"edit_window_type,omitempty"`
	EditSnippet    *EditSnippet  `json:"edit_snippet,omitempty"`
	Fix            *FixContext   `json:"fix_context,omitempty"`
}

type MergedSnippetGroup struct {
	SignalIndices []int        `json:"signal_indices"`
	EditSnippet   *EditSnippet `json:"edit_snippet"`
}

// GroupContext is the context for one signal group. MergedGroups and
// StandaloneIndices together cover every index of Signals exactly once.
type GroupContext struct {
	ToolID            string               `json:"tool_id"`
	Type              signal.Type          `json:"signal_type"`
	Signals           []SignalContext      `json:"signals"`
	MergedGroups      []MergedSnippetGroup `json:"merged_snippet_groups"`
	StandaloneIndices []int                `json:"standalone_signal_indices"`
}
