// Package signal holds the tool-agnostic finding model shared by every stage
// of the pipeline.
package signal

import (
	"fmt"
	"strings"
)

// EndOfLine is the column sentinel meaning "end of the row's text".
const EndOfLine = -1

type Type string

const (
	TypeLint      Type = "lint"
	TypeFormat    Type = "format"
	TypeTypeCheck Type = "type_check"
	TypeSecurity  Type = "security"
	TypeDocstring Type = "docstring"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

type Applicability string

const (
	ApplicabilitySafe    Applicability = "safe"
	ApplicabilityUnsafe  Applicability = "unsafe"
	ApplicabilityUnknown Applicability = "unknown"
)

// ParseApplicability maps a tool-reported applicability case-insensitively.
func ParseApplicability(s string) Applicability {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "safe":
		return ApplicabilitySafe
	case "unsafe":
		return ApplicabilityUnsafe
	}
	return ApplicabilityUnknown
}

// Position is a 1-based row and 1-based column. Parsers convert tools that
// report 0-based offsets (mypy, bandit).
type Position struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

func (p Position) String() string {
	if p.Column == EndOfLine {
		return fmt.Sprintf("%d:EOL", p.Row)
	}
	return fmt.Sprintf("%d:%d", p.Row, p.Column)
}

// Before reports whether p sorts strictly before o. EndOfLine sorts after any
// concrete column on the same row.
func (p Position) Before(o Position) bool {
	if p.Row != o.Row {
		return p.Row < o.Row
	}
	return columnKey(p.Column) < columnKey(o.Column)
}

func columnKey(c int) int {
	if c == EndOfLine {
		return int(^uint(0) >> 1)
	}
	return c
}

type Span struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

func NewSpan(startRow, startCol, endRow, endCol int) Span {
	return Span{
		Start: Position{Row: startRow, Column: startCol},
		End:   Position{Row: endRow, Column: endCol},
	}
}

func (s Span) IsEmpty() bool { return s.Start == s.End }

func (s Span) IsInverted() bool { return s.End.Before(s.Start) }

// EndRow returns the last row covered, never smaller than the start row.
func (s Span) EndRow() int {
	if s.End.Row < s.Start.Row {
		return s.Start.Row
	}
	return s.End.Row
}

func (s Span) String() string {
	return fmt.Sprintf("%s-%s", s.Start, s.End)
}

// TextEdit replaces the text at Span with Content. Columns are 1-based.
type TextEdit struct {
	Span    Span   `json:"span"`
	Content string `json:"content"`
}

type Fix struct {
	Applicability Applicability `json:"applicability"`
	Message       string        `json:"message,omitempty"`
	Edits         []TextEdit    `json:"edits"`
}

// Signal is one normalized tool finding. RuleCode and DocsURL are empty when
// the producer does not report them.
type Signal struct {
	Type     Type     `json:"signal_type"`
	Severity Severity `json:"severity"`
	FilePath string   `json:"file_path"`
	Span     *Span    `json:"span,omitempty"`
	RuleCode string   `json:"rule_code,omitempty"`
	Message  string   `json:"message"`
	DocsURL  string   `json:"docs_url,omitempty"`
	Fix      *Fix     `json:"fix,omitempty"`
}

// Location renders "path:row:col" or just the path when there is no span.
func (s Signal) Location() string {
	if s.Span == nil {
		return s.FilePath
	}
	return fmt.Sprintf("%s:%d:%d", s.FilePath, s.Span.Start.Row, s.Span.Start.Column)
}

// Group is one unit of batched fix generation.
type Group struct {
	ToolID  string   `json:"tool_id"`
	Type    Type     `json:"signal_type"`
	Signals []Signal `json:"signals"`
}

// Files lists the distinct file paths of the group in first-seen order.
func (g Group) Files() []string {
	seen := make(map[string]bool)
	var files []string
	for _, s := range g.Signals {
		if seen[s.FilePath] {
			continue
		}
		seen[s.FilePath] = true
		files = append(files, s.FilePath)
	}
	return files
}

// CountByType tallies signals per type.
func CountByType(signals []Signal) map[Type]int {
	out := make(map[Type]int)
	for _, s := range signals {
		out[s.Type]++
	}
	return out
}
