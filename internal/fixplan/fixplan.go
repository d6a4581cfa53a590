// Package fixplan holds the structured edit plan produced for one signal
// group and the non-fatal validation pass run over it.
package fixplan

import (
	"fmt"
	"sort"

	"sigfix/internal/signal"
)

type EditType string

const (
	EditReplace EditType = "REPLACE"
	EditInsert  EditType = "INSERT"
	EditDelete  EditType = "DELETE"
)

// CodeEdit columns are 1-based; signal.EndOfLine targets the end of a row.
type CodeEdit struct {
	Type        EditType    `json:"edit_type"`
	Span        signal.Span `json:"span"`
	Content     string      `json:"content"`
	Description string      `json:"description,omitempty"`
}

type FileEdit struct {
	FilePath  string     `json:"file_path"`
	Edits     []CodeEdit `json:"edits"`
	Reasoning string     `json:"reasoning,omitempty"`
	// Confidence is the generator's confidence for this file's edits.
	Confidence float64 `json:"confidence"`
}

// FixPlan is created once per group. Later stages only append Warnings.
type FixPlan struct {
	GroupToolID     string      `json:"group_tool_id"`
	GroupSignalType signal.Type `json:"group_signal_type"`
	FileEdits       []FileEdit  `json:"file_edits"`
	Summary         string      `json:"summary"`
	Warnings        []string    `json:"warnings"`
	Confidence      float64     `json:"confidence"`
}

func (p *FixPlan) AddWarning(format string, args ...any) {
	p.Warnings = append(p.Warnings, fmt.Sprintf(format, args...))
}

// EditCount is the number of CodeEdits across all files.
func (p *FixPlan) EditCount() int {
	n := 0
	for _, fe := range p.FileEdits {
		n += len(fe.Edits)
	}
	return n
}

// Files lists the distinct edited paths in sorted order.
func (p *FixPlan) Files() []string {
	seen := make(map[string]bool)
	var files []string
	for _, fe := range p.FileEdits {
		if !seen[fe.FilePath] {
			seen[fe.FilePath] = true
			files = append(files, fe.FilePath)
		}
	}
	sort.Strings(files)
	return files
}

// Validate appends a warning for every suspicious edit. It never drops or
// rewrites an edit.
func Validate(p *FixPlan) {
	for _, fe := range p.FileEdits {
		for i, e := range fe.Edits {
			loc := fmt.Sprintf("%s:%s", fe.FilePath, e.Span)
			if e.Span.IsInverted() {
				p.AddWarning("Edit %d in %s has an inverted span (end before start)", i+1, loc)
				continue
			}
			if e.Type != EditReplace {
				continue
			}
			if e.Span.IsEmpty() {
				p.AddWarning("Edit %d in %s is a zero-width REPLACE; it behaves like an insert", i+1, loc)
			}
			if e.Content == "" {
				p.AddWarning("Edit %d in %s replaces with empty content; this deletes the span", i+1, loc)
			}
		}
	}
}

// MeanConfidence averages values, returning fallback when there are none.
func MeanConfidence(values []float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
