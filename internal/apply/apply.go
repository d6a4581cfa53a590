// Package apply applies a file's planned edits to its content, bottom-up so
// row/column spans stay valid while earlier edits are pending.
package apply

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"sigfix/internal/fixplan"
	"sigfix/internal/signal"
)

// SkippedEdit is an edit that was not applied, with the reason.
type SkippedEdit struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

type Result struct {
	Content string        `json:"-"`
	Applied int           `json:"applied"`
	Skipped []SkippedEdit `json:"skipped,omitempty"`
}

// Changed reports whether any applied edit altered the content.
func (r Result) Changed(original string) bool { return r.Content != original }

type candidate struct {
	index      int
	start, end int
	content    string
}

// ApplyEdits applies edits to content. Edits that cannot be located or that
// overlap an earlier edit in the list are skipped; the rest are applied from
// the bottom of the file upward.
func ApplyEdits(content string, edits []fixplan.CodeEdit) Result {
	idx := newLineIndex(content)
	res := Result{Content: content}

	accepted := make([]candidate, 0, len(edits))
	for i, e := range edits {
		start, err := idx.offset(e.Span.Start)
		if err == nil && e.Span.IsInverted() {
			err = fmt.Errorf("inverted span %s", e.Span)
		}
		var end int
		if err == nil {
			end, err = idx.offset(e.Span.End)
		}
		if err == nil && end < start {
			err = fmt.Errorf("span %s resolves backwards", e.Span)
		}
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedEdit{Index: i, Reason: err.Error()})
			continue
		}

		c := candidate{index: i, start: start, end: end, content: e.Content}
		if e.Type == fixplan.EditDelete {
			c.content = ""
		}
		if e.Type == fixplan.EditInsert {
			c.end = c.start
		}
		if other, ok := firstConflict(accepted, c); ok {
			res.Skipped = append(res.Skipped, SkippedEdit{
				Index:  i,
				Reason: fmt.Sprintf("conflicts with edit %d", other.index),
			})
			continue
		}
		accepted = append(accepted, c)
	}

	sort.SliceStable(accepted, func(a, b int) bool {
		if accepted[a].start != accepted[b].start {
			return accepted[a].start > accepted[b].start
		}
		return accepted[a].index > accepted[b].index
	})

	out := content
	for _, c := range accepted {
		out = out[:c.start] + c.content + out[c.end:]
	}
	res.Content = out
	res.Applied = len(accepted)
	return res
}

func firstConflict(accepted []candidate, c candidate) (candidate, bool) {
	for _, a := range accepted {
		if spansConflict(a, c) {
			return a, true
		}
	}
	return candidate{}, false
}

// spansConflict: two insertions never conflict, an insertion conflicts with
// a span strictly containing its point, and non-empty spans conflict when
// they overlap.
func spansConflict(a, b candidate) bool {
	if a.start == a.end && b.start == b.end {
		return false
	}
	if a.start == a.end {
		return b.start < a.start && a.start < b.end
	}
	if b.start == b.end {
		return a.start < b.start && b.start < a.end
	}
	return a.start < b.end && b.start < a.end
}

type lineIndex struct {
	content string
	starts  []int
}

func newLineIndex(content string) lineIndex {
	starts := []int{0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' && i+1 < len(content) {
			starts = append(starts, i+1)
		}
	}
	if content == "" {
		starts = nil
	}
	return lineIndex{content: content, starts: starts}
}

// offset resolves a 1-based row and 1-based character column to a byte
// offset. EndOfLine resolves before the row's line terminator. The row just
// past the last line addresses the end of the file.
func (l lineIndex) offset(p signal.Position) (int, error) {
	if p.Row < 1 {
		return 0, fmt.Errorf("row %d out of range", p.Row)
	}
	if p.Row > len(l.starts) {
		if p.Row == len(l.starts)+1 && (p.Column <= 1 || p.Column == signal.EndOfLine) {
			return len(l.content), nil
		}
		return 0, fmt.Errorf("row %d out of range (file has %d lines)", p.Row, len(l.starts))
	}

	start := l.starts[p.Row-1]
	text := l.content[start:]
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[:nl]
	}
	text = strings.TrimSuffix(text, "\r")

	if p.Column == signal.EndOfLine {
		return start + len(text), nil
	}
	if p.Column < 1 {
		return 0, fmt.Errorf("column %d out of range", p.Column)
	}
	// columns count characters; past the end clamps to the end of the row
	off := 0
	for col := 1; col < p.Column && off < len(text); col++ {
		_, size := utf8.DecodeRuneInString(text[off:])
		off += size
	}
	return start + off, nil
}
