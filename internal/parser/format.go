package parser

import (
	"fmt"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"

	"sigfix/internal/signal"
)

const (
	formatRuleCode = "FORMAT"
	formatDocsURL  = "https://docs.astral.sh/ruff/formatter/"
)

type diffHunk struct {
	oldStart int
	oldCount int
	oldLines []string
	newLines []string
}

type fileDiff struct {
	path  string
	hunks []diffHunk
}

// ParseRuffFormatDiff parses `ruff format --diff`. Every signal is FORMAT,
// LOW severity, with a SAFE fix made of one edit per hunk.
func ParseRuffFormatDiff(text string, opts Options) ([]signal.Signal, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	diffs, err := parseUnifiedDiff(text)
	if err != nil {
		return nil, err
	}

	var signals []signal.Signal
	for _, fd := range diffs {
		path := ToRepoRelative(fd.path, opts.RepoRoot)
		if opts.FormatPerHunk {
			for _, h := range fd.hunks {
				signals = append(signals, hunkSignal(path, h))
			}
			continue
		}
		signals = append(signals, fileFormatSignal(path, fd.hunks))
	}
	return signals, nil
}

func parseUnifiedDiff(text string) ([]fileDiff, error) {
	files, _, err := gitdiff.Parse(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("failed to parse format diff: %w", err)
	}

	out := make([]fileDiff, 0, len(files))
	for _, f := range files {
		name := f.NewName
		if name == "" {
			name = f.OldName
		}
		fd := fileDiff{path: stripDiffPrefix(name)}
		for _, frag := range f.TextFragments {
			h := diffHunk{oldStart: int(frag.OldPosition), oldCount: int(frag.OldLines)}
			for _, line := range frag.Lines {
				text := strings.TrimSuffix(line.Line, "\n")
				switch line.Op {
				case gitdiff.OpContext:
					h.oldLines = append(h.oldLines, text)
					h.newLines = append(h.newLines, text)
				case gitdiff.OpDelete:
					h.oldLines = append(h.oldLines, text)
				case gitdiff.OpAdd:
					h.newLines = append(h.newLines, text)
				}
			}
			fd.hunks = append(fd.hunks, h)
		}
		if len(fd.hunks) > 0 {
			out = append(out, fd)
		}
	}
	return out, nil
}

func stripDiffPrefix(name string) string {
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return name
}

// startRow is the first old row the hunk touches. A pure insertion reports
// the row before the insertion point, so its edit starts one row later.
func (h diffHunk) startRow() int {
	if h.oldCount == 0 {
		return h.oldStart + 1
	}
	return h.oldStart
}

// The span covers the old lines; End is the row after the last one.
func (h diffHunk) span() signal.Span {
	start := h.startRow()
	return signal.NewSpan(start, 1, start+h.oldCount, 1)
}

func (h diffHunk) replacement() string {
	if len(h.newLines) == 0 {
		return ""
	}
	return strings.Join(h.newLines, "\n") + "\n"
}

func fileFormatSignal(path string, hunks []diffHunk) signal.Signal {
	edits := make([]signal.TextEdit, 0, len(hunks))
	affected := 0
	for _, h := range hunks {
		edits = append(edits, signal.TextEdit{Span: h.span(), Content: h.replacement()})
		affected += len(h.oldLines) + len(h.newLines)
	}
	first, last := hunks[0], hunks[len(hunks)-1]
	span := signal.NewSpan(first.startRow(), 1, last.span().End.Row, 1)

	return signal.Signal{
		Type:     signal.TypeFormat,
		Severity: signal.SeverityLow,
		FilePath: path,
		Span:     &span,
		RuleCode: formatRuleCode,
		Message:  fmt.Sprintf("%d formatting region(s) to update (%d lines affected)", len(hunks), affected),
		DocsURL:  formatDocsURL,
		Fix: &signal.Fix{
			Applicability: signal.ApplicabilitySafe,
			Message:       fmt.Sprintf("Apply %d formatting change(s)", len(hunks)),
			Edits:         edits,
		},
	}
}

func hunkSignal(path string, h diffHunk) signal.Signal {
	span := h.span()
	modified := countMissing(h.oldLines, h.newLines)
	reformatted := countMissing(h.newLines, h.oldLines)

	return signal.Signal{
		Type:     signal.TypeFormat,
		Severity: signal.SeverityLow,
		FilePath: path,
		Span:     &span,
		RuleCode: formatRuleCode,
		Message:  fmt.Sprintf("Formatting changes: %d line(s) modified, %d line(s) reformatted", modified, reformatted),
		DocsURL:  formatDocsURL,
		Fix: &signal.Fix{
			Applicability: signal.ApplicabilitySafe,
			Message:       "Apply ruff format",
			Edits:         []signal.TextEdit{{Span: span, Content: h.replacement()}},
		},
	}
}

// countMissing counts lines of a that do not appear anywhere in b.
func countMissing(a, b []string) int {
	present := make(map[string]bool, len(b))
	for _, l := range b {
		present[l] = true
	}
	n := 0
	for _, l := range a {
		if !present[l] {
			n++
		}
	}
	return n
}
