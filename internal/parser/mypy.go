package parser

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"

	"sigfix/internal/logx"
	"sigfix/internal/signal"
)

const mypyDocsBase = "https://mypy.readthedocs.io/en/stable/error_code_list.html#"

type mypyEntry struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Message  string `json:"message"`
	Hint     string `json:"hint"`
	Code     string `json:"code"`
	Severity string `json:"severity"`
}

// ParseMypy parses `mypy --output=json` (one JSON object per line). Lines that
// are not valid JSON, or lack file/line, are logged and skipped.
func ParseMypy(raw string, opts Options) []signal.Signal {
	var signals []signal.Signal

	sc := bufio.NewScanner(strings.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !json.Valid([]byte(line)) {
			logx.Warningf("Skipping malformed mypy JSON at line %d: %s", lineNum, truncate(line, 100))
			continue
		}
		if err := validateRecord(schemaMypyEntry, []byte(line)); err != nil {
			logx.Warningf("Skipping mypy entry at line %d: %v", lineNum, err)
			continue
		}
		var e mypyEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			logx.Warningf("Skipping mypy entry at line %d: %v", lineNum, err)
			continue
		}
		signals = append(signals, mypySignal(e, opts))
	}
	if err := sc.Err(); err != nil {
		logx.Warningf("Stopped reading mypy output at line %d: %v", lineNum, err)
	}
	return signals
}

func mypySignal(e mypyEntry, opts Options) signal.Signal {
	msg := e.Message
	if e.Hint != "" {
		msg = fmt.Sprintf("%s (hint: %s)", msg, e.Hint)
	}
	severity := e.Severity
	if severity == "" {
		severity = "error"
	}
	// mypy reports a single point, so the span is zero-width.
	col := oneBasedColumn(e.Column)
	span := signal.NewSpan(e.Line, col, e.Line, col)

	var docs string
	if e.Code != "" {
		docs = mypyDocsBase + e.Code
	}
	return signal.Signal{
		Type:     signal.TypeTypeCheck,
		Severity: SeverityForMypy(severity, e.Code),
		FilePath: ToRepoRelative(e.File, opts.RepoRoot),
		Span:     &span,
		RuleCode: e.Code,
		Message:  msg,
		DocsURL:  docs,
	}
}

// oneBasedColumn converts a 0-based column offset. mypy reports -1 when the
// column is unknown.
func oneBasedColumn(col int) int {
	if col < 0 {
		return 1
	}
	return col + 1
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
