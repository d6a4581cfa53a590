package parser

import (
	"regexp"
	"strconv"
	"strings"

	"sigfix/internal/logx"
	"sigfix/internal/signal"
)

const pydocstyleDocsBase = "http://www.pydocstyle.org/en/stable/error_codes.html#"

var (
	pydocstyleCodeLine     = regexp.MustCompile(`^[A-Z]\d+:`)
	pydocstyleLocationLine = regexp.MustCompile(`^(.+?):(\d+)\s+(.+):$`)
	pydocstyleErrorLine    = regexp.MustCompile(`^([A-Z]\d+):\s+(.+)$`)

	pydocstyleSupported = map[string]bool{"D101": true, "D102": true, "D103": true}
)

// ParsePydocstyle parses pydocstyle's two-line text report. Only missing
// class, method and function docstrings are kept.
func ParsePydocstyle(raw string, opts Options) []signal.Signal {
	var signals []signal.Signal
	lines := strings.Split(raw, "\n")

	for i := 0; i < len(lines); {
		line := strings.TrimSpace(lines[i])
		if line == "" || pydocstyleCodeLine.MatchString(line) {
			i++
			continue
		}
		if sig, ok := pydocstyleEntry(line, lines, i, opts); ok {
			signals = append(signals, sig)
			i += 2
			continue
		}
		i++
	}
	return signals
}

func pydocstyleEntry(location string, lines []string, i int, opts Options) (signal.Signal, bool) {
	m := pydocstyleLocationLine.FindStringSubmatch(location)
	if m == nil || i+1 >= len(lines) {
		return signal.Signal{}, false
	}
	row, err := strconv.Atoi(m[2])
	if err != nil {
		return signal.Signal{}, false
	}
	em := pydocstyleErrorLine.FindStringSubmatch(strings.TrimSpace(lines[i+1]))
	if em == nil {
		return signal.Signal{}, false
	}
	code, message := em[1], em[2]
	if !pydocstyleSupported[code] {
		logx.Debugf("Skipping unsupported pydocstyle code %s at %s:%d", code, m[1], row)
		return signal.Signal{}, false
	}

	span := signal.NewSpan(row, 1, row, 1)
	return signal.Signal{
		Type:     signal.TypeDocstring,
		Severity: SeverityForPydocstyle(code),
		FilePath: ToRepoRelative(m[1], opts.RepoRoot),
		Span:     &span,
		RuleCode: code,
		Message:  message,
		DocsURL:  pydocstyleDocsBase + code,
	}, true
}
