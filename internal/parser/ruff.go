package parser

import (
	"bytes"
	"encoding/json"
	"fmt"

	"sigfix/internal/logx"
	"sigfix/internal/signal"
)

type ruffLocation struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

type ruffEdit struct {
	Content     string       `json:"content"`
	Location    ruffLocation `json:"location"`
	EndLocation ruffLocation `json:"end_location"`
}

type ruffFix struct {
	Applicability string     `json:"applicability"`
	Message       string     `json:"message"`
	Edits         []ruffEdit `json:"edits"`
}

type ruffViolation struct {
	Code        string       `json:"code"`
	Filename    string       `json:"filename"`
	Message     string       `json:"message"`
	URL         string       `json:"url"`
	Location    ruffLocation `json:"location"`
	EndLocation ruffLocation `json:"end_location"`
	Fix         *ruffFix     `json:"fix"`
}

func (l ruffLocation) position() signal.Position {
	return signal.Position{Row: l.Row, Column: l.Column}
}

// ParseRuffLint parses `ruff check --output-format=json`. Violations missing
// code, filename, location, end_location or message are dropped.
func ParseRuffLint(raw []byte, opts Options) ([]signal.Signal, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("ruff lint output is not a JSON array: %w", err)
	}

	signals := make([]signal.Signal, 0, len(records))
	for i, rec := range records {
		if err := validateRecord(schemaRuffViolation, rec); err != nil {
			logx.Debugf("Skipping ruff violation %d: %v", i, err)
			continue
		}
		var v ruffViolation
		if err := json.Unmarshal(rec, &v); err != nil {
			logx.Debugf("Skipping ruff violation %d: %v", i, err)
			continue
		}
		signals = append(signals, ruffSignal(v, opts))
	}
	return signals, nil
}

func ruffSignal(v ruffViolation, opts Options) signal.Signal {
	span := signal.Span{Start: v.Location.position(), End: v.EndLocation.position()}

	var fix *signal.Fix
	if v.Fix != nil {
		fix = &signal.Fix{
			Applicability: signal.ParseApplicability(v.Fix.Applicability),
			Message:       v.Fix.Message,
			Edits:         make([]signal.TextEdit, 0, len(v.Fix.Edits)),
		}
		for _, e := range v.Fix.Edits {
			fix.Edits = append(fix.Edits, signal.TextEdit{
				Span:    signal.Span{Start: e.Location.position(), End: e.EndLocation.position()},
				Content: e.Content,
			})
		}
	}

	typ := signal.TypeLint
	if isRuffSecurityCode(v.Code) {
		typ = signal.TypeSecurity
	}

	return signal.Signal{
		Type:     typ,
		Severity: SeverityForRuff(v.Code),
		FilePath: ToRepoRelative(v.Filename, opts.RepoRoot),
		Span:     &span,
		RuleCode: v.Code,
		Message:  v.Message,
		DocsURL:  v.URL,
		Fix:      fix,
	}
}
