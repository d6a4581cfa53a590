package parser

import (
	"bytes"
	"encoding/json"
	"fmt"

	"sigfix/internal/logx"
	"sigfix/internal/signal"
)

type banditReport struct {
	Results []json.RawMessage `json:"results"`
}

type banditResult struct {
	Filename        string `json:"filename"`
	TestID          string `json:"test_id"`
	TestName        string `json:"test_name"`
	IssueText       string `json:"issue_text"`
	IssueSeverity   string `json:"issue_severity"`
	IssueConfidence string `json:"issue_confidence"`
	LineNumber      int    `json:"line_number"`
	LineRange       []int  `json:"line_range"`
	ColOffset       int    `json:"col_offset"`
	EndColOffset    *int   `json:"end_col_offset"`
	MoreInfo        string `json:"more_info"`
}

// ParseBandit parses `bandit -f json`. Columns stay 0-based as reported.
func ParseBandit(raw []byte, opts Options) ([]signal.Signal, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var report banditReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("bandit output is not a JSON report: %w", err)
	}

	signals := make([]signal.Signal, 0, len(report.Results))
	for i, rec := range report.Results {
		if err := validateRecord(schemaBanditResult, rec); err != nil {
			logx.Debugf("Skipping bandit result %d: %v", i, err)
			continue
		}
		var r banditResult
		if err := json.Unmarshal(rec, &r); err != nil {
			logx.Debugf("Skipping bandit result %d: %v", i, err)
			continue
		}
		signals = append(signals, banditSignal(r, opts))
	}
	return signals, nil
}

func banditSignal(r banditResult, opts Options) signal.Signal {
	endRow := r.LineNumber
	if n := len(r.LineRange); n > 0 && r.LineRange[n-1] > endRow {
		endRow = r.LineRange[n-1]
	}
	startCol := oneBasedColumn(r.ColOffset)
	endCol := startCol
	if r.EndColOffset != nil {
		endCol = oneBasedColumn(*r.EndColOffset)
	}
	span := signal.NewSpan(r.LineNumber, startCol, endRow, endCol)

	msg := r.IssueText
	if r.TestName != "" {
		msg = fmt.Sprintf("%s [%s]", r.IssueText, r.TestName)
	}
	return signal.Signal{
		Type:     signal.TypeSecurity,
		Severity: SeverityForBandit(r.IssueSeverity, r.IssueConfidence),
		FilePath: ToRepoRelative(r.Filename, opts.RepoRoot),
		Span:     &span,
		RuleCode: r.TestID,
		Message:  msg,
		DocsURL:  r.MoreInfo,
	}
}
