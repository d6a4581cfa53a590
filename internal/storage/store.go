package storage

import (
	"context"

	"sigfix/internal/report"
)

// RunRecord is one stored pipeline run.
type RunRecord struct {
	ID           int64
	Mode         string
	ArtifactsDir string
	StartedAt    string
	FinishedAt   string
	Summary      report.Summary
}

// RunStore persists run reports for the history command.
type RunStore interface {
	// SaveRun writes the run and all of its group results in one transaction.
	SaveRun(ctx context.Context, r *report.RunReport) (int64, error)

	// ListRuns returns the most recent runs first.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)

	GroupsForRun(ctx context.Context, runID int64) ([]report.GroupMetric, error)

	Close() error
}
