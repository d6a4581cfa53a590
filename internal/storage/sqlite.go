package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"sigfix/internal/report"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			mode TEXT,
			artifacts_dir TEXT,
			started_at TEXT,
			finished_at TEXT,
			summary JSON,
			stages JSON
		);`,
		`CREATE TABLE IF NOT EXISTS group_results (
			run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			idx INTEGER NOT NULL,
			tool_id TEXT,
			signal_type TEXT,
			signal_count INTEGER,
			used_llm INTEGER,
			plan_success INTEGER,
			confidence REAL,
			warnings INTEGER,
			pr_attempted INTEGER,
			pr_success INTEGER,
			pr_url TEXT,
			pr_number INTEGER,
			fixed INTEGER,
			skipped INTEGER,
			unchanged INTEGER,
			error TEXT,
			PRIMARY KEY (run_id, idx)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_group_results_tool ON group_results(tool_id);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, r *report.RunReport) (int64, error) {
	summary, err := json.Marshal(r.Summary)
	if err != nil {
		return 0, err
	}
	stages, err := json.Marshal(r.Stages)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (mode, artifacts_dir, started_at, finished_at, summary, stages)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.Mode, r.ArtifactsDir, r.StartedAt, r.GeneratedAt, string(summary), string(stages))
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO group_results (run_id, idx, tool_id, signal_type, signal_count, used_llm, plan_success,
			confidence, warnings, pr_attempted, pr_success, pr_url, pr_number, fixed, skipped, unchanged, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, g := range r.Groups {
		if _, err := stmt.ExecContext(ctx, runID, g.Index, g.ToolID, g.SignalType, g.SignalCount, g.UsedLLM, g.PlanSuccess,
			g.Confidence, g.Warnings, g.PRAttempted, g.PRSuccess, g.PRURL, g.PRNumber, g.Fixed, g.Skipped, g.Unchanged, g.Error); err != nil {
			return 0, fmt.Errorf("insert group %d: %w", g.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mode, artifacts_dir, started_at, finished_at, summary
		FROM runs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var summary []byte
		if err := rows.Scan(&rec.ID, &rec.Mode, &rec.ArtifactsDir, &rec.StartedAt, &rec.FinishedAt, &summary); err != nil {
			return nil, err
		}
		if len(summary) > 0 {
			if err := json.Unmarshal(summary, &rec.Summary); err != nil {
				return nil, fmt.Errorf("run %d: bad summary: %w", rec.ID, err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GroupsForRun(ctx context.Context, runID int64) ([]report.GroupMetric, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, tool_id, signal_type, signal_count, used_llm, plan_success, confidence, warnings,
			pr_attempted, pr_success, pr_url, pr_number, fixed, skipped, unchanged, error
		FROM group_results WHERE run_id = ? ORDER BY idx
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []report.GroupMetric
	for rows.Next() {
		var g report.GroupMetric
		if err := rows.Scan(&g.Index, &g.ToolID, &g.SignalType, &g.SignalCount, &g.UsedLLM, &g.PlanSuccess, &g.Confidence, &g.Warnings,
			&g.PRAttempted, &g.PRSuccess, &g.PRURL, &g.PRNumber, &g.Fixed, &g.Skipped, &g.Unchanged, &g.Error); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
