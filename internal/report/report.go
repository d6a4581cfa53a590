// Package report collects run metrics and writes the run report and debug
// dumps.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type StageMetric struct {
	Name       string             `json:"name"`
	Status     string             `json:"status"`
	StartedAt  string             `json:"started_at"`
	FinishedAt string             `json:"finished_at"`
	DurationMS int64              `json:"duration_ms"`
	Counters   map[string]float64 `json:"counters,omitempty"`
	Notes      []string           `json:"notes,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// GroupMetric is the outcome of one signal group.
type GroupMetric struct {
	Index       int     `json:"index"`
	ToolID      string  `json:"tool_id"`
	SignalType  string  `json:"signal_type"`
	SignalCount int     `json:"signal_count"`
	UsedLLM     bool    `json:"used_llm"`
	PlanSuccess bool    `json:"plan_success"`
	Confidence  float64 `json:"confidence"`
	Warnings    int     `json:"warnings"`
	PRAttempted bool    `json:"pr_attempted"`
	PRSuccess   bool    `json:"pr_success"`
	PRURL       string  `json:"pr_url,omitempty"`
	PRNumber    int     `json:"pr_number,omitempty"`
	Fixed       int     `json:"fixed"`
	Skipped     int     `json:"skipped"`
	Unchanged   int     `json:"unchanged"`
	Error       string  `json:"error,omitempty"`
}

type Summary struct {
	ArtifactsFound  int            `json:"artifacts_found"`
	ArtifactsParsed int            `json:"artifacts_parsed"`
	ArtifactsFailed int            `json:"artifacts_failed"`
	SignalsTotal    int            `json:"signals_total"`
	SignalsSkipped  int            `json:"signals_skipped"`
	SignalsByType   map[string]int `json:"signals_by_type"`
	Groups          int            `json:"groups"`
	PlansCreated    int            `json:"plans_created"`
	PlansFailed     int            `json:"plans_failed"`
	PRsCreated      int            `json:"prs_created"`
	PRsFailed       int            `json:"prs_failed"`
	FilesFixed      int            `json:"files_fixed"`
	FilesSkipped    int            `json:"files_skipped"`
	FilesUnchanged  int            `json:"files_unchanged"`
	FailedStages    int            `json:"failed_stages"`
	DurationMS      int64          `json:"duration_ms"`
}

type RunReport struct {
	Version      string        `json:"version"`
	Mode         string        `json:"mode"`
	ArtifactsDir string        `json:"artifacts_dir"`
	StartedAt    string        `json:"started_at"`
	GeneratedAt  string        `json:"generated_at"`
	Stages       []StageMetric `json:"stages"`
	Groups       []GroupMetric `json:"groups"`
	Summary      Summary       `json:"summary"`

	started time.Time
}

type StageHandle struct {
	name    string
	started time.Time
}

func NewRunReport(mode, artifactsDir string) *RunReport {
	now := time.Now().UTC()
	return &RunReport{
		Version:      "v1",
		Mode:         mode,
		ArtifactsDir: artifactsDir,
		StartedAt:    now.Format(time.RFC3339),
		GeneratedAt:  now.Format(time.RFC3339),
		Stages:       []StageMetric{},
		Groups:       []GroupMetric{},
		Summary:      Summary{SignalsByType: map[string]int{}},
		started:      now,
	}
}

func (r *RunReport) BeginStage(name string) StageHandle {
	return StageHandle{name: strings.TrimSpace(name), started: time.Now().UTC()}
}

func (r *RunReport) EndStage(h StageHandle, status string, counters map[string]float64, notes []string, err error) {
	if r == nil || h.name == "" {
		return
	}
	if strings.TrimSpace(status) == "" {
		status = "ok"
	}
	finished := time.Now().UTC()
	m := StageMetric{
		Name:       h.name,
		Status:     status,
		StartedAt:  h.started.Format(time.RFC3339Nano),
		FinishedAt: finished.Format(time.RFC3339Nano),
		DurationMS: finished.Sub(h.started).Milliseconds(),
		Counters:   cleanCounters(counters),
		Notes:      cleanNotes(notes),
	}
	if err != nil {
		m.Error = err.Error()
		if status == "ok" {
			m.Status = "error"
		}
	}
	r.Stages = append(r.Stages, m)
}

func (r *RunReport) AddGroup(m GroupMetric) {
	if r == nil {
		return
	}
	r.Groups = append(r.Groups, m)
}

// Finalize derives the group-level and stage-level summary counts.
func (r *RunReport) Finalize() {
	if r == nil {
		return
	}
	now := time.Now().UTC()
	r.GeneratedAt = now.Format(time.RFC3339)
	if !r.started.IsZero() {
		r.Summary.DurationMS = now.Sub(r.started).Milliseconds()
	}

	sort.SliceStable(r.Groups, func(i, j int) bool { return r.Groups[i].Index < r.Groups[j].Index })
	s := &r.Summary
	s.Groups = len(r.Groups)
	s.PlansCreated, s.PlansFailed, s.PRsCreated, s.PRsFailed = 0, 0, 0, 0
	s.FilesFixed, s.FilesSkipped, s.FilesUnchanged = 0, 0, 0
	for _, g := range r.Groups {
		if g.PlanSuccess {
			s.PlansCreated++
		} else {
			s.PlansFailed++
		}
		if g.PRAttempted {
			if g.PRSuccess {
				s.PRsCreated++
			} else {
				s.PRsFailed++
			}
		}
		s.FilesFixed += g.Fixed
		s.FilesSkipped += g.Skipped
		s.FilesUnchanged += g.Unchanged
	}

	s.FailedStages = 0
	for _, st := range r.Stages {
		if st.Status != "ok" {
			s.FailedStages++
		}
	}
}

// SaveJSON finalizes the report and writes it as indented JSON.
func (r *RunReport) SaveJSON(path string) error {
	if r == nil {
		return nil
	}
	r.Finalize()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0644)
}

// SaveText finalizes the report and writes the plain-text run report.
func (r *RunReport) SaveText(path string) error {
	if r == nil {
		return nil
	}
	r.Finalize()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(r.Text()), 0644)
}

func (r *RunReport) Text() string {
	s := r.Summary
	var sb strings.Builder
	line := strings.Repeat("=", 60)
	sb.WriteString(line + "\n")
	sb.WriteString("SIGFIX RUN REPORT\n")
	sb.WriteString(line + "\n")
	fmt.Fprintf(&sb, "Mode:            %s\n", r.Mode)
	fmt.Fprintf(&sb, "Artifacts dir:   %s\n", r.ArtifactsDir)
	fmt.Fprintf(&sb, "Started:         %s\n", r.StartedAt)
	fmt.Fprintf(&sb, "Finished:        %s\n", r.GeneratedAt)
	fmt.Fprintf(&sb, "Duration:        %.1fs\n", float64(s.DurationMS)/1000)

	sb.WriteString("\nARTIFACTS\n")
	fmt.Fprintf(&sb, "  found:         %d\n", s.ArtifactsFound)
	fmt.Fprintf(&sb, "  parsed:        %d\n", s.ArtifactsParsed)
	fmt.Fprintf(&sb, "  failed:        %d\n", s.ArtifactsFailed)

	sb.WriteString("\nSIGNALS\n")
	fmt.Fprintf(&sb, "  total:         %d\n", s.SignalsTotal)
	fmt.Fprintf(&sb, "  skipped:       %d\n", s.SignalsSkipped)
	types := make([]string, 0, len(s.SignalsByType))
	for t := range s.SignalsByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(&sb, "  %-14s %d\n", strings.ToLower(t)+":", s.SignalsByType[t])
	}

	sb.WriteString("\nFIX PLANS\n")
	fmt.Fprintf(&sb, "  groups:        %d\n", s.Groups)
	fmt.Fprintf(&sb, "  created:       %d\n", s.PlansCreated)
	fmt.Fprintf(&sb, "  failed:        %d\n", s.PlansFailed)

	sb.WriteString("\nPULL REQUESTS\n")
	fmt.Fprintf(&sb, "  created:       %d\n", s.PRsCreated)
	fmt.Fprintf(&sb, "  failed:        %d\n", s.PRsFailed)
	fmt.Fprintf(&sb, "  files fixed:   %d\n", s.FilesFixed)
	fmt.Fprintf(&sb, "  files skipped: %d\n", s.FilesSkipped)
	fmt.Fprintf(&sb, "  unchanged:     %d\n", s.FilesUnchanged)

	if len(r.Groups) > 0 {
		sb.WriteString("\nGROUPS\n")
		for _, g := range r.Groups {
			status := "ok"
			if !g.PlanSuccess || (g.PRAttempted && !g.PRSuccess) {
				status = "FAILED"
			}
			fmt.Fprintf(&sb, "  #%d %s/%s signals=%d llm=%t confidence=%.2f %s", g.Index, g.ToolID, g.SignalType,
				g.SignalCount, g.UsedLLM, g.Confidence, status)
			if g.PRURL != "" {
				fmt.Fprintf(&sb, " %s", g.PRURL)
			}
			if g.Error != "" {
				fmt.Fprintf(&sb, " error=%q", g.Error)
			}
			sb.WriteString("\n")
		}
	}

	if len(r.Stages) > 0 {
		sb.WriteString("\nSTAGES\n")
		for _, st := range r.Stages {
			fmt.Fprintf(&sb, "  %-10s %-6s %6dms", st.Name, st.Status, st.DurationMS)
			if st.Error != "" {
				fmt.Fprintf(&sb, " %s", st.Error)
			}
			sb.WriteString("\n")
		}
	}
	sb.WriteString(line + "\n")
	return sb.String()
}

func cleanCounters(raw map[string]float64) map[string]float64 {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		out[key] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func cleanNotes(raw []string) []string {
	if len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, n := range raw {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
