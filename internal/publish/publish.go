// Package publish turns a FixPlan into a pull request: it filters low
// confidence file edits, applies the rest to the base branch content and
// commits every changed file to a fresh branch.
package publish

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"sigfix/internal/apply"
	"sigfix/internal/fixplan"
	"sigfix/internal/github"
	"sigfix/internal/logx"
)

const DefaultBranchPrefix = "sigfix"

// Hosting is the code-hosting surface the publisher needs. *github.Client
// and *LocalHosting implement it.
type Hosting interface {
	GetRef(ctx context.Context, branch string) (string, error)
	CreateRef(ctx context.Context, branch, fromSHA string) error
	ReadFile(ctx context.Context, path, ref string) (string, error)
	CommitFile(ctx context.Context, path, content, branch, message string) error
	CreatePullRequest(ctx context.Context, branch, base, title, body string) (*github.PullRequest, error)
}

type SkippedFix struct {
	FilePath   string  `json:"file_path"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Result mirrors one publication attempt. Success with an empty PRURL means
// there was nothing to commit.
type Result struct {
	Success        bool         `json:"success"`
	PRURL          string       `json:"pr_url,omitempty"`
	PRNumber       int          `json:"pr_number,omitempty"`
	BranchName     string       `json:"branch_name,omitempty"`
	FilesChanged   []string     `json:"files_changed"`
	SkippedFixes   []SkippedFix `json:"skipped_fixes,omitempty"`
	UnchangedFixes []string     `json:"unchanged_fixes,omitempty"`
	Warnings       []string     `json:"warnings,omitempty"`
	Error          string       `json:"error,omitempty"`
}

type Publisher struct {
	hosting      Hosting
	baseBranch   string
	threshold    float64
	branchPrefix string
	now          func() time.Time
}

type Option func(*Publisher)

func WithBranchPrefix(prefix string) Option {
	return func(p *Publisher) { p.branchPrefix = strings.Trim(prefix, "/") }
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

func New(hosting Hosting, baseBranch string, threshold float64, opts ...Option) *Publisher {
	p := &Publisher{
		hosting:      hosting,
		baseBranch:   baseBranch,
		threshold:    threshold,
		branchPrefix: DefaultBranchPrefix,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type pendingFile struct {
	path       string
	edits      []fixplan.CodeEdit
	reasoning  []string
	confidence float64
	original   string
	updated    string
}

// CreatePR publishes plan. Any hosting failure aborts this plan only and is
// reported on the result.
func (p *Publisher) CreatePR(ctx context.Context, plan *fixplan.FixPlan) *Result {
	res := &Result{FilesChanged: []string{}}
	if plan == nil || len(plan.FileEdits) == 0 {
		res.Error = "Fix plan has no file edits"
		return res
	}

	files := p.selectFiles(plan, res)
	if len(files) == 0 {
		res.Success = true
		return res
	}

	var changed []*pendingFile
	for _, f := range files {
		original, err := p.hosting.ReadFile(ctx, f.path, p.baseBranch)
		if err != nil {
			res.Error = fmt.Sprintf("read %s at %s: %v", f.path, p.baseBranch, err)
			return res
		}
		applied := apply.ApplyEdits(original, f.edits)
		for _, s := range applied.Skipped {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: edit %d not applied: %s", f.path, s.Index, s.Reason))
		}
		if !applied.Changed(original) {
			res.UnchangedFixes = append(res.UnchangedFixes, f.path)
			continue
		}
		f.original = original
		f.updated = applied.Content
		changed = append(changed, f)
	}
	if len(changed) == 0 {
		res.Success = true
		return res
	}

	res.BranchName = p.branchName(plan)
	if err := p.publish(ctx, plan, res, changed); err != nil {
		res.Error = err.Error()
		return res
	}
	res.Success = true
	return res
}

// selectFiles drops file edits under the threshold and merges the rest by
// path in first-appearance order.
func (p *Publisher) selectFiles(plan *fixplan.FixPlan, res *Result) []*pendingFile {
	var files []*pendingFile
	byPath := map[string]*pendingFile{}
	for _, fe := range plan.FileEdits {
		if fe.Confidence < p.threshold {
			res.SkippedFixes = append(res.SkippedFixes, SkippedFix{
				FilePath:   fe.FilePath,
				Confidence: fe.Confidence,
				Reason:     fmt.Sprintf("confidence %.2f below threshold %.2f", fe.Confidence, p.threshold),
			})
			continue
		}
		if len(fe.Edits) == 0 {
			continue
		}
		f, ok := byPath[fe.FilePath]
		if !ok {
			f = &pendingFile{path: fe.FilePath, confidence: fe.Confidence}
			byPath[fe.FilePath] = f
			files = append(files, f)
		}
		f.edits = append(f.edits, fe.Edits...)
		if fe.Reasoning != "" {
			f.reasoning = append(f.reasoning, fe.Reasoning)
		}
		f.confidence = min(f.confidence, fe.Confidence)
	}
	return files
}

func (p *Publisher) publish(ctx context.Context, plan *fixplan.FixPlan, res *Result, files []*pendingFile) error {
	sha, err := p.hosting.GetRef(ctx, p.baseBranch)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", p.baseBranch, err)
	}
	if err := p.hosting.CreateRef(ctx, res.BranchName, sha); err != nil {
		return fmt.Errorf("create branch %s: %w", res.BranchName, err)
	}
	logx.Debugf("created branch %s from %s@%s", res.BranchName, p.baseBranch, shortSHA(sha))

	for _, f := range files {
		msg := fmt.Sprintf("fix(%s): resolve %s signals in %s", plan.GroupToolID, plan.GroupSignalType, f.path)
		if err := p.hosting.CommitFile(ctx, f.path, f.updated, res.BranchName, msg); err != nil {
			return fmt.Errorf("commit %s: %w", f.path, err)
		}
		res.FilesChanged = append(res.FilesChanged, f.path)
	}

	pr, err := p.hosting.CreatePullRequest(ctx, res.BranchName, p.baseBranch, Title(plan, len(files)), p.body(plan, res, files))
	if err != nil {
		return fmt.Errorf("open pull request: %w", err)
	}
	res.PRURL = pr.URL
	res.PRNumber = pr.Number
	return nil
}

var branchUnsafe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func (p *Publisher) branchName(plan *fixplan.FixPlan) string {
	tool := branchUnsafe.ReplaceAllString(plan.GroupToolID, "-")
	if tool == "" {
		tool = "unknown"
	}
	kind := branchUnsafe.ReplaceAllString(string(plan.GroupSignalType), "-")
	return fmt.Sprintf("%s/%s-%s-%s", p.branchPrefix, tool, kind, p.now().Format("20060102-150405"))
}

func Title(plan *fixplan.FixPlan, files int) string {
	return fmt.Sprintf("[sigfix] %s: fix %s issues in %d file(s)", plan.GroupToolID, plan.GroupSignalType, files)
}

func (p *Publisher) body(plan *fixplan.FixPlan, res *Result, files []*pendingFile) string {
	var sb strings.Builder
	sb.WriteString("## Summary\n\n")
	sb.WriteString(plan.Summary)
	fmt.Fprintf(&sb, "\n\nTool: `%s`  Signal type: `%s`  Plan confidence: %.2f\n", plan.GroupToolID, plan.GroupSignalType, plan.Confidence)

	sb.WriteString("\n## Changes\n\n")
	for _, f := range files {
		fmt.Fprintf(&sb, "- `%s` (%d edit(s), confidence %.2f)\n", f.path, len(f.edits), f.confidence)
		for _, r := range f.reasoning {
			fmt.Fprintf(&sb, "  - %s\n", oneLine(r))
		}
	}
	if len(res.SkippedFixes) > 0 {
		sb.WriteString("\n## Skipped (below confidence threshold)\n\n")
		for _, s := range res.SkippedFixes {
			fmt.Fprintf(&sb, "- `%s`: %s\n", s.FilePath, s.Reason)
		}
	}
	if len(res.UnchangedFixes) > 0 {
		sb.WriteString("\n## Unchanged\n\n")
		for _, path := range res.UnchangedFixes {
			fmt.Fprintf(&sb, "- `%s`\n", path)
		}
	}
	warnings := append(append([]string{}, plan.Warnings...), res.Warnings...)
	if len(warnings) > 0 {
		sb.WriteString("\n## Warnings for review\n\n")
		for _, w := range warnings {
			fmt.Fprintf(&sb, "- %s\n", oneLine(w))
		}
	}
	return sb.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
