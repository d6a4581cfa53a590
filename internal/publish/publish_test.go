package publish

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigfix/internal/fixplan"
	"sigfix/internal/github"
	"sigfix/internal/signal"
)

type fakeHosting struct {
	files     map[string]string
	commits   map[string]string
	branches  []string
	prTitle   string
	prBody    string
	failOn    string
	readCalls int
}

func newFakeHosting(files map[string]string) *fakeHosting {
	return &fakeHosting{files: files, commits: map[string]string{}}
}

func (f *fakeHosting) GetRef(ctx context.Context, branch string) (string, error) {
	if f.failOn == "ref" {
		return "", errors.New("boom")
	}
	return "base-sha", nil
}

func (f *fakeHosting) CreateRef(ctx context.Context, branch, fromSHA string) error {
	if f.failOn == "branch" {
		return errors.New("boom")
	}
	f.branches = append(f.branches, branch)
	return nil
}

func (f *fakeHosting) ReadFile(ctx context.Context, path, ref string) (string, error) {
	f.readCalls++
	content, ok := f.files[path]
	if !ok {
		return "", github.ErrNotFound
	}
	return content, nil
}

func (f *fakeHosting) CommitFile(ctx context.Context, path, content, branch, message string) error {
	if f.failOn == "commit" {
		return errors.New("boom")
	}
	f.commits[path] = content
	return nil
}

func (f *fakeHosting) CreatePullRequest(ctx context.Context, branch, base, title, body string) (*github.PullRequest, error) {
	if f.failOn == "pr" {
		return nil, errors.New("boom")
	}
	f.prTitle, f.prBody = title, body
	return &github.PullRequest{URL: "https://example.test/pull/9", Number: 9}, nil
}

func fixedClock() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }

func replaceRow(path string, row int, content string, confidence float64) fixplan.FileEdit {
	return fixplan.FileEdit{
		FilePath:   path,
		Confidence: confidence,
		Reasoning:  "replace row",
		Edits: []fixplan.CodeEdit{{
			Type:    fixplan.EditReplace,
			Span:    signal.NewSpan(row, 1, row, signal.EndOfLine),
			Content: content,
		}},
	}
}

func testPlan(edits ...fixplan.FileEdit) *fixplan.FixPlan {
	return &fixplan.FixPlan{
		GroupToolID:     "ruff",
		GroupSignalType: signal.TypeLint,
		FileEdits:       edits,
		Summary:         "LLM fix",
		Confidence:      0.9,
		Warnings:        []string{"check edit 2"},
	}
}

func TestCreatePRCommitsChangedFiles(t *testing.T) {
	h := newFakeHosting(map[string]string{
		"a.py": "import os\nx = 1\n",
		"b.py": "y = 2\n",
	})
	p := New(h, "main", 0.7, WithClock(fixedClock))

	res := p.CreatePR(context.Background(), testPlan(
		replaceRow("a.py", 1, "import sys", 0.9),
		replaceRow("b.py", 1, "y = 2", 0.8),
		replaceRow("c.py", 1, "z = 3", 0.3),
	))

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "sigfix/ruff-lint-20260304-050607", res.BranchName)
	assert.Equal(t, []string{"sigfix/ruff-lint-20260304-050607"}, h.branches)
	assert.Equal(t, []string{"a.py"}, res.FilesChanged)
	assert.Equal(t, "import sys\nx = 1\n", h.commits["a.py"])
	assert.Equal(t, []string{"b.py"}, res.UnchangedFixes)
	require.Len(t, res.SkippedFixes, 1)
	assert.Equal(t, "c.py", res.SkippedFixes[0].FilePath)
	assert.Equal(t, 9, res.PRNumber)
	assert.Equal(t, "https://example.test/pull/9", res.PRURL)

	assert.Equal(t, "[sigfix] ruff: fix lint issues in 1 file(s)", h.prTitle)
	assert.Contains(t, h.prBody, "`a.py` (1 edit(s), confidence 0.90)")
	assert.Contains(t, h.prBody, "`c.py`: confidence 0.30 below threshold 0.70")
	assert.Contains(t, h.prBody, "check edit 2")
	assert.Equal(t, 2, h.readCalls, "files below threshold are never read")
}

func TestCreatePRMergesEditsForSamePath(t *testing.T) {
	h := newFakeHosting(map[string]string{"a.py": "one\ntwo\nthree\n"})
	p := New(h, "main", 0.5, WithClock(fixedClock))

	res := p.CreatePR(context.Background(), testPlan(
		replaceRow("a.py", 1, "ONE", 0.9),
		replaceRow("a.py", 3, "THREE", 0.6),
	))

	require.True(t, res.Success)
	assert.Equal(t, "ONE\ntwo\nTHREE\n", h.commits["a.py"])
	assert.Contains(t, h.prBody, "`a.py` (2 edit(s), confidence 0.60)")
}

func TestCreatePRNothingToCommit(t *testing.T) {
	t.Run("all below threshold", func(t *testing.T) {
		h := newFakeHosting(map[string]string{"a.py": "x\n"})
		res := New(h, "main", 0.95).CreatePR(context.Background(), testPlan(replaceRow("a.py", 1, "y", 0.5)))
		assert.True(t, res.Success)
		assert.Empty(t, res.PRURL)
		assert.Empty(t, h.branches)
		assert.Len(t, res.SkippedFixes, 1)
	})
	t.Run("identical content", func(t *testing.T) {
		h := newFakeHosting(map[string]string{"a.py": "x\n"})
		res := New(h, "main", 0.5).CreatePR(context.Background(), testPlan(replaceRow("a.py", 1, "x", 0.9)))
		assert.True(t, res.Success)
		assert.Empty(t, res.BranchName)
		assert.Equal(t, []string{"a.py"}, res.UnchangedFixes)
	})
	t.Run("empty plan", func(t *testing.T) {
		res := New(newFakeHosting(nil), "main", 0.5).CreatePR(context.Background(), &fixplan.FixPlan{})
		assert.False(t, res.Success)
		assert.Equal(t, "Fix plan has no file edits", res.Error)
	})
}

func TestCreatePRFailures(t *testing.T) {
	for _, step := range []string{"ref", "branch", "commit", "pr"} {
		t.Run(step, func(t *testing.T) {
			h := newFakeHosting(map[string]string{"a.py": "x\n"})
			h.failOn = step
			res := New(h, "main", 0.5).CreatePR(context.Background(), testPlan(replaceRow("a.py", 1, "y", 0.9)))
			assert.False(t, res.Success)
			assert.Contains(t, res.Error, "boom")
			assert.Empty(t, res.PRURL)
		})
	}

	t.Run("missing base file", func(t *testing.T) {
		h := newFakeHosting(map[string]string{})
		res := New(h, "main", 0.5).CreatePR(context.Background(), testPlan(replaceRow("gone.py", 1, "y", 0.9)))
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "read gone.py at main")
	})
}

func TestCreatePRRecordsUnappliedEdits(t *testing.T) {
	h := newFakeHosting(map[string]string{"a.py": "x\n"})
	fe := replaceRow("a.py", 1, "y", 0.9)
	fe.Edits = append(fe.Edits, fixplan.CodeEdit{Type: fixplan.EditReplace, Span: signal.NewSpan(40, 1, 40, 2), Content: "z"})

	res := New(h, "main", 0.5).CreatePR(context.Background(), testPlan(fe))
	require.True(t, res.Success)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "a.py: edit 1 not applied")
}

func TestLocalHosting(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", "m.py"), []byte("a = 1\n"), 0644))

	h := NewLocalHosting(root, out)
	res := New(h, "main", 0.5, WithClock(fixedClock)).CreatePR(context.Background(), testPlan(replaceRow("pkg/m.py", 1, "a = 2", 0.9)))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, res.PRNumber)

	branchDir := filepath.Join(out, "sigfix", "ruff-lint-20260304-050607")
	data, err := os.ReadFile(filepath.Join(branchDir, "pkg", "m.py"))
	require.NoError(t, err)
	assert.Equal(t, "a = 2\n", string(data))

	pr, err := os.ReadFile(filepath.Join(branchDir, "PULL_REQUEST.md"))
	require.NoError(t, err)
	assert.Contains(t, string(pr), "Base: main")

	original, err := os.ReadFile(filepath.Join(root, "pkg", "m.py"))
	require.NoError(t, err)
	assert.Equal(t, "a = 1\n", string(original))

	assert.Error(t, h.CreateRef(context.Background(), res.BranchName, "x"))
}
