package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"sigfix/internal/github"
)

// LocalHosting reads the base content from a working copy and writes each
// branch into OutDir instead of pushing. It backs dry runs.
type LocalHosting struct {
	Root   string
	OutDir string

	mu       sync.Mutex
	branches map[string]string
	nextPR   int
}

func NewLocalHosting(root, outDir string) *LocalHosting {
	return &LocalHosting{Root: root, OutDir: outDir, branches: map[string]string{}}
}

func (h *LocalHosting) GetRef(ctx context.Context, branch string) (string, error) {
	return "local-" + branch, nil
}

func (h *LocalHosting) CreateRef(ctx context.Context, branch, fromSHA string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.branches == nil {
		h.branches = map[string]string{}
	}
	if _, ok := h.branches[branch]; ok {
		return fmt.Errorf("branch %s already exists", branch)
	}
	h.branches[branch] = fromSHA
	return os.MkdirAll(h.branchDir(branch), 0755)
}

func (h *LocalHosting) ReadFile(ctx context.Context, path, ref string) (string, error) {
	data, err := os.ReadFile(filepath.Join(h.Root, filepath.FromSlash(path)))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (h *LocalHosting) CommitFile(ctx context.Context, path, content, branch, message string) error {
	if !h.hasBranch(branch) {
		return fmt.Errorf("unknown branch %s", branch)
	}
	target := filepath.Join(h.branchDir(branch), filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	return os.WriteFile(target, []byte(content), 0644)
}

// CreatePullRequest writes the title and body next to the committed files.
func (h *LocalHosting) CreatePullRequest(ctx context.Context, branch, base, title, body string) (*github.PullRequest, error) {
	if !h.hasBranch(branch) {
		return nil, fmt.Errorf("unknown branch %s", branch)
	}
	target := filepath.Join(h.branchDir(branch), "PULL_REQUEST.md")
	text := fmt.Sprintf("# %s\n\nBase: %s\nHead: %s\n\n%s", title, base, branch, body)
	if err := os.WriteFile(target, []byte(text), 0644); err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.nextPR++
	n := h.nextPR
	h.mu.Unlock()

	abs, err := filepath.Abs(target)
	if err != nil {
		abs = target
	}
	return &github.PullRequest{URL: "file://" + filepath.ToSlash(abs), Number: n}, nil
}

func (h *LocalHosting) hasBranch(branch string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.branches[branch]
	return ok
}

func (h *LocalHosting) branchDir(branch string) string {
	return filepath.Join(h.OutDir, filepath.FromSlash(branch))
}
