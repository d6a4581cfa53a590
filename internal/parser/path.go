package parser

import (
	"path/filepath"
	"strings"
)

// ToRepoRelative converts a tool-reported path to a repo-relative one when
// it sits under repoRoot. Anything else only loses its leading separator so
// the result can be used as a hosting API path segment.
func ToRepoRelative(path, repoRoot string) string {
	p := filepath.Clean(path)
	if repoRoot != "" {
		root := filepath.Clean(repoRoot)
		if filepath.IsAbs(p) == filepath.IsAbs(root) {
			if rel, err := filepath.Rel(root, p); err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				return filepath.ToSlash(rel)
			}
		}
	}
	return strings.TrimLeft(filepath.ToSlash(p), "/")
}
