// Package parser turns raw linter, formatter, type-checker and scanner output
// into signals. Malformed records are logged and skipped; only an unreadable
// document is an error.
package parser

// Options are shared by every parser.
type Options struct {
	// RepoRoot turns absolute CI paths into repo-relative ones when set.
	RepoRoot string
	// FormatPerHunk emits one format signal per diff hunk instead of one per file.
	FormatPerHunk bool
}
