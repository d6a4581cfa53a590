package codectx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"
)

// FileSource reads repository files by repo-relative path.
type FileSource interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
}

// LocalSource reads from a checkout on disk.
type LocalSource struct {
	Root string
}

func (s LocalSource) ReadFile(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(s.resolve(path))
}

func (s LocalSource) resolve(path string) string {
	if filepath.IsAbs(path) || s.Root == "" {
		return path
	}
	return filepath.Join(s.Root, filepath.FromSlash(path))
}

type fileEntry struct {
	lines []string
	err   error
}

// fileCache holds each file read during one group build.
type fileCache map[string]*fileEntry

func (c fileCache) load(ctx context.Context, src FileSource, path string, maxBytes int64) *fileEntry {
	if e, ok := c[path]; ok {
		return e
	}
	e := &fileEntry{}
	data, err := src.ReadFile(ctx, path)
	switch {
	case err != nil:
		e.err = err
	case maxBytes > 0 && int64(len(data)) > maxBytes:
		e.err = fmt.Errorf("File too large to read safely (%d bytes)", len(data))
	case !utf8.Valid(data):
		e.err = fmt.Errorf("file is not valid UTF-8")
	default:
		e.lines = splitLines(string(data))
	}
	c[path] = e
	return e
}

func (c fileCache) lines(path string) ([]string, bool) {
	e, ok := c[path]
	if !ok || e.err != nil {
		return nil, false
	}
	return e.lines, true
}
