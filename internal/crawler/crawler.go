package crawler

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"sigfix/internal/parser"
)

// Artifact is one tool-output file found in the artifacts directory.
type Artifact struct {
	Path string
	Name string
	Kind parser.Kind
}

// Crawler discovers CI tool artifacts.
type Crawler struct {
	ignored []string
}

// NewCrawler creates a new crawler instance.
func NewCrawler() *Crawler {
	return &Crawler{
		ignored: []string{".gitkeep", ".DS_Store"},
	}
}

// ScanArtifacts visits every regular file directly inside dir in name order.
// Subdirectories are not descended into. A missing directory is an error.
func (c *Crawler) ScanArtifacts(dir string, onArtifact func(Artifact)) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("artifacts directory not found: %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("artifacts path is not a directory: %s", dir)
	}

	root := filepath.Clean(dir)
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			return filepath.SkipDir
		}
		if !d.Type().IsRegular() {
			return nil
		}
		for _, ign := range c.ignored {
			if d.Name() == ign {
				return nil
			}
		}

		onArtifact(Artifact{
			Path: path,
			Name: d.Name(),
			Kind: parser.Route(d.Name()),
		})
		return nil
	})
}
