package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

const TimestampLayout = "20060102_150405"

// Dumper writes debug JSON files into one directory. A nil Dumper does
// nothing, so callers need not check whether debugging is on.
type Dumper struct {
	dir   string
	stamp string
}

func NewDumper(dir string, now time.Time) *Dumper {
	return &Dumper{dir: dir, stamp: now.Format(TimestampLayout)}
}

func (d *Dumper) Dir() string {
	if d == nil {
		return ""
	}
	return d.dir
}

// Sub returns a dumper for a subdirectory sharing the same timestamp.
func (d *Dumper) Sub(name string) *Dumper {
	if d == nil {
		return nil
	}
	return &Dumper{dir: filepath.Join(d.dir, name), stamp: d.stamp}
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName sanitizes name and appends the run timestamp.
func (d *Dumper) FileName(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "-") + "-" + d.stamp + ".json"
}

// Dump writes v to <dir>/<name>-<timestamp>.json and returns the path.
func (d *Dumper) Dump(name string, v any) (string, error) {
	if d == nil {
		return "", nil
	}
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(d.dir, d.FileName(name))
	return path, os.WriteFile(path, append(data, '\n'), 0644)
}
