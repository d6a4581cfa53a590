// Package prioritizer batches signals into ordered groups for fix generation.
package prioritizer

import (
	"fmt"
	"sort"
	"strings"

	"sigfix/internal/signal"
)

const DefaultMaxGroupSize = 3

// Lower runs first. Types missing here sort after everything else.
var typePriority = map[signal.Type]int{
	signal.TypeSecurity:  0,
	signal.TypeTypeCheck: 1,
	signal.TypeLint:      2,
	signal.TypeFormat:    3,
	signal.TypeDocstring: 4,
}

const unknownPriority = 99

// DefaultSkipRules are rule codes that cannot be fixed safely from one file:
// mypy's override needs the parent class, E999 is a syntax error.
var DefaultSkipRules = []string{"override", "E999"}

// ToolResolver names the tool that produced a signal.
type ToolResolver func(signal.Signal) string

// DefaultToolResolver infers the tool from the signal type, docs URL and fix.
func DefaultToolResolver(s signal.Signal) string {
	if s.Type == signal.TypeFormat {
		return "ruff-format"
	}
	if strings.Contains(s.DocsURL, "docs.astral.sh/ruff") || s.Fix != nil {
		// ruff's flake8-bandit rules keep their own bucket
		if s.Type == signal.TypeSecurity {
			return "ruff-security"
		}
		return "ruff"
	}
	if strings.Contains(s.DocsURL, "mypy.readthedocs.io") {
		return "mypy"
	}
	switch s.Type {
	case signal.TypeTypeCheck:
		return "mypy"
	case signal.TypeDocstring:
		return "pydocstyle"
	case signal.TypeSecurity:
		return "bandit"
	case signal.TypeLint:
		return "ruff"
	}
	return "unknown"
}

type Prioritizer struct {
	maxGroupSize int
	resolve      ToolResolver
	skipRules    map[string]bool
}

type Option func(*Prioritizer)

func WithToolResolver(r ToolResolver) Option {
	return func(p *Prioritizer) { p.resolve = r }
}

// WithSkipRules replaces the default rule-code exclusion list.
func WithSkipRules(codes ...string) Option {
	return func(p *Prioritizer) {
		p.skipRules = make(map[string]bool, len(codes))
		for _, c := range codes {
			p.skipRules[c] = true
		}
	}
}

func New(maxGroupSize int, opts ...Option) (*Prioritizer, error) {
	if maxGroupSize < 1 {
		return nil, fmt.Errorf("max group size must be >= 1, got %d", maxGroupSize)
	}
	p := &Prioritizer{maxGroupSize: maxGroupSize, resolve: DefaultToolResolver}
	WithSkipRules(DefaultSkipRules...)(p)
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ShouldSkip reports whether the signal's rule is excluded from fixing.
func (p *Prioritizer) ShouldSkip(s signal.Signal) bool {
	return p.skipRules[s.RuleCode]
}

// FilterSkipped splits signals into those to fix and those excluded by rule.
func (p *Prioritizer) FilterSkipped(signals []signal.Signal) (kept, skipped []signal.Signal) {
	for _, s := range signals {
		if p.ShouldSkip(s) {
			skipped = append(skipped, s)
			continue
		}
		kept = append(kept, s)
	}
	return kept, skipped
}

// ToolID resolves the tool for one signal.
func (p *Prioritizer) ToolID(s signal.Signal) string {
	return p.resolve(s)
}

// Prioritize packs signals into groups. Non-format signals are bucketed by
// tool and type in first-seen order and chunked without reordering; format
// signals get one group per file. Groups are then stably sorted by type priority.
func (p *Prioritizer) Prioritize(signals []signal.Signal) []signal.Group {
	if len(signals) == 0 {
		return nil
	}

	var formats, others []signal.Signal
	for _, s := range signals {
		if s.Type == signal.TypeFormat {
			formats = append(formats, s)
		} else {
			others = append(others, s)
		}
	}

	groups := append(p.groupByTool(others), p.groupFormatByFile(formats)...)
	sort.SliceStable(groups, func(i, j int) bool {
		return priorityOf(groups[i].Type) < priorityOf(groups[j].Type)
	})
	return groups
}

func (p *Prioritizer) groupByTool(signals []signal.Signal) []signal.Group {
	type bucketKey struct {
		tool string
		typ  signal.Type
	}
	buckets := make(map[bucketKey][]signal.Signal)
	var order []bucketKey
	for _, s := range signals {
		key := bucketKey{tool: p.resolve(s), typ: s.Type}
		if _, ok := buckets[key]; !ok {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], s)
	}

	var groups []signal.Group
	for _, key := range order {
		bucket := buckets[key]
		for i := 0; i < len(bucket); i += p.maxGroupSize {
			end := min(i+p.maxGroupSize, len(bucket))
			groups = append(groups, signal.Group{
				ToolID:  key.tool,
				Type:    key.typ,
				Signals: bucket[i:end:end],
			})
		}
	}
	return groups
}

func (p *Prioritizer) groupFormatByFile(signals []signal.Signal) []signal.Group {
	byFile := make(map[string][]signal.Signal)
	var order []string
	for _, s := range signals {
		if _, ok := byFile[s.FilePath]; !ok {
			order = append(order, s.FilePath)
		}
		byFile[s.FilePath] = append(byFile[s.FilePath], s)
	}

	groups := make([]signal.Group, 0, len(order))
	for _, path := range order {
		fileSignals := byFile[path]
		groups = append(groups, signal.Group{
			ToolID:  p.resolve(fileSignals[0]),
			Type:    signal.TypeFormat,
			Signals: fileSignals,
		})
	}
	return groups
}

func priorityOf(t signal.Type) int {
	if p, ok := typePriority[t]; ok {
		return p
	}
	return unknownPriority
}
