package codectx

import (
	"fmt"
	"strings"
)

// WindowSpec says how to carve the editable region for one rule.
type WindowSpec struct {
	Type WindowType `json:"type" yaml:"type"`
	// Lines is the ± row count for line windows.
	Lines int `json:"lines,omitempty" yaml:"lines"`
	// Fallback is the ± row count used when a structural window cannot be found.
	Fallback int `json:"fallback,omitempty" yaml:"fallback"`
	// HeaderOnly limits a function/class window to its signature plus a few
	// body rows; the full block is still sent as read-only context.
	HeaderOnly bool `json:"header_only,omitempty" yaml:"header_only"`
}

// WindowRule binds a spec to rule codes, optionally prefixed "tool:" to
// restrict it to one tool.
type WindowRule struct {
	Rules []string `yaml:"rules"`
	WindowSpec `yaml:",inline"`
}

// EditWindowTable maps rule codes to edit windows.
type EditWindowTable struct {
	rules           map[string]WindowSpec
	Default         WindowSpec
	MinContextLines int
	MinEditLines    int
}

func DefaultEditWindowTable() *EditWindowTable {
	t := &EditWindowTable{
		rules:           make(map[string]WindowSpec),
		Default:         WindowSpec{Type: WindowLines, Lines: 7},
		MinContextLines: 10,
		MinEditLines:    2,
	}
	for _, r := range defaultWindowRules {
		t.set(r)
	}
	return t
}

var defaultWindowRules = []WindowRule{
	// ruff
	{Rules: []string{"F401", "I001", "E402"}, WindowSpec: WindowSpec{Type: WindowImports, Fallback: 3}},
	{Rules: []string{"E722"}, WindowSpec: WindowSpec{Type: WindowTryExcept, Fallback: 5}},
	{Rules: []string{"F823"}, WindowSpec: WindowSpec{Type: WindowFunction, Fallback: 7}},
	{Rules: []string{"F541", "F901", "E711", "E712", "E721", "B007", "B011", "B016"}, WindowSpec: WindowSpec{Type: WindowLines, Lines: 1}},
	{Rules: []string{"F601", "F841", "E731", "B006", "B015"}, WindowSpec: WindowSpec{Type: WindowLines, Lines: 3}},
	{Rules: []string{"F811", "F821", "B002"}, WindowSpec: WindowSpec{Type: WindowLines, Lines: 5}},
	// mypy
	{Rules: []string{"union-attr", "return-value"}, WindowSpec: WindowSpec{Type: WindowFunction, Fallback: 7}},
	{Rules: []string{"arg-type", "call-arg", "attr-defined"}, WindowSpec: WindowSpec{Type: WindowLines, Lines: 7}},
	{Rules: []string{"assignment", "index", "operator", "name-defined"}, WindowSpec: WindowSpec{Type: WindowLines, Lines: 5}},
	// pydocstyle
	{Rules: []string{"D101"}, WindowSpec: WindowSpec{Type: WindowClass, Fallback: 3, HeaderOnly: true}},
	{Rules: []string{"D102", "D103"}, WindowSpec: WindowSpec{Type: WindowFunction, Fallback: 3, HeaderOnly: true}},
}

func (t *EditWindowTable) set(r WindowRule) {
	for _, code := range r.Rules {
		t.rules[strings.TrimSpace(code)] = r.WindowSpec
	}
}

// Override adds or replaces rules, typically from the YAML config.
func (t *EditWindowTable) Override(rules []WindowRule) error {
	for i, r := range rules {
		switch r.Type {
		case WindowLines:
			if r.Lines < 0 {
				return fmt.Errorf("edit window rule %d: lines must be >= 0", i)
			}
		case WindowImports, WindowFunction, WindowClass, WindowTryExcept:
		default:
			return fmt.Errorf("edit window rule %d: unknown window type %q", i, r.Type)
		}
		if len(r.Rules) == 0 {
			return fmt.Errorf("edit window rule %d: no rule codes", i)
		}
		t.set(r)
	}
	return nil
}

// Lookup resolves the spec for a rule, preferring a "tool:rule" entry.
func (t *EditWindowTable) Lookup(toolID, ruleCode string) WindowSpec {
	if spec, ok := t.rules[toolID+":"+ruleCode]; ok {
		return spec
	}
	if spec, ok := t.rules[ruleCode]; ok {
		return spec
	}
	return t.Default
}

// fallbackLines is the line window used when a structural window fails.
func (s WindowSpec) fallbackLines(def int) int {
	if s.Type == WindowLines {
		return s.Lines
	}
	if s.Fallback > 0 {
		return s.Fallback
	}
	return def
}
