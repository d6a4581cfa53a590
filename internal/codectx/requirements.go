package codectx

import (
	"regexp"
	"strings"
)

// Requirements lists extra context a signal needs beyond the standard blocks.
type Requirements struct {
	ClassDefinition     bool     `json:"class_definition,omitempty"`
	TypeAliases         []string `json:"type_aliases,omitempty"`
	RelatedFunctionName string   `json:"related_function,omitempty"`
	ModuleConstants     bool     `json:"module_constants,omitempty"`
}

func (r Requirements) Any() bool {
	return r.ClassDefinition || len(r.TypeAliases) > 0 || r.RelatedFunctionName != "" || r.ModuleConstants
}

var (
	capitalizedWord = regexp.MustCompile(`\b[A-Z]\w+`)
	calledFunction  = regexp.MustCompile(`(?:for|to) "([A-Za-z_][\w.]*)"`)

	typeStopWords = map[string]bool{
		"Argument": true, "None": true, "Optional": true, "Union": true, "List": true, "Dict": true,
		"Tuple": true, "Type": true, "Missing": true, "Expected": true, "Incompatible": true,
	}
)

const maxTypeAliases = 5

// ContextRequirements derives extra context needs from the rule code and the
// tool message. The first matching rule wins.
func ContextRequirements(ruleCode, message string) Requirements {
	switch ruleCode {
	case "attr-defined", "override", "assignment":
		if strings.Contains(strings.ToLower(message), "self.") {
			return Requirements{ClassDefinition: true}
		}
	}

	switch ruleCode {
	case "arg-type", "return-value", "assignment":
		if names := customTypeNames(message); len(names) > 0 {
			return Requirements{TypeAliases: names}
		}
	case "C901", "F821":
		return Requirements{ModuleConstants: true}
	case "call-arg":
		if m := calledFunction.FindAllStringSubmatch(message, -1); len(m) > 0 {
			name := m[len(m)-1][1]
			if i := strings.LastIndex(name, "."); i >= 0 {
				name = name[i+1:]
			}
			return Requirements{RelatedFunctionName: name}
		}
	}
	return Requirements{}
}

func customTypeNames(message string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range capitalizedWord.FindAllString(message, -1) {
		if typeStopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
		if len(out) == maxTypeAliases {
			break
		}
	}
	return out
}

// Selection says which read-only blocks to gather for one signal.
type Selection struct {
	Imports           bool
	EnclosingFunction bool
	ClassHeader       bool
	TryExcept         bool
	Requirements      Requirements
}

// SelectContext picks the context blocks for a signal from its tool, rule
// code and message alone.
func (t *EditWindowTable) SelectContext(toolID, ruleCode, message string) Selection {
	spec := t.Lookup(toolID, ruleCode)
	switch spec.Type {
	case WindowImports:
		return Selection{Imports: true}
	case WindowTryExcept:
		return Selection{TryExcept: true}
	case WindowClass:
		if spec.HeaderOnly {
			return Selection{ClassHeader: true}
		}
	case WindowFunction:
		if spec.HeaderOnly {
			return Selection{EnclosingFunction: true}
		}
	}
	return Selection{
		Imports:           true,
		EnclosingFunction: true,
		Requirements:      ContextRequirements(ruleCode, message),
	}
}
