package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"sigfix/internal/signal"
)

// Kind names the parser an artifact file is routed to.
type Kind string

const (
	KindNone       Kind = ""
	KindRuffLint   Kind = "ruff-lint"
	KindRuffFormat Kind = "ruff-format"
	KindMypy       Kind = "mypy"
	KindPydocstyle Kind = "pydocstyle"
	KindBandit     Kind = "bandit"
)

// Route picks a parser from the artifact's file name. KindNone means skip.
func Route(filename string) Kind {
	name := strings.ToLower(filepath.Base(filename))

	if strings.Contains(name, "rf-") || strings.Contains(name, "ruff-format") ||
		(strings.Contains(name, "ruff") && strings.Contains(name, "format")) {
		// the formatter also leaves a JSON status file next to the diff
		if filepath.Ext(name) == ".txt" {
			return KindRuffFormat
		}
		return KindNone
	}
	if strings.Contains(name, "rl-") || (strings.Contains(name, "ruff") && strings.Contains(name, "lint")) {
		return KindRuffLint
	}
	if strings.Contains(name, "mp-") || strings.Contains(name, "mypy") || strings.Contains(name, "my-py") {
		return KindMypy
	}
	if strings.Contains(name, "pds-") || strings.Contains(name, "pydocstyle") {
		return KindPydocstyle
	}
	if strings.Contains(name, "bd-") || strings.Contains(name, "bandit") {
		return KindBandit
	}
	return KindNone
}

// Parse runs the parser for kind over content.
func Parse(kind Kind, content []byte, opts Options) ([]signal.Signal, error) {
	switch kind {
	case KindRuffLint:
		return ParseRuffLint(content, opts)
	case KindRuffFormat:
		return ParseRuffFormatDiff(string(content), opts)
	case KindMypy:
		return ParseMypy(string(content), opts), nil
	case KindPydocstyle:
		return ParsePydocstyle(string(content), opts), nil
	case KindBandit:
		return ParseBandit(content, opts)
	}
	return nil, fmt.Errorf("no parser for artifact kind %q", kind)
}
