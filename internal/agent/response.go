package agent

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoFixBlocks is returned when a reply contains no fix block at all.
var ErrNoFixBlocks = errors.New("no fix blocks found in LLM response")

const defaultBlockConfidence = 0.5

// FixBlock is one parsed "===== FIX FOR" section of a reply.
type FixBlock struct {
	FilePath   string  `json:"file_path"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
	FixedCode  string  `json:"fixed_code"`
	HasCode    bool    `json:"has_code"`
	Warnings   string  `json:"warnings,omitempty"`
}

var (
	blockHeader = regexp.MustCompile(`^=+\s*FIX FOR:\s*(.*?)\s*=+$`)
	blockFooter = regexp.MustCompile(`^=+\s*END FIX\s*=+$`)
)

type parseState int

const (
	stateOutside parseState = iota
	stateFields
	stateReasoning
	stateWarnings
	stateAwaitFence
	stateCode
)

// ParseFixBlocks reads the delimited reply format. Text outside blocks is
// ignored. A code fence opens with any ``` line and closes with a bare ```.
func ParseFixBlocks(text string) ([]FixBlock, error) {
	var blocks []FixBlock
	var cur *FixBlock
	var code []string
	state := stateOutside

	finish := func() {
		if cur == nil {
			return
		}
		cur.Reasoning = strings.TrimSpace(cur.Reasoning)
		cur.Warnings = normalizeWarnings(cur.Warnings)
		blocks = append(blocks, *cur)
		cur = nil
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSuffix(raw, "\r")
		trimmed := strings.TrimSpace(line)

		if state == stateCode {
			if trimmed == "```" {
				cur.FixedCode = strings.Join(code, "\n")
				cur.HasCode = true
				code = nil
				state = stateFields
				continue
			}
			code = append(code, line)
			continue
		}

		if m := blockHeader.FindStringSubmatch(trimmed); m != nil {
			finish()
			cur = &FixBlock{FilePath: m[1], Confidence: defaultBlockConfidence}
			state = stateFields
			continue
		}
		if cur == nil {
			continue
		}
		if blockFooter.MatchString(trimmed) {
			finish()
			state = stateOutside
			continue
		}

		switch {
		case hasField(trimmed, "CONFIDENCE"):
			cur.Confidence = parseConfidence(fieldValue(trimmed, "CONFIDENCE"))
			state = stateFields
		case hasField(trimmed, "REASONING"):
			cur.Reasoning = fieldValue(trimmed, "REASONING")
			state = stateReasoning
		case hasField(trimmed, "WARNINGS"):
			cur.Warnings = fieldValue(trimmed, "WARNINGS")
			state = stateWarnings
		case hasField(trimmed, "FIXED_CODE"):
			state = stateAwaitFence
			if rest := fieldValue(trimmed, "FIXED_CODE"); strings.HasPrefix(rest, "```") {
				state = stateCode
			}
		case strings.HasPrefix(trimmed, "```") && !cur.HasCode:
			state = stateCode
		case state == stateReasoning:
			cur.Reasoning += "\n" + line
		case state == stateWarnings:
			cur.Warnings += "\n" + line
		}
	}
	// a reply cut off after its last field still yields the block; one cut
	// off inside the code fence does not
	if cur != nil && state != stateCode {
		finish()
	}

	if len(blocks) == 0 {
		return nil, ErrNoFixBlocks
	}
	return blocks, nil
}

func hasField(line, name string) bool {
	return strings.HasPrefix(strings.ToUpper(line), name+":")
}

func fieldValue(line, name string) string {
	return strings.TrimSpace(line[len(name)+1:])
}

func parseConfidence(v string) float64 {
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return defaultBlockConfidence
	}
	c, err := strconv.ParseFloat(strings.TrimSuffix(fields[0], ","), 64)
	if err != nil {
		return defaultBlockConfidence
	}
	return min(max(c, 0), 1)
}

func normalizeWarnings(w string) string {
	w = strings.TrimSpace(w)
	switch strings.ToLower(w) {
	case "", "none", "none.", "n/a":
		return ""
	}
	return w
}
