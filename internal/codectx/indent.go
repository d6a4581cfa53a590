package codectx

import "strings"

func leadingWhitespace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

// BaseIndent is the longest whitespace prefix shared by every non-blank line.
func BaseIndent(lines []string) string {
	base := ""
	first := true
	for _, line := range lines {
		if isBlank(line) {
			continue
		}
		lead := leadingWhitespace(line)
		if first {
			base = lead
			first = false
			continue
		}
		n := 0
		for n < len(base) && n < len(lead) && base[n] == lead[n] {
			n++
		}
		base = base[:n]
		if base == "" {
			break
		}
	}
	return base
}

// StripBaseIndent removes base from every non-blank line. Blank lines are
// returned unchanged.
func StripBaseIndent(lines []string, base string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		if isBlank(line) {
			out[i] = line
			continue
		}
		out[i] = strings.TrimPrefix(line, base)
	}
	return out
}

// RestoreIndent prepends base to every non-blank line of text.
func RestoreIndent(text, base string) string {
	if base == "" {
		return text
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if !isBlank(line) {
			lines[i] = base + line
		}
	}
	return strings.Join(lines, "\n")
}

// splitLines splits file content into rows without terminators. A final
// newline does not produce an extra empty row; carriage returns are dropped.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func joinRows(lines []string, r Range) string {
	return strings.Join(lines[r.Start-1:r.End], "\n")
}

func newFileSnippet(path string, lines []string, r Range) *FileSnippet {
	return &FileSnippet{FilePath: path, StartRow: r.Start, EndRow: r.End, Text: joinRows(lines, r)}
}

// newEditSnippet builds the editable excerpt for rows r of the file.
func newEditSnippet(path string, lines []string, r Range, errorRow int) *EditSnippet {
	rows := lines[r.Start-1 : r.End]
	base := BaseIndent(rows)
	inSnippet := 0
	if r.Contains(errorRow) {
		inSnippet = errorRow - r.Start + 1
	}
	return &EditSnippet{
		FilePath:           path,
		StartRow:           r.Start,
		EndRow:             r.End,
		Text:               strings.Join(StripBaseIndent(rows, base), "\n"),
		OriginalText:       strings.Join(rows, "\n"),
		ErrorLine:          errorRow,
		ErrorLineInSnippet: inSnippet,
		SnippetLength:      r.Len(),
		BaseIndent:         base,
	}
}
