package codectx

import (
	"regexp"
	"strings"
)

// Block heuristics work on file lines without terminators, rows 1-based.
// They are indentation based and never parse the source.

func isBlank(line string) bool { return strings.TrimSpace(line) == "" }

func indentWidth(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

func isComment(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "#")
}

func isFuncDef(stripped string) bool {
	return strings.HasPrefix(stripped, "def ") || strings.HasPrefix(stripped, "async def ")
}

func isClassDef(stripped string) bool {
	return strings.HasPrefix(stripped, "class ")
}

// ImportBlock finds the top-of-file import block. Leading docstrings and
// comments are allowed; the block starts at row 1 and ends at the last
// import, blank or comment line before the first other statement. A
// parenthesized import runs to its closing bracket.
func ImportBlock(lines []string) (Range, bool) {
	end := 0
	seenImport := false
	inDocstring := false

	for row := 1; row <= len(lines); row++ {
		stripped := strings.TrimSpace(lines[row-1])

		if strings.HasPrefix(stripped, `"""`) || strings.HasPrefix(stripped, `'''`) {
			// a docstring that opens and closes on one line does not toggle
			if !closesOnSameLine(stripped) {
				inDocstring = !inDocstring
			}
			continue
		}
		if inDocstring {
			if strings.Contains(stripped, `"""`) || strings.Contains(stripped, `'''`) {
				inDocstring = false
			}
			continue
		}
		if stripped == "" || strings.HasPrefix(stripped, "#") {
			if seenImport {
				end = row
			}
			continue
		}
		if strings.HasPrefix(stripped, "import ") || strings.HasPrefix(stripped, "from ") {
			seenImport = true
			end = statementEnd(lines, row)
			row = end
			continue
		}
		break
	}

	if !seenImport {
		return Range{}, false
	}
	return Range{Start: 1, End: end}, true
}

func closesOnSameLine(stripped string) bool {
	quote := stripped[:3]
	return len(stripped) >= 6 && strings.Contains(stripped[3:], quote)
}

// EnclosingFunction finds the def enclosing row, with its decorators and the
// blank lines directly above them.
func EnclosingFunction(lines []string, row int) (Range, bool) {
	return enclosingBlock(lines, row, isFuncDef)
}

// EnclosingClass is EnclosingFunction keyed on class statements.
func EnclosingClass(lines []string, row int) (Range, bool) {
	return enclosingBlock(lines, row, isClassDef)
}

func enclosingBlock(lines []string, row int, isHeader func(string) bool) (Range, bool) {
	if row < 1 || row > len(lines) {
		return Range{}, false
	}
	// the nearest header may be a sibling nested block that ends above row,
	// so keep walking up until one actually contains it
	for r := row; r >= 1; r-- {
		if !isHeader(strings.TrimLeft(lines[r-1], " \t")) {
			continue
		}
		block := blockAt(lines, r)
		if block.End >= row {
			return block, true
		}
	}
	return Range{}, false
}

func blockAt(lines []string, headerRow int) Range {
	headerIndent := indentWidth(lines[headerRow-1])

	start := headerRow
	for r := headerRow - 1; r >= 1; r-- {
		line := lines[r-1]
		if isBlank(line) {
			start = r
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(line), "@") && indentWidth(line) == headerIndent {
			start = r
			continue
		}
		break
	}
	return Range{Start: start, End: blockEnd(lines, headerRow, headerIndent)}
}

// blockEnd walks down from a header until a non-blank, non-comment line is
// indented at or above the header. Closing brackets of a multi-line
// signature do not end the block.
func blockEnd(lines []string, headerRow, headerIndent int) int {
	end := headerRow
	for r := headerRow + 1; r <= len(lines); r++ {
		line := lines[r-1]
		if isBlank(line) || isComment(line) {
			end = r
			continue
		}
		stripped := strings.TrimLeft(line, " \t")
		if indentWidth(line) <= headerIndent && !strings.HasPrefix(stripped, ")") &&
			!strings.HasPrefix(stripped, "]") && !strings.HasPrefix(stripped, "}") {
			break
		}
		end = r
	}

	// trailing blank lines and outdented comments belong to what follows
	for end > headerRow {
		line := lines[end-1]
		if isBlank(line) || (isComment(line) && indentWidth(line) <= headerIndent) {
			end--
			continue
		}
		break
	}
	return end
}

// TryExceptBlock finds the try statement whose block contains row. The upward
// search stops at a def or class at or above the current indentation.
func TryExceptBlock(lines []string, row int) (Range, bool) {
	if row < 1 || row > len(lines) {
		return Range{}, false
	}

	cur := indentWidth(lines[row-1])
	tryRow := 0
	for r := row; r >= 1; r-- {
		line := lines[r-1]
		if isBlank(line) {
			continue
		}
		ind := indentWidth(line)
		stripped := strings.TrimSpace(line)
		if ind <= cur {
			if strings.HasPrefix(stripped, "try:") {
				tryRow = r
				break
			}
			if isFuncDef(stripped) || isClassDef(stripped) {
				return Range{}, false
			}
			cur = ind
		}
	}
	if tryRow == 0 {
		return Range{}, false
	}

	tryIndent := indentWidth(lines[tryRow-1])
	end := tryRow
	for r := tryRow + 1; r <= len(lines); r++ {
		line := lines[r-1]
		if isBlank(line) || isComment(line) {
			continue
		}
		ind := indentWidth(line)
		stripped := strings.TrimSpace(line)
		if ind > tryIndent {
			end = r
			continue
		}
		if ind == tryIndent && isTryClause(stripped) {
			end = r
			continue
		}
		break
	}
	if row > end {
		return Range{}, false
	}
	return Range{Start: tryRow, End: end}, true
}

func isTryClause(stripped string) bool {
	return strings.HasPrefix(stripped, "except") || strings.HasPrefix(stripped, "else:") ||
		strings.HasPrefix(stripped, "finally:")
}

// headerRow returns the def/class row inside a block, skipping decorators
// and leading blank lines.
func headerRow(lines []string, block Range) int {
	for r := block.Start; r <= block.End; r++ {
		stripped := strings.TrimLeft(lines[r-1], " \t")
		if isFuncDef(stripped) || isClassDef(stripped) {
			return r
		}
	}
	return block.Start
}

// SignatureEnd returns the row holding the colon that closes a def or class
// signature, following brackets across lines.
func SignatureEnd(lines []string, header int) int {
	depth := 0
	for r := header; r <= len(lines) && r < header+50; r++ {
		code := stripLineComment(lines[r-1])
		for _, ch := range code {
			switch ch {
			case '(', '[', '{':
				depth++
			case ')', ']', '}':
				depth--
			}
		}
		if depth <= 0 && strings.HasSuffix(strings.TrimSpace(code), ":") {
			return r
		}
	}
	return header
}

// stripLineComment drops a trailing # comment outside string literals.
func stripLineComment(line string) string {
	var quote rune
	for i, ch := range line {
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == '#':
			return line[:i]
		}
	}
	return line
}

// HeaderRegion is the signature of the def/class in block plus bodyRows rows.
func HeaderRegion(lines []string, block Range, bodyRows int) Range {
	header := headerRow(lines, block)
	end := min(SignatureEnd(lines, header)+bodyRows, block.End)
	return Range{Start: header, End: max(end, header)}
}

// ClassHeader trims a class block to everything before its first nested
// def, class or decorator.
func ClassHeader(lines []string, block Range) Range {
	header := headerRow(lines, block)
	classIndent := indentWidth(lines[header-1])
	sigEnd := SignatureEnd(lines, header)

	end := block.End
	for r := sigEnd + 1; r <= block.End; r++ {
		line := lines[r-1]
		if isBlank(line) || indentWidth(line) <= classIndent {
			continue
		}
		stripped := strings.TrimSpace(line)
		if isFuncDef(stripped) || isClassDef(stripped) || strings.HasPrefix(stripped, "@") {
			end = r - 1
			break
		}
	}
	end = trimTrailingBlank(lines, sigEnd, end)
	return Range{Start: block.Start, End: max(end, sigEnd)}
}

// FindFunction locates `def name(` anywhere in the file.
func FindFunction(lines []string, name string) (Range, bool) {
	re := regexp.MustCompile(`^\s*(?:async\s+)?def\s+` + regexp.QuoteMeta(name) + `\s*\(`)
	for i, line := range lines {
		if re.MatchString(line) {
			return EnclosingFunction(lines, i+1)
		}
	}
	return Range{}, false
}

// FindTypeDefinition locates a module-level class, alias or type statement
// defining name.
func FindTypeDefinition(lines []string, name string) (Range, bool) {
	q := regexp.QuoteMeta(name)
	classRe := regexp.MustCompile(`^class\s+` + q + `\b`)
	aliasRe := regexp.MustCompile(`^(?:type\s+)?` + q + `\b\s*(?::[^=]*)?=`)

	for i, line := range lines {
		row := i + 1
		if classRe.MatchString(line) {
			block, ok := EnclosingClass(lines, row)
			if !ok {
				return Range{Start: row, End: row}, true
			}
			return ClassHeader(lines, block), true
		}
		if aliasRe.MatchString(line) {
			return Range{Start: row, End: statementEnd(lines, row)}, true
		}
	}
	return Range{}, false
}

var moduleConstant = regexp.MustCompile(`^[A-Z][A-Z0-9_]*\s*(?::[^=]+)?=[^=]`)

const maxModuleConstants = 20

// ModuleConstants lists module-level UPPER_CASE assignments.
func ModuleConstants(lines []string) []Range {
	var out []Range
	for r := 1; r <= len(lines); r++ {
		if !moduleConstant.MatchString(lines[r-1]) {
			continue
		}
		end := statementEnd(lines, r)
		out = append(out, Range{Start: r, End: end})
		if len(out) == maxModuleConstants {
			break
		}
		r = end
	}
	return out
}

// statementEnd follows open brackets to the row that closes the statement.
func statementEnd(lines []string, row int) int {
	depth := 0
	for r := row; r <= len(lines); r++ {
		for _, ch := range stripLineComment(lines[r-1]) {
			switch ch {
			case '(', '[', '{':
				depth++
			case ')', ']', '}':
				depth--
			}
		}
		if depth <= 0 {
			return r
		}
	}
	return len(lines)
}

// LineWindow is rows [startRow-n, endRow+n] clipped to the file.
func LineWindow(total, startRow, endRow, n int) Range {
	if endRow < startRow {
		endRow = startRow
	}
	return Range{Start: max(1, startRow-n), End: min(total, endRow+n)}
}

func trimTrailingBlank(lines []string, floor, end int) int {
	for end > floor && isBlank(lines[end-1]) {
		end--
	}
	return end
}
