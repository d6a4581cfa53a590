package apply

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigfix/internal/fixplan"
	"sigfix/internal/signal"
)

const sample = "import os\nimport sys\n\n\ndef f():\n    return 1\n"

func replace(sr, sc, er, ec int, content string) fixplan.CodeEdit {
	return fixplan.CodeEdit{Type: fixplan.EditReplace, Span: signal.NewSpan(sr, sc, er, ec), Content: content}
}

func TestApplyEdits(t *testing.T) {
	tests := []struct {
		name    string
		content string
		edits   []fixplan.CodeEdit
		want    string
		applied int
		skipped []int
	}{
		{
			name:    "whole-line replace to end of line",
			content: sample,
			edits:   []fixplan.CodeEdit{replace(5, 1, 6, signal.EndOfLine, "def f() -> int:\n    return 1")},
			want:    "import os\nimport sys\n\n\ndef f() -> int:\n    return 1\n",
			applied: 1,
		},
		{
			name:    "delete a line using next-row start",
			content: sample,
			edits:   []fixplan.CodeEdit{replace(1, 1, 2, 1, "")},
			want:    "import sys\n\n\ndef f():\n    return 1\n",
			applied: 1,
		},
		{
			name:    "bottom-up keeps earlier spans valid",
			content: sample,
			edits: []fixplan.CodeEdit{
				replace(1, 1, 2, 1, ""),
				replace(6, 12, 6, 13, "2\n    # two"),
			},
			want:    "import sys\n\n\ndef f():\n    return 2\n    # two\n",
			applied: 2,
		},
		{
			name:    "insert then replace at same point keeps list order",
			content: "a\nb\n",
			edits: []fixplan.CodeEdit{
				{Type: fixplan.EditInsert, Span: signal.NewSpan(2, 1, 2, 1), Content: "x\n"},
				{Type: fixplan.EditInsert, Span: signal.NewSpan(2, 1, 2, 1), Content: "y\n"},
			},
			want:    "a\nx\ny\nb\n",
			applied: 2,
		},
		{
			name:    "overlapping edit is skipped",
			content: sample,
			edits: []fixplan.CodeEdit{
				replace(5, 1, 6, signal.EndOfLine, "pass"),
				replace(6, 5, 6, 11, "yield"),
			},
			want:    "import os\nimport sys\n\n\npass\n",
			applied: 1,
			skipped: []int{1},
		},
		{
			name:    "adjacent edits do not conflict",
			content: "abcdef\n",
			edits:   []fixplan.CodeEdit{replace(1, 1, 1, 4, "X"), replace(1, 4, 1, 7, "Y")},
			want:    "XY\n",
			applied: 2,
		},
		{
			name:    "out of range and inverted spans are skipped",
			content: sample,
			edits:   []fixplan.CodeEdit{replace(40, 1, 41, 1, "x"), replace(3, 1, 2, 1, "x")},
			want:    sample,
			skipped: []int{0, 1},
		},
		{
			name:    "append at end of file",
			content: "a\n",
			edits:   []fixplan.CodeEdit{{Type: fixplan.EditInsert, Span: signal.NewSpan(2, 1, 2, 1), Content: "b\n"}},
			want:    "a\nb\n",
			applied: 1,
		},
		{
			name:    "crlf end of line",
			content: "a = 1\r\nb = 2\r\n",
			edits:   []fixplan.CodeEdit{replace(1, 1, 1, signal.EndOfLine, "a = 3")},
			want:    "a = 3\r\nb = 2\r\n",
			applied: 1,
		},
		{
			name:    "columns count characters",
			content: "s = 'héllo'\n",
			edits:   []fixplan.CodeEdit{replace(1, 7, 1, 8, "e")},
			want:    "s = 'hello'\n",
			applied: 1,
		},
		{
			name:    "delete edit ignores content",
			content: "abc\n",
			edits:   []fixplan.CodeEdit{{Type: fixplan.EditDelete, Span: signal.NewSpan(1, 2, 1, 3), Content: "zzz"}},
			want:    "ac\n",
			applied: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ApplyEdits(tt.content, tt.edits)
			assert.Equal(t, tt.want, res.Content)
			assert.Equal(t, tt.applied, res.Applied)
			var skipped []int
			for _, s := range res.Skipped {
				skipped = append(skipped, s.Index)
				assert.NotEmpty(t, s.Reason)
			}
			assert.Equal(t, tt.skipped, skipped)
		})
	}
}

func TestChanged(t *testing.T) {
	res := ApplyEdits("x = 1\n", []fixplan.CodeEdit{replace(1, 1, 1, signal.EndOfLine, "x = 1")})
	require.Equal(t, 1, res.Applied)
	assert.False(t, res.Changed("x = 1\n"))
}
