package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderFullReport(t *testing.T) {
	e := &ScriptError{
		Exception:   "Error: boom",
		Resource:    "_default_name.js",
		Line:        3,
		StartColumn: 2,
		EndColumn:   6,
		SourceLine:  "  boom();",
		Stack:       "Error: boom\n    at _default_name.js:3:3",
	}
	want := "Uncaught exception: Error: boom\n" +
		"at _default_name.js:3:2\n" +
		"    boom();\n" +
		"    ^^^^\n" +
		"Stack tree: \n" +
		"Error: boom\n    at _default_name.js:3:3"
	assert.Equal(t, want, e.Render())
}

func TestRenderOmitsMissingPieces(t *testing.T) {
	tests := []struct {
		name string
		err  *ScriptError
		want string
	}{
		{
			name: "exception only",
			err:  NewScriptError("x"),
			want: "Uncaught exception: x",
		},
		{
			name: "empty exception still has prefix",
			err:  NewScriptError(""),
			want: "Uncaught exception: ",
		},
		{
			name: "resource without position",
			err:  &ScriptError{Exception: "x", Resource: "a.js", Line: -1, StartColumn: -1, EndColumn: -1},
			want: "Uncaught exception: x\nat a.js",
		},
		{
			name: "line without columns",
			err:  &ScriptError{Exception: "x", Resource: "a.js", Line: 7, StartColumn: -1, EndColumn: -1, SourceLine: "foo"},
			want: "Uncaught exception: x\nat a.js:7\n  foo",
		},
		{
			name: "start column without end has no carets",
			err:  &ScriptError{Exception: "x", Resource: "a.js", Line: 1, StartColumn: 4, EndColumn: -1},
			want: "Uncaught exception: x\nat a.js:1:4",
		},
		{
			name: "location needs a resource",
			err:  &ScriptError{Exception: "x", Line: 1, StartColumn: 0, EndColumn: 1, SourceLine: "y"},
			want: "Uncaught exception: x",
		},
		{
			name: "stack without location",
			err:  &ScriptError{Exception: "x", Line: -1, StartColumn: -1, EndColumn: -1, Stack: "s"},
			want: "Uncaught exception: x\nStack tree: \ns",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Render())
		})
	}
}

func TestSourceLineAt(t *testing.T) {
	src := "a\r\nbb\nccc"
	assert.Equal(t, "a", SourceLineAt(src, 1))
	assert.Equal(t, "bb", SourceLineAt(src, 2))
	assert.Equal(t, "ccc", SourceLineAt(src, 3))
	assert.Equal(t, "", SourceLineAt(src, 4))
	assert.Equal(t, "", SourceLineAt(src, 0))
}
