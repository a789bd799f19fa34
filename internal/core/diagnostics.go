package core

import (
	"strconv"
	"strings"
)

// ScriptError carries what an engine reports about a failed compile or run.
// Numeric fields are -1 when unknown; string fields are empty when unknown.
// Columns are zero-based, EndColumn is exclusive.
type ScriptError struct {
	Exception   string
	Resource    string
	Line        int
	StartColumn int
	EndColumn   int
	SourceLine  string
	Stack       string
}

// NewScriptError returns a ScriptError with every location field unknown.
func NewScriptError(exception string) *ScriptError {
	return &ScriptError{
		Exception:   exception,
		Line:        -1,
		StartColumn: -1,
		EndColumn:   -1,
	}
}

func (e *ScriptError) Error() string {
	return e.Exception
}

// Render builds the "Uncaught exception" report. Pieces the engine did not
// provide are left out.
func (e *ScriptError) Render() string {
	var b strings.Builder
	b.WriteString("Uncaught exception: ")
	b.WriteString(e.Exception)

	if e.Resource != "" {
		b.WriteString("\nat ")
		b.WriteString(e.Resource)
		if e.Line >= 0 {
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(e.Line))
		}
		if e.StartColumn >= 0 {
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(e.StartColumn))
		}
		if e.SourceLine != "" {
			b.WriteString("\n  ")
			b.WriteString(e.SourceLine)
		}
		if e.StartColumn >= 0 && e.EndColumn >= 0 {
			b.WriteString("\n  ")
			b.WriteString(strings.Repeat(" ", e.StartColumn))
			if e.EndColumn > e.StartColumn {
				b.WriteString(strings.Repeat("^", e.EndColumn-e.StartColumn))
			}
		}
	}

	if e.Stack != "" {
		b.WriteString("\nStack tree: \n")
		b.WriteString(e.Stack)
	}
	return b.String()
}

// SourceLineAt returns line (one-based) of src, or "" when out of range.
func SourceLineAt(src string, line int) string {
	if line < 1 {
		return ""
	}
	for i := 1; ; i++ {
		end := strings.IndexByte(src, '\n')
		if i == line {
			if end < 0 {
				return strings.TrimSuffix(src, "\r")
			}
			return strings.TrimSuffix(src[:end], "\r")
		}
		if end < 0 {
			return ""
		}
		src = src[end+1:]
	}
}
