//go:build v8

package v8engine

import (
	"errors"
	"testing"
	"time"

	"github.com/cryguy/sandbox/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T, tmpl *core.Template) (*Engine, core.Context) {
	t.Helper()
	if tmpl == nil {
		tmpl = core.NewTemplate()
	}
	e := NewEngine(core.EngineConfig{})
	e.Lock()
	defer e.Unlock()
	ctx, err := e.NewContext(tmpl, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		e.Lock()
		defer e.Unlock()
		ctx.Close()
		_ = e.Close()
	})
	return e, ctx
}

func run(t *testing.T, ctx core.Context, name, src string) (core.Value, error) {
	t.Helper()
	s, err := ctx.Compile(name, src)
	if err != nil {
		return nil, err
	}
	return ctx.Run(s)
}

func TestRunKinds(t *testing.T) {
	_, ctx := newTestContext(t, nil)
	tests := []struct {
		src  string
		kind core.ValueKind
		str  string
	}{
		{"undefined", core.KindUndefined, "undefined"},
		{"null", core.KindNull, "null"},
		{"true", core.KindBoolean, "true"},
		{"1 + 2", core.KindNumber, "3"},
		{"'hi'", core.KindString, "hi"},
		{"10n", core.KindBigInt, "10"},
		{"Symbol('s')", core.KindSymbol, "Symbol(s)"},
		{"(function f() {})", core.KindFunction, "function f() {}"},
		{"({a: 1})", core.KindObject, "[object Object]"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			v, err := run(t, ctx, "kinds.js", tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, v.Kind())
			assert.Equal(t, tt.str, v.String())
		})
	}
}

func TestValueJSON(t *testing.T) {
	_, ctx := newTestContext(t, nil)

	v, err := run(t, ctx, "json.js", "JSON.stringify = function() { return 'hijacked' }; ({a: [1, 'x']})")
	require.NoError(t, err)
	s, err := v.JSON()
	require.NoError(t, err)
	assert.Equal(t, `{"a":[1,"x"]}`, s)

	v, err = run(t, ctx, "json.js", "(function() {})")
	require.NoError(t, err)
	_, err = v.JSON()
	assert.True(t, errors.Is(err, core.ErrNotSerializable))
}

func TestCompileError(t *testing.T) {
	_, ctx := newTestContext(t, nil)
	_, err := ctx.Compile("bad.js", "var a = 1;\nvar = 2;")
	var se *core.ScriptError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Exception, "SyntaxError")
	assert.Equal(t, "bad.js", se.Resource)
	assert.Equal(t, 2, se.Line)
	assert.Equal(t, "var = 2;", se.SourceLine)
}

func TestRuntimeErrorLocation(t *testing.T) {
	_, ctx := newTestContext(t, nil)
	_, err := run(t, ctx, "boom.js", "var x = 1;\nthrow new TypeError('bad thing');")
	var se *core.ScriptError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "TypeError: bad thing", se.Exception)
	assert.Equal(t, "boom.js", se.Resource)
	assert.Equal(t, 2, se.Line)
	assert.Contains(t, se.Stack, "boom.js")
}

func TestStaleInterrupt(t *testing.T) {
	e, ctx := newTestContext(t, nil)
	finished := e.ClearInterrupt()
	_, err := run(t, ctx, "first.js", "1")
	require.NoError(t, err)

	e.ClearInterrupt()
	e.Interrupt(finished)
	v, err := run(t, ctx, "second.js", "40 + 2")
	require.NoError(t, err)
	assert.Equal(t, "42", v.String())
}

func TestThrowNull(t *testing.T) {
	_, ctx := newTestContext(t, nil)
	tests := []struct {
		src  string
		null bool
	}{
		{"throw null", true},
		{"(function () { throw null })()", true},
		{"throw 'null'", false},
		{"var s = 'null'; throw s", false},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := run(t, ctx, "null.js", tt.src)
			if tt.null {
				assert.True(t, errors.Is(err, core.ErrNullException))
				return
			}
			var se *core.ScriptError
			require.True(t, errors.As(err, &se), "%v", err)
			assert.Equal(t, "null", se.Exception)
			assert.Equal(t, "null.js", se.Resource)
		})
	}
}

func TestLocateFrame(t *testing.T) {
	c := &v8Context{sources: map[string]string{"p.js": "a();\nb();\n  throw new Error('x');"}}
	tests := []struct {
		stack string
		line  int
		col   int
	}{
		{"Error: x\n    at p.js:3:3", 3, 2},
		{"Error: x\n    at f (lib.js:1:1)\n    at eval (p.js:3:9)", 3, 8},
		{"Error: x\n    at __sbx_run (<harness>:6:16)", -1, -1},
	}
	for _, tt := range tests {
		se := core.NewScriptError("Error: x")
		c.locateFrame(se, "p.js", tt.stack)
		assert.Equal(t, "p.js", se.Resource)
		assert.Equal(t, tt.line, se.Line)
		assert.Equal(t, tt.col, se.StartColumn)
		if tt.line == 3 {
			assert.Equal(t, "  throw new Error('x');", se.SourceLine)
		}
	}
}

func TestInterrupt(t *testing.T) {
	e, ctx := newTestContext(t, nil)
	s, err := ctx.Compile("loop.js", "while (true) {}")
	require.NoError(t, err)

	done := make(chan error, 1)
	tokens := make(chan uint64, 1)
	go func() {
		e.Lock()
		defer e.Unlock()
		tokens <- e.ClearInterrupt()
		_, err := ctx.Run(s)
		done <- err
	}()

	token := <-tokens
	time.Sleep(20 * time.Millisecond)
	e.Interrupt(token)
	select {
	case err := <-done:
		var se *core.ScriptError
		require.True(t, errors.As(err, &se))
		assert.Contains(t, se.Exception, "terminated")
	case <-time.After(5 * time.Second):
		t.Fatal("script was not terminated")
	}

	e.Lock()
	defer e.Unlock()
	e.ClearInterrupt()
	v, err := run(t, ctx, "after.js", "40 + 2")
	require.NoError(t, err, "the context stays usable after a termination")
	assert.Equal(t, "42", v.String())
}

func TestNatives(t *testing.T) {
	tmpl := core.NewTemplate()
	tmpl.Method("host", "echo", func(c *core.Call) (any, error) {
		return c.Arg(0), nil
	})
	tmpl.Method("host", "list", func(c *core.Call) (any, error) {
		return []string{"a", "b"}, nil
	})
	tmpl.Method("host", "fail", func(c *core.Call) (any, error) {
		return nil, errors.New("host failure")
	})
	tmpl.Func("evalIn", func(c *core.Call) (any, error) {
		src, _ := c.StringArg(0)
		return c.Run("nested.js", src)
	})

	_, ctx := newTestContext(t, tmpl)

	v, err := run(t, ctx, "n.js", "host.echo('ab') + host.echo('cd')")
	require.NoError(t, err)
	assert.Equal(t, "abcd", v.String())

	v, err = run(t, ctx, "n.js", "host.list().join(',') + ':' + Array.isArray(host.list())")
	require.NoError(t, err)
	assert.Equal(t, "a,b:true", v.String())

	v, err = run(t, ctx, "n.js", "try { host.fail() } catch (e) { (e instanceof Error) + ' ' + e.message }")
	require.NoError(t, err)
	assert.Equal(t, "true host failure", v.String())

	v, err = run(t, ctx, "n.js", "var seen = 5; evalIn('seen * 2')")
	require.NoError(t, err)
	assert.Equal(t, "10", v.String())

	v, err = run(t, ctx, "n.js", "try { evalIn('throw new RangeError(\"inner\")') } catch (e) { e.name + ':' + e.message }")
	require.NoError(t, err)
	assert.Equal(t, "RangeError:inner", v.String())

	v, err = run(t, ctx, "n.js", "try { evalIn('throw null') } catch (e) { String(e) }")
	require.NoError(t, err)
	assert.Equal(t, "null", v.String())
}
