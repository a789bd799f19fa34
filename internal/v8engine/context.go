//go:build v8

package v8engine

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cryguy/sandbox/internal/core"
	v8 "github.com/tommie/v8go"
)

const (
	terminatedPrefix = "ExecutionTerminated:"
	harnessName      = "<harness>"
)

// harnessJS installs __sbx_run, which evaluates a program in global scope.
// A thrown null is returned as the marker object the script evaluates to,
// any other exception is rethrown.
const harnessJS = `(function (g) {
  var indirect = eval, thrownNull = {};
  Object.defineProperty(g, '__sbx_run', {
    value: function (src, name) {
      try {
        return indirect(src + '\n//# sourceURL=' + name);
      } catch (e) {
        if (e === null) return thrownNull;
        throw e;
      }
    },
    writable: false, enumerable: false, configurable: false
  });
  return thrownNull;
})(globalThis)`

type v8Context struct {
	engine    *Engine
	ctx       *v8.Context
	handle    core.Handle
	run       *v8.Function
	nullThrow *v8.Value
	sources   map[string]string
	closed    bool
}

type script struct {
	ctx  *v8Context
	name string
	src  string
}

func (s *script) Name() string { return s.name }

// NewContext creates a context in the engine's isolate, installs the
// template's natives as function templates, then runs its preludes.
func (e *Engine) NewContext(tmpl *core.Template, h core.Handle) (core.Context, error) {
	c := &v8Context{
		engine:  e,
		ctx:     v8.NewContext(e.iso),
		handle:  h,
		sources: make(map[string]string),
	}
	global := c.ctx.Global()
	if err := c.installHarness(); err != nil {
		c.ctx.Close()
		return nil, err
	}

	objects := make(map[string]*v8.Object)
	for _, name := range tmpl.Objects() {
		obj, err := v8.NewObjectTemplate(e.iso).NewInstance(c.ctx)
		if err == nil {
			err = global.Set(name, obj)
		}
		if err != nil {
			c.ctx.Close()
			return nil, fmt.Errorf("installing %s: %w", name, err)
		}
		objects[name] = obj
	}
	for _, n := range tmpl.Natives() {
		fn := v8.NewFunctionTemplate(e.iso, c.native(n)).GetFunction(c.ctx)
		var err error
		if n.Object == "" {
			err = global.Set(n.Name, fn)
		} else {
			err = objects[n.Object].Set(n.Name, fn)
		}
		if err != nil {
			c.ctx.Close()
			return nil, fmt.Errorf("installing %s: %w", n.Path(), err)
		}
	}

	for _, p := range tmpl.Preludes() {
		s, err := c.Compile(p.Name, p.Source)
		if err == nil {
			_, err = c.Run(s)
		}
		if err != nil {
			c.ctx.Close()
			return nil, fmt.Errorf("prelude %s: %w", p.Name, err)
		}
	}
	return c, nil
}

func (c *v8Context) installHarness() error {
	marker, err := c.ctx.RunScript(harnessJS, harnessName)
	if err != nil {
		return fmt.Errorf("installing harness: %w", err)
	}
	run, err := c.ctx.Global().Get("__sbx_run")
	if err == nil {
		c.run, err = run.AsFunction()
	}
	if err != nil {
		return fmt.Errorf("installing harness: %w", err)
	}
	c.nullThrow = marker
	return nil
}

// Compile reports syntax errors with V8's own location. The source is kept
// and evaluated by the harness on Run.
func (c *v8Context) Compile(name, src string) (core.Script, error) {
	if c.closed {
		return nil, core.ErrContextClosed
	}
	if _, err := c.engine.iso.CompileUnboundScript(src, name, v8.CompileOptions{}); err != nil {
		return nil, c.scriptError(name, src, err)
	}
	c.sources[name] = src
	return &script{ctx: c, name: name, src: src}, nil
}

func (c *v8Context) Run(s core.Script) (core.Value, error) {
	if c.closed {
		return nil, core.ErrContextClosed
	}
	sc, ok := s.(*script)
	if !ok || sc.ctx != c {
		return nil, fmt.Errorf("script %q was not compiled by this context", s.Name())
	}

	if !c.engine.enter() {
		se := core.NewScriptError(terminatedPrefix + " script execution has been terminated")
		se.Resource = sc.name
		return nil, se
	}
	v, err := c.eval(sc.name, sc.src)
	c.engine.leave(c.ctx)
	if err != nil {
		return nil, err
	}
	return c.wrap(v), nil
}

// eval runs src through the harness.
func (c *v8Context) eval(name, src string) (*v8.Value, error) {
	iso := c.engine.iso
	srcVal, err := v8.NewValue(iso, src)
	if err != nil {
		return nil, err
	}
	nameVal, err := v8.NewValue(iso, name)
	if err != nil {
		return nil, err
	}
	v, err := c.run.Call(c.ctx.Global(), srcVal, nameVal)
	if err != nil {
		return nil, c.scriptError(name, src, err)
	}
	if v.SameValue(c.nullThrow) {
		return nil, core.ErrNullException
	}
	return v, nil
}

func (c *v8Context) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.sources = nil
	c.ctx.Close()
}

// native adapts n to a V8 callback. Errors are thrown with ThrowException;
// a nested run that threw null throws null again.
func (c *v8Context) native(n core.Native) v8.FunctionCallback {
	return func(info *v8.FunctionCallbackInfo) *v8.Value {
		iso := c.engine.iso
		in := info.Args()
		args := make([]core.Value, len(in))
		for i, a := range in {
			args[i] = c.wrap(a)
		}

		res, err := n.Fn(core.NewCall(c.handle, args, nested{c}))
		if err != nil {
			return iso.ThrowException(c.throwable(err))
		}
		v, err := c.toValue(res)
		if err != nil {
			return iso.ThrowException(v8.NewTypeError(iso, fmt.Sprintf("%s: %v", n.Path(), err)).Value)
		}
		return v
	}
}

// throwable rebuilds a Go error as a script exception of the same type.
func (c *v8Context) throwable(err error) *v8.Value {
	iso := c.engine.iso
	if errors.Is(err, core.ErrNullException) {
		return v8.Null(iso)
	}
	msg := err.Error()
	var se *core.ScriptError
	if errors.As(err, &se) {
		msg = se.Exception
	}
	var je *v8.JSError
	if errors.As(err, &je) {
		msg = je.Message
	}
	ctors := []struct {
		prefix string
		make   func(*v8.Isolate, string) *v8.Exception
	}{
		{"SyntaxError: ", v8.NewSyntaxError},
		{"TypeError: ", v8.NewTypeError},
		{"RangeError: ", v8.NewRangeError},
		{"ReferenceError: ", v8.NewReferenceError},
		{"Error: ", v8.NewError},
	}
	for _, k := range ctors {
		if rest, ok := strings.CutPrefix(msg, k.prefix); ok {
			return k.make(iso, rest).Value
		}
	}
	return v8.NewError(iso, msg).Value
}

// nested runs programs for natives while the outer program is on the stack.
type nested struct {
	c *v8Context
}

func (n nested) Run(name, src string) (core.Value, error) {
	n.c.sources[name] = src
	v, err := n.c.eval(name, src)
	if err != nil {
		return nil, err
	}
	return n.c.wrap(v), nil
}

// scriptError converts a v8go error into the core error contract.
// Exceptions rethrown by the harness are located by their stack.
func (c *v8Context) scriptError(name, src string, err error) error {
	var je *v8.JSError
	if !errors.As(err, &je) {
		return core.NewScriptError(err.Error())
	}
	se := core.NewScriptError(je.Message)
	if je.StackTrace != je.Message {
		se.Stack = je.StackTrace
	}
	switch {
	case strings.HasPrefix(je.Message, terminatedPrefix):
		se.Resource = name
	case strings.HasPrefix(je.Location, harnessName+":"):
		c.locateFrame(se, name, se.Stack)
	default:
		locate(se, je.Location, name, src, c.sources)
	}
	return se
}

// framePos matches "file:line:col" at the end of a stack frame.
var framePos = regexp.MustCompile(`\(?([^\s():]+):(\d+):(\d+)\)?\s*$`)

// locateFrame takes the position of the first stack frame in a known
// source. Exceptions without a stack keep only the resource name.
func (c *v8Context) locateFrame(se *core.ScriptError, name, stack string) {
	se.Resource = name
	for _, line := range strings.Split(stack, "\n") {
		m := framePos.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		src, ok := c.sources[m[1]]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(m[2])
		if err != nil || n <= 0 {
			continue
		}
		se.Resource = m[1]
		se.Line = n
		se.SourceLine = core.SourceLineAt(src, n)
		if col, err := strconv.Atoi(m[3]); err == nil && col > 0 {
			se.StartColumn = col - 1
			se.EndColumn = col
		}
		return
	}
}

// locate parses a "resource:line:column" location.
func locate(se *core.ScriptError, location, name, src string, sources map[string]string) {
	se.Resource = name
	parts := strings.Split(location, ":")
	if len(parts) < 2 {
		return
	}
	var col int
	if len(parts) >= 3 {
		if n, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
			col = n
			parts = parts[:len(parts)-1]
		}
	}
	line, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || line <= 0 {
		return
	}
	if res := strings.Join(parts[:len(parts)-1], ":"); res != "" {
		se.Resource = res
		if s, ok := sources[res]; ok {
			src = s
		}
	}
	se.Line = line
	se.SourceLine = core.SourceLineAt(src, line)
	if col > 0 {
		se.StartColumn = col - 1
		se.EndColumn = col
	}
}
