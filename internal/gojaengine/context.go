package gojaengine

import (
	"errors"
	"fmt"

	"github.com/cryguy/sandbox/internal/core"
	"github.com/dop251/goja"
	"github.com/dop251/goja/parser"
)

// gojaContext is one sandbox's global namespace, backed by its own runtime.
// Natives are closures over the context, so the handle stored here is the
// back-reference from the global object to the sandbox.
type gojaContext struct {
	engine    *Engine
	rt        *goja.Runtime
	handle    core.Handle
	stringify goja.Callable
	sources   map[string]string
	closed    bool
}

type script struct {
	ctx  *gojaContext
	name string
	prg  *goja.Program
}

func (s *script) Name() string { return s.name }

// NewContext builds a runtime, installs the template's natives, then runs its
// preludes.
func (e *Engine) NewContext(tmpl *core.Template, h core.Handle) (core.Context, error) {
	rt := goja.New()
	if e.cfg.MaxCallStackSize > 0 {
		rt.SetMaxCallStackSize(e.cfg.MaxCallStackSize)
	}

	c := &gojaContext{
		engine:  e,
		rt:      rt,
		handle:  h,
		sources: make(map[string]string),
	}

	jsonObj := rt.Get("JSON").ToObject(rt)
	stringify, ok := goja.AssertFunction(jsonObj.Get("stringify"))
	if !ok {
		return nil, fmt.Errorf("JSON.stringify is not callable")
	}
	c.stringify = stringify

	objects := make(map[string]*goja.Object)
	for _, name := range tmpl.Objects() {
		obj := rt.NewObject()
		if err := rt.Set(name, obj); err != nil {
			return nil, fmt.Errorf("installing %s: %w", name, err)
		}
		objects[name] = obj
	}
	for _, n := range tmpl.Natives() {
		fn := c.native(n)
		var err error
		if n.Object == "" {
			err = rt.Set(n.Name, fn)
		} else {
			err = objects[n.Object].Set(n.Name, fn)
		}
		if err != nil {
			return nil, fmt.Errorf("installing %s: %w", n.Path(), err)
		}
	}

	for _, p := range tmpl.Preludes() {
		s, err := c.Compile(p.Name, p.Source)
		if err != nil {
			return nil, fmt.Errorf("prelude %s: %w", p.Name, err)
		}
		if _, err := c.Run(s); err != nil {
			return nil, fmt.Errorf("prelude %s: %w", p.Name, err)
		}
	}
	return c, nil
}

func compileProgram(name, src string) (*goja.Program, error) {
	prg, err := parser.ParseFile(nil, name, src, 0)
	if err != nil {
		return nil, err
	}
	return goja.CompileAST(prg, false)
}

func (c *gojaContext) Compile(name, src string) (core.Script, error) {
	if c.closed {
		return nil, core.ErrContextClosed
	}
	prg, err := compileProgram(name, src)
	if err != nil {
		return nil, syntaxError(name, src, err)
	}
	c.sources[name] = src
	return &script{ctx: c, name: name, prg: prg}, nil
}

func (c *gojaContext) Run(s core.Script) (core.Value, error) {
	if c.closed {
		return nil, core.ErrContextClosed
	}
	sc, ok := s.(*script)
	if !ok || sc.ctx != c {
		return nil, fmt.Errorf("script %q was not compiled by this context", s.Name())
	}

	c.engine.enter(c.rt)
	defer c.engine.leave(c.rt)

	v, err := c.rt.RunProgram(sc.prg)
	if err != nil {
		return nil, c.runError(err)
	}
	return c.wrap(v), nil
}

func (c *gojaContext) Close() {
	c.closed = true
	c.sources = nil
}

// nested runs programs on behalf of natives while the outer program is on
// the stack. Errors are returned raw so the native wrapper can re-throw them.
type nested struct {
	c *gojaContext
}

func (n nested) Run(name, src string) (core.Value, error) {
	prg, err := compileProgram(name, src)
	if err != nil {
		return nil, err
	}
	n.c.sources[name] = src
	v, err := n.c.rt.RunProgram(prg)
	if err != nil {
		return nil, err
	}
	return n.c.wrap(v), nil
}

// runError converts a RunProgram error into the core error contract.
func (c *gojaContext) runError(err error) error {
	var ie *goja.InterruptedError
	if errors.As(err, &ie) {
		se := core.NewScriptError(fmt.Sprint(ie.Value()))
		c.locate(se, ie.Stack())
		return se
	}
	var so *goja.StackOverflowError
	if errors.As(err, &so) {
		se := core.NewScriptError("RangeError: Maximum call stack size exceeded")
		c.locate(se, so.Stack())
		return se
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		val := ex.Value()
		if val != nil && goja.IsNull(val) {
			return core.ErrNullException
		}
		se := core.NewScriptError(safeString(val))
		c.locate(se, ex.Stack())
		if obj, ok := val.(*goja.Object); ok {
			se.Stack = stackProperty(obj)
		}
		return se
	}
	return core.NewScriptError(err.Error())
}

// locate fills the location fields from the innermost script frame. goja
// reports a single column, so the underline covers one character.
func (c *gojaContext) locate(se *core.ScriptError, frames []goja.StackFrame) {
	for i := range frames {
		pos := frames[i].Position()
		if pos.Filename == "" || pos.Line == 0 {
			continue
		}
		se.Resource = pos.Filename
		se.Line = pos.Line
		if pos.Column > 0 {
			se.StartColumn = pos.Column - 1
			se.EndColumn = pos.Column
		}
		se.SourceLine = core.SourceLineAt(c.sources[pos.Filename], pos.Line)
		return
	}
}

func syntaxError(name, src string, err error) *core.ScriptError {
	var list parser.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		first := list[0]
		se := core.NewScriptError("SyntaxError: " + first.Message)
		se.Resource = name
		setPosition(se, src, first.Position.Line, first.Position.Column)
		return se
	}
	var ce *goja.CompilerSyntaxError
	if errors.As(err, &ce) {
		se := core.NewScriptError("SyntaxError: " + ce.Message)
		se.Resource = name
		if ce.File != nil {
			pos := ce.File.Position(ce.Offset)
			setPosition(se, src, pos.Line, pos.Column)
		}
		return se
	}
	se := core.NewScriptError(err.Error())
	se.Resource = name
	return se
}

func setPosition(se *core.ScriptError, src string, line, column int) {
	if line <= 0 {
		return
	}
	se.Line = line
	se.SourceLine = core.SourceLineAt(src, line)
	if column > 0 {
		se.StartColumn = column - 1
		se.EndColumn = column
	}
}

// safeString converts v with the script's toString, which may itself throw.
func safeString(v goja.Value) (s string) {
	if v == nil {
		return "undefined"
	}
	defer func() {
		if r := recover(); r != nil {
			s = "<string conversion failed>"
		}
	}()
	return v.String()
}

func stackProperty(obj *goja.Object) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = ""
		}
	}()
	v := obj.Get("stack")
	if v == nil || !goja.IsString(v) {
		return ""
	}
	return v.String()
}
