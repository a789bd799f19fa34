package gojaengine

import (
	"errors"

	"github.com/cryguy/sandbox/internal/core"
	"github.com/dop251/goja"
	"github.com/dop251/goja/parser"
)

// native adapts a core.NativeFunc to a goja function. Errors become thrown
// exceptions; exceptions from nested runs are re-thrown unchanged and
// uncatchable errors (interrupts, stack overflow) keep unwinding.
func (c *gojaContext) native(n core.Native) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		args := make([]core.Value, len(call.Arguments))
		for i, a := range call.Arguments {
			args[i] = c.wrap(a)
		}
		res, err := n.Fn(core.NewCall(c.handle, args, nested{c}))
		if err != nil {
			c.throw(err)
		}
		return c.toValue(res)
	}
}

func (c *gojaContext) throw(err error) {
	var ie *goja.InterruptedError
	if errors.As(err, &ie) {
		panic(ie)
	}
	var so *goja.StackOverflowError
	if errors.As(err, &so) {
		panic(so)
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		panic(ex)
	}
	var list parser.ErrorList
	if errors.As(err, &list) {
		panic(c.newError("SyntaxError", list.Error()))
	}
	var ce *goja.CompilerSyntaxError
	if errors.As(err, &ce) {
		panic(c.newError("SyntaxError", ce.Message))
	}
	panic(c.newError("Error", err.Error()))
}

// newError constructs a script error object with the global constructor
// ctor.
func (c *gojaContext) newError(ctor, msg string) goja.Value {
	if fn := c.rt.Get(ctor); fn != nil {
		if obj, err := c.rt.New(fn, c.rt.ToValue(msg)); err == nil {
			return obj
		}
	}
	return c.rt.NewGoError(errors.New(msg))
}

func (c *gojaContext) toValue(res any) goja.Value {
	switch v := res.(type) {
	case nil:
		return goja.Undefined()
	case goja.Value:
		return v
	case *value:
		if v.ctx == c {
			return v.v
		}
		return c.rt.ToValue(v.Export())
	case core.Value:
		switch v.Kind() {
		case core.KindUndefined:
			return goja.Undefined()
		case core.KindNull:
			return goja.Null()
		}
		return c.rt.ToValue(v.Export())
	case []string:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		return c.rt.NewArray(items...)
	default:
		return c.rt.ToValue(v)
	}
}
