//go:build quickjs && !v8

package quickjs

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cryguy/sandbox/internal/core"
	"modernc.org/quickjs"
)

type qjsContext struct {
	engine  *Engine
	vm      *quickjs.VM
	handle  core.Handle
	natives map[string]core.Native
	sources map[string]string
	closed  bool
	retired bool
}

type script struct {
	ctx  *qjsContext
	name string
	src  string
}

func (s *script) Name() string { return s.name }

// runResult is what __sbx_run reports about a program.
type runResult struct {
	OK    bool       `json:"ok"`
	Null  bool       `json:"null"`
	Value *wireValue `json:"v"`
	Msg   string     `json:"m"`
	Stack string     `json:"st"`
}

// NewContext builds a VM, registers the host dispatcher, installs the
// template's natives through the harness, then runs its preludes.
func (e *Engine) NewContext(tmpl *core.Template, h core.Handle) (core.Context, error) {
	vm, err := quickjs.NewVM()
	if err != nil {
		return nil, fmt.Errorf("creating quickjs vm: %w", err)
	}
	if e.cfg.MemoryLimitMB > 0 {
		vm.SetMemoryLimit(uintptr(e.cfg.MemoryLimitMB) * 1024 * 1024)
	}

	c := &qjsContext{
		engine:  e,
		vm:      vm,
		handle:  h,
		natives: make(map[string]core.Native),
		sources: make(map[string]string),
	}
	if err := vm.RegisterFunc("__host_call", c.hostCall, false); err != nil {
		vm.Close()
		return nil, fmt.Errorf("registering host dispatcher: %w", err)
	}
	if err := c.eval(harnessJS); err != nil {
		vm.Close()
		return nil, fmt.Errorf("installing harness: %w", err)
	}

	for _, n := range tmpl.Natives() {
		c.natives[n.Path()] = n
		js := fmt.Sprintf("__sbx_install(%s, %s, %s)", jsString(n.Object), jsString(n.Name), jsString(n.Path()))
		if err := c.eval(js); err != nil {
			vm.Close()
			return nil, fmt.Errorf("installing %s: %w", n.Path(), err)
		}
	}

	for _, p := range tmpl.Preludes() {
		s, err := c.Compile(p.Name, p.Source)
		if err == nil {
			_, err = c.Run(s)
		}
		if err != nil {
			vm.Close()
			return nil, fmt.Errorf("prelude %s: %w", p.Name, err)
		}
	}
	return c, nil
}

// eval runs trusted setup code and discards its result.
func (c *qjsContext) eval(js string) error {
	v, err := c.vm.EvalValue(js, quickjs.EvalGlobal)
	if err != nil {
		return err
	}
	v.Free()
	return nil
}

func (c *qjsContext) usable() error {
	if c.closed {
		return core.ErrContextClosed
	}
	if c.retired {
		return core.ErrContextRetired
	}
	return nil
}

// Compile checks src for syntax errors. quickjs reports no position for
// them, so only the resource name is filled in.
func (c *qjsContext) Compile(name, src string) (core.Script, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	if _, err := c.vm.Compile(src, quickjs.EvalGlobal); err != nil {
		se := core.NewScriptError(err.Error())
		se.Resource = name
		return nil, se
	}
	c.sources[name] = src
	return &script{ctx: c, name: name, src: src}, nil
}

func (c *qjsContext) Run(s core.Script) (core.Value, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	sc, ok := s.(*script)
	if !ok || sc.ctx != c {
		return nil, fmt.Errorf("script %q was not compiled by this context", s.Name())
	}

	if !c.engine.enter(c.vm) {
		se := core.NewScriptError("InternalError: interrupted")
		se.Resource = sc.name
		return nil, se
	}
	out, err := c.vm.Eval("__sbx_run("+jsString(sc.src)+")", quickjs.EvalGlobal)
	c.engine.leave(c.vm)
	if err != nil {
		// Uncatchable: an interrupt or an out-of-memory condition. The VM
		// may hold half-unwound state, so it is not used again.
		c.retired = true
		se := core.NewScriptError(err.Error())
		se.Resource = sc.name
		return nil, se
	}

	text, ok := out.(string)
	if !ok {
		return nil, fmt.Errorf("harness returned %T", out)
	}
	var res runResult
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		return nil, fmt.Errorf("decoding harness result: %w", err)
	}
	switch {
	case res.Null:
		return nil, core.ErrNullException
	case !res.OK:
		se := core.NewScriptError(res.Msg)
		se.Stack = res.Stack
		c.locate(se, sc.name, res.Stack)
		return nil, se
	case res.Value == nil:
		return core.Undefined, nil
	}
	return res.Value, nil
}

func (c *qjsContext) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.sources = nil
	c.vm.Close()
}

// framePos matches "file:line" or "file:line:col" at the end of a stack
// frame. The resource excludes ':' so that the line is never taken from the
// column.
var framePos = regexp.MustCompile(`\(?([^\s():]*):(\d+)(?::(\d+))?\)?\s*$`)

// locate takes the position of the first stack frame. Programs run through
// the harness's eval, so frames name the eval rather than the program.
func (c *qjsContext) locate(se *core.ScriptError, name, stack string) {
	for _, line := range strings.Split(stack, "\n") {
		m := framePos.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[2])
		if err != nil || n <= 0 {
			continue
		}
		se.Resource = name
		se.Line = n
		se.SourceLine = core.SourceLineAt(c.sources[name], n)
		if m[3] != "" {
			if col, err := strconv.Atoi(m[3]); err == nil && col > 0 {
				se.StartColumn = col - 1
				se.EndColumn = col
			}
		}
		return
	}
	se.Resource = name
}

// jsString quotes s as a JavaScript string literal. JSON string syntax is a
// subset of it, and encoding/json escapes U+2028 and U+2029.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// deferredRun is returned by nested Run calls. quickjs cannot re-enter
// evaluation from a host callback, so the harness evaluates the source once
// the native returns.
type deferredRun struct {
	name string
	src  string
}

func (d *deferredRun) Kind() core.ValueKind  { return core.KindUndefined }
func (d *deferredRun) String() string        { return "undefined" }
func (d *deferredRun) JSON() (string, error) { return "", core.ErrNotSerializable }
func (d *deferredRun) Export() any           { return nil }

type nested struct {
	c *qjsContext
}

// Run defers src to the harness, which raises its syntax errors natively.
func (n nested) Run(name, src string) (core.Value, error) {
	n.c.sources[name] = src
	return &deferredRun{name: name, src: src}, nil
}

// reply is the JSON envelope handed back to the harness by hostCall.
type reply struct {
	Value     json.RawMessage `json:"v,omitempty"`
	Undefined bool            `json:"u,omitempty"`
	Error     *string         `json:"e,omitempty"`
	ErrorType string          `json:"t,omitempty"`
	Run       *string         `json:"run,omitempty"`
}

// hostCall is registered as __host_call. It decodes the described arguments,
// calls the native registered under path and encodes its result.
func (c *qjsContext) hostCall(path, argsJSON string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = encodeReply(reply{Error: ptr(fmt.Sprint(r))})
		}
	}()

	n, ok := c.natives[path]
	if !ok {
		return encodeReply(reply{Error: ptr(path + " is not a native function")})
	}
	var wire []*wireValue
	if err := json.Unmarshal([]byte(argsJSON), &wire); err != nil {
		return encodeReply(reply{Error: ptr("decoding arguments: " + err.Error())})
	}
	args := make([]core.Value, len(wire))
	for i, w := range wire {
		args[i] = w
	}

	res, err := n.Fn(core.NewCall(c.handle, args, nested{c}))
	if err != nil {
		return encodeReply(errorReply(err))
	}
	r, err := toReply(res)
	if err != nil {
		return encodeReply(reply{Error: ptr(err.Error())})
	}
	return encodeReply(r)
}

// errorTypes are the constructors a native error may name with a
// "Type: message" prefix, as syntax errors from nested runs do.
var errorTypes = []string{"SyntaxError", "TypeError", "RangeError", "ReferenceError", "EvalError", "URIError", "InternalError"}

func errorReply(err error) reply {
	msg := err.Error()
	var se *core.ScriptError
	if errors.As(err, &se) {
		msg = se.Exception
	}
	for _, t := range errorTypes {
		if rest, ok := strings.CutPrefix(msg, t+": "); ok {
			return reply{Error: ptr(rest), ErrorType: t}
		}
	}
	return reply{Error: ptr(msg)}
}

func toReply(res any) (reply, error) {
	switch v := res.(type) {
	case nil:
		return reply{Undefined: true}, nil
	case *deferredRun:
		return reply{Run: ptr(v.src)}, nil
	case *wireValue:
		if v.Kind() == core.KindUndefined {
			return reply{Undefined: true}, nil
		}
		if v.J != nil {
			return reply{Value: json.RawMessage(*v.J)}, nil
		}
		return marshalReply(v.Export())
	case core.Value:
		switch v.Kind() {
		case core.KindUndefined:
			return reply{Undefined: true}, nil
		case core.KindNull:
			return reply{Value: json.RawMessage("null")}, nil
		}
		return marshalReply(v.Export())
	}
	return marshalReply(res)
}

func marshalReply(v any) (reply, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return reply{}, fmt.Errorf("converting native result: %w", err)
	}
	return reply{Value: b}, nil
}

func encodeReply(r reply) string {
	b, err := json.Marshal(r)
	if err != nil {
		return `{"e":"encoding native result failed"}`
	}
	return string(b)
}

func ptr(s string) *string { return &s }
