package core

// NativeFunc implements a host function callable from script. The returned
// value is converted by the backend: nil becomes undefined, a Value is passed
// through, and Go strings, numbers, booleans, slices and maps are converted
// to their script counterparts. A non-nil error is thrown into the script.
type NativeFunc func(c *Call) (any, error)

// Native is one named host function. An empty Object installs it as a
// global, otherwise as a method of the global object named Object.
type Native struct {
	Object string
	Name   string
	Fn     NativeFunc
}

// Path returns the dotted script name of the native.
func (n Native) Path() string {
	if n.Object == "" {
		return n.Name
	}
	return n.Object + "." + n.Name
}

// Prelude is a script evaluated on every new context after the natives are
// installed.
type Prelude struct {
	Name   string
	Source string
}

// Template describes the global namespace given to each new context. It is
// built once and may seed many contexts; it holds no per-context state.
type Template struct {
	natives  []Native
	preludes []Prelude
}

// NewTemplate returns an empty template.
func NewTemplate() *Template {
	return &Template{}
}

// Func attaches a global function.
func (t *Template) Func(name string, fn NativeFunc) {
	t.natives = append(t.natives, Native{Name: name, Fn: fn})
}

// Method attaches fn as object.name, creating the object on first use.
func (t *Template) Method(object, name string, fn NativeFunc) {
	t.natives = append(t.natives, Native{Object: object, Name: name, Fn: fn})
}

// Prelude appends a script run after the natives are installed.
func (t *Template) Prelude(name, src string) {
	t.preludes = append(t.preludes, Prelude{Name: name, Source: src})
}

// Natives returns the natives in registration order.
func (t *Template) Natives() []Native {
	out := make([]Native, len(t.natives))
	copy(out, t.natives)
	return out
}

// Preludes returns the preludes in registration order.
func (t *Template) Preludes() []Prelude {
	out := make([]Prelude, len(t.preludes))
	copy(out, t.preludes)
	return out
}

// Objects returns the distinct namespace objects used by Method, in order of
// first use.
func (t *Template) Objects() []string {
	var out []string
	seen := make(map[string]bool)
	for _, n := range t.natives {
		if n.Object == "" || seen[n.Object] {
			continue
		}
		seen[n.Object] = true
		out = append(out, n.Object)
	}
	return out
}

// Runner compiles and runs a nested program in the calling context.
type Runner interface {
	Run(name, src string) (Value, error)
}

// Call is the invocation of a native function.
type Call struct {
	Handle Handle
	Args   []Value
	runner Runner
}

// NewCall is used by backends to build the argument of a NativeFunc.
func NewCall(h Handle, args []Value, r Runner) *Call {
	return &Call{Handle: h, Args: args, runner: r}
}

// Arg returns argument i, or Undefined when it was not passed.
func (c *Call) Arg(i int) Value {
	if i < 0 || i >= len(c.Args) || c.Args[i] == nil {
		return Undefined
	}
	return c.Args[i]
}

// StringArg returns argument i when it is a string.
func (c *Call) StringArg(i int) (string, bool) {
	v := c.Arg(i)
	if v.Kind() != KindString {
		return "", false
	}
	return v.String(), true
}

// State returns the host state of the sandbox that owns the calling context.
func (c *Call) State() (*State, error) {
	st := GetState(c.Handle)
	if st == nil {
		return nil, ErrInvalidHandle
	}
	return st, nil
}

// Run compiles src under name and runs it in the calling context. Script
// exceptions are returned as errors which the backend re-throws unchanged
// when the native returns them.
func (c *Call) Run(name, src string) (Value, error) {
	if c.runner == nil {
		return nil, ErrContextClosed
	}
	return c.runner.Run(name, src)
}
