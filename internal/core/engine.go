package core

import "sync"

// Engine is a non-reentrant script engine instance. Every call that creates,
// enters or closes a context, and every method of Context, Script and Value,
// must run while the engine's lock is held. Interrupt is the exception: it is
// safe to call from any goroutine without the lock.
type Engine interface {
	sync.Locker

	// NewContext instantiates tmpl into a fresh global namespace whose native
	// functions resolve host state through h.
	NewContext(tmpl *Template, h Handle) (Context, error)

	// Interrupt asks the run identified by token to stop at its next safe
	// point. An interrupt that arrives before that run starts stays pending;
	// one whose token belongs to an earlier run is ignored.
	Interrupt(token uint64)

	// ClearInterrupt drops a pending interrupt and returns the token of the
	// run about to start. It is called with the lock held before a program
	// is run.
	ClearInterrupt() uint64

	// Close releases the engine. All contexts must be closed first.
	Close() error
}

// Context is one isolated global namespace inside an Engine.
type Context interface {
	// Compile parses src as a program named name. Syntax errors are returned
	// as *ScriptError.
	Compile(name, src string) (Script, error)

	// Run executes a compiled program. A thrown null is reported as
	// ErrNullException, any other exception as *ScriptError.
	Run(s Script) (Value, error)

	// Close tears the context down. Further use returns ErrContextClosed.
	Close()
}

// Script is a compiled program bound to the context that compiled it.
type Script interface {
	Name() string
}

// ValueKind classifies a script value.
type ValueKind int

const (
	KindUndefined ValueKind = iota
	KindNull
	KindBoolean
	KindNumber
	KindString
	KindBigInt
	KindSymbol
	KindFunction
	KindObject
)

var kindNames = [...]string{
	KindUndefined: "undefined",
	KindNull:      "null",
	KindBoolean:   "boolean",
	KindNumber:    "number",
	KindString:    "string",
	KindBigInt:    "bigint",
	KindSymbol:    "symbol",
	KindFunction:  "function",
	KindObject:    "object",
}

func (k ValueKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Primitive reports whether values of this kind render as plain text.
func (k ValueKind) Primitive() bool {
	return k == KindBoolean || k == KindNumber || k == KindString
}

// Value is a script value owned by a context.
type Value interface {
	Kind() ValueKind
	// String returns the script's own string conversion of the value.
	String() string
	// JSON returns the JSON.stringify text of the value, or
	// ErrNotSerializable when there is none.
	JSON() (string, error)
	// Export converts the value to a plain Go value.
	Export() any
}

type constValue ValueKind

func (c constValue) Kind() ValueKind { return ValueKind(c) }

func (c constValue) String() string { return ValueKind(c).String() }

func (c constValue) JSON() (string, error) {
	if ValueKind(c) == KindNull {
		return "null", nil
	}
	return "", ErrNotSerializable
}

func (c constValue) Export() any { return nil }

var (
	// Undefined is the engine-independent undefined value.
	Undefined Value = constValue(KindUndefined)
	// Null is the engine-independent null value. Natives return it to hand
	// null back to the script.
	Null Value = constValue(KindNull)
)
