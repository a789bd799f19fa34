// Package gojaengine implements core.Engine on the pure-Go goja runtime.
package gojaengine

import (
	"errors"
	"sync"

	"github.com/cryguy/sandbox/internal/core"
	"github.com/dop251/goja"
)

// errInterrupted is the value passed to goja's Interrupt.
var errInterrupted = errors.New("execution interrupted")

// Engine is one goja engine instance. goja has no isolate, so the engine is
// the lock plus the runtime currently executing; each context owns its own
// goja.Runtime.
type Engine struct {
	mu  sync.Mutex
	cfg core.EngineConfig

	// amu guards the run token, the pending flag and the active runtime.
	amu     sync.Mutex
	token   uint64
	pending bool
	active  *goja.Runtime
}

var _ core.Engine = (*Engine)(nil)

// NewEngine creates an engine instance.
func NewEngine(cfg core.EngineConfig) *Engine {
	return &Engine{cfg: cfg}
}

func (e *Engine) Lock()   { e.mu.Lock() }
func (e *Engine) Unlock() { e.mu.Unlock() }

// Interrupt stops the run identified by token if it is executing, or when
// it starts.
func (e *Engine) Interrupt(token uint64) {
	e.amu.Lock()
	defer e.amu.Unlock()
	if token != e.token {
		return
	}
	e.pending = true
	if e.active != nil {
		e.active.Interrupt(errInterrupted)
	}
}

func (e *Engine) ClearInterrupt() uint64 {
	e.amu.Lock()
	defer e.amu.Unlock()
	e.token++
	e.pending = false
	return e.token
}

// Close is a no-op; goja runtimes are garbage collected with their contexts.
func (e *Engine) Close() error {
	return nil
}

// enter marks rt as the running runtime. The runtime's own interrupt flag
// is reset and a pending engine interrupt is applied to it.
func (e *Engine) enter(rt *goja.Runtime) {
	rt.ClearInterrupt()
	e.amu.Lock()
	defer e.amu.Unlock()
	e.active = rt
	if e.pending {
		rt.Interrupt(errInterrupted)
	}
}

func (e *Engine) leave(rt *goja.Runtime) {
	e.amu.Lock()
	if e.active == rt {
		e.active = nil
	}
	e.amu.Unlock()
}
