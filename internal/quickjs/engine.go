//go:build quickjs && !v8

// Package quickjs implements core.Engine on modernc.org/quickjs. Each context
// owns its own VM; values cross the Go boundary as JSON through a small
// harness installed in every VM.
package quickjs

import (
	"sync"
	"time"

	"github.com/cryguy/sandbox/internal/core"
	"modernc.org/quickjs"
)

// interruptRetry is how often a requested interrupt is re-sent while the VM
// is still evaluating. quickjs resets its interrupt flag when an eval starts,
// so a single Interrupt can land too early.
const interruptRetry = time.Millisecond

// Engine is one QuickJS engine instance.
type Engine struct {
	mu  sync.Mutex
	cfg core.EngineConfig

	// amu guards the run token, the pending flag and active, so that an
	// interrupt never touches a VM that is being closed.
	amu     sync.Mutex
	token   uint64
	pending bool
	active  *quickjs.VM
}

var _ core.Engine = (*Engine)(nil)

// NewEngine creates an engine instance.
func NewEngine(cfg core.EngineConfig) *Engine {
	return &Engine{cfg: cfg}
}

func (e *Engine) Lock()   { e.mu.Lock() }
func (e *Engine) Unlock() { e.mu.Unlock() }

// Interrupt stops the run identified by token if it is evaluating, or when
// it starts.
func (e *Engine) Interrupt(token uint64) {
	e.amu.Lock()
	if token != e.token {
		e.amu.Unlock()
		return
	}
	e.pending = true
	vm := e.active
	if vm != nil {
		vm.Interrupt()
	}
	e.amu.Unlock()
	if vm != nil {
		go e.reinterrupt(vm)
	}
}

// reinterrupt keeps the interrupt flag raised until vm leaves the engine.
func (e *Engine) reinterrupt(vm *quickjs.VM) {
	t := time.NewTicker(interruptRetry)
	defer t.Stop()
	for range t.C {
		e.amu.Lock()
		if e.active != vm || !e.pending {
			e.amu.Unlock()
			return
		}
		vm.Interrupt()
		e.amu.Unlock()
	}
}

func (e *Engine) ClearInterrupt() uint64 {
	e.amu.Lock()
	defer e.amu.Unlock()
	e.token++
	e.pending = false
	return e.token
}

// Close is a no-op; each VM is released by its context.
func (e *Engine) Close() error {
	return nil
}

// enter marks vm as evaluating. It reports false when an interrupt is
// already pending, in which case nothing must be evaluated.
func (e *Engine) enter(vm *quickjs.VM) bool {
	e.amu.Lock()
	defer e.amu.Unlock()
	if e.pending {
		return false
	}
	e.active = vm
	return true
}

func (e *Engine) leave(vm *quickjs.VM) {
	e.amu.Lock()
	if e.active == vm {
		e.active = nil
	}
	e.amu.Unlock()
}
