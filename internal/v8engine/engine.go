//go:build v8

// Package v8engine implements core.Engine on V8 through tommie/v8go. One
// engine owns one isolate; every context is a v8.Context inside it.
package v8engine

import (
	"sync"

	"github.com/cryguy/sandbox/internal/core"
	v8 "github.com/tommie/v8go"
)

// Engine is one V8 isolate.
type Engine struct {
	mu  sync.Mutex
	cfg core.EngineConfig
	iso *v8.Isolate

	// amu guards the run token and the flags below. TerminateExecution is
	// only issued while a script runs, otherwise it would kill the next one.
	amu        sync.Mutex
	token      uint64
	pending    bool
	running    bool
	terminated bool
}

var _ core.Engine = (*Engine)(nil)

// NewEngine creates an isolate, applying the configured heap limit.
func NewEngine(cfg core.EngineConfig) *Engine {
	var iso *v8.Isolate
	if cfg.MemoryLimitMB > 0 {
		heapSize := uint64(cfg.MemoryLimitMB) * 1024 * 1024
		iso = v8.NewIsolate(v8.WithResourceConstraints(heapSize/2, heapSize))
	} else {
		iso = v8.NewIsolate()
	}
	return &Engine{cfg: cfg, iso: iso}
}

func (e *Engine) Lock()   { e.mu.Lock() }
func (e *Engine) Unlock() { e.mu.Unlock() }

// Interrupt terminates the run identified by token if it is executing, or
// when it starts.
func (e *Engine) Interrupt(token uint64) {
	e.amu.Lock()
	defer e.amu.Unlock()
	if token != e.token {
		return
	}
	e.pending = true
	if e.running {
		e.terminated = true
		e.iso.TerminateExecution()
	}
}

func (e *Engine) ClearInterrupt() uint64 {
	e.amu.Lock()
	defer e.amu.Unlock()
	e.token++
	e.pending = false
	return e.token
}

// Close disposes the isolate.
func (e *Engine) Close() error {
	e.iso.Dispose()
	return nil
}

// enter marks the isolate as running. It reports false when an interrupt
// is already pending, in which case nothing must be run.
func (e *Engine) enter() bool {
	e.amu.Lock()
	defer e.amu.Unlock()
	if e.pending {
		return false
	}
	e.running = true
	return true
}

// leave clears the running mark. When a termination was requested during
// the run, a no-op script absorbs it in case the run finished first.
func (e *Engine) leave(ctx *v8.Context) {
	e.amu.Lock()
	e.running = false
	terminated := e.terminated
	e.terminated = false
	e.amu.Unlock()
	if terminated {
		_, _ = ctx.RunScript("undefined", "drain.js")
	}
}
