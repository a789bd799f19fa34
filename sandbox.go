// Package sandbox executes untrusted contract programs in an embedded
// JavaScript engine with host capabilities, gas metering and a hard
// wall-clock deadline.
//
// The engine is chosen at build time: goja by default, QuickJS with the
// "quickjs" build tag and V8 with the "v8" build tag.
package sandbox

import (
	"errors"
	"fmt"
	"io"

	"github.com/cryguy/sandbox/internal/config"
	"github.com/cryguy/sandbox/internal/core"
	"github.com/cryguy/sandbox/internal/metrics"
	isandbox "github.com/cryguy/sandbox/internal/sandbox"
	"github.com/cryguy/sandbox/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Sandbox is an isolated execution context. A sandbox created by New or
// Open owns its engine and releases it together with the context.
type Sandbox struct {
	*isandbox.Sandbox
	engine  core.Engine
	closers []io.Closer
}

// NewEngine creates an engine instance of the compiled-in backend. Several
// sandboxes may share it through NewShared; they then run one at a time.
func NewEngine(cfg EngineConfig) Engine {
	return newEngine(cfg)
}

// New creates a sandbox on a fresh engine instance.
func New(cfg EngineConfig, opts Options) (*Sandbox, error) {
	engine := newEngine(cfg)
	inner, err := isandbox.New(engine, opts)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	return &Sandbox{Sandbox: inner, engine: engine}, nil
}

// NewShared creates a sandbox on engine. The caller keeps ownership of the
// engine and closes it after releasing every sandbox that uses it.
func NewShared(engine Engine, opts Options) (*Sandbox, error) {
	inner, err := isandbox.New(engine, opts)
	if err != nil {
		return nil, err
	}
	return &Sandbox{Sandbox: inner}, nil
}

// Release tears the context down, then closes whatever the sandbox owns.
// It is safe to call more than once.
func (s *Sandbox) Release() {
	if s == nil || s.Sandbox == nil || s.Sandbox.Released() {
		return
	}
	s.Sandbox.Release()
	if s.engine != nil {
		s.engine.Lock()
		_ = s.engine.Close()
		s.engine.Unlock()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i].Close()
	}
}

// Execute runs program on s. A nil sandbox yields an empty outcome.
func Execute(s *Sandbox, program string) Outcome {
	if s == nil || s.Sandbox == nil {
		return Outcome{}
	}
	return s.Sandbox.Execute(program)
}

// Deps are the collaborators Open cannot build from configuration. A
// Registerer receives the sandbox collectors, so it can serve one Open.
type Deps struct {
	Logger     *zap.Logger
	Registerer prometheus.Registerer
	Chain      ChainState
	Modules    ModuleResolver
}

// Open builds a sandbox from cfg: its own engine, a storage capability
// backed by cfg.Storage, and the configured deadline, gas limit and
// bootstrap path.
func Open(cfg *config.Config, deps Deps) (*Sandbox, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := storage.ValidateContract(cfg.Sandbox.Contract); err != nil {
		return nil, err
	}

	store, err := storage.OpenSQL(cfg.Storage.DSN, storage.Options{
		CompressThreshold: cfg.Storage.CompressThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("sandbox: opening storage: %w", err)
	}

	m := metrics.NewNop()
	if deps.Registerer != nil {
		m = metrics.New(deps.Registerer)
	}

	s, err := New(core.EngineConfig{
		MemoryLimitMB:    cfg.Engine.MemoryLimitMB,
		MaxCallStackSize: cfg.Engine.MaxCallStackSize,
	}, Options{
		BootstrapPath: cfg.Sandbox.BootstrapPath,
		Timeout:       cfg.Sandbox.Timeout(),
		GasLimit:      cfg.Sandbox.GasLimit,
		Contract:      cfg.Sandbox.Contract,
		MaxLogEntries: cfg.Sandbox.MaxLogEntries,
		Store:         store,
		Chain:         deps.Chain,
		Modules:       deps.Modules,
		Logger:        deps.Logger,
		Metrics:       m,
	})
	if err != nil {
		return nil, errors.Join(err, store.Close())
	}
	s.closers = append(s.closers, store)
	return s, nil
}
