// Package sandbox runs untrusted contract programs in an engine context with
// host capabilities, gas metering and a wall-clock deadline.
package sandbox

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cryguy/sandbox/internal/capability"
	"github.com/cryguy/sandbox/internal/core"
	"github.com/cryguy/sandbox/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultBootstrapPath is the directory bootstrap programs are read from.
	DefaultBootstrapPath = "v8/libjs"

	// DefaultTimeout is the execution deadline.
	DefaultTimeout = 1000 * time.Millisecond

	// DefaultContract scopes storage when no contract name is given.
	DefaultContract = "contract"

	// ProgramName is the resource name user programs are compiled under.
	ProgramName = "_default_name.js"
)

var defaultTemplate = sync.OnceValue(capability.NewTemplate)

// Options configures a sandbox. The zero value is usable.
type Options struct {
	BootstrapPath string
	Timeout       time.Duration
	GasLimit      uint64
	Contract      string
	MaxLogEntries int

	Store   core.Store
	Chain   core.ChainState
	Modules core.ModuleResolver

	Logger  *zap.Logger
	Metrics *metrics.Metrics

	// Template overrides the capability template.
	Template *core.Template
}

// Sandbox is one isolated context bound to an engine. The engine is not
// owned and may be shared; every entry into the context holds its lock.
type Sandbox struct {
	engine  core.Engine
	ctx     core.Context
	handle  core.Handle
	state   *core.State
	id      string
	timeout atomic.Int64
	logger  *zap.Logger
	metrics *metrics.Metrics

	released atomic.Bool
}

// New creates a context on engine with the capability natives installed.
func New(engine core.Engine, opts Options) (*Sandbox, error) {
	if engine == nil {
		return nil, fmt.Errorf("sandbox: engine must not be nil")
	}
	if opts.BootstrapPath == "" {
		opts.BootstrapPath = DefaultBootstrapPath
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Contract == "" {
		opts.Contract = DefaultContract
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNop()
	}
	tmpl := opts.Template
	if tmpl == nil {
		tmpl = defaultTemplate()
	}

	id := uuid.NewString()
	logger := opts.Logger.With(zap.String("sandbox", id), zap.String("contract", opts.Contract))

	h := core.NewState(core.StateOptions{
		ID:            id,
		Contract:      opts.Contract,
		BootstrapPath: opts.BootstrapPath,
		Store:         opts.Store,
		Chain:         opts.Chain,
		Modules:       opts.Modules,
		Logger:        logger,
		MaxLogEntries: opts.MaxLogEntries,
	})
	st := core.GetState(h)
	st.SetGasLimit(opts.GasLimit)

	engine.Lock()
	engine.ClearInterrupt()
	ctx, err := engine.NewContext(tmpl, h)
	engine.Unlock()
	if err != nil {
		core.ClearState(h)
		return nil, fmt.Errorf("sandbox: creating context: %w", err)
	}

	opts.Metrics.SandboxesActive.Inc()
	logger.Debug("sandbox created")
	s := &Sandbox{
		engine:  engine,
		ctx:     ctx,
		handle:  h,
		state:   st,
		id:      id,
		logger:  logger,
		metrics: opts.Metrics,
	}
	s.timeout.Store(int64(opts.Timeout))
	return s, nil
}

// Release closes the context and invalidates the handle. It is a no-op on a
// nil or already released sandbox and must not race with Execute.
func (s *Sandbox) Release() {
	if s == nil || !s.released.CompareAndSwap(false, true) {
		return
	}
	s.engine.Lock()
	s.ctx.Close()
	s.engine.Unlock()
	core.ClearState(s.handle)
	s.metrics.SandboxesActive.Dec()
	s.logger.Debug("sandbox released")
}

// Released reports whether Release has been called.
func (s *Sandbox) Released() bool {
	return s == nil || s.released.Load()
}

// SetBootstrapPath sets the directory bootstraps and modules are read from.
func (s *Sandbox) SetBootstrapPath(path string) {
	if s == nil {
		return
	}
	s.state.SetBootstrapPath(path)
}

// SetGasLimit sets the limit instruction.incr enforces; zero disables it.
func (s *Sandbox) SetGasLimit(limit uint64) {
	if s == nil {
		return
	}
	s.state.SetGasLimit(limit)
}

// SetTimeout replaces the execution deadline; non-positive values restore
// the default.
func (s *Sandbox) SetTimeout(d time.Duration) {
	if s == nil {
		return
	}
	if d <= 0 {
		d = DefaultTimeout
	}
	s.timeout.Store(int64(d))
}

// BootstrapPath returns the current bootstrap directory.
func (s *Sandbox) BootstrapPath() string {
	if s == nil {
		return ""
	}
	return s.state.BootstrapPath()
}

// GasUsed returns the gas counted so far; it never decreases.
func (s *Sandbox) GasUsed() uint64 {
	if s == nil {
		return 0
	}
	return s.state.GasUsed()
}

// GasLimit returns the gas limit, zero when unlimited.
func (s *Sandbox) GasLimit() uint64 {
	if s == nil {
		return 0
	}
	return s.state.GasLimit()
}

// Timeout returns the execution deadline.
func (s *Sandbox) Timeout() time.Duration {
	if s == nil {
		return 0
	}
	return time.Duration(s.timeout.Load())
}

// ID returns the identifier used in log fields.
func (s *Sandbox) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

// Handle returns the key of the sandbox's state in the core registry.
func (s *Sandbox) Handle() core.Handle {
	if s == nil {
		return 0
	}
	return s.handle
}
