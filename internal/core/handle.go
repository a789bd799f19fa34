package core

import (
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const MaxLogEntries = 1000
const MaxLogMessageSize = 4096

// Handle identifies the host state of one sandbox. Contexts carry it in
// place of a pointer so that a released sandbox can never be reached from a
// native call.
type Handle uint64

func (h Handle) String() string {
	return strconv.FormatUint(uint64(h), 10)
}

// ParseHandle parses the decimal form produced by Handle.String.
func ParseHandle(s string) Handle {
	if s == "" || s == "undefined" {
		return 0
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return Handle(n)
}

// State is the host-side state natives reach through a Handle. The gas
// counters are atomics so the coordinator can read them while a script is
// still running.
type State struct {
	ID       string
	Contract string
	Store    Store
	Chain    ChainState
	Modules  ModuleResolver
	Logger   *zap.Logger

	gasUsed  atomic.Uint64
	gasLimit atomic.Uint64

	mu            sync.Mutex
	bootstrapPath string
	logs          []LogEntry
	maxLogs       int
}

// StateOptions configures NewState.
type StateOptions struct {
	ID            string
	Contract      string
	BootstrapPath string
	Store         Store
	Chain         ChainState
	Modules       ModuleResolver
	Logger        *zap.Logger
	MaxLogEntries int
}

var (
	handleCounter atomic.Uint64
	states        sync.Map // Handle -> *State
)

// NewState registers a new state and returns its handle.
func NewState(opts StateOptions) Handle {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxLogs := opts.MaxLogEntries
	if maxLogs <= 0 {
		maxLogs = MaxLogEntries
	}
	h := Handle(handleCounter.Add(1))
	states.Store(h, &State{
		ID:            opts.ID,
		Contract:      opts.Contract,
		Store:         opts.Store,
		Chain:         opts.Chain,
		Modules:       opts.Modules,
		Logger:        logger,
		bootstrapPath: opts.BootstrapPath,
		maxLogs:       maxLogs,
	})
	return h
}

// GetState returns the state registered under h, or nil.
func GetState(h Handle) *State {
	v, ok := states.Load(h)
	if !ok {
		return nil
	}
	return v.(*State)
}

// ClearState unregisters h and returns its state. Natives running after this
// observe ErrInvalidHandle.
func ClearState(h Handle) *State {
	v, ok := states.LoadAndDelete(h)
	if !ok {
		return nil
	}
	return v.(*State)
}

// GasUsed returns the cumulative gas counter.
func (s *State) GasUsed() uint64 { return s.gasUsed.Load() }

// GasLimit returns the gas ceiling, 0 when unbounded.
func (s *State) GasLimit() uint64 { return s.gasLimit.Load() }

// SetGasLimit replaces the gas ceiling.
func (s *State) SetGasLimit(limit uint64) { s.gasLimit.Store(limit) }

// ChargeGas adds n to the counter and reports ErrGasLimitExceeded when a
// limit is set and the new total passes it. The charge is kept either way;
// the counter saturates instead of wrapping.
func (s *State) ChargeGas(n uint64) (uint64, error) {
	var used uint64
	for {
		old := s.gasUsed.Load()
		used = old + n
		if used < old {
			used = math.MaxUint64
		}
		if s.gasUsed.CompareAndSwap(old, used) {
			break
		}
	}
	if limit := s.gasLimit.Load(); limit > 0 && used > limit {
		return used, ErrGasLimitExceeded
	}
	return used, nil
}

// BootstrapPath returns the directory bootstrap programs and modules are
// loaded from.
func (s *State) BootstrapPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bootstrapPath
}

// SetBootstrapPath replaces the bootstrap directory.
func (s *State) SetBootstrapPath(p string) {
	s.mu.Lock()
	s.bootstrapPath = p
	s.mu.Unlock()
}

// AddLog captures a console line. Entries past the limit are dropped and long
// messages are truncated.
func (s *State) AddLog(level, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.logs) >= s.maxLogs {
		return
	}
	if len(message) > MaxLogMessageSize {
		message = message[:MaxLogMessageSize] + "...(truncated)"
	}
	s.logs = append(s.logs, LogEntry{
		Level:   level,
		Message: message,
		Time:    time.Now(),
	})
}

// TakeLogs returns the captured lines and resets the buffer.
func (s *State) TakeLogs() []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	logs := s.logs
	s.logs = nil
	return logs
}
