package sandbox

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cryguy/sandbox/internal/core"
	"github.com/cryguy/sandbox/internal/metrics"
	"go.uber.org/zap"
)

// KilledMessage is the error of an execution stopped at its deadline.
const KilledMessage = "execution killed"

// execution is the state shared by the supervisor and the worker of one
// Execute call.
type execution struct {
	done      chan core.Outcome
	abandoned atomic.Bool
	running   atomic.Bool
	token     atomic.Uint64
}

// Execute compiles and runs program under the deadline and returns its
// outcome. Nothing escapes as a Go error or panic; a nil sandbox returns an
// empty outcome.
//
// Interrupts are best-effort: a program blocked inside a host native has no
// safe point and keeps running after the deadline is reported, holding the
// engine lock until it returns.
func (s *Sandbox) Execute(program string) core.Outcome {
	if s == nil {
		return core.Outcome{}
	}
	start := time.Now()
	ex := &execution{done: make(chan core.Outcome, 1)}
	go s.work(program, ex)

	timer := time.NewTimer(s.Timeout())
	defer timer.Stop()

	select {
	case out := <-ex.done:
		out.GasUsed = s.GasUsed()
		out.Logs = s.state.TakeLogs()
		out.Duration = time.Since(start)
		s.metrics.ObserveExecution(outcomeLabel(out), out.Duration, out.GasUsed)
		return out

	case <-timer.C:
		ex.abandoned.Store(true)
		if ex.running.Load() {
			s.engine.Interrupt(ex.token.Load())
		}
		elapsed := time.Since(start)
		s.logger.Warn(KilledMessage, zap.Int64("elapsed_ms", elapsed.Milliseconds()))
		out := core.Outcome{
			Error:    KilledMessage,
			GasUsed:  s.GasUsed(),
			Logs:     s.state.TakeLogs(),
			Duration: elapsed,
		}
		s.metrics.ObserveExecution(metrics.OutcomeKilled, elapsed, out.GasUsed)
		return out
	}
}

// work runs on its own goroutine and sends at most one outcome. When the
// supervisor gave up before the engine lock was obtained, the program is not
// run at all.
func (s *Sandbox) work(program string, ex *execution) {
	s.engine.Lock()
	defer s.engine.Unlock()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("execution panicked", zap.Any("panic", r))
			ex.done <- core.Outcome{Error: core.NewScriptError(fmt.Sprint(r)).Render()}
		}
	}()

	ex.token.Store(s.engine.ClearInterrupt())
	ex.running.Store(true)
	defer ex.running.Store(false)
	if ex.abandoned.Load() {
		return
	}

	// Drop lines left by an earlier killed run.
	s.state.TakeLogs()
	ex.done <- s.evaluate(program)
}

func (s *Sandbox) evaluate(program string) core.Outcome {
	script, err := s.ctx.Compile(ProgramName, program)
	if err != nil {
		return core.Outcome{Error: diagnose(err)}
	}
	v, err := s.ctx.Run(script)
	if errors.Is(err, core.ErrNullException) {
		return core.Outcome{}
	}
	if err != nil {
		return core.Outcome{Error: diagnose(err)}
	}
	value, structured := marshal(v)
	return core.Outcome{Value: value, IsStructured: structured}
}

// Check compiles program without running it and returns the rendered
// diagnostic, or "" when it compiles.
func (s *Sandbox) Check(program string) string {
	if s == nil || s.Released() {
		return ""
	}
	s.engine.Lock()
	defer s.engine.Unlock()
	s.engine.ClearInterrupt()
	if _, err := s.ctx.Compile(ProgramName, program); err != nil {
		return diagnose(err)
	}
	return ""
}

// diagnose renders err as an uncaught-exception report.
func diagnose(err error) string {
	var se *core.ScriptError
	if errors.As(err, &se) {
		return se.Render()
	}
	return core.NewScriptError(err.Error()).Render()
}

func outcomeLabel(o core.Outcome) string {
	switch {
	case o.Error != "":
		return metrics.OutcomeError
	case o.Value == "":
		return metrics.OutcomeEmpty
	case o.IsStructured:
		return metrics.OutcomeStructured
	default:
		return metrics.OutcomeValue
	}
}
