package capability

import (
	"errors"

	"github.com/cryguy/sandbox/internal/core"
)

var (
	errEmptyLog    = errors.New("_native_log empty log")
	errEmptyScript = errors.New("_native_run empty script.")
)

// RegisterPrimitives attaches _native_log and _native_run.
func RegisterPrimitives(t *core.Template) {
	t.Func("_native_log", nativeLog)
	t.Func("_native_run", nativeRun)
}

func nativeLog(c *core.Call) (any, error) {
	msg, ok := c.StringArg(0)
	if !ok {
		return nil, errEmptyLog
	}
	st, err := c.State()
	if err != nil {
		return nil, err
	}
	st.Logger.Info("native_log: " + msg)
	st.AddLog("log", "native_log: "+msg)
	return nil, nil
}

// nativeRun compiles the first argument under the name given as the second
// and runs it in the calling context.
func nativeRun(c *core.Call) (any, error) {
	name, ok := c.StringArg(1)
	if !ok {
		return nil, errEmptyScript
	}
	src := c.Arg(0).String()
	return c.Run(name, src)
}
