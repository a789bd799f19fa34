//go:build !v8 && !quickjs

package sandbox

import (
	"github.com/cryguy/sandbox/internal/core"
	"github.com/cryguy/sandbox/internal/gojaengine"
)

// Backend names the engine compiled into this build.
const Backend = "goja"

func newEngine(cfg core.EngineConfig) core.Engine {
	return gojaengine.NewEngine(cfg)
}
