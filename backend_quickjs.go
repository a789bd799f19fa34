//go:build quickjs && !v8

package sandbox

import (
	"github.com/cryguy/sandbox/internal/core"
	"github.com/cryguy/sandbox/internal/quickjs"
)

// Backend names the engine compiled into this build.
const Backend = "quickjs"

func newEngine(cfg core.EngineConfig) core.Engine {
	return quickjs.NewEngine(cfg)
}
