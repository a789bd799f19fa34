//go:build v8

package sandbox

import (
	"github.com/cryguy/sandbox/internal/core"
	"github.com/cryguy/sandbox/internal/v8engine"
)

// Backend names the engine compiled into this build.
const Backend = "v8"

func newEngine(cfg core.EngineConfig) core.Engine {
	return v8engine.NewEngine(cfg)
}
