package core

// EngineConfig holds per-engine limits applied when an engine instance is
// created.
type EngineConfig struct {
	MemoryLimitMB    int // heap limit for QuickJS and V8, 0 means engine default
	MaxCallStackSize int // goja call depth limit, 0 means engine default
}
