package sandbox

import (
	"github.com/cryguy/sandbox/internal/core"
	isandbox "github.com/cryguy/sandbox/internal/sandbox"
)

// Type aliases re-exporting internal types so that callers can use
// sandbox.Outcome, sandbox.Store, etc. without importing internal packages.

type Outcome = core.Outcome
type LogEntry = core.LogEntry
type EngineConfig = core.EngineConfig
type Engine = core.Engine
type Options = isandbox.Options
type Variant = isandbox.Variant
type Store = core.Store
type ChainState = core.ChainState
type ModuleResolver = core.ModuleResolver
type BlockInfo = core.BlockInfo
type TxInfo = core.TxInfo
type ContextInfo = core.ContextInfo
type Account = core.Account
type Permission = core.Permission

// Constants re-exported from internal/sandbox.
const (
	VariantCompiler      = isandbox.VariantCompiler
	VariantVM            = isandbox.VariantVM
	KilledMessage        = isandbox.KilledMessage
	DefaultTimeout       = isandbox.DefaultTimeout
	DefaultBootstrapPath = isandbox.DefaultBootstrapPath
)
