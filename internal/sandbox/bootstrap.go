package sandbox

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Variant selects the bootstrap program.
type Variant int

const (
	// VariantCompiler loads compile_vm.js.
	VariantCompiler Variant = 0
	// VariantVM loads vm.js. Any non-zero variant selects it.
	VariantVM Variant = 1
)

// File returns the bootstrap file name of the variant.
func (v Variant) File() string {
	if v == VariantCompiler {
		return "compile_vm.js"
	}
	return "vm.js"
}

// Load runs the bootstrap program of variant from the bootstrap directory.
// Failures are not reported to the caller; they are logged at debug level
// and counted.
func (s *Sandbox) Load(variant Variant) {
	if s == nil || s.Released() {
		return
	}
	path := filepath.Join(s.BootstrapPath(), variant.File())
	log := s.logger.With(zap.String("bootstrap", path))

	data, err := os.ReadFile(path)
	if err != nil {
		log.Debug("bootstrap read failed", zap.Error(err))
		s.metrics.ObserveBootstrap("read")
		return
	}

	s.engine.Lock()
	defer s.engine.Unlock()
	s.engine.ClearInterrupt()

	script, err := s.ctx.Compile(path, string(data))
	if err != nil {
		log.Debug("bootstrap compile failed", zap.Error(err))
		s.metrics.ObserveBootstrap("compile")
		return
	}
	if _, err := s.ctx.Run(script); err != nil {
		log.Debug("bootstrap run failed", zap.Error(err))
		s.metrics.ObserveBootstrap("run")
		return
	}
	s.metrics.ObserveBootstrap("ok")
}
