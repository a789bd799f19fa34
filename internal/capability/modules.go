package capability

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cryguy/sandbox/internal/core"
)

// ErrModuleNotFound is returned when no source exists for a module name.
var ErrModuleNotFound = errors.New("module not found")

// ErrInvalidModuleName is returned for names that are empty, absolute or
// escape the module directory.
var ErrInvalidModuleName = errors.New("invalid module name")

// moduleExts are tried in order when resolving a name without extension.
var moduleExts = []string{".js", ".mjs", ".ts"}

// Modules resolves require() names. Files under {base}/modules are looked
// up first, then sources registered with Add.
type Modules struct {
	mu  sync.RWMutex
	mem map[string]core.Module
}

var _ core.ModuleResolver = (*Modules)(nil)

// NewModules returns an empty resolver.
func NewModules() *Modules {
	return &Modules{mem: make(map[string]core.Module)}
}

// Add registers an in-memory module. path selects the source loader by its
// extension and defaults to name + ".js".
func (m *Modules) Add(name, path, source string) error {
	clean, err := CleanModuleName(name)
	if err != nil {
		return err
	}
	if path == "" {
		path = clean + ".js"
	}
	m.mu.Lock()
	m.mem[clean] = core.Module{Name: clean, Path: path, Source: source}
	m.mu.Unlock()
	return nil
}

// Resolve implements core.ModuleResolver.
func (m *Modules) Resolve(base, name string) (core.Module, error) {
	clean, err := CleanModuleName(name)
	if err != nil {
		return core.Module{}, err
	}

	if base != "" {
		dir := filepath.Join(base, "modules")
		candidates := []string{filepath.Join(dir, filepath.FromSlash(clean))}
		if filepath.Ext(clean) == "" {
			candidates = candidates[:0]
			for _, ext := range moduleExts {
				candidates = append(candidates, filepath.Join(dir, filepath.FromSlash(clean)+ext))
			}
		}
		for _, p := range candidates {
			data, err := os.ReadFile(p)
			if err == nil {
				return core.Module{Name: clean, Path: p, Source: string(data)}, nil
			}
			if !errors.Is(err, os.ErrNotExist) {
				return core.Module{}, fmt.Errorf("reading module %s: %w", clean, err)
			}
		}
	}

	if m != nil {
		m.mu.RLock()
		mod, ok := m.mem[clean]
		m.mu.RUnlock()
		if ok {
			return mod, nil
		}
	}
	return core.Module{}, fmt.Errorf("%w: %s", ErrModuleNotFound, name)
}

// CleanModuleName validates a require() name and strips a leading "./".
func CleanModuleName(name string) (string, error) {
	n := strings.TrimPrefix(name, "./")
	switch {
	case n == "":
		return "", fmt.Errorf("%w: empty", ErrInvalidModuleName)
	case strings.HasPrefix(n, "/"), filepath.IsAbs(n), strings.Contains(n, "\\"):
		return "", fmt.Errorf("%w: %s is absolute", ErrInvalidModuleName, name)
	}
	for _, part := range strings.Split(n, "/") {
		if part == ".." || part == "." || part == "" {
			return "", fmt.Errorf("%w: %s", ErrInvalidModuleName, name)
		}
	}
	return n, nil
}
