package capability

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cryguy/sandbox/internal/core"
	"github.com/evanw/esbuild/pkg/api"
	"go.uber.org/zap"
)

// RegisterRequire attaches the require loader. The native returns the
// module's wrapper function; the prelude replaces it with a caching require
// that evaluates each module once, keyed by the id _require_id resolves.
func RegisterRequire(t *core.Template) {
	t.Func("require", requireNative)
	t.Func("_require_id", requireIDNative)
	t.Prelude("require.js", requireJS)
}

func resolveModule(c *core.Call) (*core.State, core.Module, error) {
	name, ok := c.StringArg(0)
	if !ok {
		return nil, core.Module{}, errors.New("require: module name must be a string")
	}
	st, err := c.State()
	if err != nil {
		return nil, core.Module{}, err
	}

	var resolver core.ModuleResolver = (*Modules)(nil)
	if st.Modules != nil {
		resolver = st.Modules
	}
	mod, err := resolver.Resolve(st.BootstrapPath(), name)
	if err != nil {
		return nil, core.Module{}, err
	}
	return st, mod, nil
}

// ModuleID names a resolved module independently of how it was required:
// a file under base's modules directory by its relative path, anything else
// by its path.
func ModuleID(base string, mod core.Module) string {
	if base != "" {
		rel, err := filepath.Rel(filepath.Join(base, "modules"), mod.Path)
		if err == nil && filepath.IsLocal(rel) {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(mod.Path)
}

func requireIDNative(c *core.Call) (any, error) {
	st, mod, err := resolveModule(c)
	if err != nil {
		return nil, err
	}
	return ModuleID(st.BootstrapPath(), mod), nil
}

func requireNative(c *core.Call) (any, error) {
	st, mod, err := resolveModule(c)
	if err != nil {
		return nil, err
	}

	code, err := TransformModule(mod)
	if err != nil {
		return nil, err
	}
	st.Logger.Debug("module loaded", zap.String("module", mod.Name), zap.String("path", mod.Path))

	file := strings.TrimSuffix(mod.Name, filepath.Ext(mod.Name)) + ".js"
	return c.Run(file, "(function (exports, require, module, __filename, __dirname) {"+code+"\n})")
}

// TransformModule converts ES module or TypeScript source into CommonJS that
// runs inside the require wrapper.
func TransformModule(mod core.Module) (string, error) {
	loader := api.LoaderJS
	if filepath.Ext(mod.Path) == ".ts" {
		loader = api.LoaderTS
	}
	result := api.Transform(mod.Source, api.TransformOptions{
		Format:     api.FormatCommonJS,
		Target:     api.ES2020,
		Loader:     loader,
		Sourcefile: mod.Name,
	})
	if len(result.Errors) > 0 {
		msg := result.Errors[0]
		if loc := msg.Location; loc != nil {
			return "", fmt.Errorf("SyntaxError: %s (%s:%d:%d)", msg.Text, loc.File, loc.Line, loc.Column+1)
		}
		return "", fmt.Errorf("SyntaxError: %s", msg.Text)
	}
	return string(result.Code), nil
}

const requireJS = `
(function() {
	var load = globalThis.require, resolve = globalThis._require_id;
	var cache = Object.create(null);
	function require(name) {
		if (typeof name !== 'string') return load(name);
		var key = resolve(name);
		var cached = cache[key];
		if (cached) return cached.exports;
		var wrapper = load(name);
		var module = { id: key, exports: {} };
		cache[key] = module;
		try {
			wrapper.call(module.exports, module.exports, require, module, key, '');
		} catch (e) {
			delete cache[key];
			throw e;
		}
		return module.exports;
	}
	globalThis.require = require;
})();
`
