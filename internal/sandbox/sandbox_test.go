package sandbox

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cryguy/sandbox/internal/capability"
	"github.com/cryguy/sandbox/internal/chain"
	"github.com/cryguy/sandbox/internal/core"
	"github.com/cryguy/sandbox/internal/gojaengine"
	"github.com/cryguy/sandbox/internal/metrics"
	"github.com/cryguy/sandbox/internal/storage"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSandbox(t *testing.T, opts Options) *Sandbox {
	t.Helper()
	s, err := New(gojaengine.NewEngine(core.EngineConfig{MaxCallStackSize: 1024}), opts)
	require.NoError(t, err)
	t.Cleanup(s.Release)
	return s
}

func TestExecuteValues(t *testing.T) {
	s := newTestSandbox(t, Options{})
	tests := []struct {
		name       string
		program    string
		value      string
		structured bool
	}{
		{"number", "1+1", "2", false},
		{"string", "'hello'", "hello", false},
		{"boolean", "1 < 2", "true", false},
		{"object", "({a:1})", `{"a":1}`, true},
		{"array", "[1, 'two', null]", `[1,"two",null]`, true},
		{"null", "null", "null", true},
		{"undefined", "undefined", "", false},
		{"empty string", "''", "", false},
		{"function", "(function() {})", "", false},
		{"symbol", "Symbol('x')", "", false},
		{"bigint", "10n", "", false},
		{"object with bigint", "({n: 10n})", "", false},
		{"cyclic", "var o = {}; o.o = o; o", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := s.Execute(tt.program)
			assert.Empty(t, out.Error)
			assert.Equal(t, tt.value, out.Value)
			assert.Equal(t, tt.structured, out.IsStructured)
		})
	}
}

func TestExecuteCompileError(t *testing.T) {
	s := newTestSandbox(t, Options{})
	out := s.Execute("var a = ;")
	assert.Empty(t, out.Value)
	assert.True(t, strings.HasPrefix(out.Error, "Uncaught exception: SyntaxError"), out.Error)
	assert.Contains(t, out.Error, "\nat _default_name.js:1:")
	assert.Contains(t, out.Error, "\n  var a = ;")
}

func TestCheck(t *testing.T) {
	s := newTestSandbox(t, Options{})
	assert.Empty(t, s.Check("while (true) {}"))
	assert.True(t, strings.HasPrefix(s.Check("var a = ;"), "Uncaught exception: SyntaxError"))
	assert.Empty(t, s.Check("throw new Error('not run')"))

	var none *Sandbox
	assert.Empty(t, none.Check("var a = ;"))
}

func TestExecuteRuntimeError(t *testing.T) {
	s := newTestSandbox(t, Options{})
	out := s.Execute("var x = 1;\nthrow new Error('x')")
	assert.Empty(t, out.Value)
	assert.True(t, strings.HasPrefix(out.Error, "Uncaught exception: Error: x\nat _default_name.js:2:"), out.Error)
	assert.Contains(t, out.Error, "\n  throw new Error('x')\n  ")
	assert.Contains(t, out.Error, "^")
	assert.Contains(t, out.Error, "\nStack tree: \n")
}

func TestExecuteThrowNull(t *testing.T) {
	s := newTestSandbox(t, Options{})
	out := s.Execute("throw null")
	assert.True(t, out.Empty())
	assert.False(t, out.IsStructured)

	for _, src := range []string{"throw 'null'", "var s = 'null'; throw s"} {
		out = s.Execute(src)
		assert.True(t, strings.HasPrefix(out.Error, "Uncaught exception: null"), "%s: %q", src, out.Error)
		assert.Empty(t, out.Value)
	}
}

func TestExecuteTimeout(t *testing.T) {
	s := newTestSandbox(t, Options{Timeout: 100 * time.Millisecond})

	start := time.Now()
	out := s.Execute("while(true){}")
	elapsed := time.Since(start)

	assert.Equal(t, KilledMessage, out.Error)
	assert.Empty(t, out.Value)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)

	// The sandbox is usable once the killed run has unwound.
	out = s.Execute("40 + 2")
	assert.Empty(t, out.Error)
	assert.Equal(t, "42", out.Value)
}

func TestExecuteDefaultTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the default deadline")
	}
	s := newTestSandbox(t, Options{})
	assert.Equal(t, time.Second, s.Timeout())

	start := time.Now()
	out := s.Execute("for (;;) {}")
	assert.Equal(t, KilledMessage, out.Error)
	assert.InDelta(t, float64(time.Second), float64(time.Since(start)), float64(500*time.Millisecond))
}

func TestExecuteNilSandbox(t *testing.T) {
	var s *Sandbox
	assert.True(t, s.Execute("1+1").Empty())
	s.Load(VariantVM)
	s.Release()
	s.SetGasLimit(5)
	s.SetBootstrapPath("x")
	assert.Zero(t, s.GasUsed())
	assert.Zero(t, s.GasLimit())
	assert.Empty(t, s.BootstrapPath())
	assert.True(t, s.Released())
}

func TestGasMetering(t *testing.T) {
	s := newTestSandbox(t, Options{})
	out := s.Execute("instruction.incr(3); instruction.incr(); instruction.count()")
	assert.Empty(t, out.Error)
	assert.Equal(t, "4", out.Value)
	assert.Equal(t, uint64(4), out.GasUsed)

	s.SetGasLimit(10)
	out = s.Execute("instruction.incr(5); instruction.incr(5); 'unreachable'")
	assert.Contains(t, out.Error, "gas limit exceeded")
	assert.Equal(t, uint64(14), out.GasUsed)
	assert.Equal(t, uint64(14), s.GasUsed())

	out = s.Execute("instruction.incr(-1)")
	assert.Contains(t, out.Error, "invalid count")
	out = s.Execute("instruction.incr(Infinity)")
	assert.Contains(t, out.Error, "invalid count")
	assert.Equal(t, uint64(14), s.GasUsed())
}

func TestGasMonotonic(t *testing.T) {
	s := newTestSandbox(t, Options{Timeout: 100 * time.Millisecond})
	programs := []string{
		"instruction.incr(2); 1",
		"throw new Error('after charging')",
		"instruction.incr(1); while (true) {}",
		"var = broken",
		"instruction.incr(3); instruction.count()",
	}
	var before uint64
	for _, p := range programs {
		out := s.Execute(p)
		assert.GreaterOrEqual(t, out.GasUsed, before, p)
		assert.GreaterOrEqual(t, s.GasUsed(), out.GasUsed, p)
		before = out.GasUsed
	}
	assert.Equal(t, uint64(6), before)
}

func TestExecuteIdempotent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vm.js"),
		[]byte("var counter = 0; function next() { return ++counter; }"), 0644))

	tests := []struct {
		name    string
		program string
	}{
		{"scalar", "next() + 1"},
		{"string", "'n' + next()"},
		{"structured", "({n: next(), list: [1, 'two', null]})"},
		{"null", "null"},
		{"undefined", "next(); undefined"},
		{"unserializable", "({n: 10n})"},
		{"null throw", "throw null"},
		{"error", "throw new Error('same ' + next())"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var outs []core.Outcome
			for i := 0; i < 2; i++ {
				s := newTestSandbox(t, Options{BootstrapPath: dir})
				s.Load(VariantVM)
				outs = append(outs, s.Execute(tt.program))
			}
			assert.Equal(t, outs[0].Value, outs[1].Value)
			assert.Equal(t, outs[0].IsStructured, outs[1].IsStructured)
			assert.Equal(t, outs[0].Error, outs[1].Error)
		})
	}
}

func TestGasLimitOption(t *testing.T) {
	s := newTestSandbox(t, Options{GasLimit: 2})
	assert.Equal(t, uint64(2), s.GasLimit())
	out := s.Execute("try { instruction.incr(3) } catch (e) { e.message }")
	assert.Equal(t, "gas limit exceeded", out.Value)
}

func TestNativePrimitives(t *testing.T) {
	s := newTestSandbox(t, Options{})

	out := s.Execute("_native_log('hello'); 1")
	assert.Equal(t, "1", out.Value)
	require.Len(t, out.Logs, 1)
	assert.Equal(t, "native_log: hello", out.Logs[0].Message)

	out = s.Execute("try { _native_log(5) } catch (e) { e.message }")
	assert.Equal(t, "_native_log empty log", out.Value)

	out = s.Execute("_native_run('6 * 7', 'inner.js')")
	assert.Equal(t, "42", out.Value)

	out = s.Execute("try { _native_run('1') } catch (e) { e.message }")
	assert.Equal(t, "_native_run empty script.", out.Value)

	out = s.Execute("_native_run('throw new Error(\"deep\")', 'inner.js')")
	assert.Contains(t, out.Error, "Error: deep")
}

func TestConsoleCapture(t *testing.T) {
	s := newTestSandbox(t, Options{})
	out := s.Execute(`
console.log('a', 1, {b: 2});
console.warn('careful');
console.count(); console.count();
console.group('g'); console.info('inside'); console.groupEnd();
console.assert(false, 'nope');
'done'`)
	assert.Equal(t, "done", out.Value)

	var lines []string
	for _, l := range out.Logs {
		lines = append(lines, l.Level+":"+l.Message)
	}
	assert.Equal(t, []string{
		`log:a 1 {"b":2}`,
		"warn:careful",
		"log:default: 1",
		"log:default: 2",
		"log:g",
		"info:  inside",
		"error:Assertion failed: nope",
	}, lines)

	out = s.Execute("1")
	assert.Empty(t, out.Logs, "logs are per execution")
}

func TestStorageCapability(t *testing.T) {
	store := storage.NewMemory()
	a := newTestSandbox(t, Options{Store: store, Contract: "token"})
	b := newTestSandbox(t, Options{Store: store, Contract: "other"})

	out := a.Execute(`
storage.put('supply', '100');
storage.mapPut('balances', 'alice', '60');
storage.mapPut('balances', 'bob', '40');
[storage.get('supply'), storage.get('missing'), storage.has('supply'),
 storage.mapKeys('balances'), storage.mapLen('balances'), storage.mapGet('balances', 'carol')]`)
	assert.Empty(t, out.Error)
	assert.Equal(t, `["100",null,true,["alice","bob"],2,null]`, out.Value)

	out = a.Execute("storage.get('supply')")
	assert.Equal(t, "100", out.Value, "writes persist across executions")

	out = b.Execute("[storage.get('supply'), storage.globalGet('token', 'supply'), storage.globalMapGet('token', 'balances', 'bob')]")
	assert.Equal(t, `[null,"100","40"]`, out.Value)

	out = a.Execute("storage.del('supply'); storage.mapDel('balances', 'bob'); [storage.has('supply'), storage.mapHas('balances', 'bob')]")
	assert.Equal(t, `[false,false]`, out.Value)

	out = a.Execute("storage.put('k', 5)")
	assert.Contains(t, out.Error, "value must be a string")
}

func TestStorageNotConfigured(t *testing.T) {
	s := newTestSandbox(t, Options{})
	out := s.Execute("storage.get('k')")
	assert.Contains(t, out.Error, "storage is not configured")
}

func TestBlockchainCapability(t *testing.T) {
	c, err := chain.ParseFixture([]byte(`
block: {number: 7, witness: w}
tx: {hash: h1, publisher: alice, signers: [alice-key]}
context: {contract_name: token, caller: bob, publisher: alice}
accounts:
  - id: alice
    permissions:
      active: {threshold: 1, users: [{id: alice-key, is_key_pair: true, weight: 1}]}
`))
	require.NoError(t, err)
	s := newTestSandbox(t, Options{Chain: c})

	out := s.Execute("JSON.parse(blockchain.blockInfo()).number")
	assert.Equal(t, "7", out.Value)
	out = s.Execute("JSON.parse(blockchain.txInfo()).hash")
	assert.Equal(t, "h1", out.Value)
	out = s.Execute("[blockchain.contractName(), blockchain.caller(), blockchain.publisher()]")
	assert.Equal(t, `["token","bob","alice"]`, out.Value)
	out = s.Execute("[blockchain.requireAuth('alice', 'active'), blockchain.requireAuth('alice'), blockchain.requireAuth('bob', 'active')]")
	assert.Equal(t, `[true,true,false]`, out.Value)
}

func TestRequire(t *testing.T) {
	dir := t.TempDir()
	modDir := filepath.Join(dir, "modules")
	require.NoError(t, os.MkdirAll(modDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(modDir, "math.js"),
		[]byte("export function add(a, b) { return a + b }\nexport const name = 'math'\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(modDir, "typed.ts"),
		[]byte("export const double = (n: number): number => n * 2\n"), 0644))

	mods := capability.NewModules()
	require.NoError(t, mods.Add("counter", "", "var n = 0; module.exports = { next: function() { return ++n } }"))
	require.NoError(t, mods.Add("broken", "", "export const = 1"))

	s := newTestSandbox(t, Options{BootstrapPath: dir, Modules: mods})

	out := s.Execute("require('math').add(2, 3) + ':' + require('./math').name")
	assert.Empty(t, out.Error)
	assert.Equal(t, "5:math", out.Value)

	out = s.Execute("require('typed').double(21)")
	assert.Equal(t, "42", out.Value)

	out = s.Execute("require('counter').next(); require('counter').next()")
	assert.Equal(t, "2", out.Value, "modules are evaluated once")

	out = s.Execute("require('math') === require('math')")
	assert.Equal(t, "true", out.Value)

	require.NoError(t, os.WriteFile(filepath.Join(modDir, "tally.js"),
		[]byte("globalThis.loads = (globalThis.loads || 0) + 1; module.exports = {}\n"), 0644))
	out = s.Execute("var a = require('tally'), b = require('tally.js'), c = require('./tally'); [loads, a === b, b === c]")
	assert.Empty(t, out.Error)
	assert.Equal(t, "[1,true,true]", out.Value, "one module under every spelling of its name")

	for _, name := range []string{"../etc/passwd", "/abs", ""} {
		out = s.Execute("require(" + quote(name) + ")")
		assert.Contains(t, out.Error, "invalid module name", name)
	}

	out = s.Execute("require('nope')")
	assert.Contains(t, out.Error, "module not found")

	out = s.Execute("require('broken')")
	assert.Contains(t, out.Error, "SyntaxError")
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "\\'") + "'"
}

func TestLoadBootstrap(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vm.js"), []byte("var bootVariant = 'vm';"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "compile_vm.js"), []byte("var bootVariant = 'compiler';"), 0644))

	m := metrics.NewNop()
	s := newTestSandbox(t, Options{BootstrapPath: dir, Metrics: m})
	assert.Equal(t, dir, s.BootstrapPath())

	s.Load(VariantVM)
	assert.Equal(t, "vm", s.Execute("bootVariant").Value)

	s.Load(VariantCompiler)
	assert.Equal(t, "compiler", s.Execute("bootVariant").Value)

	s.Load(Variant(7))
	assert.Equal(t, "vm", s.Execute("bootVariant").Value, "any non-zero variant loads vm.js")
	assert.Equal(t, 3.0, testutil.ToFloat64(m.BootstrapLoads.WithLabelValues("ok")))
}

func TestLoadBootstrapFailuresAreSilent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vm.js"), []byte("var = broken"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "compile_vm.js"), []byte("throw new Error('boot')"), 0644))

	m := metrics.NewNop()
	s := newTestSandbox(t, Options{BootstrapPath: filepath.Join(dir, "missing"), Metrics: m})
	s.Load(VariantVM)
	s.SetBootstrapPath(dir)
	s.Load(VariantVM)
	s.Load(VariantCompiler)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.BootstrapLoads.WithLabelValues("read")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BootstrapLoads.WithLabelValues("compile")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BootstrapLoads.WithLabelValues("run")))
	assert.Equal(t, "2", s.Execute("1+1").Value)
}

func TestDefaults(t *testing.T) {
	s := newTestSandbox(t, Options{})
	assert.Equal(t, DefaultBootstrapPath, s.BootstrapPath())
	assert.Equal(t, DefaultTimeout, s.Timeout())
	assert.Zero(t, s.GasUsed())
	assert.Zero(t, s.GasLimit())
	assert.NotEmpty(t, s.ID())
	assert.NotZero(t, s.Handle())

	s.SetTimeout(0)
	assert.Equal(t, DefaultTimeout, s.Timeout())
}

func TestRelease(t *testing.T) {
	m := metrics.NewNop()
	s, err := New(gojaengine.NewEngine(core.EngineConfig{}), Options{Metrics: m})
	require.NoError(t, err)
	h := s.Handle()
	assert.NotNil(t, core.GetState(h))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SandboxesActive))

	s.Release()
	s.Release()
	assert.True(t, s.Released())
	assert.Nil(t, core.GetState(h))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SandboxesActive))

	out := s.Execute("1")
	assert.Contains(t, out.Error, "context closed")
}

func TestNewRequiresEngine(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)
}

func TestSharedEngineSerializes(t *testing.T) {
	engine := gojaengine.NewEngine(core.EngineConfig{})
	var boxes []*Sandbox
	for i := 0; i < 4; i++ {
		s, err := New(engine, Options{})
		require.NoError(t, err)
		defer s.Release()
		boxes = append(boxes, s)
	}

	var wg sync.WaitGroup
	results := make([]core.Outcome, len(boxes))
	for i, s := range boxes {
		wg.Add(1)
		go func(i int, s *Sandbox) {
			defer wg.Done()
			results[i] = s.Execute("var acc = 0; for (var j = 0; j < 1000; j++) { acc += j } acc")
		}(i, s)
	}
	wg.Wait()
	for _, out := range results {
		assert.Equal(t, "499500", out.Value)
	}
}

func TestExecutionMetrics(t *testing.T) {
	m := metrics.NewNop()
	s := newTestSandbox(t, Options{Metrics: m, Timeout: 50 * time.Millisecond})
	s.Execute("1")
	s.Execute("({})")
	s.Execute("throw new Error('e')")
	s.Execute("undefined")
	s.Execute("while (true) {}")

	for _, label := range []string{
		metrics.OutcomeValue, metrics.OutcomeStructured, metrics.OutcomeError,
		metrics.OutcomeEmpty, metrics.OutcomeKilled,
	} {
		assert.Equal(t, 1.0, testutil.ToFloat64(m.Executions.WithLabelValues(label)), label)
	}
}
