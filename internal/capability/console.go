package capability

import (
	"strings"

	"github.com/cryguy/sandbox/internal/core"
	"go.uber.org/zap"
)

var consoleLevels = []string{"log", "info", "warn", "error", "debug"}

// RegisterConsole attaches console.log, info, warn, error and debug as
// natives capturing into the sandbox log, plus the extended methods as a
// prelude built on top of them.
func RegisterConsole(t *core.Template) {
	for _, level := range consoleLevels {
		t.Method("console", level, consoleFunc(level))
	}
	t.Prelude("console_ext.js", consoleExtJS)
}

func consoleFunc(level string) core.NativeFunc {
	return func(c *core.Call) (any, error) {
		st, err := c.State()
		if err != nil {
			return nil, err
		}
		msg := formatArgs(c.Args)
		st.AddLog(level, msg)

		logger := st.Logger.Named("script")
		switch level {
		case "warn":
			logger.Warn(msg)
		case "error":
			logger.Error(msg)
		case "debug":
			logger.Debug(msg)
		default:
			logger.Info(msg, zap.String("level", level))
		}
		return nil, nil
	}
}

// formatArgs joins arguments with spaces. Objects are rendered as JSON
// when they serialize, otherwise with their own string conversion.
func formatArgs(args []core.Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = formatArg(a)
	}
	return strings.Join(parts, " ")
}

func formatArg(v core.Value) string {
	if v == nil {
		return "undefined"
	}
	if v.Kind() == core.KindObject {
		if s, err := v.JSON(); err == nil {
			return s
		}
	}
	return v.String()
}

const consoleExtJS = `
(function() {
var timers = {};
var counters = {};
var depth = 0;

function indent(args) {
	if (depth === 0) return args;
	var pad = new Array(depth + 1).join('  ');
	args = Array.prototype.slice.call(args);
	args[0] = pad + (args.length ? args[0] : '');
	return args;
}

['log', 'info', 'warn', 'error', 'debug'].forEach(function(lvl) {
	var native = console[lvl];
	console[lvl] = function() {
		return native.apply(console, indent(arguments));
	};
});

console.time = function(label) {
	timers[label || 'default'] = Date.now();
};
console.timeEnd = function(label) {
	var l = label || 'default';
	var start = timers[l];
	if (start === undefined) { console.warn('Timer "' + l + '" does not exist'); return; }
	delete timers[l];
	console.log(l + ': ' + (Date.now() - start) + 'ms');
};
console.count = function(label) {
	var l = label || 'default';
	counters[l] = (counters[l] || 0) + 1;
	console.log(l + ': ' + counters[l]);
};
console.countReset = function(label) {
	counters[label || 'default'] = 0;
};
console.assert = function(cond) {
	if (!cond) {
		var args = Array.prototype.slice.call(arguments, 1);
		if (args.length > 0) {
			console.error.apply(console, ['Assertion failed:'].concat(args));
		} else {
			console.error('Assertion failed');
		}
	}
};
console.table = function(data) {
	console.log(JSON.stringify(data, null, 2));
};
console.dir = function(obj) {
	console.log(JSON.stringify(obj, null, 2));
};
console.trace = function() {
	var args = Array.prototype.slice.call(arguments);
	console.log.apply(console, ['Trace:'].concat(args));
};
console.group = function(label) {
	if (label !== undefined) console.log(label);
	depth++;
};
console.groupEnd = function() {
	if (depth > 0) depth--;
};
})();
`
