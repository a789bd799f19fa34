//go:build quickjs && !v8

package quickjs

// harnessJS is evaluated once per VM, right after __host_call is registered.
// It hides __host_call behind a closure, exposes __sbx_install to attach
// natives and __sbx_run to evaluate a program and describe its completion
// value or exception as JSON.
//
// Values are described as {k: typeof, s: String(v), j: JSON text}. A native
// reply is {v: JSON} for a value, {u: true} for undefined, {e: message, t: constructor} for
// a thrown error or {run: src} for a program to evaluate in the caller.
const harnessJS = `(function (g) {
  var call = g.__host_call;
  delete g.__host_call;
  var stringify = JSON.stringify, parse = JSON.parse;
  var indirect = eval;

  function describe(v) {
    if (v === null) return {k: 'null', s: 'null', j: 'null'};
    var t = typeof v, r = {k: t};
    if (t === 'undefined') return r;
    try { r.s = String(v); } catch (e) { r.s = '<string conversion failed>'; }
    if (t !== 'function' && t !== 'symbol' && t !== 'bigint') {
      try {
        var j = stringify(v);
        if (typeof j === 'string') r.j = j;
      } catch (e) {}
    }
    return r;
  }

  function dispatch(path, args) {
    var a = [];
    for (var i = 0; i < args.length; i++) a.push(describe(args[i]));
    var res = parse(call(path, stringify(a)));
    if (res.e !== undefined) {
      var ctor = (res.t && typeof g[res.t] === 'function') ? g[res.t] : Error;
      throw new ctor(res.e);
    }
    if (res.run !== undefined) return indirect(res.run);
    if (res.u) return undefined;
    return res.v;
  }

  function hidden(name, fn) {
    Object.defineProperty(g, name, {value: fn, writable: false, enumerable: false, configurable: false});
  }

  hidden('__sbx_install', function (object, name, path) {
    var target = g;
    if (object) {
      target = g[object];
      if (typeof target !== 'object' || target === null) {
        target = {};
        g[object] = target;
      }
    }
    target[name] = function () { return dispatch(path, arguments); };
  });

  hidden('__sbx_run', function (src) {
    try {
      return stringify({ok: true, v: describe(indirect(src))});
    } catch (e) {
      if (e === null) return '{"null":true}';
      var r = {ok: false, m: ''};
      try { r.m = String(e); } catch (x) { r.m = '<string conversion failed>'; }
      if (typeof e === 'object') {
        try { if (typeof e.stack === 'string') r.st = e.stack; } catch (x) {}
      }
      return stringify(r);
    }
  });
})(globalThis);
`
