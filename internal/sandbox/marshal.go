package sandbox

import "github.com/cryguy/sandbox/internal/core"

// marshal converts a program's completion value. Strings, numbers and
// booleans are returned as text; other values as JSON with structured set.
// Values without a JSON form (undefined, functions, symbols, BigInt, cyclic
// objects) yield an empty result.
func marshal(v core.Value) (string, bool) {
	if v == nil {
		return "", false
	}
	kind := v.Kind()
	if kind.Primitive() {
		return v.String(), false
	}
	if kind == core.KindUndefined {
		return "", false
	}
	s, err := v.JSON()
	if err != nil || s == "" {
		return "", false
	}
	return s, true
}
