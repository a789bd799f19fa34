//go:build quickjs && !v8

package quickjs

import (
	"encoding/json"
	"strconv"

	"github.com/cryguy/sandbox/internal/core"
)

// wireValue is a script value as described by the harness: its typeof, its
// string conversion and, when it has one, its JSON text. It is a snapshot,
// so it stays valid after the VM moves on.
type wireValue struct {
	K string  `json:"k"`
	S string  `json:"s"`
	J *string `json:"j"`
}

var kinds = map[string]core.ValueKind{
	"undefined": core.KindUndefined,
	"null":      core.KindNull,
	"boolean":   core.KindBoolean,
	"number":    core.KindNumber,
	"string":    core.KindString,
	"bigint":    core.KindBigInt,
	"symbol":    core.KindSymbol,
	"function":  core.KindFunction,
	"object":    core.KindObject,
}

func (w *wireValue) Kind() core.ValueKind {
	if k, ok := kinds[w.K]; ok {
		return k
	}
	return core.KindObject
}

func (w *wireValue) String() string {
	if w.K == "undefined" {
		return "undefined"
	}
	return w.S
}

func (w *wireValue) JSON() (string, error) {
	if w.J == nil {
		return "", core.ErrNotSerializable
	}
	return *w.J, nil
}

func (w *wireValue) Export() any {
	switch w.Kind() {
	case core.KindUndefined, core.KindNull:
		return nil
	case core.KindBoolean:
		return w.S == "true"
	case core.KindNumber:
		f, err := strconv.ParseFloat(w.S, 64)
		if err != nil {
			return nil
		}
		return f
	case core.KindString, core.KindBigInt, core.KindSymbol, core.KindFunction:
		return w.S
	}
	if w.J == nil {
		return w.S
	}
	var v any
	if err := json.Unmarshal([]byte(*w.J), &v); err != nil {
		return w.S
	}
	return v
}
