package gojaengine

import (
	"fmt"
	"reflect"

	"github.com/cryguy/sandbox/internal/core"
	"github.com/dop251/goja"
)

type value struct {
	ctx *gojaContext
	v   goja.Value
}

var _ core.Value = (*value)(nil)

func (c *gojaContext) wrap(v goja.Value) *value {
	if v == nil {
		v = goja.Undefined()
	}
	return &value{ctx: c, v: v}
}

func (v *value) Kind() core.ValueKind {
	switch {
	case goja.IsUndefined(v.v):
		return core.KindUndefined
	case goja.IsNull(v.v):
		return core.KindNull
	case goja.IsString(v.v):
		return core.KindString
	case goja.IsBigInt(v.v):
		return core.KindBigInt
	case goja.IsNumber(v.v):
		return core.KindNumber
	}
	switch o := v.v.(type) {
	case *goja.Symbol:
		return core.KindSymbol
	case *goja.Object:
		if _, ok := goja.AssertFunction(o); ok {
			return core.KindFunction
		}
		return core.KindObject
	}
	if t := v.v.ExportType(); t != nil && t.Kind() == reflect.Bool {
		return core.KindBoolean
	}
	return core.KindObject
}

func (v *value) String() string {
	return safeString(v.v)
}

// JSON calls the context's original JSON.stringify, so scripts that replace
// the global cannot change how results are serialized.
func (v *value) JSON() (string, error) {
	out, err := v.ctx.stringify(goja.Undefined(), v.v)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrNotSerializable, err)
	}
	if out == nil || goja.IsUndefined(out) {
		return "", core.ErrNotSerializable
	}
	return out.String(), nil
}

func (v *value) Export() any {
	return v.v.Export()
}
