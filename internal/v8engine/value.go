//go:build v8

package v8engine

import (
	"encoding/json"

	"github.com/cryguy/sandbox/internal/core"
	v8 "github.com/tommie/v8go"
)

type value struct {
	ctx *v8Context
	v   *v8.Value
}

func (c *v8Context) wrap(v *v8.Value) core.Value {
	if v == nil {
		return core.Undefined
	}
	return &value{ctx: c, v: v}
}

func (v *value) Kind() core.ValueKind {
	switch {
	case v.v.IsUndefined():
		return core.KindUndefined
	case v.v.IsNull():
		return core.KindNull
	case v.v.IsBoolean():
		return core.KindBoolean
	case v.v.IsNumber():
		return core.KindNumber
	case v.v.IsString():
		return core.KindString
	case v.v.IsBigInt():
		return core.KindBigInt
	case v.v.IsSymbol():
		return core.KindSymbol
	case v.v.IsFunction():
		return core.KindFunction
	}
	return core.KindObject
}

// String converts with the script's String(). Symbols do not convert, so
// they use their detail string.
func (v *value) String() (s string) {
	if v.v.IsSymbol() {
		defer func() {
			if r := recover(); r != nil {
				s = "Symbol()"
			}
		}()
		return v.v.DetailString()
	}
	return v.v.String()
}

// JSON uses V8's built-in serializer, which a script cannot replace.
func (v *value) JSON() (string, error) {
	switch v.Kind() {
	case core.KindUndefined, core.KindFunction, core.KindSymbol, core.KindBigInt:
		return "", core.ErrNotSerializable
	}
	s, err := v8.JSONStringify(v.ctx.ctx, v.v)
	if err != nil || s == "" || s == "undefined" {
		return "", core.ErrNotSerializable
	}
	return s, nil
}

func (v *value) Export() any {
	switch v.Kind() {
	case core.KindUndefined, core.KindNull:
		return nil
	case core.KindBoolean:
		return v.v.Boolean()
	case core.KindNumber:
		return v.v.Number()
	case core.KindString, core.KindSymbol, core.KindFunction:
		return v.String()
	case core.KindBigInt:
		return v.v.BigInt()
	}
	s, err := v.JSON()
	if err != nil {
		return v.String()
	}
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return v.String()
	}
	return out
}

// toValue converts a native's result into a V8 value.
func (c *v8Context) toValue(res any) (*v8.Value, error) {
	iso := c.engine.iso
	switch r := res.(type) {
	case nil:
		return v8.Undefined(iso), nil
	case *value:
		if r.ctx == c {
			return r.v, nil
		}
		return c.toValue(r.Export())
	case core.Value:
		switch r.Kind() {
		case core.KindUndefined:
			return v8.Undefined(iso), nil
		case core.KindNull:
			return v8.Null(iso), nil
		}
		return c.toValue(r.Export())
	case string:
		return v8.NewValue(iso, r)
	case bool:
		return v8.NewValue(iso, r)
	case float64:
		return v8.NewValue(iso, r)
	case int:
		return v8.NewValue(iso, float64(r))
	case int64:
		return v8.NewValue(iso, float64(r))
	case uint64:
		return v8.NewValue(iso, float64(r))
	}
	b, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}
	return v8.JSONParse(c.ctx, string(b))
}
