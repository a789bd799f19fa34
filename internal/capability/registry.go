// Package capability provides the host functions installed into every
// sandbox context: console, require, storage, blockchain, instruction and
// the two native primitives.
package capability

import (
	"fmt"
	"math"

	"github.com/cryguy/sandbox/internal/core"
)

// NewTemplate builds the global namespace every sandbox context starts from.
// Registration order is fixed; a later registration of the same name wins.
func NewTemplate() *core.Template {
	t := core.NewTemplate()
	RegisterConsole(t)
	RegisterRequire(t)
	RegisterStorage(t)
	RegisterBlockchain(t)
	RegisterInstruction(t)
	RegisterPrimitives(t)
	return t
}

func stringArg(c *core.Call, i int, fn, what string) (string, error) {
	s, ok := c.StringArg(i)
	if !ok {
		return "", fmt.Errorf("%s: %s must be a string", fn, what)
	}
	return s, nil
}

// numberArg returns argument i as a float64 when it is a number.
func numberArg(c *core.Call, i int) (float64, bool) {
	v := c.Arg(i)
	if v.Kind() != core.KindNumber {
		return 0, false
	}
	switch n := v.Export().(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return math.NaN(), true
}
