package capability

import (
	"fmt"
	"math"

	"github.com/cryguy/sandbox/internal/core"
)

// RegisterInstruction attaches the gas meter. It is the only writer of the
// sandbox's gas counter.
func RegisterInstruction(t *core.Template) {
	t.Method("instruction", "incr", instructionIncr)
	t.Method("instruction", "count", instructionCount)
}

// instructionIncr charges n units (default 1). The charge is kept even when
// it passes the limit, so the outcome reports what was consumed.
func instructionIncr(c *core.Call) (any, error) {
	n := 1.0
	if c.Arg(0).Kind() != core.KindUndefined {
		v, ok := numberArg(c, 0)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, fmt.Errorf("instruction.incr: invalid count %s", c.Arg(0).String())
		}
		n = v
	}
	st, err := c.State()
	if err != nil {
		return nil, err
	}
	units := uint64(math.MaxUint64)
	if n < math.MaxUint64 {
		units = uint64(n)
	}
	if _, err := st.ChargeGas(units); err != nil {
		return nil, err
	}
	return nil, nil
}

func instructionCount(c *core.Call) (any, error) {
	st, err := c.State()
	if err != nil {
		return nil, err
	}
	return st.GasUsed(), nil
}
