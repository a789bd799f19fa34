package core

import (
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateRegistry(t *testing.T) {
	h := NewState(StateOptions{Contract: "c", BootstrapPath: "v8/libjs"})
	require.NotZero(t, h)

	st := GetState(h)
	require.NotNil(t, st)
	assert.Equal(t, "c", st.Contract)
	assert.Equal(t, "v8/libjs", st.BootstrapPath())
	assert.NotNil(t, st.Logger)

	assert.Equal(t, h, ParseHandle(h.String()))
	assert.Same(t, st, ClearState(h))
	assert.Nil(t, GetState(h))
	assert.Nil(t, ClearState(h))
}

func TestParseHandle(t *testing.T) {
	assert.Equal(t, Handle(0), ParseHandle(""))
	assert.Equal(t, Handle(0), ParseHandle("undefined"))
	assert.Equal(t, Handle(0), ParseHandle("nope"))
	assert.Equal(t, Handle(42), ParseHandle("42"))
}

func TestChargeGas(t *testing.T) {
	h := NewState(StateOptions{})
	defer ClearState(h)
	st := GetState(h)

	used, err := st.ChargeGas(5)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), used)

	st.SetGasLimit(7)
	_, err = st.ChargeGas(2)
	require.NoError(t, err)

	used, err = st.ChargeGas(1)
	assert.True(t, errors.Is(err, ErrGasLimitExceeded))
	assert.Equal(t, uint64(8), used)
	assert.Equal(t, uint64(8), st.GasUsed())
}

func TestChargeGasSaturates(t *testing.T) {
	h := NewState(StateOptions{})
	defer ClearState(h)
	st := GetState(h)

	_, err := st.ChargeGas(10)
	require.NoError(t, err)
	used, err := st.ChargeGas(math.MaxUint64)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), used)
}

func TestChargeGasConcurrent(t *testing.T) {
	h := NewState(StateOptions{})
	defer ClearState(h)
	st := GetState(h)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = st.ChargeGas(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(1600), st.GasUsed())
}

func TestAddLogLimits(t *testing.T) {
	h := NewState(StateOptions{MaxLogEntries: 2})
	defer ClearState(h)
	st := GetState(h)

	st.AddLog("log", strings.Repeat("x", MaxLogMessageSize+10))
	st.AddLog("warn", "second")
	st.AddLog("error", "dropped")

	logs := st.TakeLogs()
	require.Len(t, logs, 2)
	assert.True(t, strings.HasSuffix(logs[0].Message, "...(truncated)"))
	assert.Equal(t, "warn", logs[1].Level)
	assert.Empty(t, st.TakeLogs())
}
