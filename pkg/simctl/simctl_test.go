package simctl_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rhdl/rhdl/internal/fixtures"
	"github.com/rhdl/rhdl/pkg/aot"
	"github.com/rhdl/rhdl/pkg/bytecode"
	"github.com/rhdl/rhdl/pkg/elab"
	"github.com/rhdl/rhdl/pkg/interp"
	"github.com/rhdl/rhdl/pkg/simctl"
)

// TestBackendParity drives the Counter fixture through all three
// backends via the same Handle API for 1,000 ticks (spec.md §8
// scenario 1) and requires bit-identical results at every tick.
func TestBackendParity(t *testing.T) {
	design, err := fixtures.Counter()
	require.NoError(t, err)
	comp, err := elab.Elaborate(design, "counter")
	require.NoError(t, err)

	it, err := interp.New(comp)
	require.NoError(t, err)
	vm, err := bytecode.New(comp)
	require.NoError(t, err)
	m, err := aot.New(comp)
	require.NoError(t, err)

	hi := simctl.NewHandle(it, 0)
	hv := simctl.NewHandle(vm, 0)
	hm := simctl.NewHandle(m, 0)

	for tick := 0; tick < 1000; tick++ {
		hi.Tick()
		hv.Tick()
		hm.Tick()

		qi, err := hi.Peek("q_out")
		require.NoError(t, err)
		qv, err := hv.Peek("q_out")
		require.NoError(t, err)
		qm, err := hm.Peek("q_out")
		require.NoError(t, err)

		require.Equal(t, qi, qv, "tick %d: bytecode diverged from interpreter", tick)
		require.Equal(t, qi, qm, "tick %d: AOT diverged from interpreter", tick)
	}
}

func TestHandleTraceAndVCD(t *testing.T) {
	design, err := fixtures.Counter3()
	require.NoError(t, err)
	comp, err := elab.Elaborate(design, "counter3")
	require.NoError(t, err)
	it, err := interp.New(comp)
	require.NoError(t, err)

	h := simctl.NewHandle(it, 0)
	h.TraceAddSignal("q", 3)
	h.SetTraceEnabled(true)
	h.RunTicks(5)

	var buf bytes.Buffer
	require.NoError(t, h.ExportVCD(&buf, "1 ns"))
	out := buf.String()
	require.True(t, strings.Contains(out, "$var"))
	require.Equal(t, uint64(0), h.DroppedTraceSamples())
}

func TestHandleBreakpointStopsRun(t *testing.T) {
	design, err := fixtures.Counter()
	require.NoError(t, err)
	comp, err := elab.Elaborate(design, "counter")
	require.NoError(t, err)
	it, err := interp.New(comp)
	require.NoError(t, err)

	h := simctl.NewHandle(it, 0)
	cycle := uint64(3)
	h.AddBreakpoint(simctl.Breakpoint{Cycle: &cycle})
	n := h.RunClockTicksWithWatch("clk", 10, nil)
	require.Equal(t, 3, n)
}

func TestHandleMemoryAccessBypassesPorts(t *testing.T) {
	design, err := fixtures.RegFile()
	require.NoError(t, err)
	comp, err := elab.Elaborate(design, "regfile")
	require.NoError(t, err)
	it, err := interp.New(comp)
	require.NoError(t, err)

	h := simctl.NewHandle(it, 0)
	require.NoError(t, h.MemoryWriteByte("cells", 0, 0x42))
	b, err := h.MemoryReadByte("cells", 0)
	require.NoError(t, err)
	require.Equal(t, byte(0x42), b)
}

func TestHandleStop(t *testing.T) {
	design, err := fixtures.Counter()
	require.NoError(t, err)
	comp, err := elab.Elaborate(design, "counter")
	require.NoError(t, err)
	it, err := interp.New(comp)
	require.NoError(t, err)

	h := simctl.NewHandle(it, 0)
	h.Stop()
	h.RunTicks(10)
	require.Equal(t, uint64(0), it.TickCount("clk"))
}
