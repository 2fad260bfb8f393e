package codegen_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rhdl/rhdl/internal/fixtures"
	"github.com/rhdl/rhdl/pkg/codegen"
	"github.com/rhdl/rhdl/pkg/elab"
	"github.com/rhdl/rhdl/pkg/sir"
)

func TestVerilogCounter(t *testing.T) {
	d, err := fixtures.Counter()
	require.NoError(t, err)

	out, err := codegen.Verilog(d)
	require.NoError(t, err)
	require.Contains(t, out, "module counter")
	require.Contains(t, out, "input clk")
	require.Contains(t, out, "output [3:0] q_out")
	require.Contains(t, out, "always @(posedge clk)")
	require.Contains(t, out, "4'd1")
}

func TestVHDLCounter(t *testing.T) {
	d, err := fixtures.Counter()
	require.NoError(t, err)

	out, err := codegen.VHDL(d)
	require.NoError(t, err)
	require.Contains(t, out, "entity counter is")
	require.Contains(t, out, "architecture rtl of counter")
	require.Contains(t, out, "rising_edge(clk)")
}

func TestVerilogHierarchy(t *testing.T) {
	d, err := fixtures.HierCounter()
	require.NoError(t, err)

	out, err := codegen.Verilog(d)
	require.NoError(t, err)
	// Children must be emitted (and appear) before parents reference them.
	childIdx := strings.Index(out, "module counter_cell")
	topIdx := strings.Index(out, "module top")
	require.GreaterOrEqual(t, childIdx, 0)
	require.GreaterOrEqual(t, topIdx, 0)
	require.Less(t, childIdx, topIdx)
	require.Contains(t, out, "counter_cell cell (")
}

func TestStructuralVerilogMux(t *testing.T) {
	d, err := fixtures.Mux2()
	require.NoError(t, err)
	flat, err := elab.Elaborate(d, d.Top)
	require.NoError(t, err)
	net, err := sir.Lower(flat)
	require.NoError(t, err)

	out := codegen.StructuralVerilog(net)
	require.Contains(t, out, "module mux2")
	require.Contains(t, out, " and ")
}

func TestVerilogNameSanitization(t *testing.T) {
	require.Equal(t, "a_b", codegen.Sanitize("a.b"))
	require.Equal(t, "_3d", codegen.Sanitize("3D"))
	require.Equal(t, "clk", codegen.Sanitize("clk"))
}
