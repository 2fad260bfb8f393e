package sir_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rhdl/rhdl/internal/fixtures"
	"github.com/rhdl/rhdl/pkg/elab"
	"github.com/rhdl/rhdl/pkg/sir"
)

func TestLowerCounterProducesFlipFlopsPerBit(t *testing.T) {
	design, err := fixtures.Counter()
	require.NoError(t, err)
	comp, err := elab.Elaborate(design, "counter")
	require.NoError(t, err)

	nl, err := sir.Lower(comp)
	require.NoError(t, err)
	require.Equal(t, "counter", nl.Name)
	require.Len(t, nl.FFs, 4, "q is 4 bits wide, one DFF per bit")
	for i, ff := range nl.FFs {
		require.Equal(t, "clk", ff.Clock)
		require.Equal(t, sir.BitNet("q", i), ff.Q)
	}
}

func TestLowerRegFileProducesMemPrimitive(t *testing.T) {
	design, err := fixtures.RegFile()
	require.NoError(t, err)
	comp, err := elab.Elaborate(design, "regfile")
	require.NoError(t, err)

	nl, err := sir.Lower(comp)
	require.NoError(t, err)
	require.Len(t, nl.Mems, 1)
	mem := nl.Mems[0]
	require.Equal(t, "cells", mem.Name)
	require.Equal(t, 32, mem.Depth)
	require.Equal(t, 8, mem.Width)
	require.Len(t, mem.WritePorts, 1)
	require.NotEmpty(t, mem.ReadPorts)
}

func TestLowerMux2IsPurelyCombinational(t *testing.T) {
	design, err := fixtures.Mux2()
	require.NoError(t, err)
	comp, err := elab.Elaborate(design, "mux2")
	require.NoError(t, err)

	nl, err := sir.Lower(comp)
	require.NoError(t, err)
	require.Empty(t, nl.FFs)
	require.NotEmpty(t, nl.Gates)
}

func TestLowerALUFlagsHasNoFlipFlops(t *testing.T) {
	design, err := fixtures.ALUFlags()
	require.NoError(t, err)
	comp, err := elab.Elaborate(design, "alu_add")
	require.NoError(t, err)

	nl, err := sir.Lower(comp)
	require.NoError(t, err)
	require.Empty(t, nl.FFs, "alu_add is purely combinational")
	require.NotEmpty(t, nl.Gates)
}
