// Package fixtures builds small, well-known BIR designs used across
// the test suites of interp, bytecode, aot, sir, and codegen: they
// correspond directly to the concrete end-to-end scenarios in
// spec.md §8.
package fixtures

import (
	"github.com/rhdl/rhdl/pkg/bir"
	"github.com/rhdl/rhdl/pkg/birbuild"
)

// Counter builds a 4-bit register q with q <- q+1 on posedge clk,
// reset 0 (spec.md §8 scenario 1).
func Counter() (*bir.Design, error) {
	b := birbuild.New("counter")
	clk := b.Input("clk", 1, 0)
	_ = clk
	q := b.Register("q", 4, 0, "clk")
	out := b.Output("q_out", 4)
	b.Assign(out, q.Ref())
	b.Sequential("clk", func(s *birbuild.SeqBuilder) {
		s.Next(q, birbuild.Add(q.Ref(), bir.Lit(1, 4)))
	})
	c, err := b.Build()
	if err != nil {
		return nil, err
	}
	d := birbuild.NewDesign()
	if err := d.Add(c); err != nil {
		return nil, err
	}
	return d.Build("counter")
}

// RegFile builds a 32x8 memory with one synchronous read port and one
// write port (spec.md §8 scenario 2).
func RegFile() (*bir.Design, error) {
	b := birbuild.New("regfile")
	b.Input("clk", 1, 0)
	waddr := b.Input("waddr", 5, 0)
	wdata := b.Input("wdata", 8, 0)
	we := b.Input("we", 1, 0)
	raddr := b.Input("raddr", 5, 0)
	rdata := b.Output("rdata", 8)

	mem := b.Memory("cells", 32, 8)
	rp := b.ReadPort(mem, "rdata_internal", raddr.Ref(), bir.ReadSync, "clk")
	b.WritePort(mem, waddr.Ref(), wdata.Ref(), "clk", we.Ref())
	b.Assign(rdata, rp.Ref())

	c, err := b.Build()
	if err != nil {
		return nil, err
	}
	d := birbuild.NewDesign()
	if err := d.Add(c); err != nil {
		return nil, err
	}
	return d.Build("regfile")
}

// AsyncRegFile is RegFile's asynchronous-read sibling: rdata reflects
// the current address combinationally instead of lagging by a cycle.
func AsyncRegFile() (*bir.Design, error) {
	b := birbuild.New("async_regfile")
	b.Input("clk", 1, 0)
	waddr := b.Input("waddr", 5, 0)
	wdata := b.Input("wdata", 8, 0)
	we := b.Input("we", 1, 0)
	raddr := b.Input("raddr", 5, 0)
	rdata := b.Output("rdata", 8)

	mem := b.Memory("cells", 32, 8)
	rp := b.ReadPort(mem, "rdata_internal", raddr.Ref(), bir.ReadAsync, "")
	b.WritePort(mem, waddr.Ref(), wdata.Ref(), "clk", we.Ref())
	b.Assign(rdata, rp.Ref())

	c, err := b.Build()
	if err != nil {
		return nil, err
	}
	d := birbuild.NewDesign()
	if err := d.Add(c); err != nil {
		return nil, err
	}
	return d.Build("async_regfile")
}

// ALUFlags bundles an 8-bit adder's result plus zero/negative/
// overflow/carry flags (spec.md §8 scenario 3).
func ALUFlags() (*bir.Design, error) {
	b := birbuild.New("alu_add")
	a := b.Input("a", 8, 0)
	x := b.Input("b", 8, 0)

	result := b.Output("result", 8)
	zero := b.Output("zero", 1)
	neg := b.Output("negative", 1)
	ovf := b.Output("overflow", 1)
	carry := b.Output("carry", 1)

	wide := b.Wire("wide", 9)
	zextA := birbuild.Concat(bir.Lit(0, 1), a.Ref())
	zextB := birbuild.Concat(bir.Lit(0, 1), x.Ref())
	b.Assign(wide, birbuild.Add(zextA, zextB))

	b.Assign(result, wide.Slice(7, 0))
	b.Assign(zero, birbuild.Eq(result.Ref(), bir.Lit(0, 8)))
	b.Assign(neg, result.Slice(7, 7))
	b.Assign(carry, wide.Slice(8, 8))

	// Overflow: both operands share a sign bit that differs from the result's.
	aSign := a.Slice(7, 7)
	bSign := x.Slice(7, 7)
	rSign := result.Slice(7, 7)
	sameSign := birbuild.Eq(aSign, bSign)
	signFlip := birbuild.Ne(aSign, rSign)
	b.Assign(ovf, birbuild.And(sameSign, signFlip))

	c, err := b.Build()
	if err != nil {
		return nil, err
	}
	d := birbuild.NewDesign()
	if err := d.Add(c); err != nil {
		return nil, err
	}
	return d.Build("alu_add")
}

// Mux2 builds mux(sel, a, b) over 8-bit operands (spec.md §8 scenario 4).
func Mux2() (*bir.Design, error) {
	b := birbuild.New("mux2")
	sel := b.Input("sel", 1, 0)
	a := b.Input("a", 8, 0)
	x := b.Input("b", 8, 0)
	out := b.Output("out", 8)
	b.Assign(out, birbuild.MuxE(sel.Ref(), a.Ref(), x.Ref()))

	c, err := b.Build()
	if err != nil {
		return nil, err
	}
	d := birbuild.NewDesign()
	if err := d.Add(c); err != nil {
		return nil, err
	}
	return d.Build("mux2")
}

// Counter3 builds a 3-bit free-running counter used for VCD trace
// tests (spec.md §8 scenario 5).
func Counter3() (*bir.Design, error) {
	b := birbuild.New("counter3")
	b.Input("clk", 1, 0)
	q := b.Register("q", 3, 0, "clk")
	out := b.Output("q_out", 3)
	b.Assign(out, q.Ref())
	b.Sequential("clk", func(s *birbuild.SeqBuilder) {
		s.Next(q, birbuild.Add(q.Ref(), bir.Lit(1, 3)))
	})
	c, err := b.Build()
	if err != nil {
		return nil, err
	}
	d := birbuild.NewDesign()
	if err := d.Add(c); err != nil {
		return nil, err
	}
	return d.Build("counter3")
}

// HierCounter wraps Counter as a child instance inside a top component
// with no extra behavior of its own, to exercise elab.Elaborate's
// hierarchy flattening.
func HierCounter() (*bir.Design, error) {
	inner := birbuild.New("counter_cell")
	q := inner.Register("q", 4, 0, "clk")
	innerOut := inner.Output("q_out", 4)
	inner.Input("clk", 1, 0)
	inner.Assign(innerOut, q.Ref())
	inner.Sequential("clk", func(s *birbuild.SeqBuilder) {
		s.Next(q, birbuild.Add(q.Ref(), bir.Lit(1, 4)))
	})
	innerC, err := inner.Build()
	if err != nil {
		return nil, err
	}

	top := birbuild.New("top")
	top.Input("clk", 1, 0)
	topOut := top.Output("q_out", 4)
	top.Wire("cell_out", 4)
	top.Instance("cell", innerC, map[string]bir.Expr{
		"clk":   bir.Sig("clk", 1),
		"q_out": bir.Sig("cell_out", 4),
	})
	top.Assign(topOut, bir.Sig("cell_out", 4))
	topC, err := top.Build()
	if err != nil {
		return nil, err
	}

	d := birbuild.NewDesign()
	if err := d.Add(innerC); err != nil {
		return nil, err
	}
	if err := d.Add(topC); err != nil {
		return nil, err
	}
	return d.Build("top")
}
