package aot

import (
	"fmt"
	"sort"

	"github.com/rhdl/rhdl/pkg/bir"
	"github.com/rhdl/rhdl/pkg/bitvec"
)

// Compile lowers a flattened Component into a Program. Compile fails
// only if comp contains a combinational cycle; comp is assumed to have
// already passed pkg/birbuild validation otherwise.
func Compile(comp *bir.Component) (*Program, error) {
	c := &compiler{comp: comp, signalSlot: map[string]int{}}
	c.allocNamedSlots()

	order, byLhs, asyncAddr, err := c.topoOrder()
	if err != nil {
		return nil, err
	}
	for _, name := range order {
		slot := c.signalSlot[name]
		if expr, ok := byLhs[name]; ok {
			c.comb = append(c.comb, exprDriver{slot: slot, fn: c.compileExpr(expr, nil)})
			continue
		}
		ar := asyncAddr[name]
		c.comb = append(c.comb, memReadDriver{slot: slot, mem: ar.mem, addr: c.compileExpr(ar.Addr, nil)})
	}

	c.compileSeqAndMemPorts()

	p := &Program{
		comp:          comp,
		numSlots:      c.next,
		comb:          c.comb,
		signalSlot:    c.signalSlot,
		slotSignal:    c.slotSignal,
		clocks:        append([]string(nil), comp.Clocks...),
		seqRules:      c.seqRules,
		syncRead:      c.syncReads,
		writes:        c.writePorts,
		memories:      map[string]memDef{},
		inputDefaults: map[string]bitvec.BitVector{},
		registerReset: map[string]bitvec.BitVector{},
	}
	for _, m := range comp.Memories {
		p.memories[m.Name] = memDef{depth: m.Depth, width: m.Width}
	}
	for _, in := range comp.Inputs {
		p.inputDefaults[in.Name] = in.Default
	}
	for _, r := range comp.Registers {
		p.registerReset[r.Name] = r.Reset
	}
	return p, nil
}

type readPortAddr struct {
	Addr bir.Expr
	mem  string
}

type compiler struct {
	comp *bir.Component

	next       int
	signalSlot map[string]int
	slotSignal []string

	comb       []combDriver
	seqRules   []seqRuleCompiled
	syncReads  []syncReadCompiled
	writePorts []writePortCompiled
}

func (c *compiler) freshSlot(name string) int {
	idx := c.next
	c.next++
	c.slotSignal = append(c.slotSignal, name)
	if name != "" {
		c.signalSlot[name] = idx
	}
	return idx
}

func (c *compiler) allocNamedSlots() {
	for _, p := range c.comp.Inputs {
		c.freshSlot(p.Name)
	}
	for _, p := range c.comp.Outputs {
		c.freshSlot(p.Name)
	}
	for _, w := range c.comp.Wires {
		c.freshSlot(w.Name)
	}
	for _, r := range c.comp.Registers {
		c.freshSlot(r.Name)
	}
	for _, m := range c.comp.Memories {
		for _, rp := range m.ReadPorts {
			c.freshSlot(rp.Name)
		}
	}
}

// topoOrder mirrors pkg/interp's and pkg/bytecode's own independently
// written topological sort over the combinational dependency graph.
func (c *compiler) topoOrder() ([]string, map[string]bir.Expr, map[string]readPortAddr, error) {
	byLhs := map[string]bir.Expr{}
	for _, a := range c.comp.Assigns {
		byLhs[a.Lhs] = a.Rhs
	}
	asyncAddr := map[string]readPortAddr{}
	for _, m := range c.comp.Memories {
		for _, rp := range m.ReadPorts {
			if rp.Mode == bir.ReadAsync {
				asyncAddr[rp.Name] = readPortAddr{Addr: rp.Addr, mem: m.Name}
			}
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var order []string
	var visit func(name string) error
	visit = func(name string) error {
		switch color[name] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("aot: combinational cycle through %q", name)
		}
		expr, isAssign := byLhs[name]
		ar, isAsync := asyncAddr[name]
		if !isAssign && !isAsync {
			return nil
		}
		color[name] = gray
		var deps []string
		if isAssign {
			deps = bir.SignalRefs(expr)
		} else {
			deps = bir.SignalRefs(ar.Addr)
		}
		for _, dep := range deps {
			if c.comp.IsRegister(dep) {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[name] = black
		order = append(order, name)
		return nil
	}

	var names []string
	for name := range byLhs {
		names = append(names, name)
	}
	for name := range asyncAddr {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, nil, nil, err
		}
	}
	return order, byLhs, asyncAddr, nil
}

func (c *compiler) compileExpr(e bir.Expr, lets map[string]int) compiledExpr {
	switch n := e.(type) {
	case *bir.Literal:
		v := n.Value
		return func(_ *Frame) bitvec.BitVector { return v }
	case *bir.Signal:
		slot, ok := c.signalSlot[n.Name]
		if !ok {
			panic(fmt.Sprintf("aot: unresolved signal %q", n.Name))
		}
		return func(f *Frame) bitvec.BitVector { return f.slots[slot] }
	case *bir.Slice:
		sub := c.compileExpr(n.Operand, lets)
		high, low := n.High, n.Low
		return func(f *Frame) bitvec.BitVector { return bitvec.Slice(sub(f), high, low) }
	case *bir.Concat:
		subs := make([]compiledExpr, len(n.Operands))
		for i, o := range n.Operands {
			subs[i] = c.compileExpr(o, lets)
		}
		return func(f *Frame) bitvec.BitVector {
			vals := make([]bitvec.BitVector, len(subs))
			for i, s := range subs {
				vals[i] = s(f)
			}
			return bitvec.Concat(vals...)
		}
	case *bir.Binary:
		l := c.compileExpr(n.Left, lets)
		r := c.compileExpr(n.Right, lets)
		op, w := n.Op, n.W
		return func(f *Frame) bitvec.BitVector { return evalBinary(op, l(f), r(f), w) }
	case *bir.Unary:
		a := c.compileExpr(n.Operand, lets)
		op, w := n.Op, n.W
		return func(f *Frame) bitvec.BitVector { return evalUnary(op, a(f), w) }
	case *bir.Mux:
		sel := c.compileExpr(n.Sel, lets)
		then := c.compileExpr(n.Then, lets)
		els := c.compileExpr(n.Else, lets)
		return func(f *Frame) bitvec.BitVector {
			if sel(f).Uint64() != 0 {
				return then(f)
			}
			return els(f)
		}
	case *bir.CaseSelect:
		selFn := c.compileExpr(n.Selector, lets)
		keys := make([]bitvec.BitVector, len(n.Cases))
		vals := make([]compiledExpr, len(n.Cases))
		for i, arm := range n.Cases {
			keys[i] = arm.Key
			vals[i] = c.compileExpr(arm.Value, lets)
		}
		defFn := c.compileExpr(n.Default, lets)
		return func(f *Frame) bitvec.BitVector {
			sel := selFn(f)
			for i, k := range keys {
				if k.Uint64() == sel.Uint64() {
					return vals[i](f)
				}
			}
			return defFn(f)
		}
	case *bir.Let:
		valFn := c.compileExpr(n.Value, lets)
		slot := c.freshSlot("")
		child := make(map[string]int, len(lets)+1)
		for k, v := range lets {
			child[k] = v
		}
		child[n.Name] = slot
		bodyFn := c.compileExpr(n.Body, child)
		return func(f *Frame) bitvec.BitVector {
			f.slots[slot] = valFn(f)
			return bodyFn(f)
		}
	case *bir.LetRef:
		slot, ok := lets[n.Name]
		if !ok {
			panic(fmt.Sprintf("aot: unbound local %q", n.Name))
		}
		return func(f *Frame) bitvec.BitVector { return f.slots[slot] }
	default:
		panic(fmt.Sprintf("aot: unknown expression node %T", e))
	}
}

func (c *compiler) compileSeqAndMemPorts() {
	for _, sr := range c.comp.Seq {
		fn := c.compileExpr(sr.Rhs, nil)
		var resetBy *bir.ResetSpec
		var resetVal bitvec.BitVector
		for _, r := range c.comp.Registers {
			if r.Name == sr.Lhs {
				resetBy = r.ResetBy
				resetVal = r.Reset
			}
		}
		c.seqRules = append(c.seqRules, seqRuleCompiled{
			clock:    sr.Clock,
			regSlot:  c.signalSlot[sr.Lhs],
			fn:       fn,
			resetBy:  resetBy,
			resetVal: resetVal,
		})
	}

	for _, m := range c.comp.Memories {
		for _, rp := range m.ReadPorts {
			if rp.Mode != bir.ReadSync {
				continue
			}
			c.syncReads = append(c.syncReads, syncReadCompiled{
				clock:   rp.Clock,
				outSlot: c.signalSlot[rp.Name],
				mem:     m.Name,
				addr:    c.compileExpr(rp.Addr, nil),
			})
		}
		for _, wp := range m.WritePorts {
			wpc := writePortCompiled{
				clock: wp.Clock,
				mem:   m.Name,
				addr:  c.compileExpr(wp.Addr, nil),
				data:  c.compileExpr(wp.Data, nil),
			}
			if wp.Enable != nil {
				wpc.enable = c.compileExpr(wp.Enable, nil)
			}
			c.writePorts = append(c.writePorts, wpc)
		}
	}
}
