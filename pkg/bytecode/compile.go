package bytecode

import (
	"fmt"
	"sort"

	"github.com/rhdl/rhdl/pkg/bir"
	"github.com/rhdl/rhdl/pkg/bitvec"
)

// Compile lowers a flattened Component into a Program. Compile fails
// only if comp itself contains a combinational cycle; comp is assumed
// to have already passed pkg/birbuild validation otherwise.
func Compile(comp *bir.Component) (*Program, error) {
	c := &compiler{
		comp:       comp,
		signalSlot: map[string]int{},
	}
	c.allocNamedSlots()

	order, byLhs, asyncAddr, err := c.topoOrder()
	if err != nil {
		return nil, err
	}
	for _, name := range order {
		dst := c.signalSlot[name]
		if expr, ok := byLhs[name]; ok {
			c.emitExpr(expr, &c.combOps, dst)
			continue
		}
		ar := asyncAddr[name]
		addrSlot := c.freshSlot("")
		c.emitExpr(ar.Addr, &c.combOps, addrSlot)
		c.combOps = append(c.combOps, Instr{Code: OpReadMem, Dst: dst, A: addrSlot, Mem: ar.mem})
	}

	c.compileSeqAndMemPorts()

	p := &Program{
		comp:          comp,
		numSlots:      c.next,
		combOps:       c.combOps,
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

	combOps    []Instr
	seqRules   []seqRuleProg
	syncReads  []syncReadProg
	writePorts []writePortProg
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

// topoOrder mirrors pkg/interp's topo.go independently: same
// algorithm, separately implemented, over the compiler's own name
// bookkeeping.
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
			return fmt.Errorf("bytecode: combinational cycle through %q", name)
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

// emitExpr compiles e, appending instructions to *into, and leaves its
// value in dst.
func (c *compiler) emitExpr(e bir.Expr, into *[]Instr, dst int) {
	c.emitExprLets(e, into, dst, map[string]int{})
}

func (c *compiler) emitExprLets(e bir.Expr, into *[]Instr, dst int, lets map[string]int) {
	switch n := e.(type) {
	case *bir.Literal:
		*into = append(*into, Instr{Code: OpConst, Dst: dst, Const: n.Value})
	case *bir.Signal:
		slot, ok := c.signalSlot[n.Name]
		if !ok {
			// Unresolved at this point would have failed birbuild
			// validation; fail loudly rather than silently zero.
			panic(fmt.Sprintf("bytecode: unresolved signal %q", n.Name))
		}
		*into = append(*into, Instr{Code: OpCopy, Dst: dst, A: slot})
	case *bir.Slice:
		src := c.freshSlot("")
		c.emitExprLets(n.Operand, into, src, lets)
		*into = append(*into, Instr{Code: OpSlice, Dst: dst, A: src, High: n.High, Low: n.Low})
	case *bir.Concat:
		operands := make([]int, len(n.Operands))
		for i, o := range n.Operands {
			s := c.freshSlot("")
			c.emitExprLets(o, into, s, lets)
			operands[i] = s
		}
		*into = append(*into, Instr{Code: OpConcat, Dst: dst, Operands: operands})
	case *bir.Binary:
		l := c.freshSlot("")
		r := c.freshSlot("")
		c.emitExprLets(n.Left, into, l, lets)
		c.emitExprLets(n.Right, into, r, lets)
		*into = append(*into, Instr{Code: OpBinary, Dst: dst, A: l, B: r, BinOp: n.Op, Width: n.W})
	case *bir.Unary:
		a := c.freshSlot("")
		c.emitExprLets(n.Operand, into, a, lets)
		*into = append(*into, Instr{Code: OpUnary, Dst: dst, A: a, UnOp: n.Op, Width: n.W})
	case *bir.Mux:
		sel := c.freshSlot("")
		then := c.freshSlot("")
		els := c.freshSlot("")
		c.emitExprLets(n.Sel, into, sel, lets)
		c.emitExprLets(n.Then, into, then, lets)
		c.emitExprLets(n.Else, into, els, lets)
		*into = append(*into, Instr{Code: OpMux, Dst: dst, A: then, B: els, Sel: sel})
	case *bir.CaseSelect:
		selSlot := c.freshSlot("")
		c.emitExprLets(n.Selector, into, selSlot, lets)
		keys := make([]bitvec.BitVector, len(n.Cases))
		vals := make([]int, len(n.Cases))
		for i, arm := range n.Cases {
			s := c.freshSlot("")
			c.emitExprLets(arm.Value, into, s, lets)
			keys[i] = arm.Key
			vals[i] = s
		}
		defSlot := c.freshSlot("")
		c.emitExprLets(n.Default, into, defSlot, lets)
		*into = append(*into, Instr{Code: OpCaseSelect, Dst: dst, A: selSlot, B: defSlot, CaseKeys: keys, CaseVals: vals})
	case *bir.Let:
		v := c.freshSlot("")
		c.emitExprLets(n.Value, into, v, lets)
		child := make(map[string]int, len(lets)+1)
		for k, val := range lets {
			child[k] = val
		}
		child[n.Name] = v
		c.emitExprLets(n.Body, into, dst, child)
	case *bir.LetRef:
		slot, ok := lets[n.Name]
		if !ok {
			panic(fmt.Sprintf("bytecode: unbound local %q", n.Name))
		}
		*into = append(*into, Instr{Code: OpCopy, Dst: dst, A: slot})
	default:
		panic(fmt.Sprintf("bytecode: unknown expression node %T", e))
	}
}

func (c *compiler) compileSeqAndMemPorts() {
	for _, sr := range c.comp.Seq {
		valueSlot := c.freshSlot("")
		var ops []Instr
		c.emitExprLets(sr.Rhs, &ops, valueSlot, nil)
		var resetBy *bir.ResetSpec
		var resetVal bitvec.BitVector
		for _, r := range c.comp.Registers {
			if r.Name == sr.Lhs {
				resetBy = r.ResetBy
				resetVal = r.Reset
			}
		}
		c.seqRules = append(c.seqRules, seqRuleProg{
			clock:     sr.Clock,
			regName:   sr.Lhs,
			regSlot:   c.signalSlot[sr.Lhs],
			rhsOps:    ops,
			valueSlot: valueSlot,
			resetBy:   resetBy,
			resetVal:  resetVal,
		})
	}

	for _, m := range c.comp.Memories {
		for _, rp := range m.ReadPorts {
			if rp.Mode != bir.ReadSync {
				continue
			}
			addrSlot := c.freshSlot("")
			var ops []Instr
			c.emitExprLets(rp.Addr, &ops, addrSlot, nil)
			c.syncReads = append(c.syncReads, syncReadProg{
				clock:    rp.Clock,
				outSlot:  c.signalSlot[rp.Name],
				mem:      m.Name,
				addrOps:  ops,
				addrSlot: addrSlot,
			})
		}
		for _, wp := range m.WritePorts {
			addrSlot := c.freshSlot("")
			var addrOps []Instr
			c.emitExprLets(wp.Addr, &addrOps, addrSlot, nil)
			dataSlot := c.freshSlot("")
			var dataOps []Instr
			c.emitExprLets(wp.Data, &dataOps, dataSlot, nil)
			wpp := writePortProg{
				clock:    wp.Clock,
				mem:      m.Name,
				addrOps:  addrOps,
				addrSlot: addrSlot,
				dataOps:  dataOps,
				dataSlot: dataSlot,
			}
			if wp.Enable != nil {
				enSlot := c.freshSlot("")
				var enOps []Instr
				c.emitExprLets(wp.Enable, &enOps, enSlot, nil)
				wpp.enableOps = enOps
				wpp.enableSlot = enSlot
				wpp.hasEnable = true
			}
			c.writePorts = append(c.writePorts, wpp)
		}
	}
}
