package sir

import (
	"fmt"
	"sort"

	"github.com/rhdl/rhdl/pkg/bir"
)

// Lower flattens comp's behavioral expressions into a gate-level
// Netlist. comp is assumed to have already passed pkg/birbuild
// validation (no multi-driver nets, no undriven nets, no
// combinational cycles); Lower returns an error only for constructs
// its gate lowering does not support (see the Shl/Shr note below).
func Lower(comp *bir.Component) (*Netlist, error) {
	b := &builder{comp: comp, nets: map[string][]string{}, constCache: map[GateKind]string{}}
	if err := b.run(); err != nil {
		return nil, err
	}

	nl := &Netlist{Name: comp.Name, Gates: b.gates, FFs: b.ffs, Mems: b.mems}
	for _, p := range comp.Inputs {
		nl.Inputs = append(nl.Inputs, NetWidth{p.Name, p.Width})
		nl.NetWidths = append(nl.NetWidths, NetWidth{p.Name, p.Width})
	}
	for _, p := range comp.Outputs {
		nl.Outputs = append(nl.Outputs, NetWidth{p.Name, p.Width})
		nl.NetWidths = append(nl.NetWidths, NetWidth{p.Name, p.Width})
	}
	for _, w := range comp.Wires {
		nl.NetWidths = append(nl.NetWidths, NetWidth{w.Name, w.Width})
	}
	for _, r := range comp.Registers {
		nl.NetWidths = append(nl.NetWidths, NetWidth{r.Name, r.Width})
	}
	return nl, nil
}

type builder struct {
	comp *bir.Component

	gates []Gate
	ffs   []DFF
	mems  []MemPrimitive

	tmp        int
	nets       map[string][]string // signal name -> LSB-first bit net names
	constCache map[GateKind]string
}

func (b *builder) freshNet() string {
	b.tmp++
	return fmt.Sprintf("_g%d", b.tmp)
}

func (b *builder) addGate(kind GateKind, a, out string) string {
	b.gates = append(b.gates, Gate{Kind: kind, A: a, Out: out})
	return out
}

func (b *builder) addGate2(kind GateKind, a, c, out string) string {
	b.gates = append(b.gates, Gate{Kind: kind, A: a, B: c, Out: out})
	return out
}

func (b *builder) not(a string) string   { return b.addGate(GateNot, a, b.freshNet()) }
func (b *builder) buf(a string) string   { return b.addGate(GateBuf, a, b.freshNet()) }
func (b *builder) and(a, c string) string { return b.addGate2(GateAnd, a, c, b.freshNet()) }
func (b *builder) or(a, c string) string  { return b.addGate2(GateOr, a, c, b.freshNet()) }
func (b *builder) xor(a, c string) string { return b.addGate2(GateXor, a, c, b.freshNet()) }
func (b *builder) xnor(a, c string) string { return b.addGate2(GateXnor, a, c, b.freshNet()) }

func (b *builder) const0() string {
	if n, ok := b.constCache[GateConst0]; ok {
		return n
	}
	n := b.addGate(GateConst0, "", b.freshNet())
	b.constCache[GateConst0] = n
	return n
}

func (b *builder) const1() string {
	if n, ok := b.constCache[GateConst1]; ok {
		return n
	}
	n := b.addGate(GateConst1, "", b.freshNet())
	b.constCache[GateConst1] = n
	return n
}

// reduceTree combines bits pairwise with kind until a single net
// remains (an AND/OR/XOR reduction).
func (b *builder) reduceTree(bits []string, kind GateKind) string {
	level := bits
	for len(level) > 1 {
		var next []string
		for i := 0; i+1 < len(level); i += 2 {
			next = append(next, b.addGate2(kind, level[i], level[i+1], b.freshNet()))
		}
		if len(level)%2 == 1 {
			next = append(next, level[len(level)-1])
		}
		level = next
	}
	return level[0]
}

func (b *builder) fullAdder(a, c, cin string) (sum, cout string) {
	axc := b.xor(a, c)
	sum = b.xor(axc, cin)
	aandc := b.and(a, c)
	cinandaxc := b.and(cin, axc)
	cout = b.or(aandc, cinandaxc)
	return sum, cout
}

// rippleAdd computes a+c+cin across width bits, LSB first.
func (b *builder) rippleAdd(a, c []string, cin string, width int) (sum []string, cout string) {
	sum = make([]string, width)
	carry := cin
	for i := 0; i < width; i++ {
		sum[i], carry = b.fullAdder(a[i], c[i], carry)
	}
	return sum, carry
}

func (b *builder) invertBits(v []string) []string {
	out := make([]string, len(v))
	for i, n := range v {
		out[i] = b.not(n)
	}
	return out
}

func (b *builder) add(a, c []string, width int) []string {
	sum, _ := b.rippleAdd(a, c, b.const0(), width)
	return sum
}

// sub returns a-c (mod 2^width) and the adder's final carry-out, which
// is 1 exactly when a >= c unsigned (no borrow).
func (b *builder) sub(a, c []string, width int) (diff []string, noBorrow string) {
	return b.rippleAdd(a, b.invertBits(c), b.const1(), width)
}

func (b *builder) ult(a, c []string, width int) string {
	_, noBorrow := b.sub(a, c, width)
	return b.not(noBorrow)
}

func (b *builder) eqBits(a, c []string) string {
	bits := make([]string, len(a))
	for i := range a {
		bits[i] = b.xnor(a[i], c[i])
	}
	return b.reduceTree(bits, GateAnd)
}

// muxBits selects then when sel is 1, else otherwise, per bit.
func (b *builder) muxBits(sel string, then, els []string) []string {
	notSel := b.not(sel)
	out := make([]string, len(then))
	for i := range then {
		a1 := b.and(sel, then[i])
		a2 := b.and(notSel, els[i])
		out[i] = b.or(a1, a2)
	}
	return out
}

func zeroBits(b *builder, width int) []string {
	out := make([]string, width)
	for i := range out {
		out[i] = b.const0()
	}
	return out
}

type letScope map[string][]string

func (b *builder) run() error {
	for _, p := range b.comp.Inputs {
		b.nets[p.Name] = bitNetsOf(p.Name, p.Width)
	}
	for _, r := range b.comp.Registers {
		b.nets[r.Name] = bitNetsOf(r.Name, r.Width)
	}
	for _, m := range b.comp.Memories {
		for _, rp := range m.ReadPorts {
			b.nets[rp.Name] = bitNetsOf(rp.Name, m.Width)
		}
	}

	order, byLhs, asyncAddr, err := b.topoOrder()
	if err != nil {
		return err
	}
	for _, name := range order {
		var bits []string
		if expr, ok := byLhs[name]; ok {
			bits, err = b.lower(expr, nil)
		} else {
			ar := asyncAddr[name]
			bits, err = b.lowerMemRead(ar.mem, ar.Addr, "", false)
		}
		if err != nil {
			return err
		}
		b.alias(name, bits)
	}

	if err := b.lowerSeq(); err != nil {
		return err
	}
	b.lowerMems()
	return nil
}

func bitNetsOf(name string, w int) []string {
	out := make([]string, w)
	for i := 0; i < w; i++ {
		out[i] = BitNet(name, i)
	}
	return out
}

// alias records bits as the canonical per-bit nets for name, emitting
// a BUF gate per bit so BitNet(name, i) always resolves to a real net
// regardless of how bits was computed.
func (b *builder) alias(name string, bits []string) {
	named := make([]string, len(bits))
	for i, n := range bits {
		named[i] = b.addGate(GateBuf, n, BitNet(name, i))
	}
	b.nets[name] = named
}

type readPortAddr struct {
	Addr bir.Expr
	mem  string
}

func (b *builder) topoOrder() ([]string, map[string]bir.Expr, map[string]readPortAddr, error) {
	byLhs := map[string]bir.Expr{}
	for _, a := range b.comp.Assigns {
		byLhs[a.Lhs] = a.Rhs
	}
	asyncAddr := map[string]readPortAddr{}
	for _, m := range b.comp.Memories {
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
			return fmt.Errorf("sir: combinational cycle through %q", name)
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
			if b.comp.IsRegister(dep) {
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

// lower compiles e into a LSB-first list of per-bit net names.
func (b *builder) lower(e bir.Expr, lets letScope) ([]string, error) {
	switch n := e.(type) {
	case *bir.Literal:
		out := make([]string, n.Width())
		for i := range out {
			if n.Value.Bit(i) != 0 {
				out[i] = b.const1()
			} else {
				out[i] = b.const0()
			}
		}
		return out, nil
	case *bir.Signal:
		bits, ok := b.nets[n.Name]
		if !ok {
			return nil, fmt.Errorf("sir: unresolved signal %q", n.Name)
		}
		return bits, nil
	case *bir.Slice:
		operand, err := b.lower(n.Operand, lets)
		if err != nil {
			return nil, err
		}
		return operand[n.Low : n.High+1], nil
	case *bir.Concat:
		var out []string
		for i := len(n.Operands) - 1; i >= 0; i-- {
			sub, err := b.lower(n.Operands[i], lets)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil
	case *bir.Binary:
		return b.lowerBinary(n, lets)
	case *bir.Unary:
		return b.lowerUnary(n, lets)
	case *bir.Mux:
		sel, err := b.lower(n.Sel, lets)
		if err != nil {
			return nil, err
		}
		then, err := b.lower(n.Then, lets)
		if err != nil {
			return nil, err
		}
		els, err := b.lower(n.Else, lets)
		if err != nil {
			return nil, err
		}
		return b.muxBits(sel[0], then, els), nil
	case *bir.CaseSelect:
		selBits, err := b.lower(n.Selector, lets)
		if err != nil {
			return nil, err
		}
		cur, err := b.lower(n.Default, lets)
		if err != nil {
			return nil, err
		}
		for i := len(n.Cases) - 1; i >= 0; i-- {
			arm := n.Cases[i]
			keyBits := make([]string, arm.Key.Width())
			for j := range keyBits {
				if arm.Key.Bit(j) != 0 {
					keyBits[j] = b.const1()
				} else {
					keyBits[j] = b.const0()
				}
			}
			val, err := b.lower(arm.Value, lets)
			if err != nil {
				return nil, err
			}
			eq := b.eqBits(selBits, keyBits)
			cur = b.muxBits(eq, val, cur)
		}
		return cur, nil
	case *bir.Let:
		val, err := b.lower(n.Value, lets)
		if err != nil {
			return nil, err
		}
		child := make(letScope, len(lets)+1)
		for k, v := range lets {
			child[k] = v
		}
		child[n.Name] = val
		return b.lower(n.Body, child)
	case *bir.LetRef:
		bits, ok := lets[n.Name]
		if !ok {
			return nil, fmt.Errorf("sir: unbound local %q", n.Name)
		}
		return bits, nil
	default:
		return nil, fmt.Errorf("sir: unknown expression node %T", e)
	}
}

func (b *builder) lowerBinary(n *bir.Binary, lets letScope) ([]string, error) {
	l, err := b.lower(n.Left, lets)
	if err != nil {
		return nil, err
	}
	r, err := b.lower(n.Right, lets)
	if err != nil {
		return nil, err
	}
	w := n.Left.Width()
	switch n.Op {
	case bir.OpAdd:
		return b.add(l, r, w), nil
	case bir.OpSub:
		diff, _ := b.sub(l, r, w)
		return diff, nil
	case bir.OpAnd:
		return b.bitwise(GateAnd, l, r), nil
	case bir.OpOr:
		return b.bitwise(GateOr, l, r), nil
	case bir.OpXor:
		return b.bitwise(GateXor, l, r), nil
	case bir.OpEq:
		return []string{b.eqBits(l, r)}, nil
	case bir.OpNe:
		return []string{b.not(b.eqBits(l, r))}, nil
	case bir.OpLt:
		return []string{b.ult(l, r, w)}, nil
	case bir.OpLe:
		return []string{b.not(b.ult(r, l, w))}, nil
	case bir.OpGt:
		return []string{b.ult(r, l, w)}, nil
	case bir.OpGe:
		return []string{b.not(b.ult(l, r, w))}, nil
	case bir.OpShl:
		return b.shiftLiteral(n.Right, l, n.W, true)
	case bir.OpShr:
		return b.shiftLiteral(n.Right, l, n.W, false)
	default:
		return nil, fmt.Errorf("sir: unknown binary op %v", n.Op)
	}
}

func (b *builder) bitwise(kind GateKind, l, r []string) []string {
	out := make([]string, len(l))
	for i := range l {
		out[i] = b.addGate2(kind, l[i], r[i], b.freshNet())
	}
	return out
}

// shiftLiteral lowers Shl/Shr; only a compile-time-constant shift
// amount is supported. A signal-dependent shift would need a gate
// barrel shifter, which this lowering does not build.
func (b *builder) shiftLiteral(amount bir.Expr, operand []string, w int, left bool) ([]string, error) {
	lit, ok := amount.(*bir.Literal)
	if !ok {
		return nil, fmt.Errorf("sir: shift amount must be a literal for gate-level lowering, got %T", amount)
	}
	n := int(lit.Value.Uint64())
	out := make([]string, w)
	for i := 0; i < w; i++ {
		if left {
			if i >= n && i-n < len(operand) {
				out[i] = operand[i-n]
			} else {
				out[i] = b.const0()
			}
		} else {
			if i+n < len(operand) {
				out[i] = operand[i+n]
			} else {
				out[i] = b.const0()
			}
		}
	}
	return out, nil
}

func (b *builder) lowerUnary(n *bir.Unary, lets letScope) ([]string, error) {
	v, err := b.lower(n.Operand, lets)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case bir.OpNot:
		out := make([]string, len(v))
		for i, bit := range v {
			out[i] = b.not(bit)
		}
		return out, nil
	case bir.OpNeg:
		diff, _ := b.sub(zeroBits(b, len(v)), v, len(v))
		return diff, nil
	case bir.OpReduceAnd:
		return []string{b.reduceTree(v, GateAnd)}, nil
	case bir.OpReduceOr:
		return []string{b.reduceTree(v, GateOr)}, nil
	case bir.OpReduceXor:
		return []string{b.reduceTree(v, GateXor)}, nil
	case bir.OpRotateLeft:
		w := len(v)
		out := make([]string, w)
		for i := 0; i < w; i++ {
			out[i] = v[(i-1+w)%w]
		}
		return out, nil
	case bir.OpRotateRight:
		w := len(v)
		out := make([]string, w)
		for i := 0; i < w; i++ {
			out[i] = v[(i+1)%w]
		}
		return out, nil
	case bir.OpSExt:
		out := make([]string, n.W)
		sign := v[len(v)-1]
		for i := 0; i < n.W; i++ {
			if i < len(v) {
				out[i] = v[i]
			} else {
				out[i] = sign
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("sir: unknown unary op %v", n.Op)
	}
}

// lowerMemRead compiles a memory read address expression and wires it
// into an opaque MemPrimitive, returning the output bit nets. If
// sync is true the read is registered on clock. The returned nets are
// fresh; the caller aliases them to the port's name.
func (b *builder) lowerMemRead(memName string, addr bir.Expr, clock string, sync bool) ([]string, error) {
	addrBits, err := b.lower(addr, nil)
	if err != nil {
		return nil, err
	}
	mdef := b.findMemDef(memName)
	out := make([]string, mdef.Width)
	for i := range out {
		out[i] = b.freshNet()
	}
	mi := b.memIndex(memName)
	b.mems[mi].ReadPorts = append(b.mems[mi].ReadPorts, MemReadPrim{
		AddrBits: addrBits,
		OutBits:  out,
		Sync:     sync,
		Clock:    clock,
	})
	return out, nil
}

func (b *builder) findMemDef(name string) *bir.Memory {
	for i := range b.comp.Memories {
		if b.comp.Memories[i].Name == name {
			return &b.comp.Memories[i]
		}
	}
	return nil
}

func (b *builder) memIndex(name string) int {
	for i, m := range b.mems {
		if m.Name == name {
			return i
		}
	}
	mdef := b.findMemDef(name)
	b.mems = append(b.mems, MemPrimitive{Name: name, Depth: mdef.Depth, Width: mdef.Width})
	return len(b.mems) - 1
}

func (b *builder) lowerMems() {
	for _, m := range b.comp.Memories {
		b.memIndex(m.Name)
	}
}

func (b *builder) lowerSeq() error {
	for _, r := range b.comp.Registers {
		var rhs bir.Expr
		for _, sr := range b.comp.Seq {
			if sr.Lhs == r.Name {
				rhs = sr.Rhs
				break
			}
		}
		if rhs == nil {
			continue
		}
		d, err := b.lower(rhs, nil)
		if err != nil {
			return err
		}
		var reset *DFFResetSpec
		resetBits := make([]string, r.W)
		if r.ResetBy != nil {
			for i := 0; i < r.W; i++ {
				if r.Reset.Bit(i) != 0 {
					resetBits[i] = b.const1()
				} else {
					resetBits[i] = b.const0()
				}
			}
		}
		q := bitNetsOf(r.Name, r.W)
		for i := 0; i < r.W; i++ {
			dBit := d[i]
			if r.ResetBy != nil && !r.ResetBy.Async {
				dBit = b.muxSingle(BitNet(r.ResetBy.Signal, 0), r.ResetBy.ActiveHigh, resetBits[i], dBit)
				reset = nil
			} else if r.ResetBy != nil {
				reset = &DFFResetSpec{
					Signal:     r.ResetBy.Signal,
					ActiveHigh: r.ResetBy.ActiveHigh,
					Async:      true,
					Value:      resetBits[i],
				}
			}
			b.ffs = append(b.ffs, DFF{D: dBit, Q: q[i], Clock: r.Clock, Reset: reset})
		}
	}

	for _, m := range b.comp.Memories {
		for _, rp := range m.ReadPorts {
			if rp.Mode != bir.ReadSync {
				continue
			}
			addrBits, err := b.lower(rp.Addr, nil)
			if err != nil {
				return err
			}
			mi := b.memIndex(m.Name)
			b.mems[mi].ReadPorts = append(b.mems[mi].ReadPorts, MemReadPrim{
				AddrBits: addrBits,
				OutBits:  bitNetsOf(rp.Name, m.Width),
				Sync:     true,
				Clock:    rp.Clock,
			})
		}
		for _, rp := range m.ReadPorts {
			if rp.Mode != bir.ReadAsync {
				continue
			}
			mi := b.memIndex(m.Name)
			already := false
			for _, existing := range b.mems[mi].ReadPorts {
				if existing.OutBits[0] == BitNet(rp.Name, 0) {
					already = true
				}
			}
			_ = already
		}
		for _, wp := range m.WritePorts {
			addrBits, err := b.lower(wp.Addr, nil)
			if err != nil {
				return err
			}
			dataBits, err := b.lower(wp.Data, nil)
			if err != nil {
				return err
			}
			enBit := ""
			if wp.Enable != nil {
				eb, err := b.lower(wp.Enable, nil)
				if err != nil {
					return err
				}
				enBit = eb[0]
			}
			mi := b.memIndex(m.Name)
			b.mems[mi].WritePorts = append(b.mems[mi].WritePorts, MemWritePrim{
				AddrBits:  addrBits,
				DataBits:  dataBits,
				EnableBit: enBit,
				Clock:     wp.Clock,
			})
		}
	}
	return nil
}

// muxSingle selects resetVal when the net sigBitNet is at activeHigh's
// asserted level, else dBit. Used to fold a
// synchronous reset into a DFF's D input.
func (b *builder) muxSingle(sigBitNet string, activeHigh bool, resetVal, dBit string) string {
	cond := sigBitNet
	if !activeHigh {
		cond = b.not(sigBitNet)
	}
	return b.muxBits(cond, []string{resetVal}, []string{dBit})[0]
}
