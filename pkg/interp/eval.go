package interp

import (
	"fmt"

	"github.com/rhdl/rhdl/pkg/bir"
	"github.com/rhdl/rhdl/pkg/bitvec"
)

// env is a read-only view used while evaluating one expression tree:
// it resolves Signal references against the interpreter's current
// register/wire snapshot, and LetRef against locally bound values.
type env struct {
	it   *Interpreter
	lets map[string]bitvec.BitVector
}

func (it *Interpreter) lookup(name string) bitvec.BitVector {
	if v, ok := it.regs[name]; ok {
		return v
	}
	return it.wires[name]
}

func (it *Interpreter) eval(e bir.Expr, lets map[string]bitvec.BitVector) bitvec.BitVector {
	switch n := e.(type) {
	case *bir.Literal:
		return n.Value
	case *bir.Signal:
		return it.lookup(n.Name)
	case *bir.Slice:
		v := it.eval(n.Operand, lets)
		return bitvec.Slice(v, n.High, n.Low)
	case *bir.Concat:
		vals := make([]bitvec.BitVector, len(n.Operands))
		for i, o := range n.Operands {
			vals[i] = it.eval(o, lets)
		}
		return bitvec.Concat(vals...)
	case *bir.Binary:
		return it.evalBinary(n, lets)
	case *bir.Unary:
		return it.evalUnary(n, lets)
	case *bir.Mux:
		sel := it.eval(n.Sel, lets)
		if sel.Uint64() != 0 {
			return it.eval(n.Then, lets)
		}
		return it.eval(n.Else, lets)
	case *bir.CaseSelect:
		sel := it.eval(n.Selector, lets)
		for _, arm := range n.Cases {
			if sel.Uint64() == arm.Key.Uint64() {
				return it.eval(arm.Value, lets)
			}
		}
		return it.eval(n.Default, lets)
	case *bir.Let:
		v := it.eval(n.Value, lets)
		child := make(map[string]bitvec.BitVector, len(lets)+1)
		for k, val := range lets {
			child[k] = val
		}
		child[n.Name] = v
		return it.eval(n.Body, child)
	case *bir.LetRef:
		if v, ok := lets[n.Name]; ok {
			return v
		}
		panic(fmt.Sprintf("interp: unbound local %q", n.Name))
	default:
		panic(fmt.Sprintf("interp: unknown expression node %T", e))
	}
}

func (it *Interpreter) evalBinary(n *bir.Binary, lets map[string]bitvec.BitVector) bitvec.BitVector {
	l := it.eval(n.Left, lets)
	r := it.eval(n.Right, lets)
	switch n.Op {
	case bir.OpAdd:
		return bitvec.Add(l, r, n.W)
	case bir.OpSub:
		return bitvec.Sub(l, r, n.W)
	case bir.OpAnd:
		return bitvec.And(l, r)
	case bir.OpOr:
		return bitvec.Or(l, r)
	case bir.OpXor:
		return bitvec.Xor(l, r)
	case bir.OpEq:
		return boolBit(bitvec.Eq(l, r))
	case bir.OpNe:
		return boolBit(!bitvec.Eq(l, r))
	case bir.OpLt:
		return boolBit(bitvec.Ult(l, r))
	case bir.OpLe:
		return boolBit(bitvec.Ule(l, r))
	case bir.OpGt:
		return boolBit(!bitvec.Ule(l, r))
	case bir.OpGe:
		return boolBit(!bitvec.Ult(l, r))
	case bir.OpShl:
		return bitvec.Shl(l, uint(r.Uint64()), n.W)
	case bir.OpShr:
		return bitvec.Lshr(l, uint(r.Uint64()), n.W)
	default:
		panic(fmt.Sprintf("interp: unknown binary op %v", n.Op))
	}
}

func (it *Interpreter) evalUnary(n *bir.Unary, lets map[string]bitvec.BitVector) bitvec.BitVector {
	v := it.eval(n.Operand, lets)
	switch n.Op {
	case bir.OpNot:
		return bitvec.Not(v)
	case bir.OpNeg:
		return bitvec.Neg(v)
	case bir.OpReduceAnd:
		return bitvec.ReduceAnd(v)
	case bir.OpReduceOr:
		return bitvec.ReduceOr(v)
	case bir.OpReduceXor:
		return bitvec.ReduceXor(v)
	case bir.OpRotateLeft:
		return bitvec.RotateLeft(v, 1)
	case bir.OpRotateRight:
		return bitvec.RotateRight(v, 1)
	case bir.OpSExt:
		return bitvec.SExt(v, n.W)
	default:
		panic(fmt.Sprintf("interp: unknown unary op %v", n.Op))
	}
}

func boolBit(b bool) bitvec.BitVector {
	if b {
		return bitvec.New(1, 1)
	}
	return bitvec.New(0, 1)
}
