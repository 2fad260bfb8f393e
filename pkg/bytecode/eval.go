package bytecode

import (
	"fmt"

	"github.com/rhdl/rhdl/pkg/bir"
	"github.com/rhdl/rhdl/pkg/bitvec"
)

func evalBinary(op bir.BinOp, l, r bitvec.BitVector, w int) bitvec.BitVector {
	switch op {
	case bir.OpAdd:
		return bitvec.Add(l, r, w)
	case bir.OpSub:
		return bitvec.Sub(l, r, w)
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
		return bitvec.Shl(l, uint(r.Uint64()), w)
	case bir.OpShr:
		return bitvec.Lshr(l, uint(r.Uint64()), w)
	default:
		panic(fmt.Sprintf("bytecode: unknown binary op %v", op))
	}
}

func evalUnary(op bir.UnOp, v bitvec.BitVector, w int) bitvec.BitVector {
	switch op {
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
		return bitvec.SExt(v, w)
	default:
		panic(fmt.Sprintf("bytecode: unknown unary op %v", op))
	}
}

func boolBit(b bool) bitvec.BitVector {
	if b {
		return bitvec.New(1, 1)
	}
	return bitvec.New(0, 1)
}

func resetAsserted(v bitvec.BitVector, activeHigh bool) bool {
	bit := v.Uint64() != 0
	if activeHigh {
		return bit
	}
	return !bit
}
