package birbuild

import "github.com/rhdl/rhdl/pkg/bir"

// Convenience constructors mirroring bir.Bin/bir.Un for the common
// case where the result width equals the operand width (arithmetic,
// bitwise) — comparisons and reductions are always width 1 regardless.

func Add(l, r bir.Expr) *bir.Binary { return bir.Bin(bir.OpAdd, l, r, l.Width()) }
func Sub(l, r bir.Expr) *bir.Binary { return bir.Bin(bir.OpSub, l, r, l.Width()) }
func And(l, r bir.Expr) *bir.Binary { return bir.Bin(bir.OpAnd, l, r, l.Width()) }
func Or(l, r bir.Expr) *bir.Binary  { return bir.Bin(bir.OpOr, l, r, l.Width()) }
func Xor(l, r bir.Expr) *bir.Binary { return bir.Bin(bir.OpXor, l, r, l.Width()) }
func Shl(l, r bir.Expr) *bir.Binary { return bir.Bin(bir.OpShl, l, r, l.Width()) }
func Shr(l, r bir.Expr) *bir.Binary { return bir.Bin(bir.OpShr, l, r, l.Width()) }

func Eq(l, r bir.Expr) *bir.Binary { return bir.Bin(bir.OpEq, l, r, 1) }
func Ne(l, r bir.Expr) *bir.Binary { return bir.Bin(bir.OpNe, l, r, 1) }
func Lt(l, r bir.Expr) *bir.Binary { return bir.Bin(bir.OpLt, l, r, 1) }
func Le(l, r bir.Expr) *bir.Binary { return bir.Bin(bir.OpLe, l, r, 1) }
func Gt(l, r bir.Expr) *bir.Binary { return bir.Bin(bir.OpGt, l, r, 1) }
func Ge(l, r bir.Expr) *bir.Binary { return bir.Bin(bir.OpGe, l, r, 1) }

func Not(e bir.Expr) *bir.Unary { return bir.Un(bir.OpNot, e, e.Width()) }
func Neg(e bir.Expr) *bir.Unary { return bir.Un(bir.OpNeg, e, e.Width()) }
func ReduceAnd(e bir.Expr) *bir.Unary { return bir.Un(bir.OpReduceAnd, e, 1) }
func ReduceOr(e bir.Expr) *bir.Unary  { return bir.Un(bir.OpReduceOr, e, 1) }
func ReduceXor(e bir.Expr) *bir.Unary { return bir.Un(bir.OpReduceXor, e, 1) }
func SExt(e bir.Expr, width int) *bir.Unary { return bir.Un(bir.OpSExt, e, width) }

func MuxE(sel, then, els bir.Expr) *bir.Mux { return &bir.Mux{Sel: sel, Then: then, Else: els} }

func Concat(operands ...bir.Expr) *bir.Concat { return &bir.Concat{Operands: operands} }
