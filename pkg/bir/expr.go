// Package bir defines the Behavioral Intermediate Representation: the
// typed tree of expressions, sequential rules, and component instances
// that is the canonical design representation for the rest of RHDL.
package bir

import "github.com/rhdl/rhdl/pkg/bitvec"

// Expr is any node in a BIR expression tree. Every node has a known,
// statically computable width.
type Expr interface {
	Width() int
	isExpr()
}

// BinOp names a binary operator kind.
type BinOp int

const (
	OpAdd BinOp = iota
	OpSub
	OpAnd
	OpOr
	OpXor
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpShl
	OpShr // logical right shift
)

func (op BinOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpAnd:
		return "&"
	case OpOr:
		return "|"
	case OpXor:
		return "^"
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpShl:
		return "<<"
	case OpShr:
		return ">>"
	default:
		return "?"
	}
}

// IsComparison reports whether op produces a single-bit result.
func (op BinOp) IsComparison() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// UnOp names a unary operator kind.
type UnOp int

const (
	OpNot UnOp = iota
	OpNeg
	OpReduceAnd
	OpReduceOr
	OpReduceXor
	OpRotateLeft
	OpRotateRight
	OpSExt
)

func (op UnOp) String() string {
	switch op {
	case OpNot:
		return "~"
	case OpNeg:
		return "-"
	case OpReduceAnd:
		return "&"
	case OpReduceOr:
		return "|"
	case OpReduceXor:
		return "^"
	case OpRotateLeft:
		return "rotl"
	case OpRotateRight:
		return "rotr"
	case OpSExt:
		return "sext"
	default:
		return "?"
	}
}

// IsReduction reports whether op produces a single-bit result.
func (op UnOp) IsReduction() bool {
	switch op {
	case OpReduceAnd, OpReduceOr, OpReduceXor:
		return true
	}
	return false
}

// Literal is a constant value of known width.
type Literal struct {
	Value bitvec.BitVector
}

func (l *Literal) Width() int { return l.Value.Width() }
func (*Literal) isExpr()      {}

// Lit builds a Literal expression.
func Lit(value uint64, width int) *Literal {
	return &Literal{Value: bitvec.New(value, width)}
}

// Signal references a port, wire, or register by name, resolved within
// the enclosing component (or, before elaboration, possibly a bound
// sub-instance — elab.Elaborate removes that indirection).
type Signal struct {
	Name string
	W    int
}

func (s *Signal) Width() int { return s.W }
func (*Signal) isExpr()      {}

// Sig builds a Signal reference.
func Sig(name string, width int) *Signal { return &Signal{Name: name, W: width} }

// Slice extracts operand[High:Low] inclusive.
type Slice struct {
	Operand  Expr
	High, Low int
}

func (s *Slice) Width() int { return s.High - s.Low + 1 }
func (*Slice) isExpr()      {}

// Concat concatenates Operands MSB-first; result width is their sum.
type Concat struct {
	Operands []Expr
}

func (c *Concat) Width() int {
	w := 0
	for _, o := range c.Operands {
		w += o.Width()
	}
	return w
}
func (*Concat) isExpr() {}

// Binary applies a binary operator. For arithmetic/bitwise ops,
// Left.Width() == Right.Width() == W; for comparisons W == 1.
type Binary struct {
	Op          BinOp
	Left, Right Expr
	W           int
}

func (b *Binary) Width() int { return b.W }
func (*Binary) isExpr()      {}

// Bin builds a Binary node with an explicit result width.
func Bin(op BinOp, l, r Expr, width int) *Binary {
	return &Binary{Op: op, Left: l, Right: r, W: width}
}

// Unary applies a unary operator.
type Unary struct {
	Op      UnOp
	Operand Expr
	W       int
}

func (u *Unary) Width() int { return u.W }
func (*Unary) isExpr()      {}

// Un builds a Unary node with an explicit result width.
func Un(op UnOp, operand Expr, width int) *Unary {
	return &Unary{Op: op, Operand: operand, W: width}
}

// Mux selects Then when Sel is 1, Else otherwise. Sel must be width 1;
// Then and Else must share a width, which is the Mux's own width.
type Mux struct {
	Sel        Expr
	Then, Else Expr
}

func (m *Mux) Width() int { return m.Then.Width() }
func (*Mux) isExpr()      {}

// CaseArm is one (key -> value) mapping in a CaseSelect.
type CaseArm struct {
	Key   bitvec.BitVector
	Value Expr
}

// CaseSelect dispatches on Selector's value to one of Cases, or
// Default when no key matches. All result expressions share a width.
type CaseSelect struct {
	Selector Expr
	Cases    []CaseArm
	Default  Expr
}

func (c *CaseSelect) Width() int { return c.Default.Width() }
func (*CaseSelect) isExpr()      {}

// Let introduces a single-assignment local binding visible in Body.
type Let struct {
	Name  string
	Value Expr
	Body  Expr
}

func (l *Let) Width() int { return l.Body.Width() }
func (*Let) isExpr()      {}

// LetRef references a Let binding by name from within its Body.
type LetRef struct {
	Name string
	W    int
}

func (r *LetRef) Width() int { return r.W }
func (*LetRef) isExpr()      {}
