// Package bitvec implements fixed-width unsigned integers with explicit
// output widths, the numeric kernel every other RHDL layer builds on.
package bitvec

import (
	"fmt"
	"math/bits"
)

// MaxWidth is the largest bit width a BitVector can represent. RHDL
// backs values with a uint64, which covers every register, port, and
// memory element width a portable RTL exporter needs to emit as a
// single vector.
const MaxWidth = 64

// BitVector is a pair (value, width). Width is always >= 1 and <=
// MaxWidth. Value holds the low Width bits of a non-negative integer;
// bits above Width are always zero. Signed interpretation is never
// implicit: callers that need it call SExt, Slt, or Ashr explicitly.
type BitVector struct {
	value uint64
	width int
}

// New constructs a BitVector, masking value to width bits.
func New(value uint64, width int) BitVector {
	mustWidth(width)
	return BitVector{value: mask(value, width), width: width}
}

// Zero returns the zero value of the given width.
func Zero(width int) BitVector { return New(0, width) }

// Width returns the vector's bit width.
func (b BitVector) Width() int { return b.width }

// Uint64 returns the value as a uint64 (bits above Width are zero).
func (b BitVector) Uint64() uint64 { return b.value }

// Bit returns the value of bit i (0 = LSB). Panics if i is out of range.
func (b BitVector) Bit(i int) int {
	if i < 0 || i >= b.width {
		panic(fmt.Sprintf("bitvec: bit %d out of range for width %d", i, b.width))
	}
	return int((b.value >> uint(i)) & 1)
}

func mustWidth(w int) {
	if w < 1 || w > MaxWidth {
		panic(fmt.Sprintf("bitvec: invalid width %d (must be 1..%d)", w, MaxWidth))
	}
}

func mask(v uint64, width int) uint64 {
	if width >= 64 {
		return v
	}
	return v & ((uint64(1) << uint(width)) - 1)
}

func sameWidth(a, b BitVector) {
	if a.width != b.width {
		panic(fmt.Sprintf("bitvec: width mismatch %d vs %d", a.width, b.width))
	}
}

// Add returns a+b truncated to width bits. a and b must share width;
// width may differ from a.width (the caller extends/truncates as the
// BIR node's declared output width requires).
func Add(a, b BitVector, width int) BitVector {
	sameWidth(a, b)
	return New(a.value+b.value, width)
}

// Sub returns a-b truncated to width bits (two's-complement wraparound).
func Sub(a, b BitVector, width int) BitVector {
	sameWidth(a, b)
	return New(a.value-b.value, width)
}

// Neg returns the two's-complement negation of a.
func Neg(a BitVector) BitVector {
	return New(-a.value, a.width)
}

// And returns the bitwise AND of a and b. Widths must match.
func And(a, b BitVector) BitVector {
	sameWidth(a, b)
	return New(a.value&b.value, a.width)
}

// Or returns the bitwise OR of a and b. Widths must match.
func Or(a, b BitVector) BitVector {
	sameWidth(a, b)
	return New(a.value|b.value, a.width)
}

// Xor returns the bitwise XOR of a and b. Widths must match.
func Xor(a, b BitVector) BitVector {
	sameWidth(a, b)
	return New(a.value^b.value, a.width)
}

// Not returns the bitwise complement of a, width-masked.
func Not(a BitVector) BitVector {
	return New(^a.value, a.width)
}

// Eq reports whether a and b hold the same value. Widths must match.
func Eq(a, b BitVector) bool {
	sameWidth(a, b)
	return a.value == b.value
}

// Ult reports whether a < b, unsigned. Widths must match.
func Ult(a, b BitVector) bool {
	sameWidth(a, b)
	return a.value < b.value
}

// Ule reports whether a <= b, unsigned.
func Ule(a, b BitVector) bool {
	sameWidth(a, b)
	return a.value <= b.value
}

// Slt reports whether a < b, interpreting the top bit of each as a
// sign bit. Widths must match.
func Slt(a, b BitVector) bool {
	sameWidth(a, b)
	return signExtend64(a) < signExtend64(b)
}

// Sle reports whether a <= b, signed.
func Sle(a, b BitVector) bool {
	sameWidth(a, b)
	return signExtend64(a) <= signExtend64(b)
}

func signExtend64(a BitVector) int64 {
	if a.width == 64 {
		return int64(a.value)
	}
	shift := uint(64 - a.width)
	return int64(a.value<<shift) >> shift
}

// Shl returns a shifted left by n bits, truncated to width.
func Shl(a BitVector, n uint, width int) BitVector {
	if n >= 64 {
		return Zero(width)
	}
	return New(a.value<<n, width)
}

// Lshr returns a shifted right by n bits, logical (zero-filled).
func Lshr(a BitVector, n uint, width int) BitVector {
	if n >= 64 {
		return Zero(width)
	}
	return New(a.value>>n, width)
}

// Ashr returns a shifted right by n bits, arithmetic (sign-filled
// according to a's own width, then re-truncated to width).
func Ashr(a BitVector, n uint, width int) BitVector {
	se := signExtend64(a)
	if n >= 64 {
		if se < 0 {
			return New(^uint64(0), width)
		}
		return Zero(width)
	}
	return New(uint64(se>>n), width)
}

// RotateLeft rotates a's bits left by n (mod a.width).
func RotateLeft(a BitVector, n uint) BitVector {
	n %= uint(a.width)
	if n == 0 {
		return a
	}
	v := (a.value << n) | (a.value >> uint(a.width-int(n)))
	return New(v, a.width)
}

// RotateRight rotates a's bits right by n (mod a.width).
func RotateRight(a BitVector, n uint) BitVector {
	n %= uint(a.width)
	if n == 0 {
		return a
	}
	return RotateLeft(a, uint(a.width)-n)
}

// Slice extracts bits [low, high] (inclusive), width = high-low+1.
// Panics if the range is invalid for the operand's width — an invalid
// slice range is a programmer error per the kernel's failure policy.
func Slice(a BitVector, high, low int) BitVector {
	if low < 0 || high < low || high >= a.width {
		panic(fmt.Sprintf("bitvec: invalid slice [%d:%d] of width %d", high, low, a.width))
	}
	w := high - low + 1
	return New(a.value>>uint(low), w)
}

// Concat concatenates operands MSB-first: operands[0] occupies the
// highest bits of the result. Result width is the sum of operand
// widths, which must not exceed MaxWidth.
func Concat(operands ...BitVector) BitVector {
	total := 0
	for _, o := range operands {
		total += o.width
	}
	if total > MaxWidth {
		panic(fmt.Sprintf("bitvec: concat result width %d exceeds MaxWidth %d", total, MaxWidth))
	}
	var v uint64
	shift := 0
	for i := len(operands) - 1; i >= 0; i-- {
		o := operands[i]
		v |= o.value << uint(shift)
		shift += o.width
	}
	return New(v, total)
}

// ZExt zero-extends a to width bits. width must be >= a.Width().
func ZExt(a BitVector, width int) BitVector {
	if width < a.width {
		panic(fmt.Sprintf("bitvec: zext to narrower width %d < %d", width, a.width))
	}
	return New(a.value, width)
}

// SExt sign-extends a to width bits, treating a's top bit as sign.
// width must be >= a.Width().
func SExt(a BitVector, width int) BitVector {
	if width < a.width {
		panic(fmt.Sprintf("bitvec: sext to narrower width %d < %d", width, a.width))
	}
	se := signExtend64(a)
	return New(uint64(se), width)
}

// Extend behaves like ZExt when w == a.Width() it is a no-op, matching
// the testable law extend(x, w) == x when w == x.width.
func Extend(a BitVector, width int) BitVector { return ZExt(a, width) }

// ReduceAnd ANDs all bits of a together, result width 1.
func ReduceAnd(a BitVector) BitVector {
	full := mask(^uint64(0), a.width)
	if a.value == full {
		return New(1, 1)
	}
	return New(0, 1)
}

// ReduceOr ORs all bits of a together, result width 1.
func ReduceOr(a BitVector) BitVector {
	if a.value != 0 {
		return New(1, 1)
	}
	return New(0, 1)
}

// ReduceXor XORs all bits of a together, result width 1.
func ReduceXor(a BitVector) BitVector {
	if bits.OnesCount64(a.value)%2 == 1 {
		return New(1, 1)
	}
	return New(0, 1)
}

// PopCount returns the number of set bits in a.
func PopCount(a BitVector) int {
	return bits.OnesCount64(a.value)
}

// ErrDivByZero is returned by Div/Rem when dividing by zero, per the
// kernel's documented-sentinel failure policy for the optional divide.
var ErrDivByZero = fmt.Errorf("bitvec: division by zero")

// Div returns the truncating unsigned quotient a/b at the given
// width. Returns ErrDivByZero if b is zero instead of trapping, so
// callers embedded in a simulation loop can turn it into a documented
// simulation error (§7.2) rather than crashing the process.
func Div(a, b BitVector, width int) (BitVector, error) {
	sameWidth(a, b)
	if b.value == 0 {
		return BitVector{}, ErrDivByZero
	}
	return New(a.value/b.value, width), nil
}

// Rem returns the truncating unsigned remainder a%b at the given width.
func Rem(a, b BitVector, width int) (BitVector, error) {
	sameWidth(a, b)
	if b.value == 0 {
		return BitVector{}, ErrDivByZero
	}
	return New(a.value%b.value, width), nil
}

// String renders the vector as "<width>'d<value>", matching the sized
// literal convention used by the Verilog generator.
func (b BitVector) String() string {
	return fmt.Sprintf("%d'd%d", b.width, b.value)
}
