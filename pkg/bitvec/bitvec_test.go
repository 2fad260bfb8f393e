package bitvec

import "testing"

func TestAddWraps(t *testing.T) {
	a := New(0x7F, 8)
	b := New(0x01, 8)
	got := Add(a, b, 8)
	if got.Uint64() != 0x80 {
		t.Errorf("Add(0x7F,0x01) = %#x, want 0x80", got.Uint64())
	}
}

func TestSubNegateLaw(t *testing.T) {
	// a + (-a) == 0 mod 2^w, for a sample of widths and values.
	widths := []int{1, 4, 8, 16, 32, 64}
	for _, w := range widths {
		for _, v := range []uint64{0, 1, 5, 1<<uint(w) - 1} {
			a := New(v, w)
			sum := Add(a, Neg(a), w)
			if sum.Uint64() != 0 {
				t.Errorf("width %d value %d: a+(-a) = %d, want 0", w, v, sum.Uint64())
			}
		}
	}
}

func TestExtendIdentity(t *testing.T) {
	a := New(0x2A, 8)
	if got := Extend(a, 8); got != a {
		t.Errorf("Extend(x, x.Width()) = %v, want %v", got, a)
	}
}

func TestSliceConcatRoundTrip(t *testing.T) {
	a := New(0xAB, 8)
	b := New(0x12, 8)
	c := Concat(a, b) // a is MSB
	if c.Width() != 16 {
		t.Fatalf("concat width = %d, want 16", c.Width())
	}
	gotA := Slice(c, 15, 8)
	if gotA != a {
		t.Errorf("slice high half = %v, want %v", gotA, a)
	}
	gotB := Slice(c, 7, 0)
	if gotB != b {
		t.Errorf("slice low half = %v, want %v", gotB, b)
	}
}

func TestSignedCompare(t *testing.T) {
	neg1 := New(0xFF, 8) // -1 signed
	pos1 := New(0x01, 8)
	if !Slt(neg1, pos1) {
		t.Error("Slt(-1, 1) should be true")
	}
	if Ult(neg1, pos1) {
		t.Error("Ult(0xFF, 0x01) should be false (0xFF is the larger unsigned value)")
	}
}

func TestShiftsAndRotates(t *testing.T) {
	a := New(0b1000_0001, 8)
	if got := Shl(a, 1, 8); got.Uint64() != 0b0000_0010 {
		t.Errorf("Shl = %#b, want 0b10", got.Uint64())
	}
	if got := Lshr(a, 1, 8); got.Uint64() != 0b0100_0000 {
		t.Errorf("Lshr = %#b, want 0b1000000", got.Uint64())
	}
	neg := New(0x80, 8) // -128 signed
	if got := Ashr(neg, 1, 8); got.Uint64() != 0xC0 {
		t.Errorf("Ashr(0x80,1) = %#x, want 0xC0", got.Uint64())
	}
	if got := RotateLeft(New(0b1000_0001, 8), 1); got.Uint64() != 0b0000_0011 {
		t.Errorf("RotateLeft = %#b, want 0b11", got.Uint64())
	}
	if got := RotateRight(New(0b1000_0001, 8), 1); got.Uint64() != 0b1100_0000 {
		t.Errorf("RotateRight = %#b, want 0b11000000", got.Uint64())
	}
}

func TestReductions(t *testing.T) {
	if ReduceAnd(New(0xFF, 8)).Uint64() != 1 {
		t.Error("ReduceAnd(0xFF) should be 1")
	}
	if ReduceAnd(New(0xFE, 8)).Uint64() != 0 {
		t.Error("ReduceAnd(0xFE) should be 0")
	}
	if ReduceOr(New(0, 8)).Uint64() != 0 {
		t.Error("ReduceOr(0) should be 0")
	}
	if ReduceXor(New(0b111, 3)).Uint64() != 1 {
		t.Error("ReduceXor(0b111) should be 1 (odd parity)")
	}
}

func TestDivByZero(t *testing.T) {
	a := New(10, 8)
	z := New(0, 8)
	if _, err := Div(a, z, 8); err != ErrDivByZero {
		t.Errorf("Div by zero: err = %v, want ErrDivByZero", err)
	}
	q, err := Div(New(10, 8), New(3, 8), 8)
	if err != nil || q.Uint64() != 3 {
		t.Errorf("Div(10,3) = %v, %v, want 3, nil", q, err)
	}
}

func TestInvalidSlicePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Slice with high >= width should panic")
		}
	}()
	Slice(New(1, 8), 8, 0)
}
