package interp

import (
	"fmt"

	"github.com/rhdl/rhdl/pkg/bitvec"
)

// MemoryReadByte and MemoryWriteByte give external tooling (the control
// protocol, snapshot save/load) byte-addressed access into a declared
// memory, independent of any read/write port's HDL semantics (§4.I).
// Only memories whose Width is a multiple of 8 support byte access;
// narrower memories (e.g. a 1-bit scratchpad) report an error rather
// than silently padding.

func (it *Interpreter) memBytesPerWord(name string) (*memState, int, error) {
	ms, ok := it.mems[name]
	if !ok {
		return nil, 0, fmt.Errorf("interp: unknown memory %q", name)
	}
	if ms.def.Width%8 != 0 {
		return nil, 0, fmt.Errorf("interp: memory %q width %d is not byte-addressable", name, ms.def.Width)
	}
	return ms, ms.def.Width / 8, nil
}

// MemoryReadByte returns the byte at the given absolute byte offset
// into name, little-endian within each word.
func (it *Interpreter) MemoryReadByte(name string, offset int) (byte, error) {
	ms, bpw, err := it.memBytesPerWord(name)
	if err != nil {
		return 0, err
	}
	word := offset / bpw
	shift := uint(offset%bpw) * 8
	if word < 0 || word >= len(ms.data) {
		return 0, fmt.Errorf("interp: memory %q offset %d out of range", name, offset)
	}
	return byte(ms.data[word].Uint64() >> shift), nil
}

// MemoryWriteByte overwrites a single byte at the given absolute byte
// offset into name, leaving the rest of that word's bits untouched.
func (it *Interpreter) MemoryWriteByte(name string, offset int, b byte) error {
	ms, bpw, err := it.memBytesPerWord(name)
	if err != nil {
		return err
	}
	word := offset / bpw
	shift := uint(offset%bpw) * 8
	if word < 0 || word >= len(ms.data) {
		return fmt.Errorf("interp: memory %q offset %d out of range", name, offset)
	}
	old := ms.data[word].Uint64()
	cleared := old &^ (uint64(0xff) << shift)
	ms.data[word] = bitvec.New(cleared|(uint64(b)<<shift), ms.def.Width)
	return nil
}

// MemorySize returns the declared depth and word width (bits) of name.
func (it *Interpreter) MemorySize(name string) (depth, width int, err error) {
	ms, ok := it.mems[name]
	if !ok {
		return 0, 0, fmt.Errorf("interp: unknown memory %q", name)
	}
	return len(ms.data), ms.def.Width, nil
}
