// Package vcd renders a captured simulation trace to Value Change Dump
// text (§6): $timescale/$scope/$var/$dumpvars header, then #<time>
// markers with per-signal change records. It is a pure serializer over
// a buffer — no simulation state involved, matching §3.4's "code
// generation is pure" discipline for the trace pipeline.
package vcd

import (
	"fmt"
	"io"
	"strings"

	"github.com/rhdl/rhdl/pkg/bitvec"
)

// Sample is one tick's settled value of one watched signal.
type Sample struct {
	Tick  uint64
	Value bitvec.BitVector
}

// Signal is one watched signal's declared width and its recorded
// samples, in tick order.
type Signal struct {
	Name    string
	Width   int
	Samples []Sample
}

// idChars are the printable ASCII VCD identifier alphabet (33..126),
// used to assign the shortest possible symbol to each signal.
const idChars = "!\"#$%&'()*+,-./0123456789:;<=>?@ABCDEFGHIJKLMNOPQRSTUVWXYZ[\\]^_`abcdefghijklmnopqrstuvwxyz{|}~"

func vcdID(i int) string {
	if i == 0 {
		return string(idChars[0])
	}
	var b []byte
	base := len(idChars)
	for i > 0 {
		b = append([]byte{idChars[i%base]}, b...)
		i /= base
	}
	return string(b)
}

// Write emits signals as a VCD document to w. scope names the $scope
// module (the component name is the natural choice). timescale is the
// raw $timescale body, e.g. "1ns" — §6 fixes the VCD timescale to
// ticks of the default clock, so callers typically pass "1 ns" per
// tick with no further conversion.
func Write(w io.Writer, scope, timescale string, signals []Signal) error {
	var b strings.Builder
	fmt.Fprintf(&b, "$timescale %s $end\n", timescale)
	fmt.Fprintf(&b, "$scope module %s $end\n", scope)

	ids := make(map[string]string, len(signals))
	for i, s := range signals {
		id := vcdID(i)
		ids[s.Name] = id
		fmt.Fprintf(&b, "$var wire %d %s %s $end\n", s.Width, id, s.Name)
	}
	b.WriteString("$upscope $end\n$enddefinitions $end\n")

	merged := mergeByTick(signals)
	first := true
	for _, tickEvents := range merged {
		fmt.Fprintf(&b, "#%d\n", tickEvents.tick)
		if first {
			b.WriteString("$dumpvars\n")
			first = false
		}
		for _, s := range signals {
			if v, ok := tickEvents.values[s.Name]; ok {
				writeValueChange(&b, ids[s.Name], s.Width, v)
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

type tickEvents struct {
	tick   uint64
	values map[string]bitvec.BitVector
}

// mergeByTick groups every signal's per-tick samples into one ordered
// sequence of simultaneous changes, ascending tick order, so the VCD
// body emits one #<time> marker per distinct tick rather than one per
// signal per tick.
func mergeByTick(signals []Signal) []tickEvents {
	byTick := map[uint64]map[string]bitvec.BitVector{}
	for _, s := range signals {
		for _, samp := range s.Samples {
			m, ok := byTick[samp.Tick]
			if !ok {
				m = map[string]bitvec.BitVector{}
				byTick[samp.Tick] = m
			}
			m[s.Name] = samp.Value
		}
	}
	ticks := make([]uint64, 0, len(byTick))
	for t := range byTick {
		ticks = append(ticks, t)
	}
	sortUint64s(ticks)
	out := make([]tickEvents, 0, len(ticks))
	for _, t := range ticks {
		out = append(out, tickEvents{tick: t, values: byTick[t]})
	}
	return out
}

func sortUint64s(s []uint64) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func writeValueChange(b *strings.Builder, id string, width int, v bitvec.BitVector) {
	if width == 1 {
		if v.Uint64() != 0 {
			b.WriteString("1")
		} else {
			b.WriteString("0")
		}
		b.WriteString(id)
		b.WriteString("\n")
		return
	}
	b.WriteString("b")
	for i := width - 1; i >= 0; i-- {
		if v.Bit(i) != 0 {
			b.WriteString("1")
		} else {
			b.WriteString("0")
		}
	}
	b.WriteString(" ")
	b.WriteString(id)
	b.WriteString("\n")
}
