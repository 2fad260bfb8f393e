package simctl

import (
	"github.com/rhdl/rhdl/pkg/bitvec"
	"github.com/rhdl/rhdl/pkg/vcd"
)

// watchedSignal is one signal registered with TraceAddSignal: its
// declared width (needed by VCD export) and the samples captured so
// far, newest appended last.
type watchedSignal struct {
	name    string
	width   int
	samples []vcd.Sample
}

// traceBuffer is a bounded, append-only log of watched-signal samples
// (§5: "bounded by configured capacity; drop oldest when full").
// Capacity counts samples per signal, not bytes.
type traceBuffer struct {
	enabled  bool
	capacity int // 0 = unbounded
	signals  []*watchedSignal
	byName   map[string]*watchedSignal
	dropped  uint64
}

func newTraceBuffer(capacity int) *traceBuffer {
	return &traceBuffer{capacity: capacity, byName: map[string]*watchedSignal{}}
}

func (t *traceBuffer) addSignal(name string, width int) {
	if _, ok := t.byName[name]; ok {
		return
	}
	ws := &watchedSignal{name: name, width: width}
	t.byName[name] = ws
	t.signals = append(t.signals, ws)
}

func (t *traceBuffer) capture(tick uint64, peek func(name string) (bitvec.BitVector, error)) {
	if !t.enabled {
		return
	}
	for _, ws := range t.signals {
		v, err := peek(ws.name)
		if err != nil {
			continue
		}
		if t.capacity > 0 && len(ws.samples) >= t.capacity {
			ws.samples = ws.samples[1:]
			t.dropped++
		}
		ws.samples = append(ws.samples, vcd.Sample{Tick: tick, Value: v})
	}
}

// DroppedSamples returns how many samples have been silently dropped
// (oldest-first) since the buffer reached capacity (§7's "VCD buffer
// overflow is silent drop-oldest with a counter exposed via the status
// surface").
func (t *traceBuffer) DroppedSamples() uint64 { return t.dropped }

func (t *traceBuffer) vcdSignals() []vcd.Signal {
	out := make([]vcd.Signal, len(t.signals))
	for i, ws := range t.signals {
		out[i] = vcd.Signal{Name: ws.name, Width: ws.width, Samples: append([]vcd.Sample(nil), ws.samples...)}
	}
	return out
}
