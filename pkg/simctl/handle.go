package simctl

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rhdl/rhdl/pkg/bitvec"
	"github.com/rhdl/rhdl/pkg/vcd"
)

// Handle wraps an Engine with the trace buffer, breakpoint/watch
// state, and cancellation flag that §4.I's control surface and §5's
// concurrency model require. It exclusively owns the Engine's
// register/memory state (§3.5): two Handles never share state, even
// over the same BIR, since each wraps its own Engine instance.
type Handle struct {
	ID  uuid.UUID
	log *logrus.Entry

	mu  sync.Mutex // serializes RunTicks/RunClockTicks against direct memory access (§5)
	eng Engine

	trace *traceBuffer

	breakpoints []Breakpoint
	nextBpID    int
	watchpoints []Watch
	nextWpID    int

	stopFlag atomic.Bool
}

// NewHandle wraps eng, giving it a fresh identity and a trace buffer
// bounded to traceCapacity samples per signal (0 = unbounded).
func NewHandle(eng Engine, traceCapacity int) *Handle {
	id := uuid.New()
	return &Handle{
		ID:    id,
		log:   logrus.WithFields(logrus.Fields{"handle": id.String(), "component": eng.Component().Name}),
		eng:   eng,
		trace: newTraceBuffer(traceCapacity),
	}
}

// Engine returns the wrapped backend.
func (h *Handle) Engine() Engine { return h.eng }

// Reset restores registers/memories to declared reset values and
// zeroes the tick counter (§4.I). It does not clear the trace buffer
// or breakpoints — those are host-session state, not simulation state.
func (h *Handle) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.eng.Reset()
}

// Peek returns the current settled value of a named signal.
func (h *Handle) Peek(name string) (bitvec.BitVector, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.eng.Peek(name)
}

// PeekByIdx addresses the same values as Peek via a stable index.
func (h *Handle) PeekByIdx(i int) (bitvec.BitVector, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.eng.PeekByIdx(i)
}

// SignalNames returns the stable PeekByIdx-ordered signal name list.
func (h *Handle) SignalNames() []string { return h.eng.SignalNames() }

// Poke sets an external input for the next settle.
func (h *Handle) Poke(name string, v bitvec.BitVector) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.eng.Poke(name, v)
}

// Tick advances the default clock by one edge and captures a trace
// sample if tracing is enabled.
func (h *Handle) Tick() {
	h.RunTicks(1)
}

// RunTicks advances the default clock by n edges, one at a time so
// each edge's trace sample and breakpoint check are independent
// (§5: "each tick is atomic and non-blocking"; cancellation only
// takes effect between ticks, never mid-tick).
func (h *Handle) RunTicks(n int) {
	clk := h.defaultClock()
	h.runClockTicksInternal(clk, n, nil)
}

// RunClockTicks advances the named clock by n edges.
func (h *Handle) RunClockTicks(clock string, n int) {
	h.runClockTicksInternal(clock, n, nil)
}

// RunClockTicksWithWatch advances clock up to n edges, stopping early
// (returning the 1-based tick index within this call) the first tick
// on which any watch's signal settles to its stored value. Returns n
// if no watch matched within the whole run.
func (h *Handle) RunClockTicksWithWatch(clock string, n int, watches []Watch) int {
	return h.runClockTicksInternal(clock, n, watches)
}

func (h *Handle) runClockTicksInternal(clock string, n int, watches []Watch) int {
	for i := 0; i < n; i++ {
		if h.stopFlag.Load() {
			return i
		}
		h.mu.Lock()
		if clock == "" {
			h.eng.Tick() // purely combinational component: settle-only, per Engine.Tick's contract
		} else {
			h.eng.RunClockTicks(clock, 1)
		}
		tick := h.eng.TickCount(clock)
		h.trace.capture(tick, h.eng.Peek)
		h.mu.Unlock()

		if watches != nil && h.watchesHit(watches) {
			return i + 1
		}
		if h.breakpointHit(clock) {
			return i + 1
		}
	}
	return n
}

func (h *Handle) watchesHit(watches []Watch) bool {
	for _, w := range watches {
		v, err := h.eng.Peek(w.Signal)
		if err != nil {
			continue
		}
		if v == w.Value {
			return true
		}
	}
	return false
}

func (h *Handle) breakpointHit(clock string) bool {
	h.mu.Lock()
	bps := append([]Breakpoint(nil), h.breakpoints...)
	h.mu.Unlock()
	for _, bp := range bps {
		if h.hitBreakpoint(bp, clock) {
			return true
		}
	}
	return false
}

func (h *Handle) defaultClock() string {
	comp := h.eng.Component()
	if len(comp.Clocks) == 0 {
		return ""
	}
	return comp.Clocks[0]
}

// Stop requests that any in-progress RunTicks/RunClockTicks return at
// the next tick boundary (§5: "can be interrupted between ticks by an
// external stop signal").
func (h *Handle) Stop() { h.stopFlag.Store(true) }

// ClearStop clears a previously requested stop, allowing further runs.
func (h *Handle) ClearStop() { h.stopFlag.Store(false) }

// TraceAddSignal registers name (declared width w) for per-tick
// trace capture.
func (h *Handle) TraceAddSignal(name string, width int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trace.addSignal(name, width)
}

// SetTraceEnabled enables or disables per-tick trace capture.
func (h *Handle) SetTraceEnabled(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trace.enabled = enabled
}

// TraceEnabled reports whether trace capture is currently on.
func (h *Handle) TraceEnabled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.trace.enabled
}

// TraceCapture takes one manual sample of every watched signal at the
// default clock's current tick count, independent of RunTicks (used by
// callers driving ticks through Tick/RunTicks but wanting an
// out-of-band sample, e.g. after a poke with no settle advance).
func (h *Handle) TraceCapture() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trace.capture(h.eng.TickCount(h.defaultClock()), h.eng.Peek)
}

// DroppedTraceSamples returns the number of samples silently dropped
// since the trace buffer reached capacity.
func (h *Handle) DroppedTraceSamples() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.trace.DroppedSamples()
}

// ExportVCD writes every traced signal's captured samples to w as a
// VCD document (§6).
func (h *Handle) ExportVCD(w io.Writer, timescale string) error {
	h.mu.Lock()
	signals := h.trace.vcdSignals()
	scope := h.eng.Component().Name
	h.mu.Unlock()
	if len(signals) == 0 {
		return fmt.Errorf("simctl: no signals registered for tracing")
	}
	return vcd.Write(w, scope, timescale, signals)
}

// MemoryReadByte / MemoryWriteByte are external-observer accesses
// (§5): they bypass the memory's declared ports entirely, and are
// serialized against any in-progress RunTicks via the same mutex.
func (h *Handle) MemoryReadByte(name string, offset int) (byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.eng.MemoryReadByte(name, offset)
}

func (h *Handle) MemoryWriteByte(name string, offset int, b byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.eng.MemoryWriteByte(name, offset, b)
}

// MemorySize returns the declared depth and word width of a memory.
func (h *Handle) MemorySize(name string) (depth, width int, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.eng.MemorySize(name)
}
