package simctl

import "github.com/rhdl/rhdl/pkg/bitvec"

// Breakpoint matches the control protocol's add_breakpoint command
// (§6): either a cycle count (Cycle non-nil, fires once the tick
// counter of the clock being run reaches it) or a signal/value pair (fires the
// first tick that signal settles to value).
type Breakpoint struct {
	ID     int
	Cycle  *uint64
	Signal string
	Value  bitvec.BitVector
}

// Watch is one signal/value pair for RunClockTicksWithWatch or the
// control protocol's add_watchpoint.
type Watch struct {
	Signal string
	Value  bitvec.BitVector
}

func (h *Handle) hitBreakpoint(bp Breakpoint, clock string) bool {
	if bp.Cycle != nil {
		return h.eng.TickCount(clock) >= *bp.Cycle
	}
	v, err := h.eng.Peek(bp.Signal)
	if err != nil {
		return false
	}
	return v == bp.Value
}

// AddBreakpoint registers bp and returns its assigned ID.
func (h *Handle) AddBreakpoint(bp Breakpoint) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextBpID++
	bp.ID = h.nextBpID
	h.breakpoints = append(h.breakpoints, bp)
	return bp.ID
}

// DeleteBreakpoint removes the breakpoint with the given ID, if any.
func (h *Handle) DeleteBreakpoint(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.breakpoints[:0]
	for _, bp := range h.breakpoints {
		if bp.ID != id {
			out = append(out, bp)
		}
	}
	h.breakpoints = out
}

// ClearBreakpoints removes every registered breakpoint.
func (h *Handle) ClearBreakpoints() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.breakpoints = nil
}

// AddWatchpoint registers w as a standing watch and returns its ID.
// Runs do not check standing watches themselves; Watchpoints returns
// them for a caller to pass to RunClockTicksWithWatch.
func (h *Handle) AddWatchpoint(w Watch) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextWpID++
	h.watchpoints = append(h.watchpoints, w)
	return h.nextWpID
}

// Watchpoints returns the currently registered standing watches.
func (h *Handle) Watchpoints() []Watch {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Watch(nil), h.watchpoints...)
}
