// Package ctlproto implements the §6 control protocol: a
// newline-delimited JSON command/event stream between a UI host and
// the simulator running as a child process, in the spirit of the
// teacher's cuda/verify.go and pkg/gpu.CUDAProcess — a long-running
// subprocess driven by a framed request/response pipe, generalized
// here from a binary framing to NDJSON and from one RPC (QuickCheck)
// to the full §6 command set.
package ctlproto

import (
	"encoding/json"
)

// Command is one line of host-to-simulator input. Type selects which
// of the optional fields apply; unused fields are omitted on the wire.
type Command struct {
	Type string `json:"type"`

	// run
	Cycles *int `json:"cycles,omitempty"`

	// set_signal (Value is also the value of a signal add_breakpoint)
	Path  string          `json:"path,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`

	// add_breakpoint
	Cycle  *uint64 `json:"cycle,omitempty"`
	Signal string  `json:"signal,omitempty"`

	// delete_breakpoint
	ID int `json:"id,omitempty"`

	// export_vcd
	Filename string `json:"filename,omitempty"`
}

// Event is one line of simulator-to-host output.
type Event struct {
	Type string `json:"type"`

	// state
	Cycle     uint64            `json:"cycle,omitempty"`
	Registers map[string]string `json:"registers,omitempty"`
	Watches   map[string]string `json:"watches,omitempty"`

	// log
	Message string `json:"message,omitempty"`

	// break
	BreakpointID int `json:"breakpointId,omitempty"`

	// error
	Error string `json:"error,omitempty"`
}

// Command type names (§6).
const (
	CmdInit             = "init"
	CmdStep             = "step"
	CmdStepHalf         = "step_half"
	CmdRun              = "run"
	CmdStop             = "stop"
	CmdReset            = "reset"
	CmdContinue         = "continue"
	CmdSetSignal        = "set_signal"
	CmdAddBreakpoint    = "add_breakpoint"
	CmdAddWatchpoint    = "add_watchpoint"
	CmdDeleteBreakpoint = "delete_breakpoint"
	CmdClearBreakpoints = "clear_breakpoints"
	CmdClearWaveforms   = "clear_waveforms"
	CmdExportVCD        = "export_vcd"
	CmdQuit             = "quit"
)

// Event type names (§6).
const (
	EvtReady = "ready"
	EvtState = "state"
	EvtLog   = "log"
	EvtBreak = "break"
	EvtError = "error"
	EvtQuit  = "quit"
)
