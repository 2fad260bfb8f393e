package ctlproto

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rhdl/rhdl/pkg/bitvec"
	"github.com/rhdl/rhdl/pkg/simctl"
)

// Session hosts one control-protocol conversation over a simctl.Handle
// (§6). Serve handles one command at a time, so two commands never
// race on the cooperative single-threaded Handle (§5); the mutex, as
// in the teacher's CUDAProcess, guards writes of events to the stream.
type Session struct {
	h   *simctl.Handle
	log *logrus.Entry

	mu       sync.Mutex
	w        io.Writer
	enc      *json.Encoder
	watchSet map[string]bool
}

// NewSession wraps h for control-protocol traffic. log, if nil,
// defaults to logrus's standard logger's entry.
func NewSession(h *simctl.Handle, w io.Writer, log *logrus.Entry) *Session {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Session{h: h, log: log.WithField("handle", h.ID.String()), w: w, enc: json.NewEncoder(w), watchSet: map[string]bool{}}
}

// Serve reads newline-delimited Commands from r until it hits CmdQuit,
// EOF, or a read error, emitting Events to the Session's writer as it
// goes. It always emits exactly one EvtReady first.
func (s *Session) Serve(r io.Reader) error {
	s.emit(Event{Type: EvtReady})
	scan := bufio.NewScanner(r)
	scan.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scan.Scan() {
		line := scan.Bytes()
		if len(line) == 0 {
			continue
		}
		var cmd Command
		if err := json.Unmarshal(line, &cmd); err != nil {
			s.emit(Event{Type: EvtError, Error: fmt.Sprintf("malformed command: %v", err)})
			continue
		}
		if cmd.Type == CmdQuit {
			s.emit(Event{Type: EvtQuit})
			return nil
		}
		s.dispatch(cmd)
	}
	return scan.Err()
}

func (s *Session) emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(e); err != nil {
		s.log.WithError(err).Error("ctlproto: failed to emit event")
	}
}

func (s *Session) dispatch(cmd Command) {
	switch cmd.Type {
	case CmdInit:
		s.emitState()

	case CmdStep:
		s.h.Tick()
		s.emitState()

	case CmdStepHalf:
		// No half-edge concept at this granularity (§4.D settles atomically
		// per edge); treated as a full step, logged so the host knows.
		s.emit(Event{Type: EvtLog, Message: "step_half: no sub-edge granularity, stepping one full tick"})
		s.h.Tick()
		s.emitState()

	case CmdRun:
		n := 1
		if cmd.Cycles != nil {
			n = *cmd.Cycles
		}
		s.h.ClearStop()
		// add_watchpoint registers signals for state reporting, not early
		// stop — only add_breakpoint's signal==value form does that
		// (simctl.Breakpoint already covers it), so watches is nil here.
		ran := s.h.RunClockTicksWithWatch(s.defaultClock(), n, nil)
		if ran < n {
			s.emit(Event{Type: EvtBreak})
		}
		s.emitState()

	case CmdStop:
		s.h.Stop()
		s.emit(Event{Type: EvtLog, Message: "stop requested"})

	case CmdReset:
		s.h.Reset()
		s.emitState()

	case CmdContinue:
		s.h.ClearStop()
		s.emit(Event{Type: EvtLog, Message: "continuing"})

	case CmdSetSignal:
		s.handleSetSignal(cmd)

	case CmdAddBreakpoint:
		bp := simctl.Breakpoint{Cycle: cmd.Cycle, Signal: cmd.Signal}
		if cmd.Cycle == nil {
			width, ok := s.h.Engine().Component().SignalWidth(cmd.Signal)
			if !ok {
				s.emit(Event{Type: EvtError, Error: "add_breakpoint: unknown signal " + cmd.Signal})
				return
			}
			var raw uint64
			if err := json.Unmarshal(cmd.Value, &raw); err != nil {
				s.emit(Event{Type: EvtError, Error: fmt.Sprintf("add_breakpoint: %v", err)})
				return
			}
			bp.Value = bitvec.New(raw, width)
		}
		s.h.AddBreakpoint(bp)
		s.emit(Event{Type: EvtLog, Message: "breakpoint added"})

	case CmdAddWatchpoint:
		s.watchSet[cmd.Signal] = true
		s.emit(Event{Type: EvtLog, Message: "watchpoint added: " + cmd.Signal})

	case CmdDeleteBreakpoint:
		s.h.DeleteBreakpoint(cmd.ID)
		s.emit(Event{Type: EvtLog, Message: "breakpoint deleted"})

	case CmdClearBreakpoints:
		s.h.ClearBreakpoints()
		s.emit(Event{Type: EvtLog, Message: "breakpoints cleared"})

	case CmdClearWaveforms:
		s.watchSet = map[string]bool{}
		s.emit(Event{Type: EvtLog, Message: "waveforms cleared"})

	case CmdExportVCD:
		s.handleExportVCD(cmd)

	default:
		s.emit(Event{Type: EvtError, Error: "unknown command: " + cmd.Type})
	}
}

func (s *Session) handleSetSignal(cmd Command) {
	width, ok := s.h.Engine().Component().SignalWidth(cmd.Path)
	if !ok {
		s.emit(Event{Type: EvtError, Error: "set_signal: unknown signal " + cmd.Path})
		return
	}
	var raw uint64
	if err := json.Unmarshal(cmd.Value, &raw); err != nil {
		s.emit(Event{Type: EvtError, Error: fmt.Sprintf("set_signal: %v", err)})
		return
	}
	s.h.Poke(cmd.Path, bitvec.New(raw, width))
	s.emit(Event{Type: EvtLog, Message: "set " + cmd.Path})
}

func (s *Session) handleExportVCD(cmd Command) {
	f, err := os.Create(cmd.Filename)
	if err != nil {
		s.emit(Event{Type: EvtError, Error: fmt.Sprintf("export_vcd: %v", err)})
		return
	}
	defer f.Close()
	if err := s.h.ExportVCD(f, "1 ns"); err != nil {
		s.emit(Event{Type: EvtError, Error: fmt.Sprintf("export_vcd: %v", err)})
		return
	}
	s.emit(Event{Type: EvtLog, Message: "exported " + cmd.Filename})
}

func (s *Session) emitState() {
	regs := map[string]string{}
	for _, name := range s.h.SignalNames() {
		v, err := s.h.Peek(name)
		if err != nil {
			continue
		}
		regs[name] = strconv.FormatUint(v.Uint64(), 10)
	}
	watches := map[string]string{}
	for name := range s.watchSet {
		if v, err := s.h.Peek(name); err == nil {
			watches[name] = strconv.FormatUint(v.Uint64(), 10)
		}
	}
	s.emit(Event{
		Type:      EvtState,
		Cycle:     s.h.Engine().TickCount(s.defaultClock()),
		Registers: regs,
		Watches:   watches,
	})
}

func (s *Session) defaultClock() string {
	comp := s.h.Engine().Component()
	if len(comp.Clocks) == 0 {
		return ""
	}
	return comp.Clocks[0]
}
