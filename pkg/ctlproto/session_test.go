package ctlproto_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rhdl/rhdl/internal/fixtures"
	"github.com/rhdl/rhdl/pkg/ctlproto"
	"github.com/rhdl/rhdl/pkg/elab"
	"github.com/rhdl/rhdl/pkg/interp"
	"github.com/rhdl/rhdl/pkg/simctl"
)

func newCounterSession(t *testing.T) (*ctlproto.Session, *bytes.Buffer) {
	t.Helper()
	design, err := fixtures.Counter()
	require.NoError(t, err)
	comp, err := elab.Elaborate(design, "counter")
	require.NoError(t, err)
	it, err := interp.New(comp)
	require.NoError(t, err)
	h := simctl.NewHandle(it, 0)
	var out bytes.Buffer
	return ctlproto.NewSession(h, &out, nil), &out
}

func decodeEvents(t *testing.T, buf *bytes.Buffer) []ctlproto.Event {
	t.Helper()
	var events []ctlproto.Event
	scan := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for scan.Scan() {
		var e ctlproto.Event
		require.NoError(t, json.Unmarshal(scan.Bytes(), &e))
		events = append(events, e)
	}
	return events
}

func TestServeEmitsReadyThenState(t *testing.T) {
	s, out := newCounterSession(t)
	in := strings.NewReader(`{"type":"init"}` + "\n" + `{"type":"step"}` + "\n" + `{"type":"quit"}` + "\n")
	require.NoError(t, s.Serve(in))

	events := decodeEvents(t, out)
	require.GreaterOrEqual(t, len(events), 3)
	require.Equal(t, ctlproto.EvtReady, events[0].Type)
	require.Equal(t, ctlproto.EvtState, events[1].Type)
	require.Equal(t, ctlproto.EvtState, events[2].Type)
	require.Equal(t, uint64(1), events[2].Cycle)
	require.Equal(t, ctlproto.EvtQuit, events[len(events)-1].Type)
}

func TestServeMalformedCommandEmitsError(t *testing.T) {
	s, out := newCounterSession(t)
	in := strings.NewReader(`not json` + "\n" + `{"type":"quit"}` + "\n")
	require.NoError(t, s.Serve(in))

	events := decodeEvents(t, out)
	var sawError bool
	for _, e := range events {
		if e.Type == ctlproto.EvtError {
			sawError = true
		}
	}
	require.True(t, sawError)
}

func TestServeRunWithBreakpointStops(t *testing.T) {
	s, out := newCounterSession(t)
	cycle := 3
	in := strings.NewReader(
		`{"type":"add_breakpoint","cycle":3}` + "\n" +
			`{"type":"run","cycles":10}` + "\n" +
			`{"type":"quit"}` + "\n")
	_ = cycle
	require.NoError(t, s.Serve(in))

	events := decodeEvents(t, out)
	var sawBreak bool
	var lastState ctlproto.Event
	for _, e := range events {
		if e.Type == ctlproto.EvtBreak {
			sawBreak = true
		}
		if e.Type == ctlproto.EvtState {
			lastState = e
		}
	}
	require.True(t, sawBreak)
	require.Equal(t, uint64(3), lastState.Cycle)
}

func TestServeSetSignalUnknownSignalErrors(t *testing.T) {
	s, out := newCounterSession(t)
	in := strings.NewReader(`{"type":"set_signal","path":"nope","value":1}` + "\n" + `{"type":"quit"}` + "\n")
	require.NoError(t, s.Serve(in))

	events := decodeEvents(t, out)
	require.Equal(t, ctlproto.EvtError, events[1].Type)
}
