// Command rhdlsim is RHDL's CLI front end: elaborate a design,
// simulate it on any backend, or emit Verilog/VHDL/VCD, following the
// same cobra root-command-with-subcommands structure as the teacher's
// z80opt (cmd/z80opt/main.go).
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rhdl/rhdl/internal/fixtures"
	"github.com/rhdl/rhdl/pkg/aot"
	"github.com/rhdl/rhdl/pkg/bir"
	"github.com/rhdl/rhdl/pkg/birbuild"
	"github.com/rhdl/rhdl/pkg/bitvec"
	"github.com/rhdl/rhdl/pkg/bytecode"
	"github.com/rhdl/rhdl/pkg/codegen"
	"github.com/rhdl/rhdl/pkg/ctlproto"
	"github.com/rhdl/rhdl/pkg/elab"
	"github.com/rhdl/rhdl/pkg/interp"
	"github.com/rhdl/rhdl/pkg/irfile"
	"github.com/rhdl/rhdl/pkg/simctl"
)

// Exit codes (§6: "distinct values per category, documented").
const (
	exitOK              = 0
	exitElaborationErr  = 1
	exitSimulationErr   = 2
	exitIOErr           = 3
	exitControlProtoErr = 4
)

// exitError carries the exit code a failing RunE should produce; main
// maps it to os.Exit without cobra printing a redundant "Error:" line
// twice.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

var fixtureRegistry = map[string]func() (*bir.Design, error){
	"counter":       fixtures.Counter,
	"regfile":       fixtures.RegFile,
	"async_regfile": fixtures.AsyncRegFile,
	"alu_flags":     fixtures.ALUFlags,
	"mux2":          fixtures.Mux2,
	"counter3":      fixtures.Counter3,
	"hier_counter":  fixtures.HierCounter,
}

func main() {
	root := &cobra.Command{
		Use:           "rhdlsim",
		Short:         "RHDL hardware simulator — elaborate, simulate, and export designs",
		SilenceErrors: true,
	}
	root.AddCommand(newElaborateCmd(), newSimCmd(), newVerilogCmd(), newVHDLCmd(), newVCDCmd(), newServeCmd())

	if err := root.Execute(); err != nil {
		code := exitElaborationErr
		var ee *exitError
		if asExitError(err, &ee) {
			code = ee.code
		}
		fmt.Fprintln(os.Stderr, "rhdlsim:", err)
		os.Exit(code)
	}
}

func asExitError(err error, target **exitError) bool {
	if ee, ok := err.(*exitError); ok {
		*target = ee
		return true
	}
	return false
}

func newElaborateCmd() *cobra.Command {
	var fixture, top, out string
	cmd := &cobra.Command{
		Use:   "elaborate",
		Short: "Flatten a built-in fixture design into a single IR JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			buildFn, ok := fixtureRegistry[fixture]
			if !ok {
				return &exitError{exitElaborationErr, fmt.Errorf("unknown fixture %q", fixture)}
			}
			design, err := buildFn()
			if err != nil {
				return &exitError{exitElaborationErr, fmt.Errorf("build %s: %w", fixture, err)}
			}
			topName := top
			if topName == "" {
				topName = design.Top
			}
			comp, err := elab.Elaborate(design, topName)
			if err != nil {
				return &exitError{exitElaborationErr, err}
			}
			logrus.WithFields(logrus.Fields{"fixture": fixture, "top": topName}).Info("elaborated")

			f, err := os.Create(out)
			if err != nil {
				return &exitError{exitIOErr, err}
			}
			defer f.Close()
			if err := irfile.Write(f, comp); err != nil {
				return &exitError{exitIOErr, err}
			}
			fmt.Printf("elaborated %s -> %s\n", fixture, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&fixture, "fixture", "", "built-in fixture name (required)")
	cmd.Flags().StringVar(&top, "top", "", "top component name (defaults to the fixture's own top)")
	cmd.Flags().StringVar(&out, "out", "", "output IR JSON path (required)")
	cmd.MarkFlagRequired("fixture")
	cmd.MarkFlagRequired("out")
	return cmd
}

func loadComponent(path string) (*bir.Component, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return irfile.Read(f)
}

func newEngine(comp *bir.Component, backend string) (simctl.Engine, error) {
	switch backend {
	case "interp", "":
		return interp.New(comp)
	case "bytecode":
		return bytecode.New(comp)
	case "aot":
		return aot.New(comp)
	default:
		return nil, fmt.Errorf("unknown backend %q (want interp, bytecode, or aot)", backend)
	}
}

func newSimCmd() *cobra.Command {
	var in, backend, clock string
	var ticks int
	var pokes []string
	var peeks []string

	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Simulate an elaborated IR file for a fixed number of ticks",
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := loadComponent(in)
			if err != nil {
				return &exitError{exitIOErr, err}
			}
			eng, err := newEngine(comp, backend)
			if err != nil {
				return &exitError{exitElaborationErr, err}
			}
			h := simctl.NewHandle(eng, 0)

			for _, kv := range pokes {
				name, val, err := parsePoke(kv)
				if err != nil {
					return &exitError{exitSimulationErr, err}
				}
				width, ok := comp.SignalWidth(name)
				if !ok {
					return &exitError{exitSimulationErr, fmt.Errorf("sim: unknown signal %q", name)}
				}
				h.Poke(name, bitvec.New(val, width))
			}

			if clock == "" {
				h.RunTicks(ticks)
			} else {
				h.RunClockTicks(clock, ticks)
			}

			names := peeks
			if len(names) == 0 {
				names = h.SignalNames()
			}
			for _, name := range names {
				v, err := h.Peek(name)
				if err != nil {
					return &exitError{exitSimulationErr, err}
				}
				fmt.Printf("%s = %s\n", name, v.String())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "ir", "", "input IR JSON path (required)")
	cmd.Flags().StringVar(&backend, "backend", "interp", "interp, bytecode, or aot")
	cmd.Flags().StringVar(&clock, "clock", "", "clock to advance (default: component's first clock in name order)")
	cmd.Flags().IntVar(&ticks, "ticks", 1, "number of edges to advance")
	cmd.Flags().StringArrayVar(&pokes, "poke", nil, "name=value input to set before running, repeatable")
	cmd.Flags().StringArrayVar(&peeks, "peek", nil, "signal to print after running, repeatable (default: all)")
	cmd.MarkFlagRequired("ir")
	return cmd
}

func parsePoke(kv string) (name string, value uint64, err error) {
	parts := strings.SplitN(kv, "=", 2)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("poke %q: want name=value", kv)
	}
	v, err := strconv.ParseUint(parts[1], 0, 64)
	if err != nil {
		return "", 0, fmt.Errorf("poke %q: %w", kv, err)
	}
	return parts[0], v, nil
}

func wrapSingleComponentDesign(comp *bir.Component) (*bir.Design, error) {
	db := birbuild.NewDesign()
	if err := db.Add(comp); err != nil {
		return nil, err
	}
	return db.Build(comp.Name)
}

func newVerilogCmd() *cobra.Command {
	var in, out string
	cmd := &cobra.Command{
		Use:   "verilog",
		Short: "Emit synthesizable Verilog for an elaborated IR file",
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := loadComponent(in)
			if err != nil {
				return &exitError{exitIOErr, err}
			}
			design, err := wrapSingleComponentDesign(comp)
			if err != nil {
				return &exitError{exitElaborationErr, err}
			}
			src, err := codegen.Verilog(design)
			if err != nil {
				return &exitError{exitElaborationErr, err}
			}
			return writeOut(out, src)
		},
	}
	cmd.Flags().StringVar(&in, "ir", "", "input IR JSON path (required)")
	cmd.Flags().StringVar(&out, "out", "", "output .v path (default: stdout)")
	cmd.MarkFlagRequired("ir")
	return cmd
}

func newVHDLCmd() *cobra.Command {
	var in, out string
	cmd := &cobra.Command{
		Use:   "vhdl",
		Short: "Emit synthesizable VHDL for an elaborated IR file",
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := loadComponent(in)
			if err != nil {
				return &exitError{exitIOErr, err}
			}
			design, err := wrapSingleComponentDesign(comp)
			if err != nil {
				return &exitError{exitElaborationErr, err}
			}
			src, err := codegen.VHDL(design)
			if err != nil {
				return &exitError{exitElaborationErr, err}
			}
			return writeOut(out, src)
		},
	}
	cmd.Flags().StringVar(&in, "ir", "", "input IR JSON path (required)")
	cmd.Flags().StringVar(&out, "out", "", "output .vhd path (default: stdout)")
	cmd.MarkFlagRequired("ir")
	return cmd
}

func writeOut(path, content string) error {
	if path == "" {
		fmt.Print(content)
		return nil
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return &exitError{exitIOErr, err}
	}
	return nil
}

func newVCDCmd() *cobra.Command {
	var in, backend, clock, out, timescale string
	var ticks int
	var signals []string

	cmd := &cobra.Command{
		Use:   "vcd",
		Short: "Simulate and export a VCD waveform of the named signals",
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := loadComponent(in)
			if err != nil {
				return &exitError{exitIOErr, err}
			}
			eng, err := newEngine(comp, backend)
			if err != nil {
				return &exitError{exitElaborationErr, err}
			}
			h := simctl.NewHandle(eng, 0)

			watched := signals
			if len(watched) == 0 {
				watched = h.SignalNames()
			}
			for _, name := range watched {
				width, ok := comp.SignalWidth(name)
				if !ok {
					return &exitError{exitSimulationErr, fmt.Errorf("vcd: unknown signal %q", name)}
				}
				h.TraceAddSignal(name, width)
			}
			h.SetTraceEnabled(true)
			h.TraceCapture()

			if clock == "" {
				h.RunTicks(ticks)
			} else {
				h.RunClockTicks(clock, ticks)
			}

			f, err := os.Create(out)
			if err != nil {
				return &exitError{exitIOErr, err}
			}
			defer f.Close()
			if err := h.ExportVCD(f, timescale); err != nil {
				return &exitError{exitIOErr, err}
			}
			if dropped := h.DroppedTraceSamples(); dropped > 0 {
				logrus.WithField("dropped", dropped).Warn("vcd: trace buffer overflowed")
			}
			fmt.Printf("wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "ir", "", "input IR JSON path (required)")
	cmd.Flags().StringVar(&backend, "backend", "interp", "interp, bytecode, or aot")
	cmd.Flags().StringVar(&clock, "clock", "", "clock to advance (default: component's first clock in name order)")
	cmd.Flags().IntVar(&ticks, "ticks", 10, "number of edges to trace")
	cmd.Flags().StringArrayVar(&signals, "signal", nil, "signal to trace, repeatable (default: all)")
	cmd.Flags().StringVar(&out, "out", "", "output .vcd path (required)")
	cmd.Flags().StringVar(&timescale, "timescale", "1 ns", "VCD $timescale body")
	cmd.MarkFlagRequired("ir")
	cmd.MarkFlagRequired("out")
	return cmd
}

func newServeCmd() *cobra.Command {
	var in, backend string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host the newline-delimited JSON control protocol over stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := loadComponent(in)
			if err != nil {
				return &exitError{exitControlProtoErr, err}
			}
			eng, err := newEngine(comp, backend)
			if err != nil {
				return &exitError{exitControlProtoErr, err}
			}
			h := simctl.NewHandle(eng, 100000)
			session := ctlproto.NewSession(h, os.Stdout, logrus.WithField("cmd", "serve"))
			if err := session.Serve(os.Stdin); err != nil {
				return &exitError{exitControlProtoErr, err}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "ir", "", "input IR JSON path (required)")
	cmd.Flags().StringVar(&backend, "backend", "interp", "interp, bytecode, or aot")
	cmd.MarkFlagRequired("ir")
	return cmd
}
