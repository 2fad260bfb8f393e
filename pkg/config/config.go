// Package config loads simulation profiles: the saved defaults (clock
// name, trace capacity, dead-signal watch masks) that a hardware
// design tool's CLI benefits from, where the teacher took everything
// as flags (see SPEC_FULL.md's AMBIENT STACK section).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is a named, saved simulation configuration. cmd/rhdlsim does
// not load profiles; its settings come from command-line flags.
type Profile struct {
	// DefaultClock names the clock `tick`/`run_ticks` advance when no
	// clock is given explicitly.
	DefaultClock string `yaml:"defaultClock,omitempty"`
	// TraceCapacity bounds the simulation handle's trace buffer (§5:
	// "bounded by configured capacity; drop oldest when full"). Zero
	// means unbounded.
	TraceCapacity int `yaml:"traceCapacity,omitempty"`
	// WatchMask names signals to watch by default when tracing starts,
	// mirroring the "dead flags" style mask the teacher's CLI exposes
	// for the Z80 flag set, generalized to arbitrary signal names.
	WatchMask []string `yaml:"watchMask,omitempty"`
	// VCDTimescale is the raw $timescale body VCD export uses.
	VCDTimescale string `yaml:"vcdTimescale,omitempty"`
}

// Default returns the built-in profile; Load starts from it before
// overlaying the fields a file sets.
func Default() Profile {
	return Profile{
		DefaultClock:  "clk",
		TraceCapacity: 100000,
		VCDTimescale:  "1 ns",
	}
}

// Load reads a Profile from a YAML file at path, filling any field the
// file omits from Default().
func Load(path string) (Profile, error) {
	p := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return p, nil
}

// Save writes p to path as YAML.
func Save(path string, p Profile) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
