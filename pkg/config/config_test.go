package config_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rhdl/rhdl/pkg/config"
)

func TestLoadFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	require.NoError(t, config.Save(path, config.Profile{DefaultClock: "sysclk"}))

	p, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "sysclk", p.DefaultClock)
	require.Equal(t, config.Default().VCDTimescale, p.VCDTimescale)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load("/nonexistent/profile.yaml")
	require.Error(t, err)
}
