package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/ringlights/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ringlights.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func load(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	fs := flag.NewFlagSet("ringlights", flag.ContinueOnError)
	o, err := parseFlags(fs, args)
	require.NoError(t, err)
	return loadConfig(o, fs)
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	path := writeConfig(t, `
strip:
  driver: console
  pixels: 432
  brightness: 40
expander:
  port: /dev/ttyUSB0
  baud: 115200
`)
	cfg, err := load(t, "-config", path, "-brightness", "200", "-addr", ":9000")
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Strip.Brightness, "typed flag wins")
	assert.Equal(t, ":9000", cfg.Preview.Addr)
	assert.Equal(t, "console", cfg.Strip.Driver, "file value kept")
	assert.Equal(t, "/dev/ttyUSB0", cfg.Expander.Port)
	assert.Equal(t, 115200, cfg.Expander.Baud)
}

func TestUntypedFlagsKeepConfigFile(t *testing.T) {
	path := writeConfig(t, "strip:\n  driver: none\n  pixels: 432\n  brightness: 90\nclear: true\n")
	cfg, err := load(t, "-config", path)
	require.NoError(t, err)
	assert.Equal(t, "none", cfg.Strip.Driver)
	assert.Equal(t, 90, cfg.Strip.Brightness)
	assert.True(t, cfg.Clear)
	assert.Len(t, cfg.Rings, 22)
}

func TestFlagsWithoutConfigFile(t *testing.T) {
	cfg, err := load(t, "-config", filepath.Join(t.TempDir(), "missing.yaml"), "-driver", "console", "-port", "")
	require.NoError(t, err)
	assert.Equal(t, "console", cfg.Strip.Driver)
	assert.Empty(t, cfg.Expander.Port)
	assert.Equal(t, config.Default().Strip.Brightness, cfg.Strip.Brightness)
}

func TestMergedConfigIsValidated(t *testing.T) {
	_, err := load(t, "-config", filepath.Join(t.TempDir(), "missing.yaml"), "-brightness", "300")
	assert.ErrorIs(t, err, config.ErrInvalid)
}
