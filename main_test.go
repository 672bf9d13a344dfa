package main

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/squall/config"
)

func TestLoadConfigAppliesOnlyChangedFlags(t *testing.T) {
	cmd := newRunCmd()
	require.NoError(t, cmd.Flags().Set("width", "16"))
	require.NoError(t, cmd.Flags().Set("duration", "0.3"))

	opts := runOptions{width: 16, duration: 0.3}
	cfg, err := loadConfig(cmd, "", opts)
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Grid.Width)
	assert.Equal(t, 64, cfg.Grid.Height, "unset flags keep the config value")
	assert.Equal(t, 0.1, cfg.Physics.Mu)
	assert.Equal(t, 3, cfg.Derived.Steps, "derived values are recomputed")
}

func TestLoadConfigRejectsInvalidOverride(t *testing.T) {
	cmd := newRunCmd()
	require.NoError(t, cmd.Flags().Set("dt", "0"))

	_, err := loadConfig(cmd, "", runOptions{})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRunWritesOutputs(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Physics.Duration = 1
	require.NoError(t, cfg.Finalize())

	require.NoError(t, runSimulation(cfg, runOptions{
		outputDir:   dir,
		metricsFile: filepath.Join(dir, "squall.prom"),
	}))

	for _, name := range []string{"energy.csv", "telemetry.csv", "perf.csv", "config.yaml", "squall.prom"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestPeakEnergy(t *testing.T) {
	peak, at := peakEnergy([]float64{1, 3, math.Inf(1), 2, math.NaN()})
	assert.Equal(t, 3.0, peak)
	assert.Equal(t, 1, at)

	peak, at = peakEnergy([]float64{math.NaN()})
	assert.True(t, math.IsNaN(peak))
	assert.Equal(t, -1, at)
}

func TestValidateReportsInstability(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("physics:\n  mu: 5.0\n"), 0644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"validate", "--config", path, "--log-format", "text"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "mu*dt:      0.5")
	assert.Contains(t, out.String(), "unstable")
	assert.Contains(t, out.String(), "config is valid")
}
