package telemetry

import (
	"math"

	"github.com/pthm-cable/squall/forcing"
)

// Collector accumulates per-step energy within time windows and produces WindowStats.
type Collector struct {
	windowDurationSec   float64
	windowDurationSteps int
	dt                  float64

	// Current window tracking
	windowStartStep int
	energies        []float64
	lastRegime      forcing.Regime
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per step (used for step-to-time conversion)
func NewCollector(windowDurationSec, dt float64) *Collector {
	stepsPerWindow := int(math.Round(windowDurationSec / dt))
	if stepsPerWindow < 1 {
		stepsPerWindow = 1
	}

	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationSteps: stepsPerWindow,
		dt:                  dt,
		energies:            make([]float64, 0, min(stepsPerWindow, 4096)),
	}
}

// Record adds one step's energy and the regime that produced it.
func (c *Collector) Record(energy float64, reg forcing.Regime) {
	c.energies = append(c.energies, energy)
	c.lastRegime = reg
}

// Pending reports whether samples are waiting to be flushed.
func (c *Collector) Pending() bool {
	return len(c.energies) > 0
}

// ShouldFlush returns true if enough steps have passed to flush the window.
// stepsDone is the number of completed steps.
func (c *Collector) ShouldFlush(stepsDone int) bool {
	return stepsDone-c.windowStartStep >= c.windowDurationSteps
}

// Flush produces a WindowStats and resets for the next window.
func (c *Collector) Flush(stepsDone int) WindowStats {
	s := ComputeSeriesStats(c.energies)

	stats := WindowStats{
		WindowStartStep: c.windowStartStep,
		WindowEndStep:   stepsDone,
		SimTimeSec:      float64(stepsDone) * c.dt,
		Samples:         len(c.energies),

		EnergyMean: s.Mean,
		EnergyStd:  s.Std,
		EnergyMin:  s.Min,
		EnergyMax:  s.Max,
		EnergyP10:  s.P10,
		EnergyP50:  s.P50,
		EnergyP90:  s.P90,

		WindStrength:  c.lastRegime.WindStrength,
		ImpulseActive: c.lastRegime.ImpulseActive,
		NonFinite:     s.NonFinite,
	}
	if n := len(c.energies); n > 0 {
		stats.EnergyLast = c.energies[n-1]
	}

	// Reset for next window
	c.windowStartStep = stepsDone
	c.energies = c.energies[:0]

	return stats
}

// WindowDurationSteps returns the number of steps per window.
func (c *Collector) WindowDurationSteps() int {
	return c.windowDurationSteps
}
