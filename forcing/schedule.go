// Package forcing computes the time-dependent additive terms driving the field:
// rotating fan wind, a traveling swell and a transient centred impulse.
package forcing

import (
	"math"

	"github.com/pthm-cable/squall/config"
)

// Window maps the half-open interval [Start, End) to Value.
type Window struct {
	Start, End float64
	Value      float64
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t float64) bool {
	return t >= w.Start && t < w.End
}

// Schedule is an ordered list of windows. The first window containing t wins.
type Schedule []Window

// Lookup returns the value of the first window containing t.
func (s Schedule) Lookup(t float64) (float64, bool) {
	for _, w := range s {
		if w.Contains(t) {
			return w.Value, true
		}
	}
	return 0, false
}

// At is Lookup with zero for uncovered times.
func (s Schedule) At(t float64) float64 {
	v, _ := s.Lookup(t)
	return v
}

// DefaultWindSchedule is calm, breeze, calm, then a gale that never ends.
func DefaultWindSchedule() Schedule {
	return Schedule{
		{Start: 0, End: 1, Value: 0},
		{Start: 1, End: 2, Value: 0.5},
		{Start: 2, End: 3, Value: 0},
		{Start: 3, End: math.Inf(1), Value: 2.0},
	}
}

// WindStrength returns the default schedule's wind magnitude at t.
func WindStrength(t float64) float64 {
	return defaultSchedule.At(t)
}

var defaultSchedule = DefaultWindSchedule()

// ScheduleFromConfig converts configured windows, closing open ends at +Inf.
func ScheduleFromConfig(windows []config.WindowConfig) Schedule {
	s := make(Schedule, len(windows))
	for i, w := range windows {
		s[i] = Window{Start: w.Start, End: w.EndOrInf(), Value: w.Value}
	}
	return s
}

// Regime is the per-step forcing state derived purely from elapsed time.
type Regime struct {
	Time          float64
	WindStrength  float64
	ImpulseActive bool
}

// SameAs reports whether two regimes select the same wind level and impulse state.
func (r Regime) SameAs(o Regime) bool {
	return r.WindStrength == o.WindStrength && r.ImpulseActive == o.ImpulseActive
}
