package main

import (
	"github.com/pthm-cable/squall/config"
)

// ParamSpec defines a single tunable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all tunable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of tunable parameters.
// mu stays below the explicit stability bound for dt up to 1.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "mu", Path: "physics.mu", Min: 0.005, Max: 0.25, Default: 0.1},
			{Name: "swell_amplitude", Path: "forcing.swell.amplitude", Min: 0.0, Max: 1.0, Default: 0.3},
			{Name: "strong_wind", Path: "forcing.wind_schedule[-1].value", Min: 0.0, Max: 4.0, Default: 2.0},
			{Name: "impulse_amplitude", Path: "forcing.impulse.amplitude", Min: 0.0, Max: 6.0, Default: 3.0},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		val := v[i]
		if val < spec.Min {
			val = spec.Min
		}
		if val > spec.Max {
			val = spec.Max
		}
		clamped[i] = val
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct.
// Order must match Specs order. The config's wind schedule must not be
// shared with another Config, since its last window is written in place.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)

	cfg.Physics.Mu = clamped[0]
	cfg.Forcing.Swell.Amplitude = clamped[1]
	if n := len(cfg.Forcing.WindSchedule); n > 0 {
		cfg.Forcing.WindSchedule[n-1].Value = clamped[2]
	}
	cfg.Forcing.Impulse.Amplitude = clamped[3]
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	var strong float64
	if n := len(cfg.Forcing.WindSchedule); n > 0 {
		strong = cfg.Forcing.WindSchedule[n-1].Value
	}
	return []float64{
		cfg.Physics.Mu,
		cfg.Forcing.Swell.Amplitude,
		strong,
		cfg.Forcing.Impulse.Amplitude,
	}
}
