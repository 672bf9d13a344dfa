package telemetry

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated energy statistics for a time window.
type WindowStats struct {
	WindowStartStep int     `csv:"-"`
	WindowEndStep   int     `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`
	Samples         int     `csv:"samples"`

	// Turbulent energy over the window
	EnergyMean float64 `csv:"energy_mean"`
	EnergyStd  float64 `csv:"energy_std"`
	EnergyMin  float64 `csv:"energy_min"`
	EnergyMax  float64 `csv:"energy_max"`
	EnergyP10  float64 `csv:"energy_p10"`
	EnergyP50  float64 `csv:"energy_p50"`
	EnergyP90  float64 `csv:"energy_p90"`
	EnergyLast float64 `csv:"energy_last"`

	// Regime at window end
	WindStrength  float64 `csv:"wind_strength"`
	ImpulseActive bool    `csv:"impulse_active"`

	// Steps whose energy was NaN or Inf
	NonFinite int `csv:"non_finite"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// SeriesStats summarises a run of energy values.
type SeriesStats struct {
	Mean, Std     float64
	Min, Max      float64
	P10, P50, P90 float64
	NonFinite     int
}

// ComputeSeriesStats calculates moments and percentiles over the finite values.
// Non-finite values are counted but excluded.
func ComputeSeriesStats(values []float64) SeriesStats {
	finite := make([]float64, 0, len(values))
	var s SeriesStats
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			s.NonFinite++
			continue
		}
		finite = append(finite, v)
	}
	if len(finite) == 0 {
		return s
	}

	if len(finite) == 1 {
		s.Mean = finite[0]
	} else {
		s.Mean, s.Std = stat.PopMeanStdDev(finite, nil)
	}
	s.Min = floats.Min(finite)
	s.Max = floats.Max(finite)

	sort.Float64s(finite)
	s.P10 = Percentile(finite, 0.10)
	s.P50 = Percentile(finite, 0.50)
	s.P90 = Percentile(finite, 0.90)
	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", s.WindowStartStep),
		slog.Int("window_end", s.WindowEndStep),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("samples", s.Samples),
		slog.Float64("energy_mean", s.EnergyMean),
		slog.Float64("energy_std", s.EnergyStd),
		slog.Float64("energy_min", s.EnergyMin),
		slog.Float64("energy_max", s.EnergyMax),
		slog.Float64("energy_p50", s.EnergyP50),
		slog.Float64("energy_last", s.EnergyLast),
		slog.Float64("wind_strength", s.WindStrength),
		slog.Bool("impulse_active", s.ImpulseActive),
		slog.Int("non_finite", s.NonFinite),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndStep,
		"sim_time", s.SimTimeSec,
		"energy_mean", s.EnergyMean,
		"energy_max", s.EnergyMax,
		"energy_last", s.EnergyLast,
		"wind", s.WindStrength,
		"impulse", s.ImpulseActive,
	)
}
