package telemetry

import (
	"math"
	"testing"

	"github.com/pthm-cable/squall/forcing"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"empty slice", []float64{}, 0.5, 0},
		{"single element", []float64{5.0}, 0.5, 5.0},
		{"p0", []float64{1, 2, 3, 4, 5}, 0.0, 1.0},
		{"p100", []float64{1, 2, 3, 4, 5}, 1.0, 5.0},
		{"p50 odd", []float64{1, 2, 3, 4, 5}, 0.5, 3.0},
		{"p50 even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"p10", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.1, 1.9},
		{"p90", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.9, 9.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.sorted, tt.p)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}

func TestComputeSeriesStats(t *testing.T) {
	values := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}
	s := ComputeSeriesStats(values)

	// Mean should be 0.55
	if math.Abs(s.Mean-0.55) > 0.001 {
		t.Errorf("mean = %v, want 0.55", s.Mean)
	}

	// Population std of 0.1..1.0 is sqrt(0.0825)
	if math.Abs(s.Std-math.Sqrt(0.0825)) > 1e-9 {
		t.Errorf("std = %v, want %v", s.Std, math.Sqrt(0.0825))
	}

	if s.Min != 0.1 || s.Max != 1.0 {
		t.Errorf("min/max = %v/%v, want 0.1/1.0", s.Min, s.Max)
	}

	// P10 should be around 0.19
	if math.Abs(s.P10-0.19) > 0.01 {
		t.Errorf("p10 = %v, want ~0.19", s.P10)
	}

	// P50 should be around 0.55
	if math.Abs(s.P50-0.55) > 0.01 {
		t.Errorf("p50 = %v, want ~0.55", s.P50)
	}

	// P90 should be around 0.91
	if math.Abs(s.P90-0.91) > 0.01 {
		t.Errorf("p90 = %v, want ~0.91", s.P90)
	}
}

func TestComputeSeriesStatsUnsortedInput(t *testing.T) {
	values := []float64{3, 1, 2}
	s := ComputeSeriesStats(values)
	if s.P50 != 2 {
		t.Errorf("p50 = %v, want 2", s.P50)
	}
	if values[0] != 3 {
		t.Error("input slice must not be reordered")
	}
}

func TestComputeSeriesStatsEmpty(t *testing.T) {
	s := ComputeSeriesStats([]float64{})

	if s != (SeriesStats{}) {
		t.Errorf("empty slice should return all zeros, got %+v", s)
	}
}

func TestComputeSeriesStatsNonFinite(t *testing.T) {
	s := ComputeSeriesStats([]float64{1, math.NaN(), 3, math.Inf(1)})

	if s.NonFinite != 2 {
		t.Errorf("non-finite = %d, want 2", s.NonFinite)
	}
	if s.Mean != 2 {
		t.Errorf("mean = %v, want 2 (non-finite values excluded)", s.Mean)
	}
	if s.Max != 3 {
		t.Errorf("max = %v, want 3", s.Max)
	}

	all := ComputeSeriesStats([]float64{math.NaN()})
	if all.NonFinite != 1 || all.Mean != 0 {
		t.Errorf("all non-finite: got %+v", all)
	}
}

func TestCollectorWindows(t *testing.T) {
	c := NewCollector(0.3, 0.1)
	if c.WindowDurationSteps() != 3 {
		t.Fatalf("window steps = %d, want 3", c.WindowDurationSteps())
	}

	windy := forcing.Regime{Time: 0.2, WindStrength: 0.5}
	var flushed []WindowStats
	for step := 1; step <= 7; step++ {
		c.Record(float64(step), windy)
		if c.ShouldFlush(step) {
			flushed = append(flushed, c.Flush(step))
		}
	}
	if !c.Pending() {
		t.Fatal("expected a partial window to be pending")
	}
	flushed = append(flushed, c.Flush(7))

	if len(flushed) != 3 {
		t.Fatalf("got %d windows, want 3", len(flushed))
	}

	first := flushed[0]
	if first.WindowStartStep != 0 || first.WindowEndStep != 3 || first.Samples != 3 {
		t.Errorf("first window bounds wrong: %+v", first)
	}
	if first.EnergyMean != 2 || first.EnergyLast != 3 || first.EnergyMax != 3 {
		t.Errorf("first window energy wrong: %+v", first)
	}
	if first.WindStrength != 0.5 {
		t.Errorf("wind = %v, want 0.5", first.WindStrength)
	}
	if math.Abs(first.SimTimeSec-0.3) > 1e-12 {
		t.Errorf("sim time = %v, want 0.3", first.SimTimeSec)
	}

	last := flushed[2]
	if last.WindowStartStep != 6 || last.Samples != 1 || last.EnergyLast != 7 {
		t.Errorf("partial window wrong: %+v", last)
	}
	if c.Pending() {
		t.Error("collector should be empty after flush")
	}
}

func TestCollectorMinimumWindow(t *testing.T) {
	c := NewCollector(0.01, 0.1)
	if c.WindowDurationSteps() != 1 {
		t.Errorf("window shorter than dt should clamp to 1 step, got %d", c.WindowDurationSteps())
	}
}
