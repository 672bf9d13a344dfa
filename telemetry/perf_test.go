package telemetry

import (
	"testing"
	"time"
)

// timedStep records one step spending the given durations in forcing and diffuse.
func timedStep(pc *PerfCollector, forcing, diffuse time.Duration) {
	pc.StartStep()
	pc.StartPhase(PhaseForcing)
	time.Sleep(forcing)
	pc.StartPhase(PhaseDiffuse)
	time.Sleep(diffuse)
	pc.EndStep()
}

func TestPerfCollectorPhases(t *testing.T) {
	pc := NewPerfCollector(10)
	for i := 0; i < 5; i++ {
		timedStep(pc, 50*time.Microsecond, 2*time.Millisecond)
	}

	s := pc.Stats()
	if s.Steps != 5 {
		t.Errorf("steps = %d, want 5", s.Steps)
	}
	if s.AvgStep <= 0 || s.StepsPerSecond <= 0 {
		t.Errorf("expected positive timing, got avg=%v rate=%v", s.AvgStep, s.StepsPerSecond)
	}
	if s.MinStep > s.AvgStep || s.AvgStep > s.MaxStep {
		t.Errorf("expected min <= avg <= max, got %v %v %v", s.MinStep, s.AvgStep, s.MaxStep)
	}
	if s.Pct(PhaseDiffuse) <= s.Pct(PhaseForcing) {
		t.Errorf("diffuse (%v%%) should dominate forcing (%v%%)", s.Pct(PhaseDiffuse), s.Pct(PhaseForcing))
	}
	if s.Pct(PhaseEnergy) != 0 {
		t.Errorf("untimed phase has share %v", s.Pct(PhaseEnergy))
	}
	if sum := s.Pct(PhaseForcing) + s.Pct(PhaseDiffuse); sum > 100.0001 {
		t.Errorf("phase shares sum to %v", sum)
	}
}

func TestPerfCollectorWindowEvicts(t *testing.T) {
	pc := NewPerfCollector(3)
	timedStep(pc, 0, 20*time.Millisecond)
	for i := 0; i < 3; i++ {
		timedStep(pc, 0, 0)
	}

	s := pc.Stats()
	if s.Steps != 3 {
		t.Errorf("steps = %d, want window size 3", s.Steps)
	}
	if s.MaxStep >= 20*time.Millisecond {
		t.Errorf("slow step should have been evicted, max = %v", s.MaxStep)
	}
}

func TestPerfCollectorEmpty(t *testing.T) {
	s := NewPerfCollector(0).Stats()
	if s != (PerfStats{}) {
		t.Errorf("expected zero stats, got %+v", s)
	}
}

func TestPhaseString(t *testing.T) {
	tests := map[Phase]string{
		PhaseForcing:   "forcing",
		PhaseAddForce:  "add_forcing",
		PhaseTelemetry: "telemetry",
		Phase(42):      "unknown",
	}
	for ph, want := range tests {
		if got := ph.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", int(ph), got, want)
		}
	}
}

func TestFrameTimer(t *testing.T) {
	var ft FrameTimer
	if ft.FPS() != 0 {
		t.Error("expected zero FPS before any frame")
	}

	ft.Tick()
	time.Sleep(16 * time.Millisecond)
	ft.Tick()

	// 16ms frames are ~60 FPS; sleep only overshoots
	if fps := ft.FPS(); fps <= 0 || fps > 65 {
		t.Errorf("expected FPS in (0, 65], got %v", fps)
	}
}

func TestPerfStatsToCSV(t *testing.T) {
	s := PerfStats{
		AvgStep:        1500 * time.Microsecond,
		MinStep:        time.Millisecond,
		MaxStep:        3 * time.Millisecond,
		StepsPerSecond: 666.7,
	}
	s.PhasePct[PhaseForcing] = 20
	s.PhasePct[PhaseDiffuse] = 70
	s.PhasePct[PhaseEnergy] = 10

	row := s.ToCSV(120)
	if row.WindowEnd != 120 {
		t.Errorf("window end = %d, want 120", row.WindowEnd)
	}
	if row.AvgStepUS != 1500 || row.MinStepUS != 1000 || row.MaxStepUS != 3000 {
		t.Errorf("unexpected step timings: %+v", row)
	}
	if row.DiffusePct != 70 || row.ForcingPct != 20 || row.EnergyPct != 10 {
		t.Errorf("unexpected phase percentages: %+v", row)
	}
	if row.TelemetryPct != 0 {
		t.Errorf("untracked phase should be zero, got %v", row.TelemetryPct)
	}
}
