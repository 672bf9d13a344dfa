package telemetry

import (
	"log/slog"
	"time"
)

// Phase identifies one stage of a simulation step.
type Phase int

// Step phases, in execution order.
const (
	PhaseForcing Phase = iota
	PhaseDiffuse
	PhaseAddForce
	PhaseEnergy
	PhaseTelemetry

	numPhases
)

var phaseNames = [numPhases]string{"forcing", "diffuse", "add_forcing", "energy", "telemetry"}

func (p Phase) String() string {
	if p < 0 || p >= numPhases {
		return "unknown"
	}
	return phaseNames[p]
}

// stepTiming is the wall time of one step split by phase.
type stepTiming struct {
	total  time.Duration
	phases [numPhases]time.Duration
}

// PerfCollector keeps the timings of the last window steps in a ring.
type PerfCollector struct {
	ring   []stepTiming
	next   int
	filled int

	cur        stepTiming
	stepStart  time.Time
	phaseStart time.Time
	phase      Phase
	inPhase    bool
}

// NewPerfCollector creates a collector averaging over window steps.
func NewPerfCollector(window int) *PerfCollector {
	if window < 1 {
		window = 60
	}
	return &PerfCollector{ring: make([]stepTiming, window)}
}

// StartStep begins timing a step.
func (p *PerfCollector) StartStep() {
	p.stepStart = time.Now()
	p.cur = stepTiming{}
	p.inPhase = false
}

// StartPhase closes the running phase, if any, and starts timing ph.
func (p *PerfCollector) StartPhase(ph Phase) {
	now := time.Now()
	p.closePhase(now)
	p.phase, p.phaseStart, p.inPhase = ph, now, true
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.inPhase {
		p.cur.phases[p.phase] += now.Sub(p.phaseStart)
		p.inPhase = false
	}
}

// EndStep closes the step and stores it, evicting the oldest when full.
func (p *PerfCollector) EndStep() {
	now := time.Now()
	p.closePhase(now)
	p.cur.total = now.Sub(p.stepStart)

	p.ring[p.next] = p.cur
	p.next = (p.next + 1) % len(p.ring)
	p.filled = min(p.filled+1, len(p.ring))
}

// PerfStats summarises the steps currently in the window.
type PerfStats struct {
	Steps          int
	AvgStep        time.Duration
	MinStep        time.Duration
	MaxStep        time.Duration
	PhaseAvg       [numPhases]time.Duration
	PhasePct       [numPhases]float64 // Share of AvgStep, 0-100
	StepsPerSecond float64
}

// Stats aggregates the window. An empty collector yields zero stats.
func (p *PerfCollector) Stats() PerfStats {
	s := PerfStats{Steps: p.filled}
	if p.filled == 0 {
		return s
	}

	var total time.Duration
	var phaseTotal [numPhases]time.Duration
	for i, st := range p.ring[:p.filled] {
		total += st.total
		if i == 0 || st.total < s.MinStep {
			s.MinStep = st.total
		}
		s.MaxStep = max(s.MaxStep, st.total)
		for ph, d := range st.phases {
			phaseTotal[ph] += d
		}
	}

	n := time.Duration(p.filled)
	s.AvgStep = total / n
	for ph := range phaseTotal {
		s.PhaseAvg[ph] = phaseTotal[ph] / n
		if total > 0 {
			s.PhasePct[ph] = float64(phaseTotal[ph]) / float64(total) * 100
		}
	}
	if s.AvgStep > 0 {
		s.StepsPerSecond = float64(time.Second) / float64(s.AvgStep)
	}
	return s
}

// Pct returns the share of step time spent in ph.
func (s PerfStats) Pct(ph Phase) float64 { return s.PhasePct[ph] }

// LogStats logs the window at info level.
func (s PerfStats) LogStats() {
	slog.Info("perf", "window", s)
}

// LogValue implements slog.LogValuer.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("steps", s.Steps),
		slog.Int64("avg_step_us", s.AvgStep.Microseconds()),
		slog.Int64("min_step_us", s.MinStep.Microseconds()),
		slog.Int64("max_step_us", s.MaxStep.Microseconds()),
		slog.Float64("steps_per_sec", s.StepsPerSecond),
	}
	for ph := Phase(0); ph < numPhases; ph++ {
		// Skip noise-level phases
		if s.PhasePct[ph] > 0.1 {
			attrs = append(attrs, slog.Float64(ph.String()+"_pct", float64(int(s.PhasePct[ph]*10))/10))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is one row of perf.csv.
type PerfStatsCSV struct {
	WindowEnd     int     `csv:"window_end"`
	AvgStepUS     int64   `csv:"avg_step_us"`
	MinStepUS     int64   `csv:"min_step_us"`
	MaxStepUS     int64   `csv:"max_step_us"`
	StepsPerSec   float64 `csv:"steps_per_sec"`
	ForcingPct    float64 `csv:"forcing_pct"`
	DiffusePct    float64 `csv:"diffuse_pct"`
	AddForcingPct float64 `csv:"add_forcing_pct"`
	EnergyPct     float64 `csv:"energy_pct"`
	TelemetryPct  float64 `csv:"telemetry_pct"`
}

// ToCSV flattens the stats for the window ending at step windowEnd.
func (s PerfStats) ToCSV(windowEnd int) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:     windowEnd,
		AvgStepUS:     s.AvgStep.Microseconds(),
		MinStepUS:     s.MinStep.Microseconds(),
		MaxStepUS:     s.MaxStep.Microseconds(),
		StepsPerSec:   s.StepsPerSecond,
		ForcingPct:    s.Pct(PhaseForcing),
		DiffusePct:    s.Pct(PhaseDiffuse),
		AddForcingPct: s.Pct(PhaseAddForce),
		EnergyPct:     s.Pct(PhaseEnergy),
		TelemetryPct:  s.Pct(PhaseTelemetry),
	}
}

// FrameTimer measures render frame rate in the viewer, independent of steps.
type FrameTimer struct {
	last time.Time
	dur  time.Duration
}

// Tick marks the start of a frame.
func (f *FrameTimer) Tick() {
	now := time.Now()
	if !f.last.IsZero() {
		f.dur = now.Sub(f.last)
	}
	f.last = now
}

// FPS returns the rate implied by the most recent frame, or 0 before two ticks.
func (f *FrameTimer) FPS() float64 {
	if f.dur <= 0 {
		return 0
	}
	return float64(time.Second) / float64(f.dur)
}
