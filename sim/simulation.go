// Package sim owns the time loop: it evaluates the forcing regime for each
// step, diffuses the field, adds the forcing and records the energy series.
package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/pthm-cable/squall/config"
	"github.com/pthm-cable/squall/field"
	"github.com/pthm-cable/squall/forcing"
	"github.com/pthm-cable/squall/grid"
	"github.com/pthm-cable/squall/telemetry"
)

var (
	// ErrFinished is returned by Step once every step has run.
	ErrFinished = errors.New("sim: run finished")
	// ErrClosed is returned by Step after Close on an unfinished run.
	ErrClosed = errors.New("sim: closed")
)

// Event detector tuning: an energy peak is a step whose energy exceeds
// peakFactor times the mean of the previous peakHistory steps.
const (
	peakHistory = 10
	peakFactor  = 3.0
)

// maxSeriesPrealloc caps the energy series capacity reserved up front; longer
// runs grow it by append.
const maxSeriesPrealloc = 1 << 16

// maxPerfWindow caps the perf ring; very long stats windows time only their tail.
const maxPerfWindow = 4096

// Frame is what an Observer sees after each step. U and V are read-only views
// of the live field and are only valid until the next call to Step.
type Frame struct {
	Step   int
	Time   float64
	Regime forcing.Regime
	Energy float64
	U, V   mat.Matrix
}

// Observer receives every completed step, e.g. for live plotting.
type Observer interface {
	OnStep(Frame)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Frame)

// OnStep calls f.
func (f ObserverFunc) OnStep(fr Frame) { f(fr) }

// Options configures the non-physical side of a run.
type Options struct {
	OutputDir     string                      // CSV and config snapshot directory (empty = none)
	LogStats      bool                        // Log window stats, perf and events
	StatsCallback func(telemetry.WindowStats) // Called for every flushed stats window
	Observer      Observer                    // Called after every step
	Metrics       *telemetry.Metrics          // Optional Prometheus collectors
	MetricsFile   string                      // Textfile written on each flush and on Close
}

// Result is the energy series paired with its time axis, handed to reporting
// once the loop has completed.
type Result struct {
	Times  []float64
	Energy []float64
	Steps  int
}

// Simulation holds the complete run state.
type Simulation struct {
	cfg     *config.Config
	domain  *grid.Domain
	model   *forcing.Model
	stencil *field.Stencil
	pool    *field.Pool
	state   *field.Pair
	terms   *forcing.Terms
	viewU   fieldView
	viewV   fieldView

	// Loop state
	step   int
	steps  int
	dt, mu float64
	energy []float64
	regime forcing.Regime
	err    error // sticky fatal error
	closed bool

	// Telemetry
	collector     *telemetry.Collector
	perfCollector *telemetry.PerfCollector
	events        *telemetry.EventDetector
	outputManager *telemetry.OutputManager
	metrics       *telemetry.Metrics
	metricsFile   string
	logStats      bool
	statsCallback func(telemetry.WindowStats)
	observer      Observer
}

// New validates cfg and builds every component of the run. A nil cfg uses
// the embedded defaults. Configuration errors wrap config.ErrInvalidConfig.
func New(cfg *config.Config, opts Options) (*Simulation, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}

	d := grid.New(cfg.Grid.Width, cfg.Grid.Height, cfg.Grid.LengthX, cfg.Grid.LengthY)

	var pool *field.Pool
	if cfg.Parallel.Workers != 1 && d.Cells() >= cfg.Parallel.MinCells {
		pool = field.NewPool(cfg.Parallel.Workers)
	}

	s := &Simulation{
		cfg:           cfg,
		domain:        d,
		model:         forcing.NewModel(d, cfg.Forcing),
		stencil:       field.NewStencil(d, pool, cfg.Parallel.MinCells),
		pool:          pool,
		state:         field.NewPair(d),
		terms:         forcing.NewTerms(d),
		steps:         cfg.Derived.Steps,
		dt:            cfg.Physics.DT,
		mu:            cfg.Physics.Mu,
		energy:        make([]float64, 0, min(cfg.Derived.Steps, maxSeriesPrealloc)),
		events:        telemetry.NewEventDetector(peakHistory, peakFactor),
		metrics:       opts.Metrics,
		metricsFile:   opts.MetricsFile,
		logStats:      opts.LogStats,
		statsCallback: opts.StatsCallback,
		observer:      opts.Observer,
	}

	perfWindow := 60
	if w := cfg.Telemetry.StatsWindow; w > 0 {
		s.collector = telemetry.NewCollector(w, s.dt)
		perfWindow = min(s.collector.WindowDurationSteps(), maxPerfWindow)
	}
	s.perfCollector = telemetry.NewPerfCollector(perfWindow)

	om, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		s.pool.Close()
		return nil, fmt.Errorf("sim: %w", err)
	}
	s.viewU = fieldView{s.state.U}
	s.viewV = fieldView{s.state.V}
	s.outputManager = om
	if err := om.WriteConfig(cfg); err != nil {
		s.Close()
		return nil, fmt.Errorf("sim: %w", err)
	}

	if !cfg.Stable() {
		slog.Warn("diffusion number exceeds explicit stability bound, energy may diverge",
			"mu_dt", cfg.Derived.DiffusionNumber,
			"limit", config.StableDiffusionNumber,
		)
	}

	slog.Debug("simulation ready",
		"width", cfg.Grid.Width,
		"height", cfg.Grid.Height,
		"steps", s.steps,
		"dt", s.dt,
		"mu", s.mu,
		"workers", pool.Workers(),
	)

	return s, nil
}

// Step advances the field by one time step. It returns ErrFinished once all
// steps have run. Shape errors are fatal and returned by every later call.
func (s *Simulation) Step() error {
	if s.err != nil {
		return s.err
	}
	if s.step >= s.steps {
		return ErrFinished
	}
	if s.closed {
		return ErrClosed
	}

	start := time.Now()
	s.perfCollector.StartStep()
	t := float64(s.step) * s.dt

	s.perfCollector.StartPhase(telemetry.PhaseForcing)
	reg, err := s.model.Evaluate(t, s.terms)
	if err != nil {
		return s.fail("forcing", err)
	}

	s.perfCollector.StartPhase(telemetry.PhaseDiffuse)
	if err := s.stencil.Apply(s.state, s.mu, s.dt); err != nil {
		return s.fail("diffuse", err)
	}

	s.perfCollector.StartPhase(telemetry.PhaseAddForce)
	if err := field.AddForcing(s.state, s.terms); err != nil {
		return s.fail("add forcing", err)
	}

	s.perfCollector.StartPhase(telemetry.PhaseEnergy)
	e := field.Energy(s.state)
	s.energy = append(s.energy, e)
	s.regime = reg

	s.perfCollector.StartPhase(telemetry.PhaseTelemetry)
	s.recordTelemetry(reg, e)
	s.perfCollector.EndStep()

	s.step++
	s.metrics.ObserveStep(e, reg.WindStrength, time.Since(start))
	s.flushTelemetry(false)

	if s.observer != nil {
		s.observer.OnStep(Frame{
			Step:   s.step - 1,
			Time:   t,
			Regime: reg,
			Energy: e,
			U:      s.viewU,
			V:      s.viewV,
		})
	}
	return nil
}

func (s *Simulation) fail(stage string, err error) error {
	s.err = fmt.Errorf("sim: step %d %s: %w", s.step, stage, err)
	return s.err
}

// Run executes the remaining steps, then flushes telemetry and closes output.
func (s *Simulation) Run() (*Result, error) {
	for !s.Done() {
		if err := s.Step(); err != nil {
			s.Close()
			return nil, err
		}
	}
	if err := s.Close(); err != nil {
		return nil, err
	}
	return s.Result(), nil
}

// Result returns a copy of the energy series recorded so far with times n*dt.
func (s *Simulation) Result() *Result {
	r := &Result{
		Times:  make([]float64, len(s.energy)),
		Energy: append([]float64(nil), s.energy...),
		Steps:  len(s.energy),
	}
	for i := range r.Times {
		r.Times[i] = float64(i) * s.dt
	}
	return r
}

// Close flushes the final partial stats window, writes metrics and releases
// output files and workers. It is safe to call more than once.
func (s *Simulation) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	s.flushTelemetry(true)

	var errs []error
	if err := s.metrics.WriteTextfile(s.metricsFile); err != nil {
		errs = append(errs, err)
	}
	if err := s.outputManager.Close(); err != nil {
		errs = append(errs, err)
	}
	s.pool.Close()
	return errors.Join(errs...)
}

// Tick returns the number of completed steps.
func (s *Simulation) Tick() int { return s.step }

// Steps returns the total step count floor(T/dt).
func (s *Simulation) Steps() int { return s.steps }

// Done reports whether every step has run.
func (s *Simulation) Done() bool { return s.step >= s.steps }

// Time returns the simulated time of the next step.
func (s *Simulation) Time() float64 { return float64(s.step) * s.dt }

// Energy returns the live energy series. Callers must not modify it.
func (s *Simulation) Energy() []float64 { return s.energy }

// Regime returns the regime applied in the most recent step.
func (s *Simulation) Regime() forcing.Regime { return s.regime }

// Domain returns the grid the run is defined on.
func (s *Simulation) Domain() *grid.Domain { return s.domain }

// Config returns the resolved configuration.
func (s *Simulation) Config() *config.Config { return s.cfg }

// Field returns read-only views of the current U and V components.
func (s *Simulation) Field() (u, v mat.Matrix) { return s.viewU, s.viewV }

// PerfStats returns timing over the most recent window of steps.
func (s *Simulation) PerfStats() telemetry.PerfStats { return s.perfCollector.Stats() }
