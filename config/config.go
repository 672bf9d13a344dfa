// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// stepTolerance absorbs float error in duration/dt so 0.3/0.1 counts as 3 steps.
const stepTolerance = 1e-9

// StableDiffusionNumber is the explicit 2D bound on mu*dt. The stencil works in
// grid-index units (the Laplacian is not divided by the spacing), so the bound
// does not involve DX or DY.
const StableDiffusionNumber = 0.25

// Config holds all simulation configuration parameters.
type Config struct {
	Grid      GridConfig      `yaml:"grid"`
	Physics   PhysicsConfig   `yaml:"physics"`
	Forcing   ForcingConfig   `yaml:"forcing"`
	Parallel  ParallelConfig  `yaml:"parallel"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// GridConfig holds the discretised domain.
type GridConfig struct {
	Width   int     `yaml:"width"`    // Grid points along x (columns)
	Height  int     `yaml:"height"`   // Grid points along y (rows)
	LengthX float64 `yaml:"length_x"` // Physical extent along x
	LengthY float64 `yaml:"length_y"` // Physical extent along y
}

// PhysicsConfig holds time stepping and diffusion parameters.
type PhysicsConfig struct {
	DT       float64 `yaml:"dt"`
	Duration float64 `yaml:"duration"` // Total simulated time T
	Mu       float64 `yaml:"mu"`       // Diffusion coefficient
}

// ForcingConfig holds the synthetic wind, swell and impulse parameters.
type ForcingConfig struct {
	Omega        float64        `yaml:"omega"` // Fan rotation rate
	WindSchedule []WindowConfig `yaml:"wind_schedule"`
	Swell        SwellConfig    `yaml:"swell"`
	Impulse      ImpulseConfig  `yaml:"impulse"`
}

// WindowConfig is one half-open [start, end) entry of the wind schedule.
// A missing end means the window never closes.
type WindowConfig struct {
	Start float64  `yaml:"start"`
	End   *float64 `yaml:"end,omitempty"`
	Value float64  `yaml:"value"`
}

// EndOrInf returns End, or +Inf for an open window.
func (w WindowConfig) EndOrInf() float64 {
	if w.End == nil {
		return math.Inf(1)
	}
	return *w.End
}

// SwellConfig holds the traveling swell term amplitude*sin(kx*X + ky*Y - speed*t).
type SwellConfig struct {
	Amplitude float64 `yaml:"amplitude"`
	KX        float64 `yaml:"kx"`
	KY        float64 `yaml:"ky"`
	Speed     float64 `yaml:"speed"`
}

// ImpulseConfig holds the centred Gaussian "sneeze" active during [start, end).
type ImpulseConfig struct {
	Start     float64 `yaml:"start"`
	End       float64 `yaml:"end"`
	Amplitude float64 `yaml:"amplitude"`
	Width     float64 `yaml:"width"` // Denominator of the squared distance
}

// ParallelConfig holds stencil worker pool settings.
type ParallelConfig struct {
	Workers  int `yaml:"workers"`   // 0 = GOMAXPROCS
	MinCells int `yaml:"min_cells"` // Below this, stencil runs single-threaded
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow float64 `yaml:"stats_window"` // Simulated seconds per stats window
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Steps           int     // floor(Duration/DT)
	DX, DY          float64 // Grid spacing (inclusive endpoint sampling)
	DiffusionNumber float64 // Mu*DT, the per-step stencil weight
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns a fresh copy of the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finalize validates the config and recomputes derived values.
// Call it again after mutating fields (e.g. from CLI overrides).
func (c *Config) Finalize() error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.computeDerived()
	return nil
}

// Validate checks every option that would make the run ill-formed before it starts.
// Numerical stability is not checked; see DiffusionNumber.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	g := c.Grid
	if g.Width < 1 {
		bad("grid.width must be positive, got %d", g.Width)
	}
	if g.Height < 1 {
		bad("grid.height must be positive, got %d", g.Height)
	}
	if !(g.LengthX > 0) {
		bad("grid.length_x must be positive, got %v", g.LengthX)
	}
	if !(g.LengthY > 0) {
		bad("grid.length_y must be positive, got %v", g.LengthY)
	}

	p := c.Physics
	if !(p.DT > 0) {
		bad("physics.dt must be positive, got %v", p.DT)
	}
	if !(p.Duration > 0) {
		bad("physics.duration must be positive, got %v", p.Duration)
	}
	if p.DT > 0 && p.Duration > 0 {
		if p.DT > p.Duration {
			bad("physics.dt (%v) exceeds physics.duration (%v)", p.DT, p.Duration)
		} else if StepCount(p.Duration, p.DT) < 1 {
			bad("physics.duration/dt yields no steps")
		}
	}
	if p.Mu < 0 || math.IsNaN(p.Mu) {
		bad("physics.mu must be non-negative, got %v", p.Mu)
	}

	errs = append(errs, c.validateSchedule()...)

	imp := c.Forcing.Impulse
	if !(imp.End > imp.Start) {
		bad("forcing.impulse window [%v, %v) is empty", imp.Start, imp.End)
	}
	if !(imp.Width > 0) {
		bad("forcing.impulse.width must be positive, got %v", imp.Width)
	}

	if c.Parallel.Workers < 0 {
		bad("parallel.workers must be >= 0, got %d", c.Parallel.Workers)
	}
	if c.Telemetry.StatsWindow < 0 {
		bad("telemetry.stats_window must be >= 0, got %v", c.Telemetry.StatsWindow)
	}

	return errors.Join(errs...)
}

// validateSchedule requires contiguous, ordered, non-empty windows starting at 0.
func (c *Config) validateSchedule() []error {
	sched := c.Forcing.WindSchedule
	if len(sched) == 0 {
		return []error{fmt.Errorf("%w: forcing.wind_schedule is empty", ErrInvalidConfig)}
	}
	var errs []error
	if sched[0].Start != 0 {
		errs = append(errs, fmt.Errorf("%w: forcing.wind_schedule must start at 0, got %v", ErrInvalidConfig, sched[0].Start))
	}
	for i, w := range sched {
		end := w.EndOrInf()
		if !(end > w.Start) {
			errs = append(errs, fmt.Errorf("%w: forcing.wind_schedule[%d] [%v, %v) is empty", ErrInvalidConfig, i, w.Start, end))
		}
		if i > 0 {
			prevEnd := sched[i-1].EndOrInf()
			if w.Start != prevEnd {
				errs = append(errs, fmt.Errorf("%w: forcing.wind_schedule[%d] starts at %v, previous window ends at %v", ErrInvalidConfig, i, w.Start, prevEnd))
			}
		}
	}
	if last := sched[len(sched)-1]; last.End != nil {
		errs = append(errs, fmt.Errorf("%w: forcing.wind_schedule last window must be open-ended", ErrInvalidConfig))
	}
	return errs
}

// StepCount returns floor(duration/dt), tolerating representation error just
// below an integer. The slack is an absolute 1e-9, widened only to a few ulps
// of the ratio, so it never reaches a genuinely fractional step.
func StepCount(duration, dt float64) int {
	r := duration / dt
	up := math.Ceil(r)
	ulp := math.Nextafter(r, math.Inf(1)) - r
	if up-r < math.Max(stepTolerance, 4*ulp) {
		return int(up)
	}
	return int(math.Floor(r))
}

// Spacing returns the inclusive-endpoint sample spacing for count points over length.
func Spacing(length float64, count int) float64 {
	if count < 2 {
		return length
	}
	return length / float64(count-1)
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.Steps = StepCount(c.Physics.Duration, c.Physics.DT)
	c.Derived.DX = Spacing(c.Grid.LengthX, c.Grid.Width)
	c.Derived.DY = Spacing(c.Grid.LengthY, c.Grid.Height)
	c.Derived.DiffusionNumber = c.Physics.Mu * c.Physics.DT
}

// Stable reports whether the explicit diffusion update is within its stability bound.
func (c *Config) Stable() bool {
	return c.Derived.DiffusionNumber <= StableDiffusionNumber
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
