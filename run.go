package main

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/squall/config"
	"github.com/pthm-cable/squall/sim"
	"github.com/pthm-cable/squall/telemetry"
)

type runOptions struct {
	outputDir   string
	logStats    bool
	metricsFile string

	// Config overrides, applied only when the flag is set
	width, height int
	dt, duration  float64
	mu            float64
	workers       int
	statsWindow   float64
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation to completion",
		Long: `Runs floor(duration/dt) steps headless and reports the turbulent energy series.
With --output-dir, energy.csv, telemetry.csv, perf.csv, events.csv and a
config.yaml snapshot are written there.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := loadConfig(cmd, configPath, opts)
			if err != nil {
				return err
			}
			return runSimulation(cfg, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.outputDir, "output-dir", "", "Output directory for CSV logs and config snapshot")
	f.BoolVar(&opts.logStats, "log-stats", false, "Output window stats, perf and events via slog")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")

	f.IntVar(&opts.width, "width", 0, "Grid points along x (overrides config)")
	f.IntVar(&opts.height, "height", 0, "Grid points along y (overrides config)")
	f.Float64Var(&opts.dt, "dt", 0, "Time step (overrides config)")
	f.Float64Var(&opts.duration, "duration", 0, "Total simulated time (overrides config)")
	f.Float64Var(&opts.mu, "mu", 0, "Diffusion coefficient (overrides config)")
	f.IntVar(&opts.workers, "workers", 0, "Stencil workers, 0 = GOMAXPROCS (overrides config)")
	f.Float64Var(&opts.statsWindow, "stats-window", 0, "Stats window in simulated seconds, 0 = off (overrides config)")

	return cmd
}

// loadConfig loads the file, applies every flag the user set and re-validates.
func loadConfig(cmd *cobra.Command, path string, opts runOptions) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	changed := cmd.Flags().Changed
	if changed("width") {
		cfg.Grid.Width = opts.width
	}
	if changed("height") {
		cfg.Grid.Height = opts.height
	}
	if changed("dt") {
		cfg.Physics.DT = opts.dt
	}
	if changed("duration") {
		cfg.Physics.Duration = opts.duration
	}
	if changed("mu") {
		cfg.Physics.Mu = opts.mu
	}
	if changed("workers") {
		cfg.Parallel.Workers = opts.workers
	}
	if changed("stats-window") {
		cfg.Telemetry.StatsWindow = opts.statsWindow
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runSimulation(cfg *config.Config, opts runOptions) error {
	var metrics *telemetry.Metrics
	if opts.metricsFile != "" {
		metrics = telemetry.NewMetrics()
	}

	s, err := sim.New(cfg, sim.Options{
		OutputDir:   opts.outputDir,
		LogStats:    opts.logStats,
		Metrics:     metrics,
		MetricsFile: opts.metricsFile,
	})
	if err != nil {
		return err
	}

	slog.Info("starting simulation",
		"width", cfg.Grid.Width,
		"height", cfg.Grid.Height,
		"steps", cfg.Derived.Steps,
		"dt", cfg.Physics.DT,
		"mu", cfg.Physics.Mu,
		"output_dir", opts.outputDir,
	)

	res, err := s.Run()
	if err != nil {
		return err
	}

	final := res.Energy[len(res.Energy)-1]
	peak, peakStep := peakEnergy(res.Energy)
	slog.Info("simulation complete",
		"steps", res.Steps,
		"final_time", res.Times[len(res.Times)-1],
		"final_energy", final,
		"peak_energy", peak,
		"peak_step", peakStep,
		"perf", s.PerfStats(),
	)
	if math.IsNaN(final) || math.IsInf(final, 0) {
		slog.Warn("energy diverged; reduce mu or dt", "mu_dt", cfg.Derived.DiffusionNumber)
	}
	return nil
}

// peakEnergy returns the largest finite energy and its step, or NaN and -1.
func peakEnergy(series []float64) (float64, int) {
	peak, at := math.NaN(), -1
	for i, e := range series {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			continue
		}
		if at < 0 || e > peak {
			peak, at = e, i
		}
	}
	return peak, at
}
