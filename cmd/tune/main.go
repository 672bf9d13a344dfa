// Package main provides CMA-ES tuning of forcing and diffusion parameters
// so that a run settles at a target turbulent energy per cell.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/squall/config"
	"github.com/pthm-cable/squall/logging"
)

// EvalRecord is one row of tune_log.csv.
type EvalRecord struct {
	Eval             int     `csv:"eval"`
	Fitness          float64 `csv:"fitness"`
	MeanEnergy       float64 `csv:"mean_energy_per_cell"`
	Mu               float64 `csv:"mu"`
	SwellAmplitude   float64 `csv:"swell_amplitude"`
	StrongWind       float64 `csv:"strong_wind"`
	ImpulseAmplitude float64 `csv:"impulse_amplitude"`
}

func newEvalRecord(eval int, fitness, meanEnergy float64, p []float64) EvalRecord {
	return EvalRecord{
		Eval:             eval,
		Fitness:          fitness,
		MeanEnergy:       meanEnergy,
		Mu:               p[0],
		SwellAmplitude:   p[1],
		StrongWind:       p[2],
		ImpulseAmplitude: p[3],
	}
}

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

type tuneOptions struct {
	configPath  string
	outputDir   string
	target      float64
	warmup      float64
	resolutions []int
	maxEvals    int
	population  int
	logLevel    string
}

func main() {
	var opts tuneOptions

	cmd := &cobra.Command{
		Use:   "tune",
		Short: "Search mu and forcing amplitudes for a target energy per cell",
		Long: `Runs headless simulations under CMA-ES, minimising the squared log error
between the mean turbulent energy per cell and --target, and writes the best
configuration found to best_config.yaml in --output.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTune(opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "Base config YAML file (empty = use defaults)")
	f.StringVar(&opts.outputDir, "output", "", "Output directory for results")
	f.Float64Var(&opts.target, "target", 1.0, "Target mean energy per cell")
	f.Float64Var(&opts.warmup, "warmup", 1.0, "Simulated seconds ignored before scoring")
	f.IntSliceVar(&opts.resolutions, "resolutions", []int{32, 64}, "Square grid sizes evaluated per candidate")
	f.IntVar(&opts.maxEvals, "max-evals", 200, "Maximum number of evaluations")
	f.IntVar(&opts.population, "population", 0, "CMA-ES population size (0 = auto)")
	f.StringVar(&opts.logLevel, "log-level", "warn", "Log level for simulation runs")
	_ = cmd.MarkFlagRequired("output")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runTune(opts tuneOptions) error {
	level, err := logging.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	logger, err := logging.New(level, logging.FormatText)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if !(opts.target > 0) {
		return fmt.Errorf("--target must be positive, got %v", opts.target)
	}
	if len(opts.resolutions) == 0 {
		return fmt.Errorf("--resolutions must list at least one grid size")
	}

	if err := os.MkdirAll(opts.outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	// Load base config
	if err := config.Init(opts.configPath); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	baseCfg := config.Cfg()

	params := NewParamVector()
	evaluator := NewFitnessEvaluator(params, baseCfg, opts.resolutions, opts.target, opts.warmup)

	// Start from the base config's own values
	dim := params.Dim()
	initX := params.Normalize(params.Clamp(params.ExtractFromConfig(baseCfg)))

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return evaluator.Evaluate(params.Denormalize(x))
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: opts.maxEvals,
		Concurrent:      0, // Sequential evaluation; each one fans out over resolutions
	}

	popSize := opts.population
	if popSize == 0 {
		popSize = 4 + int(3.0*float64(dim)/2.0)
	}

	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}

	logPath := filepath.Join(opts.outputDir, "tune_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("creating log file: %w", err)
	}
	defer logFile.Close()

	// Track evaluations and timing
	evalCount := 0
	bestFitness := 1e9
	var bestParams []float64
	startTime := time.Now()

	// Wrap the function to log evaluations
	originalFunc := problem.Func
	problem.Func = func(x []float64) float64 {
		fitness := originalFunc(x)
		evalCount++

		// Denormalize and clamp to get actual parameter values
		clamped := params.Clamp(params.Denormalize(x))
		if fitness < bestFitness {
			bestFitness = fitness
			bestParams = clamped
		}

		meanEnergy := evaluator.LastMeanEnergy()
		rec := []EvalRecord{newEvalRecord(evalCount, fitness, meanEnergy, clamped)}
		var werr error
		if evalCount == 1 {
			werr = gocsv.Marshal(rec, logFile)
		} else {
			werr = gocsv.MarshalWithoutHeaders(rec, logFile)
		}
		if werr != nil {
			slog.Error("failed to write tune log", "error", werr)
		}

		elapsed := time.Since(startTime)
		avgPerEval := elapsed / time.Duration(evalCount)
		remaining := time.Duration(opts.maxEvals-evalCount) * avgPerEval

		fmt.Printf("Eval %d/%d: energy/cell=%.4f fitness=%.4f (best=%.4f) | elapsed: %s, ETA: %s\n",
			evalCount, opts.maxEvals, meanEnergy, fitness, bestFitness,
			formatDuration(elapsed), formatDuration(remaining))

		return fitness
	}

	fmt.Printf("Starting CMA-ES tuning with %d parameters, population=%d, max_evals=%d\n",
		dim, popSize, opts.maxEvals)
	fmt.Printf("Resolutions per evaluation: %v, target energy/cell: %g\n", opts.resolutions, opts.target)

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		slog.Warn("optimization ended", "error", err)
	}

	// Use best params found (may be from any evaluation, not just final)
	if bestParams == nil && result != nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}
	if bestParams == nil {
		return fmt.Errorf("no evaluations completed")
	}

	fmt.Printf("\nTuning complete after %d evaluations in %s\n", evalCount, formatDuration(time.Since(startTime)))
	fmt.Printf("Best fitness: %.6f\n", bestFitness)

	fmt.Println("\nBest parameters:")
	for i, spec := range params.Specs {
		fmt.Printf("  %s (%s): %.6f\n", spec.Name, spec.Path, bestParams[i])
	}

	// Save best config
	bestCfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("reloading config: %w", err)
	}
	params.ApplyToConfig(bestCfg, bestParams)
	if err := bestCfg.Finalize(); err != nil {
		return fmt.Errorf("best parameters produce an invalid config: %w", err)
	}

	configOutPath := filepath.Join(opts.outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		return err
	}
	fmt.Printf("\nBest config saved to: %s\n", configOutPath)
	return nil
}
