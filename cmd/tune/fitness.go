package main

import (
	"math"
	"slices"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/squall/config"
	"github.com/pthm-cable/squall/sim"
	"github.com/pthm-cable/squall/telemetry"
)

// divergedFitness is returned for runs whose energy left the finite range.
const divergedFitness = 1e6

// stabilityWeight scales the window-to-window variability penalty.
const stabilityWeight = 0.1

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params       *ParamVector
	baseConfig   *config.Config
	resolutions  []int
	targetEnergy float64 // Mean energy per cell to aim for
	warmupSec    float64 // Stats windows ending before this are ignored

	// Best run tracking
	mu             sync.Mutex
	bestFitness    float64
	lastMeanEnergy float64 // per-cell mean energy from most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator. Every evaluation runs once per
// grid resolution so the tuned parameters do not depend on one grid size.
func NewFitnessEvaluator(params *ParamVector, baseCfg *config.Config, resolutions []int, target, warmup float64) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:       params,
		baseConfig:   baseCfg,
		resolutions:  resolutions,
		targetEnergy: target,
		warmupSec:    warmup,
		bestFitness:  math.Inf(1),
	}
}

// LastMeanEnergy returns the per-cell mean energy from the most recent evaluation.
func (fe *FitnessEvaluator) LastMeanEnergy() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastMeanEnergy
}

// BestFitness returns the lowest fitness seen so far.
func (fe *FitnessEvaluator) BestFitness() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestFitness
}

// runResult holds the results from a single simulation run.
type runResult struct {
	cells       int
	dt          float64
	windowStats []telemetry.WindowStats // collected via StatsCallback each window
	err         error
}

// Evaluate computes fitness for a raw parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]*runResult, len(fe.resolutions))
	var wg sync.WaitGroup

	for i, res := range fe.resolutions {
		wg.Add(1)
		go func(idx, n int) {
			defer wg.Done()
			results[idx] = fe.runSimulation(x, n)
		}(i, res)
	}
	wg.Wait()

	var totalFitness, totalEnergy float64
	for _, r := range results {
		f, e := fe.computeFitness(r)
		totalFitness += f
		totalEnergy += e
	}

	n := float64(len(results))
	avgFitness := totalFitness / n

	fe.mu.Lock()
	if avgFitness < fe.bestFitness {
		fe.bestFitness = avgFitness
	}
	fe.lastMeanEnergy = totalEnergy / n
	fe.mu.Unlock()

	return avgFitness
}

// runSimulation executes a single headless run on an n x n grid.
func (fe *FitnessEvaluator) runSimulation(x []float64, n int) *runResult {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)
	cfg.Grid.Width = n
	cfg.Grid.Height = n

	result := &runResult{cells: n * n, dt: cfg.Physics.DT}

	s, err := sim.New(cfg, sim.Options{
		StatsCallback: func(stats telemetry.WindowStats) {
			result.windowStats = append(result.windowStats, stats)
		},
	})
	if err != nil {
		result.err = err
		return result
	}
	if _, err := s.Run(); err != nil {
		result.err = err
	}
	return result
}

// copyConfig creates a deep copy of the base config.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	cfg.Forcing.WindSchedule = slices.Clone(fe.baseConfig.Forcing.WindSchedule)
	return &cfg
}

// computeFitness scores one run and returns it with the per-cell mean energy.
// Fitness is the squared log error against the target plus a penalty on the
// coefficient of variation of window means.
func (fe *FitnessEvaluator) computeFitness(r *runResult) (fitness, meanEnergy float64) {
	if r.err != nil {
		return divergedFitness, math.NaN()
	}

	means := make([]float64, 0, len(r.windowStats))
	for _, w := range r.windowStats {
		if w.NonFinite > 0 {
			return divergedFitness, math.Inf(1)
		}
		if float64(w.WindowEndStep)*r.dt <= fe.warmupSec {
			continue
		}
		means = append(means, w.EnergyMean/float64(r.cells))
	}
	if len(means) == 0 {
		return divergedFitness, math.NaN()
	}

	meanEnergy = stat.Mean(means, nil)
	if meanEnergy <= 0 {
		return divergedFitness, meanEnergy
	}

	logErr := math.Log(meanEnergy / fe.targetEnergy)
	c := cv(means)
	return logErr*logErr + stabilityWeight*c*c, meanEnergy
}

// cv computes the coefficient of variation (std/mean) for a slice of values.
func cv(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	if mean == 0 {
		return 0
	}
	return std / mean
}
