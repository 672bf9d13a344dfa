package sim

import (
	"log/slog"

	"github.com/pthm-cable/squall/forcing"
	"github.com/pthm-cable/squall/telemetry"
)

// recordTelemetry feeds one step into the collector, event detector and energy.csv.
func (s *Simulation) recordTelemetry(reg forcing.Regime, energy float64) {
	if s.collector != nil {
		s.collector.Record(energy, reg)
	}

	if err := s.outputManager.WriteEnergy(telemetry.EnergyRecord{
		Step:          s.step,
		Time:          reg.Time,
		Energy:        energy,
		WindStrength:  reg.WindStrength,
		ImpulseActive: reg.ImpulseActive,
	}); err != nil {
		slog.Error("failed to write energy", "error", err)
	}

	for _, ev := range s.events.Check(s.step, reg, energy) {
		// Divergence is always surfaced, other events only with --log-stats
		if s.logStats || ev.Type == telemetry.EventNonFinite {
			ev.LogEvent()
		}
		s.metrics.ObserveEvent(ev)
		if err := s.outputManager.WriteEvent(ev); err != nil {
			slog.Error("failed to write event", "error", err)
		}
	}
}

// flushTelemetry checks if the stats window should be flushed. With final set
// it flushes whatever is pending.
func (s *Simulation) flushTelemetry(final bool) {
	if s.collector == nil || !s.collector.Pending() {
		return
	}
	if !final && !s.collector.ShouldFlush(s.step) {
		return
	}

	stats := s.collector.Flush(s.step)
	perfStats := s.perfCollector.Stats()

	// Call stats callback if provided
	if s.statsCallback != nil {
		s.statsCallback(stats)
	}

	// Log stats if enabled (console output)
	if s.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if err := s.outputManager.WriteTelemetry(stats); err != nil {
		slog.Error("failed to write telemetry", "error", err)
	}
	if err := s.outputManager.WritePerf(perfStats, stats.WindowEndStep); err != nil {
		slog.Error("failed to write perf", "error", err)
	}
	if err := s.metrics.WriteTextfile(s.metricsFile); err != nil {
		slog.Error("failed to write metrics", "error", err)
	}
}
