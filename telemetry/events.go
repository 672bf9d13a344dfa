// Package telemetry provides energy statistics, regime event detection,
// performance timing, metrics and CSV output for a simulation run.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/pthm-cable/squall/forcing"
)

// EventType identifies the type of event.
type EventType string

const (
	EventWindChange   EventType = "wind_change"
	EventImpulseStart EventType = "impulse_start"
	EventImpulseEnd   EventType = "impulse_end"
	EventEnergyPeak   EventType = "energy_peak"
	EventNonFinite    EventType = "energy_non_finite"
)

// Event marks an interesting step in the run.
type Event struct {
	Type        EventType `csv:"type"`
	Step        int       `csv:"step"`
	Time        float64   `csv:"time"`
	Energy      float64   `csv:"energy"`
	Description string    `csv:"description"`
}

// LogEvent logs the event using slog. Non-finite energy is logged as a warning.
func (e Event) LogEvent() {
	level := slog.LevelInfo
	if e.Type == EventNonFinite {
		level = slog.LevelWarn
	}
	slog.Log(context.Background(), level, "event",
		"type", string(e.Type),
		"step", e.Step,
		"time", e.Time,
		"energy", e.Energy,
		"description", e.Description,
	)
}

// EventDetector watches the per-step regime and energy for changes worth recording.
type EventDetector struct {
	prev    forcing.Regime
	started bool

	// Rolling energy history (circular buffer) for peak detection
	history     []float64
	historySize int
	historyIdx  int
	historyFull bool

	peakFactor   float64
	sawNonFinite bool
}

// NewEventDetector creates a detector. A step is an energy peak when it exceeds
// peakFactor times the mean of the last historySize steps.
func NewEventDetector(historySize int, peakFactor float64) *EventDetector {
	if historySize < 3 {
		historySize = 3
	}
	if peakFactor <= 1 {
		peakFactor = 2
	}
	return &EventDetector{
		history:     make([]float64, historySize),
		historySize: historySize,
		peakFactor:  peakFactor,
	}
}

// Check analyses one step and returns any triggered events.
func (ed *EventDetector) Check(step int, reg forcing.Regime, energy float64) []Event {
	var events []Event

	if ed.started {
		if reg.WindStrength != ed.prev.WindStrength {
			events = append(events, Event{
				Type:        EventWindChange,
				Step:        step,
				Time:        reg.Time,
				Energy:      energy,
				Description: fmt.Sprintf("wind %.2f -> %.2f", ed.prev.WindStrength, reg.WindStrength),
			})
		}
	}
	if reg.ImpulseActive && (!ed.started || !ed.prev.ImpulseActive) {
		events = append(events, Event{
			Type:        EventImpulseStart,
			Step:        step,
			Time:        reg.Time,
			Energy:      energy,
			Description: "impulse window opened",
		})
	}
	if ed.started && !reg.ImpulseActive && ed.prev.ImpulseActive {
		events = append(events, Event{
			Type:        EventImpulseEnd,
			Step:        step,
			Time:        reg.Time,
			Energy:      energy,
			Description: "impulse window closed",
		})
	}

	finite := !math.IsNaN(energy) && !math.IsInf(energy, 0)
	if !finite && !ed.sawNonFinite {
		ed.sawNonFinite = true
		events = append(events, Event{
			Type:        EventNonFinite,
			Step:        step,
			Time:        reg.Time,
			Energy:      energy,
			Description: "energy diverged; mu*dt likely exceeds the explicit stability bound",
		})
	}

	if finite {
		if b := ed.checkPeak(step, reg, energy); b != nil {
			events = append(events, *b)
		}
		ed.addToHistory(energy)
	}

	ed.prev = reg
	ed.started = true
	return events
}

func (ed *EventDetector) addToHistory(energy float64) {
	ed.history[ed.historyIdx] = energy
	ed.historyIdx = (ed.historyIdx + 1) % ed.historySize
	if ed.historyIdx == 0 {
		ed.historyFull = true
	}
}

func (ed *EventDetector) getHistory() []float64 {
	if ed.historyFull {
		return ed.history
	}
	return ed.history[:ed.historyIdx]
}

// checkPeak fires when energy jumps above peakFactor x the rolling mean.
func (ed *EventDetector) checkPeak(step int, reg forcing.Regime, energy float64) *Event {
	hist := ed.getHistory()
	if len(hist) < ed.historySize {
		return nil
	}
	var sum float64
	for _, e := range hist {
		sum += e
	}
	avg := sum / float64(len(hist))
	if avg <= 0 || energy <= ed.peakFactor*avg {
		return nil
	}
	return &Event{
		Type:        EventEnergyPeak,
		Step:        step,
		Time:        reg.Time,
		Energy:      energy,
		Description: fmt.Sprintf("energy %.3g is %.1fx the rolling mean %.3g", energy, energy/avg, avg),
	}
}
