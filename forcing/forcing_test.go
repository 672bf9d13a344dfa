package forcing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/squall/config"
	"github.com/pthm-cable/squall/grid"
)

func TestWindStrengthWindows(t *testing.T) {
	tests := []struct {
		name string
		t    float64
		want float64
	}{
		{"start", 0.0, 0},
		{"calm", 0.5, 0},
		{"just before breeze", math.Nextafter(1.0, 0), 0},
		{"breeze boundary", 1.0, 0.5},
		{"breeze", 1.7, 0.5},
		{"second calm boundary", 2.0, 0},
		{"second calm", 2.99, 0},
		{"gale boundary", 3.0, 2.0},
		{"gale", 4.9, 2.0},
		{"far future", 1e9, 2.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WindStrength(tt.t))
		})
	}
}

func TestScheduleCoversEveryNonNegativeTime(t *testing.T) {
	s := DefaultWindSchedule()
	for i := 0; i <= 1000; i++ {
		tm := float64(i) * 0.01
		matches := 0
		for _, w := range s {
			if w.Contains(tm) {
				matches++
			}
		}
		require.Equal(t, 1, matches, "t=%v must fall in exactly one window", tm)
	}

	_, ok := s.Lookup(-0.1)
	assert.False(t, ok, "negative time is outside the schedule")
}

func TestScheduleFromConfigMatchesDefault(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, DefaultWindSchedule(), ScheduleFromConfig(cfg.Forcing.WindSchedule))
}

func newTestModel(t *testing.T, n int) (*Model, *grid.Domain) {
	t.Helper()
	cfg := config.Default()
	d := grid.New(n, n, 2*math.Pi, 2*math.Pi)
	return NewModel(d, cfg.Forcing), d
}

func TestImpulseWindow(t *testing.T) {
	m, d := newTestModel(t, 9)
	terms := NewTerms(d)
	center := d.Height / 2 // odd size puts a sample exactly on the centre

	for _, tm := range []float64{0, 1.0, 1.49, 1.6, 1.7, 3.0} {
		reg, err := m.Evaluate(tm, terms)
		require.NoError(t, err)
		assert.False(t, reg.ImpulseActive, "t=%v", tm)
		for r := 0; r < d.Height; r++ {
			for c := 0; c < d.Width; c++ {
				require.Equal(t, 0.0, terms.Impulse.At(r, c), "impulse must be exactly zero at t=%v", tm)
			}
		}
	}

	for _, tm := range []float64{1.5, 1.55, math.Nextafter(1.6, 0)} {
		reg, err := m.Evaluate(tm, terms)
		require.NoError(t, err)
		assert.True(t, reg.ImpulseActive, "t=%v", tm)
		assert.InDelta(t, 3.0, terms.Impulse.At(center, center), 1e-12, "peak at the centre")
		assert.Greater(t, terms.Impulse.At(center, center), terms.Impulse.At(0, 0))
	}
}

func TestImpulseClearsAfterWindow(t *testing.T) {
	m, d := newTestModel(t, 5)
	terms := NewTerms(d)

	_, err := m.Evaluate(1.5, terms)
	require.NoError(t, err)
	require.Greater(t, terms.Impulse.At(2, 2), 0.0)

	_, err = m.Evaluate(1.6, terms)
	require.NoError(t, err)
	assert.Equal(t, 0.0, terms.Impulse.At(2, 2), "no residual once the window closes")
}

func TestSwellMatchesFormula(t *testing.T) {
	m, d := newTestModel(t, 4)
	terms := NewTerms(d)

	for _, tm := range []float64{0, 0.7, 3.3} {
		_, err := m.Evaluate(tm, terms)
		require.NoError(t, err)
		for r := 0; r < d.Height; r++ {
			for c := 0; c < d.Width; c++ {
				want := 0.3 * math.Sin(2*d.Xs[c]+2*d.Ys[r]-0.5*tm)
				assert.InDelta(t, want, terms.Swell.At(r, c), 1e-14)
			}
		}
	}
}

func TestWindThreeIndependentFans(t *testing.T) {
	m, d := newTestModel(t, 6)
	terms := NewTerms(d)
	lx, ly := d.LengthX, d.LengthY

	tm := 3.4
	reg, err := m.Evaluate(tm, terms)
	require.NoError(t, err)
	require.Equal(t, 2.0, reg.WindStrength)

	for r := 0; r < d.Height; r++ {
		for c := 0; c < d.Width; c++ {
			x, y := d.Xs[c], d.Ys[r]
			wantU := 2.0 * (math.Sin(x-tm) + math.Sin(lx-x-tm) + math.Sin(x-lx/2-tm))
			wantV := 2.0 * (math.Sin(y-tm) + math.Sin(ly-y-tm) + math.Sin(y-ly/2-tm))
			assert.InDelta(t, wantU, terms.WindU.At(r, c), 1e-12)
			assert.InDelta(t, wantV, terms.WindV.At(r, c), 1e-12)
		}
	}
}

func TestWindZeroWhenCalm(t *testing.T) {
	m, d := newTestModel(t, 4)
	terms := NewTerms(d)

	_, err := m.Evaluate(0.4, terms)
	require.NoError(t, err)
	for r := 0; r < d.Height; r++ {
		for c := 0; c < d.Width; c++ {
			assert.Zero(t, terms.WindU.At(r, c))
			assert.Zero(t, terms.WindV.At(r, c))
		}
	}
}

func TestEvaluateRejectsWrongShape(t *testing.T) {
	m, _ := newTestModel(t, 4)
	terms := NewTerms(grid.New(3, 4, 1, 1))

	_, err := m.Evaluate(0, terms)
	assert.ErrorIs(t, err, grid.ErrShapeMismatch)

	_, err = m.Evaluate(0, &Terms{})
	assert.ErrorIs(t, err, grid.ErrShapeMismatch)
}

func TestRegimeSameAs(t *testing.T) {
	m, _ := newTestModel(t, 4)
	assert.True(t, m.Regime(0.1).SameAs(m.Regime(0.9)))
	assert.False(t, m.Regime(0.9).SameAs(m.Regime(1.0)))
	assert.False(t, m.Regime(1.45).SameAs(m.Regime(1.5)))
}
