package forcing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/pthm-cable/squall/config"
	"github.com/pthm-cable/squall/grid"
)

// Terms holds the separate additive contributions for one step.
// Swell and Impulse apply identically to both components.
type Terms struct {
	WindU   *mat.Dense
	WindV   *mat.Dense
	Swell   *mat.Dense
	Impulse *mat.Dense
}

// NewTerms allocates zeroed terms shaped like the domain.
func NewTerms(d *grid.Domain) *Terms {
	return &Terms{
		WindU:   d.NewField(),
		WindV:   d.NewField(),
		Swell:   d.NewField(),
		Impulse: d.NewField(),
	}
}

// fan is one of the three sources; the mirrored one faces the others from the
// far edge, the offset one sits half a domain away.
type fan struct {
	mirrored   bool
	offsetFrac float64
}

var fans = [3]fan{
	{},
	{mirrored: true},
	{offsetFrac: 0.5},
}

func (f fan) phase(x, length, omegaT float64) float64 {
	if f.mirrored {
		return length - x - omegaT
	}
	if f.offsetFrac == 0 {
		return x - omegaT
	}
	return x - length*f.offsetFrac - omegaT
}

// fanSum adds the three fan waves as independent terms. Their partial
// cancellation is the interference pattern, so it must not be simplified.
func fanSum(x, length, omegaT float64) float64 {
	return math.Sin(fans[0].phase(x, length, omegaT)) +
		math.Sin(fans[1].phase(x, length, omegaT)) +
		math.Sin(fans[2].phase(x, length, omegaT))
}

// Model evaluates the forcing for a fixed domain.
type Model struct {
	domain   *grid.Domain
	omega    float64
	schedule Schedule
	swell    config.SwellConfig
	impulse  config.ImpulseConfig

	// Scratch 1D profiles; wind depends on one axis only.
	profileX []float64
	profileY []float64

	// Time-independent parts of the swell phase and the impulse exponent.
	swellPhase *mat.Dense // kx*X + ky*Y
	centreDist *mat.Dense // squared distance from the domain centre
}

// NewModel builds a forcing model from configuration.
func NewModel(d *grid.Domain, fc config.ForcingConfig) *Model {
	x, y := d.Meshgrid()
	sw := fc.Swell
	cx, cy := d.CenterX(), d.CenterY()

	phase := d.NewField()
	phase.Apply(func(r, c int, xv float64) float64 {
		return sw.KX*xv + sw.KY*y.At(r, c)
	}, x)

	dist := d.NewField()
	dist.Apply(func(r, c int, xv float64) float64 {
		dx, dy := xv-cx, y.At(r, c)-cy
		return dx*dx + dy*dy
	}, x)

	return &Model{
		domain:     d,
		omega:      fc.Omega,
		schedule:   ScheduleFromConfig(fc.WindSchedule),
		swell:      sw,
		impulse:    fc.Impulse,
		profileX:   make([]float64, d.Width),
		profileY:   make([]float64, d.Height),
		swellPhase: phase,
		centreDist: dist,
	}
}

// Regime selects the wind level and impulse state at time t.
func (m *Model) Regime(t float64) Regime {
	return Regime{
		Time:          t,
		WindStrength:  m.schedule.At(t),
		ImpulseActive: t >= m.impulse.Start && t < m.impulse.End,
	}
}

// Evaluate fills terms for time t and returns the regime it used.
func (m *Model) Evaluate(t float64, terms *Terms) (Regime, error) {
	d := m.domain
	for _, f := range []struct {
		name string
		m    *mat.Dense
	}{
		{"wind_u", terms.WindU},
		{"wind_v", terms.WindV},
		{"swell", terms.Swell},
		{"impulse", terms.Impulse},
	} {
		if f.m == nil {
			return Regime{}, fmt.Errorf("%w: %s is not allocated", grid.ErrShapeMismatch, f.name)
		}
		if err := d.CheckShape(f.name, f.m); err != nil {
			return Regime{}, err
		}
	}

	reg := m.Regime(t)
	m.wind(reg, terms)
	m.swellTerm(t, terms.Swell)
	m.impulseTerm(reg, terms.Impulse)
	return reg, nil
}

// wind writes strength * (three fan waves) along x into WindU and along y into WindV.
func (m *Model) wind(reg Regime, terms *Terms) {
	d := m.domain
	omegaT := m.omega * reg.Time
	ws := reg.WindStrength

	for c, x := range d.Xs {
		m.profileX[c] = ws * fanSum(x, d.LengthX, omegaT)
	}
	for r, y := range d.Ys {
		m.profileY[r] = ws * fanSum(y, d.LengthY, omegaT)
	}

	for r := 0; r < d.Height; r++ {
		terms.WindU.SetRow(r, m.profileX)
		vy := m.profileY[r]
		row := terms.WindV.RawRowView(r)
		for c := range row {
			row[c] = vy
		}
	}
}

func (m *Model) swellTerm(t float64, dst *mat.Dense) {
	s := m.swell
	shift := s.Speed * t
	dst.Apply(func(_, _ int, phase float64) float64 {
		return s.Amplitude * math.Sin(phase-shift)
	}, m.swellPhase)
}

// impulseTerm writes the centred Gaussian while active and exact zeros otherwise.
func (m *Model) impulseTerm(reg Regime, dst *mat.Dense) {
	if !reg.ImpulseActive {
		dst.Zero()
		return
	}
	imp := m.impulse
	dst.Apply(func(_, _ int, dist float64) float64 {
		return imp.Amplitude * math.Exp(-dist/imp.Width)
	}, m.centreDist)
}
