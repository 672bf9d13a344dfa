// Package field holds the velocity field state and the operators that
// update it: the periodic diffusion stencil, forcing composition and the
// energy reduction.
package field

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/pthm-cable/squall/forcing"
	"github.com/pthm-cable/squall/grid"
)

// Pair is the horizontal (U) and vertical (V) velocity components over a domain.
type Pair struct {
	U, V *mat.Dense
}

// NewPair returns a zero field shaped like the domain.
func NewPair(d *grid.Domain) *Pair {
	return &Pair{U: d.NewField(), V: d.NewField()}
}

// Clone returns a deep copy.
func (p *Pair) Clone() *Pair {
	return &Pair{U: mat.DenseCopyOf(p.U), V: mat.DenseCopyOf(p.V)}
}

// Shape returns (rows, cols) of the components.
func (p *Pair) Shape() (rows, cols int) {
	return p.U.Dims()
}

// AddForcing adds WindU+Swell+Impulse to U and WindV+Swell+Impulse to V.
// Any shape disagreement is a configuration defect and returns grid.ErrShapeMismatch.
func AddForcing(p *Pair, t *forcing.Terms) error {
	rows, cols := p.Shape()
	if r, c := p.V.Dims(); r != rows || c != cols {
		return fmt.Errorf("%w: v is %dx%d, u is %dx%d", grid.ErrShapeMismatch, r, c, rows, cols)
	}
	for _, f := range []struct {
		name string
		m    *mat.Dense
	}{
		{"wind_u", t.WindU},
		{"wind_v", t.WindV},
		{"swell", t.Swell},
		{"impulse", t.Impulse},
	} {
		if f.m == nil {
			return fmt.Errorf("%w: %s is not allocated", grid.ErrShapeMismatch, f.name)
		}
		if r, c := f.m.Dims(); r != rows || c != cols {
			return fmt.Errorf("%w: %s is %dx%d, field is %dx%d", grid.ErrShapeMismatch, f.name, r, c, rows, cols)
		}
	}

	buf := make([]float64, cols)
	for r := 0; r < rows; r++ {
		sw, im := t.Swell.RawRowView(r), t.Impulse.RawRowView(r)

		floats.AddTo(buf, t.WindU.RawRowView(r), sw)
		floats.Add(buf, im)
		floats.Add(p.U.RawRowView(r), buf)

		floats.AddTo(buf, t.WindV.RawRowView(r), sw)
		floats.Add(buf, im)
		floats.Add(p.V.RawRowView(r), buf)
	}
	return nil
}

// Energy returns the sum over all cells of u^2 + v^2.
func Energy(p *Pair) float64 {
	rows, _ := p.Shape()
	var e float64
	for r := 0; r < rows; r++ {
		u, v := p.U.RawRowView(r), p.V.RawRowView(r)
		e += floats.Dot(u, u) + floats.Dot(v, v)
	}
	return e
}
