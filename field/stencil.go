package field

import (
	"gonum.org/v1/gonum/mat"

	"github.com/pthm-cable/squall/grid"
)

// Diffuse writes one explicit diffusion step of src into dst:
//
//	dst = src + dt*(mu*lapRows + mu*lapCols)
//
// where each Laplacian term uses wrap-around neighbours one cell away. The
// Laplacian is taken in index units. Forward Euler is only stable for
// mu*dt <= 0.25; nothing here guards against larger values.
// dst and src must not alias.
func Diffuse(dst, src *mat.Dense, mu, dt float64) {
	rows, cols := src.Dims()
	diffuseRows(dst, src, rows, cols, mu, dt, 0, rows)
}

// diffuseRows updates rows [r0, r1) of dst from src.
func diffuseRows(dst, src *mat.Dense, rows, cols int, mu, dt float64, r0, r1 int) {
	for r := r0; r < r1; r++ {
		up := src.RawRowView(grid.Shift(r, -1, rows))
		down := src.RawRowView(grid.Shift(r, 1, rows))
		row := src.RawRowView(r)
		out := dst.RawRowView(r)
		for c := 0; c < cols; c++ {
			left := row[grid.Shift(c, -1, cols)]
			right := row[grid.Shift(c, 1, cols)]
			v := row[c]

			lapRows := up[c] - 2*v + down[c]
			lapCols := left - 2*v + right
			out[c] = v + dt*(mu*lapRows+mu*lapCols)
		}
	}
}

// Roll returns a copy of m circularly rotated by shift along axis,
// so out[i] = m[i-shift] with indices taken modulo the axis length.
func Roll(m mat.Matrix, shift int, axis grid.Axis) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			sr, sc := r, c
			if axis == grid.Rows {
				sr = grid.Shift(r, -shift, rows)
			} else {
				sc = grid.Shift(c, -shift, cols)
			}
			out.Set(r, c, m.At(sr, sc))
		}
	}
	return out
}

// Stencil applies Diffuse to a field pair, reusing a scratch buffer and
// optionally spreading rows over a worker pool.
type Stencil struct {
	domain   *grid.Domain
	scratch  *mat.Dense
	pool     *Pool
	minCells int
}

// NewStencil creates a stencil for the domain. Grids with fewer than minCells
// cells, or a nil pool, run single-threaded.
func NewStencil(d *grid.Domain, pool *Pool, minCells int) *Stencil {
	return &Stencil{
		domain:   d,
		scratch:  d.NewField(),
		pool:     pool,
		minCells: minCells,
	}
}

// Diffuse updates m in place.
func (s *Stencil) Diffuse(m *mat.Dense, mu, dt float64) error {
	if err := s.domain.CheckShape("field", m); err != nil {
		return err
	}
	rows, cols := s.domain.Shape()

	if s.pool == nil || s.domain.Cells() < s.minCells {
		diffuseRows(s.scratch, m, rows, cols, mu, dt, 0, rows)
	} else {
		s.pool.Run(rows, func(r0, r1 int) {
			diffuseRows(s.scratch, m, rows, cols, mu, dt, r0, r1)
		})
	}

	m.Copy(s.scratch)
	return nil
}

// Apply diffuses both components. Each reads only its own pre-update values.
func (s *Stencil) Apply(p *Pair, mu, dt float64) error {
	if err := s.Diffuse(p.U, mu, dt); err != nil {
		return err
	}
	return s.Diffuse(p.V, mu, dt)
}
