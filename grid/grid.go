// Package grid defines the discretised periodic domain shared by the forcing
// model and the diffusion stencil.
package grid

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Domain is an immutable Height x Width sampling of [0, LengthX] x [0, LengthY].
//
// Samples include both endpoints, so the last column sits on the periodic
// wrap point of the first. The stencil still treats column Width-1 and column
// 0 as neighbours. This matches the reference sampling and is kept on purpose.
type Domain struct {
	Width, Height    int
	LengthX, LengthY float64

	// Xs holds Width samples along x (columns), Ys holds Height samples along y (rows).
	Xs, Ys []float64

	DX, DY float64
}

// New builds a domain. Width and Height must be positive; callers validate
// configuration before reaching here.
func New(width, height int, lengthX, lengthY float64) *Domain {
	d := &Domain{
		Width:   width,
		Height:  height,
		LengthX: lengthX,
		LengthY: lengthY,
	}
	d.Xs, d.DX = linspace(width, lengthX)
	d.Ys, d.DY = linspace(height, lengthY)
	return d
}

// linspace returns n evenly spaced samples over [0, length] inclusive.
func linspace(n int, length float64) ([]float64, float64) {
	xs := make([]float64, n)
	if n == 1 {
		return xs, length
	}
	floats.Span(xs, 0, length)
	return xs, length / float64(n-1)
}

// Shape returns the field shape as (rows, cols).
func (d *Domain) Shape() (rows, cols int) {
	return d.Height, d.Width
}

// Cells returns the number of grid points.
func (d *Domain) Cells() int {
	return d.Width * d.Height
}

// X returns the x coordinate of cell (row, col).
func (d *Domain) X(row, col int) float64 { return d.Xs[col] }

// Y returns the y coordinate of cell (row, col).
func (d *Domain) Y(row, col int) float64 { return d.Ys[row] }

// CenterX returns the x midpoint of the physical extent.
func (d *Domain) CenterX() float64 { return d.LengthX / 2 }

// CenterY returns the y midpoint of the physical extent.
func (d *Domain) CenterY() float64 { return d.LengthY / 2 }

// NewField allocates a zeroed field with the domain's shape.
func (d *Domain) NewField() *mat.Dense {
	return mat.NewDense(d.Height, d.Width, nil)
}

// Meshgrid returns the broadcast coordinate grids X and Y: X varies along
// columns, Y along rows.
func (d *Domain) Meshgrid() (x, y *mat.Dense) {
	x = d.NewField()
	y = d.NewField()
	for r := 0; r < d.Height; r++ {
		x.SetRow(r, d.Xs)
		for c := 0; c < d.Width; c++ {
			y.Set(r, c, d.Ys[r])
		}
	}
	return x, y
}

// SameShape reports whether m matches the domain's shape.
func (d *Domain) SameShape(m mat.Matrix) bool {
	r, c := m.Dims()
	return r == d.Height && c == d.Width
}

// ErrShapeMismatch reports arrays that do not match the domain shape.
var ErrShapeMismatch = errors.New("grid: shape mismatch")

// CheckShape returns ErrShapeMismatch, annotated with name, unless m matches the domain.
func (d *Domain) CheckShape(name string, m mat.Matrix) error {
	if d.SameShape(m) {
		return nil
	}
	r, c := m.Dims()
	return fmt.Errorf("%w: %s is %dx%d, domain is %dx%d", ErrShapeMismatch, name, r, c, d.Height, d.Width)
}
