package sim

import "gonum.org/v1/gonum/mat"

// fieldView is a read-only window onto one component of the live field.
// It has no method that yields the underlying *mat.Dense, so observers
// cannot write to the state the driver owns.
type fieldView struct {
	m *mat.Dense
}

func (v fieldView) Dims() (r, c int)    { return v.m.Dims() }
func (v fieldView) At(i, j int) float64 { return v.m.At(i, j) }
func (v fieldView) T() mat.Matrix       { return mat.Transpose{Matrix: v} }
