package grid

// Wrap maps any index onto [0, n) with periodic topology.
func Wrap(i, n int) int {
	r := i % n
	if r < 0 {
		r += n
	}
	return r
}

// Shift returns the index reached by moving by steps from i on a ring of n.
func Shift(i, by, n int) int {
	return Wrap(i+by, n)
}

// Axis selects a field dimension.
type Axis int

const (
	Rows Axis = iota // axis 0, y
	Cols             // axis 1, x
)
