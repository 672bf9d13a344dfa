package field

import (
	"math"
	"math/rand/v2"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/pthm-cable/squall/forcing"
	"github.com/pthm-cable/squall/grid"
)

func randomField(rows, cols int, seed uint64) *mat.Dense {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	m := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			m.Set(r, c, rng.NormFloat64())
		}
	}
	return m
}

// modularReference recomputes one diffusion step with explicit modulo indexing.
func modularReference(src *mat.Dense, mu, dt float64) *mat.Dense {
	rows, cols := src.Dims()
	out := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := src.At(r, c)
			up := src.At((r-1+rows)%rows, c)
			down := src.At((r+1)%rows, c)
			left := src.At(r, (c-1+cols)%cols)
			right := src.At(r, (c+1)%cols)
			out.Set(r, c, v+dt*(mu*(up-2*v+down)+mu*(left-2*v+right)))
		}
	}
	return out
}

func TestDiffuseUniformFieldUnchanged(t *testing.T) {
	src := mat.NewDense(5, 7, nil)
	for r := 0; r < 5; r++ {
		for c := 0; c < 7; c++ {
			src.Set(r, c, 1.75)
		}
	}
	dst := mat.NewDense(5, 7, nil)
	Diffuse(dst, src, 0.1, 0.1)
	assert.True(t, mat.Equal(src, dst), "Laplacian of a constant is zero")
}

func TestDiffuseMatchesModularReference(t *testing.T) {
	for _, shape := range [][2]int{{4, 4}, {5, 3}, {1, 6}, {2, 2}, {17, 9}} {
		rows, cols := shape[0], shape[1]
		src := randomField(rows, cols, uint64(rows*100+cols))
		dst := mat.NewDense(rows, cols, nil)
		Diffuse(dst, src, 0.1, 0.1)

		want := modularReference(src, 0.1, 0.1)
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				require.InDelta(t, want.At(r, c), dst.At(r, c), 1e-12, "%dx%d cell (%d,%d)", rows, cols, r, c)
			}
		}
	}
}

func TestDiffuseMatchesRollFormulation(t *testing.T) {
	src := randomField(6, 5, 7)
	dst := mat.NewDense(6, 5, nil)
	mu, dt := 0.2, 0.05
	Diffuse(dst, src, mu, dt)

	var lapRows, lapCols, want mat.Dense
	lapRows.Add(Roll(src, 1, grid.Rows), Roll(src, -1, grid.Rows))
	lapRows.Sub(&lapRows, scaled(2, src))
	lapCols.Add(Roll(src, 1, grid.Cols), Roll(src, -1, grid.Cols))
	lapCols.Sub(&lapCols, scaled(2, src))
	want.Add(&lapRows, &lapCols)
	want.Scale(mu*dt, &want)
	want.Add(src, &want)

	assert.True(t, mat.EqualApprox(&want, dst, 1e-12))
}

func scaled(f float64, m mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Scale(f, m)
	return &out
}

func TestDiffuseConservesTotal(t *testing.T) {
	src := randomField(8, 8, 3)
	dst := mat.NewDense(8, 8, nil)
	Diffuse(dst, src, 0.1, 0.1)
	assert.InDelta(t, mat.Sum(src), mat.Sum(dst), 1e-10, "periodic diffusion neither creates nor removes mass")
}

func TestRoll(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{
		1, 2, 3,
		4, 5, 6,
	})

	assert.Equal(t, []float64{3, 1, 2, 6, 4, 5}, Roll(m, 1, grid.Cols).RawMatrix().Data)
	assert.Equal(t, []float64{2, 3, 1, 5, 6, 4}, Roll(m, -1, grid.Cols).RawMatrix().Data)
	assert.Equal(t, []float64{4, 5, 6, 1, 2, 3}, Roll(m, 1, grid.Rows).RawMatrix().Data)
	assert.True(t, mat.Equal(m, Roll(m, 3, grid.Cols)), "full rotation is the identity")
}

func TestStencilParallelMatchesSerial(t *testing.T) {
	d := grid.New(33, 29, 2*math.Pi, 2*math.Pi)
	pool := NewPool(4)
	defer pool.Close()

	serial := NewStencil(d, nil, 0)
	parallel := NewStencil(d, pool, 0)

	a := &Pair{U: randomField(29, 33, 11), V: randomField(29, 33, 12)}
	b := a.Clone()

	for i := 0; i < 5; i++ {
		require.NoError(t, serial.Apply(a, 0.1, 0.1))
		require.NoError(t, parallel.Apply(b, 0.1, 0.1))
	}
	assert.True(t, mat.Equal(a.U, b.U))
	assert.True(t, mat.Equal(a.V, b.V))
}

func TestStencilComponentsIndependent(t *testing.T) {
	d := grid.New(6, 6, 1, 1)
	s := NewStencil(d, nil, 0)

	p := &Pair{U: randomField(6, 6, 21), V: d.NewField()}
	wantU := mat.NewDense(6, 6, nil)
	Diffuse(wantU, p.U, 0.1, 0.1)

	require.NoError(t, s.Apply(p, 0.1, 0.1))
	assert.True(t, mat.Equal(wantU, p.U))
	assert.Zero(t, mat.Norm(p.V, 1), "a zero component stays zero")
}

func TestStencilRejectsWrongShape(t *testing.T) {
	s := NewStencil(grid.New(4, 4, 1, 1), nil, 0)
	err := s.Diffuse(mat.NewDense(3, 4, nil), 0.1, 0.1)
	assert.ErrorIs(t, err, grid.ErrShapeMismatch)
}

func TestAddForcing(t *testing.T) {
	d := grid.New(3, 2, 1, 1)
	p := NewPair(d)
	p.U.Set(0, 0, 1)

	terms := forcing.NewTerms(d)
	terms.WindU.Set(0, 0, 2)
	terms.WindV.Set(0, 0, -3)
	terms.Swell.Set(0, 0, 0.5)
	terms.Impulse.Set(0, 0, 0.25)
	terms.Swell.Set(1, 2, 1)

	require.NoError(t, AddForcing(p, terms))

	assert.Equal(t, 1+2+0.5+0.25, p.U.At(0, 0))
	assert.Equal(t, -3+0.5+0.25, p.V.At(0, 0))
	assert.Equal(t, 1.0, p.U.At(1, 2), "swell reaches both components")
	assert.Equal(t, 1.0, p.V.At(1, 2))
	assert.Equal(t, 0.0, p.U.At(1, 0))
}

func TestAddForcingShapeMismatch(t *testing.T) {
	p := NewPair(grid.New(4, 4, 1, 1))
	terms := forcing.NewTerms(grid.New(4, 3, 1, 1))
	assert.ErrorIs(t, AddForcing(p, terms), grid.ErrShapeMismatch)
	assert.ErrorIs(t, AddForcing(p, &forcing.Terms{}), grid.ErrShapeMismatch)
}

func TestEnergy(t *testing.T) {
	d := grid.New(2, 2, 1, 1)
	p := NewPair(d)
	assert.Zero(t, Energy(p))

	p.U.Set(0, 1, 3)
	p.V.Set(0, 1, 4)
	p.V.Set(1, 0, -1)
	assert.Equal(t, 9.0+16+1, Energy(p))
}

func TestEnergyNonNegative(t *testing.T) {
	for seed := uint64(0); seed < 20; seed++ {
		p := &Pair{U: randomField(7, 5, seed), V: randomField(7, 5, seed+100)}
		assert.GreaterOrEqual(t, Energy(p), 0.0)
	}
}

func TestPairClone(t *testing.T) {
	p := &Pair{U: randomField(3, 3, 1), V: randomField(3, 3, 2)}
	c := p.Clone()
	p.U.Zero()
	p.V.Zero()

	assert.Zero(t, Energy(p))
	assert.Greater(t, Energy(c), 0.0, "clone does not alias the original")
}

func TestPoolCoversEveryRowOnce(t *testing.T) {
	pool := NewPool(3)
	defer pool.Close()

	for _, rows := range []int{1, 2, 3, 10, 64} {
		hits := make([]int32, rows)
		pool.Run(rows, func(r0, r1 int) {
			for r := r0; r < r1; r++ {
				atomic.AddInt32(&hits[r], 1)
			}
		})
		for r, h := range hits {
			require.Equal(t, int32(1), h, "rows=%d row %d", rows, r)
		}
	}
}

func TestPoolNilRunsInline(t *testing.T) {
	var pool *Pool
	called := 0
	pool.Run(5, func(r0, r1 int) {
		called++
		assert.Equal(t, 0, r0)
		assert.Equal(t, 5, r1)
	})
	assert.Equal(t, 1, called)
	assert.Equal(t, 1, pool.Workers())
	pool.Close()
}
