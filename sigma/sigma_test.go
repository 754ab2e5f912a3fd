package sigma

import (
	"errors"
	"testing"

	filter "github.com/gokalman/sqrtukf"
	"github.com/gokalman/sqrtukf/constraint"
	"github.com/gokalman/sqrtukf/weight"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newNonAugmented(t *testing.T, nObs, nPars int) *Generator {
	t.Helper()
	n := nObs + nPars
	w, err := weight.New(n, weight.DefaultParams(n))
	require.NoError(t, err)
	return New(nObs, nPars, 0, false, constraint.New(nObs, nPars), w)
}

func TestGenerateRecentersToMean(t *testing.T) {
	g := newNonAugmented(t, 2, 1)

	sqrtP := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0.1, 0.5, 0,
		0, 0.2, 0.3,
	})

	x := []float64{1.0, 2.0}
	p := []float64{0.5}

	Xs, err := g.Generate(x, p, sqrtP, nil, nil)
	require.NoError(t, err)

	wm, _ := g.weights.Weights()
	rows, cols := Xs.Dims()
	mean := make([]float64, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			mean[j] += wm[i] * Xs.At(i, j)
		}
	}

	assert.InDelta(t, x[0], mean[0], 1e-9)
	assert.InDelta(t, x[1], mean[1], 1e-9)
	assert.InDelta(t, p[0], mean[2], 1e-9)
}

func TestGenerateDimensionMismatchReturnsEmpty(t *testing.T) {
	g := newNonAugmented(t, 2, 1)

	Xs, err := g.Generate([]float64{1.0}, []float64{0.5}, mat.NewDense(3, 3, nil), nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, filter.ErrDimensionMismatch))

	r, c := Xs.Dims()
	assert.Equal(t, 0, r)
	assert.Equal(t, 0, c)
}

func TestGenerateAppliesConstraints(t *testing.T) {
	nObs, nPars := 1, 1
	cons := constraint.New(nObs, nPars)
	cons.SetParamUpper(0, 1.5)

	n := nObs + nPars
	w, err := weight.New(n, weight.DefaultParams(n))
	require.NoError(t, err)
	g := New(nObs, nPars, 0, false, cons, w)

	sqrtP := mat.NewDense(2, 2, []float64{1, 0, 0, 5})
	Xs, err := g.Generate([]float64{0.0}, []float64{3.0}, sqrtP, nil, nil)
	require.NoError(t, err)

	// Only the ± rows are clipped; row 0 is the mean as given.
	rows, _ := Xs.Dims()
	for i := 1; i < rows; i++ {
		assert.LessOrEqual(t, Xs.At(i, 1), 1.5)
	}
}

func TestGenerateAugmentedWithZeroMeasurementDimensionAndRecentering(t *testing.T) {
	nObs, nPars := 1, 0
	n0 := nObs + nPars
	nAug := 2*n0 + 0 // nY=0 boundary case (§8)

	wAug, err := weight.New(nAug, weight.DefaultParams(nAug))
	require.NoError(t, err)
	gAug := New(nObs, nPars, 0, true, constraint.New(nObs, nPars), wAug)

	assert.Equal(t, nAug, gAug.Dim())

	sqrtP := mat.NewDense(1, 1, []float64{0.5})
	sqrtQ := mat.NewDense(1, 1, []float64{0.1})

	Xs, err := gAug.Generate([]float64{1.0}, nil, sqrtP, sqrtQ, nil)
	require.NoError(t, err)

	wm, _ := wAug.Weights()
	rows, cols := Xs.Dims()
	mean := make([]float64, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			mean[j] += wm[i] * Xs.At(i, j)
		}
	}
	assert.InDelta(t, 1.0, mean[0], 1e-9)
}
