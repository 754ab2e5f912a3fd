package algebra

import (
	"errors"
	"testing"

	filter "github.com/gokalman/sqrtukf"
	"github.com/gokalman/sqrtukf/constraint"
	"github.com/gokalman/sqrtukf/sigma"
	"github.com/gokalman/sqrtukf/weight"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestAvgComputesWeightedMean(t *testing.T) {
	M := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	wm := []float64{0.25, 0.75}

	got := Avg(wm, M)

	assert.InDelta(t, 0.25*1+0.75*3, got.AtVec(0), 1e-12)
	assert.InDelta(t, 0.25*2+0.75*4, got.AtVec(1), 1e-12)
}

func TestCholUpdateReproducesRankOneSum(t *testing.T) {
	F0 := mat.NewDense(2, 2, []float64{2, 0, 0, 3})
	x := mat.NewDense(2, 1, []float64{1, 0.5})

	F1, warn := CholUpdate(F0, x, 1)
	assert.False(t, warn)

	var P0, xxT, want, got mat.Dense
	P0.Mul(F0.T(), F0)
	xxT.Mul(x, x.T())
	want.Add(&P0, &xxT)
	got.Mul(F1.T(), F1)

	rows, cols := want.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			assert.InDelta(t, want.At(i, j), got.At(i, j), 1e-9)
		}
	}
}

func TestCholUpdateDowndateClampsNegativeRadicand(t *testing.T) {
	F0 := mat.NewDense(1, 1, []float64{1.0})
	x := mat.NewDense(1, 1, []float64{2.0})

	F1, warn := CholUpdate(F0, x, -1)

	assert.True(t, warn)
	assert.Equal(t, 0.0, F1.At(0, 0))
}

func TestComputeSReconstructsInputCovarianceWithIdentityProjection(t *testing.T) {
	n := 2
	w, err := weight.New(n, weight.DefaultParams(n))
	require.NoError(t, err)
	g := sigma.New(n, 0, 0, false, constraint.New(n, 0), w)

	sqrtP := mat.NewDense(2, 2, []float64{1.0, 0, 0.3, 0.8})
	x := []float64{1.0, -2.0}

	Xs, err := g.Generate(x, nil, sqrtP, nil, nil)
	require.NoError(t, err)

	wm, wc := w.Weights()
	Xavg := Avg(wm, Xs)
	sqrtQ := mat.NewDense(2, 2, nil)

	S, warn, err := ComputeS(Xs, Xavg, sqrtQ, wc)
	require.NoError(t, err)
	assert.False(t, warn)

	var wantP, gotP mat.Dense
	wantP.Mul(sqrtP.T(), sqrtP)
	gotP.Mul(S.T(), S)

	rows, cols := wantP.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			assert.InDelta(t, wantP.At(i, j), gotP.At(i, j), 1e-9)
		}
	}
}

func TestComputeSDimensionMismatch(t *testing.T) {
	Xproj := mat.NewDense(3, 2, nil)
	Xavg := mat.NewVecDense(2, nil)
	badQ := mat.NewDense(1, 1, nil)

	_, _, err := ComputeS(Xproj, Xavg, badQ, []float64{1, 0, 0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, filter.ErrDimensionMismatch))
}

func TestCovXZMatchesManualWeightedOuterProductSum(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{0, 1, -1})
	Z := mat.NewDense(3, 1, []float64{0, 2, -2})
	wc := []float64{0.5, 0.25, 0.25}
	avg := mat.NewVecDense(1, []float64{0})

	got := CovXZ(X, avg, Z, avg, wc)

	want := 0.5*0*0 + 0.25*1*2 + 0.25*(-1)*(-2)
	assert.InDelta(t, want, got.At(0, 0), 1e-12)
}

func TestCxxMatchesManualWeightedOuterProductSum(t *testing.T) {
	Xnext := mat.NewDense(3, 1, []float64{0, 2, -2})
	Xnow := mat.NewDense(3, 1, []float64{0, 1, -1})
	wc := []float64{0.5, 0.25, 0.25}
	avg := mat.NewVecDense(1, []float64{0})

	got := Cxx(Xnext, avg, Xnow, avg, wc)

	want := 0.5*0*0 + 0.25*2*1 + 0.25*(-2)*(-1)
	assert.InDelta(t, want, got.At(0, 0), 1e-12)
}

func TestSolveReturnsErrSingularMatrixOnSingularInput(t *testing.T) {
	A := mat.NewDense(2, 2, []float64{1, 2, 2, 4})
	B := mat.NewDense(2, 1, []float64{1, 1})

	_, err := Solve(A, B)
	require.Error(t, err)
	assert.True(t, errors.Is(err, filter.ErrSingularMatrix))
}

func TestSolveSolvesWellConditionedSystem(t *testing.T) {
	A := mat.NewDense(2, 2, []float64{2, 0, 0, 4})
	B := mat.NewDense(2, 1, []float64{6, 8})

	X, err := Solve(A, B)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, X.At(0, 0), 1e-9)
	assert.InDelta(t, 2.0, X.At(1, 0), 1e-9)
}
