// Package algebra implements the moment and factor algebra used by the
// square-root UKF (C4): weighted averages, the QR-plus-Cholesky-update
// square-root covariance propagation, and the cross-covariance matrices
// consumed by the filter correction step and the backward smoother.
//
// Grounded on original_source/UKFpython/src/ukf/ukfFMU.py's averageProj,
// computeS, computeSy, cholUpdate, computeCovXZ and computeCxx. The
// original's __newQ__ and __AugStateFromFullState__ helpers are both
// unconditional identity passthroughs in the source (their dead branches
// are never reached); this package carries that as an explicit contract
// instead of dead code: callers pass Xproj/Zproj already restricted to the
// augmented-state or output column space, and sqrtQ already sized to match
// that space (padded with zero rows/columns for parameters, which carry no
// process noise).
package algebra

import (
	"fmt"
	"math"

	filter "github.com/gokalman/sqrtukf"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Avg computes the weighted mean of M's rows, Wmᵀ·M.
func Avg(wm []float64, M *mat.Dense) *mat.VecDense {
	rows, cols := M.Dims()
	out := mat.NewVecDense(cols, nil)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, M)
		out.SetVec(j, floats.Dot(wm, col))
	}
	return out
}

func signOf(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

// qrFactor returns the D×D upper-triangular factor F such that Fᵀ·F ≈
// A·Aᵀ, computed from the R factor of a QR decomposition of Aᵀ (A is D×M,
// M≥D), with each row's sign flipped as needed to give F a non-negative
// diagonal. This mirrors the original source's computeS/computeSy, which
// runs the Cholesky update directly against the R factor of the QR step
// without transposing it into a conventionally lower-triangular form.
func qrFactor(A *mat.Dense) *mat.Dense {
	D, _ := A.Dims()

	var qr mat.QR
	qr.Factorize(mat.DenseCopyOf(A.T()))

	var R mat.Dense
	qr.RTo(&R)

	F := mat.DenseCopyOf(R.Slice(0, D, 0, D))
	for i := 0; i < D; i++ {
		if F.At(i, i) < 0 {
			for c := i; c < D; c++ {
				F.Set(i, c, -F.At(i, c))
			}
		}
	}
	return F
}

// CholUpdate applies a signed rank-1 Cholesky update (sign>0) or downdate
// (sign<0) to the upper-triangular factor L, once per column of X, per
// §4.4's chol_update pseudocode. A negative radicand is clamped to zero and
// reported via the boolean return rather than failing outright: the
// correction is still usable, just no longer guaranteed positive definite,
// which the callers log as a non-fatal warning.
func CholUpdate(L *mat.Dense, X *mat.Dense, sign float64) (*mat.Dense, bool) {
	rows, cols := X.Dims()
	Lc := mat.DenseCopyOf(L)
	nonPosDef := false

	x := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(x, j, X)
		for k := 0; k < rows; k++ {
			rrArg := Lc.At(k, k)*Lc.At(k, k) + sign*x[k]*x[k]
			var rr float64
			if rrArg < 0 {
				nonPosDef = true
			} else {
				rr = math.Sqrt(rrArg)
			}
			c := rr / Lc.At(k, k)
			s := x[k] / Lc.At(k, k)
			Lc.Set(k, k, rr)
			for m := k + 1; m < rows; m++ {
				newLkm := (Lc.At(k, m) + sign*s*x[m]) / c
				x[m] = c*x[m] - s*newLkm
				Lc.Set(k, m, newLkm)
			}
		}
	}
	return Lc, nonPosDef
}

// computeFactor is the shared body of ComputeS and ComputeSy: build the
// weighted-residual matrix A = [ε1|...|ε2N|noiseFactor], QR-factorize it,
// and fold in the zeroth sigma point via a signed Cholesky update.
func computeFactor(proj *mat.Dense, avg *mat.VecDense, noiseFactor *mat.Dense, wc []float64) (*mat.Dense, bool) {
	rows, D := proj.Dims()
	n2 := rows - 1
	Dn, _ := noiseFactor.Dims()

	A := mat.NewDense(D, n2+Dn, nil)
	for i := 1; i <= n2; i++ {
		sign := signOf(wc[i])
		w := math.Sqrt(math.Abs(wc[i]))
		for j := 0; j < D; j++ {
			A.Set(j, i-1, sign*w*(proj.At(i, j)-avg.AtVec(j)))
		}
	}
	for i := 0; i < Dn; i++ {
		for j := 0; j < D; j++ {
			A.Set(j, n2+i, noiseFactor.At(j, i))
		}
	}

	F := qrFactor(A)

	sign0 := signOf(wc[0])
	w0 := math.Sqrt(math.Abs(wc[0]))
	eps0 := mat.NewDense(D, 1, nil)
	for j := 0; j < D; j++ {
		eps0.Set(j, 0, sign0*w0*(proj.At(0, j)-avg.AtVec(j)))
	}

	return CholUpdate(F, eps0, sign0)
}

// ComputeS computes the updated state square-root factor S from the
// projected sigma points, their weighted mean, and the (already correctly
// sized) process-noise factor sqrtQ, per §4.4.
func ComputeS(Xproj *mat.Dense, Xavg *mat.VecDense, sqrtQ *mat.Dense, wc []float64) (*mat.Dense, bool, error) {
	_, D := Xproj.Dims()
	if Xavg.Len() != D {
		return nil, false, fmt.Errorf("%w: Xavg has length %d, want %d", filter.ErrDimensionMismatch, Xavg.Len(), D)
	}
	if r, c := sqrtQ.Dims(); r != D || c != D {
		return nil, false, fmt.Errorf("%w: sqrtQ is %dx%d, want %dx%d", filter.ErrDimensionMismatch, r, c, D, D)
	}
	F, warn := computeFactor(Xproj, Xavg, sqrtQ, wc)
	return F, warn, nil
}

// ComputeSy computes the updated output square-root factor Sy from the
// projected sigma-point outputs, their weighted mean, and the
// measurement-noise factor sqrtR, per §4.4.
func ComputeSy(Zproj *mat.Dense, Zavg *mat.VecDense, sqrtR *mat.Dense, wc []float64) (*mat.Dense, bool, error) {
	_, D := Zproj.Dims()
	if Zavg.Len() != D {
		return nil, false, fmt.Errorf("%w: Zavg has length %d, want %d", filter.ErrDimensionMismatch, Zavg.Len(), D)
	}
	if r, c := sqrtR.Dims(); r != D || c != D {
		return nil, false, fmt.Errorf("%w: sqrtR is %dx%d, want %dx%d", filter.ErrDimensionMismatch, r, c, D, D)
	}
	F, warn := computeFactor(Zproj, Zavg, sqrtR, wc)
	return F, warn, nil
}

// crossCov computes Σᵢ Wc[i]·(A[i]-Aavg)·(B[i]-Bavg)ᵀ, the weighted
// cross-covariance between two sets of sigma-point projections sharing the
// same sigma-point count. Shared by CovXZ and Cxx.
func crossCov(A *mat.Dense, Aavg *mat.VecDense, B *mat.Dense, Bavg *mat.VecDense, wc []float64) *mat.Dense {
	rows, na := A.Dims()
	_, nb := B.Dims()

	out := mat.NewDense(na, nb, nil)
	a := make([]float64, na)
	b := make([]float64, nb)
	term := mat.NewDense(na, nb, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < na; j++ {
			a[j] = A.At(i, j) - Aavg.AtVec(j)
		}
		for j := 0; j < nb; j++ {
			b[j] = B.At(i, j) - Bavg.AtVec(j)
		}
		av := mat.NewVecDense(na, a)
		bv := mat.NewVecDense(nb, b)
		term.Mul(av, bv.T())
		term.Scale(wc[i], term)
		out.Add(out, term)
	}
	return out
}

// CovXZ computes the state-output cross-covariance matrix between the
// projected augmented state and the projected output, used to form the
// Kalman gain in the correction step (§4.5.1).
func CovXZ(Xproj *mat.Dense, Xavg *mat.VecDense, Zproj *mat.Dense, Zavg *mat.VecDense, wc []float64) *mat.Dense {
	return crossCov(Xproj, Xavg, Zproj, Zavg, wc)
}

// Cxx computes the state-state cross-covariance matrix between the
// sigma-point projections at two consecutive time steps, used to form the
// backward gain in the RTS-style smoother (§4.5.3).
func Cxx(Xnext *mat.Dense, XnextAvg *mat.VecDense, Xnow *mat.Dense, XnowAvg *mat.VecDense, wc []float64) *mat.Dense {
	return crossCov(Xnext, XnextAvg, Xnow, XnowAvg, wc)
}

// Solve solves A·X = B for X via a general (least-squares) solve, mirroring
// the original source's use of np.linalg.lstsq for both the Kalman gain and
// the smoother's backward gain rather than exploiting the triangular shape
// of Sy or S.
func Solve(A, B mat.Matrix) (*mat.Dense, error) {
	var X mat.Dense
	if err := X.Solve(A, B); err != nil {
		return nil, fmt.Errorf("%w: %v", filter.ErrSingularMatrix, err)
	}
	return &X, nil
}
