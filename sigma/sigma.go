// Package sigma implements the UKF sigma-point generator (C2): building the
// (1+2N)×D sigma-point matrix from a partitioned mean and a square-root
// covariance factor, in both non-augmented and augmented (process- and
// measurement-noise-augmented) form, with constraint clipping applied to
// every ± row (row 0, the mean, is left as given).
//
// Grounded on kalman/ukf.GenSigmaPoints in github.com/milosgajdos/go-estimate
// (block-diagonal composite covariance, ± spread around the mean row) and
// on the original source's `computeSigmaPoints`, which this generalizes
// from a single non-augmented call site into an explicit augmented mode.
package sigma

import (
	"fmt"

	filter "github.com/gokalman/sqrtukf"
	"github.com/gokalman/sqrtukf/constraint"
	"github.com/gokalman/sqrtukf/matrix"
	"github.com/gokalman/sqrtukf/weight"
	"gonum.org/v1/gonum/mat"
)

// Generator builds sigma points for a fixed partition of the augmented
// state (nObs observed states, nPars parameters) and, in augmented mode, a
// fixed measurement dimension nY.
type Generator struct {
	nObs, nPars, nY int
	augmented       bool
	constraints     *constraint.Table
	weights         *weight.Table
}

// New creates a Generator. w must have been built for the dimension this
// mode implies: nObs+nPars when augmented is false, 2(nObs+nPars)+nY when
// augmented is true.
func New(nObs, nPars, nY int, augmented bool, constraints *constraint.Table, w *weight.Table) *Generator {
	return &Generator{
		nObs:        nObs,
		nPars:       nPars,
		nY:          nY,
		augmented:   augmented,
		constraints: constraints,
		weights:     w,
	}
}

// NumObserved returns the observed-state count this generator was built
// for, letting callers split an augmented-state vector without threading
// the partition through separately.
func (g *Generator) NumObserved() int { return g.nObs }

// Dim returns the declared sigma-point dimension D for this generator's
// mode.
func (g *Generator) Dim() int {
	n0 := g.nObs + g.nPars
	if !g.augmented {
		return n0
	}
	return 2*n0 + g.nY
}

// Generate builds the (1+2N)×D sigma-point matrix Xs around mean [x|p]
// using square-root factor sqrtP (N0×N0, N0=nObs+nPars). In augmented mode
// sqrtQ (N0×N0) and sqrtR (nY×nY) are required and assembled into a
// block-diagonal composite factor with sqrtP; either may be passed as a
// 0×0 matrix (or nil) when the corresponding noise has zero dimension,
// degenerating augmented mode toward the non-augmented result (§8 boundary
// behavior).
//
// It returns ErrDimensionMismatch (and an empty matrix) if x, p or the
// factor sizes don't match the generator's declared partition.
func (g *Generator) Generate(x, p []float64, sqrtP, sqrtQ, sqrtR *mat.Dense) (*mat.Dense, error) {
	empty := &mat.Dense{}

	n0 := g.nObs + g.nPars
	if len(x) != g.nObs {
		return empty, fmt.Errorf("%w: observed state length %d, want %d", filter.ErrDimensionMismatch, len(x), g.nObs)
	}
	if len(p) != g.nPars {
		return empty, fmt.Errorf("%w: parameter length %d, want %d", filter.ErrDimensionMismatch, len(p), g.nPars)
	}
	if r, c := sqrtP.Dims(); r != n0 || c != n0 {
		return empty, fmt.Errorf("%w: sqrtP is %dx%d, want %dx%d", filter.ErrDimensionMismatch, r, c, n0, n0)
	}

	var effFactor *mat.Dense
	D := n0
	if g.augmented {
		q := zeroIfNil(sqrtQ, n0)
		r := zeroIfNil(sqrtR, g.nY)
		if rr, rc := q.Dims(); rr != n0 || rc != n0 {
			return empty, fmt.Errorf("%w: sqrtQ is %dx%d, want %dx%d", filter.ErrDimensionMismatch, rr, rc, n0, n0)
		}
		if rr, rc := r.Dims(); rr != g.nY || rc != g.nY {
			return empty, fmt.Errorf("%w: sqrtR is %dx%d, want %dx%d", filter.ErrDimensionMismatch, rr, rc, g.nY, g.nY)
		}
		effFactor = matrix.BlockDiag(sqrtP, q, r)
		D = 2*n0 + g.nY
	} else {
		effFactor = sqrtP
	}

	if D != g.weights.N() {
		return empty, fmt.Errorf("%w: sigma point dimension %d does not match weight table N=%d", filter.ErrDimensionMismatch, D, g.weights.N())
	}

	row0 := make([]float64, D)
	copy(row0[:g.nObs], x)
	copy(row0[g.nObs:n0], p)

	Xs := mat.NewDense(1+2*D, D, nil)
	Xs.SetRow(0, row0)

	sqrtC := g.weights.SqrtC()
	fi := make([]float64, D)
	plus := make([]float64, D)
	minus := make([]float64, D)
	for i := 0; i < D; i++ {
		mat.Row(fi, i, effFactor)
		for j := 0; j < D; j++ {
			delta := sqrtC * fi[j]
			plus[j] = row0[j] + delta
			minus[j] = row0[j] - delta
		}
		g.constraints.Clamp(plus)
		g.constraints.Clamp(minus)
		Xs.SetRow(1+i, plus)
		Xs.SetRow(1+D+i, minus)
	}

	return Xs, nil
}

func zeroIfNil(m *mat.Dense, n int) *mat.Dense {
	if m != nil {
		return m
	}
	if n == 0 {
		return &mat.Dense{}
	}
	return mat.NewDense(n, n, nil)
}
