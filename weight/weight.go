// Package weight implements the UKF weight table (C1): the hyperparameters
// α, β, κ, λ, √c and the derived mean/covariance sigma-point weights Wm, Wc.
//
// Grounded on github.com/milosgajdos/go-estimate's kalman/ukf.New, which
// computes these same quantities inline (lambda, gamma, Wm0, Wc0, W) at
// filter construction; here they are pulled out into their own table so
// both the filter driver and the smoother share one implementation.
package weight

import (
	"fmt"
	"math"

	filter "github.com/gokalman/sqrtukf"
	"gonum.org/v1/gonum/floats"
)

// Params are the unitless UKF tuning parameters (§4.1).
type Params struct {
	Alpha float64
	Beta  float64
	Kappa float64
}

// DefaultParams returns the default preset for a sigma-point
// dimension of n: α=1/√3, β=2, κ=3−n, matching the original source's
// `setUKFparams` with no kappa override.
func DefaultParams(n int) Params {
	return Params{
		Alpha: 1.0 / math.Sqrt(3.0),
		Beta:  2.0,
		Kappa: 3.0 - float64(n),
	}
}

// LiteratureParams returns the original source's `setDefaultUKFparams`
// preset (α=0.01, β=2, κ=1), the textbook small-alpha choice that drives
// Wc[0] negative for most N — useful for exercising the signed Cholesky
// downdate path.
func LiteratureParams() Params {
	return Params{Alpha: 0.01, Beta: 2, Kappa: 1}
}

// Table holds the sigma-point dimension N (fixed at construction: N=nₒ+n_p in
// non-augmented mode, N=2(nₒ+n_p)+n_y in augmented mode) and the weights
// derived from the current Params.
type Table struct {
	n      int
	params Params

	lambda float64
	sqrtC  float64

	wm []float64
	wc []float64
}

// New creates a weight table for sigma-point dimension n and returns it.
// It returns ErrInvalidUkfParameter if p yields α≤0 or (n+κ)≤0.
func New(n int, p Params) (*Table, error) {
	t := &Table{n: n}
	if err := t.SetParams(p); err != nil {
		return nil, err
	}
	return t, nil
}

// SetParams recomputes λ, √c, Wm and Wc atomically from p.
func (t *Table) SetParams(p Params) error {
	if p.Alpha <= 0 {
		return fmt.Errorf("%w: alpha must be positive, got %g", filter.ErrInvalidUkfParameter, p.Alpha)
	}

	n := float64(t.n)
	if n+p.Kappa <= 0 {
		return fmt.Errorf("%w: N+kappa must be positive, got %g", filter.ErrInvalidUkfParameter, n+p.Kappa)
	}

	lambda := p.Alpha*p.Alpha*(n+p.Kappa) - n
	if n+lambda <= 0 {
		return fmt.Errorf("%w: N+lambda must be positive, got %g", filter.ErrInvalidUkfParameter, n+lambda)
	}

	sqrtC := p.Alpha * math.Sqrt(n+p.Kappa)

	wm0 := lambda / (n + lambda)
	wc0 := wm0 + (1 - p.Alpha*p.Alpha + p.Beta)
	w := 1 / (2 * (n + lambda))

	wm := make([]float64, 1+2*t.n)
	wc := make([]float64, 1+2*t.n)
	wm[0], wc[0] = wm0, wc0
	for i := 1; i < len(wm); i++ {
		wm[i], wc[i] = w, w
	}

	t.params = p
	t.lambda = lambda
	t.sqrtC = sqrtC
	t.wm = wm
	t.wc = wc

	return nil
}

// N returns the sigma-point dimension this table was built for.
func (t *Table) N() int { return t.n }

// Params returns the current hyperparameters.
func (t *Table) Params() Params { return t.params }

// Lambda returns λ = α²(N+κ) − N.
func (t *Table) Lambda() float64 { return t.lambda }

// SqrtC returns √c = α·√(N+κ), the sigma-point spread scaling factor.
func (t *Table) SqrtC() float64 { return t.sqrtC }

// Weights returns the mean and covariance weight vectors Wm, Wc, each of
// length 1+2N. Wc[0] may be negative; callers must carry its sign.
func (t *Table) Weights() (wm, wc []float64) {
	m := make([]float64, len(t.wm))
	c := make([]float64, len(t.wc))
	copy(m, t.wm)
	copy(c, t.wc)
	return m, c
}

// SumWm returns Σ Wm[i], which must equal 1 up to roundoff for any valid
// parameter set (§8, invariant 1).
func (t *Table) SumWm() float64 {
	return floats.Sum(t.wm)
}
