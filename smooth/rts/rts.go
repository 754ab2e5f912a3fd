// Package rts implements the backward RTS-style smoother (§4.5.3): a
// single backward pass over an already-filtered trajectory that folds
// future measurements back into past estimates via a state-state
// cross-covariance gain.
//
// Grounded on original_source/UKFpython/src/ukf/ukfFMU.py's smooth, which
// reuses the filter's sigma-point generator, propagator and compute_S
// exactly as the forward pass does; this package takes a *ukf.Filter as
// its collaborator for that reason instead of duplicating the wiring.
package rts

import (
	"fmt"

	"github.com/gokalman/sqrtukf/algebra"
	"github.com/gokalman/sqrtukf/estimate"
	"github.com/gokalman/sqrtukf/kalman/ukf"
	"github.com/gokalman/sqrtukf/matrix"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// Smoother runs the backward pass over a filtered trajectory produced by
// f. It shares f's weight table, sigma-point generator, propagator,
// constraint table and process-noise factor so its sigma-point machinery
// stays bit-for-bit consistent with the forward pass.
type Smoother struct {
	f   *ukf.Filter
	log zerolog.Logger
}

// New creates a Smoother bound to f.
func New(f *ukf.Filter, logger zerolog.Logger) *Smoother {
	return &Smoother{f: f, log: logger}
}

// Smooth runs §4.5.3 over filtered, a trajectory produced by f.Run (or an
// equivalent forward pass using f's collaborators). It returns a new
// trajectory of the same length; the last entry is unchanged, since the
// backward recursion starts at K-2 and never revisits K-1.
func (s *Smoother) Smooth(filtered estimate.Trajectory) (estimate.Trajectory, error) {
	K := len(filtered)
	if K < 2 {
		return nil, fmt.Errorf("filtered trajectory has %d entries, need at least 2", K)
	}

	wm, wc := s.f.Weights().Weights()
	cons := s.f.Constraints()
	sg := s.f.SigmaGenerator()
	prop := s.f.Propagator()
	sqrtQ := s.f.ProcessNoiseFactor()

	smoothed := make(estimate.Trajectory, K)
	for i, e := range filtered {
		smoothed[i] = e.Clone()
	}

	nO := sg.NumObserved()

	for k := K - 2; k >= 0; k-- {
		tk, tk1 := filtered[k].Time, filtered[k+1].Time

		xk, pk := splitState(filtered[k].State, nO)
		XsK, err := sg.Generate(xk, pk, filtered[k].Factor, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("smoother redraw at step %d: %w", k, err)
		}
		s.log.Debug().Float64("t", tk).Str("matrix", fmt.Sprintf("%v", matrix.Format(XsK))).Msg("smoother sigma points")

		proj, err := prop.Run(XsK, tk, tk1)
		if err != nil {
			return nil, fmt.Errorf("smoother propagate at step %d: %w", k, err)
		}
		s.log.Debug().Float64("t", tk).Str("matrix", fmt.Sprintf("%v", matrix.Format(proj.X))).Msg("smoother propagated sigma points")

		Xbar1 := algebra.Avg(wm, proj.X)
		XbarK := algebra.Avg(wm, XsK)
		s.log.Debug().Float64("t", tk).
			Str("mean", fmt.Sprintf("%v", XbarK.RawVector().Data)).
			Str("propagated_mean", fmt.Sprintf("%v", Xbar1.RawVector().Data)).
			Msg("smoother averaged sigma points")

		Snew, warn, err := algebra.ComputeS(proj.X, Xbar1, sqrtQ, wc)
		if err != nil {
			return nil, fmt.Errorf("smoother compute_S at step %d: %w", k, err)
		}
		if warn {
			s.log.Warn().Float64("t", tk).Msg("non positive definite radicand clamped in smoother compute_S")
		}
		s.log.Debug().Float64("t", tk).Str("matrix", fmt.Sprintf("%v", matrix.Format(Snew))).Msg("smoother new squared covariance matrix")

		Cxx := algebra.Cxx(proj.X, Xbar1, XsK, XbarK, wc)
		s.log.Debug().Float64("t", tk).Str("matrix", fmt.Sprintf("%v", matrix.Format(Cxx))).Msg("smoother cross state-state covariance matrix")

		firstDivision, err := algebra.Solve(Snew.T(), Cxx.T())
		if err != nil {
			return nil, fmt.Errorf("smoother backward gain (first solve) at step %d: %w", k, err)
		}
		DT, err := algebra.Solve(Snew, firstDivision)
		if err != nil {
			return nil, fmt.Errorf("smoother backward gain (second solve) at step %d: %w", k, err)
		}
		var D mat.Dense
		D.CloneFrom(DT.T())

		var diff mat.VecDense
		diff.SubVec(smoothed[k+1].State, Xbar1)

		var correction mat.VecDense
		correction.MulVec(&D, &diff)
		s.log.Debug().Float64("t", tk).
			Str("old_state", fmt.Sprintf("%v", filtered[k].State.RawVector().Data)).
			Str("error", fmt.Sprintf("%v", diff.RawVector().Data)).
			Str("correction", fmt.Sprintf("%v", correction.RawVector().Data)).
			Msg("smoother backward correction")

		n0 := len(xk) + len(pk)
		xSmoothK := mat.NewVecDense(n0, nil)
		for i := 0; i < nO; i++ {
			xSmoothK.SetVec(i, filtered[k].State.AtVec(i)+correction.AtVec(i))
		}
		for i := nO; i < n0; i++ {
			xSmoothK.SetVec(i, filtered[k].State.AtVec(i))
		}
		cons.ClampVec(xSmoothK)

		var diffS mat.Dense
		diffS.Sub(smoothed[k+1].Factor, Snew)
		var V mat.Dense
		V.Mul(&D, &diffS)

		Scorr, warn2 := algebra.CholUpdate(filtered[k].Factor, &V, -1)
		if warn2 {
			s.log.Warn().Float64("t", tk).Msg("non positive definite radicand clamped in smoother covariance correction")
		}

		smoothed[k] = estimate.New(tk, xSmoothK, Scorr, filtered[k].Output, filtered[k].OutputFactor)
		s.log.Debug().Float64("t", tk).Str("state", fmt.Sprintf("%v", xSmoothK.RawVector().Data)).Msg("smoother new smoothed state")
	}

	return smoothed, nil
}

func splitState(v *mat.VecDense, nObs int) (x, p []float64) {
	n := v.Len()
	x = make([]float64, nObs)
	p = make([]float64, n-nObs)
	for i := 0; i < nObs; i++ {
		x[i] = v.AtVec(i)
	}
	for i := nObs; i < n; i++ {
		p[i-nObs] = v.AtVec(i)
	}
	return x, p
}

