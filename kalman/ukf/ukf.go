// Package ukf implements the square-root UKF filter/smoother driver (C5):
// one predict-redraw-correct step (Step), the full forward pass (Run), and
// the construction-time wiring of the weight table, sigma-point generator,
// propagator and constraint table each step reuses.
//
// Grounded on github.com/milosgajdos/go-estimate's kalman/ukf.UKF (Config,
// New, Predict/Update/Run shape) and on
// original_source/UKFpython/src/ukf/ukfFMU.py's ukf_step/filter, which
// this follows step for step, including its one documented quirk: the
// cross-covariance CovXZ at step 7 pairs the *redrawn* projection with the
// *original* (pre-redraw) state average, not a fresh one, exactly as the
// source computes it.
package ukf

import (
	"fmt"

	filter "github.com/gokalman/sqrtukf"
	"github.com/gokalman/sqrtukf/algebra"
	"github.com/gokalman/sqrtukf/constraint"
	"github.com/gokalman/sqrtukf/estimate"
	"github.com/gokalman/sqrtukf/matrix"
	"github.com/gokalman/sqrtukf/propagate"
	"github.com/gokalman/sqrtukf/sigma"
	"github.com/gokalman/sqrtukf/weight"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// reprojectionWindow is the zero-width [t, t+ε] interval used for the
// post-redraw output reprojection at step 6 of §4.5.1; the original source
// retains this two-phase design because a pure output map is not assumed
// to exist independently of a propagation call.
const reprojectionWindow = 1e-8

// Config configures a Filter. WeightParams is nil to use
// weight.DefaultParams(N). Augmented selects the process/measurement-noise
// augmented sigma-point variant (§4.2) for every sigma-point draw inside
// Step; the default (false) matches the source's ordinary, non-augmented
// ukf_step, with √Q/√R entering only through compute_S/compute_Sy.
type Config struct {
	WeightParams *weight.Params
	Augmented    bool
	Logger       zerolog.Logger
}

// Filter is the square-root UKF filter/smoother driver.
type Filter struct {
	model filter.Model
	prop  *propagate.Propagator
	cons  *constraint.Table
	w     *weight.Table
	sg    *sigma.Generator

	nObs, nPars, nOut, n0 int
	augmented             bool

	sqrtQ *mat.Dense
	sqrtR *mat.Dense

	log zerolog.Logger
}

// New builds a Filter for model, evaluating sigma points through pool, with
// process-noise factor from noise and constraints from cons (built and
// configured by the caller before construction, per §3's "set once at
// configuration time" lifecycle). It returns ErrInvalidUkfParameter if the
// model's dimensions or cfg.WeightParams make the weight table ill-defined.
func New(model filter.Model, pool filter.SimulatorPool, noise filter.ProcessNoise, cons *constraint.Table, cfg Config) (*Filter, error) {
	nObs := model.NumObservedStates()
	nPars := model.NumParameters()
	nOut := model.NumMeasuredOutputs()
	n0 := nObs + nPars

	if nObs <= 0 {
		return nil, fmt.Errorf("%w: model has no observed states", filter.ErrInvalidUkfParameter)
	}
	if nPars < 0 || nOut < 0 {
		return nil, fmt.Errorf("%w: negative parameter or output count", filter.ErrInvalidUkfParameter)
	}

	N := n0
	if cfg.Augmented {
		N = 2*n0 + nOut
	}

	params := weight.DefaultParams(N)
	if cfg.WeightParams != nil {
		params = *cfg.WeightParams
	}
	w, err := weight.New(N, params)
	if err != nil {
		return nil, err
	}

	sg := sigma.New(nObs, nPars, nOut, cfg.Augmented, cons, w)
	prop := propagate.New(pool, nObs, nPars, nOut, model.NumStates())

	sqrtQ := padFactor(noise.Factor(), n0)
	sqrtR := mat.DenseCopyOf(model.CovOutputsFactor())

	return &Filter{
		model:     model,
		prop:      prop,
		cons:      cons,
		w:         w,
		sg:        sg,
		nObs:      nObs,
		nPars:     nPars,
		nOut:      nOut,
		n0:        n0,
		augmented: cfg.Augmented,
		sqrtQ:     sqrtQ,
		sqrtR:     sqrtR,
		log:       cfg.Logger,
	}, nil
}

// padFactor embeds q (assumed square) at the top-left of an n×n zero
// matrix, giving the process-noise factor supplied for observed states
// alone a zero-contribution block over the parameter dimensions (which
// carry no process noise). Returns q unchanged when it is already n×n.
func padFactor(q *mat.Dense, n int) *mat.Dense {
	r, c := q.Dims()
	if r == n && c == n {
		return mat.DenseCopyOf(q)
	}
	out := mat.NewDense(n, n, nil)
	out.Slice(0, r, 0, c).(*mat.Dense).Copy(q)
	return out
}

func splitAugmented(v *mat.VecDense, nObs int) (x, p []float64) {
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

func sliceToVec(s []float64) *mat.VecDense {
	return mat.NewVecDense(len(s), s)
}

// augmentedFactors selects the factors Generate's sqrtQ/sqrtR arguments
// should carry in augmented mode.
func (f *Filter) augmentedFactors() (sqrtQ, sqrtR *mat.Dense) {
	return f.sqrtQ, f.sqrtR
}

// Step runs one ukf_step (§4.5.1): predict by propagating sigma points
// drawn around xPrev with factor sPrev from tOld to t, redraw around the
// predicted mean, reproject outputs, and correct against z. z.FetchFromModel
// defers to model.MeasuredOutputsAt(t) when the caller has no measurement
// in hand.
func (f *Filter) Step(xPrev *mat.VecDense, sPrev *mat.Dense, tOld, t float64, z filter.Measurement) (*estimate.Estimate, error) {
	wm, wc := f.w.Weights()

	x, p := splitAugmented(xPrev, f.nObs)

	var sqrtQ, sqrtR *mat.Dense
	if f.augmented {
		sqrtQ, sqrtR = f.augmentedFactors()
	}

	Xs, err := f.sg.Generate(x, p, sPrev, sqrtQ, sqrtR)
	if err != nil {
		return nil, fmt.Errorf("generate sigma points: %w", err)
	}
	f.log.Debug().Float64("t", t).Str("matrix", fmt.Sprintf("%v", matrix.Format(Xs))).Msg("sigma points")

	proj, err := f.prop.Run(Xs, tOld, t)
	if err != nil {
		return nil, fmt.Errorf("propagate sigma points: %w", err)
	}
	f.log.Debug().Float64("t", t).Str("matrix", fmt.Sprintf("%v", matrix.Format(proj.X))).Msg("projected sigma points")

	Xavg := algebra.Avg(wm, proj.X)
	XfullAvg := algebra.Avg(wm, proj.Xfull)
	f.log.Debug().Float64("t", t).Str("vector", fmt.Sprintf("%v", Xavg.RawVector().Data)).Msg("averaged projected sigma points")

	Snew, warn, err := algebra.ComputeS(proj.X, Xavg, f.sqrtQ, wc)
	if err != nil {
		return nil, fmt.Errorf("compute S: %w", err)
	}
	if warn {
		f.log.Warn().Float64("t", t).Msg("non positive definite radicand clamped in compute_S")
	}
	f.log.Debug().Float64("t", t).Str("matrix", fmt.Sprintf("%v", matrix.Format(Snew))).Msg("new squared S matrix")

	xNew, pNew := splitAugmented(Xavg, f.nObs)
	Xs2, err := f.sg.Generate(xNew, pNew, Snew, sqrtQ, sqrtR)
	if err != nil {
		return nil, fmt.Errorf("redraw sigma points: %w", err)
	}
	f.log.Debug().Float64("t", t).Str("matrix", fmt.Sprintf("%v", matrix.Format(Xs2))).Msg("new sigma points")

	if err := f.model.SetState(XfullAvg); err != nil {
		return nil, fmt.Errorf("write back full state: %w", err)
	}

	proj2, err := f.prop.Run(Xs2, t, t+reprojectionWindow)
	if err != nil {
		return nil, fmt.Errorf("reproject outputs: %w", err)
	}
	f.log.Debug().Float64("t", t).Str("matrix", fmt.Sprintf("%v", matrix.Format(proj2.Z))).Msg("output projection of new sigma points")

	Zavg := algebra.Avg(wm, proj2.Z)
	f.log.Debug().Float64("t", t).Str("vector", fmt.Sprintf("%v", Zavg.RawVector().Data)).Msg("averaged output projection")

	Sy, warn, err := algebra.ComputeSy(proj2.Z, Zavg, f.sqrtR, wc)
	if err != nil {
		return nil, fmt.Errorf("compute Sy: %w", err)
	}
	if warn {
		f.log.Warn().Float64("t", t).Msg("non positive definite radicand clamped in compute_Sy")
	}
	f.log.Debug().Float64("t", t).Str("matrix", fmt.Sprintf("%v", matrix.Format(Sy))).Msg("output squared covariance matrix")

	// §9: CovXZ pairs the redrawn state projection with the original,
	// pre-redraw state average, matching the source exactly.
	covXZ := algebra.CovXZ(proj2.X, Xavg, proj2.Z, Zavg, wc)
	f.log.Debug().Float64("t", t).Str("matrix", fmt.Sprintf("%v", matrix.Format(covXZ))).Msg("state output covariance matrix")

	firstDivision, err := algebra.Solve(Sy.T(), covXZ.T())
	if err != nil {
		return nil, fmt.Errorf("kalman gain (first solve): %w", err)
	}
	KT, err := algebra.Solve(Sy, firstDivision)
	if err != nil {
		return nil, fmt.Errorf("kalman gain (second solve): %w", err)
	}
	var K mat.Dense
	K.CloneFrom(KT.T())

	zVec, hasZ := z.Value()
	if !hasZ {
		zVec = f.model.MeasuredOutputsAt(t)
		if zVec == nil || zVec.Len() == 0 {
			return nil, fmt.Errorf("%w: at t=%g", filter.ErrMissingMeasurement, t)
		}
	}

	f.log.Debug().Float64("t", t).Str("vector", fmt.Sprintf("%v", zVec.RawVector().Data)).Msg("measured output data to be compared against simulation")

	var innovation mat.VecDense
	innovation.SubVec(zVec, Zavg)

	var correction mat.VecDense
	correction.MulVec(&K, &innovation)

	xHat := mat.NewVecDense(f.n0, nil)
	xHat.AddVec(Xavg, &correction)
	f.cons.ClampVec(xHat)

	var U mat.Dense
	U.Mul(&K, Sy)
	Scorr, warn := algebra.CholUpdate(Snew, &U, -1)
	if warn {
		f.log.Warn().Float64("t", t).Msg("non positive definite radicand clamped in covariance correction")
	}

	obsCorr, parCorr := splitAugmented(xHat, f.nObs)
	if err := f.model.SetObservedState(sliceToVec(obsCorr)); err != nil {
		return nil, fmt.Errorf("write back observed state: %w", err)
	}
	if err := f.model.SetParameters(sliceToVec(parCorr)); err != nil {
		return nil, fmt.Errorf("write back parameters: %w", err)
	}

	f.log.Debug().Float64("t", t).Str("vector", fmt.Sprintf("%v", xHat.RawVector().Data)).Msg("new state corrected")

	return estimate.New(t, xHat, Scorr, Zavg, Sy), nil
}

// Run performs the full forward pass (§4.5.2): read the model's output
// series, seed the trajectory with the initial condition, and call Step
// for every consecutive pair of timestamps in the series.
func (f *Filter) Run() (estimate.Trajectory, error) {
	series := f.model.MeasuredOutputSeries()
	rows, cols := series.Dims()
	if rows < 2 {
		return nil, fmt.Errorf("measured output series has %d rows, need at least 2", rows)
	}

	x0 := make([]float64, f.n0)
	copy(x0[:f.nObs], f.model.StateObservedValues())
	copy(x0[f.nObs:], f.model.ParameterValues())
	xHat := mat.NewVecDense(f.n0, x0)
	S := mat.DenseCopyOf(f.model.CovStateParsFactor())

	traj := make(estimate.Trajectory, 1, rows)
	traj[0] = estimate.New(series.At(0, 0), xHat, S, nil, nil)

	for i := 1; i < rows; i++ {
		tOld := series.At(i-1, 0)
		t := series.At(i, 0)

		z := mat.NewVecDense(cols-1, nil)
		for j := 1; j < cols; j++ {
			z.SetVec(j-1, series.At(i, j))
		}

		prev := traj[i-1]
		est, err := f.Step(prev.State, prev.Factor, tOld, t, filter.Provided(z))
		if err != nil {
			return nil, fmt.Errorf("step %d (t=%g): %w", i, t, err)
		}
		f.log.Debug().Int("step", i).Float64("t", t).
			Str("state", fmt.Sprintf("%v", est.State.RawVector().Data)).
			Str("output", fmt.Sprintf("%v", est.Output.RawVector().Data)).
			Msg("corrected state and output")
		traj = append(traj, est)
	}

	return traj, nil
}

// Weights exposes the driver's weight table, used by the smoother to stay
// consistent with the filter's hyperparameters.
func (f *Filter) Weights() *weight.Table { return f.w }

// Constraints exposes the driver's constraint table.
func (f *Filter) Constraints() *constraint.Table { return f.cons }

// Propagator exposes the driver's propagator, used by the smoother to
// reuse the same pool wiring for its backward sigma-point propagation.
func (f *Filter) Propagator() *propagate.Propagator { return f.prop }

// SigmaGenerator exposes the driver's sigma-point generator.
func (f *Filter) SigmaGenerator() *sigma.Generator { return f.sg }

// ProcessNoiseFactor exposes the padded √Q used internally, for the
// smoother's compute_S calls.
func (f *Filter) ProcessNoiseFactor() *mat.Dense { return f.sqrtQ }
