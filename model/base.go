// Package model provides a reference filter.Model implementation: a
// black-box simulator wrapping caller-supplied transition and output
// closures, standing in for the FMU-style simulator the filter was
// originally designed against.
package model

import (
	"fmt"

	filter "github.com/gokalman/sqrtukf"
	"gonum.org/v1/gonum/mat"
)

// TransitionFunc advances the observed-state/parameter pair by dt and
// returns the new observed-state slice; parameters are assumed constant
// between measurements unless the closure itself perturbs them (a
// random-walk parameter, say).
type TransitionFunc func(obs, pars []float64, dt float64) []float64

// OutputFunc computes the measured outputs from the current
// observed-state/parameter pair.
type OutputFunc func(obs, pars []float64) []float64

// Simulation is a filter.Model whose dynamics and observation map are
// supplied as plain functions, matching the black-box contract the filter
// drives sigma points through without ever inspecting their internals.
type Simulation struct {
	transition TransitionFunc
	output     OutputFunc

	nObs, nPars, nOut int

	obs    []float64
	pars   []float64
	sqrtP0 *mat.Dense
	sqrtR  *mat.Dense
	series *mat.Dense
}

// NewSimulation creates a Simulation with nObs observed states and nPars
// parameters, using transition/output as its dynamics and observation
// map, sqrtP0/sqrtR as the initial state-and-parameter and measurement
// square-root covariance factors, and series as the time-stamped
// measurement series (first column time, remaining columns measurements).
func NewSimulation(transition TransitionFunc, output OutputFunc, obs0, pars0 []float64, sqrtP0, sqrtR *mat.Dense, series *mat.Dense) (*Simulation, error) {
	n0 := len(obs0) + len(pars0)
	if r, c := sqrtP0.Dims(); r != n0 || c != n0 {
		return nil, fmt.Errorf("sqrtP0 is %dx%d, want %dx%d", r, c, n0, n0)
	}
	_, cols := series.Dims()
	nOut := cols - 1
	if r, c := sqrtR.Dims(); r != nOut || c != nOut {
		return nil, fmt.Errorf("sqrtR is %dx%d, want %dx%d", r, c, nOut, nOut)
	}

	return &Simulation{
		transition: transition,
		output:     output,
		nObs:       len(obs0),
		nPars:      len(pars0),
		nOut:       nOut,
		obs:        append([]float64{}, obs0...),
		pars:       append([]float64{}, pars0...),
		sqrtP0:     sqrtP0,
		sqrtR:      sqrtR,
		series:     series,
	}, nil
}

func (s *Simulation) NumStates() int          { return s.nObs + s.nPars }
func (s *Simulation) NumObservedStates() int  { return s.nObs }
func (s *Simulation) NumParameters() int      { return s.nPars }
func (s *Simulation) NumMeasuredOutputs() int { return s.nOut }

func (s *Simulation) StateObservedValues() []float64 { return s.obs }
func (s *Simulation) ParameterValues() []float64     { return s.pars }

func (s *Simulation) CovStateParsFactor() *mat.Dense { return s.sqrtP0 }
func (s *Simulation) CovOutputsFactor() *mat.Dense   { return s.sqrtR }

func (s *Simulation) MeasuredOutputSeries() *mat.Dense { return s.series }

func (s *Simulation) MeasuredOutputsAt(t float64) *mat.VecDense {
	rows, cols := s.series.Dims()
	for i := 0; i < rows; i++ {
		if s.series.At(i, 0) == t {
			z := mat.NewVecDense(cols-1, nil)
			for j := 1; j < cols; j++ {
				z.SetVec(j-1, s.series.At(i, j))
			}
			return z
		}
	}
	return &mat.VecDense{}
}

// SetState writes the full internal state back into the simulation. Since
// Simulation's full state is just the observed-state/parameter
// concatenation, this is equivalent to SetObservedState plus SetParameters.
func (s *Simulation) SetState(full *mat.VecDense) error {
	n0 := s.nObs + s.nPars
	if full.Len() != n0 {
		return fmt.Errorf("%w: full state length %d, want %d", filter.ErrDimensionMismatch, full.Len(), n0)
	}
	for i := 0; i < s.nObs; i++ {
		s.obs[i] = full.AtVec(i)
	}
	for i := 0; i < s.nPars; i++ {
		s.pars[i] = full.AtVec(s.nObs + i)
	}
	return nil
}

func (s *Simulation) SetObservedState(obs *mat.VecDense) error {
	if obs.Len() != s.nObs {
		return fmt.Errorf("%w: observed state length %d, want %d", filter.ErrDimensionMismatch, obs.Len(), s.nObs)
	}
	for i := 0; i < s.nObs; i++ {
		s.obs[i] = obs.AtVec(i)
	}
	return nil
}

func (s *Simulation) SetParameters(pars *mat.VecDense) error {
	if pars.Len() != s.nPars {
		return fmt.Errorf("%w: parameter length %d, want %d", filter.ErrDimensionMismatch, pars.Len(), s.nPars)
	}
	for i := 0; i < s.nPars; i++ {
		s.pars[i] = pars.AtVec(i)
	}
	return nil
}

// OutputMap evaluates the output map directly, without advancing the
// simulation; flag is accepted for contract compatibility but unused, since
// this reference implementation has no re-projection-specific branch.
func (s *Simulation) OutputMap(sigmaPoint *mat.VecDense, u mat.Vector, t float64, flag int) (*mat.VecDense, error) {
	n0 := s.nObs + s.nPars
	if sigmaPoint.Len() != n0 {
		return nil, fmt.Errorf("%w: sigma point length %d, want %d", filter.ErrDimensionMismatch, sigmaPoint.Len(), n0)
	}
	obs := make([]float64, s.nObs)
	pars := make([]float64, s.nPars)
	for i := 0; i < s.nObs; i++ {
		obs[i] = sigmaPoint.AtVec(i)
	}
	for i := 0; i < s.nPars; i++ {
		pars[i] = sigmaPoint.AtVec(s.nObs + i)
	}
	out := s.output(obs, pars)
	return mat.NewVecDense(len(out), out), nil
}

// Step advances Simulation from start to stop, used directly as a
// simpool.StepFunc: the observed state follows TransitionFunc, parameters
// are carried through unchanged (the filter, not the simulator, is
// responsible for perturbing them during sigma-point spread), and the
// full state is the observed-state/parameter concatenation.
func (s *Simulation) Step(obs, pars []float64, start, stop float64) filter.Result {
	next := s.transition(obs, pars, stop-start)
	out := s.output(next, pars)

	full := make([]float64, len(next)+len(pars))
	copy(full, next)
	copy(full[len(next):], pars)

	return filter.Result{
		FullState:     full,
		ObservedState: next,
		Parameters:    append([]float64{}, pars...),
		Outputs:       out,
	}
}
