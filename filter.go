// Package filter declares the external-collaborator contracts consumed by
// the square-root UKF (kalman/ukf) and its RTS smoother (smooth/rts): the
// black-box simulator Model and the parallel SimulatorPool that evaluates
// sigma points across a time step.
package filter

import "gonum.org/v1/gonum/mat"

// Model is the black-box dynamical system simulator the filter estimates
// joint state and parameters for. The filter never integrates time itself;
// it delegates all state advancement to the model through the pool it owns.
type Model interface {
	// NumStates returns the length of the full internal state vector.
	NumStates() int
	// NumObservedStates returns the length of the observed slice of the
	// full state, i.e. the portion the filter tracks.
	NumObservedStates() int
	// NumParameters returns the number of parameters being estimated.
	NumParameters() int
	// NumMeasuredOutputs returns the length of the measured output vector.
	NumMeasuredOutputs() int

	// StateObservedValues returns the current observed-state slice.
	StateObservedValues() []float64
	// ParameterValues returns the current parameter slice.
	ParameterValues() []float64

	// CovStateParsFactor returns the initial square-root covariance factor
	// √P0 over the augmented state (observed state concatenated with
	// parameters). The filter reads it as an upper-triangular S with
	// Sᵀ·S = P0, the convention it keeps for every state factor; a
	// lower-triangular L with L·Lᵀ = P0 is not transposed.
	CovStateParsFactor() *mat.Dense
	// CovOutputsFactor returns the square-root measurement-noise factor √R
	// (lower-triangular), considered constant during a pass.
	CovOutputsFactor() *mat.Dense

	// MeasuredOutputSeries returns the measurement time series: first
	// column is time, remaining columns are measured outputs.
	MeasuredOutputSeries() *mat.Dense
	// MeasuredOutputsAt returns the measured outputs recorded at time t,
	// or an empty vector if none were recorded at that time.
	MeasuredOutputsAt(t float64) *mat.VecDense

	// SetState writes the full internal simulator state back into the
	// model, used to keep hidden dynamics consistent between sigma-point
	// batches.
	SetState(full *mat.VecDense) error
	// SetObservedState writes the corrected observed-state slice back into
	// the model.
	SetObservedState(obs *mat.VecDense) error
	// SetParameters writes the corrected parameter slice back into the
	// model.
	SetParameters(pars *mat.VecDense) error

	// OutputMap evaluates the output of a sigma point at time t given
	// control input u, without running a full simulation step. flag lets
	// a model distinguish calls made for re-projection from calls made for
	// propagation, mirroring the non-pool output pathway of the source.
	OutputMap(sigmaPoint *mat.VecDense, u mat.Vector, t float64, flag int) (*mat.VecDense, error)
}

// ProcessNoise is the model's process-noise collaborator, supplying the
// constant square-root factor √Q used by the sigma-point generator and the
// moment/factor algebra.
type ProcessNoise interface {
	// Factor returns the lower-triangular square-root factor √Q.
	Factor() *mat.Dense
	// Cov returns Q = Factor()·Factor()ᵀ.
	Cov() mat.Symmetric
}

// Task is one sigma-point evaluation request submitted to a SimulatorPool.
type Task struct {
	// State is the observed-state slice of the sigma point.
	State []float64
	// Parameters is the parameter slice of the sigma point.
	Parameters []float64
}

// Result is the outcome of evaluating one Task at the pool's stop time.
type Result struct {
	// FullState is the simulator's complete internal state at stop.
	FullState []float64
	// ObservedState is the observed-state slice at stop.
	ObservedState []float64
	// Parameters is the (possibly unchanged) parameter slice at stop.
	Parameters []float64
	// Outputs is the measured-output vector at stop.
	Outputs []float64
	// Err is non-nil if this individual task failed; a non-nil Err is
	// fatal for the whole batch (§7, SimulationFailure).
	Err error
}

// SimulatorPool runs a batch of sigma-point evaluations in parallel and
// returns results in the same order as the submitted tasks, regardless of
// completion order.
type SimulatorPool interface {
	// Run advances every task from start to stop and returns one Result
	// per task, index-aligned with tasks.
	Run(tasks []Task, start, stop float64) ([]Result, error)
}

// Measurement is the explicit sum type replacing the source's
// `z == None` convention (§9): either the caller supplies the measurement
// for this step, or the driver must fetch it from the model.
type Measurement struct {
	provided bool
	value    *mat.VecDense
}

// Provided wraps a caller-supplied measurement vector.
func Provided(z *mat.VecDense) Measurement {
	return Measurement{provided: true, value: z}
}

// FetchFromModel is the zero value: the driver must call
// Model.MeasuredOutputsAt for this step.
var FetchFromModel = Measurement{}

// Value returns the wrapped measurement and whether one was provided.
func (m Measurement) Value() (*mat.VecDense, bool) {
	return m.value, m.provided
}
