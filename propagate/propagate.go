// Package propagate implements the sigma-point propagation stage (C3):
// turning a sigma-point matrix into a batch of filter.Task values, handing
// them to a filter.SimulatorPool, and reassembling the per-task results
// back into the augmented-state, output and full-state projection matrices
// the moment/factor algebra consumes.
//
// Grounded on original_source/UKFpython/src/ukf/ukfFMU.py's
// sigmaPointProj, which builds the same three projection matrices from one
// pool.Run call. Reassembly relies on the filter.SimulatorPool contract:
// row i of every projection is taken from result i, so results must come
// back index-aligned with the submitted tasks.
package propagate

import (
	"fmt"

	filter "github.com/gokalman/sqrtukf"
	"gonum.org/v1/gonum/mat"
)

// Propagator evaluates sigma points through a fixed model partition
// (observed-state and parameter counts) using a pool.
type Propagator struct {
	pool   filter.SimulatorPool
	nObs   int
	nPars  int
	nOut   int
	nState int
}

// New creates a Propagator. nState is the full internal state length
// reported by the model, used to size the full-state projection matrix.
func New(pool filter.SimulatorPool, nObs, nPars, nOut, nState int) *Propagator {
	return &Propagator{pool: pool, nObs: nObs, nPars: nPars, nOut: nOut, nState: nState}
}

// Projection holds the three projection matrices produced by one
// propagation batch, each row-aligned with the sigma points that produced
// it: the augmented state (observed state concatenated with parameters),
// the measured outputs, and the model's full internal state.
type Projection struct {
	X     *mat.Dense
	Z     *mat.Dense
	Xfull *mat.Dense
}

// Run splits each row of Xs into an observed-state/parameter Task, submits
// the batch to the pool for the window [start, stop], and reassembles the
// results into a Projection. A non-nil per-task error is wrapped in
// filter.SimulationFailureError and fails the whole batch, mirroring §7's
// all-or-nothing SimulationFailure handling.
func (p *Propagator) Run(Xs *mat.Dense, start, stop float64) (Projection, error) {
	rows, _ := Xs.Dims()

	tasks := make([]filter.Task, rows)
	for i := 0; i < rows; i++ {
		state := make([]float64, p.nObs)
		pars := make([]float64, p.nPars)
		for j := 0; j < p.nObs; j++ {
			state[j] = Xs.At(i, j)
		}
		for j := 0; j < p.nPars; j++ {
			pars[j] = Xs.At(i, p.nObs+j)
		}
		tasks[i] = filter.Task{State: state, Parameters: pars}
	}

	results, err := p.pool.Run(tasks, start, stop)
	if err != nil {
		return Projection{}, fmt.Errorf("sigma point pool run: %w", err)
	}
	if len(results) != rows {
		return Projection{}, fmt.Errorf("sigma point pool returned %d results, want %d", len(results), rows)
	}

	X := mat.NewDense(rows, p.nObs+p.nPars, nil)
	Z := mat.NewDense(rows, p.nOut, nil)
	Xfull := mat.NewDense(rows, p.nState, nil)

	for i, r := range results {
		if r.Err != nil {
			return Projection{}, &filter.SimulationFailureError{Index: i, Err: r.Err}
		}
		if len(r.ObservedState) != p.nObs || len(r.Parameters) != p.nPars {
			return Projection{}, fmt.Errorf("sigma point %d: result state/parameter length mismatch", i)
		}
		for j := 0; j < p.nObs; j++ {
			X.Set(i, j, r.ObservedState[j])
		}
		for j := 0; j < p.nPars; j++ {
			X.Set(i, p.nObs+j, r.Parameters[j])
		}
		for j := 0; j < p.nOut; j++ {
			Z.Set(i, j, r.Outputs[j])
		}
		for j := 0; j < p.nState; j++ {
			Xfull.Set(i, j, r.FullState[j])
		}
	}

	return Projection{X: X, Z: Z, Xfull: Xfull}, nil
}
