// Package estimate holds the per-step trajectory record produced by the
// filter and smoother: the corrected augmented state, its square-root
// covariance factor, and the predicted measurement and its factor.
package estimate

import "gonum.org/v1/gonum/mat"

// Estimate is one entry of a filter or smoother trajectory buffer (§3).
type Estimate struct {
	// Time is the sampling instant this estimate belongs to.
	Time float64
	// State is the corrected augmented state x̂ (observed states
	// concatenated with parameters).
	State *mat.VecDense
	// Factor is the square-root covariance factor S, Sᵀ·S = P.
	Factor *mat.Dense
	// Output is the predicted measurement mean Ẑ.
	Output *mat.VecDense
	// OutputFactor is the square-root output covariance factor Sy.
	OutputFactor *mat.Dense
}

// New builds an Estimate, cloning every argument so the trajectory buffer
// is insulated from later in-place mutation of the driver's working
// matrices.
func New(t float64, state *mat.VecDense, factor *mat.Dense, output *mat.VecDense, outputFactor *mat.Dense) *Estimate {
	s := mat.NewVecDense(state.Len(), nil)
	s.CopyVec(state)

	f := mat.DenseCopyOf(factor)

	var o *mat.VecDense
	if output != nil {
		o = mat.NewVecDense(output.Len(), nil)
		o.CopyVec(output)
	}

	var of *mat.Dense
	if outputFactor != nil {
		of = mat.DenseCopyOf(outputFactor)
	}

	return &Estimate{
		Time:         t,
		State:        s,
		Factor:       f,
		Output:       o,
		OutputFactor: of,
	}
}

// Clone returns a deep copy, used by the smoother to seed its working
// trajectory from the filtered one without aliasing the filter's buffers.
func (e *Estimate) Clone() *Estimate {
	return New(e.Time, e.State, e.Factor, e.Output, e.OutputFactor)
}


// Trajectory is an ordered collection of Estimates, indexed by step.
type Trajectory []*Estimate

// Times returns the sampling instants of every estimate in order.
func (t Trajectory) Times() []float64 {
	out := make([]float64, len(t))
	for i, e := range t {
		out[i] = e.Time
	}
	return out
}
