package filter

import (
	"errors"
	"fmt"
)

// ErrInvalidUkfParameter is returned when a UKF hyperparameter makes the
// weight table ill-defined: α≤0, (N+κ)≤0, or a model dimension violates
// §7's construction-time checks.
var ErrInvalidUkfParameter = errors.New("invalid ukf parameter")

// ErrDimensionMismatch is returned by the sigma-point generator when the
// supplied mean/factor sizes don't match the declared augmented dimension.
var ErrDimensionMismatch = errors.New("sigma point dimension mismatch")

// ErrNonPositiveDefinite names the non-fatal case in which a Cholesky
// downdate would need rr² < 0. The filter and smoother never return it:
// algebra.CholUpdate clamps the radicand to zero and reports the case
// through its boolean result, and the callers log a warning and continue.
var ErrNonPositiveDefinite = errors.New("non positive definite downdate")

// ErrMissingMeasurement is returned when a step needs a measurement, none
// was supplied by the caller, and the model has none recorded at that time.
var ErrMissingMeasurement = errors.New("missing measurement")

// ErrSingularMatrix is returned when a gain solve (Kalman gain or the
// smoother's backward gain) fails because its coefficient matrix is
// singular or ill-conditioned beyond gonum's tolerance.
var ErrSingularMatrix = errors.New("singular matrix in gain solve")

// SimulationFailureError reports that sigma point Index failed inside the
// SimulatorPool during a batch; the whole step is aborted and the
// trajectory buffers are not appended to.
type SimulationFailureError struct {
	Index int
	Err   error
}

func (e *SimulationFailureError) Error() string {
	return fmt.Sprintf("simulation failed for sigma point %d: %v", e.Index, e.Err)
}

func (e *SimulationFailureError) Unwrap() error {
	return e.Err
}
