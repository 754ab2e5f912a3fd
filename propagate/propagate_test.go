package propagate

import (
	"errors"
	"testing"

	filter "github.com/gokalman/sqrtukf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// recordingPool echoes each task's state/parameters back as the result,
// scaled by a constant, and records the start/stop window and task order it
// was called with.
type recordingPool struct {
	scale     float64
	gotStart  float64
	gotStop   float64
	gotTasks  []filter.Task
	failIndex int
	failErr   error
}

func (p *recordingPool) Run(tasks []filter.Task, start, stop float64) ([]filter.Result, error) {
	p.gotStart, p.gotStop, p.gotTasks = start, stop, tasks

	results := make([]filter.Result, len(tasks))
	for i, task := range tasks {
		if p.failErr != nil && i == p.failIndex {
			results[i] = filter.Result{Err: p.failErr}
			continue
		}
		state := make([]float64, len(task.State))
		for j, v := range task.State {
			state[j] = v * p.scale
		}
		pars := make([]float64, len(task.Parameters))
		copy(pars, task.Parameters)

		full := append(append([]float64{}, state...), pars...)
		results[i] = filter.Result{
			FullState:     full,
			ObservedState: state,
			Parameters:    pars,
			Outputs:       []float64{state[0]},
		}
	}
	return results, nil
}

func TestRunReassemblesProjectionIndexAligned(t *testing.T) {
	pool := &recordingPool{scale: 2.0, failIndex: -1}
	p := New(pool, 2, 1, 1, 3)

	Xs := mat.NewDense(2, 3, []float64{
		1, 2, 0.5,
		10, 20, 5,
	})

	proj, err := p.Run(Xs, 0.0, 1.0)
	require.NoError(t, err)

	assert.Equal(t, 0.0, pool.gotStart)
	assert.Equal(t, 1.0, pool.gotStop)
	require.Len(t, pool.gotTasks, 2)
	assert.Equal(t, []float64{1, 2}, pool.gotTasks[0].State)
	assert.Equal(t, []float64{0.5}, pool.gotTasks[0].Parameters)

	assert.Equal(t, 2.0, proj.X.At(0, 0))
	assert.Equal(t, 4.0, proj.X.At(0, 1))
	assert.Equal(t, 0.5, proj.X.At(0, 2))
	assert.Equal(t, 20.0, proj.X.At(1, 0))
	assert.Equal(t, 40.0, proj.X.At(1, 1))
	assert.Equal(t, 20.0, proj.Z.At(1, 0))

	rows, cols := proj.Xfull.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 3, cols)
}

func TestRunWrapsPerTaskFailure(t *testing.T) {
	wantErr := errors.New("boom")
	pool := &recordingPool{scale: 1.0, failIndex: 1, failErr: wantErr}
	p := New(pool, 1, 0, 1, 1)

	Xs := mat.NewDense(2, 1, []float64{1, 2})

	_, err := p.Run(Xs, 0.0, 1.0)
	require.Error(t, err)

	var simErr *filter.SimulationFailureError
	require.True(t, errors.As(err, &simErr))
	assert.Equal(t, 1, simErr.Index)
	assert.True(t, errors.Is(err, wantErr))
}
