// Package simpool provides a concrete filter.SimulatorPool: a fixed
// goroutine pool that evaluates each sigma-point task against a
// caller-supplied StepFunc and writes its result directly into an
// index-aligned slot, so results never need reordering after the batch
// completes.
//
// Grounded on the worker-pool shape in
// itohio-EasyRobot/x/math/primitive/generics/helpers/worker_pool.go
// (bounded goroutines draining a job channel, a WaitGroup barrier before
// returning); simplified to per-task granularity since each sigma point is
// already an independent unit of work and StepFunc is expected to be pure,
// so no cross-task synchronization beyond the index-aligned slice write is
// needed for §8's pool-size-1-vs-4 bit-for-bit reproducibility property.
package simpool

import (
	"runtime"
	"sync"

	filter "github.com/gokalman/sqrtukf"
)

// StepFunc advances one sigma point's observed-state/parameter pair from
// start to stop and reports the full result, including any per-task
// failure via Result.Err. Implementations must be safe to call
// concurrently from multiple goroutines and must not share mutable state
// between calls, or §8's parallel-reproducibility property no longer
// holds.
type StepFunc func(state, parameters []float64, start, stop float64) filter.Result

// Pool is a filter.SimulatorPool backed by a fixed number of worker
// goroutines.
type Pool struct {
	workers int
	step    StepFunc
}

// New creates a Pool with the given worker count and step function. A
// workers value <= 0 defaults to runtime.GOMAXPROCS(0).
func New(workers int, step StepFunc) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
		if workers <= 0 {
			workers = 1
		}
	}
	return &Pool{workers: workers, step: step}
}

// Run implements filter.SimulatorPool. It dispatches len(tasks)
// evaluations across the pool's workers and returns one Result per task,
// index-aligned with tasks regardless of completion order.
func (p *Pool) Run(tasks []filter.Task, start, stop float64) ([]filter.Result, error) {
	n := len(tasks)
	results := make([]filter.Result, n)
	if n == 0 {
		return results, nil
	}

	workers := p.workers
	if workers > n {
		workers = n
	}

	jobs := make(chan int, n)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = p.step(tasks[i].State, tasks[i].Parameters, start, stop)
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results, nil
}
