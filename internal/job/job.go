// Package job provides cancellable units of work and a runner that executes
// them in the background with cooperative cancellation.
package job

import (
	"github.com/getodk/briefcase-sub006/internal/domain"
)

// Job is a unit of work producing T or failing. It receives the live
// RunnerStatus so it can stop at its own suspension points.
type Job[T any] struct {
	run func(*RunnerStatus) (T, error)
}

// Run wraps fn as a Job.
func Run[T any](fn func(*RunnerStatus) (T, error)) Job[T] {
	return Job[T]{run: fn}
}

// Supply wraps an already computed value.
func Supply[T any](v T) Job[T] {
	return Job[T]{run: func(*RunnerStatus) (T, error) { return v, nil }}
}

// Fail wraps an error.
func Fail[T any](err error) Job[T] {
	return Job[T]{run: func(*RunnerStatus) (T, error) {
		var zero T
		return zero, err
	}}
}

// Then feeds the result of j into next. Cancellation observed between the
// two steps stops the chain with ErrCancelled.
func Then[T, U any](j Job[T], next func(*RunnerStatus, T) (U, error)) Job[U] {
	return Job[U]{run: func(s *RunnerStatus) (U, error) {
		var zero U
		v, err := j.Execute(s)
		if err != nil {
			return zero, err
		}
		if s.IsCancelled() {
			return zero, domain.CancelledError("job.then")
		}
		return next(s, v)
	}}
}

// ThenAccept runs a side effect on the result of j and passes it through.
func ThenAccept[T any](j Job[T], fn func(*RunnerStatus, T) error) Job[T] {
	return Then(j, func(s *RunnerStatus, v T) (T, error) {
		return v, fn(s, v)
	})
}

// Execute runs the job synchronously on the calling goroutine.
func (j Job[T]) Execute(s *RunnerStatus) (T, error) {
	if j.run == nil {
		var zero T
		return zero, nil
	}
	return j.run(s)
}
