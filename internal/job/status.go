package job

import (
	"context"
	"sync/atomic"
)

// RunnerStatus is the cancellation flag shared by a runner and the jobs it
// launched. Jobs poll IsCancelled at their suspension points; nothing is
// ever interrupted from the outside.
type RunnerStatus struct {
	cancelled atomic.Bool
	ctx       context.Context
}

// NewRunnerStatus returns a status bound to ctx. A done ctx reads as
// cancelled. ctx is also what jobs hand to network calls.
func NewRunnerStatus(ctx context.Context) *RunnerStatus {
	if ctx == nil {
		ctx = context.Background()
	}
	return &RunnerStatus{ctx: ctx}
}

// Cancel requests a cooperative stop. It is safe to call more than once.
func (s *RunnerStatus) Cancel() {
	s.cancelled.Store(true)
}

func (s *RunnerStatus) IsCancelled() bool {
	if s.cancelled.Load() {
		return true
	}
	return s.ctx.Err() != nil
}

// Context is the launch context. Cancel does not cancel it, so an in-flight
// request always runs to completion or to its own timeout.
func (s *RunnerStatus) Context() context.Context {
	return s.ctx
}
