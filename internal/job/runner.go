package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Runner executes a set of jobs on background goroutines.
//
// For every job exactly one of onSuccess/onError fires, unless cancellation
// was observed before that job started, in which case neither fires.
type Runner struct {
	id     string
	status *RunnerStatus
	wg     sync.WaitGroup
	log    *slog.Logger
}

type config struct {
	concurrency int
	log         *slog.Logger
}

// Option configures Launch.
type Option func(*config)

// WithConcurrency bounds how many jobs run at once. Values below one mean one.
func WithConcurrency(n int) Option {
	return func(c *config) { c.concurrency = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.log = l }
}

// Launch starts jobs and returns immediately. Callbacks run on the worker
// goroutines and must be safe for concurrent use when concurrency > 1.
func Launch[T any](ctx context.Context, jobs []Job[T], onSuccess func(T), onError func(error), opts ...Option) *Runner {
	cfg := config{concurrency: 1, log: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.concurrency < 1 {
		cfg.concurrency = 1
	}
	if cfg.log == nil {
		cfg.log = slog.Default()
	}

	r := &Runner{
		id:     uuid.NewString(),
		status: NewRunnerStatus(ctx),
		log:    cfg.log,
	}

	queue := make(chan Job[T])
	workers := min(cfg.concurrency, max(len(jobs), 1))

	r.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer r.wg.Done()
			for j := range queue {
				runOne(r, j, onSuccess, onError)
			}
		}()
	}

	go func() {
		defer close(queue)
		for _, j := range jobs {
			queue <- j
		}
	}()

	r.log.Debug("runner.launched", "runner", r.id, "jobs", len(jobs), "concurrency", workers)
	return r
}

func runOne[T any](r *Runner, j Job[T], onSuccess func(T), onError func(error)) {
	if r.status.IsCancelled() {
		r.log.Debug("runner.job.skipped", "runner", r.id)
		return
	}

	v, err := execute(r.status, j)
	if err != nil {
		if onError != nil {
			onError(err)
		}
		return
	}
	if onSuccess != nil {
		onSuccess(v)
	}
}

func execute[T any](s *RunnerStatus, j Job[T]) (v T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panicked: %v", rec)
		}
	}()
	return j.Execute(s)
}

// ID identifies the runner in logs.
func (r *Runner) ID() string { return r.id }

// Status exposes the shared cancellation flag.
func (r *Runner) Status() *RunnerStatus { return r.status }

// Cancel asks every job to stop at its next suspension point.
func (r *Runner) Cancel() {
	r.log.Info("runner.cancel", "runner", r.id)
	r.status.Cancel()
}

// Wait blocks until every job reached a terminal state.
func (r *Runner) Wait() {
	r.wg.Wait()
}
