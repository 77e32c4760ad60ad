package job

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getodk/briefcase-sub006/internal/domain"
)

func TestSupplyThen(t *testing.T) {
	j := Then(Supply(20), func(_ *RunnerStatus, v int) (string, error) {
		if v != 20 {
			return "", errors.New("bad input")
		}
		return "done", nil
	})

	out, err := j.Execute(NewRunnerStatus(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, "done", out)
}

func TestThen_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	called := false
	j := Then(Fail[int](boom), func(_ *RunnerStatus, v int) (int, error) {
		called = true
		return v, nil
	})

	_, err := j.Execute(NewRunnerStatus(context.Background()))
	assert.ErrorIs(t, err, boom)
	assert.False(t, called)
}

func TestThen_ChecksCancellationBetweenSteps(t *testing.T) {
	first := Run(func(s *RunnerStatus) (int, error) {
		s.Cancel()
		return 1, nil
	})
	called := false
	j := Then(first, func(_ *RunnerStatus, v int) (int, error) {
		called = true
		return v, nil
	})

	_, err := j.Execute(NewRunnerStatus(context.Background()))
	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.True(t, domain.IsKind(err, domain.KindCancelled))
	assert.False(t, called)
}

func TestThenAccept(t *testing.T) {
	var seen int
	j := ThenAccept(Supply(5), func(_ *RunnerStatus, v int) error {
		seen = v
		return nil
	})
	out, err := j.Execute(NewRunnerStatus(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, 5, out)
	assert.Equal(t, 5, seen)
}

func TestRunnerStatus_ContextDoneReadsAsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewRunnerStatus(ctx)
	assert.False(t, s.IsCancelled())
	cancel()
	assert.True(t, s.IsCancelled())
}

func TestRunnerStatus_CancelDoesNotCancelContext(t *testing.T) {
	s := NewRunnerStatus(context.Background())
	s.Cancel()
	assert.True(t, s.IsCancelled())
	assert.NoError(t, s.Context().Err())
}

func TestLaunch_ExactlyOneCallbackPerJob(t *testing.T) {
	boom := errors.New("boom")
	jobs := []Job[int]{
		Supply(1),
		Fail[int](boom),
		Run(func(*RunnerStatus) (int, error) { return 3, nil }),
		Run(func(*RunnerStatus) (int, error) { panic("kaboom") }),
	}

	var mu sync.Mutex
	var successes []int
	var failures []error

	r := Launch(context.Background(), jobs,
		func(v int) { mu.Lock(); successes = append(successes, v); mu.Unlock() },
		func(err error) { mu.Lock(); failures = append(failures, err); mu.Unlock() },
		WithConcurrency(2),
	)
	r.Wait()

	assert.ElementsMatch(t, []int{1, 3}, successes)
	require.Len(t, failures, 2)
	assert.NotEmpty(t, r.ID())
}

func TestLaunch_CancelBeforeStartSkipsCallbacks(t *testing.T) {
	release := make(chan struct{})
	var started atomic.Int32

	blocking := Run(func(s *RunnerStatus) (int, error) {
		started.Add(1)
		<-release
		if s.IsCancelled() {
			return 0, domain.CancelledError("test")
		}
		return 1, nil
	})
	never := Run(func(*RunnerStatus) (int, error) {
		started.Add(1)
		return 2, nil
	})

	var successes, failures atomic.Int32
	r := Launch(context.Background(), []Job[int]{blocking, never},
		func(int) { successes.Add(1) },
		func(error) { failures.Add(1) },
	)

	require.Eventually(t, func() bool { return started.Load() == 1 }, time.Second, 5*time.Millisecond)
	r.Cancel()
	close(release)
	r.Wait()

	// The first job had started, so it reports; the second never starts.
	assert.Equal(t, int32(1), started.Load())
	assert.Equal(t, int32(0), successes.Load())
	assert.Equal(t, int32(1), failures.Load())
	assert.True(t, r.Status().IsCancelled())
}

func TestLaunch_NoJobs(t *testing.T) {
	r := Launch[int](context.Background(), nil, nil, nil)
	r.Wait()
}
