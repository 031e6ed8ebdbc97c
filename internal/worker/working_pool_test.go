package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func waitTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	ch := make(chan struct{})
	go func() {
		wg.Wait()
		close(ch)
	}()
	select {
	case <-ch:
	case <-time.After(d):
		t.Fatal("timed out waiting for jobs")
	}
}

func TestWorkingPool_RunsJobsAndSurvivesPanics(t *testing.T) {
	defer goleak.VerifyNone(t)

	pool := NewWorkingPool(3, 10)
	ctx, cancel := context.WithCancel(context.Background())

	var managerWg sync.WaitGroup
	managerWg.Add(1)
	go pool.Start(ctx, &managerWg)

	var ran atomic.Int32
	var jobsWg sync.WaitGroup
	for i := range 20 {
		jobsWg.Add(1)
		job := func(context.Context) error {
			defer jobsWg.Done()
			if i == 5 {
				panic("boom")
			}
			ran.Add(1)
			return nil
		}
		require.NoError(t, pool.SubmitJob(context.Background(), job))
	}

	waitTimeout(t, &jobsWg, 5*time.Second)
	assert.Equal(t, int32(19), ran.Load())

	cancel()
	waitTimeout(t, &managerWg, 5*time.Second)

	err := pool.SubmitJob(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrPoolStopped)
}

func TestWorkingPool_SubmitHonoursContext(t *testing.T) {
	pool := NewWorkingPool(1, 0) // never started, so nothing receives

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := pool.SubmitJob(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
