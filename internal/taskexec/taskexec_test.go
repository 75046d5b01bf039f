package taskexec_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eyevinn-osaas/strom-sub002/internal/taskexec"
)

func TestExecutor_RunAllRespectsParallelismBound(t *testing.T) {
	ex := taskexec.New(2)

	var inFlight, maxInFlight int32
	task := func(context.Context) error {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			cur := atomic.LoadInt32(&maxInFlight)
			if n <= cur || atomic.CompareAndSwapInt32(&maxInFlight, cur, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return nil
	}

	fns := make([]func(context.Context) error, 6)
	for i := range fns {
		fns[i] = task
	}

	require.NoError(t, ex.RunAll(context.Background(), fns...))
	require.LessOrEqual(t, atomic.LoadInt32(&maxInFlight), int32(2))
}

func TestExecutor_RunAllPropagatesFirstError(t *testing.T) {
	ex := taskexec.New(4)
	boom := context.Canceled

	err := ex.RunAll(context.Background(),
		func(context.Context) error { return nil },
		func(context.Context) error { return boom },
	)
	require.ErrorIs(t, err, boom)
}

func TestExecutor_TryRunFailsFastWhenSaturated(t *testing.T) {
	ex := taskexec.New(1)
	block := make(chan struct{})
	done := make(chan struct{})

	go func() {
		_ = ex.Run(context.Background(), func(context.Context) error {
			<-block
			return nil
		})
		close(done)
	}()

	// Give the first task time to acquire its slot.
	time.Sleep(10 * time.Millisecond)

	ok, err := ex.TryRun(context.Background(), func(context.Context) error { return nil })
	require.NoError(t, err)
	require.False(t, ok)

	close(block)
	<-done
}
