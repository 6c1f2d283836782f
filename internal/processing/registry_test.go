package processing

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/skypulse/internal/logger"
)

func waitDone(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish")
	}
}

func TestRegistryRunsAndForgets(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	reg := NewRegistry(RunnerFunc(func(ctx context.Context, id string) error {
		calls.Add(1)
		<-release
		return nil
	}), logger.NewNop())

	require.NoError(t, reg.Launch(context.Background(), "s1"))
	done := reg.Done("s1")
	assert.ErrorIs(t, reg.Launch(context.Background(), "s1"), ErrAlreadyRunning)

	active := reg.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "s1", active[0].SessionID)

	close(release)
	waitDone(t, done)
	assert.EqualValues(t, 1, calls.Load())
	assert.Eventually(t, func() bool { return len(reg.Active()) == 0 }, time.Second, 5*time.Millisecond)
}

func TestRegistryRunOutlivesLaunchContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var sawCancel atomic.Bool
	reg := NewRegistry(RunnerFunc(func(runCtx context.Context, id string) error {
		time.Sleep(20 * time.Millisecond)
		sawCancel.Store(runCtx.Err() != nil)
		return nil
	}), logger.NewNop())

	require.NoError(t, reg.Launch(ctx, "s1"))
	done := reg.Done("s1")
	cancel()
	waitDone(t, done)
	assert.False(t, sawCancel.Load())
}

func TestRegistryShutdownCancelsRuns(t *testing.T) {
	reg := NewRegistry(RunnerFunc(func(ctx context.Context, id string) error {
		<-ctx.Done()
		return ctx.Err()
	}), logger.NewNop())

	require.NoError(t, reg.Launch(context.Background(), "a"))
	require.NoError(t, reg.Launch(context.Background(), "b"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, reg.Shutdown(ctx))
	assert.Empty(t, reg.Active())
	assert.ErrorIs(t, reg.Launch(context.Background(), "c"), ErrClosed)
}

func TestRegistryCancelAndPanic(t *testing.T) {
	reg := NewRegistry(RunnerFunc(func(ctx context.Context, id string) error {
		if id == "boom" {
			panic("kaboom")
		}
		<-ctx.Done()
		return errors.New("cancelled")
	}), logger.NewNop())

	require.NoError(t, reg.Launch(context.Background(), "boom"))
	waitDone(t, reg.Done("boom"))

	require.NoError(t, reg.Launch(context.Background(), "slow"))
	done := reg.Done("slow")
	assert.True(t, reg.Cancel("slow"))
	waitDone(t, done)
	assert.False(t, reg.Cancel("slow"))
}
