package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/skypulse/internal/logger"
	"github.com/dharsanguruparan/skypulse/internal/processing"
	"github.com/dharsanguruparan/skypulse/internal/queue"
)

func TestHandleRun(t *testing.T) {
	var got []string
	p := NewProcessor(processing.RunnerFunc(func(_ context.Context, id string) error {
		got = append(got, id)
		if id == "bad" {
			return errors.New("provider failed")
		}
		return nil
	}), logger.NewNop())

	for _, id := range []string{"good", "bad"} {
		task, err := queue.NewRunTask(id)
		require.NoError(t, err)
		assert.NoError(t, p.HandleRun(context.Background(), task))
	}
	assert.Equal(t, []string{"good", "bad"}, got)
}

func TestHandleRunSkipsRetryOnBadPayload(t *testing.T) {
	p := NewProcessor(processing.RunnerFunc(func(context.Context, string) error {
		t.Fatal("runner must not be called")
		return nil
	}), logger.NewNop())

	err := p.HandleRun(context.Background(), asynq.NewTask(queue.RunSessionTask, []byte("nope")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.NotNil(t, p.Handler())
}
