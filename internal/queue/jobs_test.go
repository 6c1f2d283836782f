package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type()}, nil
}

func TestLaunchEnqueuesRun(t *testing.T) {
	fake := &fakeEnqueuer{}
	require.NoError(t, NewLauncher(fake).Launch(context.Background(), "sess-1"))

	require.Len(t, fake.tasks, 1)
	assert.Equal(t, RunSessionTask, fake.tasks[0].Type())
	p, err := DecodeRun(fake.tasks[0])
	require.NoError(t, err)
	assert.Equal(t, "sess-1", p.SessionID)
}

func TestLaunchPropagatesErrors(t *testing.T) {
	fake := &fakeEnqueuer{err: errors.New("redis down")}
	err := NewLauncher(fake).Launch(context.Background(), "sess-1")
	assert.ErrorContains(t, err, "redis down")
}

func TestDecodeRunRejectsBadPayloads(t *testing.T) {
	_, err := DecodeRun(asynq.NewTask(RunSessionTask, []byte("{")))
	assert.Error(t, err)
	_, err = DecodeRun(asynq.NewTask(RunSessionTask, []byte(`{}`)))
	assert.Error(t, err)
}
