// Package queue carries session runs over asynq so orchestration can happen
// in a separate worker process.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// RunSessionTask is scheduled each time a session is started.
	RunSessionTask = "session:run"
)

// RunPayload is serialized into the task payload so the worker knows which
// session to drive.
type RunPayload struct {
	SessionID string `json:"session_id"`
}

// NewRunTask builds the task for sessionID. Runs are never retried: a session
// that already left pending cannot be driven again.
func NewRunTask(sessionID string) (*asynq.Task, error) {
	data, err := json.Marshal(RunPayload{SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(RunSessionTask, data, asynq.MaxRetry(0), asynq.TaskID(sessionID)), nil
}

// DecodeRun reads the payload of a RunSessionTask.
func DecodeRun(task *asynq.Task) (RunPayload, error) {
	var p RunPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return p, fmt.Errorf("decode payload: %w", err)
	}
	if p.SessionID == "" {
		return p, fmt.Errorf("decode payload: empty session id")
	}
	return p, nil
}

// Enqueuer is the slice of *asynq.Client the launcher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Launcher hands session runs to the worker fleet.
type Launcher struct {
	client Enqueuer
}

// NewLauncher wraps an asynq client.
func NewLauncher(client Enqueuer) *Launcher {
	return &Launcher{client: client}
}

// Launch enqueues a run for sessionID.
func (l *Launcher) Launch(ctx context.Context, sessionID string) error {
	task, err := NewRunTask(sessionID)
	if err != nil {
		return err
	}
	if _, err := l.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue run task: %w", err)
	}
	return nil
}
