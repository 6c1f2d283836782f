// Package worker consumes session runs from asynq and drives them with the
// orchestrator.
package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/skypulse/internal/logger"
	"github.com/dharsanguruparan/skypulse/internal/processing"
	"github.com/dharsanguruparan/skypulse/internal/queue"
)

// Processor is plugged into the asynq worker loop.
type Processor struct {
	runner processing.Runner
	log    *logger.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(runner processing.Runner, log *logger.Logger) *Processor {
	return &Processor{runner: runner, log: log.With("component", "Worker")}
}

// Handler registers the run handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.RunSessionTask, p.HandleRun)
	return mux
}

// HandleRun drives one session. Orchestration failures are already recorded
// on the session, so they are logged and not handed back to asynq for retry.
func (p *Processor) HandleRun(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.DecodeRun(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	log := p.log.With("session_id", payload.SessionID)
	log.Info("run received")
	if err := p.runner.Run(ctx, payload.SessionID); err != nil {
		log.Warn("run finished with failure", "error", err)
		return nil
	}
	log.Info("run finished")
	return nil
}
