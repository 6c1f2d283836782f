// Package orchestrator drives a session's objects through enrichment and
// summarization, persisting progress after every object so pollers can follow
// along.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/dharsanguruparan/skypulse/internal/enrichment"
	"github.com/dharsanguruparan/skypulse/internal/logger"
	"github.com/dharsanguruparan/skypulse/internal/model"
	"github.com/dharsanguruparan/skypulse/internal/repository"
	"github.com/dharsanguruparan/skypulse/internal/summary"
)

// Orchestrator is the sole writer of a session's rows while it runs.
type Orchestrator struct {
	repo       *repository.Repository
	enricher   enrichment.Provider
	summarizer summary.Summarizer
	workers    int
	log        *logger.Logger
	tracer     trace.Tracer
}

// Option tunes an Orchestrator.
type Option func(*Orchestrator)

// WithWorkers sets how many objects of one session may be in flight at once.
// One worker (the default) processes objects strictly in submission order.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithTracer overrides the global otel tracer.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// New builds an Orchestrator. The summarizer is wrapped so a panic inside it
// degrades to placeholder text instead of failing the session.
func New(repo *repository.Repository, enricher enrichment.Provider, summarizer summary.Summarizer, log *logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		repo:       repo,
		enricher:   enricher,
		summarizer: summary.Safe(summarizer, log),
		workers:    1,
		log:        log.With("component", "Orchestrator"),
		tracer:     otel.Tracer("skypulse/orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run drives one pending session to a terminal status. A missing session is
// not an error. The returned error is informational: by the time Run returns
// the session row already reflects the outcome.
func (o *Orchestrator) Run(ctx context.Context, sessionID string) error {
	ctx, span := o.tracer.Start(ctx, "orchestrator.run",
		trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()
	log := o.log.With("session_id", sessionID)

	session, err := o.repo.GetSession(ctx, sessionID)
	if err != nil {
		return o.fail(ctx, span, log, sessionID, fmt.Errorf("load session: %w", err))
	}
	if session == nil {
		log.Warn("session not found, nothing to process")
		return nil
	}
	if session.Status != model.SessionPending {
		// Redelivered task or duplicate launch; the first run owns the session.
		log.Info("session already started, skipping", "status", session.Status)
		return nil
	}

	log.Info("starting session", "total_objects", session.TotalObjects, "workers", o.workers)
	if err := o.repo.UpdateSession(ctx, sessionID, model.SessionPatch{Status: model.Ptr(model.SessionProcessing)}); err != nil {
		return o.fail(ctx, span, log, sessionID, fmt.Errorf("mark session processing: %w", err))
	}

	objects, err := o.repo.ListObjects(ctx, sessionID)
	if err != nil {
		return o.fail(ctx, span, log, sessionID, err)
	}
	if err := o.processAll(ctx, log, session, objects); err != nil {
		return o.fail(ctx, span, log, sessionID, err)
	}

	if err := o.repo.UpdateSession(ctx, sessionID, model.SessionPatch{Status: model.Ptr(model.SessionCompleted)}); err != nil {
		return o.fail(ctx, span, log, sessionID, fmt.Errorf("mark session completed: %w", err))
	}
	span.SetStatus(codes.Ok, "session completed")
	log.Info("session completed", "total_objects", len(objects))
	return nil
}

// processAll drains the object list through a pool of o.workers. The first
// error cancels the pool; objects that have not started stay pending.
func (o *Orchestrator) processAll(ctx context.Context, log *logger.Logger, session *model.Session, objects []model.AstroObject) error {
	var (
		mu        sync.Mutex
		completed = session.CompletedObjects
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i := range objects {
		if gctx.Err() != nil {
			break
		}
		obj := objects[i]
		g.Go(func() error {
			// A slot can free up after a sibling failed; do not start new work then.
			if gctx.Err() != nil {
				return nil
			}
			if err := o.processObject(gctx, log, &obj); err != nil {
				return err
			}
			// The counter and its write share one lock so persisted values only grow.
			// The object is already complete, so its count must land even if the
			// run is being cancelled.
			mu.Lock()
			defer mu.Unlock()
			completed++
			patch := model.SessionPatch{CompletedObjects: model.Ptr(completed)}
			if err := o.repo.UpdateSession(context.WithoutCancel(gctx), session.ID, patch); err != nil {
				return fmt.Errorf("record progress: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// processObject moves one object pending -> processing -> complete. Any
// failure after the object was marked processing marks it failed.
func (o *Orchestrator) processObject(ctx context.Context, log *logger.Logger, obj *model.AstroObject) (err error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.process_object",
		trace.WithAttributes(
			attribute.String("object_id", obj.ID),
			attribute.String("input_name", obj.InputName),
			attribute.String("detected_type", string(obj.DetectedType)),
		))
	defer span.End()
	log = log.With("object_id", obj.ID, "input_name", obj.InputName)

	if err := o.repo.UpdateObject(ctx, obj.ID, model.ObjectPatch{Status: model.Ptr(model.ObjectProcessing)}); err != nil {
		return fmt.Errorf("mark object processing: %w", err)
	}
	obj.Status = model.ObjectProcessing

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("enrichment panic: %v", r)
		}
		if err == nil {
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "object failed")
		log.Error("object failed", "error", err)
		msg := err.Error()
		patch := model.ObjectPatch{Status: model.Ptr(model.ObjectFailed), Error: &msg}
		if ferr := o.repo.UpdateObject(context.WithoutCancel(ctx), obj.ID, patch); ferr != nil {
			log.Error("mark object failed", "error", ferr)
		}
	}()

	enriched, err := o.enricher.Fetch(ctx, obj.InputName, obj.DetectedType)
	if err != nil {
		return fmt.Errorf("enrich %q: %w", obj.InputName, err)
	}
	if enriched == nil {
		enriched = &model.Enrichment{}
	}
	obj.Enrichment = *enriched

	text := o.summarizer.Summarize(ctx, obj)
	patch := model.ObjectPatch{
		Status:      model.Ptr(model.ObjectComplete),
		Enrichment:  enriched,
		SummaryText: &text,
	}
	if err := o.repo.UpdateObject(ctx, obj.ID, patch); err != nil {
		return fmt.Errorf("persist object: %w", err)
	}
	span.SetStatus(codes.Ok, "object complete")
	log.Debug("object complete")
	return nil
}

// fail marks the session failed with a context that survives cancellation of
// ctx, then hands err back to the caller.
func (o *Orchestrator) fail(ctx context.Context, span trace.Span, log *logger.Logger, sessionID string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "session failed")
	log.Error("session failed", "error", err)
	patch := model.SessionPatch{Status: model.Ptr(model.SessionFailed)}
	if uerr := o.repo.UpdateSession(context.WithoutCancel(ctx), sessionID, patch); uerr != nil {
		log.Error("mark session failed", "error", uerr)
	}
	return err
}
