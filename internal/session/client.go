// Package session is the caller-facing side of a batch: it starts sessions,
// reads their state, and polls them until they settle.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/skypulse/internal/classify"
	"github.com/dharsanguruparan/skypulse/internal/logger"
	"github.com/dharsanguruparan/skypulse/internal/model"
	"github.com/dharsanguruparan/skypulse/internal/repository"
)

var (
	// ErrNoIdentifiers is returned by StartSession for an empty identifier list.
	ErrNoIdentifiers = errors.New("at least one identifier is required")
	// ErrSessionNotFound is returned by PollOnce when the session does not exist.
	ErrSessionNotFound = errors.New("session not found")
)

// Launcher starts the orchestration of a stored session without waiting for it.
type Launcher interface {
	Launch(ctx context.Context, sessionID string) error
}

// Client reads and writes sessions through the repository. It never mutates a
// session after launching it.
type Client struct {
	repo     *repository.Repository
	launcher Launcher
	log      *logger.Logger
	newID    func() string
	now      func() time.Time
}

// NewClient wires a Client.
func NewClient(repo *repository.Repository, launcher Launcher, log *logger.Logger) *Client {
	return &Client{
		repo:     repo,
		launcher: launcher,
		log:      log.With("component", "SessionClient"),
		newID:    uuid.NewString,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// StartSession stores a pending session with one placeholder object per
// identifier, in input order, then launches processing and returns at once.
func (c *Client) StartSession(ctx context.Context, ids []string) (*model.SessionDescriptor, error) {
	if len(ids) == 0 {
		return nil, ErrNoIdentifiers
	}
	now := c.now()
	s := &model.Session{
		ID:           c.newID(),
		CreatedAt:    now,
		Status:       model.SessionPending,
		InputIDs:     append([]string(nil), ids...),
		TotalObjects: len(ids),
	}
	objects := make([]model.AstroObject, len(ids))
	for i, name := range ids {
		objects[i] = model.AstroObject{
			ID:           c.newID(),
			SessionID:    s.ID,
			Seq:          i,
			InputName:    name,
			DetectedType: classify.Detect(name),
			Status:       model.ObjectPending,
			Enrichment: model.Enrichment{
				Sources: []model.SourceResult{},
				Tags:    []string{},
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	if err := c.repo.CreateSession(ctx, s); err != nil {
		return nil, err
	}
	if err := c.repo.CreateObjects(ctx, objects); err != nil {
		c.markFailed(ctx, s.ID, "create objects failed", err)
		return nil, fmt.Errorf("create objects: %w", err)
	}
	if err := c.launcher.Launch(ctx, s.ID); err != nil {
		c.markFailed(ctx, s.ID, "launch failed", err)
		return nil, fmt.Errorf("launch session: %w", err)
	}
	c.log.Info("session started", "session_id", s.ID, "total_objects", s.TotalObjects)
	d := s.Descriptor()
	return &d, nil
}

// Status returns the session or nil when it does not exist.
func (c *Client) Status(ctx context.Context, sessionID string) (*model.Session, error) {
	return c.repo.GetSession(ctx, sessionID)
}

// Results returns the session's objects in submission order.
func (c *Client) Results(ctx context.Context, sessionID string) ([]model.AstroObject, error) {
	return c.repo.ListObjects(ctx, sessionID)
}

// Object returns one object of a session or nil.
func (c *Client) Object(ctx context.Context, sessionID, objectID string) (*model.AstroObject, error) {
	return c.repo.GetObject(ctx, sessionID, objectID)
}

// markFailed moves a session that can no longer run to failed, even when ctx
// is already cancelled.
func (c *Client) markFailed(ctx context.Context, sessionID, msg string, cause error) {
	c.log.Error(msg, "session_id", sessionID, "error", cause)
	patch := model.SessionPatch{Status: model.Ptr(model.SessionFailed)}
	if err := c.repo.UpdateSession(context.WithoutCancel(ctx), sessionID, patch); err != nil {
		c.log.Error("mark session failed", "session_id", sessionID, "error", err)
	}
}

// Snapshot is the session and its objects read back to back. The two reads
// are not atomic; both only move forward so a reader sees a consistent enough
// picture.
type Snapshot struct {
	Session *model.Session      `json:"session"`
	Objects []model.AstroObject `json:"objects"`
}

// Terminal reports whether the session has settled.
func (s *Snapshot) Terminal() bool { return s.Session.Status.Terminal() }

// Progress returns the completed share in percent.
func (s *Snapshot) Progress() float64 { return s.Session.Progress() }

// PollOnce reads the session and its objects.
func (c *Client) PollOnce(ctx context.Context, sessionID string) (*Snapshot, error) {
	s, err := c.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	objects, err := c.repo.ListObjects(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Session: s, Objects: objects}, nil
}
