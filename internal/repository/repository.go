// Package repository wraps the session and object tables used by the API,
// the orchestrator, and the poller.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dharsanguruparan/skypulse/internal/kv"
	"github.com/dharsanguruparan/skypulse/internal/model"
)

const (
	SessionsTable = "skypulse_sessions"
	ObjectsTable  = "skypulse_objects"
)

// ErrProgressRegression is returned when completedObjects would decrease or
// exceed totalObjects.
var ErrProgressRegression = errors.New("invalid completed object count")

// Repository provides CRUD over sessions and objects. Lookups of absent ids
// return (nil, nil); only storage failures are errors.
type Repository struct {
	sessions *kv.Table[model.Session]
	objects  *kv.Table[model.AstroObject]
	now      func() time.Time
}

// New binds both tables to store.
func New(store kv.Store) *Repository {
	return &Repository{
		sessions: kv.NewTable(store, SessionsTable, func(s *model.Session) string { return s.ID }),
		objects:  kv.NewTable(store, ObjectsTable, func(o *model.AstroObject) string { return o.ID }),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession inserts a new session row.
func (r *Repository) CreateSession(ctx context.Context, s *model.Session) error {
	if err := r.sessions.Put(ctx, *s); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession returns the session or nil when it does not exist.
func (r *Repository) GetSession(ctx context.Context, id string) (*model.Session, error) {
	s, err := r.sessions.Get(ctx, id)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}
	return s, nil
}

// UpdateSession applies a partial update. Absent ids are a no-op. Status may
// only advance and the completed count may only grow up to the total.
func (r *Repository) UpdateSession(ctx context.Context, id string, patch model.SessionPatch) error {
	err := r.sessions.Update(ctx, id, func(s *model.Session) error {
		if patch.Status != nil {
			if err := s.Status.ValidateTransition(*patch.Status); err != nil {
				return err
			}
			s.Status = *patch.Status
		}
		if patch.CompletedObjects != nil {
			n := *patch.CompletedObjects
			if n < s.CompletedObjects || n > s.TotalObjects {
				return fmt.Errorf("%w: %d -> %d of %d", ErrProgressRegression, s.CompletedObjects, n, s.TotalObjects)
			}
			s.CompletedObjects = n
		}
		return nil
	})
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("update session %s: %w", id, err)
	}
	return nil
}

// CreateObjects bulk-inserts placeholder objects in a single write.
func (r *Repository) CreateObjects(ctx context.Context, objects []model.AstroObject) error {
	if len(objects) == 0 {
		return nil
	}
	if err := r.objects.Put(ctx, objects...); err != nil {
		return fmt.Errorf("insert objects: %w", err)
	}
	return nil
}

// ListObjects returns the session's objects in submission order.
func (r *Repository) ListObjects(ctx context.Context, sessionID string) ([]model.AstroObject, error) {
	objs, err := r.objects.Query(ctx, func(o *model.AstroObject) bool {
		return o.SessionID == sessionID
	})
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	// Backends iterate in different orders; seq is the submission index.
	sort.SliceStable(objs, func(i, j int) bool { return objs[i].Seq < objs[j].Seq })
	return objs, nil
}

// GetObject returns one object of a session, or nil when either id does not match.
func (r *Repository) GetObject(ctx context.Context, sessionID, objectID string) (*model.AstroObject, error) {
	o, err := r.objects.Get(ctx, objectID)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select object: %w", err)
	}
	if o.SessionID != sessionID {
		return nil, nil
	}
	return o, nil
}

// UpdateObject applies a partial update and stamps UpdatedAt. Absent ids are a no-op.
func (r *Repository) UpdateObject(ctx context.Context, id string, patch model.ObjectPatch) error {
	err := r.objects.Update(ctx, id, func(o *model.AstroObject) error {
		if patch.Status != nil {
			if err := o.Status.ValidateTransition(*patch.Status); err != nil {
				return err
			}
			o.Status = *patch.Status
		}
		if patch.Enrichment != nil {
			o.Enrichment = *patch.Enrichment
		}
		if patch.SummaryText != nil {
			o.SummaryText = patch.SummaryText
		}
		if patch.Error != nil {
			o.Error = *patch.Error
		}
		o.UpdatedAt = r.now()
		return nil
	})
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("update object %s: %w", id, err)
	}
	return nil
}
