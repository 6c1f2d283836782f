package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/skypulse/internal/kv"
	"github.com/dharsanguruparan/skypulse/internal/model"
)

func repos(t *testing.T) map[string]*Repository {
	t.Helper()
	b, err := kv.OpenBadger("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return map[string]*Repository{
		"memory": New(kv.NewMemoryStore()),
		"badger": New(b),
	}
}

func newSession(id string, total int) *model.Session {
	return &model.Session{
		ID:           id,
		CreatedAt:    time.Now().UTC(),
		Status:       model.SessionPending,
		TotalObjects: total,
	}
}

func TestSessionLifecycle(t *testing.T) {
	for name, repo := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.CreateSession(ctx, newSession("s1", 2)))

			got, err := repo.GetSession(ctx, "s1")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, model.SessionPending, got.Status)

			missing, err := repo.GetSession(ctx, "nope")
			require.NoError(t, err)
			assert.Nil(t, missing)

			require.NoError(t, repo.UpdateSession(ctx, "s1", model.SessionPatch{Status: model.Ptr(model.SessionProcessing)}))
			require.NoError(t, repo.UpdateSession(ctx, "s1", model.SessionPatch{CompletedObjects: model.Ptr(1)}))

			err = repo.UpdateSession(ctx, "s1", model.SessionPatch{CompletedObjects: model.Ptr(0)})
			assert.ErrorIs(t, err, ErrProgressRegression)
			err = repo.UpdateSession(ctx, "s1", model.SessionPatch{CompletedObjects: model.Ptr(3)})
			assert.ErrorIs(t, err, ErrProgressRegression)

			err = repo.UpdateSession(ctx, "s1", model.SessionPatch{Status: model.Ptr(model.SessionPending)})
			assert.ErrorIs(t, err, model.ErrInvalidTransition)

			require.NoError(t, repo.UpdateSession(ctx, "s1", model.SessionPatch{
				Status:           model.Ptr(model.SessionCompleted),
				CompletedObjects: model.Ptr(2),
			}))
			got, err = repo.GetSession(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, model.SessionCompleted, got.Status)
			assert.Equal(t, 2, got.CompletedObjects)

			err = repo.UpdateSession(ctx, "s1", model.SessionPatch{Status: model.Ptr(model.SessionFailed)})
			assert.ErrorIs(t, err, model.ErrInvalidTransition)

			assert.NoError(t, repo.UpdateSession(ctx, "nope", model.SessionPatch{Status: model.Ptr(model.SessionFailed)}))
		})
	}
}

func TestObjectsOrderedBySeq(t *testing.T) {
	for name, repo := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.CreateSession(ctx, newSession("s1", 12)))
			require.NoError(t, repo.CreateSession(ctx, newSession("s2", 1)))

			objs := make([]model.AstroObject, 12)
			for i := range objs {
				// ids sort differently from seq to catch key-ordered backends.
				objs[i] = model.AstroObject{
					ID:        fmt.Sprintf("z%02d", 11-i),
					SessionID: "s1",
					Seq:       i,
					InputName: fmt.Sprintf("TIC %d", i),
					Status:    model.ObjectPending,
				}
			}
			require.NoError(t, repo.CreateObjects(ctx, objs))
			require.NoError(t, repo.CreateObjects(ctx, []model.AstroObject{{ID: "other", SessionID: "s2", Status: model.ObjectPending}}))
			require.NoError(t, repo.CreateObjects(ctx, nil))

			list, err := repo.ListObjects(ctx, "s1")
			require.NoError(t, err)
			require.Len(t, list, 12)
			for i, o := range list {
				assert.Equal(t, i, o.Seq)
				assert.Equal(t, fmt.Sprintf("TIC %d", i), o.InputName)
			}

			empty, err := repo.ListObjects(ctx, "none")
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestObjectUpdates(t *testing.T) {
	for name, repo := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			repo.now = func() time.Time { return fixed }
			require.NoError(t, repo.CreateObjects(ctx, []model.AstroObject{{ID: "o1", SessionID: "s1", Status: model.ObjectPending}}))

			obj, err := repo.GetObject(ctx, "s1", "o1")
			require.NoError(t, err)
			require.NotNil(t, obj)

			wrongSession, err := repo.GetObject(ctx, "s2", "o1")
			require.NoError(t, err)
			assert.Nil(t, wrongSession)

			err = repo.UpdateObject(ctx, "o1", model.ObjectPatch{Status: model.Ptr(model.ObjectComplete)})
			assert.ErrorIs(t, err, model.ErrInvalidTransition)

			require.NoError(t, repo.UpdateObject(ctx, "o1", model.ObjectPatch{Status: model.Ptr(model.ObjectProcessing)}))
			require.NoError(t, repo.UpdateObject(ctx, "o1", model.ObjectPatch{
				Status:      model.Ptr(model.ObjectComplete),
				Enrichment:  &model.Enrichment{PrimaryName: model.Ptr("TRAPPIST-1"), Tags: []string{"TESS Object"}},
				SummaryText: model.Ptr("summary"),
			}))

			obj, err = repo.GetObject(ctx, "s1", "o1")
			require.NoError(t, err)
			assert.Equal(t, model.ObjectComplete, obj.Status)
			assert.Equal(t, "TRAPPIST-1", *obj.PrimaryName)
			assert.Equal(t, []string{"TESS Object"}, obj.Tags)
			assert.Equal(t, "summary", *obj.SummaryText)
			assert.True(t, obj.UpdatedAt.Equal(fixed))

			assert.NoError(t, repo.UpdateObject(ctx, "missing", model.ObjectPatch{Status: model.Ptr(model.ObjectFailed)}))
		})
	}
}
