package history

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/id"
)

type memoryRepo struct {
	entries []Entry
	fail    bool
}

func (r *memoryRepo) Append(ctx context.Context, entry Entry) error {
	if r.fail {
		return apperror.NewStorageUnavailable(nil)
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memoryRepo) ListByEntity(ctx context.Context, entityType string, entityID id.ID) ([]Entry, error) {
	var out []Entry
	for _, e := range r.entries {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ChangedAt.Equal(out[j].ChangedAt) {
			return out[i].ChangedAt.Before(out[j].ChangedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func TestRecord_AppendsEntry(t *testing.T) {
	ctx := context.Background()
	repo := &memoryRepo{}
	svc := NewService(repo)

	orderID := id.New()
	entry := NewEntry("order", orderID, "pending", "confirmed", "user-1")
	require.NoError(t, svc.Record(ctx, entry))

	entries, err := svc.History(ctx, "order", orderID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "pending", entries[0].OldStatus)
	assert.Equal(t, "confirmed", entries[0].NewStatus)
	assert.Equal(t, "user-1", entries[0].ChangedBy)
}

func TestRecord_ValidatesInput(t *testing.T) {
	ctx := context.Background()
	svc := NewService(&memoryRepo{})

	cases := []struct {
		name  string
		entry Entry
	}{
		{"missing entity type", Entry{EntityID: id.New(), NewStatus: "confirmed"}},
		{"missing entity id", Entry{EntityType: "order", NewStatus: "confirmed"}},
		{"missing new status", Entry{EntityType: "order", EntityID: id.New()}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Record(ctx, tc.entry)
			require.Error(t, err)
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
		})
	}
}

func TestRecord_StorageErrorSurfaces(t *testing.T) {
	ctx := context.Background()
	svc := NewService(&memoryRepo{fail: true})

	err := svc.Record(ctx, NewEntry("order", id.New(), "pending", "confirmed", "user-1"))
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeStorage, appErr.Code)
}

func TestHistory_OrderedAscending(t *testing.T) {
	ctx := context.Background()
	repo := &memoryRepo{}
	svc := NewService(repo)

	orderID := id.New()
	base := time.Now().UTC()

	second := NewEntry("order", orderID, "confirmed", "processing", "user-1")
	second.ChangedAt = base.Add(time.Minute)
	first := NewEntry("order", orderID, "pending", "confirmed", "user-1")
	first.ChangedAt = base

	// Insert out of order
	require.NoError(t, svc.Record(ctx, second))
	require.NoError(t, svc.Record(ctx, first))

	entries, err := svc.History(ctx, "order", orderID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "confirmed", entries[0].NewStatus)
	assert.Equal(t, "processing", entries[1].NewStatus)
}

func TestHistory_FiltersByEntity(t *testing.T) {
	ctx := context.Background()
	repo := &memoryRepo{}
	svc := NewService(repo)

	orderID := id.New()
	otherID := id.New()
	require.NoError(t, svc.Record(ctx, NewEntry("order", orderID, "pending", "confirmed", "u")))
	require.NoError(t, svc.Record(ctx, NewEntry("order", otherID, "pending", "cancelled", "u")))
	require.NoError(t, svc.Record(ctx, NewEntry("return", orderID, "", "requested", "u")))

	entries, err := svc.History(ctx, "order", orderID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "confirmed", entries[0].NewStatus)
}
