package reminder

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pathakanu/eventMemo/internal/logging"
	"github.com/pathakanu/eventMemo/internal/model"
	"github.com/stretchr/testify/require"
)

type fakeEvents map[string]string

func (f fakeEvents) GetEventByID(_ context.Context, id string) (*model.Event, error) {
	title, ok := f[id]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return &model.Event{ID: id, Title: title}, nil
}

type spyCache struct {
	mu          sync.Mutex
	entries     map[string][]model.Reminder
	versions    map[string]int64
	hits        int
	rejected    int
	invalidated []string
}

func newSpyCache() *spyCache {
	return &spyCache{entries: map[string][]model.Reminder{}, versions: map[string]int64{}}
}

func (c *spyCache) Version(_ context.Context, userID, eventID string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[userID+"/"+eventID], true
}

func (c *spyCache) Get(_ context.Context, userID, eventID string) ([]model.Reminder, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list, ok := c.entries[userID+"/"+eventID]
	if ok {
		c.hits++
	}
	return list, ok
}

func (c *spyCache) Set(_ context.Context, userID, eventID string, version int64, reminders []model.Reminder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := userID + "/" + eventID
	if c.versions[key] != version {
		c.rejected++
		return
	}
	c.entries[key] = reminders
}

func (c *spyCache) Invalidate(_ context.Context, userID, eventID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID+"/"+eventID)
	c.versions[userID+"/"+eventID]++
	c.invalidated = append(c.invalidated, userID+"/"+eventID)
}

func newTestService(t *testing.T, opts ...ServiceOption) *Service {
	t.Helper()
	events := fakeEvents{"e1": "Launch review", "e2": "Standup"}
	return NewService(newTestStore(t), events, logging.Discard(), opts...)
}

func TestServiceCreateValidates(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	cases := map[string]CreateInput{
		"missing user":  {EventID: "e1", DueAt: base},
		"blank user":    {UserID: "  ", EventID: "e1", DueAt: base},
		"missing event": {UserID: "u1", DueAt: base},
		"missing time":  {UserID: "u1", EventID: "e1"},
		"note too long": {UserID: "u1", EventID: "e1", DueAt: base, Note: strings.Repeat("n", DefaultMaxNoteLength+1)},
	}
	for name, in := range cases {
		_, err := svc.Create(ctx, in)
		require.ErrorIs(t, err, ErrValidation, name)
	}
}

func TestServiceCreateNoteLengthCountsRunes(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, WithMaxNoteLength(3))

	r, err := svc.Create(context.Background(), CreateInput{UserID: "u1", EventID: "e1", DueAt: base, Note: "äöü"})
	require.NoError(t, err)
	require.Equal(t, "äöü", r.Note)

	_, err = svc.Create(context.Background(), CreateInput{UserID: "u1", EventID: "e1", DueAt: base.Add(time.Hour), Note: "äöüß"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestServiceCreateUnknownEvent(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), CreateInput{UserID: "u1", EventID: "nope", DueAt: base})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestServiceCreateSurfacesStoreRules(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{UserID: "u1", EventID: "e1", DueAt: base})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{UserID: "u1", EventID: "e1", DueAt: base})
	require.ErrorIs(t, err, ErrDuplicateReminder)

	for i := 1; i < DefaultMaxPerSubject; i++ {
		_, err = svc.Create(ctx, CreateInput{UserID: "u1", EventID: "e1", DueAt: base.Add(time.Duration(i) * time.Hour)})
		require.NoError(t, err)
	}
	_, err = svc.Create(ctx, CreateInput{UserID: "u1", EventID: "e1", DueAt: base.Add(24 * time.Hour)})
	require.ErrorIs(t, err, ErrLimitExceeded)
}

func TestServiceListUsesCache(t *testing.T) {
	t.Parallel()
	cache := newSpyCache()
	svc := newTestService(t, WithListCache(cache))
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{UserID: "u1", EventID: "e1", DueAt: base})
	require.NoError(t, err)

	list, err := svc.List(ctx, "u1", "e1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Zero(t, cache.hits)

	list, err = svc.List(ctx, "u1", "e1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 1, cache.hits)

	require.NoError(t, svc.MarkSent(ctx, *created, base))
	list, err = svc.List(ctx, "u1", "e1")
	require.NoError(t, err)
	require.True(t, list[0].Sent)
	require.Equal(t, 1, cache.hits)

	require.Contains(t, cache.invalidated, "u1/e1")
}

// writeDuringList runs a write right after the list is read from the store,
// before the caller gets to cache it.
type writeDuringList struct {
	Store
	write func()
}

func (s *writeDuringList) ListBySubject(ctx context.Context, userID, eventID string) ([]model.Reminder, error) {
	list, err := s.Store.ListBySubject(ctx, userID, eventID)
	if s.write != nil {
		write := s.write
		s.write = nil
		write()
	}
	return list, err
}

func TestServiceListDoesNotCacheListReadBeforeWrite(t *testing.T) {
	t.Parallel()
	cache := newSpyCache()
	store := &writeDuringList{Store: newTestStore(t)}
	svc := NewService(store, fakeEvents{"e1": "Launch review"}, logging.Discard(), WithListCache(cache))
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{UserID: "u1", EventID: "e1", DueAt: base})
	require.NoError(t, err)

	store.write = func() {
		_, err := svc.Create(ctx, CreateInput{UserID: "u1", EventID: "e1", DueAt: base.Add(time.Hour)})
		require.NoError(t, err)
	}
	list, err := svc.List(ctx, "u1", "e1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 1, cache.rejected)

	list, err = svc.List(ctx, "u1", "e1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Zero(t, cache.hits)
}

func TestServiceUpdateAndDelete(t *testing.T) {
	t.Parallel()
	cache := newSpyCache()
	svc := newTestService(t, WithListCache(cache))
	ctx := context.Background()

	r, err := svc.Create(ctx, CreateInput{UserID: "u1", EventID: "e1", DueAt: base})
	require.NoError(t, err)

	zero := time.Time{}
	_, err = svc.Update(ctx, r.ID, UpdateInput{DueAt: &zero})
	require.ErrorIs(t, err, ErrValidation)

	long := strings.Repeat("x", DefaultMaxNoteLength+1)
	_, err = svc.Update(ctx, r.ID, UpdateInput{Note: &long})
	require.ErrorIs(t, err, ErrValidation)

	moved := base.Add(time.Hour)
	updated, err := svc.Update(ctx, r.ID, UpdateInput{DueAt: &moved})
	require.NoError(t, err)
	require.True(t, updated.DueAt.Equal(moved))

	require.NoError(t, svc.Delete(ctx, r.ID))
	require.ErrorIs(t, svc.Delete(ctx, r.ID), ErrNotFound)
	require.ErrorIs(t, svc.Delete(ctx, ""), ErrValidation)

	list, err := svc.List(ctx, "u1", "e1")
	require.NoError(t, err)
	require.Empty(t, list)
}
