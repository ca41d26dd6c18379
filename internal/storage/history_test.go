package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/drawn-weight/internal/domain"
)

func setupSQLite(t *testing.T) *HistoryRepository {
	t.Helper()
	ctx := context.Background()

	store, err := Open(ctx, "sqlite", ":memory:", PoolOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx), "migrations are idempotent")
	return store.History()
}

func record(user, file string, kg float64, at time.Time) *domain.HistoryRecord {
	return &domain.HistoryRecord{
		UserID:   user,
		Filename: file,
		WeightKg: kg,
		ExtractedData: map[string]any{
			"shape_type":  "rectangular",
			"outer_width": 150.0,
			"draw_depth":  19.05,
		},
		Model:     "gemini-2.0-flash",
		Timestamp: at,
	}
}

func TestHistory_SaveAndGet(t *testing.T) {
	repo := setupSQLite(t)
	ctx := context.Background()

	rec := record("alice", "part.pdf", 0.085, time.Time{})
	require.NoError(t, repo.Save(ctx, rec))
	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.False(t, rec.Timestamp.IsZero())

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "alice", got.UserID)
	assert.Equal(t, "part.pdf", got.Filename)
	assert.Equal(t, 0.085, got.WeightKg)
	assert.Equal(t, "gemini-2.0-flash", got.Model)
	assert.Equal(t, 150.0, got.ExtractedData["outer_width"])
	assert.WithinDuration(t, rec.Timestamp, got.Timestamp, time.Millisecond)
}

func TestHistory_GetByIDNotFound(t *testing.T) {
	repo := setupSQLite(t)

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHistory_SaveRequiresUser(t *testing.T) {
	repo := setupSQLite(t)

	err := repo.Save(context.Background(), record(" ", "x.pdf", 1, time.Now()))
	assert.Equal(t, domain.ErrorTypeValidation, domain.TypeOf(err))
}

func TestHistory_ListByUserNewestFirst(t *testing.T) {
	repo := setupSQLite(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, record("alice", "old.pdf", 0.1, base)))
	require.NoError(t, repo.Save(ctx, record("alice", "new.pdf", 0.3, base.Add(2*time.Hour))))
	require.NoError(t, repo.Save(ctx, record("alice", "mid.pdf", 0.2, base.Add(time.Hour))))
	require.NoError(t, repo.Save(ctx, record("bob", "bob.pdf", 9, base)))

	recs, err := repo.ListByUser(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"new.pdf", "mid.pdf", "old.pdf"},
		[]string{recs[0].Filename, recs[1].Filename, recs[2].Filename})

	recs, err = repo.ListByUser(ctx, "alice", 2)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = repo.ListByUser(ctx, "carol", 10)
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestHistory_ListLimitCapped(t *testing.T) {
	repo := setupSQLite(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < DefaultListLimit+5; i++ {
		require.NoError(t, repo.Save(ctx, record("u", fmt.Sprintf("%03d.pdf", i), 1, base.Add(time.Duration(i)*time.Second))))
	}

	recs, err := repo.ListByUser(ctx, "u", -1)
	require.NoError(t, err)
	assert.Len(t, recs, DefaultListLimit)

	recs, err = repo.ListByUser(ctx, "u", MaxListLimit*10)
	require.NoError(t, err)
	assert.Len(t, recs, DefaultListLimit+5)
}

func TestHistory_DeleteByUser(t *testing.T) {
	repo := setupSQLite(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, record("alice", "a.pdf", 1, time.Now())))
	require.NoError(t, repo.Save(ctx, record("alice", "b.pdf", 1, time.Now())))
	require.NoError(t, repo.Save(ctx, record("bob", "c.pdf", 1, time.Now())))

	n, err := repo.DeleteByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	recs, err := repo.ListByUser(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Empty(t, recs)

	recs, err = repo.ListByUser(ctx, "bob", 0)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "dsn", PoolOptions{})
	assert.Error(t, err)
}
