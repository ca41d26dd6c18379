//go:build integration

package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/spherical/drawn-weight/internal/domain"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("drawn_weight_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://test:test@%s:%s/drawn_weight_test?sslmode=disable", host, port.Port())
}

func TestHistory_Postgres(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	store, err := Open(ctx, "postgres", dsn, PoolOptions{MaxOpenConns: 4})
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Migrate(ctx))

	repo := store.History()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := record("alice", "first.pdf", 0.085, base)
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, record("alice", "second.pdf", 0.312, base.Add(time.Minute))))

	recs, err := repo.ListByUser(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "second.pdf", recs[0].Filename)
	assert.Equal(t, "rectangular", recs[1].ExtractedData["shape_type"])

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, got.Timestamp.Equal(base))

	n, err := repo.DeleteByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = repo.GetByID(ctx, first.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
