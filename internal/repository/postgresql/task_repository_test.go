package postgresql_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorial-service/internal/entity"
	"tutorial-service/internal/registry"
	"tutorial-service/internal/repository/postgresql"
)

// Runs only against a live database: TEST_POSTGRES_DSN=postgres://...
func newRepo(t *testing.T) *postgresql.TaskRepository {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := postgresql.NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := postgresql.NewTaskRepository(pool)
	require.NoError(t, repo.Migrate(ctx))
	require.NoError(t, repo.Save(ctx, nil))
	return repo
}

func TestTaskRepository_RoundTrip(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	_, err := repo.Load(ctx)
	assert.ErrorIs(t, err, registry.ErrNoSnapshot)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	done := now.Add(2 * time.Minute)
	a := entity.NewTask("a", "tutorial", json.RawMessage(`{"topic":"Fractions"}`), now)
	a.Status = entity.StatusCompleted
	a.Progress = 100
	a.CompletedAt = &done
	a.UpdatedAt = done
	a.Result = entity.RawString("tutorial.mp4")

	in := map[string]entity.Task{"a": a, "b": entity.NewTask("b", "scene", nil, now)}
	require.NoError(t, repo.Save(ctx, in))

	out, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
