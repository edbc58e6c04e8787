package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vicodes/process-flow-canvas-dream/internal/diagram"
)

func TestPostgresDiagramStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	store := NewPostgresDiagramStore(pool)
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx))

	exerciseDiagramStore(t, store)
}

func TestMemoryDiagramStore(t *testing.T) {
	exerciseDiagramStore(t, NewMemoryDiagramStore())
}

func exerciseDiagramStore(t *testing.T, store DiagramStore) {
	ctx := context.Background()

	t.Run("Save and Get", func(t *testing.T) {
		saved, err := store.Save(ctx, "order-processing", diagram.SampleOrderBPMN)
		require.NoError(t, err)
		assert.False(t, saved.UpdatedAt.IsZero())

		retrieved, err := store.Get(ctx, "order-processing")
		require.NoError(t, err)
		assert.Equal(t, diagram.SampleOrderBPMN, retrieved.XML)
	})

	t.Run("Save replaces", func(t *testing.T) {
		_, err := store.Save(ctx, "order-processing", diagram.EmptyBPMN)
		require.NoError(t, err)
		retrieved, err := store.Get(ctx, "order-processing")
		require.NoError(t, err)
		assert.Equal(t, diagram.EmptyBPMN, retrieved.XML)
	})

	t.Run("List is ordered", func(t *testing.T) {
		_, err := store.Save(ctx, "expense-approval", diagram.SampleExpenseBPMN)
		require.NoError(t, err)
		list, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "expense-approval", list[0].ID)
		assert.Equal(t, "order-processing", list[1].ID)
	})

	t.Run("Remove", func(t *testing.T) {
		require.NoError(t, store.Remove(ctx, "expense-approval"))
		assert.ErrorIs(t, store.Remove(ctx, "expense-approval"), ErrNotFound)
		_, err := store.Get(ctx, "expense-approval")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Empty id", func(t *testing.T) {
		_, err := store.Save(ctx, "", "x")
		assert.Error(t, err)
	})
}
