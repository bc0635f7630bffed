package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kjannette/scout-backend/internal/db"
)

// SetupPool returns a migrated pool for integration tests. TEST_DATABASE_URL
// points at an existing database; otherwise a throwaway Postgres container is
// started. Skipped under -short.
func SetupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}

	_ = godotenv.Load("../../.env")
	ctx := context.Background()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		dsn = startContainer(t, ctx)
	}

	pool, err := db.Connect(ctx, dsn)
	require.NoError(t, err, "connect")
	t.Cleanup(pool.Close)

	require.NoError(t, db.Migrate(ctx, pool), "migrate")
	truncate(t, ctx, pool)
	return pool
}

func startContainer(t *testing.T, ctx context.Context) string {
	t.Helper()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("scout_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "connection string")
	return dsn
}

// truncate clears state left by an earlier test against a shared database.
func truncate(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(ctx, `TRUNCATE portfolio_state, trade_history, seen_tokens`)
	require.NoError(t, err, "truncate")
}
