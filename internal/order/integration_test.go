//go:build integration

package order

import (
	"context"
	"database/sql"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgres(ctx context.Context, t *testing.T) *sql.DB {
	t.Helper()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("barboeuf"),
		postgres.WithUsername("barboeuf"),
		postgres.WithPassword("barboeuf"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	_, filename, _, _ := runtime.Caller(0)
	migrations := "file://" + filepath.Join(filepath.Dir(filename), "..", "..", "migrations")

	m, err := migrate.New(migrations, connStr)
	require.NoError(t, err)
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("failed to run migrations: %v", err)
	}
	_, _ = m.Close()

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedProduct(t *testing.T, db *sql.DB, slug string, qty int) string {
	t.Helper()
	var id string
	err := db.QueryRow(`
		INSERT INTO products (slug, name_fr, price_eur, quantity)
		VALUES ($1, $1, 12.50, $2)
		RETURNING id
	`, slug, qty).Scan(&id)
	require.NoError(t, err)
	return id
}

func stockOf(t *testing.T, db *sql.DB, slug string) int {
	t.Helper()
	var qty int
	require.NoError(t, db.QueryRow(`SELECT quantity FROM products WHERE slug = $1`, slug).Scan(&qty))
	return qty
}

func TestIntegration_Settlement(t *testing.T) {
	ctx := context.Background()
	db := setupPostgres(ctx, t)
	repo := NewRepository(db)

	steakID := seedProduct(t, db, "steak", 10)

	newOrder := func(qty int) uuid.UUID {
		o := &Order{Currency: "EUR", AmountCents: int64(qty) * 1250}
		err := repo.CreatePending(ctx, o, []OrderItem{
			{ProductID: steakID, Slug: "steak", Name: "steak", Quantity: qty, UnitPriceCents: 1250},
		})
		require.NoError(t, err)
		return o.ID
	}

	t.Run("SequentialRedelivery", func(t *testing.T) {
		id := newOrder(2)
		start := stockOf(t, db, "steak")

		first, err := repo.CompleteAndAdjustStock(ctx, id)
		require.NoError(t, err)
		assert.False(t, first.AlreadySettled)

		second, err := repo.CompleteAndAdjustStock(ctx, id)
		require.NoError(t, err)
		assert.True(t, second.AlreadySettled)

		assert.Equal(t, start-2, stockOf(t, db, "steak"))
		o, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StatusPaid, o.Status)
		assert.NotNil(t, o.PaidAt)
	})

	t.Run("ConcurrentDeliveries", func(t *testing.T) {
		id := newOrder(3)
		start := stockOf(t, db, "steak")

		const callers = 8
		var wg sync.WaitGroup
		var mu sync.Mutex
		fresh := 0
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := repo.CompleteAndAdjustStock(ctx, id)
				if !assert.NoError(t, err) {
					return
				}
				if !res.AlreadySettled {
					mu.Lock()
					fresh++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, fresh)
		assert.Equal(t, start-3, stockOf(t, db, "steak"))
	})

	t.Run("FailedOrderNeverPaid", func(t *testing.T) {
		id := newOrder(1)
		start := stockOf(t, db, "steak")

		changed, err := repo.MarkFailed(ctx, id)
		require.NoError(t, err)
		assert.True(t, changed)

		res, err := repo.CompleteAndAdjustStock(ctx, id)
		require.NoError(t, err)
		assert.True(t, res.AlreadySettled)
		assert.Equal(t, StatusFailed, res.Status)
		assert.Equal(t, start, stockOf(t, db, "steak"))
	})

	t.Run("SessionLookup", func(t *testing.T) {
		id := newOrder(1)
		require.NoError(t, repo.AttachSession(ctx, id, "cs_integration_1"))

		got, err := repo.FindBySessionID(ctx, "cs_integration_1")
		require.NoError(t, err)
		assert.Equal(t, id, got)
	})
}
