package order_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/order-maintenance/internal/config"
	"github.com/vasiliy-maslov/order-maintenance/internal/db"
	"github.com/vasiliy-maslov/order-maintenance/internal/order"
)

var testDB *pgxpool.Pool

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// The repository tests need a disposable Postgres; they are skipped unless
// DB_HOST_TEST is set.
func TestMain(m *testing.M) {
	if os.Getenv("DB_HOST_TEST") == "" {
		os.Exit(m.Run())
	}

	cfg := config.PostgresConfig{
		Host:            os.Getenv("DB_HOST_TEST"),
		Port:            envOr("DB_PORT_TEST", "5432"),
		User:            envOr("DB_USER_TEST", "postgres"),
		Password:        envOr("DB_PASSWORD_TEST", "123456"),
		DBName:          envOr("DB_NAME_TEST", "orders_test"),
		SSLMode:         envOr("DB_SSLMODE_TEST", "disable"),
		Schema:          "order_service",
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
		MigrationsPath:  "../../migrations",
	}

	if _, err := db.ApplyMigrations(cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate test database")
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pg, err := db.New(connectCtx, cfg)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Str("db_host", cfg.Host).Msg("Failed to connect to test database")
	}
	testDB = pg.Pool

	exitCode := m.Run()

	pg.Close()
	os.Exit(exitCode)
}

func setupRepository(t *testing.T) *order.PostgresRepository {
	t.Helper()
	if testDB == nil {
		t.Skip("DB_HOST_TEST not set")
	}

	truncate := func() {
		_, err := testDB.Exec(context.Background(), "TRUNCATE TABLE order_service.order_status_history, order_service.orders")
		require.NoError(t, err, "failed to truncate tables")
	}
	truncate()
	t.Cleanup(truncate)

	return order.NewRepository(testDB)
}

func TestPostgresRepository_CreateAndList(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	prev := order.StatusPending
	o := &order.Order{
		UserID:      uuid.Must(uuid.NewV4()),
		Status:      "confirmee",
		TotalAmount: 23.4,
		CreatedAt:   time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond),
	}
	history := []order.StatusHistoryEntry{
		{Status: order.StatusPending, Comment: "placed", CreatedAt: o.CreatedAt},
		{Status: order.StatusConfirmed, PreviousStatus: &prev, Comment: "accepted", CreatedAt: o.CreatedAt.Add(time.Minute)},
	}

	id, err := repo.CreateOrder(ctx, o, history)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)
	assert.Equal(t, id, o.ID)

	orders, err := repo.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, order.OrderStatus("confirmee"), orders[0].Status)
	assert.InDelta(t, 23.4, orders[0].TotalAmount, 0.001)

	entries, err := repo.HistoryByOrder(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Nil(t, entries[0].PreviousStatus)
	require.NotNil(t, entries[1].PreviousStatus)
	assert.Equal(t, order.StatusPending, *entries[1].PreviousStatus)
	assert.Nil(t, entries[1].ChangedBy)
}

func TestPostgresRepository_StagedWritesNeedFlush(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	o := &order.Order{UserID: uuid.Must(uuid.NewV4()), Status: "xyz"}
	_, err := repo.CreateOrder(ctx, o, nil)
	require.NoError(t, err)

	o.Status = order.StatusPending
	require.NoError(t, repo.SaveStatus(ctx, o))
	require.NoError(t, repo.SaveHistory(ctx, &order.StatusHistoryEntry{
		OrderID:   o.ID,
		Status:    order.StatusPending,
		Comment:   "backfill",
		CreatedAt: time.Now().UTC(),
	}))

	orders, err := repo.ListOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, order.OrderStatus("xyz"), orders[0].Status, "nothing visible before flush")

	require.NoError(t, repo.Flush(ctx))

	orders, err = repo.ListOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, orders[0].Status)

	entries, err := repo.HistoryByOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, repo.Flush(ctx), "empty flush is a no-op")
}

func TestPostgresRepository_FlushMissingOrder(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	ghost := &order.Order{ID: uuid.Must(uuid.NewV4()), Status: order.StatusReady}
	require.NoError(t, repo.SaveStatus(ctx, ghost))

	err := repo.Flush(ctx)
	require.ErrorIs(t, err, order.ErrOrderNotFound)

	require.NoError(t, repo.SaveHistory(ctx, &order.StatusHistoryEntry{
		OrderID:   ghost.ID,
		Status:    order.StatusReady,
		CreatedAt: time.Now().UTC(),
	}))
	err = repo.Flush(ctx)
	require.ErrorIs(t, err, order.ErrOrderNotFound)
}
