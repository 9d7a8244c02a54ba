package ledger

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Helpers
// ==========================

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	return redis.NewClient(&redis.Options{Addr: mr.Addr()}), mr
}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// ==========================
// Shared contract
// ==========================

func TestLedger_TotalsAreAdditivePerSession(t *testing.T) {
	client, _ := setupRedis(t)
	ledgers := map[string]Ledger{
		"memory": NewMemoryLedger(),
		"redis":  NewRedisLedger(client, "test:cost:", time.Hour),
	}

	for name, l := range ledgers {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			total, err := l.Total(ctx, "a")
			require.NoError(t, err)
			assert.Zero(t, total)

			costs := []float64{0.0021, 0.000345, 0, 0.0105}
			want := 0.0
			for _, c := range costs {
				want += c
				got, err := l.Add(ctx, "a", c)
				require.NoError(t, err)
				assert.InDelta(t, want, got, 1e-6)
			}

			_, err = l.Add(ctx, "b", 1.5)
			require.NoError(t, err)

			total, err = l.Total(ctx, "a")
			require.NoError(t, err)
			assert.InDelta(t, want, total, 1e-6)

			total, err = l.Total(ctx, "b")
			require.NoError(t, err)
			assert.Equal(t, 1.5, total)
		})
	}
}

func TestLedger_RejectsInvalidAmounts(t *testing.T) {
	client, _ := setupRedis(t)
	db, _ := setupMockDB(t)
	ledgers := map[string]Ledger{
		"memory":   NewMemoryLedger(),
		"redis":    NewRedisLedger(client, "test:cost:", time.Hour),
		"postgres": NewPostgresLedger(db),
	}

	for name, l := range ledgers {
		for _, amount := range []float64{-0.01, math.NaN(), math.Inf(1)} {
			_, err := l.Add(context.Background(), "s", amount)
			assert.ErrorIs(t, err, ErrInvalidAmount, name)
		}
	}
}

func TestMemoryLedger_ConcurrentAdds(t *testing.T) {
	l := NewMemoryLedger()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.Add(context.Background(), "s", 0.01)
		}()
	}
	wg.Wait()

	total, _ := l.Total(context.Background(), "s")
	assert.InDelta(t, 1.0, total, 1e-9)
}

// ==========================
// Redis
// ==========================

func TestRedisLedger_SetsTTL(t *testing.T) {
	client, mr := setupRedis(t)
	l := NewRedisLedger(client, "test:cost:", time.Hour)

	_, err := l.Add(context.Background(), "s1", 0.25)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, mr.TTL("test:cost:s1"))
}

func TestRedisLedger_ReadError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	l := NewRedisLedger(client, "test:cost:", time.Hour)

	mock.ExpectGet("test:cost:s1").SetErr(errors.New("READONLY"))

	_, err := l.Total(context.Background(), "s1")
	assert.ErrorContains(t, err, "READONLY")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLedger_AddFailsWhenRedisIsDown(t *testing.T) {
	client, mr := setupRedis(t)
	l := NewRedisLedger(client, "test:cost:", time.Hour)
	mr.Close()

	_, err := l.Add(context.Background(), "s1", 0.1)
	assert.Error(t, err)
}

// ==========================
// Postgres
// ==========================

func TestPostgresLedger_Add(t *testing.T) {
	db, mock := setupMockDB(t)
	l := NewPostgresLedger(db)

	mock.ExpectQuery(`(?s)INSERT INTO session_costs .* ON CONFLICT \(session_id\) DO UPDATE .* RETURNING total_cost`).
		WithArgs("sess-1", 0.0042).
		WillReturnRows(sqlmock.NewRows([]string{"total_cost"}).AddRow(0.0142))

	total, err := l.Add(context.Background(), "sess-1", 0.0042)
	require.NoError(t, err)
	assert.Equal(t, 0.0142, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedger_Total(t *testing.T) {
	db, mock := setupMockDB(t)
	l := NewPostgresLedger(db)

	mock.ExpectQuery(`SELECT total_cost FROM session_costs WHERE session_id = \$1`).
		WithArgs("known").
		WillReturnRows(sqlmock.NewRows([]string{"total_cost"}).AddRow(1.25))
	mock.ExpectQuery(`SELECT total_cost FROM session_costs WHERE session_id = \$1`).
		WithArgs("unknown").
		WillReturnError(sql.ErrNoRows)

	total, err := l.Total(context.Background(), "known")
	require.NoError(t, err)
	assert.Equal(t, 1.25, total)

	total, err = l.Total(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Zero(t, total)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedger_AddError(t *testing.T) {
	db, mock := setupMockDB(t)
	l := NewPostgresLedger(db)

	mock.ExpectQuery(`INSERT INTO session_costs`).
		WillReturnError(errors.New("connection refused"))

	_, err := l.Add(context.Background(), "sess-1", 0.1)
	assert.ErrorContains(t, err, "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedger_EnsureSchema(t *testing.T) {
	db, mock := setupMockDB(t)
	l := NewPostgresLedger(db)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS session_costs`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, l.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
