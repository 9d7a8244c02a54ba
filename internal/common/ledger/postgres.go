package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"agentic-assistant/migrations"
)

const addSQL = `
INSERT INTO session_costs (session_id, total_cost, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (session_id) DO UPDATE
SET total_cost = session_costs.total_cost + EXCLUDED.total_cost,
    updated_at = NOW()
RETURNING total_cost`

// PostgresLedger keeps totals in the session_costs table. The upsert adds in a single statement,
// so concurrent adds for one session serialize on the row lock.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// EnsureSchema applies the embedded migrations in file-name order. Every migration is idempotent.
func (l *PostgresLedger) EnsureSchema(ctx context.Context) error {
	files, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	for _, name := range files {
		stmt, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := l.db.ExecContext(ctx, string(stmt)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

func (l *PostgresLedger) Total(ctx context.Context, sessionID string) (float64, error) {
	var total float64
	err := l.db.QueryRowContext(ctx,
		`SELECT total_cost FROM session_costs WHERE session_id = $1`, sessionID).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read session total: %w", err)
	}
	return round6(total), nil
}

func (l *PostgresLedger) Add(ctx context.Context, sessionID string, amount float64) (float64, error) {
	if err := checkAmount(amount); err != nil {
		return 0, err
	}
	var total float64
	if err := l.db.QueryRowContext(ctx, addSQL, sessionID, amount).Scan(&total); err != nil {
		return 0, fmt.Errorf("add session cost: %w", err)
	}
	return round6(total), nil
}
