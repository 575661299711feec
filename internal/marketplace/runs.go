package marketplace

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RunRepository persists sync runs in PostgreSQL.
type RunRepository struct {
	pool *pgxpool.Pool
}

// NewRunRepository constructs a repository.
func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

var _ RunSink = (*RunRepository)(nil)

// Start inserts the run in its running state.
func (r *RunRepository) Start(ctx context.Context, run *SyncRun) error {
	const q = `
		INSERT INTO sync_runs (id, client_id, source, status, started_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.pool.Exec(ctx, q, run.ID, run.ClientID, run.Source, run.Status, run.StartedAt); err != nil {
		return fmt.Errorf("marketplace: insert sync run: %w", err)
	}
	return nil
}

// Finish records the outcome and counters.
func (r *RunRepository) Finish(ctx context.Context, run *SyncRun) error {
	const q = `
		UPDATE sync_runs
		SET status = $2,
		    products = $3,
		    order_lines = $4,
		    transactions = $5,
		    error = NULLIF($6, ''),
		    finished_at = $7
		WHERE id = $1`
	if _, err := r.pool.Exec(ctx, q,
		run.ID, run.Status, run.Products, run.OrderLines, run.Transactions, run.Error, run.FinishedAt); err != nil {
		return fmt.Errorf("marketplace: update sync run: %w", err)
	}
	return nil
}

// Recent returns the latest runs for a client, newest first.
func (r *RunRepository) Recent(ctx context.Context, clientID int64, limit int) ([]SyncRun, error) {
	const q = `
		SELECT id, client_id, source, status, products, order_lines,
		       transactions, COALESCE(error, ''), started_at, finished_at
		FROM sync_runs
		WHERE client_id = $1
		ORDER BY started_at DESC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, q, clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("marketplace: list sync runs: %w", err)
	}
	defer rows.Close()

	var out []SyncRun
	for rows.Next() {
		var run SyncRun
		if err := rows.Scan(&run.ID, &run.ClientID, &run.Source, &run.Status,
			&run.Products, &run.OrderLines, &run.Transactions, &run.Error,
			&run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("marketplace: scan sync run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
