package transactions

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for transaction facts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert writes a batch of transactions keyed by (client, marketplace,
// external id), so re-importing a period is idempotent.
func (r *Repository) Upsert(ctx context.Context, txns []Transaction) (int64, error) {
	if len(txns) == 0 {
		return 0, nil
	}

	const query = `
		INSERT INTO transactions (
			client_id, marketplace, external_id, type_label, amount, transaction_date, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (client_id, marketplace, external_id) DO UPDATE SET
			type_label = EXCLUDED.type_label,
			amount = EXCLUDED.amount,
			transaction_date = EXCLUDED.transaction_date`

	batch := &pgx.Batch{}
	for _, t := range txns {
		batch.Queue(query, t.ClientID, t.Marketplace, t.ExternalID, t.TypeLabel, t.Amount, t.Date)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	var written int64
	for range txns {
		tag, err := results.Exec()
		if err != nil {
			return written, fmt.Errorf("transactions: upsert batch: %w", err)
		}
		written += tag.RowsAffected()
	}
	return written, nil
}

// ListByDate returns all transactions for a client on one calendar date,
// read inside the rollup's transaction envelope.
func (r *Repository) ListByDate(ctx context.Context, tx pgx.Tx, clientID int64, date time.Time) ([]Transaction, error) {
	const query = `
		SELECT id, client_id, marketplace, external_id, type_label, amount, transaction_date, created_at
		FROM transactions
		WHERE client_id = $1 AND transaction_date = $2
		ORDER BY id`

	rows, err := tx.Query(ctx, query, clientID, date)
	if err != nil {
		return nil, fmt.Errorf("transactions: list by date: %w", err)
	}
	defer rows.Close()

	out := make([]Transaction, 0)
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.ClientID, &t.Marketplace, &t.ExternalID, &t.TypeLabel, &t.Amount, &t.Date, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("transactions: scan: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transactions: rows: %w", err)
	}
	return out, nil
}
