package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for order facts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert writes a batch of order lines keyed by (client, marketplace,
// order id, sku). Re-importing the same page is a no-op apart from
// updated_at, which keeps marketplace sync idempotent.
func (r *Repository) Upsert(ctx context.Context, lines []Line) (int64, error) {
	if len(lines) == 0 {
		return 0, nil
	}

	const query = `
		INSERT INTO order_lines (
			client_id, marketplace, order_id, sku, barcode,
			quantity, price, line_type, order_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (client_id, marketplace, order_id, sku) DO UPDATE SET
			barcode = EXCLUDED.barcode,
			quantity = EXCLUDED.quantity,
			price = EXCLUDED.price,
			line_type = EXCLUDED.line_type,
			order_date = EXCLUDED.order_date,
			updated_at = NOW()`

	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(query,
			l.ClientID, l.Marketplace, l.OrderID, l.SKU, l.Barcode,
			l.Quantity, l.Price, string(l.Type), l.OrderDate,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	var written int64
	for range lines {
		tag, err := results.Exec()
		if err != nil {
			return written, fmt.Errorf("orders: upsert batch: %w", err)
		}
		written += tag.RowsAffected()
	}
	return written, nil
}

// ListByDate returns all order lines for a client on one calendar date.
// The tx argument lets the margin rollup read inside its date envelope.
func (r *Repository) ListByDate(ctx context.Context, tx pgx.Tx, clientID int64, date time.Time) ([]Line, error) {
	const query = `
		SELECT id, client_id, marketplace, order_id, sku, barcode,
			quantity, price, line_type, order_date, created_at, updated_at
		FROM order_lines
		WHERE client_id = $1 AND order_date = $2
		ORDER BY id`

	rows, err := tx.Query(ctx, query, clientID, date)
	if err != nil {
		return nil, fmt.Errorf("orders: list by date: %w", err)
	}
	defer rows.Close()

	out := make([]Line, 0)
	for rows.Next() {
		var l Line
		var lineType string
		if err := rows.Scan(&l.ID, &l.ClientID, &l.Marketplace, &l.OrderID, &l.SKU, &l.Barcode,
			&l.Quantity, &l.Price, &lineType, &l.OrderDate, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("orders: scan: %w", err)
		}
		l.Type = LineType(lineType)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("orders: rows: %w", err)
	}
	return out, nil
}

// DateBounds returns the earliest and latest order date for a client.
// Both are zero when the client has no order facts yet.
func (r *Repository) DateBounds(ctx context.Context, clientID int64) (time.Time, time.Time, error) {
	const query = `SELECT MIN(order_date), MAX(order_date) FROM order_lines WHERE client_id = $1`

	var earliest, latest pgtype.Date
	if err := r.pool.QueryRow(ctx, query, clientID).Scan(&earliest, &latest); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("orders: date bounds: %w", err)
	}
	if !earliest.Valid || !latest.Valid {
		return time.Time{}, time.Time{}, nil
	}
	return earliest.Time, latest.Time, nil
}

// SoldQuantities returns total sold quantity per SKU over the trailing
// window ending at asOf, used for replenishment advice.
func (r *Repository) SoldQuantities(ctx context.Context, clientID int64, asOf time.Time, windowDays int) (map[string]int64, error) {
	const query = `
		SELECT sku, COALESCE(SUM(quantity), 0)
		FROM order_lines
		WHERE client_id = $1 AND line_type = 'sale'
			AND order_date > $2::date - $3 AND order_date <= $2
		GROUP BY sku`

	rows, err := r.pool.Query(ctx, query, clientID, asOf, windowDays)
	if err != nil {
		return nil, fmt.Errorf("orders: sold quantities: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var sku string
		var qty int64
		if err := rows.Scan(&sku, &qty); err != nil {
			return nil, fmt.Errorf("orders: scan: %w", err)
		}
		out[sku] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("orders: rows: %w", err)
	}
	return out, nil
}
