package margin

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sellerpulse/sellerpulse/internal/catalog"
	"github.com/sellerpulse/sellerpulse/internal/orders"
	"github.com/sellerpulse/sellerpulse/internal/platform/db"
	"github.com/sellerpulse/sellerpulse/internal/transactions"
)

// Repository is the persistence surface the margin service needs.
type Repository interface {
	// WithTx runs fn inside one database transaction: the per-date
	// aggregation envelope. Any error rolls back everything fn wrote.
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	LatestMetricDate(ctx context.Context, clientID int64) (time.Time, bool, error)
	OrderDateBounds(ctx context.Context, clientID int64) (time.Time, time.Time, bool, error)
	MetricsRange(ctx context.Context, clientID int64, from, to time.Time) ([]DailyMetric, error)
}

// TxRepository reads facts and writes the metric row inside the envelope.
type TxRepository interface {
	OrderLines(ctx context.Context, clientID int64, date time.Time) ([]orders.Line, error)
	Transactions(ctx context.Context, clientID int64, date time.Time) ([]transactions.Transaction, error)
	ProductSnapshot(ctx context.Context, clientID int64) ([]catalog.Product, error)
	UpsertMetric(ctx context.Context, m DailyMetric) error
}

// PgRepository implements Repository on PostgreSQL, delegating fact reads
// to the fact packages' repositories.
type PgRepository struct {
	pool     *pgxpool.Pool
	orders   *orders.Repository
	txns     *transactions.Repository
	products *catalog.Repository
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, ordersRepo *orders.Repository, txnsRepo *transactions.Repository, productsRepo *catalog.Repository) *PgRepository {
	return &PgRepository{pool: pool, orders: ordersRepo, txns: txnsRepo, products: productsRepo}
}

var _ Repository = (*PgRepository)(nil)

// WithTx opens the per-date transaction envelope.
func (r *PgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx, repo: r})
	})
}

// LatestMetricDate returns the newest date present in the metrics table.
func (r *PgRepository) LatestMetricDate(ctx context.Context, clientID int64) (time.Time, bool, error) {
	var latest pgtype.Date
	err := r.pool.QueryRow(ctx,
		`SELECT MAX(metric_date) FROM daily_metrics WHERE client_id = $1`, clientID).Scan(&latest)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("margin: latest metric date: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}
	return latest.Time, true, nil
}

// OrderDateBounds returns the earliest and latest order fact dates.
func (r *PgRepository) OrderDateBounds(ctx context.Context, clientID int64) (time.Time, time.Time, bool, error) {
	earliest, latest, err := r.orders.DateBounds(ctx, clientID)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	if earliest.IsZero() {
		return time.Time{}, time.Time{}, false, nil
	}
	return earliest, latest, true, nil
}

// MetricsRange returns metric rows for a client between two dates inclusive.
func (r *PgRepository) MetricsRange(ctx context.Context, clientID int64, from, to time.Time) ([]DailyMetric, error) {
	const query = `
		SELECT client_id, metric_date, orders_count, revenue, returns, cogs,
			commission, shipping, other_expenses, profit, margin_percent, computed_at
		FROM daily_metrics
		WHERE client_id = $1 AND metric_date BETWEEN $2 AND $3
		ORDER BY metric_date`

	rows, err := r.pool.Query(ctx, query, clientID, from, to)
	if err != nil {
		return nil, fmt.Errorf("margin: metrics range: %w", err)
	}
	defer rows.Close()

	out := make([]DailyMetric, 0)
	for rows.Next() {
		var m DailyMetric
		if err := rows.Scan(&m.ClientID, &m.Date, &m.OrdersCount, &m.Revenue, &m.Returns, &m.COGS,
			&m.Commission, &m.Shipping, &m.OtherExpenses, &m.Profit, &m.MarginPercent, &m.ComputedAt); err != nil {
			return nil, fmt.Errorf("margin: scan metric: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("margin: rows: %w", err)
	}
	return out, nil
}

type pgTxRepository struct {
	tx   pgx.Tx
	repo *PgRepository
}

func (t *pgTxRepository) OrderLines(ctx context.Context, clientID int64, date time.Time) ([]orders.Line, error) {
	return t.repo.orders.ListByDate(ctx, t.tx, clientID, date)
}

func (t *pgTxRepository) Transactions(ctx context.Context, clientID int64, date time.Time) ([]transactions.Transaction, error) {
	return t.repo.txns.ListByDate(ctx, t.tx, clientID, date)
}

func (t *pgTxRepository) ProductSnapshot(ctx context.Context, clientID int64) ([]catalog.Product, error) {
	return t.repo.products.Snapshot(ctx, t.tx, clientID)
}

// UpsertMetric overwrites all computed fields on conflict, keeping the
// metric row a pure function of the facts.
func (t *pgTxRepository) UpsertMetric(ctx context.Context, m DailyMetric) error {
	const query = `
		INSERT INTO daily_metrics (
			client_id, metric_date, orders_count, revenue, returns, cogs,
			commission, shipping, other_expenses, profit, margin_percent, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (client_id, metric_date) DO UPDATE SET
			orders_count = EXCLUDED.orders_count,
			revenue = EXCLUDED.revenue,
			returns = EXCLUDED.returns,
			cogs = EXCLUDED.cogs,
			commission = EXCLUDED.commission,
			shipping = EXCLUDED.shipping,
			other_expenses = EXCLUDED.other_expenses,
			profit = EXCLUDED.profit,
			margin_percent = EXCLUDED.margin_percent,
			computed_at = NOW()`

	_, err := t.tx.Exec(ctx, query,
		m.ClientID, m.Date, m.OrdersCount, m.Revenue, m.Returns, m.COGS,
		m.Commission, m.Shipping, m.OtherExpenses, m.Profit, m.MarginPercent,
	)
	if err != nil {
		return fmt.Errorf("margin: upsert metric: %w", err)
	}
	return nil
}
