package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository provides PostgreSQL backed persistence for the product catalogue.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert writes a batch of products keyed by (client, article). Cost price
// is deliberately not touched here: marketplace sync never overwrites
// operator-uploaded costs.
func (r *Repository) Upsert(ctx context.Context, products []Product) (int64, error) {
	if len(products) == 0 {
		return 0, nil
	}

	const query = `
		INSERT INTO products (client_id, article, barcode, name, stock, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (client_id, article) DO UPDATE SET
			barcode = EXCLUDED.barcode,
			name = EXCLUDED.name,
			stock = EXCLUDED.stock,
			updated_at = NOW()`

	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(query, p.ClientID, p.Article, p.Barcode, p.Name, p.Stock)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	var written int64
	for range products {
		tag, err := results.Exec()
		if err != nil {
			return written, fmt.Errorf("catalog: upsert batch: %w", err)
		}
		written += tag.RowsAffected()
	}
	return written, nil
}

// UpdateCostByArticle sets the cost price for the product matching the
// article. Returns the number of rows updated (zero when no product matches).
func (r *Repository) UpdateCostByArticle(ctx context.Context, clientID int64, article string, cost decimal.Decimal) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE products SET cost_price = $3, updated_at = NOW() WHERE client_id = $1 AND article = $2`,
		clientID, article, cost)
	if err != nil {
		return 0, fmt.Errorf("catalog: update cost by article: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpdateCostByBarcode sets the cost price for products matching the barcode.
func (r *Repository) UpdateCostByBarcode(ctx context.Context, clientID int64, barcode string, cost decimal.Decimal) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE products SET cost_price = $3, updated_at = NOW() WHERE client_id = $1 AND barcode = $2`,
		clientID, barcode, cost)
	if err != nil {
		return 0, fmt.Errorf("catalog: update cost by barcode: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Snapshot loads a client's full catalogue inside the rollup's transaction
// envelope so that every order line of the date shares one cost basis.
func (r *Repository) Snapshot(ctx context.Context, tx pgx.Tx, clientID int64) ([]Product, error) {
	const query = `
		SELECT id, client_id, article, barcode, name, cost_price, stock, updated_at
		FROM products WHERE client_id = $1`

	rows, err := tx.Query(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("catalog: snapshot: %w", err)
	}
	defer rows.Close()
	return scanProducts(rows)
}

// ListUncosted returns products without a cost price that have at least one
// sale line, i.e. products currently dragging margins down to zero cost.
func (r *Repository) ListUncosted(ctx context.Context, clientID int64) ([]Product, error) {
	const query = `
		SELECT DISTINCT p.id, p.client_id, p.article, p.barcode, p.name, p.cost_price, p.stock, p.updated_at
		FROM products p
		JOIN order_lines ol ON ol.client_id = p.client_id AND ol.sku = p.article AND ol.line_type = 'sale'
		WHERE p.client_id = $1 AND p.cost_price IS NULL
		ORDER BY p.article`

	rows, err := r.pool.Query(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list uncosted: %w", err)
	}
	defer rows.Close()
	return scanProducts(rows)
}

// List returns the client's full catalogue.
func (r *Repository) List(ctx context.Context, clientID int64) ([]Product, error) {
	const query = `
		SELECT id, client_id, article, barcode, name, cost_price, stock, updated_at
		FROM products WHERE client_id = $1 ORDER BY article`

	rows, err := r.pool.Query(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	defer rows.Close()
	return scanProducts(rows)
}

func scanProducts(rows pgx.Rows) ([]Product, error) {
	out := make([]Product, 0)
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.ClientID, &p.Article, &p.Barcode, &p.Name, &p.CostPrice, &p.Stock, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("catalog: scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: rows: %w", err)
	}
	return out, nil
}
