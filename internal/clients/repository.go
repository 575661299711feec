package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence for seller accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a seller account and fills in its generated fields.
func (r *Repository) Create(ctx context.Context, c *Client) error {
	const query = `
		INSERT INTO clients (name, ozon_client_id, ozon_api_key, wb_api_key, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		c.Name, c.OzonClientID, c.OzonAPIKey, c.WBAPIKey, c.Active,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateName
		}
		return fmt.Errorf("clients: create: %w", err)
	}
	return nil
}

// UpdateCredentials replaces the marketplace credentials for a client.
func (r *Repository) UpdateCredentials(ctx context.Context, c *Client) error {
	const query = `
		UPDATE clients
		SET ozon_client_id = $2,
		    ozon_api_key = $3,
		    wb_api_key = $4,
		    active = $5,
		    updated_at = now()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, c.ID, c.OzonClientID, c.OzonAPIKey, c.WBAPIKey, c.Active)
	if err != nil {
		return fmt.Errorf("clients: update %d: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get retrieves a client by ID.
func (r *Repository) Get(ctx context.Context, id int64) (*Client, error) {
	const query = `
		SELECT id, name, ozon_client_id, ozon_api_key, wb_api_key, active, created_at, updated_at
		FROM clients WHERE id = $1`

	var c Client
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.OzonClientID, &c.OzonAPIKey, &c.WBAPIKey, &c.Active, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("clients: get %d: %w", id, err)
	}
	return &c, nil
}

// ListActive returns all active clients ordered by ID.
func (r *Repository) ListActive(ctx context.Context) ([]Client, error) {
	const query = `
		SELECT id, name, ozon_client_id, ozon_api_key, wb_api_key, active, created_at, updated_at
		FROM clients WHERE active ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("clients: list active: %w", err)
	}
	defer rows.Close()

	out := make([]Client, 0)
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.Name, &c.OzonClientID, &c.OzonAPIKey, &c.WBAPIKey, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("clients: scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clients: rows: %w", err)
	}
	return out, nil
}
