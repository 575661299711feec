package clients

import (
	"errors"
	"time"
)

// ErrNotFound indicates the client does not exist.
var ErrNotFound = errors.New("clients: not found")

// ErrDuplicateName indicates another client already uses the name.
var ErrDuplicateName = errors.New("clients: name already taken")

// Client is a seller account whose marketplace data we import and aggregate.
type Client struct {
	ID           int64
	Name         string
	OzonClientID string
	OzonAPIKey   string
	WBAPIKey     string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasOzon reports whether Ozon credentials are configured.
func (c Client) HasOzon() bool {
	return c.OzonClientID != "" && c.OzonAPIKey != ""
}

// HasWildberries reports whether Wildberries credentials are configured.
func (c Client) HasWildberries() bool {
	return c.WBAPIKey != ""
}
