package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskMarketplaceSync pulls marketplace facts for one or all clients.
	TaskMarketplaceSync = "etl:marketplace_sync"
	// TaskMarginRollup backfills daily margin metrics.
	TaskMarginRollup = "etl:margin_rollup"
)

// MarketplaceSyncPayload scopes a sync task. ClientID zero means every
// active client. WindowDays bounds how far back facts are pulled.
type MarketplaceSyncPayload struct {
	ClientID   int64 `json:"client_id"`
	WindowDays int   `json:"window_days"`
}

// MarginRollupPayload scopes a rollup task. ClientID zero means every
// active client.
type MarginRollupPayload struct {
	ClientID int64 `json:"client_id"`
}

// NewMarketplaceSyncTask constructs an Asynq task. Sync tasks are never
// retried; imports are idempotent and the next cron run covers the gap.
func NewMarketplaceSyncTask(payload MarketplaceSyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMarketplaceSync, data, asynq.MaxRetry(0)), nil
}

// NewMarginRollupTask constructs an Asynq task.
func NewMarginRollupTask(payload MarginRollupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMarginRollup, data, asynq.MaxRetry(0)), nil
}
