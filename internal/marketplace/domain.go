package marketplace

import (
	"time"

	"github.com/google/uuid"
)

// Marketplace source identifiers as stored on fact rows.
const (
	SourceOzon        = "ozon"
	SourceWildberries = "wildberries"
)

// Run statuses.
const (
	RunRunning = "running"
	RunSuccess = "success"
	RunFailed  = "failed"
)

// SyncRun records one import attempt against one marketplace for one
// client. Rows are diagnostic; the facts themselves are idempotent
// upserts, so a failed run can simply be repeated.
type SyncRun struct {
	ID           uuid.UUID
	ClientID     int64
	Source       string
	Status       string
	Products     int64
	OrderLines   int64
	Transactions int64
	Error        string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// SyncReport aggregates the runs of one client sync.
type SyncReport struct {
	ClientID int64     `json:"client_id"`
	Runs     []SyncRun `json:"runs"`
}

// Failed reports whether any source failed.
func (r SyncReport) Failed() bool {
	for _, run := range r.Runs {
		if run.Status == RunFailed {
			return true
		}
	}
	return false
}
