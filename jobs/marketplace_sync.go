package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sellerpulse/sellerpulse/internal/clients"
	jobmetrics "github.com/sellerpulse/sellerpulse/internal/jobs"
	"github.com/sellerpulse/sellerpulse/internal/marketplace"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ClientDirectory resolves which seller accounts a task covers.
type ClientDirectory interface {
	Get(ctx context.Context, id int64) (*clients.Client, error)
	ListActive(ctx context.Context) ([]clients.Client, error)
}

// ClientSyncer runs the marketplace import for one client.
type ClientSyncer interface {
	SyncClient(ctx context.Context, c clients.Client, since time.Time) (marketplace.SyncReport, error)
}

// MarketplaceSyncJob imports marketplace facts on schedule or on demand.
type MarketplaceSyncJob struct {
	Importer ClientSyncer
	Clients  ClientDirectory
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewMarketplaceSyncJob wires dependencies for the sync handler.
func NewMarketplaceSyncJob(importer ClientSyncer, directory ClientDirectory, logger *slog.Logger, metrics *jobmetrics.Metrics) *MarketplaceSyncJob {
	return &MarketplaceSyncJob{
		Importer: importer,
		Clients:  directory,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes marketplace sync tasks. Clients run sequentially; a
// failed client is logged and the rest still sync.
func (j *MarketplaceSyncJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Importer == nil || j.Clients == nil {
		return errors.New("marketplace sync: handler not configured")
	}
	var payload MarketplaceSyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.WindowDays <= 0 {
		payload.WindowDays = 7
	}

	tracker := j.metrics().Track(TaskMarketplaceSync)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	scope, err := j.resolveClients(ctx, payload.ClientID)
	if err != nil {
		resultErr = err
		return resultErr
	}

	since := j.now().AddDate(0, 0, -payload.WindowDays)
	logger := j.logger()
	failed := 0
	for _, client := range scope {
		report, err := j.Importer.SyncClient(ctx, client, since)
		if err != nil {
			resultErr = err
			return resultErr
		}
		if report.Failed() {
			failed++
		}
	}
	logger.Info("marketplace sync batch finished",
		slog.Int("clients", len(scope)),
		slog.Int("failed", failed))
	if failed > 0 {
		resultErr = fmt.Errorf("marketplace sync: %d of %d clients had a failed source", failed, len(scope))
	}
	return resultErr
}

func (j *MarketplaceSyncJob) resolveClients(ctx context.Context, clientID int64) ([]clients.Client, error) {
	if clientID > 0 {
		c, err := j.Clients.Get(ctx, clientID)
		if err != nil {
			return nil, fmt.Errorf("marketplace sync: client %d: %w", clientID, err)
		}
		return []clients.Client{*c}, nil
	}
	active, err := j.Clients.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("marketplace sync: list clients: %w", err)
	}
	return active, nil
}

func (j *MarketplaceSyncJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskMarketplaceSync))
	}
	return slog.Default().With(slog.String("job", TaskMarketplaceSync))
}

func (j *MarketplaceSyncJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *MarketplaceSyncJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
