package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/sellerpulse/sellerpulse/internal/jobs"
	"github.com/sellerpulse/sellerpulse/internal/margin"
)

// Backfiller runs the margin aggregation for one client.
type Backfiller interface {
	Backfill(ctx context.Context, clientID int64) (margin.BackfillSummary, error)
}

// MarginRollupJob aggregates daily metrics for pending dates.
type MarginRollupJob struct {
	Margin  Backfiller
	Clients ClientDirectory
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewMarginRollupJob wires dependencies for the rollup handler.
func NewMarginRollupJob(backfiller Backfiller, directory ClientDirectory, logger *slog.Logger, metrics *jobmetrics.Metrics) *MarginRollupJob {
	return &MarginRollupJob{
		Margin:  backfiller,
		Clients: directory,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes margin rollup tasks. Each client's backfill already
// skips failed dates internally, so a hard error here means the client
// could not be processed at all; the remaining clients still run.
func (j *MarginRollupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Margin == nil || j.Clients == nil {
		return errors.New("margin rollup: handler not configured")
	}
	var payload MarginRollupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskMarginRollup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	scope, err := j.resolveClients(ctx, payload.ClientID)
	if err != nil {
		resultErr = err
		return resultErr
	}

	logger := j.logger()
	start := j.now()
	aggregated := 0
	failedClients := 0
	for _, client := range scope {
		summary, err := j.Margin.Backfill(ctx, client.ID)
		if err != nil {
			failedClients++
			logger.Error("client rollup failed",
				slog.Int64("client_id", client.ID),
				slog.Any("error", err))
			continue
		}
		aggregated += summary.Aggregated
		label := strconv.FormatInt(client.ID, 10)
		j.metrics().AddUncosted(label, summary.UncostedLines)
		j.metrics().AddSkippedDates(label, len(summary.FailedDates))
	}

	logger.Info("margin rollup batch finished",
		slog.Int("clients", len(scope)),
		slog.Int("dates_aggregated", aggregated),
		slog.Int("failed_clients", failedClients),
		slog.Duration("duration", time.Since(start)))
	if failedClients > 0 {
		resultErr = fmt.Errorf("margin rollup: %d of %d clients failed", failedClients, len(scope))
	}
	return resultErr
}

func (j *MarginRollupJob) resolveClients(ctx context.Context, clientID int64) ([]clientScope, error) {
	if clientID > 0 {
		c, err := j.Clients.Get(ctx, clientID)
		if err != nil {
			return nil, fmt.Errorf("margin rollup: client %d: %w", clientID, err)
		}
		return []clientScope{{ID: c.ID}}, nil
	}
	active, err := j.Clients.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("margin rollup: list clients: %w", err)
	}
	scope := make([]clientScope, 0, len(active))
	for _, c := range active {
		scope = append(scope, clientScope{ID: c.ID})
	}
	return scope, nil
}

type clientScope struct {
	ID int64
}

func (j *MarginRollupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskMarginRollup))
	}
	return slog.Default().With(slog.String("job", TaskMarginRollup))
}

func (j *MarginRollupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *MarginRollupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
