package margin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sellerpulse/sellerpulse/internal/transactions"
)

// Service runs the daily margin aggregation: one date at a time, each date
// inside its own transaction envelope, gaps backfilled by comparing the
// metrics table against the order facts.
type Service struct {
	repo       Repository
	classifier transactions.Classifier
	cache      *Cache
	logger     *slog.Logger
	clock      func() time.Time
}

// NewService wires the aggregation service. The cache may be nil; range
// queries then hit the database directly.
func NewService(repo Repository, classifier transactions.Classifier, cache *Cache, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		classifier: classifier,
		cache:      cache,
		logger:     logger,
		clock:      func() time.Time { return time.Now().UTC() },
	}
}

// AggregateDate recomputes the metric row for one (client, date). The
// whole read-compute-write cycle runs in a single transaction; any error
// rolls the date back without partial writes.
func (s *Service) AggregateDate(ctx context.Context, clientID int64, date time.Time) (*DailyMetric, ComputeStats, error) {
	date = truncateToDay(date)

	var metric DailyMetric
	var stats ComputeStats
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lines, err := tx.OrderLines(ctx, clientID, date)
		if err != nil {
			return err
		}
		txns, err := tx.Transactions(ctx, clientID, date)
		if err != nil {
			return err
		}
		products, err := tx.ProductSnapshot(ctx, clientID)
		if err != nil {
			return err
		}

		metric, stats = Compute(clientID, date, lines, txns, NewCostResolver(products), s.classifier)
		metric.ComputedAt = s.clock()
		return tx.UpsertMetric(ctx, metric)
	})
	if err != nil {
		return nil, stats, fmt.Errorf("margin: aggregate %s: %w", date.Format("2006-01-02"), err)
	}

	if stats.UncostedLines > 0 {
		s.logger.Warn("sale lines without cost basis",
			slog.Int64("client_id", clientID),
			slog.String("date", date.Format("2006-01-02")),
			slog.Int("lines", stats.UncostedLines))
	}
	return &metric, stats, nil
}

// Backfill determines which dates still need aggregation and processes
// them oldest first. A failed date is rolled back, logged and skipped so
// one bad day never blocks the rest of the batch.
func (s *Service) Backfill(ctx context.Context, clientID int64) (BackfillSummary, error) {
	summary := BackfillSummary{ClientID: clientID}

	from, to, err := s.pendingRange(ctx, clientID)
	if err != nil {
		return summary, err
	}
	if from.IsZero() {
		s.logger.Debug("metrics already caught up", slog.Int64("client_id", clientID))
		return summary, nil
	}
	summary.From = from.Format("2006-01-02")
	summary.To = to.Format("2006-01-02")

	for date := from; !date.After(to); date = date.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		_, stats, err := s.AggregateDate(ctx, clientID, date)
		if err != nil {
			summary.FailedDates = append(summary.FailedDates, date.Format("2006-01-02"))
			s.logger.Error("date aggregation failed, continuing",
				slog.Int64("client_id", clientID),
				slog.String("date", date.Format("2006-01-02")),
				slog.Any("error", err))
			continue
		}
		summary.Aggregated++
		summary.UncostedLines += stats.UncostedLines
	}

	if s.cache != nil && summary.Aggregated > 0 {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("metric cache bump failed", slog.Any("error", err))
		}
	}
	return summary, nil
}

// Plan reports the date range a backfill would cover without running it.
func (s *Service) Plan(ctx context.Context, clientID int64) (BackfillSummary, error) {
	summary := BackfillSummary{ClientID: clientID}
	from, to, err := s.pendingRange(ctx, clientID)
	if err != nil {
		return summary, err
	}
	if !from.IsZero() {
		summary.From = from.Format("2006-01-02")
		summary.To = to.Format("2006-01-02")
	}
	return summary, nil
}

// pendingRange compares the newest metric date with the order fact bounds.
// It returns zero times when there is nothing to do.
func (s *Service) pendingRange(ctx context.Context, clientID int64) (time.Time, time.Time, error) {
	earliest, latest, haveOrders, err := s.repo.OrderDateBounds(ctx, clientID)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !haveOrders {
		return time.Time{}, time.Time{}, nil
	}

	lastMetric, haveMetrics, err := s.repo.LatestMetricDate(ctx, clientID)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	start := truncateToDay(earliest)
	if haveMetrics {
		start = truncateToDay(lastMetric).AddDate(0, 0, 1)
	}
	end := truncateToDay(latest)
	if start.After(end) {
		return time.Time{}, time.Time{}, nil
	}
	return start, end, nil
}

// MetricsRange returns metric rows for a date range, cached when a cache
// is configured.
func (s *Service) MetricsRange(ctx context.Context, clientID int64, from, to time.Time) ([]DailyMetric, error) {
	from, to = truncateToDay(from), truncateToDay(to)
	if from.After(to) {
		return nil, fmt.Errorf("margin: %w: from is after to", ErrBadRange)
	}

	if s.cache == nil {
		return s.repo.MetricsRange(ctx, clientID, from, to)
	}

	key, err := s.cache.Key(ctx, clientID, from, to)
	if err != nil {
		return nil, err
	}
	var out []DailyMetric
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.repo.MetricsRange(ctx, clientID, from, to)
	})
	return out, err
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
