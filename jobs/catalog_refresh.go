package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/invoicedesk/invoicedesk/internal/billing"
	jobmetrics "github.com/invoicedesk/invoicedesk/internal/jobs"
)

// CatalogRefresher is the part of *catalog.Service the refresh job needs.
type CatalogRefresher interface {
	Invalidate(ctx context.Context) error
	Products(ctx context.Context) ([]billing.Product, error)
}

// CatalogRefreshJob bumps the shared catalog version so every instance reloads.
type CatalogRefreshJob struct {
	Catalog CatalogRefresher
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewCatalogRefreshJob wires dependencies for the refresh handler.
func NewCatalogRefreshJob(catalog CatalogRefresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *CatalogRefreshJob {
	return &CatalogRefreshJob{Catalog: catalog, Logger: logger, Metrics: metrics}
}

// Handle processes catalog refresh tasks.
func (j *CatalogRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Catalog == nil {
		return errors.New("catalog refresh: handler not configured")
	}
	var payload CatalogRefreshPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskCatalogRefresh)

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("job", TaskCatalogRefresh))

	if err := j.Catalog.Invalidate(ctx); err != nil {
		logger.Error("invalidate catalog", slog.Any("error", err))
		return tracker.End(err)
	}
	if payload.Warm {
		products, err := j.Catalog.Products(ctx)
		if err != nil {
			logger.Error("warm catalog", slog.Any("error", err))
			return tracker.End(err)
		}
		logger.Info("catalog warmed", slog.Int("products", len(products)))
	}
	return tracker.End(nil)
}
