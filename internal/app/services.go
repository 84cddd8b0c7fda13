package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/invoicedesk/invoicedesk/internal/billing"
	"github.com/invoicedesk/invoicedesk/internal/catalog"
	"github.com/invoicedesk/invoicedesk/internal/invoices"
	"github.com/invoicedesk/invoicedesk/internal/observability"
	"github.com/invoicedesk/invoicedesk/internal/platform/db"
	"github.com/invoicedesk/invoicedesk/internal/remote"
)

// Services is the domain wiring shared by the server and the worker.
type Services struct {
	Source    invoices.Source
	Catalog   *catalog.Service
	Drafts    *invoices.DraftStore
	Invoices  *invoices.Service
	Formatter *billing.Formatter

	pool *pgxpool.Pool
}

// BuildServices connects the configured Source and assembles the services on top of it.
// metrics may be nil.
func BuildServices(ctx context.Context, cfg *Config, logger *slog.Logger, redisClient *redis.Client, metrics *observability.Metrics) (*Services, error) {
	s := &Services{}
	switch cfg.SourceDriver {
	case SourcePostgres:
		pool, err := db.New(ctx, cfg.PGDSN, db.Options{})
		if err != nil {
			return nil, err
		}
		pg := invoices.NewPGSource(pool)
		if !InTestMode() {
			if err := pg.Migrate(ctx); err != nil {
				pool.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		s.pool = pool
		s.Source = pg
	case SourceAPI:
		s.Source = remote.NewClient(cfg.RemoteAPIURL, cfg.RemoteAPIToken, cfg.RemoteAPITimeout)
	default:
		return nil, fmt.Errorf("unknown source driver %q", cfg.SourceDriver)
	}

	var recorder catalog.CacheRecorder
	var pipeline invoices.Recorder
	if metrics != nil {
		recorder = metrics
		pipeline = metrics
	}

	var shared *catalog.RedisCache
	if redisClient != nil {
		shared = catalog.NewRedisCache(redisClient, cfg.CatalogTTL, logger)
	}
	s.Catalog = catalog.NewService(s.Source, shared, cfg.CatalogTTL, recorder, logger)
	s.Drafts = invoices.NewDraftStore(redisClient, cfg.DraftTTL)
	s.Formatter = billing.NewFormatter(cfg.FormatConfig())
	s.Invoices = invoices.NewService(s.Source, s.Catalog, s.Drafts, invoices.Options{
		Formatter: s.Formatter,
		TaxMode:   cfg.InvoiceTaxMode(),
		Recorder:  pipeline,
		Logger:    logger,
	})
	return s, nil
}

// Close releases the database pool when the postgres source is in use.
func (s *Services) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}
