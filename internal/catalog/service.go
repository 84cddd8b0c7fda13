// Package catalog serves the product and client lists used by the invoice editor.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/invoicedesk/invoicedesk/internal/billing"
	"github.com/invoicedesk/invoicedesk/internal/shared"
)

var decimalHundred = decimal.NewFromInt(100)

// Client is a customer an invoice can be addressed to.
type Client struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// Source is the part of the invoicing backend the catalog reads and writes.
type Source interface {
	ListProducts(ctx context.Context) ([]billing.Product, error)
	SaveProduct(ctx context.Context, p billing.Product) (billing.Product, error)
	ListClients(ctx context.Context) ([]Client, error)
}

// CacheRecorder observes cache hits and misses.
type CacheRecorder interface {
	CacheLookup(cache string, hit bool)
}

// Service fronts Source with two TTL caches and an optional shared Redis tier.
type Service struct {
	source   Source
	shared   *RedisCache
	products *TTLCache[billing.Product]
	clients  *TTLCache[Client]
	recorder CacheRecorder
	logger   *slog.Logger
}

// NewService builds a catalog service. shared may be nil.
func NewService(source Source, shared *RedisCache, ttl time.Duration, recorder CacheRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{source: source, shared: shared, recorder: recorder, logger: logger}
	s.products = NewTTLCache(ttl, s.loadProducts, func(p billing.Product) string { return p.ID })
	s.clients = NewTTLCache(ttl, s.loadClients, func(c Client) string { return c.ID })
	return s
}

// Products lists the catalog.
func (s *Service) Products(ctx context.Context) ([]billing.Product, error) {
	items, hit, err := s.products.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: list products: %w", err)
	}
	s.record("products", hit)
	return items, nil
}

// Product returns one catalog entry.
func (s *Service) Product(ctx context.Context, id string) (billing.Product, error) {
	p, ok, err := s.products.Get(ctx, id)
	if err != nil {
		return billing.Product{}, fmt.Errorf("catalog: get product: %w", err)
	}
	if !ok {
		return billing.Product{}, fmt.Errorf("catalog: product %s: %w", id, shared.ErrNotFound)
	}
	return p, nil
}

// Clients lists the clients.
func (s *Service) Clients(ctx context.Context) ([]Client, error) {
	items, hit, err := s.clients.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: list clients: %w", err)
	}
	s.record("clients", hit)
	return items, nil
}

// Client returns one client.
func (s *Service) Client(ctx context.Context, id string) (Client, error) {
	c, ok, err := s.clients.Get(ctx, id)
	if err != nil {
		return Client{}, fmt.Errorf("catalog: get client: %w", err)
	}
	if !ok {
		return Client{}, fmt.Errorf("catalog: client %s: %w", id, shared.ErrNotFound)
	}
	return c, nil
}

// SaveProduct validates and stores a product, then invalidates every cache tier.
func (s *Service) SaveProduct(ctx context.Context, p billing.Product) (billing.Product, error) {
	if err := validateProduct(p); err != nil {
		return billing.Product{}, err
	}
	saved, err := s.source.SaveProduct(ctx, p)
	if err != nil {
		return billing.Product{}, fmt.Errorf("catalog: save product: %w", err)
	}
	if err := s.Invalidate(ctx); err != nil {
		s.logger.Warn("catalog invalidate after save", slog.Any("error", err))
	}
	return saved, nil
}

// Invalidate drops the local snapshots and bumps the shared version.
func (s *Service) Invalidate(ctx context.Context) error {
	s.products.Invalidate()
	s.clients.Invalidate()
	return s.shared.Bump(ctx)
}

// Watch drops local snapshots whenever another instance bumps the shared version.
// It blocks until ctx is cancelled.
func (s *Service) Watch(ctx context.Context) error {
	return s.shared.Subscribe(ctx, func() {
		s.products.Invalidate()
		s.clients.Invalidate()
		s.logger.Debug("catalog invalidated by peer")
	})
}

func (s *Service) loadProducts(ctx context.Context) ([]billing.Product, error) {
	key, err := s.shared.BuildKey(ctx, "products")
	if err != nil {
		s.logger.Warn("catalog cache version unavailable", slog.String("cache", "products"), slog.Any("error", err))
		return s.source.ListProducts(ctx)
	}
	var out []billing.Product
	err = s.shared.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.source.ListProducts(ctx)
	})
	return out, err
}

func (s *Service) loadClients(ctx context.Context) ([]Client, error) {
	key, err := s.shared.BuildKey(ctx, "clients")
	if err != nil {
		s.logger.Warn("catalog cache version unavailable", slog.String("cache", "clients"), slog.Any("error", err))
		return s.source.ListClients(ctx)
	}
	var out []Client
	err = s.shared.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.source.ListClients(ctx)
	})
	return out, err
}

func (s *Service) record(cache string, hit bool) {
	if s.recorder != nil {
		s.recorder.CacheLookup(cache, hit)
	}
}

func validateProduct(p billing.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: product name is required", shared.ErrValidation)
	}
	if p.Rate.IsNegative() {
		return fmt.Errorf("%w: product rate must not be negative", shared.ErrValidation)
	}
	for _, t := range p.Taxes {
		if !t.Rate.Valid {
			return fmt.Errorf("%w: tax %q has no rate", shared.ErrValidation, t.Name)
		}
		if t.Rate.Decimal.IsNegative() || t.Rate.Decimal.GreaterThan(decimalHundred) {
			return fmt.Errorf("%w: tax %q rate must be between 0 and 100", shared.ErrValidation, t.Name)
		}
	}
	return nil
}
