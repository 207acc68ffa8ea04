package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/domain/invoice"
	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/metrics"
	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/service/invoicing"
	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/service/scoring"
)

const vendorAmountsKeyPrefix = "vendor_amounts:"

// backingStore is the repository surface the caching layer wraps.
type backingStore interface {
	invoicing.Repository
	scoring.HistoryStore
}

// InvoiceStore wraps the invoice repository with a redis cache for the one
// hot history query, the per-vendor amount series. Writes pass through and
// invalidate the touched vendor's entry; delete-all flushes every entry.
// Cache failures degrade to the database, they are never surfaced.
type InvoiceStore struct {
	store  backingStore
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewInvoiceStore(store backingStore, client *redis.Client, ttl time.Duration, logger *zap.Logger) *InvoiceStore {
	return &InvoiceStore{
		store:  store,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func (s *InvoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	if err := s.store.Create(ctx, inv); err != nil {
		return err
	}
	s.invalidateVendor(ctx, inv.Normalized.VendorName)
	return nil
}

func (s *InvoiceStore) Update(ctx context.Context, inv *invoice.Invoice) error {
	// The vendor key may have changed in the override; without the previous
	// key the safe invalidation is everything.
	if err := s.store.Update(ctx, inv); err != nil {
		return err
	}
	s.invalidateAll(ctx)
	return nil
}

func (s *InvoiceStore) GetByID(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	return s.store.GetByID(ctx, id)
}

func (s *InvoiceStore) List(ctx context.Context, filter invoicing.ListFilter) ([]*invoice.Invoice, error) {
	return s.store.List(ctx, filter)
}

func (s *InvoiceStore) SoftDeleteAll(ctx context.Context) (int64, error) {
	deleted, err := s.store.SoftDeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	s.invalidateAll(ctx)
	return deleted, nil
}

func (s *InvoiceStore) FindDuplicateExact(ctx context.Context, normVendor, normInvoiceNumber string, excludeID uuid.UUID) (*scoring.HistoryRecord, error) {
	return s.store.FindDuplicateExact(ctx, normVendor, normInvoiceNumber, excludeID)
}

func (s *InvoiceStore) FindNearby(ctx context.Context, normVendor string, from, to time.Time, excludeID uuid.UUID) ([]scoring.HistoryRecord, error) {
	return s.store.FindNearby(ctx, normVendor, from, to, excludeID)
}

// FindAmountsForVendor serves the vendor amount series from redis when it
// can. Re-scoring calls carry an excludeID and bypass the cache, their
// series differs from the shared one.
func (s *InvoiceStore) FindAmountsForVendor(ctx context.Context, normVendor string, excludeID uuid.UUID) ([]float64, error) {
	if excludeID != uuid.Nil {
		return s.store.FindAmountsForVendor(ctx, normVendor, excludeID)
	}

	key := vendorAmountsKeyPrefix + normVendor
	if cached, err := s.client.Get(ctx, key).Result(); err == nil {
		var amounts []float64
		if err := json.Unmarshal([]byte(cached), &amounts); err == nil {
			metrics.VendorHistoryCacheHits.WithLabelValues("hit").Inc()
			return amounts, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		s.logger.Warn("vendor amounts cache read failed", zap.String("vendor", normVendor), zap.Error(err))
	}
	metrics.VendorHistoryCacheHits.WithLabelValues("miss").Inc()

	amounts, err := s.store.FindAmountsForVendor(ctx, normVendor, excludeID)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(amounts); err == nil {
		if err := s.client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
			s.logger.Warn("vendor amounts cache write failed", zap.String("vendor", normVendor), zap.Error(err))
		}
	}
	return amounts, nil
}

func (s *InvoiceStore) invalidateVendor(ctx context.Context, normVendor *string) {
	if normVendor == nil {
		return
	}
	if err := s.client.Del(ctx, vendorAmountsKeyPrefix+*normVendor).Err(); err != nil {
		s.logger.Warn("vendor amounts cache invalidation failed",
			zap.String("vendor", *normVendor), zap.Error(err))
	}
}

func (s *InvoiceStore) invalidateAll(ctx context.Context) {
	iter := s.client.Scan(ctx, 0, vendorAmountsKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			s.logger.Warn("vendor amounts cache invalidation failed",
				zap.String("key", iter.Val()), zap.Error(err))
		}
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn("vendor amounts cache scan failed", zap.Error(err))
	}
}
