package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tramitia/process-tracker/internal/catalog"
	"github.com/tramitia/process-tracker/internal/domain"
	"go.uber.org/zap"
)

// ListPrices returns the price entries matching filter.
func (s *TrackingService) ListPrices(filter catalog.PriceFilter) []domain.PriceEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pricing.List(filter)
}

// GetPrice returns one price entry.
func (s *TrackingService) GetPrice(id uuid.UUID) (domain.PriceEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pricing.Get(id)
}

// PriceCategories returns the distinct categories in use.
func (s *TrackingService) PriceCategories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pricing.Categories()
}

// CreatePrice adds a price entry and reconciles.
func (s *TrackingService) CreatePrice(ctx context.Context, entry domain.PriceEntry) (domain.PriceEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.pricing.Snapshot()
	created, err := s.pricing.Add(entry)
	if err != nil {
		return domain.PriceEntry{}, err
	}
	if err := s.store.SavePriceEntries(ctx, []domain.PriceEntry{created}); err != nil {
		s.pricing.Restore(snapshot)
		return domain.PriceEntry{}, fmt.Errorf("failed to save price entry: %w", err)
	}

	s.logger.Info("price entry created",
		zap.String("priceId", created.ID.String()),
		zap.String("serviceName", created.ServiceName),
		zap.String("price", created.Price.StringFixed(2)))
	s.reconcileAfterChange(ctx, "price created")
	return created, nil
}

// UpdatePrice replaces a price entry and reconciles.
func (s *TrackingService) UpdatePrice(ctx context.Context, entry domain.PriceEntry) (domain.PriceEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.pricing.Snapshot()
	updated, err := s.pricing.Update(entry)
	if err != nil {
		return domain.PriceEntry{}, err
	}
	if err := s.store.SavePriceEntries(ctx, []domain.PriceEntry{updated}); err != nil {
		s.pricing.Restore(snapshot)
		return domain.PriceEntry{}, fmt.Errorf("failed to save price entry: %w", err)
	}

	s.logger.Info("price entry updated",
		zap.String("priceId", updated.ID.String()),
		zap.String("price", updated.Price.StringFixed(2)),
		zap.Bool("active", updated.Active))
	s.reconcileAfterChange(ctx, "price updated")
	return updated, nil
}

// DeletePrice removes a price entry and reconciles.
func (s *TrackingService) DeletePrice(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.pricing.Snapshot()
	if _, err := s.pricing.Remove(id); err != nil {
		return err
	}
	if err := s.store.DeletePriceEntry(ctx, id); err != nil {
		s.pricing.Restore(snapshot)
		return fmt.Errorf("failed to delete price entry: %w", err)
	}

	s.logger.Info("price entry deleted", zap.String("priceId", id.String()))
	s.reconcileAfterChange(ctx, "price deleted")
	return nil
}

// ApplyPriceIncrease raises every active price matching filter by percent.
// The increase is stored in one batch; if the store refuses it no price
// changes.
func (s *TrackingService) ApplyPriceIncrease(ctx context.Context, percent decimal.Decimal, filter catalog.CategoryFilter) ([]domain.PriceEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.pricing.Snapshot()
	updated, err := s.pricing.ApplyIncrease(percent, filter)
	if err != nil {
		return nil, err
	}
	if len(updated) == 0 {
		return updated, nil
	}
	if err := s.store.SavePriceEntries(ctx, updated); err != nil {
		s.pricing.Restore(snapshot)
		return nil, fmt.Errorf("failed to save price increase: %w", err)
	}

	category, scoped := filter.Category()
	s.logger.Info("price increase applied",
		zap.String("percent", percent.String()),
		zap.String("category", category),
		zap.Bool("scoped", scoped),
		zap.Int("updated", len(updated)))
	s.reconcileAfterChange(ctx, "price increase")
	return updated, nil
}
