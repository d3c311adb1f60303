package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tramitia/process-tracker/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PriceEntryRepository persists the pricing catalog
type PriceEntryRepository struct {
	db *gorm.DB
}

func NewPriceEntryRepository(db *gorm.DB) *PriceEntryRepository {
	return &PriceEntryRepository{db: db}
}

// List returns all entries ordered by category and name
func (r *PriceEntryRepository) List(ctx context.Context) ([]domain.PriceEntry, error) {
	var entries []domain.PriceEntry
	err := r.db.WithContext(ctx).
		Order("category ASC, service_name ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list price entries: %w", err)
	}
	return entries, nil
}

// Upsert inserts or overwrites the given entries in one statement
func (r *PriceEntryRepository) Upsert(ctx context.Context, tx *gorm.DB, entries []domain.PriceEntry) error {
	if len(entries) == 0 {
		return nil
	}
	err := conn(r.db, tx).WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&entries).Error
	if err != nil {
		return fmt.Errorf("failed to save price entries: %w", err)
	}
	return nil
}

func (r *PriceEntryRepository) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	err := conn(r.db, tx).WithContext(ctx).Delete(&domain.PriceEntry{}, "id = ?", id).Error
	if err != nil {
		return fmt.Errorf("failed to delete price entry: %w", err)
	}
	return nil
}

// conn returns tx when the caller runs inside a transaction
func conn(db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}
