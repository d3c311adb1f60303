package repository

import (
	"context"
	"fmt"

	"github.com/tramitia/process-tracker/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BudgetRepository persists budgets together with their items
type BudgetRepository struct {
	db *gorm.DB
}

func NewBudgetRepository(db *gorm.DB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

func (r *BudgetRepository) List(ctx context.Context) ([]domain.Budget, error) {
	var budgets []domain.Budget
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("display_order ASC")
		}).
		Order("number ASC").
		Find(&budgets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	return budgets, nil
}

// Save upserts the budget row and replaces its items
func (r *BudgetRepository) Save(ctx context.Context, tx *gorm.DB, budget *domain.Budget) error {
	db := conn(r.db, tx).WithContext(ctx)

	if err := db.Omit(clause.Associations).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(budget).Error; err != nil {
		return fmt.Errorf("failed to save budget: %w", err)
	}

	if err := db.Where("budget_id = ?", budget.ID).Delete(&domain.BudgetItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear budget items: %w", err)
	}
	if len(budget.Items) == 0 {
		return nil
	}
	items := make([]domain.BudgetItem, len(budget.Items))
	copy(items, budget.Items)
	for i := range items {
		items[i].BudgetID = budget.ID
	}
	if err := db.Create(&items).Error; err != nil {
		return fmt.Errorf("failed to save budget items: %w", err)
	}
	return nil
}
