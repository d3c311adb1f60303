package repository

import (
	"context"
	"fmt"

	"github.com/tramitia/process-tracker/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProcessRepository persists processes together with their documents
type ProcessRepository struct {
	db *gorm.DB
}

func NewProcessRepository(db *gorm.DB) *ProcessRepository {
	return &ProcessRepository{db: db}
}

func (r *ProcessRepository) List(ctx context.Context) ([]domain.Process, error) {
	var processes []domain.Process
	err := r.db.WithContext(ctx).
		Preload("Documents", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Order("created_at DESC").
		Find(&processes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}
	return processes, nil
}

// Save upserts the process row and replaces its document list. Documents are
// owned by exactly one process so a full replace keeps the two in step.
func (r *ProcessRepository) Save(ctx context.Context, tx *gorm.DB, process *domain.Process) error {
	db := conn(r.db, tx).WithContext(ctx)

	if err := db.Omit(clause.Associations).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(process).Error; err != nil {
		return fmt.Errorf("failed to save process: %w", err)
	}

	if err := db.Where("process_id = ?", process.ID).Delete(&domain.Document{}).Error; err != nil {
		return fmt.Errorf("failed to clear documents: %w", err)
	}
	if len(process.Documents) == 0 {
		return nil
	}
	docs := make([]domain.Document, len(process.Documents))
	copy(docs, process.Documents)
	for i := range docs {
		docs[i].ProcessID = process.ID
	}
	if err := db.Create(&docs).Error; err != nil {
		return fmt.Errorf("failed to save documents: %w", err)
	}
	return nil
}
