package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tramitia/process-tracker/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// List returns every notification, oldest first
func (r *NotificationRepository) List(ctx context.Context) ([]domain.Notification, error) {
	var notifications []domain.Notification
	err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

// Upsert inserts new notifications and overwrites existing ones by id
func (r *NotificationRepository) Upsert(ctx context.Context, tx *gorm.DB, notifications []domain.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	err := conn(r.db, tx).WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&notifications).Error
	if err != nil {
		return fmt.Errorf("failed to save notifications: %w", err)
	}
	return nil
}

func (r *NotificationRepository) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	err := conn(r.db, tx).WithContext(ctx).Delete(&domain.Notification{}, "id = ?", id).Error
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("read = ?", false).
		Count(&count).Error
	return int(count), err
}
