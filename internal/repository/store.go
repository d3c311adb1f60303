package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tramitia/process-tracker/internal/domain"
	"github.com/tramitia/process-tracker/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store persists the tracking service state in a relational database.
// Multi-row writes run in a single transaction.
type Store struct {
	db            *gorm.DB
	prices        *PriceEntryRepository
	budgets       *BudgetRepository
	processes     *ProcessRepository
	notifications *NotificationRepository
	sequences     *NumberSequenceRepository
	logger        *zap.Logger
}

var _ service.Store = (*Store)(nil)

// NewStore creates a Store on top of db
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{
		db:            db,
		prices:        NewPriceEntryRepository(db),
		budgets:       NewBudgetRepository(db),
		processes:     NewProcessRepository(db),
		notifications: NewNotificationRepository(db),
		sequences:     NewNumberSequenceRepository(db),
		logger:        logger,
	}
}

// LoadSnapshot reads every persisted entity
func (s *Store) LoadSnapshot(ctx context.Context) (*service.Snapshot, error) {
	prices, err := s.prices.List(ctx)
	if err != nil {
		return nil, err
	}
	budgets, err := s.budgets.List(ctx)
	if err != nil {
		return nil, err
	}
	processes, err := s.processes.List(ctx)
	if err != nil {
		return nil, err
	}
	notifications, err := s.notifications.List(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Loaded persisted state",
		zap.Int("priceEntries", len(prices)),
		zap.Int("budgets", len(budgets)),
		zap.Int("processes", len(processes)),
		zap.Int("notifications", len(notifications)),
	)

	return &service.Snapshot{
		PriceEntries:  prices,
		Budgets:       budgets,
		Processes:     processes,
		Notifications: notifications,
	}, nil
}

func (s *Store) SaveProcess(ctx context.Context, process *domain.Process) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.processes.Save(ctx, tx, process)
	})
}

func (s *Store) SaveBudget(ctx context.Context, budget *domain.Budget) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.budgets.Save(ctx, tx, budget)
	})
}

// SaveFanOut writes the budget and all generated processes atomically
func (s *Store) SaveFanOut(ctx context.Context, budget *domain.Budget, processes []*domain.Process) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.budgets.Save(ctx, tx, budget); err != nil {
			return err
		}
		for _, p := range processes {
			if err := s.processes.Save(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save budget fan-out: %w", err)
	}
	return nil
}

func (s *Store) SavePriceEntries(ctx context.Context, entries []domain.PriceEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.prices.Upsert(ctx, tx, entries)
	})
}

func (s *Store) DeletePriceEntry(ctx context.Context, id uuid.UUID) error {
	return s.prices.Delete(ctx, nil, id)
}

func (s *Store) SaveNotifications(ctx context.Context, notifications []domain.Notification) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.notifications.Upsert(ctx, tx, notifications)
	})
}

func (s *Store) DeleteNotification(ctx context.Context, id uuid.UUID) error {
	return s.notifications.Delete(ctx, nil, id)
}

func (s *Store) NextSequence(ctx context.Context, prefix string, year int) (int, error) {
	return s.sequences.GetNextNumber(ctx, prefix, year)
}
