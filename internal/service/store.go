package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/tramitia/process-tracker/internal/domain"
)

// Snapshot is the persisted entity set the tracking service starts from
type Snapshot struct {
	PriceEntries  []domain.PriceEntry
	Budgets       []domain.Budget
	Processes     []domain.Process
	Notifications []domain.Notification
}

// Store receives the upsert and delete intents produced by the tracking
// service. Every method must be all-or-nothing: the tracking service commits
// its in-memory change only after the store call succeeded.
type Store interface {
	LoadSnapshot(ctx context.Context) (*Snapshot, error)

	SaveProcess(ctx context.Context, process *domain.Process) error
	SaveBudget(ctx context.Context, budget *domain.Budget) error
	// SaveFanOut stores an approved budget together with the processes
	// generated from it.
	SaveFanOut(ctx context.Context, budget *domain.Budget, processes []*domain.Process) error

	SavePriceEntries(ctx context.Context, entries []domain.PriceEntry) error
	DeletePriceEntry(ctx context.Context, id uuid.UUID) error

	SaveNotifications(ctx context.Context, notifications []domain.Notification) error
	DeleteNotification(ctx context.Context, id uuid.UUID) error

	// NextSequence atomically increments and returns the counter for
	// prefix and year.
	NextSequence(ctx context.Context, prefix string, year int) (int, error)
}
