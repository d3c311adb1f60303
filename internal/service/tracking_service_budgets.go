package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tramitia/process-tracker/internal/domain"
	"go.uber.org/zap"
)

var budgetTransitions = map[domain.BudgetStatus][]domain.BudgetStatus{
	domain.BudgetStatusDraft:    {domain.BudgetStatusSent, domain.BudgetStatusApproved, domain.BudgetStatusRejected},
	domain.BudgetStatusSent:     {domain.BudgetStatusApproved, domain.BudgetStatusRejected, domain.BudgetStatusExpired},
	domain.BudgetStatusApproved: {},
	domain.BudgetStatusRejected: {},
	domain.BudgetStatusExpired:  {},
}

func budgetEdge(from, to domain.BudgetStatus) bool {
	for _, target := range budgetTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// BudgetInput carries the fields of a new budget
type BudgetInput struct {
	ClientID    string
	TemplateIDs []string
	Notes       string
}

// CreateBudget prices the referenced templates into a draft budget.
func (s *TrackingService) CreateBudget(ctx context.Context, input BudgetInput) (*domain.Budget, error) {
	clientID := strings.TrimSpace(input.ClientID)
	if clientID == "" {
		return nil, domain.NewValidationError("clientId", "client id is required")
	}
	if len(input.TemplateIDs) == 0 {
		return nil, domain.NewValidationError("templateIds", "at least one template is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	budgetID := uuid.New()
	items := make([]domain.BudgetItem, 0, len(input.TemplateIDs))
	seen := make(map[string]bool, len(input.TemplateIDs))
	for i, id := range input.TemplateIDs {
		if seen[id] {
			return nil, domain.NewValidationError("templateIds", fmt.Sprintf("template %q referenced twice", id))
		}
		seen[id] = true
		tpl, err := s.templates.Find(id)
		if err != nil {
			return nil, &domain.ValidationError{Field: "templateIds", Message: fmt.Sprintf("unknown template %q", id), Cause: err}
		}
		items = append(items, domain.BudgetItem{
			ID:           uuid.New(),
			BudgetID:     budgetID,
			TemplateID:   tpl.ID,
			Description:  fmt.Sprintf("%s (%s)", tpl.Name, tpl.Authority),
			Quantity:     1,
			UnitPrice:    s.pricing.PriceFor(tpl),
			DisplayOrder: i,
		})
	}

	number, err := s.numbers.GenerateBudgetNumber(ctx)
	if err != nil {
		return nil, err
	}

	budget := &domain.Budget{
		BaseModel:   domain.BaseModel{ID: budgetID, CreatedAt: now, UpdatedAt: now},
		Number:      number,
		ClientID:    clientID,
		TemplateIDs: append([]string(nil), input.TemplateIDs...),
		Items:       items,
		Status:      domain.BudgetStatusDraft,
		ProcessIDs:  []uuid.UUID{},
		Notes:       input.Notes,
	}
	budget.Recalculate()

	if err := s.store.SaveBudget(ctx, budget); err != nil {
		return nil, fmt.Errorf("failed to save budget: %w", err)
	}
	s.budgets[budget.ID] = budget

	s.logger.Info("budget created",
		zap.String("budgetId", budget.ID.String()),
		zap.String("number", budget.Number),
		zap.String("clientId", clientID),
		zap.String("total", budget.Total.StringFixed(2)))
	return budget.Clone(), nil
}

// GetBudget returns one budget.
func (s *TrackingService) GetBudget(id uuid.UUID) (*domain.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok {
		return nil, domain.NewNotFound("budget", id.String())
	}
	return b.Clone(), nil
}

// ListBudgets returns budgets newest first, optionally narrowed to a status.
func (s *TrackingService) ListBudgets(status domain.BudgetStatus) []*domain.Budget {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Budget, 0, len(s.budgets))
	for _, b := range s.budgets {
		if status != "" && b.Status != status {
			continue
		}
		out = append(out, b.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Number > out[j].Number
	})
	return out
}

// SendBudget marks a draft budget as sent to the client.
func (s *TrackingService) SendBudget(ctx context.Context, id uuid.UUID) (*domain.Budget, error) {
	return s.moveBudget(ctx, id, domain.BudgetStatusSent)
}

// RejectBudget records that the client declined the budget.
func (s *TrackingService) RejectBudget(ctx context.Context, id uuid.UUID) (*domain.Budget, error) {
	return s.moveBudget(ctx, id, domain.BudgetStatusRejected)
}

// ExpireBudget closes a sent budget that was never answered.
func (s *TrackingService) ExpireBudget(ctx context.Context, id uuid.UUID) (*domain.Budget, error) {
	return s.moveBudget(ctx, id, domain.BudgetStatusExpired)
}

func (s *TrackingService) moveBudget(ctx context.Context, id uuid.UUID, to domain.BudgetStatus) (*domain.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.budgets[id]
	if !ok {
		return nil, domain.NewNotFound("budget", id.String())
	}
	staged, err := s.stageBudgetMove(current, to)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveBudget(ctx, staged); err != nil {
		return nil, fmt.Errorf("failed to save budget: %w", err)
	}
	s.budgets[id] = staged

	s.logger.Info("budget status changed",
		zap.String("budgetId", id.String()),
		zap.String("number", staged.Number),
		zap.String("from", string(current.Status)),
		zap.String("to", string(to)))
	return staged.Clone(), nil
}

func (s *TrackingService) stageBudgetMove(current *domain.Budget, to domain.BudgetStatus) (*domain.Budget, error) {
	if !to.IsValid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown budget status %q", to))
	}
	if !budgetEdge(current.Status, to) {
		return nil, &domain.InvalidTransitionError{Subject: "budget", From: string(current.Status), To: string(to)}
	}
	now := s.now()
	staged := current.Clone()
	staged.Status = to
	staged.UpdatedAt = now
	switch to {
	case domain.BudgetStatusSent:
		staged.SentAt = &now
	case domain.BudgetStatusApproved, domain.BudgetStatusRejected, domain.BudgetStatusExpired:
		staged.DecidedAt = &now
	}
	return staged, nil
}

// ApproveBudget approves a budget and fans it out into processes. Approval
// and fan-out are stored together; if either fails the budget keeps its
// previous status.
func (s *TrackingService) ApproveBudget(ctx context.Context, id uuid.UUID) (*domain.Budget, []*domain.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.budgets[id]
	if !ok {
		return nil, nil, domain.NewNotFound("budget", id.String())
	}
	staged, err := s.stageBudgetMove(current, domain.BudgetStatusApproved)
	if err != nil {
		return nil, nil, err
	}
	return s.fanOutLocked(ctx, staged)
}

// GenerateFromBudget fans an approved budget out into processes. A budget
// can be fanned out only once.
func (s *TrackingService) GenerateFromBudget(ctx context.Context, id uuid.UUID) (*domain.Budget, []*domain.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.budgets[id]
	if !ok {
		return nil, nil, domain.NewNotFound("budget", id.String())
	}
	staged := current.Clone()
	staged.UpdatedAt = s.now()
	return s.fanOutLocked(ctx, staged)
}

func (s *TrackingService) fanOutLocked(ctx context.Context, staged *domain.Budget) (*domain.Budget, []*domain.Process, error) {
	processes, err := s.generator.FromBudget(staged)
	if err != nil {
		return nil, nil, err
	}
	if err := s.store.SaveFanOut(ctx, staged, processes); err != nil {
		return nil, nil, fmt.Errorf("failed to save budget fan-out: %w", err)
	}

	s.budgets[staged.ID] = staged
	out := make([]*domain.Process, 0, len(processes))
	for _, p := range processes {
		s.processes[p.ID] = p
		out = append(out, p.Clone())
	}

	s.logger.Info("budget fanned out into processes",
		zap.String("budgetId", staged.ID.String()),
		zap.String("number", staged.Number),
		zap.Int("processes", len(processes)))
	s.notifySystem(ctx, "Presupuesto aprobado",
		fmt.Sprintf("El presupuesto %s generó %d trámites.", staged.Number, len(processes)),
		"budget", staged.ID.String())
	return staged.Clone(), out, nil
}

// ExpireStaleBudgets expires every sent budget older than validity and
// returns how many were expired. Budgets that fail to store are skipped and
// retried on the next run.
func (s *TrackingService) ExpireStaleBudgets(ctx context.Context, validity time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if validity <= 0 {
		return 0, domain.NewValidationError("validity", "validity must be positive")
	}
	cutoff := s.now().Add(-validity)
	expired := 0
	var firstErr error
	for id, b := range s.budgets {
		if b.Status != domain.BudgetStatusSent || b.SentAt == nil || !b.SentAt.Before(cutoff) {
			continue
		}
		staged, err := s.stageBudgetMove(b, domain.BudgetStatusExpired)
		if err != nil {
			continue
		}
		if err := s.store.SaveBudget(ctx, staged); err != nil {
			s.logger.Warn("failed to expire budget",
				zap.String("budgetId", id.String()),
				zap.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to expire budget %s: %w", b.Number, err)
			}
			continue
		}
		s.budgets[id] = staged
		expired++
	}
	if expired > 0 {
		s.logger.Info("expired stale budgets", zap.Int("count", expired))
	}
	return expired, firstErr
}
