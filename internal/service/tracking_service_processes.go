package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tramitia/process-tracker/internal/domain"
	"go.uber.org/zap"
)

// ProcessFilter narrows a process listing. Zero fields match everything.
type ProcessFilter struct {
	Status   domain.ProcessStatus
	ClientID string
	Tag      string
	BudgetID *uuid.UUID
	Billed   *bool
}

func (f ProcessFilter) matches(p *domain.Process) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.ClientID != "" && p.ClientID != f.ClientID {
		return false
	}
	if f.Tag != "" && !p.HasTag(strings.ToLower(f.Tag)) {
		return false
	}
	if f.BudgetID != nil && (p.BudgetID == nil || *p.BudgetID != *f.BudgetID) {
		return false
	}
	if f.Billed != nil && p.Billed != *f.Billed {
		return false
	}
	return true
}

// ProcessUpdate carries editable process fields. Nil fields are left as is.
type ProcessUpdate struct {
	Title       *string
	Description *string
	Priority    *domain.ProcessPriority
	DueAt       *time.Time
	Tags        []string
}

// GenerateFromTemplate creates a pending process from a template.
func (s *TrackingService) GenerateFromTemplate(ctx context.Context, templateID, clientID, authorityOverride string) (*domain.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.generator.FromTemplate(templateID, clientID, authorityOverride)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveProcess(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save process: %w", err)
	}
	s.processes[p.ID] = p

	s.logger.Info("process generated from template",
		zap.String("processId", p.ID.String()),
		zap.String("templateId", templateID),
		zap.String("clientId", clientID),
		zap.Int("documents", len(p.Documents)))
	return p.Clone(), nil
}

// GetProcess returns one process.
func (s *TrackingService) GetProcess(id uuid.UUID) (*domain.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.processes[id]
	if !ok {
		return nil, domain.NewNotFound("process", id.String())
	}
	return p.Clone(), nil
}

// ListProcesses returns matching processes, newest first.
func (s *TrackingService) ListProcesses(filter ProcessFilter) []*domain.Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Process, 0, len(s.processes))
	for _, p := range s.processes {
		if filter.matches(p) {
			out = append(out, p.Clone())
		}
	}
	sortProcesses(out)
	return out
}

// ProcessStatusCounts returns how many processes sit in each state.
func (s *TrackingService) ProcessStatusCounts() map[domain.ProcessStatus]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[domain.ProcessStatus]int, len(domain.ProcessStatuses))
	for _, status := range domain.ProcessStatuses {
		counts[status] = 0
	}
	for _, p := range s.processes {
		counts[p.Status]++
	}
	return counts
}

// AllowedTransitions returns the states a process can move to next.
func (s *TrackingService) AllowedTransitions(id uuid.UUID) ([]domain.ProcessStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.processes[id]
	if !ok {
		return nil, domain.NewNotFound("process", id.String())
	}
	return s.machine.AllowedTargets(p.Status), nil
}

// TransitionProcess moves a process along its lifecycle.
func (s *TrackingService) TransitionProcess(ctx context.Context, id uuid.UUID, to domain.ProcessStatus) (*domain.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.processes[id]
	if !ok {
		return nil, domain.NewNotFound("process", id.String())
	}
	from := current.Status
	staged := current.Clone()
	if err := s.machine.Transition(staged, to); err != nil {
		return nil, err
	}
	if err := s.store.SaveProcess(ctx, staged); err != nil {
		return nil, fmt.Errorf("failed to save process: %w", err)
	}
	s.processes[id] = staged

	s.logger.Info("process transitioned",
		zap.String("processId", id.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)))

	switch to {
	case domain.ProcessStatusApproved:
		s.notifySystem(ctx, "Trámite aprobado",
			fmt.Sprintf("%q fue aprobado por %s.", staged.Title, staged.AuthorityID),
			"process", id.String())
	case domain.ProcessStatusRejected:
		s.notifySystem(ctx, "Trámite rechazado",
			fmt.Sprintf("%q fue rechazado por %s.", staged.Title, staged.AuthorityID),
			"process", id.String())
	}
	return staged.Clone(), nil
}

// SetDocumentStatus changes the status of one document of a process.
func (s *TrackingService) SetDocumentStatus(ctx context.Context, processID, documentID uuid.UUID, status domain.DocumentStatus) (*domain.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.processes[processID]
	if !ok {
		return nil, domain.NewNotFound("process", processID.String())
	}
	staged := current.Clone()
	if err := s.machine.SetDocumentStatus(staged, documentID, status); err != nil {
		return nil, err
	}
	if err := s.store.SaveProcess(ctx, staged); err != nil {
		return nil, fmt.Errorf("failed to save process: %w", err)
	}
	s.processes[processID] = staged

	s.logger.Info("document status changed",
		zap.String("processId", processID.String()),
		zap.String("documentId", documentID.String()),
		zap.String("status", string(status)),
		zap.Int("progress", staged.Progress))
	return staged.Clone(), nil
}

// UpdateProcess edits the descriptive fields of a process.
func (s *TrackingService) UpdateProcess(ctx context.Context, id uuid.UUID, update ProcessUpdate) (*domain.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.processes[id]
	if !ok {
		return nil, domain.NewNotFound("process", id.String())
	}
	if current.Status == domain.ProcessStatusArchived {
		return nil, ErrProcessFrozen
	}

	staged := current.Clone()
	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return nil, domain.NewValidationError("title", "title cannot be empty")
		}
		staged.Title = title
	}
	if update.Description != nil {
		staged.Description = *update.Description
	}
	if update.Priority != nil {
		if !update.Priority.IsValid() {
			return nil, domain.NewValidationError("priority", fmt.Sprintf("unknown priority %q", *update.Priority))
		}
		staged.Priority = *update.Priority
	}
	if update.DueAt != nil {
		due := *update.DueAt
		staged.DueAt = &due
	}
	if update.Tags != nil {
		staged.Tags = normalizeTags(update.Tags)
	}
	staged.UpdatedAt = s.now()

	if err := s.store.SaveProcess(ctx, staged); err != nil {
		return nil, fmt.Errorf("failed to save process: %w", err)
	}
	s.processes[id] = staged
	return staged.Clone(), nil
}

// MarkProcessBilled flags an approved or archived process as billed.
// Marking twice is a no-op.
func (s *TrackingService) MarkProcessBilled(ctx context.Context, id uuid.UUID) (*domain.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.processes[id]
	if !ok {
		return nil, domain.NewNotFound("process", id.String())
	}
	if current.Billed {
		return current.Clone(), nil
	}
	if current.Status != domain.ProcessStatusApproved && current.Status != domain.ProcessStatusArchived {
		return nil, domain.NewValidationError("status", "only approved or archived processes can be billed")
	}

	staged := current.Clone()
	staged.Billed = true
	staged.UpdatedAt = s.now()
	if err := s.store.SaveProcess(ctx, staged); err != nil {
		return nil, fmt.Errorf("failed to save process: %w", err)
	}
	s.processes[id] = staged

	s.logger.Info("process billed",
		zap.String("processId", id.String()),
		zap.String("cost", staged.Cost.StringFixed(2)))
	return staged.Clone(), nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
