package service

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tramitia/process-tracker/internal/domain"
)

// processTransitions is the full edge table of the process lifecycle:
//
//	pending -> collecting_docs -> sent -> under_review -> approved -> archived
//	                                          under_review -> rejected -> collecting_docs
var processTransitions = map[domain.ProcessStatus][]domain.ProcessStatus{
	domain.ProcessStatusPending:        {domain.ProcessStatusCollectingDocs},
	domain.ProcessStatusCollectingDocs: {domain.ProcessStatusSent},
	domain.ProcessStatusSent:           {domain.ProcessStatusUnderReview},
	domain.ProcessStatusUnderReview:    {domain.ProcessStatusApproved, domain.ProcessStatusRejected},
	domain.ProcessStatusApproved:       {domain.ProcessStatusArchived},
	domain.ProcessStatusRejected:       {domain.ProcessStatusCollectingDocs},
	domain.ProcessStatusArchived:       {},
}

var documentTransitions = map[domain.DocumentStatus][]domain.DocumentStatus{
	domain.DocumentStatusPending:  {domain.DocumentStatusLoaded},
	domain.DocumentStatusLoaded:   {domain.DocumentStatusApproved, domain.DocumentStatusRejected, domain.DocumentStatusPending},
	domain.DocumentStatusApproved: {domain.DocumentStatusLoaded},
	domain.DocumentStatusRejected: {domain.DocumentStatusLoaded},
}

// ProcessStateMachine enforces the process lifecycle and keeps the derived
// progress value in sync. Every method either fully applies its change or
// leaves the process untouched.
type ProcessStateMachine struct {
	now func() time.Time
}

// NewProcessStateMachine creates a state machine using the wall clock
func NewProcessStateMachine() *ProcessStateMachine {
	return &ProcessStateMachine{now: func() time.Time { return time.Now().UTC() }}
}

// SetClock replaces the time source; used by tests.
func (m *ProcessStateMachine) SetClock(now func() time.Time) {
	m.now = now
}

// AllowedTargets returns the states reachable in one move from status.
func (m *ProcessStateMachine) AllowedTargets(status domain.ProcessStatus) []domain.ProcessStatus {
	return append([]domain.ProcessStatus(nil), processTransitions[status]...)
}

// CanTransition reports whether from -> to is an edge of the lifecycle,
// ignoring document guards.
func (m *ProcessStateMachine) CanTransition(from, to domain.ProcessStatus) bool {
	for _, target := range processTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// Transition moves the process to the target state.
func (m *ProcessStateMachine) Transition(p *domain.Process, to domain.ProcessStatus) error {
	from := p.Status
	if !to.IsValid() {
		return domain.NewValidationError("status", fmt.Sprintf("unknown process status %q", to))
	}
	if !m.CanTransition(from, to) {
		return &domain.InvalidTransitionError{Subject: "process", From: string(from), To: string(to)}
	}

	staged := p.Clone()
	now := m.now()

	switch {
	case from == domain.ProcessStatusCollectingDocs && to == domain.ProcessStatusSent:
		if missing := missingRequiredDocuments(staged); len(missing) > 0 {
			return &domain.InvalidTransitionError{
				Subject: "process",
				From:    string(from),
				To:      string(to),
				Reason:  "required documents not loaded: " + strings.Join(missing, ", "),
			}
		}
	case from == domain.ProcessStatusRejected && to == domain.ProcessStatusCollectingDocs:
		for i := range staged.Documents {
			d := &staged.Documents[i]
			if d.Status != domain.DocumentStatusRejected {
				continue
			}
			d.Status = domain.DocumentStatusPending
			d.Validated = false
			d.UploadedAt = nil
			d.UpdatedAt = now
		}
	}

	staged.Status = to
	staged.UpdatedAt = now
	staged.Progress = Progress(staged)
	*p = *staged
	return nil
}

// SetDocumentStatus changes the status of one document of the process.
// Setting the current status again is a no-op.
func (m *ProcessStateMachine) SetDocumentStatus(p *domain.Process, documentID uuid.UUID, status domain.DocumentStatus) error {
	if p.Status == domain.ProcessStatusArchived {
		return ErrProcessFrozen
	}
	if !status.IsValid() {
		return domain.NewValidationError("status", fmt.Sprintf("unknown document status %q", status))
	}

	staged := p.Clone()
	doc := staged.Document(documentID)
	if doc == nil {
		return domain.NewNotFound("document", documentID.String())
	}
	if doc.Status == status {
		return nil
	}
	if !documentEdge(doc.Status, status) {
		return &domain.InvalidTransitionError{Subject: "document", From: string(doc.Status), To: string(status)}
	}

	now := m.now()
	switch status {
	case domain.DocumentStatusLoaded:
		if doc.Status == domain.DocumentStatusPending || doc.Status == domain.DocumentStatusRejected || doc.UploadedAt == nil {
			doc.UploadedAt = &now
		}
		doc.Validated = false
	case domain.DocumentStatusPending:
		doc.UploadedAt = nil
		doc.Validated = false
		doc.StoragePath = ""
	}
	doc.Status = status
	doc.UpdatedAt = now

	staged.UpdatedAt = now
	staged.Progress = Progress(staged)
	*p = *staged
	return nil
}

// MarkDocumentValidated flags a loaded or approved document as having passed
// automated validation. storagePath is the file that was checked; a result for
// a file the document no longer holds is refused with ErrValidationStale.
func (m *ProcessStateMachine) MarkDocumentValidated(p *domain.Process, documentID uuid.UUID, storagePath string) error {
	if p.Status == domain.ProcessStatusArchived {
		return ErrProcessFrozen
	}
	doc := p.Document(documentID)
	if doc == nil {
		return domain.NewNotFound("document", documentID.String())
	}
	if doc.Status != domain.DocumentStatusLoaded && doc.Status != domain.DocumentStatusApproved {
		return domain.NewValidationError("document", "only loaded documents can be validated")
	}
	if doc.StoragePath != storagePath {
		return ErrValidationStale
	}
	now := m.now()
	doc.Validated = true
	doc.UpdatedAt = now
	p.UpdatedAt = now
	return nil
}

// Progress derives the completion percentage: approved required documents
// over all required documents, always 100 once archived.
func Progress(p *domain.Process) int {
	if p.Status == domain.ProcessStatusArchived {
		return 100
	}
	total, approved := p.RequiredDocumentCounts()
	if total < 1 {
		total = 1
	}
	progress := int(math.Round(100 * float64(approved) / float64(total)))
	if progress > 100 {
		progress = 100
	}
	return progress
}

func missingRequiredDocuments(p *domain.Process) []string {
	missing := make([]string, 0)
	for _, d := range p.Documents {
		if d.Kind != domain.DocumentKindRequired {
			continue
		}
		if d.Status != domain.DocumentStatusLoaded && d.Status != domain.DocumentStatusApproved {
			missing = append(missing, d.Name)
		}
	}
	return missing
}

func documentEdge(from, to domain.DocumentStatus) bool {
	for _, target := range documentTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}
