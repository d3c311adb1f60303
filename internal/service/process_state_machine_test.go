package service_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tramitia/process-tracker/internal/domain"
	"github.com/tramitia/process-tracker/internal/service"
)

func newTestProcess(status domain.ProcessStatus, docStatuses ...domain.DocumentStatus) *domain.Process {
	p := &domain.Process{
		BaseModel: domain.BaseModel{ID: uuid.New(), CreatedAt: testNow, UpdatedAt: testNow},
		Title:     "Certificado de exportación",
		ClientID:  "client-1",
		Status:    status,
		Priority:  domain.ProcessPriorityMedium,
	}
	for i, st := range docStatuses {
		p.Documents = append(p.Documents, domain.Document{
			ID:        uuid.New(),
			ProcessID: p.ID,
			Position:  i,
			Name:      "Documento",
			Kind:      domain.DocumentKindRequired,
			Status:    st,
		})
	}
	p.Progress = service.Progress(p)
	return p
}

func createStateMachine() *service.ProcessStateMachine {
	m := service.NewProcessStateMachine()
	m.SetClock(fixedClock(testNow))
	return m
}

func TestProcessStateMachine_Transition(t *testing.T) {
	m := createStateMachine()

	t.Run("pending only reaches collecting docs", func(t *testing.T) {
		assert.Equal(t, []domain.ProcessStatus{domain.ProcessStatusCollectingDocs},
			m.AllowedTargets(domain.ProcessStatusPending))

		p := newTestProcess(domain.ProcessStatusPending, domain.DocumentStatusPending)
		require.NoError(t, m.Transition(p, domain.ProcessStatusCollectingDocs))
		assert.Equal(t, domain.ProcessStatusCollectingDocs, p.Status)
	})

	t.Run("non adjacent move is rejected and leaves status", func(t *testing.T) {
		p := newTestProcess(domain.ProcessStatusPending, domain.DocumentStatusPending)

		err := m.Transition(p, domain.ProcessStatusApproved)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidTransition))

		var transitionErr *domain.InvalidTransitionError
		require.True(t, errors.As(err, &transitionErr))
		assert.Equal(t, "pending", transitionErr.From)
		assert.Equal(t, "approved", transitionErr.To)
		assert.Equal(t, domain.ProcessStatusPending, p.Status)
	})

	t.Run("unknown status is a validation error", func(t *testing.T) {
		p := newTestProcess(domain.ProcessStatusPending)
		err := m.Transition(p, domain.ProcessStatus("lost"))
		assert.True(t, errors.Is(err, domain.ErrValidation))
	})

	t.Run("sending requires every required document loaded", func(t *testing.T) {
		p := newTestProcess(domain.ProcessStatusCollectingDocs,
			domain.DocumentStatusLoaded, domain.DocumentStatusPending, domain.DocumentStatusApproved)

		err := m.Transition(p, domain.ProcessStatusSent)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
		assert.Contains(t, err.Error(), "required documents not loaded")
		assert.Equal(t, domain.ProcessStatusCollectingDocs, p.Status)

		require.NoError(t, m.SetDocumentStatus(p, p.Documents[1].ID, domain.DocumentStatusLoaded))
		require.NoError(t, m.Transition(p, domain.ProcessStatusSent))
		assert.Equal(t, domain.ProcessStatusSent, p.Status)
	})

	t.Run("optional documents do not gate sending", func(t *testing.T) {
		p := newTestProcess(domain.ProcessStatusCollectingDocs, domain.DocumentStatusLoaded, domain.DocumentStatusPending)
		p.Documents[1].Kind = domain.DocumentKindOptional

		require.NoError(t, m.Transition(p, domain.ProcessStatusSent))
	})

	t.Run("resubmission resets rejected documents only", func(t *testing.T) {
		p := newTestProcess(domain.ProcessStatusRejected,
			domain.DocumentStatusRejected, domain.DocumentStatusApproved, domain.DocumentStatusRejected)
		uploaded := testNow
		p.Documents[0].UploadedAt = &uploaded
		p.Documents[0].Validated = true

		require.NoError(t, m.Transition(p, domain.ProcessStatusCollectingDocs))
		assert.Equal(t, domain.ProcessStatusCollectingDocs, p.Status)
		assert.Equal(t, domain.DocumentStatusPending, p.Documents[0].Status)
		assert.False(t, p.Documents[0].Validated)
		assert.Nil(t, p.Documents[0].UploadedAt)
		assert.Equal(t, domain.DocumentStatusApproved, p.Documents[1].Status)
		assert.Equal(t, domain.DocumentStatusPending, p.Documents[2].Status)
	})

	t.Run("full lifecycle", func(t *testing.T) {
		p := newTestProcess(domain.ProcessStatusPending, domain.DocumentStatusLoaded)
		for _, to := range []domain.ProcessStatus{
			domain.ProcessStatusCollectingDocs,
			domain.ProcessStatusSent,
			domain.ProcessStatusUnderReview,
			domain.ProcessStatusApproved,
			domain.ProcessStatusArchived,
		} {
			require.NoError(t, m.Transition(p, to), "moving to %s", to)
		}
		assert.Empty(t, m.AllowedTargets(domain.ProcessStatusArchived))
		assert.Equal(t, 100, p.Progress)
	})
}

func TestProcessStateMachine_Progress(t *testing.T) {
	t.Run("half of required documents approved", func(t *testing.T) {
		p := newTestProcess(domain.ProcessStatusUnderReview,
			domain.DocumentStatusApproved, domain.DocumentStatusApproved,
			domain.DocumentStatusLoaded, domain.DocumentStatusPending)
		assert.Equal(t, 50, service.Progress(p))
	})

	t.Run("archived is complete regardless of documents", func(t *testing.T) {
		p := newTestProcess(domain.ProcessStatusArchived, domain.DocumentStatusPending, domain.DocumentStatusPending)
		assert.Equal(t, 100, service.Progress(p))
	})

	t.Run("no required documents", func(t *testing.T) {
		p := newTestProcess(domain.ProcessStatusPending)
		assert.Equal(t, 0, service.Progress(p))
	})

	t.Run("rounds to nearest", func(t *testing.T) {
		p := newTestProcess(domain.ProcessStatusPending,
			domain.DocumentStatusApproved, domain.DocumentStatusApproved, domain.DocumentStatusPending)
		assert.Equal(t, 67, service.Progress(p))
	})
}

func TestProcessStateMachine_SetDocumentStatus(t *testing.T) {
	m := createStateMachine()

	t.Run("loading stamps upload time and approval updates progress", func(t *testing.T) {
		p := newTestProcess(domain.ProcessStatusCollectingDocs, domain.DocumentStatusPending, domain.DocumentStatusPending)
		docID := p.Documents[0].ID

		require.NoError(t, m.SetDocumentStatus(p, docID, domain.DocumentStatusLoaded))
		require.NotNil(t, p.Documents[0].UploadedAt)
		assert.Equal(t, testNow, *p.Documents[0].UploadedAt)

		require.NoError(t, m.SetDocumentStatus(p, docID, domain.DocumentStatusApproved))
		assert.Equal(t, 50, p.Progress)
	})

	t.Run("pending cannot jump to approved", func(t *testing.T) {
		p := newTestProcess(domain.ProcessStatusCollectingDocs, domain.DocumentStatusPending)
		err := m.SetDocumentStatus(p, p.Documents[0].ID, domain.DocumentStatusApproved)
		assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
		assert.Equal(t, domain.DocumentStatusPending, p.Documents[0].Status)
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		p := newTestProcess(domain.ProcessStatusCollectingDocs, domain.DocumentStatusLoaded)
		before := p.UpdatedAt
		require.NoError(t, m.SetDocumentStatus(p, p.Documents[0].ID, domain.DocumentStatusLoaded))
		assert.Equal(t, before, p.UpdatedAt)
	})

	t.Run("unknown document", func(t *testing.T) {
		p := newTestProcess(domain.ProcessStatusCollectingDocs, domain.DocumentStatusLoaded)
		err := m.SetDocumentStatus(p, uuid.New(), domain.DocumentStatusApproved)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("archived process is frozen", func(t *testing.T) {
		p := newTestProcess(domain.ProcessStatusArchived, domain.DocumentStatusApproved)
		err := m.SetDocumentStatus(p, p.Documents[0].ID, domain.DocumentStatusLoaded)
		assert.ErrorIs(t, err, service.ErrProcessFrozen)
	})

	t.Run("validated flag only for loaded documents", func(t *testing.T) {
		p := newTestProcess(domain.ProcessStatusCollectingDocs, domain.DocumentStatusPending, domain.DocumentStatusLoaded)
		p.Documents[1].StoragePath = "documents/2026/03/a.pdf"
		assert.Error(t, m.MarkDocumentValidated(p, p.Documents[0].ID, ""))
		require.NoError(t, m.MarkDocumentValidated(p, p.Documents[1].ID, "documents/2026/03/a.pdf"))
		assert.True(t, p.Documents[1].Validated)
	})

	t.Run("result for a replaced file is refused", func(t *testing.T) {
		p := newTestProcess(domain.ProcessStatusCollectingDocs, domain.DocumentStatusLoaded)
		p.Documents[0].StoragePath = "documents/2026/03/new.pdf"
		err := m.MarkDocumentValidated(p, p.Documents[0].ID, "documents/2026/03/old.pdf")
		assert.ErrorIs(t, err, service.ErrValidationStale)
		assert.False(t, p.Documents[0].Validated)
	})
}
