package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/tramitia/process-tracker/internal/domain"
	"go.uber.org/zap"
)

// UploadDocument stores a file for a document and marks the document loaded.
// A file replacing an earlier upload removes the earlier one.
func (s *TrackingService) UploadDocument(ctx context.Context, processID, documentID uuid.UUID, filename, contentType string, data io.Reader) (*domain.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.storage == nil {
		return nil, ErrStorageUnavailable
	}
	current, ok := s.processes[processID]
	if !ok {
		return nil, domain.NewNotFound("process", processID.String())
	}
	if current.Status == domain.ProcessStatusArchived {
		return nil, ErrProcessFrozen
	}
	doc := current.Document(documentID)
	if doc == nil {
		return nil, domain.NewNotFound("document", documentID.String())
	}
	previousPath := doc.StoragePath

	staged := current.Clone()
	if err := s.machine.SetDocumentStatus(staged, documentID, domain.DocumentStatusLoaded); err != nil {
		return nil, err
	}

	storagePath, size, err := s.storage.Upload(ctx, filename, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("failed to upload document: %w", err)
	}

	stagedDoc := staged.Document(documentID)
	now := s.now()
	stagedDoc.StoragePath = storagePath
	stagedDoc.UploadedAt = &now
	stagedDoc.Validated = false
	stagedDoc.UpdatedAt = now
	staged.UpdatedAt = now

	if err := s.store.SaveProcess(ctx, staged); err != nil {
		if delErr := s.storage.Delete(ctx, storagePath); delErr != nil {
			s.logger.Warn("failed to remove orphaned upload",
				zap.String("storagePath", storagePath),
				zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to save process: %w", err)
	}
	s.processes[processID] = staged

	if previousPath != "" && previousPath != storagePath {
		if err := s.storage.Delete(ctx, previousPath); err != nil {
			s.logger.Warn("failed to remove replaced document file",
				zap.String("storagePath", previousPath),
				zap.Error(err))
		}
	}

	s.logger.Info("document uploaded",
		zap.String("processId", processID.String()),
		zap.String("documentId", documentID.String()),
		zap.String("filename", filename),
		zap.Int64("size", size))
	return staged.Clone(), nil
}

// DownloadDocument opens the stored file of a document. The caller closes
// the reader.
func (s *TrackingService) DownloadDocument(ctx context.Context, processID, documentID uuid.UUID) (io.ReadCloser, domain.Document, error) {
	s.mu.Lock()
	st := s.storage
	p, ok := s.processes[processID]
	var doc domain.Document
	if ok {
		if d := p.Document(documentID); d != nil {
			doc = *d
		}
	}
	s.mu.Unlock()

	if st == nil {
		return nil, domain.Document{}, ErrStorageUnavailable
	}
	if !ok {
		return nil, domain.Document{}, domain.NewNotFound("process", processID.String())
	}
	if doc.ID == uuid.Nil {
		return nil, domain.Document{}, domain.NewNotFound("document", documentID.String())
	}
	if doc.StoragePath == "" {
		return nil, domain.Document{}, domain.NewNotFound("document file", documentID.String())
	}
	rc, err := st.Download(ctx, doc.StoragePath)
	if err != nil {
		return nil, domain.Document{}, fmt.Errorf("failed to download document: %w", err)
	}
	return rc, doc, nil
}

// ============================================================================
// Automated validation
// ============================================================================

// StartDocumentValidation queues an automated check of a loaded document.
func (s *TrackingService) StartDocumentValidation(processID, documentID uuid.UUID) (ValidationTask, error) {
	s.mu.Lock()
	p, ok := s.processes[processID]
	if !ok {
		s.mu.Unlock()
		return ValidationTask{}, domain.NewNotFound("process", processID.String())
	}
	if p.Status == domain.ProcessStatusArchived {
		s.mu.Unlock()
		return ValidationTask{}, ErrProcessFrozen
	}
	d := p.Document(documentID)
	if d == nil {
		s.mu.Unlock()
		return ValidationTask{}, domain.NewNotFound("document", documentID.String())
	}
	if d.Status != domain.DocumentStatusLoaded {
		s.mu.Unlock()
		return ValidationTask{}, domain.NewValidationError("document", "only loaded documents can be validated")
	}
	doc := *d
	s.mu.Unlock()

	return s.validations.Start(processID, doc), nil
}

// GetValidation returns a validation task.
func (s *TrackingService) GetValidation(id uuid.UUID) (ValidationTask, error) {
	return s.validations.Get(id)
}

// ListDocumentValidations returns the validation history of a document.
func (s *TrackingService) ListDocumentValidations(documentID uuid.UUID) []ValidationTask {
	return s.validations.ListForDocument(documentID)
}

// CancelValidation stops a running validation.
func (s *TrackingService) CancelValidation(id uuid.UUID) (ValidationTask, error) {
	return s.validations.Cancel(id)
}

// RetryValidation starts a new check for the document of a failed task.
func (s *TrackingService) RetryValidation(id uuid.UUID) (ValidationTask, error) {
	return s.validations.Retry(id)
}

// recordValidation flags the document of a passing task as validated.
func (s *TrackingService) recordValidation(ctx context.Context, task ValidationTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.processes[task.ProcessID]
	if !ok {
		return domain.NewNotFound("process", task.ProcessID.String())
	}
	staged := current.Clone()
	if err := s.machine.MarkDocumentValidated(staged, task.DocumentID, task.StoragePath); err != nil {
		if errors.Is(err, ErrValidationStale) {
			s.logger.Info("discarding validation of a replaced document",
				zap.String("taskId", task.ID.String()),
				zap.String("documentId", task.DocumentID.String()))
			return nil
		}
		return err
	}
	if err := s.store.SaveProcess(ctx, staged); err != nil {
		return fmt.Errorf("failed to save process: %w", err)
	}
	s.processes[task.ProcessID] = staged
	return nil
}
