package handler

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/tramitia/process-tracker/internal/domain"
	"github.com/tramitia/process-tracker/internal/mapper"
	"github.com/tramitia/process-tracker/internal/storage"
	"go.uber.org/zap"
)

// Upload godoc
// @Summary Upload a document file
// @Description Stores the file and marks the document loaded.
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Process ID"
// @Param documentId path string true "Document ID"
// @Param file formData file true "File to upload"
// @Success 200 {object} domain.ProcessDTO
// @Failure 400 {object} domain.APIError
// @Failure 413 {object} domain.APIError
// @Failure 503 {object} domain.APIError
// @Router /processes/{id}/documents/{documentId}/file [post]
func (h *ProcessHandler) Upload(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	documentID, ok := uuidParam(w, r, "documentId")
	if !ok {
		return
	}

	limit := h.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large: maximum size is %dMB", h.maxUploadMB))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid file upload: file field is required")
		return
	}
	defer file.Close()

	if !storage.IsAllowedDocument(header.Filename) {
		respondWithError(w, http.StatusBadRequest, "Unsupported file type: allowed are pdf, jpg, png, doc, docx, xls, xlsx and xml")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	p, err := h.trackingService.UploadDocument(r.Context(), id, documentID, header.Filename, contentType, file)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "upload document")
		return
	}
	respondJSON(w, http.StatusOK, mapper.ToProcessDTO(p))
}

// Download godoc
// @Summary Download a document file
// @Tags Documents
// @Produce octet-stream
// @Param id path string true "Process ID"
// @Param documentId path string true "Document ID"
// @Success 200 {file} binary
// @Failure 404 {object} domain.APIError
// @Router /processes/{id}/documents/{documentId}/file [get]
func (h *ProcessHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	documentID, ok := uuidParam(w, r, "documentId")
	if !ok {
		return
	}

	reader, doc, err := h.trackingService.DownloadDocument(r.Context(), id, documentID)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "download document")
		return
	}
	defer reader.Close()

	ext := filepath.Ext(doc.StoragePath)
	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Name + ext}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Warn("failed to stream document", zap.String("documentId", documentID.String()), zap.Error(err))
	}
}

// StartValidation godoc
// @Summary Start automated validation of a loaded document
// @Tags Validations
// @Produce json
// @Param id path string true "Process ID"
// @Param documentId path string true "Document ID"
// @Success 202 {object} domain.ValidationTaskDTO
// @Failure 409 {object} domain.APIError
// @Router /processes/{id}/documents/{documentId}/validations [post]
func (h *ProcessHandler) StartValidation(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	documentID, ok := uuidParam(w, r, "documentId")
	if !ok {
		return
	}
	task, err := h.trackingService.StartDocumentValidation(id, documentID)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "start validation")
		return
	}
	respondJSON(w, http.StatusAccepted, mapper.ToValidationTaskDTO(task))
}

// ListValidations godoc
// @Summary List validation runs of a document
// @Tags Validations
// @Produce json
// @Param id path string true "Process ID"
// @Param documentId path string true "Document ID"
// @Success 200 {array} domain.ValidationTaskDTO
// @Router /processes/{id}/documents/{documentId}/validations [get]
func (h *ProcessHandler) ListValidations(w http.ResponseWriter, r *http.Request) {
	documentID, ok := uuidParam(w, r, "documentId")
	if !ok {
		return
	}
	tasks := h.trackingService.ListDocumentValidations(documentID)
	out := make([]domain.ValidationTaskDTO, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, mapper.ToValidationTaskDTO(t))
	}
	respondJSON(w, http.StatusOK, out)
}

// GetValidation godoc
// @Summary Get a validation task
// @Tags Validations
// @Produce json
// @Param validationId path string true "Validation task ID"
// @Success 200 {object} domain.ValidationTaskDTO
// @Failure 404 {object} domain.APIError
// @Router /validations/{validationId} [get]
func (h *ProcessHandler) GetValidation(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "validationId")
	if !ok {
		return
	}
	task, err := h.trackingService.GetValidation(id)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "get validation")
		return
	}
	respondJSON(w, http.StatusOK, mapper.ToValidationTaskDTO(task))
}

// CancelValidation godoc
// @Summary Cancel a running validation
// @Tags Validations
// @Produce json
// @Param validationId path string true "Validation task ID"
// @Success 200 {object} domain.ValidationTaskDTO
// @Failure 404 {object} domain.APIError
// @Router /validations/{validationId}/cancel [post]
func (h *ProcessHandler) CancelValidation(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "validationId")
	if !ok {
		return
	}
	task, err := h.trackingService.CancelValidation(id)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "cancel validation")
		return
	}
	respondJSON(w, http.StatusOK, mapper.ToValidationTaskDTO(task))
}

// RetryValidation godoc
// @Summary Retry a failed or cancelled validation
// @Tags Validations
// @Produce json
// @Param validationId path string true "Validation task ID"
// @Success 202 {object} domain.ValidationTaskDTO
// @Failure 409 {object} domain.APIError
// @Router /validations/{validationId}/retry [post]
func (h *ProcessHandler) RetryValidation(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "validationId")
	if !ok {
		return
	}
	task, err := h.trackingService.RetryValidation(id)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "retry validation")
		return
	}
	respondJSON(w, http.StatusAccepted, mapper.ToValidationTaskDTO(task))
}
