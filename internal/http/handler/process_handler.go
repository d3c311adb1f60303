package handler

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/tramitia/process-tracker/internal/domain"
	"github.com/tramitia/process-tracker/internal/mapper"
	"github.com/tramitia/process-tracker/internal/service"
	"go.uber.org/zap"
)

// ProcessHandler handles HTTP requests for processes and their documents
type ProcessHandler struct {
	trackingService *service.TrackingService
	maxUploadMB     int64
	logger          *zap.Logger
}

// NewProcessHandler creates a new ProcessHandler instance
func NewProcessHandler(trackingService *service.TrackingService, maxUploadMB int64, logger *zap.Logger) *ProcessHandler {
	return &ProcessHandler{
		trackingService: trackingService,
		maxUploadMB:     maxUploadMB,
		logger:          logger,
	}
}

// List godoc
// @Summary List processes
// @Description Newest first, paginated.
// @Tags Processes
// @Produce json
// @Param status query string false "Filter by status" Enums(pending, collecting_docs, sent, under_review, approved, rejected, archived)
// @Param clientId query string false "Filter by client"
// @Param tag query string false "Filter by tag"
// @Param budgetId query string false "Filter by originating budget"
// @Param billed query bool false "Filter by billing state"
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.ProcessDTO}
// @Failure 400 {object} domain.APIError
// @Router /processes [get]
func (h *ProcessHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := service.ProcessFilter{
		Status:   domain.ProcessStatus(q.Get("status")),
		ClientID: q.Get("clientId"),
		Tag:      q.Get("tag"),
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		respondWithError(w, http.StatusBadRequest, "invalid process status")
		return
	}
	if v := q.Get("budgetId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid budgetId: must be a valid UUID")
			return
		}
		filter.BudgetID = &id
	}
	if v := q.Get("billed"); v != "" {
		billed, err := strconv.ParseBool(v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid billed: must be true or false")
			return
		}
		filter.Billed = &billed
	}

	page, pageSize := pagination(r)
	dtos := mapper.ToProcessDTOs(h.trackingService.ListProcesses(filter))
	respondJSON(w, http.StatusOK, paginate(dtos, page, pageSize))
}

// StatusCounts godoc
// @Summary Count processes per status
// @Tags Processes
// @Produce json
// @Success 200 {array} domain.StatusCountDTO
// @Router /processes/status-counts [get]
func (h *ProcessHandler) StatusCounts(w http.ResponseWriter, r *http.Request) {
	counts := h.trackingService.ProcessStatusCounts()
	out := make([]domain.StatusCountDTO, 0, len(domain.ProcessStatuses))
	for _, st := range domain.ProcessStatuses {
		out = append(out, domain.StatusCountDTO{Status: st, Count: counts[st]})
	}
	respondJSON(w, http.StatusOK, out)
}

// Get godoc
// @Summary Get a process
// @Tags Processes
// @Produce json
// @Param id path string true "Process ID"
// @Success 200 {object} domain.ProcessDTO
// @Failure 404 {object} domain.APIError
// @Router /processes/{id} [get]
func (h *ProcessHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	p, err := h.trackingService.GetProcess(id)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "get process")
		return
	}
	respondJSON(w, http.StatusOK, mapper.ToProcessDTO(p))
}

// Create godoc
// @Summary Start a process from a template
// @Tags Processes
// @Accept json
// @Produce json
// @Param request body domain.GenerateProcessRequest true "Template and client"
// @Success 201 {object} domain.ProcessDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Router /processes [post]
func (h *ProcessHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.GenerateProcessRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	p, err := h.trackingService.GenerateFromTemplate(r.Context(), req.TemplateID, req.ClientID, req.Authority)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "create process")
		return
	}
	respondJSON(w, http.StatusCreated, mapper.ToProcessDTO(p))
}

// Update godoc
// @Summary Update process details
// @Tags Processes
// @Accept json
// @Produce json
// @Param id path string true "Process ID"
// @Param request body domain.UpdateProcessRequest true "Changed fields"
// @Success 200 {object} domain.ProcessDTO
// @Failure 400 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Router /processes/{id} [patch]
func (h *ProcessHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req domain.UpdateProcessRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	update := service.ProcessUpdate{
		Title:       req.Title,
		Description: req.Description,
		DueAt:       req.DueAt,
		Tags:        req.Tags,
	}
	if req.Priority != nil {
		priority := domain.ProcessPriority(*req.Priority)
		update.Priority = &priority
	}
	p, err := h.trackingService.UpdateProcess(r.Context(), id, update)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "update process")
		return
	}
	respondJSON(w, http.StatusOK, mapper.ToProcessDTO(p))
}

// Transitions godoc
// @Summary List allowed status transitions
// @Tags Processes
// @Produce json
// @Param id path string true "Process ID"
// @Success 200 {object} domain.ProcessTransitionsDTO
// @Failure 404 {object} domain.APIError
// @Router /processes/{id}/transitions [get]
func (h *ProcessHandler) Transitions(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	p, err := h.trackingService.GetProcess(id)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "get transitions")
		return
	}
	allowed, err := h.trackingService.AllowedTransitions(id)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "get transitions")
		return
	}
	if allowed == nil {
		allowed = []domain.ProcessStatus{}
	}
	respondJSON(w, http.StatusOK, domain.ProcessTransitionsDTO{Status: p.Status, Allowed: allowed})
}

// Transition godoc
// @Summary Move a process to another status
// @Description Moving to sent requires every required document to be approved.
// @Tags Processes
// @Accept json
// @Produce json
// @Param id path string true "Process ID"
// @Param request body domain.TransitionProcessRequest true "Target status"
// @Success 200 {object} domain.ProcessDTO
// @Failure 409 {object} domain.APIError
// @Router /processes/{id}/transitions [post]
func (h *ProcessHandler) Transition(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req domain.TransitionProcessRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	p, err := h.trackingService.TransitionProcess(r.Context(), id, domain.ProcessStatus(req.Status))
	if err != nil {
		respondServiceError(w, r, h.logger, err, "transition process")
		return
	}
	respondJSON(w, http.StatusOK, mapper.ToProcessDTO(p))
}

// MarkBilled godoc
// @Summary Mark a process as billed
// @Tags Processes
// @Produce json
// @Param id path string true "Process ID"
// @Success 200 {object} domain.ProcessDTO
// @Failure 409 {object} domain.APIError
// @Router /processes/{id}/billed [post]
func (h *ProcessHandler) MarkBilled(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	p, err := h.trackingService.MarkProcessBilled(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "mark process billed")
		return
	}
	respondJSON(w, http.StatusOK, mapper.ToProcessDTO(p))
}

// SetDocumentStatus godoc
// @Summary Set a document's review status
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Process ID"
// @Param documentId path string true "Document ID"
// @Param request body domain.UpdateDocumentStatusRequest true "Status"
// @Success 200 {object} domain.ProcessDTO
// @Failure 409 {object} domain.APIError
// @Router /processes/{id}/documents/{documentId}/status [put]
func (h *ProcessHandler) SetDocumentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	documentID, ok := uuidParam(w, r, "documentId")
	if !ok {
		return
	}
	var req domain.UpdateDocumentStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	p, err := h.trackingService.SetDocumentStatus(r.Context(), id, documentID, domain.DocumentStatus(req.Status))
	if err != nil {
		respondServiceError(w, r, h.logger, err, "set document status")
		return
	}
	respondJSON(w, http.StatusOK, mapper.ToProcessDTO(p))
}
