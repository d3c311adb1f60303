package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/tramitia/process-tracker/internal/domain"
	"github.com/tramitia/process-tracker/internal/mapper"
	"github.com/tramitia/process-tracker/internal/service"
	"go.uber.org/zap"
)

// BudgetHandler handles HTTP requests for budgets
type BudgetHandler struct {
	trackingService *service.TrackingService
	logger          *zap.Logger
}

// NewBudgetHandler creates a new BudgetHandler instance
func NewBudgetHandler(trackingService *service.TrackingService, logger *zap.Logger) *BudgetHandler {
	return &BudgetHandler{trackingService: trackingService, logger: logger}
}

// List godoc
// @Summary List budgets
// @Tags Budgets
// @Produce json
// @Param status query string false "Filter by status" Enums(draft, sent, approved, rejected, expired)
// @Success 200 {array} domain.BudgetDTO
// @Failure 400 {object} domain.APIError
// @Router /budgets [get]
func (h *BudgetHandler) List(w http.ResponseWriter, r *http.Request) {
	status := domain.BudgetStatus(r.URL.Query().Get("status"))
	if status != "" && !status.IsValid() {
		respondWithError(w, http.StatusBadRequest, "invalid budget status: must be one of draft, sent, approved, rejected, expired")
		return
	}
	budgets := h.trackingService.ListBudgets(status)
	out := make([]domain.BudgetDTO, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, mapper.ToBudgetDTO(b))
	}
	respondJSON(w, http.StatusOK, out)
}

// Get godoc
// @Summary Get a budget
// @Tags Budgets
// @Produce json
// @Param id path string true "Budget ID"
// @Success 200 {object} domain.BudgetDTO
// @Failure 404 {object} domain.APIError
// @Router /budgets/{id} [get]
func (h *BudgetHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	budget, err := h.trackingService.GetBudget(id)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "get budget")
		return
	}
	respondJSON(w, http.StatusOK, mapper.ToBudgetDTO(budget))
}

// Create godoc
// @Summary Create a draft budget
// @Description Prices every referenced template and adds VAT.
// @Tags Budgets
// @Accept json
// @Produce json
// @Param request body domain.CreateBudgetRequest true "Budget"
// @Success 201 {object} domain.BudgetDTO
// @Failure 400 {object} domain.APIError
// @Router /budgets [post]
func (h *BudgetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateBudgetRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	budget, err := h.trackingService.CreateBudget(r.Context(), service.BudgetInput{
		ClientID:    req.ClientID,
		TemplateIDs: req.TemplateIDs,
		Notes:       req.Notes,
	})
	if err != nil {
		respondServiceError(w, r, h.logger, err, "create budget")
		return
	}
	respondJSON(w, http.StatusCreated, mapper.ToBudgetDTO(budget))
}

type budgetMove func(ctx context.Context, id uuid.UUID) (*domain.Budget, error)

func (h *BudgetHandler) move(w http.ResponseWriter, r *http.Request, fn budgetMove, action string) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	budget, err := fn(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, err, action)
		return
	}
	respondJSON(w, http.StatusOK, mapper.ToBudgetDTO(budget))
}

// Send godoc
// @Summary Send a budget to the client
// @Tags Budgets
// @Produce json
// @Param id path string true "Budget ID"
// @Success 200 {object} domain.BudgetDTO
// @Failure 409 {object} domain.APIError
// @Router /budgets/{id}/send [post]
func (h *BudgetHandler) Send(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.trackingService.SendBudget, "send budget")
}

// Reject godoc
// @Summary Reject a budget
// @Tags Budgets
// @Produce json
// @Param id path string true "Budget ID"
// @Success 200 {object} domain.BudgetDTO
// @Failure 409 {object} domain.APIError
// @Router /budgets/{id}/reject [post]
func (h *BudgetHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.trackingService.RejectBudget, "reject budget")
}

// Expire godoc
// @Summary Expire a sent budget
// @Tags Budgets
// @Produce json
// @Param id path string true "Budget ID"
// @Success 200 {object} domain.BudgetDTO
// @Failure 409 {object} domain.APIError
// @Router /budgets/{id}/expire [post]
func (h *BudgetHandler) Expire(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.trackingService.ExpireBudget, "expire budget")
}

func (h *BudgetHandler) respondApproval(w http.ResponseWriter, budget *domain.Budget, processes []*domain.Process, status int) {
	respondJSON(w, status, domain.BudgetApprovalDTO{
		Budget:    mapper.ToBudgetDTO(budget),
		Processes: mapper.ToProcessDTOs(processes),
	})
}

// Approve godoc
// @Summary Approve a budget
// @Description Approval generates one process per referenced template.
// @Tags Budgets
// @Produce json
// @Param id path string true "Budget ID"
// @Success 200 {object} domain.BudgetApprovalDTO
// @Failure 409 {object} domain.APIError
// @Router /budgets/{id}/approve [post]
func (h *BudgetHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	budget, processes, err := h.trackingService.ApproveBudget(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "approve budget")
		return
	}
	h.respondApproval(w, budget, processes, http.StatusOK)
}

// GenerateProcesses godoc
// @Summary Generate processes from an approved budget
// @Description Fails with 409 when processes were already generated.
// @Tags Budgets
// @Produce json
// @Param id path string true "Budget ID"
// @Success 201 {object} domain.BudgetApprovalDTO
// @Failure 409 {object} domain.APIError
// @Router /budgets/{id}/processes [post]
func (h *BudgetHandler) GenerateProcesses(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	budget, processes, err := h.trackingService.GenerateFromBudget(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "generate processes")
		return
	}
	h.respondApproval(w, budget, processes, http.StatusCreated)
}
