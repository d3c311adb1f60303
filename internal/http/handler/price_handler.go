package handler

import (
	"net/http"
	"strings"

	"github.com/tramitia/process-tracker/internal/catalog"
	"github.com/tramitia/process-tracker/internal/domain"
	"github.com/tramitia/process-tracker/internal/mapper"
	"github.com/tramitia/process-tracker/internal/service"
	"go.uber.org/zap"
)

// PriceHandler handles HTTP requests for the pricing catalog
type PriceHandler struct {
	trackingService *service.TrackingService
	logger          *zap.Logger
}

// NewPriceHandler creates a new PriceHandler instance
func NewPriceHandler(trackingService *service.TrackingService, logger *zap.Logger) *PriceHandler {
	return &PriceHandler{trackingService: trackingService, logger: logger}
}

func categoryFilter(category string) catalog.CategoryFilter {
	if strings.TrimSpace(category) == "" {
		return catalog.AllCategories()
	}
	return catalog.InCategory(category)
}

func toPriceDTOs(entries []domain.PriceEntry) []domain.PriceEntryDTO {
	out := make([]domain.PriceEntryDTO, 0, len(entries))
	for i := range entries {
		out = append(out, mapper.ToPriceEntryDTO(&entries[i]))
	}
	return out
}

// List godoc
// @Summary List price entries
// @Tags Prices
// @Produce json
// @Param category query string false "Filter by category"
// @Param activeOnly query bool false "Only active entries" default(false)
// @Success 200 {array} domain.PriceEntryDTO
// @Router /prices [get]
func (h *PriceHandler) List(w http.ResponseWriter, r *http.Request) {
	entries := h.trackingService.ListPrices(catalog.PriceFilter{
		Category:   categoryFilter(r.URL.Query().Get("category")),
		ActiveOnly: r.URL.Query().Get("activeOnly") == "true",
	})
	respondJSON(w, http.StatusOK, toPriceDTOs(entries))
}

// Categories godoc
// @Summary List price categories
// @Tags Prices
// @Produce json
// @Success 200 {array} string
// @Router /prices/categories [get]
func (h *PriceHandler) Categories(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.trackingService.PriceCategories())
}

// Get godoc
// @Summary Get a price entry
// @Tags Prices
// @Produce json
// @Param id path string true "Price entry ID"
// @Success 200 {object} domain.PriceEntryDTO
// @Failure 404 {object} domain.APIError
// @Router /prices/{id} [get]
func (h *PriceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	entry, err := h.trackingService.GetPrice(id)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "get price entry")
		return
	}
	respondJSON(w, http.StatusOK, mapper.ToPriceEntryDTO(&entry))
}

// Create godoc
// @Summary Create a price entry
// @Tags Prices
// @Accept json
// @Produce json
// @Param request body domain.CreatePriceEntryRequest true "Price entry"
// @Success 201 {object} domain.PriceEntryDTO
// @Failure 400 {object} domain.APIError
// @Router /prices [post]
func (h *PriceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePriceEntryRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	created, err := h.trackingService.CreatePrice(r.Context(), domain.PriceEntry{
		ServiceName: req.ServiceName,
		Price:       req.Price,
		Category:    req.Category,
		Authority:   req.Authority,
		TemplateID:  req.TemplateID,
		Active:      active,
	})
	if err != nil {
		respondServiceError(w, r, h.logger, err, "create price entry")
		return
	}
	respondJSON(w, http.StatusCreated, mapper.ToPriceEntryDTO(&created))
}

// Update godoc
// @Summary Update a price entry
// @Description Only the fields present in the body change.
// @Tags Prices
// @Accept json
// @Produce json
// @Param id path string true "Price entry ID"
// @Param request body domain.UpdatePriceEntryRequest true "Changed fields"
// @Success 200 {object} domain.PriceEntryDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Router /prices/{id} [patch]
func (h *PriceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req domain.UpdatePriceEntryRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	entry, err := h.trackingService.GetPrice(id)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "update price entry")
		return
	}
	if req.ServiceName != nil {
		entry.ServiceName = *req.ServiceName
	}
	if req.Price != nil {
		entry.Price = *req.Price
	}
	if req.Category != nil {
		entry.Category = *req.Category
	}
	if req.Authority != nil {
		entry.Authority = *req.Authority
	}
	if req.TemplateID != nil {
		if *req.TemplateID == "" {
			entry.TemplateID = nil
		} else {
			entry.TemplateID = req.TemplateID
		}
	}
	if req.Active != nil {
		entry.Active = *req.Active
	}

	updated, err := h.trackingService.UpdatePrice(r.Context(), entry)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "update price entry")
		return
	}
	respondJSON(w, http.StatusOK, mapper.ToPriceEntryDTO(&updated))
}

// Delete godoc
// @Summary Delete a price entry
// @Tags Prices
// @Param id path string true "Price entry ID"
// @Success 204
// @Failure 404 {object} domain.APIError
// @Router /prices/{id} [delete]
func (h *PriceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.trackingService.DeletePrice(r.Context(), id); err != nil {
		respondServiceError(w, r, h.logger, err, "delete price entry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Increase godoc
// @Summary Raise prices by a percentage
// @Description Applies to active entries, optionally limited to one category. Results are rounded to whole units.
// @Tags Prices
// @Accept json
// @Produce json
// @Param request body domain.PriceIncreaseRequest true "Increase"
// @Success 200 {array} domain.PriceEntryDTO
// @Failure 400 {object} domain.APIError
// @Router /prices/increase [post]
func (h *PriceHandler) Increase(w http.ResponseWriter, r *http.Request) {
	var req domain.PriceIncreaseRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	changed, err := h.trackingService.ApplyPriceIncrease(r.Context(), req.Percent, categoryFilter(req.Category))
	if err != nil {
		respondServiceError(w, r, h.logger, err, "apply price increase")
		return
	}
	respondJSON(w, http.StatusOK, toPriceDTOs(changed))
}
