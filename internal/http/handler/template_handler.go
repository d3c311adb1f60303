package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tramitia/process-tracker/internal/catalog"
	"github.com/tramitia/process-tracker/internal/domain"
	"github.com/tramitia/process-tracker/internal/mapper"
	"github.com/tramitia/process-tracker/internal/service"
	"go.uber.org/zap"
)

// TemplateLoader reads the procedure template catalog from its source
type TemplateLoader func() (*catalog.TemplateCatalog, error)

// TemplateHandler handles HTTP requests for the procedure template catalog
type TemplateHandler struct {
	trackingService *service.TrackingService
	loadTemplates   TemplateLoader
	logger          *zap.Logger
}

// NewTemplateHandler creates a new TemplateHandler instance
func NewTemplateHandler(trackingService *service.TrackingService, loadTemplates TemplateLoader, logger *zap.Logger) *TemplateHandler {
	return &TemplateHandler{
		trackingService: trackingService,
		loadTemplates:   loadTemplates,
		logger:          logger,
	}
}

// List godoc
// @Summary List procedure templates
// @Tags Templates
// @Produce json
// @Param authority query string false "Filter by authority (case-insensitive)"
// @Success 200 {array} domain.TemplateDTO
// @Router /templates [get]
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	templates := h.trackingService.ListTemplates(r.URL.Query().Get("authority"))
	out := make([]domain.TemplateDTO, 0, len(templates))
	for i := range templates {
		out = append(out, mapper.ToTemplateDTO(&templates[i]))
	}
	respondJSON(w, http.StatusOK, out)
}

// Get godoc
// @Summary Get a template with its current price
// @Tags Templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} domain.TemplateQuoteDTO
// @Failure 404 {object} domain.APIError
// @Router /templates/{id} [get]
func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	quote, err := h.trackingService.QuoteTemplate(chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, h.logger, err, "get template")
		return
	}
	respondJSON(w, http.StatusOK, mapper.ToTemplateQuoteDTO(quote))
}

// Reload godoc
// @Summary Reload the template catalog
// @Description Re-reads the catalog source and reconciles it against the price list. New templates raise new procedure notifications.
// @Tags Templates
// @Produce json
// @Success 200 {object} domain.ReconcileReportDTO
// @Failure 400 {object} domain.APIError
// @Router /templates/reload [post]
func (h *TemplateHandler) Reload(w http.ResponseWriter, r *http.Request) {
	templates, err := h.loadTemplates()
	if err != nil {
		h.logger.Warn("failed to load template catalog", zap.Error(err))
		respondWithError(w, http.StatusBadRequest, "Failed to load template catalog: "+err.Error())
		return
	}
	report, err := h.trackingService.ReloadTemplates(r.Context(), templates)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "reload templates")
		return
	}
	respondJSON(w, http.StatusOK, mapper.ToReconcileReportDTO(report))
}

// Reconcile godoc
// @Summary Run price reconciliation
// @Description Compares templates with the price list and raises missing, stale and new procedure notifications.
// @Tags Templates
// @Produce json
// @Success 200 {object} domain.ReconcileReportDTO
// @Router /reconcile [post]
func (h *TemplateHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.trackingService.Reconcile(r.Context())
	if err != nil {
		respondServiceError(w, r, h.logger, err, "reconcile prices")
		return
	}
	respondJSON(w, http.StatusOK, mapper.ToReconcileReportDTO(report))
}
