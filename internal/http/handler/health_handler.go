package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/tramitia/process-tracker/internal/domain"
	"go.uber.org/zap"
)

// HealthChecker reports whether a dependency is reachable
type HealthChecker func(ctx context.Context) error

// HealthHandler serves the liveness and readiness probes
type HealthHandler struct {
	checkDatabase HealthChecker
	logger        *zap.Logger
}

func NewHealthHandler(checkDatabase HealthChecker, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{checkDatabase: checkDatabase, logger: logger}
}

// Live godoc
// @Summary Liveness probe
// @Tags Health
// @Produce plain
// @Success 200 {string} string "OK"
// @Router /health [get]
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Ready godoc
// @Summary Readiness probe
// @Tags Health
// @Produce json
// @Success 200 {object} domain.HealthDTO
// @Failure 503 {object} domain.HealthDTO
// @Router /health/ready [get]
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	dto := domain.HealthDTO{Status: "healthy", Database: "healthy", Time: time.Now().UTC().Format(time.RFC3339)}
	if err := h.checkDatabase(ctx); err != nil {
		h.logger.Error("Database health check failed", zap.Error(err))
		dto.Status = "unhealthy"
		dto.Database = "unhealthy"
		respondJSON(w, http.StatusServiceUnavailable, dto)
		return
	}
	respondJSON(w, http.StatusOK, dto)
}
