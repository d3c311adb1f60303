package handler

import (
	"net/http"

	"github.com/tramitia/process-tracker/internal/domain"
	"github.com/tramitia/process-tracker/internal/mapper"
	"github.com/tramitia/process-tracker/internal/service"
	"go.uber.org/zap"
)

// NotificationHandler handles HTTP requests for the notification feed
type NotificationHandler struct {
	trackingService *service.TrackingService
	logger          *zap.Logger
}

// NewNotificationHandler creates a new NotificationHandler instance
func NewNotificationHandler(trackingService *service.TrackingService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{trackingService: trackingService, logger: logger}
}

// List godoc
// @Summary List notifications
// @Description Newest first. Pricing and system notifications share one feed.
// @Tags Notifications
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param unreadOnly query bool false "Filter to show only unread notifications" default(false)
// @Param kind query string false "Filter by kind" Enums(missing_price, new_procedure, stale_update, system)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.NotificationDTO}
// @Failure 400 {object} domain.APIError
// @Router /notifications [get]
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	kind := domain.NotificationKind(r.URL.Query().Get("kind"))
	if kind != "" && !kind.IsValid() {
		respondWithError(w, http.StatusBadRequest, "invalid notification kind: must be one of missing_price, new_procedure, stale_update, system")
		return
	}
	page, pageSize := pagination(r)
	items := h.trackingService.ListNotifications(service.NotificationFilter{
		UnreadOnly: r.URL.Query().Get("unreadOnly") == "true",
		Kind:       kind,
	})
	respondJSON(w, http.StatusOK, paginate(mapper.ToNotificationDTOs(items), page, pageSize))
}

// CreateSystem godoc
// @Summary Post a system notification
// @Tags Notifications
// @Accept json
// @Produce json
// @Param request body domain.CreateSystemNotificationRequest true "Notification"
// @Success 201 {object} domain.NotificationDTO
// @Failure 400 {object} domain.APIError
// @Router /notifications/system [post]
func (h *NotificationHandler) CreateSystem(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSystemNotificationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	n, err := h.trackingService.AddSystemNotification(r.Context(), req.Title, req.Message, req.EntityType, req.EntityID)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "create notification")
		return
	}
	respondJSON(w, http.StatusCreated, mapper.ToNotificationDTO(&n))
}

// GetUnreadCount godoc
// @Summary Get unread notification count
// @Tags Notifications
// @Produce json
// @Success 200 {object} domain.UnreadCountDTO
// @Router /notifications/count [get]
func (h *NotificationHandler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, domain.UnreadCountDTO{Count: h.trackingService.UnreadNotificationCount()})
}

// MarkAsRead godoc
// @Summary Mark a notification as read
// @Tags Notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 200 {object} domain.NotificationDTO
// @Failure 404 {object} domain.APIError
// @Router /notifications/{id}/read [put]
func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	n, err := h.trackingService.MarkNotificationRead(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "mark notification as read")
		return
	}
	respondJSON(w, http.StatusOK, mapper.ToNotificationDTO(&n))
}

// MarkAllAsRead godoc
// @Summary Mark all notifications as read
// @Tags Notifications
// @Produce json
// @Success 200 {object} domain.MarkAllReadDTO
// @Router /notifications/read-all [put]
func (h *NotificationHandler) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	updated, err := h.trackingService.MarkAllNotificationsRead(r.Context())
	if err != nil {
		respondServiceError(w, r, h.logger, err, "mark all notifications as read")
		return
	}
	respondJSON(w, http.StatusOK, domain.MarkAllReadDTO{Updated: updated})
}

// Delete godoc
// @Summary Delete a notification
// @Tags Notifications
// @Param id path string true "Notification ID"
// @Success 204
// @Failure 404 {object} domain.APIError
// @Router /notifications/{id} [delete]
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.trackingService.DeleteNotification(r.Context(), id); err != nil {
		respondServiceError(w, r, h.logger, err, "delete notification")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
