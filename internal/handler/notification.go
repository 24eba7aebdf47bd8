package handler

import (
	"log/slog"
	"net/http"

	"github.com/expensync/expensync/internal/handler/dto"
	"github.com/expensync/expensync/internal/service"
)

// NotificationHandler serves the caller's notification feed.
type NotificationHandler struct {
	svc    *service.NotificationService
	logger *slog.Logger
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(svc *service.NotificationService, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, logger: logger}
}

// List handles GET /api/notifications, newest first.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	feed, err := h.svc.Feed(r.Context(), identity.UserID)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToNotificationResponses(feed))
}

// Clear handles POST /api/notifications/clear.
func (h *NotificationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	deleted, err := h.svc.Clear(r.Context(), identity.UserID)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}

	h.logger.Info("notifications_cleared",
		"user_id", identity.UserID.Hex(),
		"count", deleted,
	)

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Notifications cleared successfully"})
}
