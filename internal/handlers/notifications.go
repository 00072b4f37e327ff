package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	mw "mentorjournal/internal/middleware"
	"mentorjournal/internal/models"
	"mentorjournal/internal/store"
)

type NotificationStore interface {
	ListNotifications(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id int64) error
	MarkAllNotificationsRead(ctx context.Context, userID int64) (int64, error)
}

type NotificationHandler struct {
	store  NotificationStore
	logger *zap.Logger
}

func NewNotificationHandler(st NotificationStore, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{store: st, logger: logger}
}

// List returns the caller's inbox, newest first. ?unread=true limits it to
// unread notifications.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	unread := r.URL.Query().Get("unread") == "true"
	out, err := h.store.ListNotifications(r.Context(), mw.UserIDFrom(r.Context()), unread, store.Clamp(limitParam(r), 50, 200))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if out == nil {
		out = []models.Notification{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "notificationID")
	if !ok {
		return
	}
	if err := h.store.MarkNotificationRead(r.Context(), mw.UserIDFrom(r.Context()), id); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.MarkAllNotificationsRead(r.Context(), mw.UserIDFrom(r.Context()))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"marked": n})
}
