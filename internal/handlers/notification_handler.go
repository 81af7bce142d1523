package handlers

import (
	"log/slog"
	"net/http"

	"barrel-backend/internal/middleware"
	"barrel-backend/internal/models"
	"barrel-backend/internal/services"
	"barrel-backend/pkg/utils"

	"github.com/gorilla/mux"
)

type NotificationHandler struct {
	base
	Notifications *services.NotificationService
}

func NewNotificationHandler(notifications *services.NotificationService, audit middleware.Rejections, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{base: newBase(audit, logger), Notifications: notifications}
}

// List returns the caller's notifications, newest first. ?unread=true keeps
// only unread ones.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		h.fail(w, r, models.EntityNotification, err)
		return
	}
	unreadOnly := r.URL.Query().Get("unread") == "true"
	items, err := h.Notifications.ListForActor(r.Context(), actor(r), unreadOnly, limit)
	if err != nil {
		h.fail(w, r, models.EntityNotification, err)
		return
	}
	list(w, items)
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.Notifications.UnreadCount(r.Context(), actor(r))
	if err != nil {
		h.fail(w, r, models.EntityNotification, err)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]int{"unread": count})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.Notifications.MarkRead(r.Context(), mux.Vars(r)["id"], actor(r))
	if err != nil {
		h.fail(w, r, models.EntityNotification, err)
		return
	}
	utils.JSON(w, http.StatusOK, n)
}

func (h *NotificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req models.SendNotificationRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, models.EntityNotification, err)
		return
	}
	n, err := h.Notifications.Send(r.Context(), req, actor(r))
	if err != nil {
		h.fail(w, r, models.EntityNotification, err)
		return
	}
	utils.JSON(w, http.StatusCreated, n)
}
