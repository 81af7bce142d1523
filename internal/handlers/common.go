package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"barrel-backend/internal/apperr"
	"barrel-backend/internal/middleware"
	"barrel-backend/internal/models"
	"barrel-backend/internal/services"
	"barrel-backend/pkg/utils"

	"github.com/gorilla/mux"
)

// base carries what every handler needs to answer failures.
type base struct {
	Audit  middleware.Rejections
	Logger *slog.Logger
}

func newBase(audit middleware.Rejections, logger *slog.Logger) base {
	return base{Audit: audit, Logger: logger}
}

// fail writes err and, for mutating requests, records the refusal in the
// audit log. The failed operation's own transaction has already rolled back.
func (b base) fail(w http.ResponseWriter, r *http.Request, entityType string, err error) {
	status := utils.WriteError(w, err)
	if r.Method == http.MethodGet {
		return
	}
	op := middleware.Operation(r)
	if status >= http.StatusInternalServerError {
		b.Logger.Error("request failed", "component", "http", "op", op, "err", err)
	}

	a, _ := middleware.ActorFromContext(r.Context())
	if a.ID == "" {
		return
	}
	msg := "internal server error"
	if e, ok := apperr.As(err); ok {
		msg = e.Message
	}
	recErr := b.Audit.RecordRejection(context.WithoutCancel(r.Context()), a, services.Rejection{
		Operation:  op,
		EntityType: entityType,
		EntityID:   mux.Vars(r)["id"],
		Status:     status,
		Code:       apperr.CodeOf(err),
		Message:    msg,
	})
	if recErr != nil {
		b.Logger.Error("failed to audit rejected request", "component", "http", "op", op, "err", recErr)
	}
}

// actor returns the authenticated actor set by the auth middleware.
func actor(r *http.Request) models.Actor {
	a, _ := middleware.ActorFromContext(r.Context())
	return a
}

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.ErrInvalidField.WithMessagef("%s must be an integer", name)
	}
	return v, nil
}

// list writes items, returning an empty array instead of null.
func list[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	utils.JSON(w, http.StatusOK, items)
}
