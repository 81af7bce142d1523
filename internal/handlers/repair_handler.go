package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"barrel-backend/internal/middleware"
	"barrel-backend/internal/models"
	"barrel-backend/internal/services"
	"barrel-backend/pkg/utils"

	"github.com/gorilla/mux"
)

type RepairHandler struct {
	base
	Repairs *services.RepairService
}

func NewRepairHandler(repairs *services.RepairService, audit middleware.Rejections, logger *slog.Logger) *RepairHandler {
	return &RepairHandler{base: newBase(audit, logger), Repairs: repairs}
}

func (h *RepairHandler) Get(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Repairs.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, models.EntityRepair, err)
		return
	}
	utils.JSON(w, http.StatusOK, rep)
}

// List returns the workflows assigned to ?assignee=, defaulting to the caller.
func (h *RepairHandler) List(w http.ResponseWriter, r *http.Request) {
	assignee := r.URL.Query().Get("assignee")
	if assignee == "" {
		assignee = actor(r).ID
	}
	repairs, err := h.Repairs.ListByAssignee(r.Context(), assignee)
	if err != nil {
		h.fail(w, r, models.EntityRepair, err)
		return
	}
	list(w, repairs)
}

type repairTransition func(ctx context.Context, id string, actor models.Actor) (*models.BarrelRepair, error)

func (h *RepairHandler) transition(fn repairTransition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := fn(r.Context(), mux.Vars(r)["id"], actor(r))
		if err != nil {
			h.fail(w, r, models.EntityRepair, err)
			return
		}
		utils.JSON(w, http.StatusOK, rep)
	}
}

func (h *RepairHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(h.Repairs.StartWork)(w, r)
}

func (h *RepairHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(h.Repairs.Complete)(w, r)
}

func (h *RepairHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(h.Repairs.Approve)(w, r)
}

func (h *RepairHandler) LogStep(w http.ResponseWriter, r *http.Request) {
	var req models.LogStepRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, models.EntityRepair, err)
		return
	}
	rep, err := h.Repairs.LogStep(r.Context(), mux.Vars(r)["id"], req, actor(r))
	if err != nil {
		h.fail(w, r, models.EntityRepair, err)
		return
	}
	utils.JSON(w, http.StatusOK, rep)
}

func (h *RepairHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req models.RejectRepairRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, models.EntityRepair, err)
		return
	}
	rep, err := h.Repairs.Reject(r.Context(), mux.Vars(r)["id"], req.Reason, actor(r))
	if err != nil {
		h.fail(w, r, models.EntityRepair, err)
		return
	}
	utils.JSON(w, http.StatusOK, rep)
}
