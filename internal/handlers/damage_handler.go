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

type DamageHandler struct {
	base
	Damages *services.DamageService
	Repairs *services.RepairService
}

func NewDamageHandler(damages *services.DamageService, repairs *services.RepairService, audit middleware.Rejections, logger *slog.Logger) *DamageHandler {
	return &DamageHandler{
		base:    newBase(audit, logger),
		Damages: damages,
		Repairs: repairs,
	}
}

func (h *DamageHandler) Report(w http.ResponseWriter, r *http.Request) {
	var req models.ReportDamageRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, models.EntityDamage, err)
		return
	}
	d, err := h.Damages.ReportDamage(r.Context(), req, actor(r))
	if err != nil {
		h.fail(w, r, models.EntityDamage, err)
		return
	}
	utils.JSON(w, http.StatusCreated, d)
}

// ListOpen returns active reports, or every report of one barrel when
// barrel_id is given.
func (h *DamageHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	var (
		damages []*models.BarrelDamage
		err     error
	)
	if barrelID := r.URL.Query().Get("barrel_id"); barrelID != "" {
		damages, err = h.Damages.ListByBarrel(r.Context(), barrelID)
	} else {
		damages, err = h.Damages.ListOpen(r.Context())
	}
	if err != nil {
		h.fail(w, r, models.EntityDamage, err)
		return
	}
	list(w, damages)
}

func (h *DamageHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.Damages.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, models.EntityDamage, err)
		return
	}
	utils.JSON(w, http.StatusOK, d)
}

func (h *DamageHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req models.AssignDamageRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, models.EntityDamage, err)
		return
	}
	a, err := h.Damages.Assign(r.Context(), mux.Vars(r)["id"], req, actor(r))
	if err != nil {
		h.fail(w, r, models.EntityDamage, err)
		return
	}
	utils.JSON(w, http.StatusOK, a)
}

func (h *DamageHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	d, err := h.Damages.Resolve(r.Context(), mux.Vars(r)["id"], actor(r))
	if err != nil {
		h.fail(w, r, models.EntityDamage, err)
		return
	}
	utils.JSON(w, http.StatusOK, d)
}

// ListRepairs returns every workflow spawned by a report, oldest first.
func (h *DamageHandler) ListRepairs(w http.ResponseWriter, r *http.Request) {
	repairs, err := h.Repairs.ListByDamage(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, models.EntityRepair, err)
		return
	}
	list(w, repairs)
}
