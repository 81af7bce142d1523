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

type BarrelHandler struct {
	base
	Registry *services.RegistryService
	Ledger   *services.LedgerService
	Damages  *services.DamageService
}

func NewBarrelHandler(registry *services.RegistryService, ledger *services.LedgerService, damages *services.DamageService, audit middleware.Rejections, logger *slog.Logger) *BarrelHandler {
	return &BarrelHandler{
		base:     newBase(audit, logger),
		Registry: registry,
		Ledger:   ledger,
		Damages:  damages,
	}
}

type scrapRequest struct {
	Reason string `json:"reason"`
}

func (h *BarrelHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterBarrelRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, models.EntityBarrel, err)
		return
	}
	b, err := h.Registry.Register(r.Context(), req, actor(r))
	if err != nil {
		h.fail(w, r, models.EntityBarrel, err)
		return
	}
	utils.JSON(w, http.StatusCreated, b)
}

func (h *BarrelHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.BarrelFilter{
		Status:    models.BarrelStatus(q.Get("status")),
		Condition: models.BarrelCondition(q.Get("condition")),
		Location:  models.Location(q.Get("location")),
	}
	var err error
	if filter.Limit, err = queryInt(r, "limit", 100); err != nil {
		h.fail(w, r, models.EntityBarrel, err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		h.fail(w, r, models.EntityBarrel, err)
		return
	}
	barrels, err := h.Registry.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, models.EntityBarrel, err)
		return
	}
	list(w, barrels)
}

func (h *BarrelHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.Registry.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, models.EntityBarrel, err)
		return
	}
	utils.JSON(w, http.StatusOK, b)
}

func (h *BarrelHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	b, err := h.Registry.GetByCode(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		h.fail(w, r, models.EntityBarrel, err)
		return
	}
	utils.JSON(w, http.StatusOK, b)
}

func (h *BarrelHandler) AdjustVolume(w http.ResponseWriter, r *http.Request) {
	var req models.AdjustVolumeRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, models.EntityBarrel, err)
		return
	}
	b, err := h.Registry.AdjustVolume(r.Context(), mux.Vars(r)["id"], req, actor(r))
	if err != nil {
		h.fail(w, r, models.EntityBarrel, err)
		return
	}
	utils.JSON(w, http.StatusOK, b)
}

func (h *BarrelHandler) Relocate(w http.ResponseWriter, r *http.Request) {
	var req models.RelocateRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, models.EntityBarrel, err)
		return
	}
	b, err := h.Registry.Relocate(r.Context(), mux.Vars(r)["id"], req, actor(r))
	if err != nil {
		h.fail(w, r, models.EntityBarrel, err)
		return
	}
	utils.JSON(w, http.StatusOK, b)
}

func (h *BarrelHandler) UpdateAttributes(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateBarrelAttrsRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, models.EntityBarrel, err)
		return
	}
	b, err := h.Registry.UpdateAttributes(r.Context(), mux.Vars(r)["id"], req, actor(r))
	if err != nil {
		h.fail(w, r, models.EntityBarrel, err)
		return
	}
	utils.JSON(w, http.StatusOK, b)
}

func (h *BarrelHandler) Scrap(w http.ResponseWriter, r *http.Request) {
	var req scrapRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, models.EntityBarrel, err)
		return
	}
	b, err := h.Registry.Scrap(r.Context(), mux.Vars(r)["id"], req.Reason, actor(r))
	if err != nil {
		h.fail(w, r, models.EntityBarrel, err)
		return
	}
	utils.JSON(w, http.StatusOK, b)
}

func (h *BarrelHandler) Dispose(w http.ResponseWriter, r *http.Request) {
	b, err := h.Registry.Dispose(r.Context(), mux.Vars(r)["id"], actor(r))
	if err != nil {
		h.fail(w, r, models.EntityBarrel, err)
		return
	}
	utils.JSON(w, http.StatusOK, b)
}

func (h *BarrelHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		h.fail(w, r, models.EntityMovement, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		h.fail(w, r, models.EntityMovement, err)
		return
	}
	movements, err := h.Ledger.ListByBarrel(r.Context(), mux.Vars(r)["id"], limit, offset)
	if err != nil {
		h.fail(w, r, models.EntityMovement, err)
		return
	}
	list(w, movements)
}

// AppendMovement records a compensating ledger entry.
func (h *BarrelHandler) AppendMovement(w http.ResponseWriter, r *http.Request) {
	var req models.AppendMovementRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, models.EntityMovement, err)
		return
	}
	m, err := h.Ledger.Append(r.Context(), mux.Vars(r)["id"], req, actor(r))
	if err != nil {
		h.fail(w, r, models.EntityMovement, err)
		return
	}
	utils.JSON(w, http.StatusCreated, m)
}

func (h *BarrelHandler) ListDamages(w http.ResponseWriter, r *http.Request) {
	damages, err := h.Damages.ListByBarrel(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, models.EntityDamage, err)
		return
	}
	list(w, damages)
}
