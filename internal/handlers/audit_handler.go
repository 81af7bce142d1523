package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"barrel-backend/internal/apperr"
	"barrel-backend/internal/archive"
	"barrel-backend/internal/models"
	"barrel-backend/internal/services"
	"barrel-backend/internal/timeutil"
	"barrel-backend/pkg/utils"
)

const entityAudit = "audit_log"

// DayArchiver exports one day of the audit log.
type DayArchiver interface {
	ArchiveDay(ctx context.Context, day time.Time) (*archive.Result, error)
}

type AuditHandler struct {
	base
	Service  *services.AuditService
	Archiver DayArchiver
}

// NewAuditHandler builds the audit endpoints. archiver may be nil when object
// storage is not configured.
func NewAuditHandler(service *services.AuditService, archiver DayArchiver, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{base: newBase(service, logger), Service: service, Archiver: archiver}
}

func parseDay(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	day, err := timeutil.ParseDate(raw)
	if err != nil {
		return nil, apperr.ErrInvalidField.WithMessagef("%s must be YYYY-MM-DD", name)
	}
	return &day, nil
}

// List filters by entity_type, entity_id, user_id, action and a [from, to]
// range of plant-local days.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.AuditFilter{
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		UserID:     q.Get("user_id"),
		Action:     q.Get("action"),
	}
	var err error
	if filter.From, err = parseDay(r, "from"); err != nil {
		h.fail(w, r, entityAudit, err)
		return
	}
	if filter.To, err = parseDay(r, "to"); err != nil {
		h.fail(w, r, entityAudit, err)
		return
	}
	if filter.To != nil {
		_, end := timeutil.DayBounds(*filter.To)
		filter.To = &end
	}
	if filter.Limit, err = queryInt(r, "limit", 100); err != nil {
		h.fail(w, r, entityAudit, err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		h.fail(w, r, entityAudit, err)
		return
	}

	entries, err := h.Service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, entityAudit, err)
		return
	}
	list(w, entries)
}

func (h *AuditHandler) Verify(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.Verify(r.Context())
	if err != nil {
		h.fail(w, r, entityAudit, err)
		return
	}
	utils.JSON(w, http.StatusOK, res)
}

// Archive exports ?date= (default yesterday) to object storage.
func (h *AuditHandler) Archive(w http.ResponseWriter, r *http.Request) {
	if h.Archiver == nil {
		h.fail(w, r, entityAudit, apperr.ErrInvalidField.WithMessage("audit archiving is not configured"))
		return
	}
	day, err := parseDay(r, "date")
	if err != nil {
		h.fail(w, r, entityAudit, err)
		return
	}
	if day == nil {
		y := timeutil.Now().AddDate(0, 0, -1)
		day = &y
	}
	res, err := h.Archiver.ArchiveDay(r.Context(), *day)
	if err != nil {
		h.fail(w, r, entityAudit, err)
		return
	}
	utils.JSON(w, http.StatusOK, res)
}
