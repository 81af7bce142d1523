package http

import (
	"net/http"

	"barrel-backend/internal/handlers"
	"barrel-backend/internal/middleware"
	"barrel-backend/internal/models"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	labRoles        = []string{models.RoleLab, models.RoleSupervisor, models.RoleAdmin}
	anyRole         = []string{models.RoleLab, models.RoleWorker, models.RoleSupervisor, models.RoleAdmin}
	supervisorRoles = []string{models.RoleSupervisor, models.RoleAdmin}
	workerRoles     = []string{models.RoleWorker, models.RoleSupervisor, models.RoleAdmin}
	adminRoles      = []string{models.RoleAdmin}
)

func NewRouter(
	barrelHandler *handlers.BarrelHandler,
	damageHandler *handlers.DamageHandler,
	repairHandler *handlers.RepairHandler,
	notificationHandler *handlers.NotificationHandler,
	auditHandler *handlers.AuditHandler,
	healthHandler *handlers.HealthHandler,
	authMiddleware *middleware.AuthMiddleware,
) *mux.Router {
	r := mux.NewRouter()

	allow := func(h http.HandlerFunc, roles []string) http.HandlerFunc {
		return authMiddleware.RequireRole(roles...)(h).ServeHTTP
	}

	// Barrels - reads open to every authenticated user
	barrelsAPI := r.PathPrefix("/api/barrels").Subrouter()
	barrelsAPI.Use(authMiddleware.Authenticate)
	barrelsAPI.HandleFunc("", barrelHandler.List).Methods("GET").Name("barrel.list")
	barrelsAPI.HandleFunc("", allow(barrelHandler.Register, labRoles)).Methods("POST").Name("barrel.register")
	barrelsAPI.HandleFunc("/code/{code}", barrelHandler.GetByCode).Methods("GET").Name("barrel.get_by_code")
	barrelsAPI.HandleFunc("/{id}", barrelHandler.Get).Methods("GET").Name("barrel.get")
	barrelsAPI.HandleFunc("/{id}", allow(barrelHandler.UpdateAttributes, labRoles)).Methods("PATCH").Name("barrel.update_attributes")
	barrelsAPI.HandleFunc("/{id}/volume", allow(barrelHandler.AdjustVolume, labRoles)).Methods("POST").Name("barrel.adjust_volume")
	barrelsAPI.HandleFunc("/{id}/relocate", allow(barrelHandler.Relocate, labRoles)).Methods("POST").Name("barrel.relocate")
	barrelsAPI.HandleFunc("/{id}/scrap", allow(barrelHandler.Scrap, supervisorRoles)).Methods("POST").Name("barrel.scrap")
	barrelsAPI.HandleFunc("/{id}/dispose", allow(barrelHandler.Dispose, supervisorRoles)).Methods("POST").Name("barrel.dispose")
	barrelsAPI.HandleFunc("/{id}/movements", barrelHandler.ListMovements).Methods("GET").Name("movement.list")
	barrelsAPI.HandleFunc("/{id}/movements", allow(barrelHandler.AppendMovement, supervisorRoles)).Methods("POST").Name("movement.append")
	barrelsAPI.HandleFunc("/{id}/damages", barrelHandler.ListDamages).Methods("GET").Name("damage.list_by_barrel")

	// Damage reports
	damagesAPI := r.PathPrefix("/api/damages").Subrouter()
	damagesAPI.Use(authMiddleware.Authenticate)
	damagesAPI.HandleFunc("", damageHandler.ListOpen).Methods("GET").Name("damage.list")
	damagesAPI.HandleFunc("", allow(damageHandler.Report, anyRole)).Methods("POST").Name("damage.report")
	damagesAPI.HandleFunc("/{id}", damageHandler.Get).Methods("GET").Name("damage.get")
	damagesAPI.HandleFunc("/{id}/assign", allow(damageHandler.Assign, supervisorRoles)).Methods("POST").Name("damage.assign")
	damagesAPI.HandleFunc("/{id}/resolve", allow(damageHandler.Resolve, supervisorRoles)).Methods("POST").Name("damage.resolve")
	damagesAPI.HandleFunc("/{id}/repairs", damageHandler.ListRepairs).Methods("GET").Name("repair.list_by_damage")

	// Repair workflows
	repairsAPI := r.PathPrefix("/api/repairs").Subrouter()
	repairsAPI.Use(authMiddleware.Authenticate)
	repairsAPI.HandleFunc("", repairHandler.List).Methods("GET").Name("repair.list")
	repairsAPI.HandleFunc("/{id}", repairHandler.Get).Methods("GET").Name("repair.get")
	repairsAPI.HandleFunc("/{id}/start", allow(repairHandler.Start, workerRoles)).Methods("POST").Name("repair.start")
	repairsAPI.HandleFunc("/{id}/log", allow(repairHandler.LogStep, workerRoles)).Methods("POST").Name("repair.log_step")
	repairsAPI.HandleFunc("/{id}/complete", allow(repairHandler.Complete, workerRoles)).Methods("POST").Name("repair.complete")
	repairsAPI.HandleFunc("/{id}/approve", allow(repairHandler.Approve, supervisorRoles)).Methods("POST").Name("repair.approve")
	repairsAPI.HandleFunc("/{id}/reject", allow(repairHandler.Reject, supervisorRoles)).Methods("POST").Name("repair.reject")

	// Notifications
	notificationsAPI := r.PathPrefix("/api/notifications").Subrouter()
	notificationsAPI.Use(authMiddleware.Authenticate)
	notificationsAPI.HandleFunc("", notificationHandler.List).Methods("GET").Name("notification.list")
	notificationsAPI.HandleFunc("", allow(notificationHandler.Send, adminRoles)).Methods("POST").Name("notification.send")
	notificationsAPI.HandleFunc("/unread-count", notificationHandler.UnreadCount).Methods("GET").Name("notification.unread_count")
	notificationsAPI.HandleFunc("/{id}/read", notificationHandler.MarkRead).Methods("POST").Name("notification.mark_read")

	// Audit log (admin only)
	auditAPI := r.PathPrefix("/api/audit").Subrouter()
	auditAPI.Use(authMiddleware.RequireAdmin)
	auditAPI.HandleFunc("", auditHandler.List).Methods("GET").Name("audit.list")
	auditAPI.HandleFunc("/verify", auditHandler.Verify).Methods("GET").Name("audit.verify")
	auditAPI.HandleFunc("/archive", auditHandler.Archive).Methods("POST").Name("audit.archive")

	// Health endpoints (no auth required - for Kubernetes probes)
	r.HandleFunc("/health", healthHandler.BasicHealth).Methods("GET")
	r.HandleFunc("/health/ready", healthHandler.ReadinessHealth).Methods("GET")

	// Metrics endpoint (Prometheus format)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
