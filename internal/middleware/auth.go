package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"barrel-backend/internal/apperr"
	"barrel-backend/internal/auth"
	"barrel-backend/internal/models"
	"barrel-backend/internal/services"
	"barrel-backend/pkg/utils"

	"github.com/gorilla/mux"
)

type contextKey string

const ActorKey contextKey = "actor"

// Rejections records refused requests in the audit log.
type Rejections interface {
	RecordRejection(ctx context.Context, actor models.Actor, r services.Rejection) error
}

type AuthMiddleware struct {
	jwtManager *auth.JWTManager
	rejections Rejections
	logger     *slog.Logger
}

func NewAuthMiddleware(jwtManager *auth.JWTManager, rejections Rejections, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
		rejections: rejections,
		logger:     logger,
	}
}

// WithActor stores the acting identity in ctx.
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// ActorFromContext extracts the acting identity from request context
func ActorFromContext(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(ActorKey).(models.Actor)
	return actor, ok
}

// ClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// remote address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Operation names the route being served, for logs and audit entries.
func Operation(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if name := route.GetName(); name != "" {
			return name
		}
	}
	return r.Method + " " + r.URL.Path
}

func unauthorized(w http.ResponseWriter, msg string) {
	utils.JSON(w, http.StatusUnauthorized, utils.ErrorBody{Error: "E_UNAUTHENTICATED", Message: msg})
}

// authenticate validates the bearer token and builds the actor.
func (m *AuthMiddleware) authenticate(r *http.Request) (models.Actor, string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return models.Actor{}, "Authorization header required"
	}

	// Extract token from "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return models.Actor{}, "Invalid authorization format"
	}

	claims, err := m.jwtManager.ValidateToken(parts[1])
	if err != nil {
		return models.Actor{}, "Invalid or expired token"
	}
	return models.Actor{
		ID:        claims.UserID,
		Role:      claims.Role,
		IPAddress: ClientIP(r),
		UserAgent: r.UserAgent(),
	}, ""
}

// Authenticate is a middleware that validates JWT tokens
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, problem := m.authenticate(r)
		if problem != "" {
			unauthorized(w, problem)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// RequireRole is a middleware that ensures the actor has one of the allowed
// roles. Refusals are written to the audit log.
func (m *AuthMiddleware) RequireRole(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, problem := m.authenticate(r)
			if problem != "" {
				unauthorized(w, problem)
				return
			}

			hasRole := false
			for _, role := range allowedRoles {
				if actor.Role == role {
					hasRole = true
					break
				}
			}

			if !hasRole {
				op := Operation(r)
				err := apperr.ErrForbidden.WithMessagef("role %q may not call %s", actor.Role, op)
				if recErr := m.rejections.RecordRejection(r.Context(), actor, services.Rejection{
					Operation: op,
					EntityID:  mux.Vars(r)["id"],
					Status:    http.StatusForbidden,
					Code:      err.Code,
					Message:   err.Message,
				}); recErr != nil {
					m.logger.Error("failed to audit denied request", "component", "auth", "op", op, "err", recErr)
				}
				m.logger.Warn("request denied", "component", "auth", "op", op, "user_id", actor.ID, "role", actor.Role)
				utils.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// RequireAdmin is a middleware that ensures the user has admin role
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireRole(models.RoleAdmin)(next)
}
