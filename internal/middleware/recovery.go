package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"barrel-backend/pkg/utils"
)

// PanicRecovery turns a panicking handler into a 500 response.
func PanicRecovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						"component", "http", "op", Operation(r), "panic", err, "stack", string(debug.Stack()))
					utils.JSON(w, http.StatusInternalServerError, utils.ErrorBody{
						Error:   "E_INTERNAL",
						Message: "internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
