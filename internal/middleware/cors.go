package middleware

import (
	"net/http"

	"barrel-backend/internal/config"

	"github.com/rs/cors"
)

// NewCORS allows the configured origins to call the API with a bearer token.
// Cookies are never used, so credentials stay disabled.
func NewCORS(cfg *config.Config) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.CorsAllowedOrigins,
		AllowedMethods: cfg.Server.CorsAllowedMethods,
		AllowedHeaders: cfg.Server.CorsAllowedHeaders,
		ExposedHeaders: []string{"Content-Type"},
		MaxAge:         600,
	})
	return c.Handler
}
