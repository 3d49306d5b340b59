package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/agentos-labs/agentos-backend/pkg/config"
)

// CORS applies the configured origin policy. The embed widget runs on
// arbitrary content sites, so operators usually keep the default wildcard
// and rely on the rate limiter instead of origin pinning.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: false,
		MaxAge:           300,
	}).Handler
}
