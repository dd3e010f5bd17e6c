// Package legacy serves the unversioned routes the original front-end calls.
package legacy

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"knowde-backend/interfaces/http/rest/handlers"
	"knowde-backend/interfaces/http/rest/middleware"
	"knowde-backend/pkg/auth"
)

// NewRouter creates the legacy router for /api/user-prompt
func NewRouter(
	promptHandler *handlers.PromptHandler,
	validator *auth.JWTValidator,
	ipLimiter auth.RateLimiter,
	userLimiter auth.RateLimiter,
	logger *zap.Logger,
) *mux.Router {
	router := mux.NewRouter()

	router.Use(versionHeaders)
	router.Use(mux.MiddlewareFunc(middleware.AuthenticateWithLimiters(validator, ipLimiter, userLimiter, logger)))

	router.HandleFunc("/api/user-prompt", promptHandler.SubmitPrompt).Methods(http.MethodPost)
	router.HandleFunc("/api/user-prompt", promptHandler.SubmitPromptQuery).Methods(http.MethodGet)

	return router
}

// versionHeaders marks responses from the unversioned surface
func versionHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-API-Version", "legacy")
		w.Header().Set("X-API-Latest", "v2")
		next.ServeHTTP(w, r)
	})
}
