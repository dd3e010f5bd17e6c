package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"knowde-backend/interfaces/http/rest/handlers"
	"knowde-backend/interfaces/http/rest/legacy"
	"knowde-backend/interfaces/http/rest/middleware"
	"knowde-backend/pkg/auth"
)

// Router creates and configures the HTTP router
type Router struct {
	promptHandler *handlers.PromptHandler
	graphHandler  *handlers.GraphHandler
	validator     *auth.JWTValidator
	ipLimiter     auth.RateLimiter
	userLimiter   auth.RateLimiter
	logger        *zap.Logger
	enableCORS    bool
}

// NewRouter creates a new router instance
func NewRouter(
	promptHandler *handlers.PromptHandler,
	graphHandler *handlers.GraphHandler,
	validator *auth.JWTValidator,
	ipLimiter auth.RateLimiter,
	userLimiter auth.RateLimiter,
	logger *zap.Logger,
	enableCORS bool,
) *Router {
	return &Router{
		promptHandler: promptHandler,
		graphHandler:  graphHandler,
		validator:     validator,
		ipLimiter:     ipLimiter,
		userLimiter:   userLimiter,
		logger:        logger,
		enableCORS:    enableCORS,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	if rt.enableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000", "https://*.knowde.app"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)

	// Unversioned route the original front-end calls, served by the legacy router
	legacyRouter := legacy.NewRouter(rt.promptHandler, rt.validator, rt.ipLimiter, rt.userLimiter, rt.logger)
	router.Handle("/api/user-prompt", legacyRouter)

	// API v2 routes (current)
	router.Route("/api/v2", func(r chi.Router) {
		r.Use(middleware.AuthenticateWithLimiters(rt.validator, rt.ipLimiter, rt.userLimiter, rt.logger))

		r.Post("/user-prompt", rt.promptHandler.SubmitPrompt)
		r.Get("/user-prompt", rt.promptHandler.SubmitPromptQuery)

		r.Get("/graph", rt.graphHandler.GetGraph)
		r.Get("/plans/{planID}", rt.graphHandler.GetPlan)
		r.Get("/profile", rt.graphHandler.GetProfile)
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck handles readiness check requests
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
