package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/roadwatch/roadwatch/internal/logger"
	"github.com/roadwatch/roadwatch/internal/ports"
)

// CatalogueService covers both the manager and the visitor signalement routes
type CatalogueService interface {
	SignalementService
	PublicMapService
}

// Dependencies are the services behind the routes
type Dependencies struct {
	Signalements CatalogueService
	Dashboard    DashboardService
	// Verifier guards the manager routes; nil leaves them open
	Verifier ports.TokenVerifier
	// RateLimiter throttles the public routes; nil disables throttling
	RateLimiter ports.RateLimiter
	// Stream serves the dashboard event stream; nil leaves the route unregistered
	Stream http.Handler
	Logger logger.Logger
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
}

// Server represents the HTTP server
type Server struct {
	server *http.Server
	logger logger.Logger
}

// NewServer creates a new HTTP server
func NewServer(config ServerConfig, deps Dependencies) *Server {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Server{
		logger: log,
		server: &http.Server{
			Addr:         net.JoinHostPort(config.Host, config.Port),
			Handler:      NewRouter(config, deps, log),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
	}
}

// NewRouter wires every route and middleware. CORS wraps the router so
// preflight requests are answered before route matching.
func NewRouter(config ServerConfig, deps Dependencies, log logger.Logger) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeSuccessResponse(w, http.StatusOK, "ok", map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	public := router.NewRoute().Subrouter()
	if deps.RateLimiter != nil {
		public.Use(rateLimitMiddleware(deps.RateLimiter, log))
	}
	NewPublicHandler(deps.Signalements, deps.Dashboard).RegisterRoutes(public)

	manager := router.NewRoute().Subrouter()
	if deps.Verifier != nil {
		manager.Use(authMiddleware(deps.Verifier, log))
	}
	NewSignalementHandler(deps.Signalements).RegisterRoutes(manager)
	NewDashboardHandler(deps.Dashboard).RegisterRoutes(manager)
	if deps.Stream != nil {
		manager.Handle("/api/v1/dashboard/stream", deps.Stream).Methods(http.MethodGet)
	}

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErrorResponse(w, http.StatusNotFound, "NOT_FOUND", "Route not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	var handler http.Handler = router
	handler = corsMiddleware(config.CORSOrigins)(handler)
	handler = recoveryMiddleware(log)(handler)
	handler = loggingMiddleware(log)(handler)
	return correlationMiddleware(handler)
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "Starting HTTP server", map[string]interface{}{"addr": s.server.Addr})
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "Shutting down HTTP server", nil)
	return s.server.Shutdown(ctx)
}
