package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/fortuna/cesta/internal/logging"
)

const (
	serviceName    = "cesta-api"
	serviceVersion = "1.0.0"
)

// Server represents the REST API server
type Server struct {
	server *http.Server
}

// NewServer wires the injury routes. ws, when non-nil, is mounted at
// /ws/syncs.
func NewServer(addr string, handler *Handler, ws http.Handler, logger *logging.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(handler, ws, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// NewRouter builds the route table; split out so tests can drive it with
// httptest.
func NewRouter(handler *Handler, ws http.Handler, logger *logging.Logger) *mux.Router {
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.Named("http")

	router := mux.NewRouter()

	// Apply middleware
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggingMiddleware(logger))
	router.Use(CORSMiddleware)

	// OPTIONS is routed so CORSMiddleware can answer preflights.
	router.HandleFunc("/", handler.Index).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/health", handler.HealthCheck).Methods(http.MethodGet, http.MethodOptions)

	api := router.PathPrefix("/api").Subrouter()

	// Injuries
	api.HandleFunc("/injuries", handler.GetInjuries).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/injuries/team/{abbreviation}", handler.GetInjuriesByTeam).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/injuries/player/{playerID}", handler.GetInjuryByPlayer).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/injuries/status/{status}", handler.GetInjuriesByStatus).Methods(http.MethodGet, http.MethodOptions)

	// Aggregates
	api.HandleFunc("/teams", handler.GetTeams).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/stats", handler.GetStats).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/search", handler.SearchPlayers).Methods(http.MethodGet, http.MethodOptions)

	if ws != nil {
		router.Handle("/ws/syncs", ws).Methods(http.MethodGet)
	}

	router.NotFoundHandler = http.HandlerFunc(handler.NotFound)
	return router
}

// Start starts the REST API server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
