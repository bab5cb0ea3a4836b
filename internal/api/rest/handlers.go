package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/mux"

	"github.com/fortuna/cesta/internal/logging"
	"github.com/fortuna/cesta/internal/service"
	"github.com/fortuna/cesta/internal/store"
	"github.com/fortuna/cesta/internal/store/repository"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// InjuryReader is the subset of service.InjuryService the handlers use.
type InjuryReader interface {
	List(ctx context.Context, limit int) (*service.InjuryPage, error)
	ByTeam(ctx context.Context, abbreviation string) ([]store.Injury, error)
	ByPlayer(ctx context.Context, playerID string) (*store.Injury, error)
	ByStatus(ctx context.Context, status string) ([]store.Injury, error)
	Search(ctx context.Context, term string) ([]store.Injury, error)
	Teams(ctx context.Context) ([]service.TeamInjuries, error)
	Stats(ctx context.Context) (*service.InjuryStats, error)
}

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	injuries InjuryReader
	health   HealthChecker
	logger   *logging.Logger
	now      func() time.Time
}

// NewHandler creates a new handler
func NewHandler(injuries InjuryReader, health HealthChecker, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		injuries: injuries,
		health:   health,
		logger:   logger.Named("rest"),
		now:      time.Now,
	}
}

// Index describes the available endpoints.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":        "NBA Injuries API",
		"version":     serviceVersion,
		"description": "Injured NBA players as synced from ESPN rosters",
		"endpoints": map[string]string{
			"/api/injuries":                     "All injuries (?limit=, default 100)",
			"/api/injuries/team/{abbreviation}": "Injuries for one team",
			"/api/injuries/player/{playerID}":   "Latest injury for one player",
			"/api/injuries/status/{status}":     "Injuries by status (Out, Day-To-Day, ...)",
			"/api/teams":                        "Teams with injured players",
			"/api/stats":                        "Injury counts by status, position and team",
			"/api/search?q=":                    "Search injured players by name",
			"/ws/syncs":                         "Websocket feed of sync.completed events",
		},
		"timestamp": h.now().Format(time.RFC3339),
	})
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.HealthCheck(r.Context()); err != nil {
			respondError(w, http.StatusServiceUnavailable, "Database unreachable", err)
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": serviceName,
		"version": serviceVersion,
	})
}

// GetInjuries lists injuries, honouring ?limit=.
func (h *Handler) GetInjuries(w http.ResponseWriter, r *http.Request) {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		l, err := strconv.Atoi(raw)
		if err != nil || l <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		limit = min(l, maxLimit)
	}

	page, err := h.injuries.List(r.Context(), limit)
	if err != nil {
		h.serverError(w, r, "Failed to fetch injuries", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(page.Injuries),
		"total":   page.Total,
		"data":    page.Injuries,
	})
}

func (h *Handler) GetInjuriesByTeam(w http.ResponseWriter, r *http.Request) {
	abbreviation := strings.ToUpper(mux.Vars(r)["abbreviation"])

	injuries, err := h.injuries.ByTeam(r.Context(), abbreviation)
	if err != nil {
		h.serverError(w, r, "Failed to fetch team injuries", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"team":    abbreviation,
		"count":   len(injuries),
		"data":    injuries,
	})
}

func (h *Handler) GetInjuryByPlayer(w http.ResponseWriter, r *http.Request) {
	playerID := mux.Vars(r)["playerID"]

	injury, err := h.injuries.ByPlayer(r.Context(), playerID)
	if errors.Is(err, repository.ErrNotFound) {
		respondJSON(w, http.StatusNotFound, map[string]interface{}{
			"success": false,
			"message": "Player not found or not injured",
		})
		return
	}
	if err != nil {
		h.serverError(w, r, "Failed to fetch player injury", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"player_id": playerID,
		"data":      injury,
	})
}

func (h *Handler) GetInjuriesByStatus(w http.ResponseWriter, r *http.Request) {
	status := mux.Vars(r)["status"]

	injuries, err := h.injuries.ByStatus(r.Context(), status)
	if err != nil {
		h.serverError(w, r, "Failed to fetch injuries by status", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"status":  status,
		"count":   len(injuries),
		"data":    injuries,
	})
}

func (h *Handler) GetTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.injuries.Teams(r.Context())
	if err != nil {
		h.serverError(w, r, "Failed to fetch teams", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(teams),
		"data":    teams,
	})
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.injuries.Stats(r.Context())
	if err != nil {
		h.serverError(w, r, "Failed to compute injury statistics", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"total_injuries": stats.TotalInjuries,
		"by_status":      stats.ByStatus,
		"by_position":    stats.ByPosition,
		"top_5_teams":    stats.TopTeams,
		"last_updated":   stats.LastUpdated,
	})
}

// SearchPlayers searches injured players by name (?q=).
func (h *Handler) SearchPlayers(w http.ResponseWriter, r *http.Request) {
	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	if query == "" {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"message": `query parameter "q" is required`,
		})
		return
	}

	injuries, err := h.injuries.Search(r.Context(), query)
	if err != nil {
		h.serverError(w, r, "Failed to search players", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"query":   query,
		"count":   len(injuries),
		"data":    injuries,
	})
}

// NotFound matches the JSON error shape of the other endpoints.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusNotFound, map[string]interface{}{
		"success": false,
		"message": "Endpoint not found",
		"path":    r.URL.Path,
	})
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, message string, err error) {
	h.logger.ErrorContext(r.Context(), message, "path", r.URL.Path, "error", err)
	respondError(w, http.StatusInternalServerError, message, err)
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"success": false,
		"error":   message,
		"status":  status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}
