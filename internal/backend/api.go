package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/isoca/internal/models"
	"github.com/desertthunder/isoca/internal/server"
	"github.com/desertthunder/isoca/internal/shared"
)

const serviceName = "isoca-api"

// Provider is the identity provider and data source behind the proxy.
type Provider interface {
	Exchange(ctx context.Context, code string) (string, error)
	TopTracks(ctx context.Context, token string) (models.TrackList, error)
	UserProfile(ctx context.Context, token string) (*SpotifyUser, error)
}

// API serves the backend endpoints.
type API struct {
	provider Provider
	logger   *log.Logger
}

// NewAPI creates an [API] in front of provider.
func NewAPI(provider Provider, logger *log.Logger) *API {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &API{provider: provider, logger: shared.WithLogger(logger, "component", "api")}
}

// Register adds the API routes to r.
func (a *API) Register(r server.Router) {
	r.Handle(http.MethodGet, "/{$}", http.HandlerFunc(a.root))
	r.Handle(http.MethodGet, "/health", http.HandlerFunc(a.health))
	r.Handle(http.MethodGet, "/auth/exchange", http.HandlerFunc(a.exchange))
	r.Handle(http.MethodGet, "/data/top-items", http.HandlerFunc(a.topItems))
	r.Handle(http.MethodGet, "/api/spotify/status", http.HandlerFunc(a.status))
}

func (a *API) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.RootResponse{Message: "Welcome to Isoca API", Status: "running"})
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{Status: "healthy", Service: serviceName})
}

func (a *API) exchange(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	token, err := a.provider.Exchange(r.Context(), code)
	if err != nil {
		a.logger.Error("code exchange failed", "error", err)
		writeError(w, http.StatusBadGateway, "token exchange failed")
		return
	}

	a.logger.Info("code exchanged", "token", shared.MaskToken(token))
	writeJSON(w, http.StatusOK, models.ExchangeResponse{AccessToken: token, Message: "token exchanged"})
}

func (a *API) topItems(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("access_token")
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing access token")
		return
	}

	tracks, err := a.provider.TopTracks(r.Context(), token)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, models.TopItemsResponse{Items: tracks})
	case isUnauthorized(err):
		a.logger.Warn("access token rejected by spotify", "token", shared.MaskToken(token))
		writeError(w, http.StatusUnauthorized, "invalid or expired access token")
	default:
		a.logger.Error("top tracks failed", "error", err)
		writeError(w, http.StatusBadGateway, "failed to fetch top items")
	}
}

func (a *API) status(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("access_token")
	if token == "" {
		writeJSON(w, http.StatusOK, models.SpotifyStatusResponse{Message: "no access token provided"})
		return
	}

	if _, err := a.provider.UserProfile(r.Context(), token); err != nil {
		writeJSON(w, http.StatusOK, models.SpotifyStatusResponse{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, models.SpotifyStatusResponse{Connected: true, Message: "Spotify API is reachable."})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message})
}

// NewServer builds the backend HTTP server for cfg.
func NewServer(cfg shared.BackendConfig, provider Provider, logger *log.Logger) *http.Server {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	router := server.NewBasicRouter()
	router.Use(server.Recover(logger), server.Logging(logger), server.CORS(cfg.AllowedOrigin))
	NewAPI(provider, logger).Register(router)

	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
