// Package web implements the browser client: a server-rendered dashboard driven by a
// [session.Controller].
//
// # Routes
//
//	GET  /          dashboard; a ?code= query starts the exchange and redirects to /
//	GET  /login     redirect to the Spotify consent page
//	GET  /callback  [server.CallbackHandler]
//	POST /refresh   fetch again after a transient failure
//	POST /logout    clear the token everywhere
//	GET  /session   the current snapshot as JSON
//	GET  /events    server-sent events, one per session change
//
// # Live Updates
//
// The dashboard keeps an EventSource open on /events and reloads when the session changes, which
// covers exchanges and fetches finishing in the background and token changes made by other
// processes sharing the store. Without JavaScript the page refreshes itself while work is pending.
package web

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/isoca/internal/server"
	"github.com/desertthunder/isoca/internal/services"
	"github.com/desertthunder/isoca/internal/session"
	"github.com/desertthunder/isoca/internal/shared"
)

//go:embed templates/*.html
var templateFS embed.FS

const healthTimeout = 2 * time.Second

// HealthChecker reports whether the backend proxy is reachable.
type HealthChecker interface {
	Health(ctx context.Context) (*services.HealthStatus, error)
}

// Options configures a [Dashboard].
type Options struct {
	Controller   *session.Controller
	Callback     *server.CallbackHandler
	Backend      HealthChecker
	AuthorizeURL string
	Title        string
	Logger       *log.Logger
}

// Dashboard serves the browser client.
type Dashboard struct {
	ctrl         *session.Controller
	callback     *server.CallbackHandler
	backend      HealthChecker
	authorizeURL string
	title        string
	tmpl         *template.Template
	logger       *log.Logger
}

// NewDashboard parses the embedded templates and creates a [Dashboard].
func NewDashboard(opts Options) (*Dashboard, error) {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if opts.Title == "" {
		opts.Title = "Isoca Spot"
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"join": strings.Join,
		"inc":  func(i int) int { return i + 1 },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		ctrl:         opts.Controller,
		callback:     opts.Callback,
		backend:      opts.Backend,
		authorizeURL: opts.AuthorizeURL,
		title:        opts.Title,
		tmpl:         tmpl,
		logger:       shared.WithLogger(logger, "component", "web"),
	}, nil
}

// Register adds the dashboard routes to r.
func (d *Dashboard) Register(r server.Router) {
	r.Handle(http.MethodGet, "/{$}", http.HandlerFunc(d.home))
	r.Handle(http.MethodGet, "/login", http.HandlerFunc(d.login))
	r.Handle(http.MethodPost, "/logout", http.HandlerFunc(d.logout))
	r.Handle(http.MethodPost, "/refresh", http.HandlerFunc(d.refresh))
	r.Handle(http.MethodGet, "/session", http.HandlerFunc(d.session))
	r.Handle(http.MethodGet, "/events", http.HandlerFunc(d.events))
	if d.callback != nil {
		r.Handler(d.callback)
	}
}

// NewServer builds the web client HTTP server listening on addr.
func NewServer(addr string, d *Dashboard, logger *log.Logger) *http.Server {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	router := server.NewBasicRouter()
	router.Use(server.Recover(logger), server.Logging(logger))
	d.Register(router)

	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
