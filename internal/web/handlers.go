package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/desertthunder/isoca/internal/models"
	"github.com/desertthunder/isoca/internal/services"
	"github.com/desertthunder/isoca/internal/session"
	"github.com/desertthunder/isoca/internal/shared"
)

type pageData struct {
	Title      string
	Snapshot   session.Snapshot
	Token      string
	Pending    bool
	Backend    *services.HealthStatus
	BackendOK  bool
	BackendErr string
}

// sessionView is the JSON form of a [session.Snapshot]. The token is masked.
type sessionView struct {
	Status  string           `json:"status"`
	Token   string           `json:"token,omitempty"`
	Reason  string           `json:"reason,omitempty"`
	Notice  string           `json:"notice,omitempty"`
	Loading bool             `json:"loading"`
	Items   models.TrackList `json:"items"`
}

func newSessionView(snap session.Snapshot) sessionView {
	view := sessionView{
		Status:  snap.State.Status.String(),
		Reason:  snap.State.Reason,
		Notice:  snap.Notice,
		Loading: snap.Loading,
		Items:   snap.Tracks,
	}
	if snap.State.Token != "" {
		view.Token = shared.MaskToken(snap.State.Token)
	}
	if view.Items == nil {
		view.Items = models.TrackList{}
	}
	return view
}

// requestLocation is the address the browser loaded.
func requestLocation(r *http.Request) (*session.MemoryLocation, error) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	u := url.URL{Scheme: scheme, Host: r.Host, Path: r.URL.Path, RawQuery: r.URL.RawQuery}
	return session.NewMemoryLocation(u.String())
}

func (d *Dashboard) home(w http.ResponseWriter, r *http.Request) {
	loc, err := requestLocation(r)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	_, hasCode := session.ExtractCode(loc.URL())
	d.ctrl.Load(r.Context(), loc)
	if hasCode {
		http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
		return
	}

	snap := d.ctrl.Snapshot()
	data := pageData{
		Title:    d.title,
		Snapshot: snap,
		Token:    shared.MaskToken(snap.State.Token),
		Pending:  snap.Loading || snap.State.Status == session.Authenticating,
	}
	d.checkBackend(r.Context(), &data)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := d.tmpl.ExecuteTemplate(w, "dashboard.html", data); err != nil {
		d.logger.Error("render failed", "error", err)
	}
}

func (d *Dashboard) checkBackend(ctx context.Context, data *pageData) {
	if d.backend == nil {
		data.BackendErr = "not configured"
		return
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	status, err := d.backend.Health(ctx)
	if err != nil {
		d.logger.Warn("backend health check failed", "error", err)
		data.BackendErr = err.Error()
		return
	}
	data.Backend = status
	data.BackendOK = true
}

func (d *Dashboard) login(w http.ResponseWriter, r *http.Request) {
	if d.authorizeURL == "" {
		err := fmt.Errorf("%w: spotify client is not configured", shared.ErrServiceUnavailable)
		d.logger.Error("login unavailable", "error", err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	http.Redirect(w, r, d.authorizeURL, http.StatusFound)
}

func (d *Dashboard) logout(w http.ResponseWriter, r *http.Request) {
	d.ctrl.Logout()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (d *Dashboard) refresh(w http.ResponseWriter, r *http.Request) {
	d.ctrl.Refresh()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (d *Dashboard) session(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	json.NewEncoder(w).Encode(newSessionView(d.ctrl.Snapshot()))
}

// events streams one "session" event per change after the current state.
func (d *Dashboard) events(w http.ResponseWriter, r *http.Request) {
	updates, cancel := d.ctrl.Subscribe()
	defer cancel()
	<-updates

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	if err := rc.Flush(); err != nil {
		d.logger.Warn("event stream cannot flush", "error", err)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(newSessionView(snap))
			if err != nil {
				d.logger.Error("encode session event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: session\ndata: %s\n\n", data)
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
