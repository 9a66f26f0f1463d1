package web

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/isoca/internal/server"
	"github.com/desertthunder/isoca/internal/services"
	"github.com/desertthunder/isoca/internal/session"
	"github.com/desertthunder/isoca/internal/shared"
	"github.com/desertthunder/isoca/internal/store"
	tu "github.com/desertthunder/isoca/internal/testing"
)

type fakeHealth struct {
	err error
}

func (f fakeHealth) Health(context.Context) (*services.HealthStatus, error) {
	if f.err != nil {
		return &services.HealthStatus{}, f.err
	}
	return &services.HealthStatus{Reachable: true, Status: "healthy", Service: "isoca-api"}, nil
}

type harness struct {
	server    *httptest.Server
	client    *http.Client
	ctrl      *session.Controller
	store     *store.TokenStore
	other     *store.TokenStore
	exchanger *tu.FakeExchanger
	fetcher   *tu.FakeFetcher
}

func newHarness(t *testing.T, health HealthChecker) *harness {
	t.Helper()
	logger := shared.NewLogger(io.Discard)
	hub := store.NewMemoryHub()
	h := &harness{
		store:     store.NewTokenStore(hub.Open(), "spotify_access_token", logger),
		other:     store.NewTokenStore(hub.Open(), "spotify_access_token", logger),
		exchanger: tu.NewFakeExchanger(map[string]string{"abc123": "tok1"}),
		fetcher:   tu.NewFakeFetcher(),
	}
	h.fetcher.Respond("tok1", tu.SampleTracks(), nil)

	loc, err := session.NewMemoryLocation("http://127.0.0.1:4200/")
	if err != nil {
		t.Fatal(err)
	}
	h.ctrl = session.New(context.Background(), loc, session.Options{
		Store:     h.store,
		Exchanger: h.exchanger,
		Fetcher:   h.fetcher,
		Logger:    logger,
	})
	t.Cleanup(h.ctrl.Close)

	d, err := NewDashboard(Options{
		Controller:   h.ctrl,
		Callback:     server.NewCallbackHandler(h.exchanger, h.store, logger),
		Backend:      health,
		AuthorizeURL: "https://accounts.spotify.com/authorize?client_id=client-1&response_type=code",
		Logger:       logger,
	})
	if err != nil {
		t.Fatalf("expected templates to parse, got %v", err)
	}

	h.server = httptest.NewServer(NewServer("", d, logger).Handler)
	t.Cleanup(h.server.Close)

	h.client = h.server.Client()
	h.client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return h
}

func (h *harness) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := h.client.Get(h.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func (h *harness) post(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := h.client.Post(h.server.URL+path, "application/x-www-form-urlencoded", nil)
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	resp.Body.Close()
	return resp
}

func (h *harness) settle(t *testing.T) session.Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := h.ctrl.Settle(ctx)
	if err != nil {
		t.Fatalf("session did not settle: %v", err)
	}
	return snap
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()

	t.Run("Signed Out", func(t *testing.T) {
		h := newHarness(t, fakeHealth{})

		resp, body := h.get(t, "/")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		for _, want := range []string{"Log in with Spotify", "Session: unauthenticated", "Backend: healthy"} {
			if !strings.Contains(body, want) {
				t.Errorf("expected %q in page", want)
			}
		}
		if len(h.exchanger.Calls()) != 0 || len(h.fetcher.Calls()) != 0 {
			t.Error("expected no network calls")
		}
	})

	t.Run("Backend Down", func(t *testing.T) {
		h := newHarness(t, fakeHealth{err: errors.New("connection refused")})

		_, body := h.get(t, "/")
		if !strings.Contains(body, "Backend unavailable: connection refused") {
			t.Error("expected backend error in page")
		}
	})

	t.Run("Code On Home Page", func(t *testing.T) {
		h := newHarness(t, fakeHealth{})

		resp, _ := h.get(t, "/?code=abc123")
		if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
			t.Fatalf("expected 303 to /, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
		}

		snap := h.settle(t)
		if !snap.SignedIn() || snap.State.Token != "tok1" {
			t.Fatalf("expected signed in with tok1, got %+v", snap.State)
		}

		_, body := h.get(t, "/")
		for _, want := range []string{"Midnight City", "Fleetwood Mac, Stevie Nicks", "french shoegaze, indietronica", "Log out"} {
			if !strings.Contains(body, want) {
				t.Errorf("expected %q in page", want)
			}
		}
		if strings.Contains(body, "tok1") {
			t.Error("page must not show the raw token")
		}

		h.get(t, "/?code=abc123")
		h.settle(t)
		if calls := h.exchanger.Calls(); len(calls) != 1 {
			t.Errorf("expected a single exchange, got %v", calls)
		}
	})

	t.Run("Callback Then Home", func(t *testing.T) {
		h := newHarness(t, fakeHealth{})

		resp, _ := h.get(t, "/callback?code=abc123")
		if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
			t.Fatalf("expected 303 to /, got %d", resp.StatusCode)
		}

		h.get(t, "/")
		snap := h.settle(t)
		if !snap.SignedIn() || len(snap.Tracks) != 2 {
			t.Errorf("expected tracks after callback, got %+v", snap)
		}
		if calls := h.fetcher.Calls(); len(calls) != 1 {
			t.Errorf("expected one fetch, got %v", calls)
		}
	})

	t.Run("Callback Without Code", func(t *testing.T) {
		h := newHarness(t, fakeHealth{})

		resp, body := h.get(t, "/callback")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
		if !strings.Contains(body, server.MissingCodeMessage) {
			t.Error("expected missing code message")
		}
	})

	t.Run("Login", func(t *testing.T) {
		h := newHarness(t, fakeHealth{})

		resp, _ := h.get(t, "/login")
		if resp.StatusCode != http.StatusFound {
			t.Fatalf("expected 302, got %d", resp.StatusCode)
		}
		if !strings.HasPrefix(resp.Header.Get("Location"), "https://accounts.spotify.com/authorize") {
			t.Errorf("unexpected redirect %s", resp.Header.Get("Location"))
		}
	})

	t.Run("Login Not Configured", func(t *testing.T) {
		d, err := NewDashboard(Options{Logger: shared.NewLogger(io.Discard)})
		if err != nil {
			t.Fatalf("expected templates to parse, got %v", err)
		}

		rec := httptest.NewRecorder()
		d.login(rec, httptest.NewRequest(http.MethodGet, "/login", nil))

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), shared.ErrServiceUnavailable.Error()) {
			t.Errorf("expected service unavailable message, got %q", rec.Body.String())
		}
	})

	t.Run("Logout", func(t *testing.T) {
		h := newHarness(t, fakeHealth{})
		h.store.Set(ctx, "tok1")
		h.get(t, "/")
		h.settle(t)

		resp := h.post(t, "/logout")
		if resp.StatusCode != http.StatusSeeOther {
			t.Errorf("expected 303, got %d", resp.StatusCode)
		}
		if _, ok := h.other.Get(ctx); ok {
			t.Error("expected token cleared in the shared store")
		}
		if h.ctrl.Snapshot().SignedIn() {
			t.Error("expected signed out")
		}

		if resp, _ := h.get(t, "/logout"); resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("expected GET /logout to be rejected, got %d", resp.StatusCode)
		}
	})

	t.Run("Refresh", func(t *testing.T) {
		h := newHarness(t, fakeHealth{})
		h.fetcher.Respond("tok1", nil, &services.FetchError{Kind: services.ErrServer, StatusCode: 500})
		h.store.Set(ctx, "tok1")
		h.get(t, "/")
		if snap := h.settle(t); snap.Notice != session.NoticeFetchFailed {
			t.Fatalf("expected fetch failure notice, got %q", snap.Notice)
		}

		_, body := h.get(t, "/")
		if !strings.Contains(body, session.NoticeFetchFailed) {
			t.Error("expected notice in page")
		}

		h.fetcher.Respond("tok1", tu.SampleTracks(), nil)
		h.post(t, "/refresh")
		if snap := h.settle(t); len(snap.Tracks) != 2 || snap.Notice != "" {
			t.Errorf("expected tracks after refresh, got %+v", snap)
		}
	})

	t.Run("Session JSON", func(t *testing.T) {
		h := newHarness(t, fakeHealth{})
		h.store.Set(ctx, "tok1-long-token")
		h.fetcher.Respond("tok1-long-token", tu.SampleTracks(), nil)
		h.get(t, "/")
		h.settle(t)

		_, body := h.get(t, "/session")
		var view sessionView
		if err := json.Unmarshal([]byte(body), &view); err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if view.Status != "authenticated" || len(view.Items) != 2 {
			t.Errorf("unexpected view %+v", view)
		}
		if view.Token != shared.MaskToken("tok1-long-token") {
			t.Errorf("expected masked token, got %q", view.Token)
		}
	})

	t.Run("Events", func(t *testing.T) {
		h := newHarness(t, fakeHealth{})

		reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		req, _ := http.NewRequestWithContext(reqCtx, http.MethodGet, h.server.URL+"/events", nil)
		resp, err := h.client.Do(req)
		if err != nil {
			t.Fatalf("events request failed: %v", err)
		}
		defer resp.Body.Close()

		if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
			t.Fatalf("expected event stream, got %q", ct)
		}

		lines := bufio.NewScanner(resp.Body)
		if !lines.Scan() || lines.Text() != ": connected" {
			t.Fatalf("expected connected comment, got %q", lines.Text())
		}

		h.other.Set(ctx, "tok1")

		for lines.Scan() {
			line := lines.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var view sessionView
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &view); err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if view.Status == "authenticated" {
				return
			}
		}
		t.Fatal("expected an authenticated event")
	})
}
