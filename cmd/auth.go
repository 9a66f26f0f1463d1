package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/isoca/internal/server"
	"github.com/desertthunder/isoca/internal/services"
	"github.com/desertthunder/isoca/internal/session"
	"github.com/desertthunder/isoca/internal/shared"
	"github.com/desertthunder/isoca/internal/store"
	"github.com/urfave/cli/v3"
)

const (
	loginTimeout  = 2 * time.Minute
	healthTimeout = 5 * time.Second
)

// Login runs the browser sign-in and stores the token for every client sharing the store.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	tokens, closeStore := r.openTokens(ctx)
	defer closeStore()

	token, err := r.doOAuth(ctx, tokens, cmd.Duration("timeout"), !cmd.Bool("no-browser"))
	if err != nil {
		return err
	}
	return r.writePlain("✓ Signed in with Spotify (token %s)\n", shared.MaskToken(token))
}

// doOAuth serves the callback on the redirect URI's address, sends the user to the consent page
// and waits for the first callback.
func (r *Runner) doOAuth(ctx context.Context, tokens *store.TokenStore, timeout time.Duration, open bool) (string, error) {
	creds := r.config.Credentials.Spotify
	redirect, err := url.Parse(creds.RedirectURI)
	if err != nil || redirect.Host == "" {
		return "", fmt.Errorf("%w: redirect_uri %q", shared.ErrInvalidConfig, creds.RedirectURI)
	}
	if timeout <= 0 {
		timeout = loginTimeout
	}

	callback := server.NewCallbackHandler(r.backendClient(), tokens, r.logger)
	if redirect.Path != callback.Routes()[0] {
		r.logger.Warn("redirect_uri path is not served by the callback", "path", redirect.Path, "route", callback.Routes()[0])
	}

	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger), server.Logging(r.logger))
	router.Handler(callback)
	router.Handle(http.MethodGet, "/{$}", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, "Signed in to isoca. You can close this window.")
	}))

	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", redirect.Host, err)
	}

	srv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("callback server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	authURL := services.AuthorizeURL(creds)
	r.logger.Debug("waiting for callback", "addr", ln.Addr().String(), "timeout", timeout)
	if open {
		if err := r.openBrowser(authURL); err != nil {
			r.logger.Warn("failed to open browser", "error", err)
			open = false
		}
	}
	if !open {
		r.writePlain("Open this URL to sign in:\n%s\n", authURL)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-callback.Result():
		if err := result.Error(); err != nil {
			return "", fmt.Errorf("sign-in failed: %w", err)
		}
		return result.Token, nil
	case <-timer.C:
		return "", fmt.Errorf("%w: no sign-in within %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Logout removes the stored token. Clients sharing the store sign out too.
func (r *Runner) Logout(ctx context.Context, cmd *cli.Command) error {
	tokens, closeStore := r.openTokens(ctx)
	defer closeStore()

	if _, ok := tokens.Get(ctx); !ok {
		return r.writePlain("Not signed in\n")
	}
	tokens.Clear(ctx)
	r.logger.Info("signed out")
	return r.writePlain("✓ Signed out\n")
}

type statusView struct {
	Session       string `json:"session"`
	Token         string `json:"token,omitempty"`
	Store         string `json:"store"`
	BackendURL    string `json:"backend_url"`
	BackendStatus string `json:"backend_status"`
	BackendError  string `json:"backend_error,omitempty"`
}

// Status reports whether a token is stored and whether the backend answers /health.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	tokens, closeStore := r.openTokens(ctx)
	defer closeStore()

	view := statusView{
		Session:    session.Unauthenticated.String(),
		Store:      r.config.Store.Driver,
		BackendURL: r.config.Client.BackendURL,
	}
	if token, ok := tokens.Get(ctx); ok {
		view.Session = session.Authenticated.String()
		view.Token = shared.MaskToken(token)
	}

	healthCtx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	health, err := r.backendClient().Health(healthCtx)
	switch {
	case err != nil:
		view.BackendStatus = "unavailable"
		view.BackendError = err.Error()
	default:
		view.BackendStatus = health.Status
	}

	if cmd.Bool("json") {
		return r.writeJSON(view, true)
	}

	if view.Token != "" {
		r.writePlain("Session: %s (%s)\n", view.Session, view.Token)
	} else {
		r.writePlain("Session: %s\n", view.Session)
	}
	r.writePlain("Store:   %s\n", view.Store)
	if view.BackendError != "" {
		return r.writePlain("Backend: ✗ %s (%s)\n", view.BackendURL, view.BackendError)
	}
	return r.writePlain("Backend: ✓ %s (%s)\n", view.BackendURL, view.BackendStatus)
}
