package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/isoca/internal/backend"
	"github.com/desertthunder/isoca/internal/server"
	"github.com/desertthunder/isoca/internal/services"
	"github.com/desertthunder/isoca/internal/session"
	"github.com/desertthunder/isoca/internal/shared"
	"github.com/desertthunder/isoca/internal/web"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Serve runs the web dashboard with its own session and the OAuth callback.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Client.Addr()
	}

	tokens, closeStore := r.openTokens(ctx)
	defer closeStore()

	loc, err := session.NewMemoryLocation("http://" + addr + "/")
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}

	client := r.backendClient()
	ctrl := r.newController(ctx, tokens, loc)
	defer ctrl.Close()

	dashboard, err := web.NewDashboard(web.Options{
		Controller:   ctrl,
		Callback:     server.NewCallbackHandler(client, tokens, r.logger),
		Backend:      client,
		AuthorizeURL: services.AuthorizeURL(r.config.Credentials.Spotify),
		Logger:       r.logger,
	})
	if err != nil {
		return err
	}

	r.banner("isoca")
	r.writePlain("Dashboard: http://%s/\n\n", addr)
	return r.listen(ctx, web.NewServer(addr, dashboard, r.logger))
}

// Backend runs the proxy that exchanges codes and reads the Spotify Web API.
func (r *Runner) Backend(ctx context.Context, cmd *cli.Command) error {
	srv, err := r.backendServer(r.config.Backend)
	if err != nil {
		return err
	}
	if addr := cmd.String("addr"); addr != "" {
		srv.Addr = addr
	}
	return r.serveBackend(ctx, srv)
}

func (r *Runner) backendServer(cfg shared.BackendConfig) (*http.Server, error) {
	spotify, err := backend.NewSpotify(r.config.Credentials.Spotify, backend.SpotifyOptions{
		TopLimit:  cfg.TopLimit,
		RateLimit: cfg.RateLimit,
	}, r.logger)
	if err != nil {
		return nil, err
	}
	return backend.NewServer(cfg, spotify, r.logger), nil
}

func (r *Runner) serveBackend(ctx context.Context, srv *http.Server) error {
	r.banner("isoca api")
	r.writePlain("Backend: http://%s/\n\n", srv.Addr)
	return r.listen(ctx, srv)
}

// listen serves srv until ctx is done, then shuts it down gracefully.
func (r *Runner) listen(ctx context.Context, srv *http.Server) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		r.logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server on %s: %w", srv.Addr, err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		r.logger.Info("shutting down", "addr", srv.Addr)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server.Shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
