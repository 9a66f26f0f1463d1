package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/common-nighthawk/go-figure"
	"github.com/desertthunder/isoca/internal/services"
	"github.com/desertthunder/isoca/internal/session"
	"github.com/desertthunder/isoca/internal/shared"
	"github.com/desertthunder/isoca/internal/store"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	openBrowser func(url string) error
}

// RunnerOpts contains configuration options for creating a Runner.
//
// A nil Config is resolved from --config and the environment when a command runs.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
	OpenBrowser func(url string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		openBrowser: opts.OpenBrowser,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, backendCommand, loginCommand, logoutCommand, statusCommand, topCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the configuration for the command about to run.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}
	if err := r.loadConfig(); err != nil {
		return ctx, err
	}
	return ctx, nil
}

func (r *Runner) loadConfig() error {
	if r.config == nil {
		config, err := shared.ResolveConfig(r.configPath)
		if err != nil {
			return err
		}
		r.config = config
	}

	shared.SetLogLevel(r.logger, r.config.Log.ParseLevel())
	if r.httpClient == nil {
		r.httpClient = &http.Client{Timeout: r.config.Client.Timeout}
	}
	return nil
}

// SetLogger swaps the logger, e.g. for a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) backendClient() *services.BackendClient {
	return services.NewBackendClient(r.config.Client.BackendURL, r.httpClient)
}

// openTokens opens the configured store. An unavailable store is logged and read as empty.
func (r *Runner) openTokens(ctx context.Context) (*store.TokenStore, func()) {
	backend, err := store.Open(ctx, r.config.Store, r.logger)
	if err != nil {
		r.logger.Debug("using in-process token storage only", "error", err)
	}
	tokens := store.NewTokenStore(backend, r.config.Client.TokenKey, r.logger)
	return tokens, func() {
		if err := backend.Close(); err != nil {
			r.logger.Warn("failed to close store", "error", err)
		}
	}
}

// newController starts a session for loc backed by the proxy.
func (r *Runner) newController(ctx context.Context, tokens *store.TokenStore, loc session.Location) *session.Controller {
	client := r.backendClient()
	return session.New(ctx, loc, session.Options{
		Store:     tokens,
		Exchanger: client,
		Fetcher:   client,
		Logger:    r.logger,
	})
}

func (r *Runner) banner(name string) {
	fig := figure.NewFigure(name, "cybermedium", true)
	r.writePlain("%s\n", fig.String())
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
