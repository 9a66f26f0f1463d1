package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/isoca/internal/session"
	"github.com/desertthunder/isoca/internal/shared"
	"github.com/desertthunder/isoca/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal client.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, r.config.Log.ParseLevel())
	r.SetLogger(fileLogger)

	tokens, closeStore := r.openTokens(ctx)
	defer closeStore()

	loc, err := session.NewMemoryLocation("tui://isoca/")
	if err != nil {
		return err
	}
	ctrl := r.newController(ctx, tokens, loc)
	defer ctrl.Close()

	model := ui.NewModel(ctx, ui.Options{
		Controller: ctrl,
		Location:   loc,
		Login: func(ctx context.Context) error {
			_, err := r.doOAuth(ctx, tokens, loginTimeout, true)
			return err
		},
		Backend: r.backendClient(),
		Open:    r.openBrowser,
	})
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
