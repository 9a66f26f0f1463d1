package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/isoca/internal/formatter"
	"github.com/desertthunder/isoca/internal/session"
	"github.com/desertthunder/isoca/internal/shared"
	"github.com/urfave/cli/v3"
)

// Top loads the session from the stored token, waits for the fetch and prints the tracks.
func (r *Runner) Top(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")
	if err := formatter.Valid(format); err != nil {
		return err
	}

	tokens, closeStore := r.openTokens(ctx)
	defer closeStore()

	loc, err := session.NewMemoryLocation("cli://isoca/top")
	if err != nil {
		return err
	}
	ctrl := r.newController(ctx, tokens, loc)
	defer ctrl.Close()

	waitCtx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	snap, err := ctrl.Settle(waitCtx)
	if err != nil {
		return err
	}

	switch {
	case !snap.SignedIn() && snap.Notice != "":
		return fmt.Errorf("%w: %s", shared.ErrNotAuthenticated, snap.Notice)
	case !snap.SignedIn():
		return shared.ErrNotAuthenticated
	case snap.Notice == session.NoticeFetchFailed:
		return fmt.Errorf("%w: %s", shared.ErrFetchFailed, snap.Notice)
	}

	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteFile(path, format, snap.Tracks); err != nil {
			return err
		}
		r.logger.Info("tracks exported", "path", path, "format", format, "count", len(snap.Tracks))
		return r.writePlain("✓ Wrote %d tracks to %s\n", len(snap.Tracks), path)
	}

	return formatter.Write(r.output, format, snap.Tracks)
}
