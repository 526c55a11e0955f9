package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gosuda/lanes/internal/board"
	"github.com/gosuda/lanes/internal/client"
	"github.com/gosuda/lanes/internal/deadline"
	"github.com/gosuda/lanes/internal/notice"
	"github.com/gosuda/lanes/internal/realtime"
)

const watchPoll = 250 * time.Millisecond

type watchOptions struct {
	server        string
	token         string
	boardID       string
	notifications bool
	logLevel      string
}

func watchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a board live from the terminal",
		Long: `Load a board over the API, subscribe to its change feed and print the
columns in display order every time the local copy changes.

Examples:
  lanes watch --board 6f1c... --token $LANES_TOKEN
  lanes watch --server https://lanes.example.com --board 6f1c... --notifications`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.server, "server", "http://localhost:8080", "lanes server URL")
	cmd.Flags().StringVar(&opts.token, "token", os.Getenv("LANES_TOKEN"), "access token (default $LANES_TOKEN)")
	cmd.Flags().StringVar(&opts.boardID, "board", "", "board ID (required)")
	cmd.Flags().BoolVar(&opts.notifications, "notifications", false, "also log incoming notifications")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "log level")
	_ = cmd.MarkFlagRequired("board")

	return cmd
}

func runWatch(ctx context.Context, out io.Writer, opts watchOptions) error {
	setupLogging(opts.logLevel, "text")

	boardID, err := uuid.Parse(opts.boardID)
	if err != nil {
		return fmt.Errorf("invalid board id: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := log.Logger
	rb, err := connect(ctx, opts.server, opts.token)
	if err != nil {
		return err
	}
	state, session, loader := rb.state, rb.session, rb.loader
	feed := rb.client.Feed(logger)

	rec := realtime.New(feed, loader, state, session, notice.NewLogSink(logger), logger)
	defer rec.Close()

	if err := rec.Subscribe(ctx, boardID); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return render(gctx, out, rec, state, session)
	})
	if opts.notifications {
		g.Go(func() error {
			notes, release, err := feed.SubscribeNotifications(gctx)
			if err != nil {
				return err
			}
			defer release()
			for n := range notes {
				log.Info().Str("type", string(n.Type)).Str("title", n.Title).Msg(n.Message)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// remoteBoard is a board cache fed from a lanes server.
type remoteBoard struct {
	client  *client.Client
	state   *board.State
	session *board.Session
	loader  *board.Loader
}

func connect(ctx context.Context, server, token string) (*remoteBoard, error) {
	if token == "" {
		return nil, errors.New("a token is required (--token or LANES_TOKEN)")
	}
	c, err := client.New(server, token)
	if err != nil {
		return nil, err
	}
	session, err := board.NewSessionFromIdentity(ctx, c)
	if err != nil {
		return nil, err
	}
	state := board.NewState()
	return &remoteBoard{
		client:  c,
		state:   state,
		session: session,
		loader:  board.NewLoader(c, state, session, log.Logger),
	}, nil
}

// render prints the board whenever the cache version moves, and returns once
// the reconciler has dropped its subscription.
func render(ctx context.Context, out io.Writer, rec *realtime.Reconciler, state *board.State, session *board.Session) error {
	ticker := time.NewTicker(watchPoll)
	defer ticker.Stop()

	var seen uint64
	for {
		if v := state.Version(); v != seen {
			seen = v
			printBoard(out, state, session)
		}
		if _, ok := rec.Subscribed(); !ok && ctx.Err() == nil {
			return errors.New("change feed closed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func printBoard(out io.Writer, state *board.State, session *board.Session) {
	b, ok := state.Board()
	if !ok {
		fmt.Fprintln(out, "(no board)")
		return
	}

	today := time.Now()
	fmt.Fprintf(out, "\n== %s [%s] ==\n", b.Name, session.Role())
	for _, col := range state.Columns() {
		tasks := state.ColumnTasks(col.ID)
		fmt.Fprintf(out, "%s (%d)\n", col.Name, len(tasks))
		for i, t := range tasks {
			line := fmt.Sprintf("  %d. %s", i+1, t.Title)
			if status, ok := deadline.TaskStatus(t, today); ok {
				line += fmt.Sprintf(" [%s]", status.Label)
			}
			fmt.Fprintln(out, line)
		}
	}
}
