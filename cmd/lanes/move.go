package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/lanes/internal/drag"
	"github.com/gosuda/lanes/internal/notice"
)

type moveOptions struct {
	server   string
	token    string
	boardID  string
	taskID   string
	columnID string
	index    int
	logLevel string
}

func moveCmd() *cobra.Command {
	var opts moveOptions

	cmd := &cobra.Command{
		Use:   "move",
		Short: "Move a task the way a drag and drop would",
		Long: `Pick up a task, drop it into a column at a drop-zone index and wait for
the placement writes to finish. Index 0 is above the first task; the default
(-1) appends to the end of the column.

Examples:
  lanes move --board 6f1c... --task 91aa... --column 0b7e...
  lanes move --board 6f1c... --task 91aa... --column 0b7e... --index 0`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMove(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.server, "server", "http://localhost:8080", "lanes server URL")
	cmd.Flags().StringVar(&opts.token, "token", os.Getenv("LANES_TOKEN"), "access token (default $LANES_TOKEN)")
	cmd.Flags().StringVar(&opts.boardID, "board", "", "board ID (required)")
	cmd.Flags().StringVar(&opts.taskID, "task", "", "task ID (required)")
	cmd.Flags().StringVar(&opts.columnID, "column", "", "destination column ID (required)")
	cmd.Flags().IntVar(&opts.index, "index", drag.End, "drop-zone index in the destination column")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "log level")
	for _, name := range []string{"board", "task", "column"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func runMove(ctx context.Context, out io.Writer, opts moveOptions) error {
	setupLogging(opts.logLevel, "text")

	var ids [3]uuid.UUID
	for i, raw := range []string{opts.boardID, opts.taskID, opts.columnID} {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid id %q: %w", raw, err)
		}
		ids[i] = id
	}
	boardID, taskID, columnID := ids[0], ids[1], ids[2]

	rb, err := connect(ctx, opts.server, opts.token)
	if err != nil {
		return err
	}
	if err := rb.loader.Load(ctx, boardID); err != nil {
		return err
	}

	ctrl := drag.New(rb.state, rb.session, rb.client, rb.loader,
		drag.WithLogger(log.Logger),
		drag.WithNotices(notice.NewLogSink(log.Logger)),
	)

	if _, err := ctrl.Start(taskID); err != nil {
		return err
	}
	target := drag.Target{ColumnID: columnID, Index: opts.index}
	preview, err := ctrl.Hover(target)
	if err != nil {
		_ = ctrl.Cancel(drag.CancelAborted)
		return err
	}
	if preview.NoOp {
		_ = ctrl.Cancel(drag.CancelAborted)
		fmt.Fprintln(out, "task is already there")
		return nil
	}

	commit, err := ctrl.Drop(ctx, target)
	if err != nil {
		return err
	}
	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := commit.Wait(waitCtx); err != nil {
		return fmt.Errorf("move failed: %w", err)
	}
	ctrl.Wait()

	for _, ch := range commit.Changes() {
		fmt.Fprintf(out, "%s -> column %s position %d\n", ch.TaskID, ch.ColumnID, ch.Position)
	}
	return nil
}
