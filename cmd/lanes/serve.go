package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gosuda/lanes/internal/changefeed"
	"github.com/gosuda/lanes/internal/config"
	"github.com/gosuda/lanes/internal/deadline"
	"github.com/gosuda/lanes/internal/server"
	"github.com/gosuda/lanes/internal/store/postgres"
	redisstore "github.com/gosuda/lanes/internal/store/redis"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API, websocket feed and reminder worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the schema before serving")

	return cmd
}

func runServe(ctx context.Context, migrate bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if migrate {
		if err := store.Migrate(ctx); err != nil {
			return err
		}
	}

	pubsub, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer pubsub.Close()

	logger := log.Logger
	pub := changefeed.NewPublisher(pubsub, logger.With().Str("component", "changefeed").Logger())
	feed := changefeed.NewFeed(pubsub, logger.With().Str("component", "changefeed").Logger())
	data := changefeed.NewStore(store, pub)

	srv := server.New(ctx, cfg, data, feed, map[string]server.Pinger{
		"postgres": store,
		"redis":    pubsub,
	})
	reminder := deadline.NewReminder(store.Tasks(), data.Notifications(), cfg.Reminder.Interval,
		logger.With().Str("component", "reminder").Logger())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		return srv.Start(gctx)
	})
	g.Go(func() error {
		return reminder.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("stopped")
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*postgres.Store, error) {
	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return nil, fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}
	return postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
}
