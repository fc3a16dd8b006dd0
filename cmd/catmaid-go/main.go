package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/catmaid-go/internal/cache"
	"github.com/ajitpratap0/catmaid-go/internal/catmaid"
	"github.com/ajitpratap0/catmaid-go/internal/config"
	"github.com/ajitpratap0/catmaid-go/internal/fetch"
)

var cfg *config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:   "catmaid-go",
		Short: "CATMAID neuron client and exporter",
		Long:  "catmaid-go fetches neurons from a CATMAID server as node and connector tables, with lazy on-demand population, a local response cache and SWC/JSON export.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		getCmd(),
		exportCmd(),
		annotationsCmd(),
		resolveCmd(),
		pushGraphCmd(),
		versionCmd(),
		cacheCmd(),
	)

	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil && cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg != nil && cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func newClient(logger *slog.Logger) *catmaid.Client {
	return catmaid.NewClient(catmaid.Config{
		BaseURL:     cfg.Server.BaseURL,
		APIToken:    cfg.Server.APIToken,
		ProjectID:   cfg.Server.ProjectID,
		Timeout:     cfg.Server.Timeout(),
		RateLimit:   cfg.Server.RateLimitRPS,
		MaxParallel: cfg.Server.MaxParallel,
	}, logger)
}

// newFetcher returns the configured fetch stack: the HTTP client, wrapped in
// the sqlite response cache when enabled. The returned close function is
// a no-op without a cache.
func newFetcher(logger *slog.Logger) (fetch.Fetcher, func(), error) {
	client := newClient(logger)
	if cfg == nil || !cfg.Cache.Enabled {
		return client, func() {}, nil
	}
	cached, err := cache.Open(cfg.Cache.Path, client, cfg.Cache.TTL(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening response cache: %w", err)
	}
	return cached, func() { _ = cached.Close() }, nil
}
