package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/catmaid-go/internal/cache"
)

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local response cache",
	}
	cmd.AddCommand(cacheClearCmd())
	return cmd
}

func cacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached server response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			cached, err := cache.Open(cfg.Cache.Path, newClient(logger), cfg.Cache.TTL(), logger)
			if err != nil {
				return fmt.Errorf("cache clear: %w", err)
			}
			defer func() { _ = cached.Close() }()

			if err := cached.Clear(ctx); err != nil {
				return fmt.Errorf("cache clear: %w", err)
			}
			fmt.Printf("cleared %s\n", cfg.Cache.Path)
			return nil
		},
	}
}
