package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/catmaid-go/internal/graphstore"
	"github.com/ajitpratap0/catmaid-go/internal/neuron"
)

func pushGraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push-graph [skeleton...]",
		Short: "Export skeleton graphs to Neo4j",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			client := newClient(logger)
			ids, err := client.ResolveSkeletonIDs(ctx, args...)
			if err != nil {
				return fmt.Errorf("push-graph: resolving skeletons: %w", err)
			}

			fetcher, closeFetcher, err := newFetcher(logger)
			if err != nil {
				return fmt.Errorf("push-graph: %w", err)
			}
			defer closeFetcher()

			exporter, err := graphstore.NewExporter(ctx,
				cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password, logger)
			if err != nil {
				return fmt.Errorf("push-graph: %w", err)
			}
			defer func() { _ = exporter.Close(ctx) }()

			list, err := neuron.GetMany(ctx, fetcher, ids)
			if err != nil {
				return fmt.Errorf("push-graph: fetching skeletons: %w", err)
			}
			for _, n := range list.Neurons() {
				if err := exporter.ExportNeuron(ctx, n); err != nil {
					return fmt.Errorf("push-graph: skeleton %d: %w", n.SkeletonID(), err)
				}
				fmt.Printf("pushed skeleton %d\n", n.SkeletonID())
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CATMAID server version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			client := newClient(logger)
			version, err := client.Version(cmd.Context())
			if err != nil {
				return fmt.Errorf("version: %w", err)
			}
			fmt.Printf("%s (%s)\n", version, cfg.Server.BaseURL)
			return nil
		},
	}
}
