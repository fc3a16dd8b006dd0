package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/catmaid-go/internal/neuron"
)

func getCmd() *cobra.Command {
	var withReview bool

	cmd := &cobra.Command{
		Use:   "get [skeleton...]",
		Short: "Fetch neurons and print a summary",
		Long:  "Fetch neurons by skeleton ID, \"annotation:X\" or neuron name and print a per-neuron summary.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			client := newClient(logger)
			ids, err := client.ResolveSkeletonIDs(ctx, args...)
			if err != nil {
				return fmt.Errorf("get: resolving skeletons: %w", err)
			}
			if len(ids) == 0 {
				return fmt.Errorf("get: no skeletons match %v", args)
			}

			fetcher, closeFetcher, err := newFetcher(logger)
			if err != nil {
				return fmt.Errorf("get: %w", err)
			}
			defer closeFetcher()

			list, err := neuron.GetMany(ctx, fetcher, ids)
			if err != nil {
				return fmt.Errorf("get: fetching skeletons: %w", err)
			}

			names, err := list.Names(ctx)
			if err != nil {
				return fmt.Errorf("get: fetching names: %w", err)
			}

			for i, n := range list.Neurons() {
				nodes, nodesErr := n.Nodes(ctx)
				if nodesErr != nil {
					return fmt.Errorf("get: %w", nodesErr)
				}
				connectors, connErr := n.Connectors(ctx)
				if connErr != nil {
					return fmt.Errorf("get: %w", connErr)
				}

				fmt.Printf("Skeleton:   %d\n", n.SkeletonID())
				fmt.Printf("Name:       %s\n", names[i])
				fmt.Printf("Nodes:      %d\n", len(nodes))
				fmt.Printf("Pre/post:   %d/%d\n",
					len(connectors.Presynapses()), len(connectors.Postsynapses()))
				if somaID, ok, somaErr := n.Soma(ctx); somaErr == nil && ok {
					fmt.Printf("Soma:       treenode %d\n", somaID)
				}
				if withReview {
					review, reviewErr := n.ReviewStatus(ctx)
					if reviewErr != nil {
						return fmt.Errorf("get: fetching review status: %w", reviewErr)
					}
					fmt.Printf("Reviewed:   %.1f%% (%d/%d)\n",
						review.Percent(), review.Reviewed, review.Total)
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&withReview, "review", false, "include review status")
	return cmd
}
