package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func annotationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "annotations",
		Short: "List the project's annotations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			client := newClient(logger)
			annotations, err := client.ListAnnotations(ctx)
			if err != nil {
				return fmt.Errorf("annotations: %w", err)
			}

			names := make([]string, 0, len(annotations))
			for name := range annotations {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				fmt.Printf("%-8d %s\n", annotations[name], name)
			}
			return nil
		},
	}
}

func resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve [specifier...]",
		Short: "Resolve names and annotations to skeleton IDs",
		Long:  "Resolve skeleton specifiers (IDs, \"annotation:X\", \"name:X\" or bare names) to skeleton IDs, one per line.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			client := newClient(logger)
			ids, err := client.ResolveSkeletonIDs(ctx, args...)
			if err != nil {
				return fmt.Errorf("resolve: %w", err)
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
}
