package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/catmaid-go/internal/neuron"
	"github.com/ajitpratap0/catmaid-go/pkg/swc"
)

func exportCmd() *cobra.Command {
	var (
		format   string
		outDir   string
		synapses bool
	)

	cmd := &cobra.Command{
		Use:   "export [skeleton...]",
		Short: "Export neurons as SWC or JSON files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			if format != "swc" && format != "json" {
				return fmt.Errorf("export: unknown format %q, want swc or json", format)
			}

			client := newClient(logger)
			ids, err := client.ResolveSkeletonIDs(ctx, args...)
			if err != nil {
				return fmt.Errorf("export: resolving skeletons: %w", err)
			}

			fetcher, closeFetcher, err := newFetcher(logger)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			defer closeFetcher()

			list, err := neuron.GetMany(ctx, fetcher, ids)
			if err != nil {
				return fmt.Errorf("export: fetching skeletons: %w", err)
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("export: creating %s: %w", outDir, err)
			}

			if format == "json" {
				data, encErr := neuron.EncodeJSON(list)
				if encErr != nil {
					return fmt.Errorf("export: encoding: %w", encErr)
				}
				path := filepath.Join(outDir, "neurons.json")
				if err := os.WriteFile(path, data, 0o644); err != nil {
					return fmt.Errorf("export: writing %s: %w", path, err)
				}
				fmt.Printf("wrote %d neurons to %s\n", list.Len(), path)
				return nil
			}

			for _, n := range list.Neurons() {
				nodes, nodesErr := n.Nodes(ctx)
				if nodesErr != nil {
					return fmt.Errorf("export: %w", nodesErr)
				}
				tags, tagsErr := n.Tags(ctx)
				if tagsErr != nil {
					return fmt.Errorf("export: %w", tagsErr)
				}
				opts := swc.Options{MinRadius: 0}
				if synapses {
					connectors, connErr := n.Connectors(ctx)
					if connErr != nil {
						return fmt.Errorf("export: %w", connErr)
					}
					opts.ExportSynapses = true
					opts.Connectors = connectors
				}

				path := filepath.Join(outDir, fmt.Sprintf("neuron_%d.swc", n.SkeletonID()))
				f, createErr := os.Create(path)
				if createErr != nil {
					return fmt.Errorf("export: creating %s: %w", path, createErr)
				}
				_, encErr := swc.Encode(f, nodes, tags, opts)
				closeErr := f.Close()
				if encErr != nil {
					return fmt.Errorf("export: writing %s: %w", path, encErr)
				}
				if closeErr != nil {
					return fmt.Errorf("export: closing %s: %w", path, closeErr)
				}
				fmt.Printf("wrote %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "swc", "output format: swc or json")
	cmd.Flags().StringVar(&outDir, "out", ".", "output directory")
	cmd.Flags().BoolVar(&synapses, "synapses", false, "label synaptic treenodes in SWC output")
	return cmd
}
