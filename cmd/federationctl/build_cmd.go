package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/n9te9/federation-core/internal/compose"
	"github.com/n9te9/federation-core/internal/supergraph"
)

var buildCmd = &cobra.Command{
	Use:   "build <subgraph-dir>",
	Short: "Compose a supergraph and print its portable CSDL",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	dir := args[0]
	ctx := cmd.Context()

	manifest, err := LoadManifest(dir)
	if err != nil {
		return err
	}

	shutdown, err := initTracer(ctx, manifest.ServiceName, manifest.Opentelemetry.Tracing.Enable, manifest.Opentelemetry.Tracing.Endpoint)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdown(ctx)

	tracer := otel.Tracer("federationctl")
	_, span := tracer.Start(ctx, "build")
	defer span.End()

	subgraphs, ingestErrs := ingestAll(dir, manifest)
	if len(ingestErrs) != 0 {
		return printErrors(cmd, "ingest", ingestErrs)
	}

	sg, composeErrs := compose.Compose(subgraphs)
	if len(composeErrs) != 0 {
		return printErrors(cmd, "compose", composeErrs)
	}

	csdl := supergraph.Print(sg)
	fmt.Fprintln(cmd.OutOrStdout(), csdl)
	return nil
}
