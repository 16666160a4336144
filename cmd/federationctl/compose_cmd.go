package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/n9te9/federation-core/internal/compose"
	"github.com/n9te9/federation-core/internal/ingest"
)

var composeCmd = &cobra.Command{
	Use:   "compose <subgraph-dir>",
	Short: "Ingest every subgraph in a manifest and compose a supergraph",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompose,
}

func runCompose(cmd *cobra.Command, args []string) error {
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
	ctx, span := tracer.Start(ctx, "compose")
	defer span.End()

	subgraphs, ingestErrs := ingestAll(dir, manifest)
	if len(ingestErrs) != 0 {
		return printErrors(cmd, "ingest", ingestErrs)
	}

	sg, composeErrs := compose.Compose(subgraphs)
	if len(composeErrs) != 0 {
		return printErrors(cmd, "compose", composeErrs)
	}

	slog.InfoContext(ctx, "composed supergraph", "identity", sg.Identity().String(), "types", len(sg.TypeOrder))

	out := struct {
		Identity string   `json:"identity"`
		Types    []string `json:"types"`
	}{Identity: sg.Identity().String(), Types: sg.TypeOrder}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// ingestAll loads and parses every subgraph named in manifest, reading schema
// files relative to dir.
func ingestAll(dir string, manifest *Manifest) ([]*ingest.Subgraph, []error) {
	var subgraphs []*ingest.Subgraph
	var errs []error
	for _, svc := range manifest.Services {
		sdl, err := svc.ReadSchema(dir)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		sg, schemaErrs := ingest.New(svc.Name, svc.Host, sdl)
		for _, e := range schemaErrs {
			errs = append(errs, e)
		}
		if len(schemaErrs) == 0 {
			subgraphs = append(subgraphs, sg)
		}
	}
	return subgraphs, errs
}

func printErrors(cmd *cobra.Command, stage string, errs []error) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	type errOut struct {
		Stage string `json:"stage"`
		Error string `json:"error"`
	}
	var out []errOut
	for _, e := range errs {
		out = append(out, errOut{Stage: stage, Error: e.Error()})
	}
	if err := enc.Encode(out); err != nil {
		return err
	}
	return fmt.Errorf("%s failed with %d error(s)", stage, len(errs))
}
