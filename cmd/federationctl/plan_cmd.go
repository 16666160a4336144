package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/n9te9/federation-core/internal/fedast"
	"github.com/n9te9/federation-core/internal/planner"
	"github.com/n9te9/federation-core/internal/supergraph"
)

var planVariablesPath string

var planCmd = &cobra.Command{
	Use:   "plan <supergraph.graphql> <operation.graphql>",
	Short: "Parse a composed CSDL supergraph and plan one operation against it",
	Args:  cobra.ExactArgs(2),
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planVariablesPath, "variables", "", "path to a JSON object of operation variable values")
}

func runPlan(cmd *cobra.Command, args []string) error {
	csdlPath, opPath := args[0], args[1]
	ctx := cmd.Context()

	tracer := otel.Tracer("federationctl")
	_, span := tracer.Start(ctx, "plan")
	defer span.End()

	csdl, err := os.ReadFile(csdlPath)
	if err != nil {
		return fmt.Errorf("read supergraph: %w", err)
	}

	md, parseErrs := supergraph.Parse(string(csdl))
	if len(parseErrs) != 0 {
		var errs []error
		for _, e := range parseErrs {
			errs = append(errs, e)
		}
		return printErrors(cmd, "parse", errs)
	}

	opSrc, err := os.ReadFile(opPath)
	if err != nil {
		return fmt.Errorf("read operation: %w", err)
	}

	doc, err := fedast.ParseDocument(string(opSrc))
	if err != nil {
		return fmt.Errorf("parse operation: %w", err)
	}

	var variables map[string]any
	if planVariablesPath != "" {
		raw, err := os.ReadFile(planVariablesPath)
		if err != nil {
			return fmt.Errorf("read variables: %w", err)
		}
		if err := json.Unmarshal(raw, &variables); err != nil {
			return fmt.Errorf("unmarshal variables: %w", err)
		}
	}

	p, err := planner.Plan(md, doc, variables)
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}
