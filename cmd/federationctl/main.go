// Command federationctl is a CLI front end over this module's composition,
// supergraph, and planning core: three subcommands, each calling exactly one
// pure entry point and printing its result (JSON for compose and plan, CSDL
// text for build).
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "federationctl",
	Short: "Compose, build, and plan against a federated GraphQL supergraph",
}

func init() {
	rootCmd.AddCommand(composeCmd, buildCmd, planCmd)
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
