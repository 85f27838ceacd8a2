package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lumora-ai/lumora/internal/cli"
	"github.com/lumora-ai/lumora/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lumorad",
		Short: "Lumora daemon",
		Long:  "Lumora daemon for running the document knowledge API server and ingestion worker",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.MigrateCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
