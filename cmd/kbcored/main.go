package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/kbcore/internal/cli"
	"github.com/cloo-solutions/kbcore/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "kbcored",
		Short: "Knowledge-base query service daemon",
		Long:  "kbcored runs the multi-tenant knowledge-base query service's HTTP API server.",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
