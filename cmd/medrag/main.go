package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/medrag/internal/cli"
	"github.com/cloo-solutions/medrag/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "medrag",
		Short: "Medrag CLI - ask questions of a medical document index",
		Long: `Medrag CLI sends questions to a medrag server and prints grounded answers.

Environment variables:
  MEDRAG_API_URL     API base URL (default: http://localhost:8080; API_URL is also read)
  MEDRAG_API_TOKEN   Bearer token, when the server sets API_TOKEN`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-token", "", "Bearer token (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.SourcesCmd())
	rootCmd.AddCommand(client.ChunkCmd())
	rootCmd.AddCommand(client.HealthCmd())
	rootCmd.AddCommand(client.ConfigureCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
