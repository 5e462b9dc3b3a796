// Package main provides the entry point for the Board of Ideators API server
// and its companion pipeline tools.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ideator_board",
	Short: "Board of Ideators pipeline API",
	Long:  "Board of Ideators tracks multi-stage idea-generation pipeline runs: it triggers runs, ingests stage webhooks, and serves run status and opportunity cards via REST API.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
