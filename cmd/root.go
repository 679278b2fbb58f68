package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "agenthub",
	Short: "Chat with marketplace agents from the terminal",
	Long: `agenthub streams agent responses to your terminal and lets you send
any answer to a human expert for review.

Examples:
  agenthub chat "summarize this quarter's churn numbers"
  agenthub chat "refine the query" --conversation <id>

  agenthub review request <execution-id> --note "check the math"
  agenthub review status <execution-id> --wait

  agenthub executions                  # list recent executions
  agenthub config init                 # write a starter config`,
	Version:           Version,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

var baseURLFlag string

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURLFlag, "base-url", "", "Override the backend base URL")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
