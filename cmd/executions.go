package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/agenthubhq/agenthub-cli/internal/execution"
	"github.com/agenthubhq/agenthub-cli/internal/ui"
	"github.com/spf13/cobra"
)

var executionsCmd = &cobra.Command{
	Use:   "executions",
	Short: "Manage execution history",
	Long: `List and inspect stored executions.

Examples:
  agenthub executions                      # list recent executions
  agenthub executions list --status completed
  agenthub executions show <id>
  agenthub executions show <id> --json`,
	RunE: runExecutionsList, // Default to list
}

var executionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List executions",
	RunE:  runExecutionsList,
}

var executionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an execution's full text",
	Args:  cobra.ExactArgs(1),
	RunE:  runExecutionsShow,
}

// Flags
var (
	executionsConversation string
	executionsStatus       string
	executionsLimit        int
	executionsJSON         bool
	executionsRaw          bool
)

func init() {
	executionsListCmd.Flags().StringVar(&executionsConversation, "conversation", "", "Filter by conversation id")
	executionsListCmd.Flags().StringVar(&executionsStatus, "status", "", "Filter by review status (pending, in_progress, completed, rejected, unknown)")
	executionsListCmd.Flags().IntVar(&executionsLimit, "limit", 20, "Maximum number of executions to list")

	executionsShowCmd.Flags().BoolVar(&executionsJSON, "json", false, "Output as JSON")
	executionsShowCmd.Flags().BoolVar(&executionsRaw, "raw", false, "Show the agent output without the review block")

	executionsCmd.AddCommand(executionsListCmd)
	executionsCmd.AddCommand(executionsShowCmd)
	rootCmd.AddCommand(executionsCmd)
}

func runExecutionsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := getExecutionStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	summaries, err := store.List(context.Background(), execution.ListOptions{
		ConversationID: executionsConversation,
		ReviewStatus:   execution.ReviewStatus(executionsStatus),
		Limit:          executionsLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to list executions: %w", err)
	}

	if len(summaries) == 0 {
		fmt.Println("No executions found.")
		return nil
	}

	styles := ui.NewStyles(os.Stdout)

	// Header line
	fmt.Printf("%-38s %-30s %-14s %s\n", "ID", "PROMPT", "REVIEW", "AGE")
	fmt.Println(strings.Repeat("-", 96))

	for _, s := range summaries {
		fmt.Printf("%-38s %-30s %-14s %s\n",
			s.ID,
			ui.Truncate(s.Prompt, 30),
			styles.ReviewBadge(s.ReviewStatus),
			formatRelativeTime(s.CreatedAt))
	}
	return nil
}

func runExecutionsShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := getExecutionStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	record, err := store.Get(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to load execution: %w", err)
	}
	if record == nil {
		return fmt.Errorf("unknown execution %s", args[0])
	}

	if executionsJSON {
		out, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	styles := ui.NewStyles(os.Stdout)
	fmt.Println(styles.Title.Render(record.ID))
	fmt.Printf("conversation: %s\n", record.ConversationID)
	fmt.Printf("review:       %s\n", styles.ReviewBadge(record.ReviewStatus))
	if record.ReviewNote != "" {
		fmt.Printf("note:         %s\n", record.ReviewNote)
	}
	fmt.Println()
	fmt.Println(styles.Subtitle.Render("> " + record.Prompt))
	fmt.Println()
	if executionsRaw {
		fmt.Println(record.RawOutput)
	} else {
		fmt.Println(record.RenderedText())
	}
	return nil
}

// formatRelativeTime renders an age like "3m" or "2d" for listings.
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
