package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/agenthubhq/agenthub-cli/internal/execution"
	"github.com/agenthubhq/agenthub-cli/internal/review"
	"github.com/agenthubhq/agenthub-cli/internal/ui"
	"github.com/spf13/cobra"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Request and track expert reviews",
	Long: `Send an execution to a human expert and track the outcome.

Examples:
  agenthub review request <execution-id> --note "check the math"
  agenthub review request <execution-id> --note "urgent" --priority high
  agenthub review status <execution-id>
  agenthub review status <execution-id> --wait`,
}

var reviewRequestCmd = &cobra.Command{
	Use:   "request <execution-id>",
	Short: "Request an expert review for an execution",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewRequest,
}

var reviewStatusCmd = &cobra.Command{
	Use:   "status <execution-id>",
	Short: "Show (or wait for) the review outcome",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewStatus,
}

var (
	reviewNote     string
	reviewPriority string
	reviewWait     bool
)

func init() {
	reviewRequestCmd.Flags().StringVarP(&reviewNote, "note", "n", "", "Note for the reviewer (required)")
	reviewRequestCmd.Flags().StringVar(&reviewPriority, "priority", "", "Review priority (standard or high)")
	reviewStatusCmd.Flags().BoolVar(&reviewWait, "wait", false, "Poll until the review reaches an outcome")

	reviewCmd.AddCommand(reviewRequestCmd)
	reviewCmd.AddCommand(reviewStatusCmd)
	rootCmd.AddCommand(reviewCmd)
}

// reviewWorkflow loads the execution from the store and builds a workflow
// scoped to it.
func reviewWorkflow(ctx context.Context, executionID string) (*review.Workflow, *execution.Record, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := getExecutionStore(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open execution store: %w", err)
	}

	record, err := store.Get(ctx, executionID)
	if err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("failed to load execution: %w", err)
	}
	if record == nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("unknown execution %s", executionID)
	}

	w := review.New(newReviewBackend(cfg), review.NewRecordSet(record), reviewConfigFrom(cfg))
	w.SetStore(store)
	return w, record, func() { store.Close() }, nil
}

func runReviewRequest(cmd *cobra.Command, args []string) error {
	if reviewNote == "" {
		return fmt.Errorf("--note is required: tell the reviewer what to look at")
	}
	priority := execution.Priority(reviewPriority)
	if priority != "" && priority != execution.PriorityStandard && priority != execution.PriorityHigh {
		return fmt.Errorf("invalid priority %q: must be standard or high", reviewPriority)
	}

	ctx := context.Background()
	w, record, cleanup, err := reviewWorkflow(ctx, args[0])
	if err != nil {
		return err
	}
	defer cleanup()

	if err := w.Request(ctx, args[0], reviewNote, priority); err != nil {
		return err
	}

	styles := ui.DefaultStyles()
	fmt.Println(styles.FormatResult(true, fmt.Sprintf("Review requested for %s", record.ID)))
	fmt.Println(styles.Muted.Render("Track it with: agenthub review status " + record.ID + " --wait"))
	return nil
}

func runReviewStatus(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	w, record, cleanup, err := reviewWorkflow(ctx, args[0])
	if err != nil {
		return err
	}
	defer cleanup()

	styles := ui.DefaultStyles()

	if !reviewWait || record.ReviewStatus.Terminal() {
		if _, err := w.Refresh(ctx, args[0]); err != nil {
			// Show the locally known state when the backend is unreachable.
			fmt.Fprintln(os.Stderr, styles.Muted.Render("warning: refresh failed: "+err.Error()))
		}
		printReviewOutcome(styles, record)
		return nil
	}

	w.OnUpdate(func(r *execution.Record) {
		fmt.Fprintln(os.Stderr, styles.ReviewBadge(r.ReviewStatus))
	})

	fmt.Fprintln(os.Stderr, styles.Muted.Render("Waiting for review..."))
	poller := w.StartPolling(ctx, args[0])
	select {
	case <-ctx.Done():
		poller.Stop()
		poller.Wait()
	case <-poller.Done():
	}

	printReviewOutcome(styles, record)
	return nil
}

func printReviewOutcome(styles *ui.Styles, record *execution.Record) {
	fmt.Printf("%s  %s\n", record.ID, styles.ReviewBadge(record.ReviewStatus))
	switch record.ReviewStatus {
	case execution.ReviewCompleted:
		fmt.Println()
		fmt.Println(record.RenderedText())
	case execution.ReviewRejected:
		if record.ReviewResponseNote != "" {
			fmt.Println(styles.ReviewNote.Render("Reviewer: " + record.ReviewResponseNote))
		}
	case execution.ReviewUnknown:
		fmt.Println(styles.Muted.Render("Could not confirm the outcome. Run status again to retry."))
	}
}
