package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/agenthubhq/agenthub-cli/internal/chat"
	"github.com/agenthubhq/agenthub-cli/internal/execution"
	"github.com/agenthubhq/agenthub-cli/internal/ui"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send a message to an agent and stream the response",
	Long: `Send a message and stream the agent's answer to stdout. Press Ctrl-C
to stop a response early; the partial text is kept.

Examples:
  agenthub chat "explain this stack trace" --context "$(cat trace.txt)"
  agenthub chat "now as a table" --conversation 4f2a...`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

var (
	chatContext      string
	chatConversation string
)

func init() {
	chatCmd.Flags().StringVarP(&chatContext, "context", "c", "", "Additional context sent with the message")
	chatCmd.Flags().StringVar(&chatConversation, "conversation", "", "Continue an existing conversation by id")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := getExecutionStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open execution store: %w", err)
	}
	defer store.Close()

	client := newChatClient(cfg)
	conv, err := openConversation(client, store)
	if err != nil {
		return err
	}

	logger := newDebugLogger(cfg, conv.ID())
	defer logger.Close()
	client.SetLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	stream, sess, err := conv.Send(ctx, args[0], chatContext)
	if err != nil {
		return err
	}
	defer stream.Close()

	// Ctrl-C invalidates the session before the transport notices, so
	// late chunks cannot mutate the record.
	go func() {
		<-ctx.Done()
		sess.Cancel()
	}()

	styles := ui.DefaultStyles()
	var record *execution.Record
	printed := ""
	for {
		ev, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Println()
			if errors.Is(err, chat.ErrInsufficientCredits) {
				fmt.Fprintln(os.Stderr, styles.Error.Render("Insufficient credits. Top up your account and try again."))
				return err
			}
			// The substituted error text is already in the record; show it.
			fmt.Println(sess.Record().RawOutput)
			return err
		}
		switch ev.Type {
		case chat.EventText:
			printed = printReplacement(printed, ev.Text)
		case chat.EventDone:
			record = ev.Record
		}
	}
	fmt.Println()

	if sess.Cancelled() {
		fmt.Fprintln(os.Stderr, styles.Muted.Render("Stopped. Partial response kept."))
		return nil
	}
	if record == nil {
		return nil
	}

	if err := store.Create(ctx, record); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", styles.Muted.Render("warning: failed to save execution: "+err.Error()))
	}

	fmt.Fprintln(os.Stderr, styles.Footer.Render(fmt.Sprintf(
		"execution %s  conversation %s", record.ID, conv.ID())))
	fmt.Fprintln(os.Stderr, styles.Footer.Render(fmt.Sprintf(
		"request a review: agenthub review request %s --note \"...\"", record.ID)))
	return nil
}

func openConversation(client *chat.Client, store execution.Store) (*chat.Conversation, error) {
	if chatConversation == "" {
		return chat.NewConversation(client), nil
	}
	records, err := store.ListByConversation(context.Background(), chatConversation)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation %s: %w", chatConversation, err)
	}
	return chat.ResumeConversation(client, chatConversation, records), nil
}

// printReplacement prints the delta between the previously printed text and
// its replacement. Replacement text normally grows by appending; when a
// re-decode rewrites earlier output the full text is reprinted on a new
// line.
func printReplacement(printed, text string) string {
	if text == printed {
		return printed
	}
	if strings.HasPrefix(text, printed) {
		fmt.Print(text[len(printed):])
		return text
	}
	fmt.Println()
	fmt.Print(text)
	return text
}
