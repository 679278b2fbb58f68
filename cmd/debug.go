package cmd

import (
	"fmt"
	"strings"

	"github.com/agenthubhq/agenthub-cli/internal/config"
	"github.com/agenthubhq/agenthub-cli/internal/debuglog"
	"github.com/agenthubhq/agenthub-cli/internal/ui"
	"github.com/spf13/cobra"
)

var debugCmd = &cobra.Command{
	Use:   "debug [conversation-id]",
	Short: "Inspect debug logs",
	Long: `List debug logs, or show the logged traffic for one conversation.
Debug logging is off by default; enable it with debug.enabled in the config.

Examples:
  agenthub debug                  # list logs
  agenthub debug <conversation>   # show one conversation's traffic`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDebug,
}

func init() {
	rootCmd.AddCommand(debugCmd)
}

func debugDir() (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.Debug.Dir != "" {
		return cfg.Debug.Dir, nil
	}
	return config.GetDebugDir(), nil
}

func runDebug(cmd *cobra.Command, args []string) error {
	dir, err := debugDir()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		return listDebugLogs(dir)
	}
	return showDebugLog(dir, args[0])
}

func listDebugLogs(dir string) error {
	logs, err := debuglog.ListLogs(dir)
	if err != nil {
		return fmt.Errorf("failed to list debug logs: %w", err)
	}
	if len(logs) == 0 {
		fmt.Println("No debug logs found.")
		return nil
	}

	fmt.Printf("%-38s %8s %s\n", "CONVERSATION", "SIZE", "AGE")
	fmt.Println(strings.Repeat("-", 60))
	for _, log := range logs {
		fmt.Printf("%-38s %8d %s\n", log.ConversationID, log.Size, formatRelativeTime(log.ModTime))
	}
	return nil
}

func showDebugLog(dir, conversationID string) error {
	logs, err := debuglog.ListLogs(dir)
	if err != nil {
		return err
	}
	var path string
	for _, log := range logs {
		if log.ConversationID == conversationID || strings.HasPrefix(log.ConversationID, conversationID) {
			path = log.Path
			break
		}
	}
	if path == "" {
		return fmt.Errorf("no debug log for conversation %s", conversationID)
	}

	entries, err := debuglog.ParseFile(path)
	if err != nil {
		return err
	}

	styles := ui.DefaultStyles()
	for _, e := range entries {
		ts := e.Timestamp.Format("15:04:05.000")
		switch e.Type {
		case "request":
			fmt.Printf("%s %s %s\n", ts, styles.Command.Render("request"), ui.Truncate(e.Message, 60))
		case "chunk":
			label := "chunk"
			if e.Discarded {
				label = "chunk (discarded)"
			}
			fmt.Printf("%s %s %d bytes -> %s\n", ts, styles.Muted.Render(label), e.Bytes, ui.Truncate(e.Decoded, 60))
		case "stream_end":
			if e.Err != "" {
				fmt.Printf("%s %s %s\n", ts, styles.Error.Render("stream_end"), e.Err)
			} else {
				fmt.Printf("%s %s %s\n", ts, styles.Success.Render("stream_end"), ui.Truncate(e.Final, 60))
			}
		case "review":
			fmt.Printf("%s %s %s %s %s\n", ts, styles.Highlighted.Render("review"), e.ExecutionID, e.Event, e.Detail)
		}
	}
	return nil
}
