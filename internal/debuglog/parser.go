package debuglog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Entry is one parsed log line. Fields beyond the common trio are
// populated per type.
type Entry struct {
	Timestamp      time.Time
	ConversationID string
	Type           string // "request", "chunk", "stream_end", "review"

	ExecutionID string
	Message     string
	Bytes       int
	Decoded     string
	Discarded   bool
	Final       string
	Event       string
	Detail      string
	Err         string
}

// rawEntry is the union of all entry shapes for parsing.
type rawEntry struct {
	Timestamp      string `json:"timestamp"`
	ConversationID string `json:"conversation_id"`
	Type           string `json:"type"`
	ExecutionID    string `json:"execution_id"`
	Message        string `json:"message"`
	Bytes          int    `json:"bytes"`
	Decoded        string `json:"decoded"`
	Discarded      bool   `json:"discarded"`
	Final          string `json:"final"`
	Event          string `json:"event"`
	Detail         string `json:"detail"`
	Err            string `json:"error"`
}

// ParseFile reads a debug log file and returns its entries in file order.
// Malformed lines are skipped.
func ParseFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var raw rawEntry
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			continue
		}
		ts, _ := time.Parse(time.RFC3339Nano, raw.Timestamp)
		entries = append(entries, Entry{
			Timestamp:      ts,
			ConversationID: raw.ConversationID,
			Type:           raw.Type,
			ExecutionID:    raw.ExecutionID,
			Message:        raw.Message,
			Bytes:          raw.Bytes,
			Decoded:        raw.Decoded,
			Discarded:      raw.Discarded,
			Final:          raw.Final,
			Event:          raw.Event,
			Detail:         raw.Detail,
			Err:            raw.Err,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read debug log: %w", err)
	}
	return entries, nil
}

// LogFile describes one conversation's debug log on disk.
type LogFile struct {
	ConversationID string
	Path           string
	ModTime        time.Time
	Size           int64
}

// ListLogs returns the debug logs under baseDir, newest first.
func ListLogs(baseDir string) ([]LogFile, error) {
	dirEntries, err := os.ReadDir(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var logs []LogFile
	for _, entry := range dirEntries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jsonl" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		logs = append(logs, LogFile{
			ConversationID: strings.TrimSuffix(entry.Name(), ".jsonl"),
			Path:           filepath.Join(baseDir, entry.Name()),
			ModTime:        info.ModTime(),
			Size:           info.Size(),
		})
	}
	sort.Slice(logs, func(i, j int) bool {
		return logs[i].ModTime.After(logs[j].ModTime)
	})
	return logs, nil
}
