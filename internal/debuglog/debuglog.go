// Package debuglog captures chat and review traffic to JSONL files for
// debugging malformed stream framings after the fact.
package debuglog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger logs stream chunks and review events to a JSONL file, one file per
// conversation. A nil *Logger is valid and discards everything.
type Logger struct {
	baseDir        string
	conversationID string
	mu             sync.Mutex
	file           *os.File
	writer         *bufio.Writer
	closeOnce      sync.Once
	closed         bool
}

// logEntry is the common structure for all log entries.
type logEntry struct {
	Timestamp      string `json:"timestamp"`
	ConversationID string `json:"conversation_id"`
	Type           string `json:"type"`
}

type requestEntry struct {
	logEntry
	Message    string `json:"message"`
	Context    string `json:"context,omitempty"`
	HistoryLen int    `json:"history_len"`
}

type chunkEntry struct {
	logEntry
	ExecutionID string `json:"execution_id,omitempty"`
	Bytes       int    `json:"bytes"`
	Decoded     string `json:"decoded"`
	Discarded   bool   `json:"discarded,omitempty"` // chunk arrived after cancellation
}

type streamEndEntry struct {
	logEntry
	ExecutionID string `json:"execution_id"`
	Final       string `json:"final"`
	Err         string `json:"error,omitempty"`
}

type reviewEntry struct {
	logEntry
	ExecutionID string `json:"execution_id"`
	Event       string `json:"event"`
	Detail      string `json:"detail,omitempty"`
}

const retention = 7 * 24 * time.Hour

// New creates a Logger writing to <baseDir>/<conversationID>.jsonl.
// Log files older than the retention window are removed on open.
func New(baseDir, conversationID string) (*Logger, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, err
	}

	_ = cleanupOldLogs(baseDir, retention)

	filename := filepath.Join(baseDir, conversationID+".jsonl")
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	return &Logger{
		baseDir:        baseDir,
		conversationID: conversationID,
		file:           file,
		writer:         bufio.NewWriter(file),
	}, nil
}

// LogRequest records an outbound chat request.
func (l *Logger) LogRequest(message, contextStr string, historyLen int) {
	if l == nil {
		return
	}
	l.writeEntry(requestEntry{
		logEntry:   l.entry("request"),
		Message:    message,
		Context:    contextStr,
		HistoryLen: historyLen,
	})
}

// LogChunk records one inbound stream chunk and the decoded text it
// produced (or that it was discarded after cancellation).
func (l *Logger) LogChunk(executionID string, size int, decoded string, discarded bool) {
	if l == nil {
		return
	}
	l.writeEntry(chunkEntry{
		logEntry:    l.entry("chunk"),
		ExecutionID: executionID,
		Bytes:       size,
		Decoded:     decoded,
		Discarded:   discarded,
	})
}

// LogStreamEnd records the terminal state of a stream.
func (l *Logger) LogStreamEnd(executionID, final string, err error) {
	if l == nil {
		return
	}
	entry := streamEndEntry{
		logEntry:    l.entry("stream_end"),
		ExecutionID: executionID,
		Final:       final,
	}
	if err != nil {
		entry.Err = err.Error()
	}
	l.writeEntry(entry)
	l.Flush()
}

// LogReview records a review workflow event (request, transition, poll
// failure, give-up).
func (l *Logger) LogReview(executionID, event, detail string) {
	if l == nil {
		return
	}
	l.writeEntry(reviewEntry{
		logEntry:    l.entry("review"),
		ExecutionID: executionID,
		Event:       event,
		Detail:      detail,
	})
	l.Flush()
}

func (l *Logger) entry(kind string) logEntry {
	return logEntry{
		Timestamp:      time.Now().UTC().Format(time.RFC3339Nano),
		ConversationID: l.conversationID,
		Type:           kind,
	}
}

func (l *Logger) writeEntry(entry any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	l.writer.Write(data)
	l.writer.WriteByte('\n')
}

// Flush writes buffered entries to disk.
func (l *Logger) Flush() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.writer.Flush()
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	var err error
	l.closeOnce.Do(func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.closed = true
		if flushErr := l.writer.Flush(); flushErr != nil {
			err = flushErr
		}
		if closeErr := l.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	})
	return err
}

// Path returns the log file path.
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return filepath.Join(l.baseDir, l.conversationID+".jsonl")
}

func cleanupOldLogs(baseDir string, maxAge time.Duration) error {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jsonl" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(baseDir, entry.Name()))
		}
	}
	return nil
}
