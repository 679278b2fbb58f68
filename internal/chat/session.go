package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/agenthubhq/agenthub-cli/internal/decode"
	"github.com/agenthubhq/agenthub-cli/internal/execution"
)

// streamPath is the backend's streaming chat endpoint.
const streamPath = "/api/v1/chat/stream"

// executionIDHeader carries the backend-assigned execution id.
const executionIDHeader = "X-Execution-Id"

// Request is one outbound user message with its conversation context.
type Request struct {
	Message string
	Context string
	History []HistoryEntry
}

// HistoryEntry is one prior turn sent along with the message.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// streamRequest is the wire form of the streaming endpoint's payload.
type streamRequest struct {
	Message             string         `json:"message"`
	Context             string         `json:"context,omitempty"`
	ConversationHistory []HistoryEntry `json:"conversationHistory,omitempty"`
}

// Session owns a single request/response cycle: it issues the request,
// folds inbound chunks through the stream decoder, and exposes the live
// reconstruction. A Session is used exactly once and discarded after its
// stream ends or it is cancelled.
type Session struct {
	client *Client
	record *execution.Record

	mu        sync.Mutex
	buf       strings.Builder
	cancel    context.CancelFunc
	cancelled bool
	started   bool
}

// NewSession creates a session that will stream into record. The record
// must be fresh; every execution starts unreviewed.
func NewSession(client *Client, record *execution.Record) *Session {
	return &Session{client: client, record: record}
}

// Record returns the execution record this session streams into.
func (s *Session) Record() *execution.Record {
	return s.record
}

// Cancelled reports whether Cancel has been called.
func (s *Session) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// Start issues the request and begins reading the response body. The
// returned stream yields EventText updates (each carrying the full
// reconstruction so far) and a final EventDone with the frozen record.
//
// Cancellation ends the stream with no error and no further record
// mutation. Any other failure substitutes the in-flight text with a
// generic error message and surfaces the error from Recv.
func (s *Session) Start(ctx context.Context, req Request) (Stream, error) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil, fmt.Errorf("session already started")
	}
	s.started = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		err := s.run(ctx, req, events)
		if err == nil {
			return nil
		}
		if IsAbort(err) || ctx.Err() != nil {
			return nil
		}
		s.client.logger.LogStreamEnd(s.record.ID, "", err)
		if !isCreditError(err) {
			s.substitute(ErrorSubstitution)
		}
		return err
	}), nil
}

func (s *Session) run(ctx context.Context, req Request, events chan<- Event) error {
	body, err := json.Marshal(streamRequest{
		Message:             req.Message,
		Context:             req.Context,
		ConversationHistory: req.History,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", s.client.baseURL+streamPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	s.client.authorize(httpReq)

	resp, err := s.client.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("agent request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusPaymentRequired {
			return fmt.Errorf("%w (status %d)", ErrInsufficientCredits, resp.StatusCode)
		}
		return &TransportError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if id := resp.Header.Get(executionIDHeader); id != "" {
		s.setExecutionID(id)
	}

	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if text, ok := s.fold(string(buf[:n])); ok {
				events <- Event{Type: EventText, Text: text}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("read stream: %w", readErr)
		}
	}

	record, ok := s.finish()
	if !ok {
		return nil
	}
	s.client.logger.LogStreamEnd(record.ID, record.RawOutput, nil)
	events <- Event{Type: EventDone, Record: record}
	return nil
}

// Cancel invalidates the session. Chunks already in flight are allowed to
// arrive but are discarded before any record mutation, so the partial text
// at cancellation time is what remains.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// fold appends a chunk to the decoder buffer, re-runs the decoder over the
// whole buffer, and updates the record. The decoder is not resumable (a
// prefix of a concatenated-object stream is not valid JSON), so re-decoding
// the cumulative buffer is the correctness-over-efficiency trade-off;
// buffers are chat-sized.
func (s *Session) fold(chunk string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		s.client.logger.LogChunk(s.record.ID, len(chunk), "", true)
		return "", false
	}
	s.buf.WriteString(chunk)
	text := decode.Decode(s.buf.String())
	s.record.RawOutput = text
	s.client.logger.LogChunk(s.record.ID, len(chunk), text, false)
	return text, true
}

func (s *Session) setExecutionID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return
	}
	s.record.ID = id
}

// finish freezes the record at stream end.
func (s *Session) finish() (*execution.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return nil, false
	}
	s.record.CompletedAt = time.Now()
	return s.record, true
}

// substitute replaces the in-flight text after a mid-stream failure.
func (s *Session) substitute(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return
	}
	s.record.RawOutput = text
}

func isCreditError(err error) bool {
	return errors.Is(err, ErrInsufficientCredits)
}
