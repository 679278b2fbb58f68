package chat

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agenthubhq/agenthub-cli/internal/execution"
)

// collect drains a stream, returning all text updates, the final record
// (if any), and the terminal error.
func collect(t *testing.T, stream Stream) ([]string, *execution.Record, error) {
	t.Helper()
	var texts []string
	var record *execution.Record
	for {
		event, err := stream.Recv()
		if err == io.EOF {
			return texts, record, nil
		}
		if err != nil {
			return texts, record, err
		}
		switch event.Type {
		case EventText:
			texts = append(texts, event.Text)
		case EventDone:
			record = event.Record
		}
	}
}

func newTestSession(baseURL string) *Session {
	client := NewClient(baseURL, nil)
	record := execution.NewRecord("conv-1", "question", 0)
	return NewSession(client, record)
}

func TestSessionStreamsTokenChunks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != streamPath {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set(executionIDHeader, "exec-42")
		flusher := w.(http.Flusher)
		for _, chunk := range []string{
			`{"type":"token","content":"A"}`,
			`{"type":"token","content":"B"}`,
			`{"type":"token","content":"C"}`,
		} {
			io.WriteString(w, chunk)
			flusher.Flush()
			time.Sleep(5 * time.Millisecond)
		}
	}))
	defer server.Close()

	session := newTestSession(server.URL)
	stream, err := session.Start(context.Background(), Request{Message: "question"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer stream.Close()

	texts, record, err := collect(t, stream)
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if record == nil {
		t.Fatal("expected a finished record")
	}
	if record.RawOutput != "ABC" {
		t.Errorf("raw output = %q, want %q", record.RawOutput, "ABC")
	}
	if record.ID != "exec-42" {
		t.Errorf("execution id = %q, want backend-assigned id", record.ID)
	}
	if record.ReviewStatus != execution.ReviewNone {
		t.Errorf("review status = %q, want none", record.ReviewStatus)
	}
	if record.CompletedAt.IsZero() {
		t.Error("expected completed_at to be set")
	}
	if len(texts) == 0 {
		t.Fatal("expected incremental text updates")
	}
	// Updates replace, not append: the final update is the full answer.
	if texts[len(texts)-1] != "ABC" {
		t.Errorf("final update = %q, want %q", texts[len(texts)-1], "ABC")
	}
}

func TestSessionHandlesSplitJSONChunks(t *testing.T) {
	// A token object split across reads is unparseable until the rest
	// arrives; re-decoding the cumulative buffer recovers the full answer.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		io.WriteString(w, `{"type":"token","content":"Hel"}{"type":"tok`)
		flusher.Flush()
		time.Sleep(5 * time.Millisecond)
		io.WriteString(w, `en","content":"lo"}`)
		flusher.Flush()
	}))
	defer server.Close()

	session := newTestSession(server.URL)
	stream, err := session.Start(context.Background(), Request{Message: "hi"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer stream.Close()

	_, record, err := collect(t, stream)
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if record == nil || record.RawOutput != "Hello" {
		t.Fatalf("expected reassembled %q, got %+v", "Hello", record)
	}
}

func TestSessionInsufficientCredits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "payment required", http.StatusPaymentRequired)
	}))
	defer server.Close()

	session := newTestSession(server.URL)
	stream, err := session.Start(context.Background(), Request{Message: "q"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer stream.Close()

	_, _, err = collect(t, stream)
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected credit error, got %v", err)
	}
	// The credit case gets its own message at the call site; the generic
	// substitution must not clobber the record.
	if session.Record().RawOutput == ErrorSubstitution {
		t.Error("credit failure should not substitute generic error text")
	}
}

func TestSessionGenericFailureSubstitutesText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	session := newTestSession(server.URL)
	stream, err := session.Start(context.Background(), Request{Message: "q"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer stream.Close()

	_, _, err = collect(t, stream)
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if transportErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d", transportErr.StatusCode)
	}
	if session.Record().RawOutput != ErrorSubstitution {
		t.Errorf("raw output = %q, want substitution text", session.Record().RawOutput)
	}
}

func TestSessionCancelPreservesPartialText(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		io.WriteString(w, `{"type":"token","content":"A"}`)
		flusher.Flush()
		io.WriteString(w, `{"type":"token","content":"B"}`)
		flusher.Flush()
		<-release
		io.WriteString(w, `{"type":"token","content":"C"}`)
		flusher.Flush()
	}))
	defer server.Close()
	defer close(release)

	session := newTestSession(server.URL)
	stream, err := session.Start(context.Background(), Request{Message: "q"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer stream.Close()

	// Read until both chunks have been folded in.
	deadline := time.After(2 * time.Second)
	for session.Record().RawOutput != "AB" {
		select {
		case <-deadline:
			t.Fatalf("never saw partial text, have %q", session.Record().RawOutput)
		default:
		}
		event, err := stream.Recv()
		if err != nil {
			t.Fatalf("stream ended early: %v", err)
		}
		_ = event
	}

	session.Cancel()

	// The stream ends quietly: cancellation is not a failure.
	_, record, err := collect(t, stream)
	if err != nil {
		t.Fatalf("expected quiet end after cancel, got %v", err)
	}
	if record != nil {
		t.Error("cancelled session must not produce a finished record")
	}
	if got := session.Record().RawOutput; got != "AB" {
		t.Errorf("raw output = %q, want partial text %q", got, "AB")
	}
}

func TestSessionStartIsSingleUse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	session := newTestSession(server.URL)
	stream, err := session.Start(context.Background(), Request{Message: "q"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	stream.Close()

	if _, err := session.Start(context.Background(), Request{Message: "q"}); err == nil {
		t.Fatal("expected second start to fail")
	}
}

func TestSessionAttachesCredentials(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer server.Close()

	client := NewClient(server.URL, func() (string, error) { return "tok-123", nil })
	session := NewSession(client, execution.NewRecord("c", "q", 0))
	stream, err := session.Start(context.Background(), Request{Message: "q"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	collect(t, stream)
	stream.Close()

	if gotAuth != "Bearer tok-123" {
		t.Errorf("authorization = %q", gotAuth)
	}
}
