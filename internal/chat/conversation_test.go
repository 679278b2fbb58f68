package chat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestConversationSendBuildsHistory(t *testing.T) {
	var mu sync.Mutex
	var requests []streamRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req streamRequest
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &req)
		mu.Lock()
		requests = append(requests, req)
		mu.Unlock()
		io.WriteString(w, `{"type":"token","content":"answer `+strconv.Itoa(len(requests))+`"}`)
	}))
	defer server.Close()

	conv := NewConversation(NewClient(server.URL, nil))

	stream, _, err := conv.Send(context.Background(), "first question", "")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if _, record, err := collect(t, stream); err != nil || record == nil {
		t.Fatalf("first turn failed: record=%v err=%v", record, err)
	}
	stream.Close()

	stream, _, err = conv.Send(context.Background(), "second question", "extra context")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if _, record, err := collect(t, stream); err != nil || record == nil {
		t.Fatalf("second turn failed: record=%v err=%v", record, err)
	}
	stream.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(requests))
	}
	if len(requests[0].ConversationHistory) != 0 {
		t.Errorf("first request should carry no history, got %d entries", len(requests[0].ConversationHistory))
	}
	second := requests[1]
	if second.Context != "extra context" {
		t.Errorf("context = %q", second.Context)
	}
	if len(second.ConversationHistory) != 2 {
		t.Fatalf("expected user+assistant history, got %d entries", len(second.ConversationHistory))
	}
	if second.ConversationHistory[0].Role != "user" || second.ConversationHistory[0].Content != "first question" {
		t.Errorf("history[0] = %+v", second.ConversationHistory[0])
	}
	if second.ConversationHistory[1].Role != "assistant" || second.ConversationHistory[1].Content != "answer 1" {
		t.Errorf("history[1] = %+v", second.ConversationHistory[1])
	}
}

func TestConversationSendCancelsInFlightSession(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req streamRequest
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &req)
		if req.Message == "slow" {
			flusher := w.(http.Flusher)
			io.WriteString(w, `{"type":"token","content":"partial"}`)
			flusher.Flush()
			<-release
			return
		}
		io.WriteString(w, `{"type":"token","content":"fast answer"}`)
	}))
	defer server.Close()
	defer once.Do(func() { close(release) })

	conv := NewConversation(NewClient(server.URL, nil))

	slowStream, slowSession, err := conv.Send(context.Background(), "slow", "")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	// Wait for the slow session's partial text to land.
	deadline := time.After(2 * time.Second)
	for slowSession.Record().RawOutput != "partial" {
		select {
		case <-deadline:
			t.Fatal("slow session never produced partial text")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// Regenerating must cancel the in-flight session before the new
	// request goes out.
	fastStream, _, err := conv.Send(context.Background(), "regenerate", "")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if !slowSession.Cancelled() {
		t.Error("expected in-flight session to be cancelled by new send")
	}

	_, record, err := collect(t, fastStream)
	if err != nil || record == nil {
		t.Fatalf("new session failed: record=%v err=%v", record, err)
	}
	if record.RawOutput != "fast answer" {
		t.Errorf("raw output = %q", record.RawOutput)
	}
	fastStream.Close()

	// The cancelled session keeps its partial text.
	if _, _, err := collect(t, slowStream); err != nil {
		t.Fatalf("cancelled stream should end quietly, got %v", err)
	}
	slowStream.Close()
	if got := slowSession.Record().RawOutput; got != "partial" {
		t.Errorf("cancelled session raw output = %q, want %q", got, "partial")
	}

	once.Do(func() { close(release) })
}

func TestConversationByID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(executionIDHeader, "exec-1")
		io.WriteString(w, "answer")
	}))
	defer server.Close()

	conv := NewConversation(NewClient(server.URL, nil))
	stream, session, err := conv.Send(context.Background(), "q", "")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	collect(t, stream)
	stream.Close()

	id := session.Record().ID
	if got := conv.ByID(id); got != session.Record() {
		t.Error("ByID should return the same record instance")
	}
	if got := conv.ByID("missing"); got != nil {
		t.Errorf("ByID(missing) = %v, want nil", got)
	}
}
