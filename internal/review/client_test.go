package review

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agenthubhq/agenthub-cli/internal/credentials"
	"github.com/agenthubhq/agenthub-cli/internal/execution"
)

func TestClientRequestReview(t *testing.T) {
	var got reviewRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/api/v1/reviews" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient(server.URL, credentials.Static("tok-1"))
	err := client.RequestReview(context.Background(), "exec-1", "check math", execution.PriorityHigh)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if got.ExecutionID != "exec-1" || got.Note != "check math" || got.Priority != "high" {
		t.Errorf("unexpected payload: %+v", got)
	}
	if auth != "Bearer tok-1" {
		t.Errorf("authorization = %q", auth)
	}
}

func TestClientRequestReviewValidationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error": "note must not be empty"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	err := client.RequestReview(context.Background(), "exec-1", "", "")
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if reqErr.Message != "note must not be empty" {
		t.Errorf("message = %q", reqErr.Message)
	}
}

func TestClientRequestReviewServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	err := client.RequestReview(context.Background(), "exec-1", "note", "")
	if err == nil {
		t.Fatal("expected error")
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		t.Error("server errors must not look like validation rejections")
	}
}

func TestClientFetchExecution(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/executions/exec-9" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"review_status":        "completed",
			"refined_outputs":      "ABC, verified",
			"review_response_note": "looks right",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	update, err := client.FetchExecution(context.Background(), "exec-9")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if update.ReviewStatus != execution.ReviewCompleted {
		t.Errorf("status = %q", update.ReviewStatus)
	}
	if update.RefinedOutput != "ABC, verified" {
		t.Errorf("refined = %q", update.RefinedOutput)
	}
	if update.ReviewResponseNote != "looks right" {
		t.Errorf("note = %q", update.ReviewResponseNote)
	}
}
