package review

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agenthubhq/agenthub-cli/internal/credentials"
	"github.com/agenthubhq/agenthub-cli/internal/execution"
)

const (
	reviewsPath    = "/api/v1/reviews"
	executionsPath = "/api/v1/executions/"
)

// reviewHTTPTimeout bounds the short request/poll calls; reviews never
// stream.
const reviewHTTPTimeout = 30 * time.Second

// Backend is the review-facing slice of the marketplace API. It exists so
// the workflow can be tested against a fake.
type Backend interface {
	RequestReview(ctx context.Context, executionID, note string, priority execution.Priority) error
	FetchExecution(ctx context.Context, executionID string) (*execution.ReviewUpdate, error)
}

// Client implements Backend against the real backend.
type Client struct {
	baseURL string
	http    *http.Client
	creds   credentials.Resolver
}

// NewClient creates a review client.
func NewClient(baseURL string, creds credentials.Resolver) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: reviewHTTPTimeout},
		creds:   creds,
	}
}

// SetHTTPClient overrides the HTTP client, mainly for tests.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.http = client
}

// reviewRequest is the wire form of the request-review payload.
type reviewRequest struct {
	ExecutionID string `json:"executionId"`
	Note        string `json:"note"`
	Priority    string `json:"priority,omitempty"`
}

// RequestReview submits a review request. Backend validation failures
// (empty note, ineligible execution) come back as *RequestError carrying
// the backend's message.
func (c *Client) RequestReview(ctx context.Context, executionID, note string, priority execution.Priority) error {
	body, err := json.Marshal(reviewRequest{
		ExecutionID: executionID,
		Note:        note,
		Priority:    string(priority),
	})
	if err != nil {
		return fmt.Errorf("marshal review request: %w", err)
	}

	resp, err := c.do(ctx, "POST", c.baseURL+reviewsPath, body)
	if err != nil {
		return fmt.Errorf("review request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return &RequestError{Message: messageFromBody(respBody, resp.StatusCode)}
	}
	return fmt.Errorf("review request failed (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
}

// FetchExecution polls the execution's current review state by id.
func (c *Client) FetchExecution(ctx context.Context, executionID string) (*execution.ReviewUpdate, error) {
	resp, err := c.do(ctx, "GET", c.baseURL+executionsPath+executionID, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch execution failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read execution response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch execution failed (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var update execution.ReviewUpdate
	if err := json.Unmarshal(respBody, &update); err != nil {
		return nil, fmt.Errorf("parse execution response: %w", err)
	}
	return &update, nil
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.creds != nil {
		if token, err := c.creds(); err == nil && token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return c.http.Do(req)
}

// messageFromBody extracts a human-readable message from an error payload.
func messageFromBody(body []byte, status int) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return fmt.Sprintf("review request rejected (status %d)", status)
}
