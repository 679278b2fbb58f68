// Package chat owns the streaming exchange with the marketplace backend:
// one Session per outbound message, one Conversation serializing sessions
// per chat thread.
package chat

import (
	"net/http"
	"strings"
	"time"

	"github.com/agenthubhq/agenthub-cli/internal/credentials"
	"github.com/agenthubhq/agenthub-cli/internal/debuglog"
)

// httpClientTimeout is the default timeout for HTTP requests. Streams are
// long-lived, so this bounds a whole exchange rather than a single read.
const httpClientTimeout = 10 * time.Minute

// defaultHTTPClient is a shared HTTP client with reasonable timeouts
var defaultHTTPClient = &http.Client{
	Timeout: httpClientTimeout,
}

// Client issues streaming chat requests against the marketplace backend.
type Client struct {
	baseURL string
	http    *http.Client
	creds   credentials.Resolver
	logger  *debuglog.Logger
}

// NewClient creates a chat client. The credential resolver is consulted
// once per request; a failing resolver sends the request unauthenticated.
func NewClient(baseURL string, creds credentials.Resolver) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")
	return &Client{
		baseURL: baseURL,
		http:    defaultHTTPClient,
		creds:   creds,
	}
}

// SetLogger attaches a debug logger for chunk-level capture.
func (c *Client) SetLogger(logger *debuglog.Logger) {
	c.logger = logger
}

// SetHTTPClient overrides the HTTP client, mainly for tests.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.http = client
}

// authorize attaches the bearer token when one is available.
func (c *Client) authorize(req *http.Request) {
	if c.creds == nil {
		return
	}
	token, err := c.creds()
	if err != nil || token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
}
