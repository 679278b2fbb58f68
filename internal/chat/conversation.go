package chat

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/agenthubhq/agenthub-cli/internal/execution"
)

// Conversation is one chat thread: an ordered list of execution records and
// at most one in-flight session. Starting a new message cancels whatever
// session is still settling, so two sessions can never race to mutate the
// same thread.
type Conversation struct {
	id string

	client *Client

	mu      sync.Mutex
	records []*execution.Record
	active  *Session
}

// NewConversation starts an empty conversation with a client-assigned id.
func NewConversation(client *Client) *Conversation {
	return &Conversation{
		id:     uuid.NewString(),
		client: client,
	}
}

// ResumeConversation rebuilds a conversation from persisted records, in
// turn order.
func ResumeConversation(client *Client, id string, records []*execution.Record) *Conversation {
	return &Conversation{
		id:      id,
		client:  client,
		records: records,
	}
}

// ID returns the conversation id.
func (c *Conversation) ID() string {
	return c.id
}

// Send cancels any in-flight session, then starts a new one for message.
// The cancel happens before the new request is issued, so the old session
// can never overwrite state the new one owns.
func (c *Conversation) Send(ctx context.Context, message, contextStr string) (Stream, *Session, error) {
	c.mu.Lock()
	if c.active != nil {
		c.active.Cancel()
	}
	history := c.historyLocked()
	record := execution.NewRecord(c.id, message, len(c.records))
	c.records = append(c.records, record)
	session := NewSession(c.client, record)
	c.active = session
	c.mu.Unlock()

	c.client.logger.LogRequest(message, contextStr, len(history))

	stream, err := session.Start(ctx, Request{
		Message: message,
		Context: contextStr,
		History: history,
	})
	if err != nil {
		return nil, nil, err
	}
	return stream, session, nil
}

// Cancel aborts the in-flight session, if any.
func (c *Conversation) Cancel() {
	c.mu.Lock()
	active := c.active
	c.mu.Unlock()
	if active != nil {
		active.Cancel()
	}
}

// ByID locates a record by execution id. Reviews are always attributed by
// id, never to the most recent turn.
func (c *Conversation) ByID(id string) *execution.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, record := range c.records {
		if record.ID == id {
			return record
		}
	}
	return nil
}

// Records returns the conversation's records in turn order.
func (c *Conversation) Records() []*execution.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*execution.Record, len(c.records))
	copy(out, c.records)
	return out
}

// historyLocked builds the conversationHistory payload from completed
// turns. Caller holds c.mu.
func (c *Conversation) historyLocked() []HistoryEntry {
	var history []HistoryEntry
	for _, record := range c.records {
		if record.RawOutput == "" {
			continue
		}
		history = append(history,
			HistoryEntry{Role: "user", Content: record.Prompt},
			HistoryEntry{Role: "assistant", Content: record.RawOutput},
		)
	}
	return history
}
