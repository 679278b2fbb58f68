package execution

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agenthubhq/agenthub-cli/internal/decode"
)

// ReviewStatus represents where an execution sits in the expert review
// lifecycle.
type ReviewStatus string

const (
	ReviewNone       ReviewStatus = "none"        // No review requested
	ReviewPending    ReviewStatus = "pending"     // Request submitted, reviewer not yet engaged
	ReviewInProgress ReviewStatus = "in_progress" // Reviewer opened the execution
	ReviewCompleted  ReviewStatus = "completed"   // Reviewer responded (terminal)
	ReviewRejected   ReviewStatus = "rejected"    // Reviewer declined or timed out (terminal, re-requestable)
	ReviewUnknown    ReviewStatus = "unknown"     // Polling gave up; actual state unconfirmed
)

// Priority is the urgency attached to a review request.
type Priority string

const (
	PriorityStandard Priority = "standard"
	PriorityHigh     Priority = "high"
)

// reviewTransitions is the forward-only transition graph. A status never
// regresses; a fresh execution always starts over at ReviewNone.
var reviewTransitions = map[ReviewStatus][]ReviewStatus{
	ReviewNone:       {ReviewPending},
	ReviewPending:    {ReviewInProgress, ReviewCompleted, ReviewRejected, ReviewUnknown},
	ReviewInProgress: {ReviewCompleted, ReviewRejected, ReviewUnknown},
	ReviewRejected:   {ReviewPending},
	ReviewUnknown:    {ReviewInProgress, ReviewCompleted, ReviewRejected},
}

// CanAdvance reports whether moving to next is a legal forward transition.
// Staying in the same state is not an advance; callers treat repeated
// terminal observations as no-ops.
func (s ReviewStatus) CanAdvance(next ReviewStatus) bool {
	for _, allowed := range reviewTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further review transitions are expected.
func (s ReviewStatus) Terminal() bool {
	return s == ReviewCompleted || s == ReviewRejected
}

// Record is one agent run: the user's prompt, the decoded answer, and any
// review state layered on top. RawOutput is frozen once the stream
// completes; review content is only ever merged at render time, never
// written back into RawOutput.
type Record struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversation_id,omitempty"`
	Sequence       int          `json:"sequence"`
	Prompt         string       `json:"prompt"`
	RawOutput      string       `json:"raw_output"`
	RefinedOutput  string       `json:"refined_output,omitempty"`
	ReviewStatus   ReviewStatus `json:"review_status"`

	// ReviewNote is the note the user submitted with the request;
	// ReviewResponseNote is what the reviewer wrote back.
	ReviewNote         string   `json:"review_note,omitempty"`
	ReviewResponseNote string   `json:"review_response_note,omitempty"`
	Priority           Priority `json:"priority,omitempty"`

	CreatedAt         time.Time `json:"created_at"`
	CompletedAt       time.Time `json:"completed_at,omitempty"`
	ReviewRequestedAt time.Time `json:"review_requested_at,omitempty"`
	ReviewedAt        time.Time `json:"reviewed_at,omitempty"`
}

// NewRecord creates a fresh record for an outbound message. Every new
// execution starts unreviewed regardless of what happened to earlier turns
// in the conversation.
func NewRecord(conversationID, prompt string, sequence int) *Record {
	return &Record{
		ID:             NewID(),
		ConversationID: conversationID,
		Sequence:       sequence,
		Prompt:         prompt,
		ReviewStatus:   ReviewNone,
		CreatedAt:      time.Now(),
	}
}

// AdvanceReview moves the review status forward if the transition is legal.
// Returns false (leaving the record untouched) for regressions and for
// same-state repeats, which makes terminal observations idempotent.
func (r *Record) AdvanceReview(next ReviewStatus) bool {
	if !r.ReviewStatus.CanAdvance(next) {
		return false
	}
	r.ReviewStatus = next
	return true
}

// reviewBlockHeader delimits the expert review section in rendered output.
const reviewBlockHeader = "--- Expert Review ---"

// RenderedText returns the text to display for this record. For completed
// reviews the reviewer's note and refined output are appended in a
// delimited block; the derivation is pure, so rendering twice never doubles
// the block. Refined output goes through the stream decoder since refine
// tooling has been seen returning raw token streams.
func (r *Record) RenderedText() string {
	if r.ReviewStatus != ReviewCompleted {
		return r.RawOutput
	}
	var b strings.Builder
	b.WriteString(r.RawOutput)
	b.WriteString("\n\n")
	b.WriteString(reviewBlockHeader)
	b.WriteString("\n")
	if r.ReviewResponseNote != "" {
		b.WriteString(r.ReviewResponseNote)
		b.WriteString("\n")
	}
	if r.RefinedOutput != "" {
		b.WriteString(decode.Decode(r.RefinedOutput))
		b.WriteString("\n")
	}
	return b.String()
}

// ReviewUpdate is the wire shape returned by the backend's execution
// status endpoint, polled by id during an in-flight review.
type ReviewUpdate struct {
	ReviewStatus       ReviewStatus `json:"review_status"`
	RefinedOutput      string       `json:"refined_outputs"`
	ReviewResponseNote string       `json:"review_response_note"`
}

// Summary is a lightweight view of an execution for listing.
type Summary struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversation_id,omitempty"`
	Prompt         string       `json:"prompt"`
	ReviewStatus   ReviewStatus `json:"review_status"`
	Priority       Priority     `json:"priority,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// NewID returns a new opaque id for client-created entities. Backend-owned
// execution ids replace it once the server assigns one.
func NewID() string {
	return uuid.NewString()
}

// TruncatePrompt returns the first line of a prompt, capped for listings.
func TruncatePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if idx := strings.Index(prompt, "\n"); idx != -1 {
		prompt = prompt[:idx]
	}
	if len(prompt) > 100 {
		prompt = prompt[:97] + "..."
	}
	return prompt
}
