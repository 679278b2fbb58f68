package execution

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Schema for the executions database.
const schema = `
CREATE TABLE IF NOT EXISTS executions (
    id TEXT PRIMARY KEY,
    conversation_id TEXT,
    sequence INTEGER NOT NULL DEFAULT 0,
    prompt TEXT NOT NULL,
    raw_output TEXT NOT NULL DEFAULT '',
    refined_output TEXT,
    review_status TEXT NOT NULL DEFAULT 'none',
    review_note TEXT,
    review_response_note TEXT,
    priority TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    completed_at TIMESTAMP,
    review_requested_at TIMESTAMP,
    reviewed_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_executions_conversation ON executions(conversation_id, sequence);
CREATE INDEX IF NOT EXISTS idx_executions_created_at ON executions(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_executions_review_status ON executions(review_status);
`

// NewSQLiteStore creates a new SQLite-based execution store.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	dbPath, err := GetDBPath()
	if err != nil {
		return nil, fmt.Errorf("get db path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	store := &SQLiteStore{db: db, cfg: cfg}

	if err := store.cleanup(); err != nil {
		// History trimming is best-effort
		fmt.Fprintf(os.Stderr, "warning: execution cleanup failed: %v\n", err)
	}

	return store, nil
}

// Create inserts a new execution record.
func (s *SQLiteStore) Create(ctx context.Context, r *Record) error {
	if r.ID == "" {
		r.ID = NewID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.ReviewStatus == "" {
		r.ReviewStatus = ReviewNone
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO executions (id, conversation_id, sequence, prompt, raw_output, refined_output,
		                        review_status, review_note, review_response_note, priority,
		                        created_at, completed_at, review_requested_at, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, nullString(r.ConversationID), r.Sequence, r.Prompt, r.RawOutput,
		nullString(r.RefinedOutput), string(r.ReviewStatus), nullString(r.ReviewNote),
		nullString(r.ReviewResponseNote), nullString(string(r.Priority)),
		r.CreatedAt, nullTime(r.CompletedAt), nullTime(r.ReviewRequestedAt), nullTime(r.ReviewedAt))
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// Get retrieves an execution by ID. Returns nil if not found.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, sequence, prompt, raw_output, refined_output,
		       review_status, review_note, review_response_note, priority,
		       created_at, completed_at, review_requested_at, reviewed_at
		FROM executions WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan execution: %w", err)
	}
	return rec, nil
}

// UpdateOutput freezes the final decoded answer for a completed stream.
func (s *SQLiteStore) UpdateOutput(ctx context.Context, r *Record) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE executions SET raw_output = ?, completed_at = ? WHERE id = ?`,
		r.RawOutput, nullTime(r.CompletedAt), r.ID)
	if err != nil {
		return fmt.Errorf("update execution output: %w", err)
	}
	return nil
}

// UpdateReview persists the review fields after a workflow transition.
func (s *SQLiteStore) UpdateReview(ctx context.Context, r *Record) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE executions
		SET review_status = ?, refined_output = ?, review_note = ?, review_response_note = ?,
		    priority = ?, review_requested_at = ?, reviewed_at = ?
		WHERE id = ?`,
		string(r.ReviewStatus), nullString(r.RefinedOutput), nullString(r.ReviewNote),
		nullString(r.ReviewResponseNote), nullString(string(r.Priority)),
		nullTime(r.ReviewRequestedAt), nullTime(r.ReviewedAt), r.ID)
	if err != nil {
		return fmt.Errorf("update execution review: %w", err)
	}
	return nil
}

// List returns execution summaries, newest first.
func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]Summary, error) {
	query := `
		SELECT id, conversation_id, prompt, review_status, priority, created_at
		FROM executions`

	var conds []string
	var args []any
	if opts.ConversationID != "" {
		conds = append(conds, "conversation_id = ?")
		args = append(args, opts.ConversationID)
	}
	if opts.ReviewStatus != "" {
		conds = append(conds, "review_status = ?")
		args = append(args, string(opts.ReviewStatus))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var sum Summary
		var conversationID, priority sql.NullString
		if err := rows.Scan(&sum.ID, &conversationID, &sum.Prompt, &sum.ReviewStatus, &priority, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan execution summary: %w", err)
		}
		sum.ConversationID = conversationID.String
		sum.Priority = Priority(priority.String)
		sum.Prompt = TruncatePrompt(sum.Prompt)
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// ListByConversation returns a conversation's executions in turn order.
func (s *SQLiteStore) ListByConversation(ctx context.Context, conversationID string) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, sequence, prompt, raw_output, refined_output,
		       review_status, review_note, review_response_note, priority,
		       created_at, completed_at, review_requested_at, reviewed_at
		FROM executions WHERE conversation_id = ?
		ORDER BY sequence ASC, created_at ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list conversation executions: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// cleanup trims history beyond the configured maximum count.
func (s *SQLiteStore) cleanup() error {
	if s.cfg.MaxCount <= 0 {
		return nil
	}
	_, err := s.db.Exec(`
		DELETE FROM executions WHERE id NOT IN (
			SELECT id FROM executions ORDER BY created_at DESC LIMIT ?
		)`, s.cfg.MaxCount)
	return err
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var rec Record
	var conversationID, refined, note, responseNote, priority sql.NullString
	var completedAt, requestedAt, reviewedAt sql.NullTime
	err := row.Scan(&rec.ID, &conversationID, &rec.Sequence, &rec.Prompt, &rec.RawOutput,
		&refined, &rec.ReviewStatus, &note, &responseNote, &priority,
		&rec.CreatedAt, &completedAt, &requestedAt, &reviewedAt)
	if err != nil {
		return nil, err
	}
	rec.ConversationID = conversationID.String
	rec.RefinedOutput = refined.String
	rec.ReviewNote = note.String
	rec.ReviewResponseNote = responseNote.String
	rec.Priority = Priority(priority.String)
	rec.CompletedAt = completedAt.Time
	rec.ReviewRequestedAt = requestedAt.Time
	rec.ReviewedAt = reviewedAt.Time
	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
