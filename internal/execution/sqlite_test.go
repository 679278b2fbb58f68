package execution

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	store, err := NewSQLiteStore(DefaultConfig())
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := NewRecord("conv-1", "what is 2+2", 0)
	rec.RawOutput = "4"
	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("failed to create execution: %v", err)
	}

	loaded, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("failed to load execution: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected execution to exist")
	}
	if loaded.Prompt != "what is 2+2" {
		t.Errorf("prompt = %q", loaded.Prompt)
	}
	if loaded.RawOutput != "4" {
		t.Errorf("raw_output = %q", loaded.RawOutput)
	}
	if loaded.ReviewStatus != ReviewNone {
		t.Errorf("review_status = %q, want none", loaded.ReviewStatus)
	}
}

func TestSQLiteStoreGetMissing(t *testing.T) {
	store := newTestStore(t)

	loaded, err := store.Get(context.Background(), "no-such-id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded != nil {
		t.Fatal("expected nil for missing execution")
	}
}

func TestSQLiteStoreUpdateReview(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := NewRecord("conv-1", "check this", 0)
	rec.RawOutput = "answer"
	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("failed to create execution: %v", err)
	}

	rec.AdvanceReview(ReviewPending)
	rec.ReviewNote = "please verify"
	rec.Priority = PriorityHigh
	rec.ReviewRequestedAt = time.Now()
	if err := store.UpdateReview(ctx, rec); err != nil {
		t.Fatalf("failed to update review: %v", err)
	}

	rec.AdvanceReview(ReviewCompleted)
	rec.RefinedOutput = "answer, verified"
	rec.ReviewResponseNote = "looks right"
	rec.ReviewedAt = time.Now()
	if err := store.UpdateReview(ctx, rec); err != nil {
		t.Fatalf("failed to update review: %v", err)
	}

	loaded, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("failed to load execution: %v", err)
	}
	if loaded.ReviewStatus != ReviewCompleted {
		t.Errorf("review_status = %q, want completed", loaded.ReviewStatus)
	}
	if loaded.RefinedOutput != "answer, verified" {
		t.Errorf("refined_output = %q", loaded.RefinedOutput)
	}
	if loaded.ReviewResponseNote != "looks right" {
		t.Errorf("review_response_note = %q", loaded.ReviewResponseNote)
	}
	if loaded.Priority != PriorityHigh {
		t.Errorf("priority = %q", loaded.Priority)
	}
	if loaded.ReviewRequestedAt.IsZero() || loaded.ReviewedAt.IsZero() {
		t.Error("expected review timestamps to be set")
	}
}

func TestSQLiteStoreListByConversation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec := NewRecord("conv-a", "turn", i)
		if err := store.Create(ctx, rec); err != nil {
			t.Fatalf("failed to create execution: %v", err)
		}
	}
	other := NewRecord("conv-b", "other", 0)
	if err := store.Create(ctx, other); err != nil {
		t.Fatalf("failed to create execution: %v", err)
	}

	records, err := store.ListByConversation(ctx, "conv-a")
	if err != nil {
		t.Fatalf("failed to list conversation: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 executions, got %d", len(records))
	}
	for i, rec := range records {
		if rec.Sequence != i {
			t.Errorf("record %d has sequence %d", i, rec.Sequence)
		}
	}
}

func TestSQLiteStoreListFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pending := NewRecord("conv-a", "pending one", 0)
	pending.AdvanceReview(ReviewPending)
	if err := store.Create(ctx, pending); err != nil {
		t.Fatalf("failed to create execution: %v", err)
	}
	plain := NewRecord("conv-a", "plain one", 1)
	if err := store.Create(ctx, plain); err != nil {
		t.Fatalf("failed to create execution: %v", err)
	}

	summaries, err := store.List(ctx, ListOptions{ReviewStatus: ReviewPending})
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 pending execution, got %d", len(summaries))
	}
	if summaries[0].ID != pending.ID {
		t.Errorf("wrong execution listed: %s", summaries[0].ID)
	}
}
