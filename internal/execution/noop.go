package execution

import "context"

// NoopStore is a no-op implementation of Store used when history is
// disabled. It silently discards all writes and returns empty results.
type NoopStore struct{}

func (s *NoopStore) Create(ctx context.Context, r *Record) error {
	if r.ID == "" {
		r.ID = NewID()
	}
	return nil
}

func (s *NoopStore) Get(ctx context.Context, id string) (*Record, error) {
	return nil, nil
}

func (s *NoopStore) UpdateOutput(ctx context.Context, r *Record) error {
	return nil
}

func (s *NoopStore) UpdateReview(ctx context.Context, r *Record) error {
	return nil
}

func (s *NoopStore) List(ctx context.Context, opts ListOptions) ([]Summary, error) {
	return nil, nil
}

func (s *NoopStore) ListByConversation(ctx context.Context, conversationID string) ([]*Record, error) {
	return nil, nil
}

func (s *NoopStore) Close() error {
	return nil
}
