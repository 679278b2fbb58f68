package review

import (
	"sync"

	"github.com/agenthubhq/agenthub-cli/internal/execution"
)

// RecordSet is a Locator over an explicit set of records, used by one-shot
// callers that load records from the store rather than holding a live
// conversation.
type RecordSet struct {
	mu      sync.Mutex
	records map[string]*execution.Record
}

// NewRecordSet creates a RecordSet holding the given records.
func NewRecordSet(records ...*execution.Record) *RecordSet {
	s := &RecordSet{records: make(map[string]*execution.Record)}
	for _, record := range records {
		s.Add(record)
	}
	return s
}

// Add registers a record. Later additions with the same id replace
// earlier ones.
func (s *RecordSet) Add(record *execution.Record) {
	if record == nil {
		return
	}
	s.mu.Lock()
	s.records[record.ID] = record
	s.mu.Unlock()
}

// ByID returns the record with the given id, or nil.
func (s *RecordSet) ByID(id string) *execution.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[id]
}
