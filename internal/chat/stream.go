package chat

import (
	"context"
	"io"

	"github.com/agenthubhq/agenthub-cli/internal/execution"
)

// EventType describes streaming events.
type EventType string

const (
	// EventText carries the full reconstruction of the answer so far; each
	// event replaces the previous text rather than extending it.
	EventText EventType = "text"
	// EventDone carries the finished execution record.
	EventDone EventType = "done"
)

// Event represents a streamed output update.
type Event struct {
	Type   EventType
	Text   string
	Record *execution.Record
}

// Stream yields events until io.EOF. A non-EOF error from Recv is the
// stream's failure; cancelled streams end with plain EOF.
type Stream interface {
	Recv() (Event, error)
	Close() error
}

// eventStream adapts a producer function to the Stream interface. The
// producer runs in its own goroutine; its return error is surfaced by Recv
// once the event channel drains.
type eventStream struct {
	events chan Event
	cancel context.CancelFunc
	err    error
}

func newEventStream(ctx context.Context, run func(ctx context.Context, events chan<- Event) error) *eventStream {
	ctx, cancel := context.WithCancel(ctx)
	s := &eventStream{
		events: make(chan Event, 16),
		cancel: cancel,
	}
	go func() {
		defer close(s.events)
		s.err = run(ctx, s.events)
	}()
	return s
}

func (s *eventStream) Recv() (Event, error) {
	event, ok := <-s.events
	if !ok {
		if s.err != nil {
			return Event{}, s.err
		}
		return Event{}, io.EOF
	}
	return event, nil
}

func (s *eventStream) Close() error {
	s.cancel()
	// Drain so the producer can finish and release the response body.
	for range s.events {
	}
	return nil
}
