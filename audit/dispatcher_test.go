package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	block  chan struct{}
}

func (s *recordingSink) Emit(_ context.Context, event Event) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(Config{BufferSize: 16}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: EventLogin})
	}
	d.Close()

	if got := sink.count(); got != 10 {
		t.Fatalf("delivered = %d, want 10", got)
	}
	if d.Dropped() != 0 {
		t.Fatalf("dropped = %d, want 0", d.Dropped())
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	d := NewDispatcher(Config{BufferSize: 2, DropIfFull: true}, sink)

	// The worker is stuck on the first event; the buffer holds two more.
	// Everything past that is dropped, not blocked on.
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: EventLogin})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a full buffer")
	}

	close(sink.block)
	d.Close()
}

func TestDispatcherEmitAfterClose(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(Config{BufferSize: 4}, sink)
	d.Close()

	d.Emit(context.Background(), Event{EventType: EventLogout})
	d.Close() // second Close is a no-op

	if got := sink.count(); got != 0 {
		t.Fatalf("delivered = %d after close, want 0", got)
	}
}

func TestNilDispatcherIsSafe(t *testing.T) {
	var d *Dispatcher
	d.Emit(context.Background(), Event{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
}

func TestJSONWriterSinkEmitsOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{
		Timestamp:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		EventType:  EventLogin,
		IdentityID: "id-1",
		Success:    true,
	})
	sink.Emit(context.Background(), Event{EventType: EventLogout, Success: true})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}

	var decoded Event
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.EventType != EventLogin || decoded.IdentityID != "id-1" || !decoded.Success {
		t.Fatalf("decoded = %+v", decoded)
	}
}
