package events

import (
	"errors"
	"sync"
	"testing"
)

type memoryPersister struct {
	mu     sync.Mutex
	stored []GameEvent
	err    error
}

func (p *memoryPersister) Append(e GameEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.stored = append(p.stored, e)
	return nil
}

func TestAppendFillsIdentity(t *testing.T) {
	el := NewEventLog(nil)

	e := el.Append(GameEvent{Type: EventTypeGameStarted, GameID: "g1"})
	if e.ID == "" {
		t.Errorf("Expected an event ID to be assigned")
	}
	if e.Timestamp.IsZero() {
		t.Errorf("Expected a timestamp to be assigned")
	}

	kept := el.Append(GameEvent{ID: "fixed", Type: EventTypeGamePaused, GameID: "g1"})
	if kept.ID != "fixed" {
		t.Errorf("Expected caller ID to be kept, got %s", kept.ID)
	}
	if el.Len() != 2 {
		t.Errorf("Expected 2 events, got %d", el.Len())
	}
}

func TestFilters(t *testing.T) {
	el := NewEventLog(nil)
	el.Append(GameEvent{Type: EventTypeGameStarted, GameID: "g1"})
	el.Append(GameEvent{Type: EventTypeExtinctionReached, GameID: "g1", Generation: 7})
	el.Append(GameEvent{Type: EventTypeGameStarted, GameID: "g2"})

	if got := len(el.GetByGameID("g1")); got != 2 {
		t.Errorf("Expected 2 events for g1, got %d", got)
	}
	started := el.GetByType(EventTypeGameStarted)
	if len(started) != 2 {
		t.Fatalf("Expected 2 GAME_STARTED events, got %d", len(started))
	}
	if started[1].GameID != "g2" {
		t.Errorf("Expected events in append order, got %s second", started[1].GameID)
	}
	if got := el.GetByType(EventTypeGameSaved); got != nil {
		t.Errorf("Expected no saved events, got %v", got)
	}
}

func TestSinceReturnsCopy(t *testing.T) {
	el := NewEventLog(nil)
	el.Append(GameEvent{Type: EventTypeGameStarted, GameID: "a"})
	el.Append(GameEvent{Type: EventTypeGamePaused, GameID: "a"})
	el.Append(GameEvent{Type: EventTypeGameResumed, GameID: "a"})

	tail := el.Since(1)
	if len(tail) != 2 || tail[0].Type != EventTypeGamePaused {
		t.Fatalf("Unexpected tail %v", tail)
	}
	tail[0].Type = EventTypeGameSaved
	if el.Replay()[1].Type != EventTypeGamePaused {
		t.Errorf("Mutating a returned slice changed the log")
	}
	if el.Since(3) != nil {
		t.Errorf("Expected nothing past the end of the log")
	}
}

func TestPersisterReceivesEvents(t *testing.T) {
	p := &memoryPersister{}
	el := NewEventLog(p)

	el.Append(GameEvent{Type: EventTypeGameStarted, GameID: "g"})
	el.Append(GameEvent{Type: EventTypeGameSaved, GameID: "g"})
	el.Flush()

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.stored) != 2 {
		t.Errorf("Expected 2 persisted events, got %d", len(p.stored))
	}
}

func TestPersistErrorsAreReported(t *testing.T) {
	p := &memoryPersister{err: errors.New("disk full")}
	el := NewEventLog(p)

	var mu sync.Mutex
	var failed []string
	el.OnPersistError(func(e GameEvent, err error) {
		mu.Lock()
		failed = append(failed, e.ID)
		mu.Unlock()
	})

	e := el.Append(GameEvent{Type: EventTypeGameStarted, GameID: "g"})
	el.Flush()

	mu.Lock()
	defer mu.Unlock()
	if len(failed) != 1 || failed[0] != e.ID {
		t.Errorf("Expected failure for %s, got %v", e.ID, failed)
	}
	if el.Len() != 1 {
		t.Errorf("Failed persistence must not drop the in-memory event")
	}
}
