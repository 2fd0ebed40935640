// Package events provides the append-only log of game lifecycle events.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MRamiBalles/conway-life/internal/platform/metrics"
)

// EventType defines the category of a game event.
type EventType string

const (
	EventTypeGameStarted       EventType = "GAME_STARTED"
	EventTypeGameRestarted     EventType = "GAME_RESTARTED"
	EventTypeGamePaused        EventType = "GAME_PAUSED"
	EventTypeGameResumed       EventType = "GAME_RESUMED"
	EventTypeGameSaved         EventType = "GAME_SAVED"
	EventTypeGameLoaded        EventType = "GAME_LOADED"
	EventTypeExtinctionReached EventType = "EXTINCTION_REACHED"
	EventTypeSettingCorrected  EventType = "SETTING_CORRECTED"
)

// GameEvent represents an immutable record of something that happened to a game.
type GameEvent struct {
	ID         string                 `json:"id"`
	Timestamp  time.Time              `json:"timestamp"`
	Type       EventType              `json:"type"`
	GameID     string                 `json:"game_id"`
	ActorID    string                 `json:"actor_id"` // Who triggered it: a client id or SYSTEM
	Generation int                    `json:"generation"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event GameEvent) error
}

// ErrorHandler is told about events the persister failed to store.
type ErrorHandler func(event GameEvent, err error)

// EventLog is the in-memory append-only log of game events, written through
// to an optional persister.
type EventLog struct {
	mu        sync.RWMutex
	events    []GameEvent
	persister EventPersister
	onError   ErrorHandler
	pending   sync.WaitGroup
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(persister EventPersister) *EventLog {
	return &EventLog{
		events:    make([]GameEvent, 0),
		persister: persister,
	}
}

// OnPersistError registers a callback for failed writes.
func (el *EventLog) OnPersistError(h ErrorHandler) {
	el.mu.Lock()
	el.onError = h
	el.mu.Unlock()
}

// Append adds a new event to the log and returns it with its ID and
// timestamp filled in. Events are immutable once appended.
func (el *EventLog) Append(event GameEvent) GameEvent {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	el.mu.Lock()
	el.events = append(el.events, event)
	persister, onError := el.persister, el.onError
	el.mu.Unlock()

	if persister != nil {
		// Write through asynchronously so callers holding locks never wait on disk.
		el.pending.Add(1)
		go func(e GameEvent) {
			defer el.pending.Done()
			start := time.Now()
			err := persister.Append(e)
			metrics.Get().RecordEventWrite(time.Since(start), err)
			if err != nil && onError != nil {
				onError(e, err)
			}
		}(event)
	}
	return event
}

// Flush blocks until every write started by Append has finished.
func (el *EventLog) Flush() {
	el.pending.Wait()
}

// GetByGameID returns all events of a specific game.
func (el *EventLog) GetByGameID(gameID string) []GameEvent {
	return el.filter(func(e GameEvent) bool { return e.GameID == gameID })
}

// GetByType returns all events of a specific type.
func (el *EventLog) GetByType(t EventType) []GameEvent {
	return el.filter(func(e GameEvent) bool { return e.Type == t })
}

func (el *EventLog) filter(keep func(GameEvent) bool) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if keep(e) {
			result = append(result, e)
		}
	}
	return result
}

// Replay returns a copy of the full history of events.
func (el *EventLog) Replay() []GameEvent {
	return el.Since(0)
}

// Since returns a copy of the events appended after the first n.
func (el *EventLog) Since(n int) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	if n >= len(el.events) {
		return nil
	}
	if n < 0 {
		n = 0
	}
	out := make([]GameEvent, len(el.events)-n)
	copy(out, el.events[n:])
	return out
}

// Len returns the number of events in the log.
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return len(el.events)
}
