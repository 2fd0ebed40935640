package network

import (
	"context"
	"time"

	"github.com/MRamiBalles/conway-life/internal/events"
	"github.com/MRamiBalles/conway-life/internal/infra/storage"
)

// persistTimeout bounds one event write.
const persistTimeout = 5 * time.Second

// SQLitePersisterAdapter translates domain events to storage events.
type SQLitePersisterAdapter struct {
	repo storage.EventRepository
}

// NewPersister wraps an event repository for use by an events.EventLog.
func NewPersister(repo storage.EventRepository) *SQLitePersisterAdapter {
	return &SQLitePersisterAdapter{repo: repo}
}

func (a *SQLitePersisterAdapter) Append(event events.GameEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	return a.repo.Append(ctx, ToStorageEvent(event))
}

// ToStorageEvent converts a domain event to its persisted form.
func ToStorageEvent(e events.GameEvent) storage.GameEvent {
	return storage.GameEvent{
		ID:         e.ID,
		GameID:     e.GameID,
		Timestamp:  e.Timestamp,
		EventType:  string(e.Type),
		ActorID:    e.ActorID,
		Generation: e.Generation,
		Payload:    e.Payload,
	}
}

// FromStorageEvent converts a persisted event back to a domain event.
func FromStorageEvent(e storage.GameEvent) events.GameEvent {
	return events.GameEvent{
		ID:         e.ID,
		Timestamp:  e.Timestamp,
		Type:       events.EventType(e.EventType),
		GameID:     e.GameID,
		ActorID:    e.ActorID,
		Generation: e.Generation,
		Payload:    e.Payload,
	}
}
