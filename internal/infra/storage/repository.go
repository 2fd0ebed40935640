// Package storage provides the persistence layer for the game server.
// This package implements the repository pattern to keep the domain pure.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrDimensionMismatch is returned when a stored seed does not match its
	// recorded cols and rows.
	ErrDimensionMismatch = errors.New("storage: seed dimensions do not match")
)

// SavedGame is a persisted game seed.
type SavedGame struct {
	ID         string    `json:"id" db:"id"`
	GameID     string    `json:"game_id" db:"game_id"`
	Cols       int       `json:"cols" db:"cols"`
	Rows       int       `json:"rows" db:"rows"`
	Seed       string    `json:"seed" db:"seed"` // population text: '#' alive, '.' dead
	Generation int       `json:"generation" db:"generation"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// SaveRepository defines the interface for saved game persistence.
type SaveRepository interface {
	// Save stores a new saved game.
	Save(ctx context.Context, save SavedGame) error

	// Get retrieves a saved game by ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*SavedGame, error)

	// List returns the most recent saves, newest first.
	List(ctx context.Context, limit int) ([]SavedGame, error)
}

// GameEvent mirrors the domain event structure for persistence.
// The domain package should NOT import this; use interfaces instead.
type GameEvent struct {
	ID         string                 `json:"id" db:"id"`
	GameID     string                 `json:"game_id" db:"game_id"`
	Timestamp  time.Time              `json:"timestamp" db:"timestamp"`
	EventType  string                 `json:"event_type" db:"event_type"`
	ActorID    string                 `json:"actor_id" db:"actor_id"`
	Generation int                    `json:"generation" db:"generation"`
	Payload    map[string]interface{} `json:"payload" db:"payload"`
}

// EventRepository defines the interface for event persistence.
type EventRepository interface {
	// Append adds a new event to the immutable ledger.
	Append(ctx context.Context, event GameEvent) error

	// GetByGameID retrieves all events for a specific game (for replay).
	GetByGameID(ctx context.Context, gameID string) ([]GameEvent, error)

	// GetByEventType retrieves all events of a specific type. An empty
	// gameID matches every game.
	GetByEventType(ctx context.Context, gameID string, eventType string) ([]GameEvent, error)
}
