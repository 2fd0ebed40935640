package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// SQLiteEventRepository implements EventRepository for SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

func (r *SQLiteEventRepository) Append(ctx context.Context, event GameEvent) error {
	payloadBytes, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO events (id, game_id, timestamp, event_type, actor_id, generation, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		event.ID, event.GameID, event.Timestamp, event.EventType, event.ActorID,
		event.Generation, string(payloadBytes),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *SQLiteEventRepository) getMany(ctx context.Context, query string, args ...interface{}) ([]GameEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []GameEvent
	for rows.Next() {
		var e GameEvent
		var payloadStr string
		err := rows.Scan(
			&e.ID, &e.GameID, &e.Timestamp, &e.EventType, &e.ActorID,
			&e.Generation, &payloadStr,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payloadStr), &e.Payload); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *SQLiteEventRepository) GetByGameID(ctx context.Context, gameID string) ([]GameEvent, error) {
	query := `SELECT id, game_id, timestamp, event_type, actor_id, generation, payload FROM events WHERE game_id = ? ORDER BY timestamp ASC, rowid ASC`
	return r.getMany(ctx, query, gameID)
}

func (r *SQLiteEventRepository) GetByEventType(ctx context.Context, gameID string, eventType string) ([]GameEvent, error) {
	query := `SELECT id, game_id, timestamp, event_type, actor_id, generation, payload FROM events WHERE (? = '' OR game_id = ?) AND event_type = ? ORDER BY timestamp ASC, rowid ASC`
	return r.getMany(ctx, query, gameID, gameID, eventType)
}

// ---------------------------------------------------------
// SQLiteSaveRepository
// ---------------------------------------------------------

type SQLiteSaveRepository struct {
	db *sql.DB
}

func NewSQLiteSaveRepository(db *sql.DB) *SQLiteSaveRepository {
	return &SQLiteSaveRepository{db: db}
}

func (r *SQLiteSaveRepository) Save(ctx context.Context, save SavedGame) error {
	query := `
		INSERT INTO saved_games (id, game_id, cols, rows, seed, generation, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		save.ID, save.GameID, save.Cols, save.Rows, save.Seed, save.Generation, save.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save game %s: %w", save.ID, err)
	}
	return nil
}

func (r *SQLiteSaveRepository) Get(ctx context.Context, id string) (*SavedGame, error) {
	query := `SELECT id, game_id, cols, rows, seed, generation, created_at FROM saved_games WHERE id = ?`
	var s SavedGame
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.GameID, &s.Cols, &s.Rows, &s.Seed, &s.Generation, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("saved game %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &s, nil
}

func (r *SQLiteSaveRepository) List(ctx context.Context, limit int) ([]SavedGame, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, game_id, cols, rows, seed, generation, created_at FROM saved_games ORDER BY created_at DESC, rowid DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var saves []SavedGame
	for rows.Next() {
		var s SavedGame
		if err := rows.Scan(&s.ID, &s.GameID, &s.Cols, &s.Rows, &s.Seed, &s.Generation, &s.CreatedAt); err != nil {
			return nil, err
		}
		saves = append(saves, s)
	}
	return saves, rows.Err()
}
