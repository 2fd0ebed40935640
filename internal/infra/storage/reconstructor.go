package storage

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/MRamiBalles/conway-life/internal/domain/population"
)

// Reconstructor rebuilds game state from persisted records:
// seeds from saved games, and a readable history from the event log.
type Reconstructor struct {
	saveRepo  SaveRepository
	eventRepo EventRepository
}

// NewReconstructor creates a new state reconstructor. Either repository may
// be nil when the caller only needs the other half.
func NewReconstructor(saveRepo SaveRepository, eventRepo EventRepository) *Reconstructor {
	return &Reconstructor{saveRepo: saveRepo, eventRepo: eventRepo}
}

// RecapEvent is a simplified event for history views.
type RecapEvent struct {
	Timestamp  string `json:"timestamp"`
	EventType  string `json:"event_type"`
	Generation int    `json:"generation"`
	Summary    string `json:"summary"`
}

// RebuildSeed loads a saved game and decodes its seed.
func (r *Reconstructor) RebuildSeed(ctx context.Context, id string) (population.Population, *SavedGame, error) {
	if r.saveRepo == nil {
		return nil, nil, fmt.Errorf("no save repository: %w", ErrNotFound)
	}
	save, err := r.saveRepo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	seed, err := population.Parse(save.Seed)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode seed of %s: %w", id, err)
	}
	if seed.Rows() != save.Rows || seed.Cols() != save.Cols {
		return nil, nil, fmt.Errorf("save %s is %dx%d, seed is %dx%d: %w",
			id, save.Cols, save.Rows, seed.Cols(), seed.Rows(), ErrDimensionMismatch)
	}
	return seed, save, nil
}

// GenerateRecap summarizes the persisted history of a game.
func (r *Reconstructor) GenerateRecap(ctx context.Context, gameID string) ([]RecapEvent, error) {
	if r.eventRepo == nil {
		return nil, nil
	}
	allEvents, err := r.eventRepo.GetByGameID(ctx, gameID)
	if err != nil {
		return nil, err
	}

	recap := make([]RecapEvent, 0, len(allEvents))
	for _, e := range allEvents {
		recap = append(recap, RecapEvent{
			Timestamp:  e.Timestamp.Format("15:04:05"),
			EventType:  e.EventType,
			Generation: e.Generation,
			Summary:    summarizeEvent(e),
		})
	}
	return recap, nil
}

// summarizeEvent creates a human-readable summary.
func summarizeEvent(e GameEvent) string {
	gen := humanize.Comma(int64(e.Generation))
	switch e.EventType {
	case "GAME_STARTED":
		return "A new game started."
	case "GAME_RESTARTED":
		return "The seed was replayed from generation 1."
	case "GAME_PAUSED":
		return "Paused at generation " + gen + "."
	case "GAME_RESUMED":
		return "Resumed at generation " + gen + "."
	case "GAME_SAVED":
		return "The seed was saved at generation " + gen + "."
	case "GAME_LOADED":
		return "A saved seed was loaded."
	case "EXTINCTION_REACHED":
		return "Extinction reached after " + gen + " generations."
	case "SETTING_CORRECTED":
		if prop, ok := e.Payload["prop"].(string); ok {
			return "Invalid " + prop + " replaced by its default."
		}
		return "An invalid setting was replaced by its default."
	default:
		return "Something happened."
	}
}
