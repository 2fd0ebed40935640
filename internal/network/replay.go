package network

import (
	"errors"
	"net/http"
	"time"

	"github.com/MRamiBalles/conway-life/internal/events"
	"github.com/MRamiBalles/conway-life/internal/infra/storage"
	"github.com/MRamiBalles/conway-life/internal/platform/logger"
)

var (
	errMissingFilter = errors.New("game_id or type is required with source=db")
	errNotPersisted  = errors.New("events are not persisted")
)

// ReplayHandler serves the history of game events.
type ReplayHandler struct {
	eventLog      *events.EventLog
	eventRepo     storage.EventRepository
	reconstructor *storage.Reconstructor
	logger        *logger.Logger
}

// NewReplayHandler creates a new replay handler. eventRepo may be nil, in
// which case only the in-memory log is served.
func NewReplayHandler(el *events.EventLog, eventRepo storage.EventRepository, log *logger.Logger) *ReplayHandler {
	h := &ReplayHandler{eventLog: el, eventRepo: eventRepo, logger: log}
	if eventRepo != nil {
		h.reconstructor = storage.NewReconstructor(nil, eventRepo)
	}
	return h
}

// ReplayResponse is the API response for event replay.
type ReplayResponse struct {
	GameID      string             `json:"game_id,omitempty"`
	Type        string             `json:"type,omitempty"`
	Source      string             `json:"source"`
	TotalEvents int                `json:"total_events"`
	GeneratedAt string             `json:"generated_at"`
	Events      []events.GameEvent `json:"events"`
}

// HandleReplay returns the events matching the optional filters.
// GET /api/events?game_id=XXX&type=EXTINCTION_REACHED&source=db
func (rh *ReplayHandler) HandleReplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	gameID := r.URL.Query().Get("game_id")
	eventType := r.URL.Query().Get("type")
	source := r.URL.Query().Get("source")

	var (
		result []events.GameEvent
		err    error
	)
	if source == "db" {
		result, err = rh.fromRepository(r, gameID, eventType)
		if err != nil {
			rh.logger.Errorf("Event replay query failed: %v", err)
			jsonError(w, err.Error(), statusFor(err))
			return
		}
	} else {
		source = "memory"
		for _, e := range rh.eventLog.Replay() {
			if gameID != "" && e.GameID != gameID {
				continue
			}
			if eventType != "" && string(e.Type) != eventType {
				continue
			}
			result = append(result, e)
		}
	}
	if result == nil {
		result = []events.GameEvent{}
	}

	jsonSuccess(w, ReplayResponse{
		GameID:      gameID,
		Type:        eventType,
		Source:      source,
		TotalEvents: len(result),
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      result,
	})
}

func (rh *ReplayHandler) fromRepository(r *http.Request, gameID, eventType string) ([]events.GameEvent, error) {
	if rh.eventRepo == nil {
		return nil, errNotPersisted
	}

	var stored []storage.GameEvent
	var err error
	switch {
	case eventType != "":
		stored, err = rh.eventRepo.GetByEventType(r.Context(), gameID, eventType)
	case gameID != "":
		stored, err = rh.eventRepo.GetByGameID(r.Context(), gameID)
	default:
		return nil, errMissingFilter
	}
	if err != nil {
		return nil, err
	}

	out := make([]events.GameEvent, 0, len(stored))
	for _, e := range stored {
		out = append(out, FromStorageEvent(e))
	}
	return out, nil
}

// HandleRecap returns a readable history of a persisted game.
// GET /api/events/recap?game_id=XXX
func (rh *ReplayHandler) HandleRecap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	gameID := r.URL.Query().Get("game_id")
	if gameID == "" {
		jsonError(w, "Missing game_id", http.StatusBadRequest)
		return
	}
	if rh.reconstructor == nil {
		jsonError(w, errNotPersisted.Error(), http.StatusNotImplemented)
		return
	}

	recap, err := rh.reconstructor.GenerateRecap(r.Context(), gameID)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonSuccess(w, map[string]interface{}{
		"game_id": gameID,
		"recap":   recap,
	})
}

// HandleStats returns event counts by type.
// GET /api/events/stats
func (rh *ReplayHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	all := rh.eventLog.Replay()
	byType := make(map[string]int)
	games := make(map[string]bool)
	for _, e := range all {
		byType[string(e.Type)]++
		games[e.GameID] = true
	}

	jsonSuccess(w, map[string]interface{}{
		"generated_at": time.Now().Format(time.RFC3339),
		"total_events": len(all),
		"games":        len(games),
		"by_type":      byType,
	})
}

// RegisterRoutes sets up the replay API routes.
func (rh *ReplayHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/events", rh.HandleReplay)
	mux.HandleFunc("/api/events/recap", rh.HandleRecap)
	mux.HandleFunc("/api/events/stats", rh.HandleStats)
}
