package network

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/MRamiBalles/conway-life/internal/domain/settings"
	"github.com/MRamiBalles/conway-life/internal/infra/storage"
	"github.com/MRamiBalles/conway-life/internal/platform/logger"
	"github.com/MRamiBalles/conway-life/internal/platform/metrics"
	"github.com/MRamiBalles/conway-life/internal/session"
)

// GameAPI exposes the session actions over plain HTTP.
type GameAPI struct {
	session *session.Manager
	logger  *logger.Logger
}

// NewGameAPI creates the HTTP action handler.
func NewGameAPI(s *session.Manager, log *logger.Logger) *GameAPI {
	return &GameAPI{session: s, logger: log}
}

// actionBody is the optional JSON body of POST actions.
type actionBody struct {
	Config      map[string]string `json:"config,omitempty"`
	SavedGameID string            `json:"savedGameId,omitempty"`
}

// HandleAction returns a handler running one session action.
// POST /api/game/{new,restart,toggle-pause,save,load}
func (api *GameAPI) HandleAction(action session.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var body actionBody
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				jsonError(w, "Invalid request body", http.StatusBadRequest)
				return
			}
		}
		if id := r.URL.Query().Get("id"); id != "" {
			body.SavedGameID = id
		}

		res, err := api.session.HandleAction(r.Context(), session.Request{
			Action:      action,
			Config:      body.Config,
			SavedGameID: body.SavedGameID,
			ActorID:     "http:" + r.RemoteAddr,
		})
		if err != nil {
			api.logger.Warn("HTTP action " + string(action) + " failed: " + err.Error())
			jsonError(w, err.Error(), statusFor(err))
			return
		}
		jsonSuccess(w, map[string]interface{}{
			"status": "ok",
			"result": res,
		})
	}
}

// HandleState returns the current game status.
// GET /api/game/state
func (api *GameAPI) HandleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	st, err := api.session.Status()
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	jsonSuccess(w, st)
}

// HandleFrame returns the current canvas.
// GET /api/game/frame.png
func (api *GameAPI) HandleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, err := api.session.Status(); err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	if err := api.session.WriteFrame(w); err != nil {
		api.logger.Errorf("Failed to encode frame: %v", err)
	}
}

// HandleSaves lists stored saves.
// GET /api/saves?limit=N
func (api *GameAPI) HandleSaves(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	saves, err := api.session.ListSaves(r.Context(), limit)
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	if saves == nil {
		saves = []storage.SavedGame{}
	}
	jsonSuccess(w, map[string]interface{}{
		"total": len(saves),
		"saves": saves,
	})
}

// HandleSchema describes the accepted game attributes.
// GET /api/settings
func (api *GameAPI) HandleSchema(w http.ResponseWriter, r *http.Request) {
	type attribute struct {
		Name    string `json:"name"`
		Type    string `json:"type"`
		Default string `json:"default"`
		Usage   string `json:"usage"`
	}
	var attrs []attribute
	for _, s := range settings.Schema() {
		attrs = append(attrs, attribute{Name: s.PropName, Type: string(s.Type), Default: s.Default, Usage: s.Usage})
	}
	jsonSuccess(w, attrs)
}

// RegisterRoutes sets up the game API routes.
func (api *GameAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/game/new", api.HandleAction(session.ActionNewGame))
	mux.HandleFunc("/api/game/restart", api.HandleAction(session.ActionRestartGame))
	mux.HandleFunc("/api/game/toggle-pause", api.HandleAction(session.ActionTogglePause))
	mux.HandleFunc("/api/game/save", api.HandleAction(session.ActionSaveGame))
	mux.HandleFunc("/api/game/load", api.HandleAction(session.ActionLoadGame))
	mux.HandleFunc("/api/game/state", api.HandleState)
	mux.HandleFunc("/api/game/frame.png", api.HandleFrame)
	mux.HandleFunc("/api/saves", api.HandleSaves)
	mux.HandleFunc("/api/settings", api.HandleSchema)
	mux.HandleFunc("/metrics", metrics.Handler())
	mux.HandleFunc("/metrics/prometheus", metrics.PrometheusHandler())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNoGame):
		return http.StatusConflict
	case errors.Is(err, session.ErrUnknownAction), errors.Is(err, settings.ErrInvalidSetting),
		errors.Is(err, errMissingFilter):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrDimensionMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrNoStorage), errors.Is(err, errNotPersisted):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

// jsonError sends an error response.
func jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": message})
}

// jsonSuccess sends a success response.
func jsonSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(data)
}
