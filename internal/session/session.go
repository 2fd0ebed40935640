// Package session hosts the running game: it turns transport actions into
// engine calls, keeps the latest frame, and starts a new game after
// extinction when configured to.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/MRamiBalles/conway-life/internal/domain/population"
	"github.com/MRamiBalles/conway-life/internal/domain/settings"
	"github.com/MRamiBalles/conway-life/internal/engine"
	"github.com/MRamiBalles/conway-life/internal/events"
	"github.com/MRamiBalles/conway-life/internal/infra/storage"
	"github.com/MRamiBalles/conway-life/internal/platform/logger"
	"github.com/MRamiBalles/conway-life/internal/platform/metrics"
	"github.com/MRamiBalles/conway-life/internal/render"
)

var (
	// ErrNoGame is returned by actions that need a running game.
	ErrNoGame = errors.New("session: no game in progress")
	// ErrUnknownAction is returned for an action name the session does not handle.
	ErrUnknownAction = errors.New("session: unknown action")
	// ErrNoStorage is returned by load-game when no save repository is configured.
	ErrNoStorage = errors.New("session: saves are not persisted")
)

// Action names accepted by HandleAction.
type Action string

const (
	ActionNewGame     Action = "new-game"
	ActionRestartGame Action = "restart-game"
	ActionTogglePause Action = "toggle-game-pause"
	ActionSaveGame    Action = "save-game"
	ActionLoadGame    Action = "load-game"
)

// SystemActor marks events the session triggers on its own.
const SystemActor = "SYSTEM"

// Request is one action sent by a client.
type Request struct {
	Action      Action            `json:"action"`
	Config      map[string]string `json:"config,omitempty"`
	SavedGameID string            `json:"savedGameId,omitempty"`
	ActorID     string            `json:"-"`
}

// Result describes what an action did.
type Result struct {
	GameID      string                `json:"gameId"`
	State       string                `json:"state"`
	Saved       *storage.SavedGame    `json:"saved,omitempty"`
	Corrections []settings.Correction `json:"corrections,omitempty"`
}

// GenerationInfo is a generation tagged with the game it belongs to.
type GenerationInfo struct {
	GameID string `json:"gameId"`
	engine.Generation
}

// Status is a point-in-time view of the session.
type Status struct {
	GameID          string              `json:"gameId"`
	State           string              `json:"state"`
	GenerationCount int                 `json:"generationCount"`
	LiveCells       int                 `json:"liveCells"`
	Config          settings.GameConfig `json:"config"`
}

// Broadcaster receives every generation of the current game. It must not block.
type Broadcaster interface {
	BroadcastGeneration(info GenerationInfo)
}

// Options wires the collaborators of a Manager. Every field is optional.
type Options struct {
	Logger      *logger.Logger
	EventLog    *events.EventLog
	Saves       storage.SaveRepository
	Broadcaster Broadcaster
	// Scheduler drives both the engines and the restart after extinction.
	Scheduler engine.Scheduler
	// RandomSource seeds new games. Defaults to the engine's global source.
	RandomSource population.RandomSource
}

type game struct {
	id     string
	cfg    settings.GameConfig
	engine *engine.Engine
}

// Manager owns at most one game at a time.
//
// Lock order: mu, then the engine lock, then frameMu. Generation callbacks
// run under the engine lock and only take frameMu.
type Manager struct {
	mu      sync.Mutex
	current *game

	logger        *logger.Logger
	eventLog      *events.EventLog
	saves         storage.SaveRepository
	reconstructor *storage.Reconstructor
	broadcaster   Broadcaster
	scheduler     engine.Scheduler
	rng           population.RandomSource

	frameMu      sync.Mutex
	currentID    string
	canvas       *render.Canvas
	last         *GenerationInfo
	restartTimer engine.Handle
	restartSeq   uint64
}

// NewManager creates a session with no game.
func NewManager(opts Options) *Manager {
	m := &Manager{
		logger:      opts.Logger,
		eventLog:    opts.EventLog,
		saves:       opts.Saves,
		broadcaster: opts.Broadcaster,
		scheduler:   opts.Scheduler,
		rng:         opts.RandomSource,
	}
	if m.logger == nil {
		m.logger = logger.Discard()
	}
	if m.eventLog == nil {
		m.eventLog = events.NewEventLog(nil)
	}
	if m.scheduler == nil {
		m.scheduler = engine.TimerScheduler{}
	}
	if m.saves != nil {
		m.reconstructor = storage.NewReconstructor(m.saves, nil)
	}
	return m
}

// SetBroadcaster replaces the generation broadcaster.
func (m *Manager) SetBroadcaster(b Broadcaster) {
	m.frameMu.Lock()
	m.broadcaster = b
	m.frameMu.Unlock()
}

// EventLog returns the log the session appends to.
func (m *Manager) EventLog() *events.EventLog {
	return m.eventLog
}

// HandleAction dispatches a transport action.
func (m *Manager) HandleAction(ctx context.Context, req Request) (Result, error) {
	if req.ActorID == "" {
		req.ActorID = SystemActor
	}

	switch req.Action {
	case ActionNewGame:
		return m.NewGame(req.Config, req.ActorID)
	case ActionRestartGame:
		return m.Restart(req.ActorID)
	case ActionTogglePause:
		return m.TogglePause(req.ActorID)
	case ActionSaveGame:
		return m.Save(ctx, req.ActorID)
	case ActionLoadGame:
		return m.Load(ctx, req.SavedGameID, req.Config, req.ActorID)
	}
	return Result{}, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
}

// NewGame parses attrs, discards the current game and starts a new one.
func (m *Manager) NewGame(attrs map[string]string, actorID string) (Result, error) {
	cfg, corrections := settings.FromAttributes(attrs)
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	g := m.start(cfg, nil, actorID)
	m.reportCorrections(g.id, actorID, corrections)
	return Result{GameID: g.id, State: g.engine.State().String(), Corrections: corrections}, nil
}

// reportCorrections logs every replaced setting and records it on the game.
func (m *Manager) reportCorrections(gameID, actorID string, corrections []settings.Correction) {
	for _, c := range corrections {
		m.logger.Warnf("Invalid value %q for %s, using default %q", c.Provided, c.PropName, c.Applied)
		m.appendEvent(gameID, events.EventTypeSettingCorrected, actorID, 0, map[string]interface{}{
			"prop":     c.PropName,
			"provided": c.Provided,
			"applied":  c.Applied,
		})
	}
}

// Restart replays the seed of the current game.
func (m *Manager) Restart(actorID string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := m.current
	if g == nil {
		return Result{}, ErrNoGame
	}

	m.frameMu.Lock()
	m.cancelAutoRestart()
	if m.canvas != nil {
		m.canvas.Clear()
	}
	m.frameMu.Unlock()

	g.engine.Restart()
	m.appendEvent(g.id, events.EventTypeGameRestarted, actorID, 1, nil)
	return Result{GameID: g.id, State: g.engine.State().String()}, nil
}

// TogglePause pauses a running game or resumes a paused one.
func (m *Manager) TogglePause(actorID string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := m.current
	if g == nil {
		return Result{}, ErrNoGame
	}

	before := g.engine.State()
	g.engine.TogglePauseResume()
	after := g.engine.State()

	switch {
	case before == engine.StateRunning && after == engine.StatePaused:
		m.appendEvent(g.id, events.EventTypeGamePaused, actorID, g.engine.GenerationCount(), nil)
	case before == engine.StatePaused && after != engine.StatePaused:
		m.appendEvent(g.id, events.EventTypeGameResumed, actorID, g.engine.GenerationCount(), nil)
	}
	return Result{GameID: g.id, State: after.String()}, nil
}

// Save captures the seed of the current game and persists it when a
// repository is configured.
func (m *Manager) Save(ctx context.Context, actorID string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := m.current
	if g == nil {
		m.logger.Warn("Nothing to save!")
		return Result{}, ErrNoGame
	}

	snapshot, ok := g.engine.Save()
	if !ok {
		return Result{}, ErrNoGame
	}

	saved := &storage.SavedGame{
		ID:         uuid.NewString(),
		GameID:     g.id,
		Cols:       snapshot.Cols,
		Rows:       snapshot.Rows,
		Seed:       snapshot.InitialPopulation.String(),
		Generation: g.engine.GenerationCount(),
		CreatedAt:  time.Now().UTC(),
	}
	if m.saves != nil {
		if err := m.saves.Save(ctx, *saved); err != nil {
			return Result{}, fmt.Errorf("failed to persist save: %w", err)
		}
	} else {
		m.logger.Warn("No save repository configured, save " + saved.ID + " is not persisted")
	}

	metrics.Get().RecordSave()
	m.appendEvent(g.id, events.EventTypeGameSaved, actorID, saved.Generation, map[string]interface{}{
		"save_id": saved.ID,
	})
	return Result{GameID: g.id, State: g.engine.State().String(), Saved: saved}, nil
}

// Load starts a new game replaying a stored seed. attrs configure everything
// but the dimensions, which come from the save.
func (m *Manager) Load(ctx context.Context, savedGameID string, attrs map[string]string, actorID string) (Result, error) {
	if m.reconstructor == nil {
		return Result{}, ErrNoStorage
	}
	seed, saved, err := m.reconstructor.RebuildSeed(ctx, savedGameID)
	if err != nil {
		return Result{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var cfg settings.GameConfig
	var corrections []settings.Correction
	switch {
	case len(attrs) > 0:
		cfg, corrections = settings.FromAttributes(attrs)
	case m.current != nil:
		cfg = m.current.cfg
	default:
		cfg = settings.Default()
	}
	cfg.Cols, cfg.Rows = saved.Cols, saved.Rows
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	g := m.start(cfg, seed, actorID)
	m.appendEvent(g.id, events.EventTypeGameLoaded, actorID, 1, map[string]interface{}{
		"save_id":     saved.ID,
		"source_game": saved.GameID,
	})
	m.reportCorrections(g.id, actorID, corrections)
	return Result{GameID: g.id, State: g.engine.State().String(), Corrections: corrections}, nil
}

// ListSaves returns the most recent saves.
func (m *Manager) ListSaves(ctx context.Context, limit int) ([]storage.SavedGame, error) {
	if m.saves == nil {
		return nil, ErrNoStorage
	}
	return m.saves.List(ctx, limit)
}

// Status reports the current game.
func (m *Manager) Status() (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := m.current
	if g == nil {
		return Status{}, ErrNoGame
	}
	st := Status{
		GameID:          g.id,
		State:           g.engine.State().String(),
		GenerationCount: g.engine.GenerationCount(),
		Config:          g.cfg,
	}

	m.frameMu.Lock()
	if m.last != nil && m.last.GameID == g.id {
		st.LiveCells = m.last.Population.LiveCount()
	}
	m.frameMu.Unlock()
	return st, nil
}

// LastGeneration returns the latest generation of the current game.
func (m *Manager) LastGeneration() (GenerationInfo, bool) {
	m.frameMu.Lock()
	defer m.frameMu.Unlock()
	if m.last == nil {
		return GenerationInfo{}, false
	}
	return *m.last, true
}

// WriteFrame encodes the current canvas as PNG.
func (m *Manager) WriteFrame(w io.Writer) error {
	m.frameMu.Lock()
	canvas := m.canvas
	m.frameMu.Unlock()

	if canvas == nil {
		return ErrNoGame
	}
	return canvas.EncodePNG(w)
}

// Close stops the current game and any pending restart.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.current.engine.Stop()
		m.current = nil
	}
	m.frameMu.Lock()
	m.cancelAutoRestart()
	m.currentID = ""
	m.frameMu.Unlock()
}

// start must be called with mu held.
// The canvas is allocated before anything is torn down or locked, so a
// failed allocation leaves the running game untouched.
func (m *Manager) start(cfg settings.GameConfig, seed population.Population, actorID string) *game {
	canvas := render.NewCanvas(cfg)
	if m.current != nil {
		m.current.engine.Stop()
	}

	g := &game{id: uuid.NewString(), cfg: cfg}

	m.frameMu.Lock()
	m.cancelAutoRestart()
	m.currentID = g.id
	m.canvas = canvas
	m.last = nil
	m.frameMu.Unlock()

	opts := []engine.Option{
		engine.WithScheduler(m.scheduler),
		engine.WithLogger(m.logger),
	}
	if m.rng != nil {
		opts = append(opts, engine.WithRandomSource(m.rng))
	}
	if seed != nil {
		opts = append(opts, engine.WithSeed(seed))
	}

	m.current = g
	m.appendEvent(g.id, events.EventTypeGameStarted, actorID, 1, map[string]interface{}{
		"cols":                  cfg.Cols,
		"rows":                  cfg.Rows,
		"population_percentage": cfg.PopulationPercentage,
		"generation_lifespan":   cfg.GenerationLifespan,
	})
	metrics.Get().RecordGameStarted()
	m.logger.Infof("Starting game %s on a %s x %s grid", g.id,
		humanize.Comma(int64(cfg.Cols)), humanize.Comma(int64(cfg.Rows)))

	g.engine = engine.New(cfg, func(gen engine.Generation) {
		m.onGeneration(g.id, cfg, gen)
	}, opts...)
	return g
}

// onGeneration runs under the engine lock.
func (m *Manager) onGeneration(gameID string, cfg settings.GameConfig, gen engine.Generation) {
	m.frameMu.Lock()
	defer m.frameMu.Unlock()

	if gameID != m.currentID {
		return
	}

	m.canvas.Update(gen.Population)
	if cfg.ShowStats {
		m.canvas.ShowStats(gen.GenerationCount)
	}

	info := GenerationInfo{GameID: gameID, Generation: gen}
	m.last = &info
	if m.broadcaster != nil {
		m.broadcaster.BroadcastGeneration(info)
	}

	if !gen.IsExtinct {
		return
	}
	if cfg.ShowExtinctionStats {
		m.canvas.ShowExtinctionStats(gen.GenerationCount)
	}
	m.appendEvent(gameID, events.EventTypeExtinctionReached, SystemActor, gen.GenerationCount, nil)
	m.logger.Infof("Extinction reached after %s generations", humanize.Comma(int64(gen.GenerationCount)))

	if cfg.RestartInterval != 0 {
		m.cancelAutoRestart()
		seq := m.restartSeq
		m.restartTimer = m.scheduler.AfterFunc(cfg.RestartDelay(), func() {
			m.autoRestart(gameID, seq)
		})
	}
}

// autoRestart starts a fresh game with the configuration of gameID, unless
// the timer was cancelled after it fired.
func (m *Manager) autoRestart(gameID string, seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.frameMu.Lock()
	cancelled := seq != m.restartSeq
	m.frameMu.Unlock()

	if cancelled || m.current == nil || m.current.id != gameID {
		return
	}
	m.logger.Info("Starting a new game after extinction")
	m.start(m.current.cfg, nil, SystemActor)
}

// cancelAutoRestart must be called with frameMu held.
func (m *Manager) cancelAutoRestart() {
	m.restartSeq++
	if m.restartTimer != nil {
		m.restartTimer.Stop()
		m.restartTimer = nil
	}
}

func (m *Manager) appendEvent(gameID string, t events.EventType, actorID string, generation int, payload map[string]interface{}) {
	m.eventLog.Append(events.GameEvent{
		Type:       t,
		GameID:     gameID,
		ActorID:    actorID,
		Generation: generation,
		Payload:    payload,
	})
}
