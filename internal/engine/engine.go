package engine

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/MRamiBalles/conway-life/internal/domain/population"
	"github.com/MRamiBalles/conway-life/internal/domain/settings"
	"github.com/MRamiBalles/conway-life/internal/platform/logger"
	"github.com/MRamiBalles/conway-life/internal/platform/metrics"
)

// Generation is the record handed to the emission callback.
type Generation struct {
	Population      population.Population `json:"generation"`
	IsExtinct       bool                  `json:"isExtinct"`
	GenerationCount int                   `json:"generationCount"`
}

// EmitFunc receives every generation. It is called with the engine locked,
// so it must not block and must not call back into the engine.
type EmitFunc func(Generation)

// SavedGame is the initial state of a game, enough to replay it.
type SavedGame struct {
	Cols              int                   `json:"cols"`
	Rows              int                   `json:"rows"`
	InitialPopulation population.Population `json:"initialPopulation"`
}

// State is the position of the engine in its progression state machine.
type State int

const (
	StateRunning State = iota
	StatePaused
	StateExtinct
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateExtinct:
		return "extinct"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Option customizes an Engine.
type Option func(*Engine)

// WithScheduler replaces the time.AfterFunc based scheduler.
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) { e.scheduler = s }
}

// WithRandomSource sets the source used to seed the population.
func WithRandomSource(rng population.RandomSource) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithSeed starts the engine from a known population instead of a random one.
func WithSeed(seed population.Population) Option {
	return func(e *Engine) { e.seed = seed }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Engine evolves a population and emits one generation per lifespan.
type Engine struct {
	mu sync.Mutex

	cfg       settings.GameConfig
	emit      EmitFunc
	scheduler Scheduler
	rng       population.RandomSource
	logger    *logger.Logger

	seed    population.Population
	next    population.Population
	counter int

	paused  bool
	extinct bool
	stopped bool

	// pending is the only scheduled emission. epoch is bumped on every
	// cancellation so a callback that already left the timer is ignored.
	pending Handle
	epoch   uint64
}

// New seeds a population and emits it as generation 1 before returning.
// cfg must satisfy settings.GameConfig.Validate.
func New(cfg settings.GameConfig, emit EmitFunc, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		emit:      emit,
		scheduler: TimerScheduler{},
		rng:       globalSource{},
		logger:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.seed == nil {
		e.seed = population.Seed(cfg.Rows, cfg.Cols, cfg.PopulationPercentage, e.rng)
	}
	e.logger.Infof("Seeded %dx%d population with %s live cells",
		e.seed.Cols(), e.seed.Rows(), humanize.Comma(int64(e.seed.LiveCount())))

	e.counter = 0
	e.progress(e.seed)
	return e
}

// Restart replays the original seed from generation 1. It does not reseed.
func (e *Engine) Restart() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return
	}
	e.cancelPending()
	e.paused = false
	e.counter = 0
	metrics.Get().RecordRestart()
	e.logger.Event("GAME_RESTARTED", "ENGINE", "Replaying seed")
	e.progress(e.seed)
}

// TogglePauseResume pauses a running engine or resumes a paused one.
func (e *Engine) TogglePauseResume() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		e.resume()
	} else {
		e.pause()
	}
}

// Pause halts scheduling and keeps the computed next generation.
// Pausing a paused engine does nothing.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pause()
}

// Resume immediately emits the generation retained by Pause.
// Resuming a running engine does nothing.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resume()
}

// Save returns the seed of the current game. ok is false when there is
// nothing to save.
func (e *Engine) Save() (saved SavedGame, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.seed == nil {
		e.logger.Warn("Nothing to save!")
		return SavedGame{}, false
	}

	saved = SavedGame{
		Cols:              e.seed.Cols(),
		Rows:              e.seed.Rows(),
		InitialPopulation: e.seed,
	}
	if data, err := json.Marshal(saved); err == nil {
		e.logger.Info("The initial state of the game: " + string(data))
	}
	return saved, true
}

// Stop cancels any scheduled emission for good. Every other call becomes a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelPending()
	e.stopped = true
}

// State reports where the engine is in its lifecycle.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.stopped:
		return StateStopped
	case e.extinct:
		return StateExtinct
	case e.paused:
		return StatePaused
	}
	return StateRunning
}

// GenerationCount returns the index of the last emitted generation.
func (e *Engine) GenerationCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counter
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() settings.GameConfig {
	return e.cfg
}

func (e *Engine) pause() {
	if e.paused || e.stopped {
		return
	}
	if e.extinct {
		e.logger.Warn("Extinct game cannot be paused")
		return
	}
	e.paused = true
	e.cancelPending()
	metrics.Get().RecordPause()
	e.logger.Event("GAME_PAUSED", "ENGINE", "Generation "+humanize.Comma(int64(e.counter)))
}

func (e *Engine) resume() {
	if !e.paused || e.stopped {
		return
	}
	e.paused = false
	metrics.Get().RecordResume()
	e.logger.Event("GAME_RESUMED", "ENGINE", "Generation "+humanize.Comma(int64(e.counter+1)))
	e.progress(e.next)
}

// progress emits g, then computes and schedules its successor unless g is
// extinct or the engine is paused.
func (e *Engine) progress(g population.Population) {
	e.counter++
	extinct := g.IsExtinct()

	e.emit(Generation{
		Population:      g,
		IsExtinct:       extinct,
		GenerationCount: e.counter,
	})
	metrics.Get().RecordGeneration()

	if extinct {
		e.cancelPending()
		e.extinct = true
		metrics.Get().RecordExtinction()
		e.logger.Event("EXTINCTION_REACHED", "ENGINE", "After "+humanize.Comma(int64(e.counter))+" generations")
		return
	}
	e.extinct = false

	started := time.Now()
	e.next = g.Next()
	metrics.Get().RecordStep(time.Since(started))

	if e.paused {
		return
	}
	e.schedule()
}

func (e *Engine) schedule() {
	e.cancelPending()
	epoch := e.epoch
	e.pending = e.scheduler.AfterFunc(e.cfg.Lifespan(), func() {
		e.fire(epoch)
	})
}

func (e *Engine) fire(epoch uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if epoch != e.epoch || e.stopped || e.paused {
		return
	}
	e.pending = nil
	e.progress(e.next)
}

func (e *Engine) cancelPending() {
	e.epoch++
	if e.pending != nil {
		e.pending.Stop()
		e.pending = nil
	}
}
