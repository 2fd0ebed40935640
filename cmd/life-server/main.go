// Package main is the entry point for the Game of Life server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MRamiBalles/conway-life/internal/domain/settings"
	"github.com/MRamiBalles/conway-life/internal/engine"
	"github.com/MRamiBalles/conway-life/internal/events"
	"github.com/MRamiBalles/conway-life/internal/infra/cache"
	"github.com/MRamiBalles/conway-life/internal/infra/storage"
	"github.com/MRamiBalles/conway-life/internal/network"
	"github.com/MRamiBalles/conway-life/internal/platform/logger"
	"github.com/MRamiBalles/conway-life/internal/platform/optimization"
	"github.com/MRamiBalles/conway-life/internal/session"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	dbPath := flag.String("db", "data/life.db", "SQLite database path, empty disables persistence")
	profile := flag.String("profile", "default", "tuning profile: default, stress or low")
	seed := flag.Int64("seed", 0, "random seed for reproducible games, 0 picks one at random")
	monitorEvery := flag.Duration("monitor", 30*time.Second, "interval between tuning checks, 0 disables")

	attrFlags := make(map[string]*string)
	for _, s := range settings.Schema() {
		attrFlags[s.PropName] = flag.String(s.PropName, s.Default, fmt.Sprintf("%s (%s)", s.Usage, s.Type))
	}
	flag.Parse()

	// Only explicitly set attributes are forwarded so defaults stay in one place.
	attrs := make(map[string]string)
	flag.Visit(func(f *flag.Flag) {
		if v, ok := attrFlags[f.Name]; ok {
			attrs[f.Name] = *v
		}
	})

	log.Println("[LIFE-SERVER] Initializing Game of Life server...")
	appLogger := logger.NewLogger()

	tuning, err := optimization.ByName(*profile)
	if err != nil {
		appLogger.Errorf("Invalid profile: %v", err)
		os.Exit(2)
	}

	var (
		eventRepo storage.EventRepository
		saveRepo  storage.SaveRepository
		persister events.EventPersister
	)
	if *dbPath != "" {
		appLogger.Info("Initializing SQLite database '" + *dbPath + "'...")
		db, err := storage.InitSQLite(*dbPath)
		if err != nil {
			appLogger.Errorf("Failed to initialize SQLite: %v", err)
			os.Exit(1)
		}
		defer db.Close()
		storage.Tune(db, tuning.DBMaxOpenConns, tuning.DBMaxIdleConns)

		repo := storage.NewSQLiteEventRepository(db)
		eventRepo = repo
		persister = network.NewPersister(repo)
		saveRepo = cache.NewCachedSaves(storage.NewSQLiteSaveRepository(db), cache.NewMemoryStore(), 15*time.Minute)
	} else {
		appLogger.Warn("Persistence disabled: saves and event history live in memory only")
	}

	appLogger.Info("Bootstrapping EventLog...")
	eventLog := events.NewEventLog(persister)
	eventLog.OnPersistError(func(e events.GameEvent, err error) {
		appLogger.Errorf("Failed to persist %s event %s: %v", e.Type, e.ID, err)
	})

	opts := session.Options{
		Logger:   appLogger,
		EventLog: eventLog,
		Saves:    saveRepo,
	}
	if *seed != 0 {
		opts.RandomSource = engine.NewRandomSource(*seed)
	}
	manager := session.NewManager(opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appLogger.Info("Bootstrapping WebSocket Hub...")
	hub := network.NewHub(manager, tuning, appLogger)
	manager.SetBroadcaster(hub)
	go hub.Run(ctx)
	hub.StartEventPoller(ctx, eventLog)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWs)
	network.NewGameAPI(manager, appLogger).RegisterRoutes(mux)
	network.NewReplayHandler(eventLog, eventRepo, appLogger).RegisterRoutes(mux)

	if *monitorEvery > 0 {
		go optimization.Monitor(ctx, *monitorEvery, func() time.Duration {
			if st, err := manager.Status(); err == nil {
				return st.Config.Lifespan()
			}
			return settings.Default().Lifespan()
		}, appLogger)
	}

	if _, err := manager.NewGame(attrs, session.SystemActor); err != nil {
		appLogger.Errorf("Failed to start the first game: %v", err)
		os.Exit(1)
	}

	srv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		log.Printf("[LIFE-SERVER] HTTP API & WS Server listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	log.Println("[LIFE-SERVER] Server running. Press Ctrl+C to exit.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[LIFE-SERVER] Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Errorf("HTTP shutdown: %v", err)
	}
	manager.Close()
	cancel()
	eventLog.Flush()
}
