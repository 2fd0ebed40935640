package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/MRamiBalles/conway-life/internal/domain/population"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitSQLite(filepath.Join(t.TempDir(), "data", "life.db"))
	if err != nil {
		t.Fatalf("InitSQLite failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func glider() population.Population {
	p, _ := population.Parse(".#...\n..#..\n###..\n.....")
	return p
}

func TestSaveRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteSaveRepository(openTestDB(t))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		err := repo.Save(ctx, SavedGame{
			ID:         id,
			GameID:     "game-1",
			Cols:       5,
			Rows:       4,
			Seed:       glider().String(),
			Generation: i + 1,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Save %s failed: %v", id, err)
		}
	}

	got, err := repo.Get(ctx, "second")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Cols != 5 || got.Rows != 4 || got.Generation != 2 || got.GameID != "game-1" {
		t.Errorf("Unexpected save %+v", got)
	}
	if got.Seed != glider().String() {
		t.Errorf("Seed changed in storage:\n%s", got.Seed)
	}

	list, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != "third" || list[1].ID != "second" {
		t.Errorf("Expected newest two saves, got %+v", list)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestEventRepositoryQueries(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteEventRepository(openTestDB(t))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	evs := []GameEvent{
		{ID: "e1", GameID: "a", EventType: "GAME_STARTED", ActorID: "SYSTEM", Generation: 1},
		{ID: "e2", GameID: "a", EventType: "GAME_PAUSED", ActorID: "client-1", Generation: 9},
		{ID: "e3", GameID: "b", EventType: "GAME_STARTED", ActorID: "SYSTEM", Generation: 1},
		{ID: "e4", GameID: "a", EventType: "SETTING_CORRECTED", ActorID: "SYSTEM", Payload: map[string]interface{}{"prop": "cols"}},
	}
	for i, e := range evs {
		e.Timestamp = base.Add(time.Duration(i) * time.Second)
		if err := repo.Append(ctx, e); err != nil {
			t.Fatalf("Append %s failed: %v", e.ID, err)
		}
	}

	gameA, err := repo.GetByGameID(ctx, "a")
	if err != nil {
		t.Fatalf("GetByGameID failed: %v", err)
	}
	if len(gameA) != 3 || gameA[0].ID != "e1" || gameA[2].ID != "e4" {
		t.Fatalf("Unexpected events for game a: %+v", gameA)
	}
	if gameA[1].Generation != 9 || gameA[1].ActorID != "client-1" {
		t.Errorf("Fields lost in storage: %+v", gameA[1])
	}
	if gameA[2].Payload["prop"] != "cols" {
		t.Errorf("Payload lost in storage: %v", gameA[2].Payload)
	}

	started, err := repo.GetByEventType(ctx, "", "GAME_STARTED")
	if err != nil {
		t.Fatalf("GetByEventType failed: %v", err)
	}
	if len(started) != 2 {
		t.Errorf("Expected GAME_STARTED for every game, got %d", len(started))
	}
	startedB, _ := repo.GetByEventType(ctx, "b", "GAME_STARTED")
	if len(startedB) != 1 || startedB[0].ID != "e3" {
		t.Errorf("Expected only game b, got %+v", startedB)
	}
}

func TestRebuildSeed(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	saves := NewSQLiteSaveRepository(db)
	r := NewReconstructor(saves, nil)

	now := time.Now()
	saves.Save(ctx, SavedGame{ID: "ok", GameID: "g", Cols: 5, Rows: 4, Seed: glider().String(), Generation: 1, CreatedAt: now})
	saves.Save(ctx, SavedGame{ID: "wrong", GameID: "g", Cols: 6, Rows: 4, Seed: glider().String(), Generation: 1, CreatedAt: now})
	saves.Save(ctx, SavedGame{ID: "garbage", GameID: "g", Cols: 2, Rows: 1, Seed: "x#", Generation: 1, CreatedAt: now})

	seed, save, err := r.RebuildSeed(ctx, "ok")
	if err != nil {
		t.Fatalf("RebuildSeed failed: %v", err)
	}
	if !seed.Equal(glider()) || save.ID != "ok" {
		t.Errorf("Rebuilt seed differs from the stored one")
	}

	if _, _, err := r.RebuildSeed(ctx, "wrong"); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Expected ErrDimensionMismatch, got %v", err)
	}
	if _, _, err := r.RebuildSeed(ctx, "garbage"); err == nil {
		t.Errorf("Expected an error for an undecodable seed")
	}
	if _, _, err := r.RebuildSeed(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestGenerateRecap(t *testing.T) {
	ctx := context.Background()
	events := NewSQLiteEventRepository(openTestDB(t))
	r := NewReconstructor(nil, events)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events.Append(ctx, GameEvent{ID: "1", GameID: "g", EventType: "GAME_STARTED", ActorID: "SYSTEM", Generation: 1, Timestamp: base})
	events.Append(ctx, GameEvent{ID: "2", GameID: "g", EventType: "EXTINCTION_REACHED", ActorID: "SYSTEM", Generation: 1234, Timestamp: base.Add(time.Second)})

	recap, err := r.GenerateRecap(ctx, "g")
	if err != nil {
		t.Fatalf("GenerateRecap failed: %v", err)
	}
	if len(recap) != 2 {
		t.Fatalf("Expected 2 recap entries, got %d", len(recap))
	}
	if recap[1].Summary != "Extinction reached after 1,234 generations." {
		t.Errorf("Unexpected summary %q", recap[1].Summary)
	}
}
