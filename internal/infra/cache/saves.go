// Package cache provides a read-through cache in front of saved game storage.
// The store is not the source of truth: entries expire and misses fall back
// to the wrapped repository.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MRamiBalles/conway-life/internal/infra/storage"
)

// ErrMiss is returned by a Store for absent or expired keys.
var ErrMiss = errors.New("cache: miss")

// Store is the key-value backend of the cache.
// This allows for easy mocking in tests.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// CachedSaves wraps a SaveRepository and caches Get by save id.
type CachedSaves struct {
	repo       storage.SaveRepository
	store      Store
	expiration time.Duration
}

var _ storage.SaveRepository = (*CachedSaves)(nil)

// NewCachedSaves creates the cache. A zero expiration defaults to 15 minutes.
func NewCachedSaves(repo storage.SaveRepository, store Store, expiration time.Duration) *CachedSaves {
	if expiration <= 0 {
		expiration = 15 * time.Minute
	}
	return &CachedSaves{repo: repo, store: store, expiration: expiration}
}

// Save writes through to the repository, then caches the save.
func (c *CachedSaves) Save(ctx context.Context, save storage.SavedGame) error {
	if err := c.repo.Save(ctx, save); err != nil {
		return err
	}
	c.put(ctx, save)
	return nil
}

// Get serves from the cache and falls back to the repository on a miss.
// A broken cache entry is dropped and read again.
func (c *CachedSaves) Get(ctx context.Context, id string) (*storage.SavedGame, error) {
	if data, err := c.store.Get(ctx, saveKey(id)); err == nil {
		var save storage.SavedGame
		if err := json.Unmarshal([]byte(data), &save); err == nil {
			return &save, nil
		}
		c.store.Del(ctx, saveKey(id))
	}

	save, err := c.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.put(ctx, *save)
	return save, nil
}

// List always reads the repository so new saves show up at once.
func (c *CachedSaves) List(ctx context.Context, limit int) ([]storage.SavedGame, error) {
	return c.repo.List(ctx, limit)
}

// Invalidate removes a save from the cache.
func (c *CachedSaves) Invalidate(ctx context.Context, id string) error {
	return c.store.Del(ctx, saveKey(id))
}

// put caches a save. Failures only cost a later repository read.
func (c *CachedSaves) put(ctx context.Context, save storage.SavedGame) {
	data, err := json.Marshal(save)
	if err != nil {
		return
	}
	c.store.Set(ctx, saveKey(save.ID), string(data), c.expiration)
}

// saveKey generates the key for a saved game.
func saveKey(id string) string {
	return fmt.Sprintf("life:save:%s", id)
}

// MemoryStore is an in-process Store with per-key expiry.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value   string
	expires time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return "", ErrMiss
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return "", ErrMiss
	}
	return e.value, nil
}

// Set stores value. A non-positive expiration keeps it until deleted.
func (m *MemoryStore) Set(_ context.Context, key string, value string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memoryEntry{value: value}
	if expiration > 0 {
		e.expires = m.now().Add(expiration)
	}
	m.entries[key] = e
	return nil
}

func (m *MemoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
