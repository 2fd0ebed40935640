// Package optimization provides buffer and rate tuning for the game server.
package optimization

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/MRamiBalles/conway-life/internal/platform/logger"
	"github.com/MRamiBalles/conway-life/internal/platform/metrics"
)

// Config holds tuned parameters for the transport and storage layers.
type Config struct {
	// Channel buffer sizes
	BroadcastChannelBuffer int // Hub fan-in
	ClientSendBuffer       int // Per WebSocket

	// Connection pools
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Rate limiting
	MaxMessagesPerSecond int // Per client
	MaxClients           int

	// How often new game events are pushed to WebSocket clients
	EventPollInterval time.Duration
}

// DefaultConfig returns sensible defaults for production.
func DefaultConfig() *Config {
	numCPU := runtime.NumCPU()

	return &Config{
		BroadcastChannelBuffer: 256,
		ClientSendBuffer:       64,

		DBMaxOpenConns: numCPU * 2,
		DBMaxIdleConns: numCPU,

		MaxMessagesPerSecond: 20,
		MaxClients:           200,

		EventPollInterval: 200 * time.Millisecond,
	}
}

// StressTestConfig returns aggressive settings for load testing.
func StressTestConfig() *Config {
	numCPU := runtime.NumCPU()

	return &Config{
		BroadcastChannelBuffer: 1024,
		ClientSendBuffer:       256,

		DBMaxOpenConns: numCPU * 4,
		DBMaxIdleConns: numCPU * 2,

		MaxMessagesPerSecond: 200,
		MaxClients:           1000,

		EventPollInterval: 100 * time.Millisecond,
	}
}

// LowResourceConfig returns minimal settings for development.
func LowResourceConfig() *Config {
	return &Config{
		BroadcastChannelBuffer: 16,
		ClientSendBuffer:       8,

		DBMaxOpenConns: 2,
		DBMaxIdleConns: 1,

		MaxMessagesPerSecond: 5,
		MaxClients:           20,

		EventPollInterval: 500 * time.Millisecond,
	}
}

// ByName returns the preset selected by a -profile flag.
func ByName(name string) (*Config, error) {
	switch strings.ToLower(name) {
	case "", "default":
		return DefaultConfig(), nil
	case "stress":
		return StressTestConfig(), nil
	case "low":
		return LowResourceConfig(), nil
	}
	return nil, fmt.Errorf("unknown profile %q (want default, stress or low)", name)
}

// Recommendations provides suggestions based on observed metrics.
type Recommendations struct {
	IncreaseBroadcastBuffer bool
	IncreaseDBConnections   bool
	SlowGenerations         bool
	Notes                   []string
}

// Analyze examines a metrics snapshot and returns recommendations.
// lifespan is the configured time between generations of the current game.
func Analyze(snapshot map[string]interface{}, lifespan time.Duration) *Recommendations {
	rec := &Recommendations{
		Notes: make([]string, 0),
	}

	// Check next-generation compute latency against the lifespan
	if gen, ok := snapshot["generation"].(map[string]interface{}); ok {
		if maxLat, ok := gen["max_step_latency_ms"].(float64); ok && lifespan > 0 {
			budget := float64(lifespan) / float64(time.Millisecond)
			if maxLat > budget {
				rec.SlowGenerations = true
				rec.Notes = append(rec.Notes, fmt.Sprintf(
					"Next generation took %.1fms, longer than the %.0fms lifespan - shrink the grid or raise generation-lifespan", maxLat, budget))
			}
		}
	}

	// Check event write latency
	if events, ok := snapshot["events"].(map[string]interface{}); ok {
		if maxLat, ok := events["max_write_lat_ms"].(float64); ok && maxLat > 50 {
			rec.IncreaseDBConnections = true
			rec.Notes = append(rec.Notes, "Event write latency exceeds 50ms - increase DB connections")
		}
		if errors, ok := events["errors"].(int64); ok && errors > 0 {
			rec.IncreaseDBConnections = true
			rec.Notes = append(rec.Notes, "Event write errors detected - check the database")
		}
	}

	// Check WebSocket backpressure
	if ws, ok := snapshot["websocket"].(map[string]interface{}); ok {
		if dropped, ok := ws["dropped"].(int64); ok && dropped > 0 {
			rec.IncreaseBroadcastBuffer = true
			rec.Notes = append(rec.Notes, "Broadcasts were dropped - increase the client send buffer")
		}
	}

	return rec
}

// ApplyRecommendations modifies config based on recommendations.
func ApplyRecommendations(config *Config, rec *Recommendations) *Config {
	if rec.IncreaseBroadcastBuffer {
		config.BroadcastChannelBuffer *= 2
		config.ClientSendBuffer *= 2
	}
	if rec.IncreaseDBConnections {
		config.DBMaxOpenConns = int(float64(config.DBMaxOpenConns) * 1.5)
		config.DBMaxIdleConns = int(float64(config.DBMaxIdleConns) * 1.5)
	}
	return config
}

// Monitor logs recommendations every interval until ctx is done.
// lifespan reports the lifespan of the current game.
func Monitor(ctx context.Context, interval time.Duration, lifespan func() time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rec := Analyze(metrics.Get().Snapshot(), lifespan())
			for _, note := range rec.Notes {
				log.Warn("Tuning: " + note)
			}
		}
	}
}
