// Package metrics provides observability for the game server.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers performance metrics.
type Collector struct {
	// Generation metrics
	Generations    int64
	StepCount      int64
	StepLatencySum int64 // nanoseconds
	StepLatencyMax int64
	LastGeneration time.Time

	// Lifecycle metrics
	GamesStarted int64
	Extinctions  int64
	Restarts     int64
	Pauses       int64
	Resumes      int64
	Saves        int64

	// Event metrics
	EventsWritten    int64
	EventWriteLatSum int64
	EventWriteLatMax int64
	EventWriteErrors int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64
	WSErrors            int64
	WSDropped           int64

	// System
	StartTime time.Time
	mu        sync.RWMutex
}

// Global collector instance
var collector = &Collector{
	StartTime: time.Now(),
}

// Get returns the global collector.
func Get() *Collector {
	return collector
}

func storeMax(addr *int64, v int64) {
	for {
		cur := atomic.LoadInt64(addr)
		if v <= cur || atomic.CompareAndSwapInt64(addr, cur, v) {
			return
		}
	}
}

// RecordGeneration records an emitted generation.
func (c *Collector) RecordGeneration() {
	atomic.AddInt64(&c.Generations, 1)

	c.mu.Lock()
	c.LastGeneration = time.Now()
	c.mu.Unlock()
}

// RecordStep records the time spent computing a next generation.
func (c *Collector) RecordStep(latency time.Duration) {
	atomic.AddInt64(&c.StepCount, 1)
	atomic.AddInt64(&c.StepLatencySum, int64(latency))
	storeMax(&c.StepLatencyMax, int64(latency))
}

// RecordExtinction records a game reaching extinction.
func (c *Collector) RecordExtinction() { atomic.AddInt64(&c.Extinctions, 1) }

// RecordRestart records a seed replay.
func (c *Collector) RecordRestart() { atomic.AddInt64(&c.Restarts, 1) }

// RecordPause records a pause.
func (c *Collector) RecordPause() { atomic.AddInt64(&c.Pauses, 1) }

// RecordResume records a resume.
func (c *Collector) RecordResume() { atomic.AddInt64(&c.Resumes, 1) }

// RecordSave records a save request that produced a snapshot.
func (c *Collector) RecordSave() { atomic.AddInt64(&c.Saves, 1) }

// RecordGameStarted records a new engine instance.
func (c *Collector) RecordGameStarted() { atomic.AddInt64(&c.GamesStarted, 1) }

// RecordEventWrite records an event write to the database.
func (c *Collector) RecordEventWrite(latency time.Duration, err error) {
	atomic.AddInt64(&c.EventsWritten, 1)
	atomic.AddInt64(&c.EventWriteLatSum, int64(latency))
	storeMax(&c.EventWriteLatMax, int64(latency))

	if err != nil {
		atomic.AddInt64(&c.EventWriteErrors, 1)
	}
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		atomic.AddInt64(&c.WSMessagesIn, 1)
	} else {
		atomic.AddInt64(&c.WSMessagesOut, 1)
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// RecordWSDropped records a broadcast dropped because a buffer was full.
func (c *Collector) RecordWSDropped() {
	atomic.AddInt64(&c.WSDropped, 1)
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	steps := atomic.LoadInt64(&c.StepCount)
	eventsWritten := atomic.LoadInt64(&c.EventsWritten)

	// Calculate averages
	var stepAvg, eventAvg float64
	if steps > 0 {
		stepAvg = float64(atomic.LoadInt64(&c.StepLatencySum)) / float64(steps) / 1e6 // ms
	}
	if eventsWritten > 0 {
		eventAvg = float64(atomic.LoadInt64(&c.EventWriteLatSum)) / float64(eventsWritten) / 1e6
	}

	lastGeneration := ""
	if !c.LastGeneration.IsZero() {
		lastGeneration = c.LastGeneration.Format(time.RFC3339)
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"generation": map[string]interface{}{
			"emitted":             atomic.LoadInt64(&c.Generations),
			"steps":               steps,
			"avg_step_latency_ms": stepAvg,
			"max_step_latency_ms": float64(atomic.LoadInt64(&c.StepLatencyMax)) / 1e6,
			"last_generation":     lastGeneration,
		},

		"lifecycle": map[string]interface{}{
			"games_started": atomic.LoadInt64(&c.GamesStarted),
			"extinctions":   atomic.LoadInt64(&c.Extinctions),
			"restarts":      atomic.LoadInt64(&c.Restarts),
			"pauses":        atomic.LoadInt64(&c.Pauses),
			"resumes":       atomic.LoadInt64(&c.Resumes),
			"saves":         atomic.LoadInt64(&c.Saves),
		},

		"events": map[string]interface{}{
			"written":          eventsWritten,
			"avg_write_lat_ms": eventAvg,
			"max_write_lat_ms": float64(atomic.LoadInt64(&c.EventWriteLatMax)) / 1e6,
			"errors":           atomic.LoadInt64(&c.EventWriteErrors),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_in":        atomic.LoadInt64(&c.WSMessagesIn),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
			"dropped":            atomic.LoadInt64(&c.WSDropped),
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")

		snapshot := collector.Snapshot()
		json.NewEncoder(w).Encode(snapshot)
	}
}

// PrometheusHandler returns metrics in Prometheus format.
func PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		c := collector

		// Generation metrics
		fmt.Fprintf(w, "# HELP life_generations_total Total generations emitted\n")
		fmt.Fprintf(w, "# TYPE life_generations_total counter\n")
		fmt.Fprintf(w, "life_generations_total %d\n\n", atomic.LoadInt64(&c.Generations))

		fmt.Fprintf(w, "# HELP life_step_latency_max_ms Maximum next-generation compute latency\n")
		fmt.Fprintf(w, "# TYPE life_step_latency_max_ms gauge\n")
		fmt.Fprintf(w, "life_step_latency_max_ms %.3f\n\n", float64(atomic.LoadInt64(&c.StepLatencyMax))/1e6)

		// Lifecycle metrics
		fmt.Fprintf(w, "# HELP life_lifecycle_total Engine lifecycle transitions\n")
		fmt.Fprintf(w, "# TYPE life_lifecycle_total counter\n")
		fmt.Fprintf(w, "life_lifecycle_total{kind=\"started\"} %d\n", atomic.LoadInt64(&c.GamesStarted))
		fmt.Fprintf(w, "life_lifecycle_total{kind=\"extinct\"} %d\n", atomic.LoadInt64(&c.Extinctions))
		fmt.Fprintf(w, "life_lifecycle_total{kind=\"restart\"} %d\n", atomic.LoadInt64(&c.Restarts))
		fmt.Fprintf(w, "life_lifecycle_total{kind=\"pause\"} %d\n", atomic.LoadInt64(&c.Pauses))
		fmt.Fprintf(w, "life_lifecycle_total{kind=\"resume\"} %d\n", atomic.LoadInt64(&c.Resumes))
		fmt.Fprintf(w, "life_lifecycle_total{kind=\"save\"} %d\n\n", atomic.LoadInt64(&c.Saves))

		// Event metrics
		fmt.Fprintf(w, "# HELP life_events_written Total events written\n")
		fmt.Fprintf(w, "# TYPE life_events_written counter\n")
		fmt.Fprintf(w, "life_events_written %d\n\n", atomic.LoadInt64(&c.EventsWritten))

		fmt.Fprintf(w, "# HELP life_event_write_errors Total event write errors\n")
		fmt.Fprintf(w, "# TYPE life_event_write_errors counter\n")
		fmt.Fprintf(w, "life_event_write_errors %d\n\n", atomic.LoadInt64(&c.EventWriteErrors))

		// WebSocket metrics
		fmt.Fprintf(w, "# HELP life_ws_connections Active WebSocket connections\n")
		fmt.Fprintf(w, "# TYPE life_ws_connections gauge\n")
		fmt.Fprintf(w, "life_ws_connections %d\n\n", atomic.LoadInt64(&c.WSConnectionsActive))

		fmt.Fprintf(w, "# HELP life_ws_messages_total Total WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE life_ws_messages_total counter\n")
		fmt.Fprintf(w, "life_ws_messages_total{direction=\"in\"} %d\n", atomic.LoadInt64(&c.WSMessagesIn))
		fmt.Fprintf(w, "life_ws_messages_total{direction=\"out\"} %d\n\n", atomic.LoadInt64(&c.WSMessagesOut))

		fmt.Fprintf(w, "# HELP life_ws_dropped_total Broadcasts dropped on full buffers\n")
		fmt.Fprintf(w, "# TYPE life_ws_dropped_total counter\n")
		fmt.Fprintf(w, "life_ws_dropped_total %d\n", atomic.LoadInt64(&c.WSDropped))
	}
}
