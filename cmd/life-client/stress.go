package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/conway-life/internal/network"
	"github.com/MRamiBalles/conway-life/internal/session"
)

// StressConfig drives the stress action.
type StressConfig struct {
	ServerURL      string
	NumClients     int
	ActionInterval time.Duration
	TestDuration   time.Duration
}

// StressStats tracks what the clients sent and received.
type StressStats struct {
	MessagesSent     int64
	MessagesReceived int64
	BytesReceived    int64
	Errors           int64
	Latencies        []time.Duration
	mu               sync.Mutex
}

// Saves and loads are left out: they need storage and would flood it.
var stressActions = []session.Action{
	session.ActionTogglePause,
	session.ActionTogglePause,
	session.ActionRestartGame,
	session.ActionNewGame,
}

func runStressTest(ctx context.Context, config StressConfig) *StressStats {
	ctx, cancel := context.WithTimeout(ctx, config.TestDuration)
	defer cancel()

	stats := &StressStats{
		Latencies: make([]time.Duration, 0, 10000),
	}

	var wg sync.WaitGroup
	fmt.Printf("Starting %d clients against %s for %v\n", config.NumClients, config.ServerURL, config.TestDuration)

	for i := 0; i < config.NumClients; i++ {
		wg.Add(1)
		go func(clientID int) {
			defer wg.Done()
			runStressClient(ctx, clientID, config, stats)
		}(i)

		// Stagger client starts to avoid thundering herd
		time.Sleep(10 * time.Millisecond)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Printf("Progress: sent=%d recv=%d errors=%d\n",
					atomic.LoadInt64(&stats.MessagesSent),
					atomic.LoadInt64(&stats.MessagesReceived),
					atomic.LoadInt64(&stats.Errors))
			}
		}
	}()

	wg.Wait()
	return stats
}

func runStressClient(ctx context.Context, clientID int, config StressConfig, stats *StressStats) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.ServerURL, nil)
	if err != nil {
		log.Printf("Client %d: connection failed: %v", clientID, err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			atomic.AddInt64(&stats.MessagesReceived, 1)
			atomic.AddInt64(&stats.BytesReceived, int64(len(data)))
		}
	}()

	ticker := time.NewTicker(config.ActionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msg := network.ActionMessage{Action: string(stressActions[rand.IntN(len(stressActions))])}
			start := time.Now()
			if err := conn.WriteJSON(msg); err != nil {
				if ctx.Err() == nil {
					atomic.AddInt64(&stats.Errors, 1)
				}
				return
			}
			atomic.AddInt64(&stats.MessagesSent, 1)

			stats.mu.Lock()
			stats.Latencies = append(stats.Latencies, time.Since(start))
			stats.mu.Unlock()
		}
	}
}

func printResults(stats *StressStats, config StressConfig) {
	sent := atomic.LoadInt64(&stats.MessagesSent)
	recv := atomic.LoadInt64(&stats.MessagesReceived)
	errs := atomic.LoadInt64(&stats.Errors)
	throughput := float64(sent) / config.TestDuration.Seconds()

	fmt.Println("=========================================")
	fmt.Printf("Messages sent:     %s\n", humanize.Comma(sent))
	fmt.Printf("Frames received:   %s (%s)\n", humanize.Comma(recv), humanize.Bytes(uint64(atomic.LoadInt64(&stats.BytesReceived))))
	fmt.Printf("Errors:            %d\n", errs)
	fmt.Printf("Error rate:        %.2f%%\n", float64(errs)/float64(sent+1)*100)
	fmt.Printf("Throughput:        %.2f msg/sec\n", throughput)

	stats.mu.Lock()
	if len(stats.Latencies) > 0 {
		var total time.Duration
		lo, hi := stats.Latencies[0], stats.Latencies[0]
		for _, l := range stats.Latencies {
			total += l
			lo = min(lo, l)
			hi = max(hi, l)
		}
		fmt.Printf("Write latency:     min %v avg %v max %v\n", lo, total/time.Duration(len(stats.Latencies)), hi)
	}
	stats.mu.Unlock()
	fmt.Println("=========================================")

	results := map[string]interface{}{
		"messages_sent":      sent,
		"messages_received":  recv,
		"errors":             errs,
		"throughput_per_sec": throughput,
		"config": map[string]interface{}{
			"clients":  config.NumClients,
			"interval": config.ActionInterval.String(),
			"duration": config.TestDuration.String(),
		},
	}
	jsonData, _ := json.MarshalIndent(results, "", "  ")
	if err := os.WriteFile("stress_test_results.json", jsonData, 0o644); err != nil {
		log.Printf("Failed to write results: %v", err)
		return
	}
	fmt.Println("Results saved to stress_test_results.json")
}
