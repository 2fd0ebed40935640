// Package main - life-client
// Command line companion of life-server: sends actions, watches generations
// and writes saved seeds to disk. The stress action load tests the hub.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
	"github.com/ncruces/go-strftime"

	"github.com/MRamiBalles/conway-life/internal/infra/storage"
	"github.com/MRamiBalles/conway-life/internal/network"
	"github.com/MRamiBalles/conway-life/internal/session"
)

// saveFileLayout names files written by -save-dir.
const saveFileLayout = "life-%Y%m%d-%H%M%S.json"

var actions = map[string]session.Action{
	"new":     session.ActionNewGame,
	"restart": session.ActionRestartGame,
	"toggle":  session.ActionTogglePause,
	"save":    session.ActionSaveGame,
	"load":    session.ActionLoadGame,
}

// attrFlag collects repeated -set key=value flags.
type attrFlag map[string]string

func (a attrFlag) String() string {
	parts := make([]string, 0, len(a))
	for k, v := range a {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (a attrFlag) Set(value string) error {
	k, v, ok := strings.Cut(value, "=")
	if !ok || k == "" {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	a[k] = v
	return nil
}

// envelope mirrors network.Message with the payload left undecoded.
type envelope struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

func main() {
	attrs := attrFlag{}
	serverURL := flag.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	action := flag.String("action", "watch", "watch, new, restart, toggle, save, load or stress")
	flag.Var(attrs, "set", "game attribute key=value for new and load, repeatable")
	savedID := flag.String("id", "", "saved game id for load")
	ascii := flag.Bool("ascii", false, "print every generation as text")
	count := flag.Int("count", 0, "generations to watch before exiting, 0 watches forever")
	saveDir := flag.String("save-dir", "", "directory receiving saved seeds")
	numClients := flag.Int("clients", 20, "stress: number of concurrent clients")
	interval := flag.Duration("interval", 250*time.Millisecond, "stress: action interval per client")
	duration := flag.Duration("duration", 30*time.Second, "stress: test duration")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		cancel()
	}()

	if *action == "stress" {
		cfg := StressConfig{
			ServerURL:      *serverURL,
			NumClients:     *numClients,
			ActionInterval: *interval,
			TestDuration:   *duration,
		}
		stats := runStressTest(ctx, cfg)
		printResults(stats, cfg)
		return
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, *serverURL, nil)
	if err != nil {
		log.Fatalf("Connection failed: %v", err)
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	w := &watcher{ascii: *ascii, saveDir: *saveDir, limit: *count}
	if *action != "watch" {
		a, ok := actions[*action]
		if !ok {
			log.Fatalf("Unknown action %q", *action)
		}
		msg := network.ActionMessage{Action: string(a), SavedGameID: *savedID}
		if len(attrs) > 0 {
			msg.Config = attrs
		}
		if err := conn.WriteJSON(msg); err != nil {
			log.Fatalf("Failed to send %s: %v", a, err)
		}
		w.awaitReply = true
	}

	if err := w.run(conn); err != nil && ctx.Err() == nil {
		log.Fatalf("Connection closed: %v", err)
	}
}

type watcher struct {
	ascii      bool
	saveDir    string
	limit      int
	awaitReply bool

	seen int
}

// run reads batched frames until the watch is over.
func (w *watcher) run(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		for _, line := range bytes.Split(data, []byte{'\n'}) {
			var msg envelope
			if err := json.Unmarshal(line, &msg); err != nil {
				log.Printf("Skipping malformed message: %v", err)
				continue
			}
			done, err := w.handle(msg)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

func (w *watcher) handle(msg envelope) (done bool, err error) {
	switch msg.Type {
	case network.MsgTypeGeneration:
		var info session.GenerationInfo
		if err := json.Unmarshal(msg.Payload, &info); err != nil {
			return false, err
		}
		w.printGeneration(info)
		w.seen++
		// A command without -count exits on its reply.
		return w.limit > 0 && w.seen >= w.limit && !w.awaitReply, nil

	case network.MsgTypeEvent:
		var e struct {
			Type       string `json:"type"`
			ActorID    string `json:"actor_id"`
			Generation int    `json:"generation"`
		}
		if err := json.Unmarshal(msg.Payload, &e); err == nil {
			fmt.Printf("event %s by %s at generation %s\n", e.Type, e.ActorID, humanize.Comma(int64(e.Generation)))
		}

	case network.MsgTypeAck:
		var res session.Result
		if err := json.Unmarshal(msg.Payload, &res); err != nil {
			return false, err
		}
		fmt.Printf("game %s is %s\n", res.GameID, res.State)
		for _, c := range res.Corrections {
			fmt.Printf("  corrected %s: %q -> %q\n", c.PropName, c.Provided, c.Applied)
		}
		return w.replyDone(), nil

	case network.MsgTypeSaved:
		var saved storage.SavedGame
		if err := json.Unmarshal(msg.Payload, &saved); err != nil {
			return false, err
		}
		fmt.Printf("saved %s (%dx%d) of game %s\n", saved.ID, saved.Cols, saved.Rows, saved.GameID)
		if w.saveDir != "" {
			path, err := writeSave(w.saveDir, msg.Payload, time.Now())
			if err != nil {
				return false, err
			}
			fmt.Printf("  written to %s\n", path)
		}
		return w.replyDone(), nil

	case network.MsgTypeError:
		var e network.ErrorPayload
		json.Unmarshal(msg.Payload, &e)
		fmt.Fprintf(os.Stderr, "error: %s %s\n", e.Action, e.Message)
		return w.awaitReply, nil
	}
	return false, nil
}

// replyDone reports whether the command is answered and nothing more is to be watched.
func (w *watcher) replyDone() bool {
	if !w.awaitReply {
		return false
	}
	w.awaitReply = false
	return w.limit == 0 || w.seen >= w.limit
}

func (w *watcher) printGeneration(info session.GenerationInfo) {
	status := "alive"
	if info.IsExtinct {
		status = "extinct"
	}
	fmt.Printf("game %s generation %s: %s live cells, %s\n",
		info.GameID, humanize.Comma(int64(info.GenerationCount)),
		humanize.Comma(int64(info.Population.LiveCount())), status)
	if w.ascii {
		fmt.Println(info.Population.String())
	}
}

// writeSave stores a saved game payload under dir with a timestamped name.
func writeSave(dir string, payload []byte, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, strftime.Format(saveFileLayout, now))
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, payload, "", "  "); err != nil {
		return "", err
	}
	return path, os.WriteFile(path, pretty.Bytes(), 0o644)
}
