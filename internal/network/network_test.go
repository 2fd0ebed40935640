package network

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/conway-life/internal/events"
	"github.com/MRamiBalles/conway-life/internal/platform/logger"
	"github.com/MRamiBalles/conway-life/internal/platform/metrics"
	"github.com/MRamiBalles/conway-life/internal/platform/optimization"
	"github.com/MRamiBalles/conway-life/internal/session"
)

// Generations are a minute apart so nothing but the actions under test emits.
var quietGame = map[string]string{
	"cols":                  "10",
	"rows":                  "6",
	"population-percentage": "50",
	"generation-lifespan":   "60000",
	"restart-interval":      "0",
}

type testServer struct {
	*httptest.Server
	session *session.Manager
	hub     *Hub
}

func newTestServer(t *testing.T, tuning *optimization.Config) *testServer {
	t.Helper()
	log := logger.Discard()
	el := events.NewEventLog(nil)
	s := session.NewManager(session.Options{Logger: log, EventLog: el})
	hub := NewHub(s, tuning, log)
	s.SetBroadcaster(hub)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	hub.StartEventPoller(ctx, el)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWs)
	NewGameAPI(s, log).RegisterRoutes(mux)
	NewReplayHandler(el, nil, log).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		s.Close()
	})
	return &testServer{Server: srv, session: s, hub: hub}
}

// wsReader splits batched frames into individual messages.
type wsReader struct {
	t       *testing.T
	conn    *websocket.Conn
	pending []Message
}

func (ts *testServer) dial(t *testing.T) *wsReader {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &wsReader{t: t, conn: conn}
}

func (r *wsReader) send(msg ActionMessage) {
	r.t.Helper()
	if err := r.conn.WriteJSON(msg); err != nil {
		r.t.Fatalf("WriteJSON failed: %v", err)
	}
}

// next returns the oldest message of type msgType. Messages of other types
// stay queued for later calls.
func (r *wsReader) next(msgType string) Message {
	r.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		for i, m := range r.pending {
			if m.Type == msgType {
				r.pending = append(r.pending[:i], r.pending[i+1:]...)
				return m
			}
		}
		r.conn.SetReadDeadline(deadline)
		_, data, err := r.conn.ReadMessage()
		if err != nil {
			r.t.Fatalf("Waiting for %s: %v", msgType, err)
		}
		for _, line := range bytes.Split(data, []byte{'\n'}) {
			var m Message
			if err := json.Unmarshal(line, &m); err != nil {
				r.t.Fatalf("Invalid message %q: %v", line, err)
			}
			r.pending = append(r.pending, m)
		}
	}
}

func field(t *testing.T, m Message, key string) interface{} {
	t.Helper()
	payload, ok := m.Payload.(map[string]interface{})
	if !ok {
		t.Fatalf("Unexpected payload %T", m.Payload)
	}
	return payload[key]
}

func TestWebSocketActions(t *testing.T) {
	ts := newTestServer(t, nil)
	if _, err := ts.session.NewGame(quietGame, ""); err != nil {
		t.Fatalf("NewGame failed: %v", err)
	}

	ws := ts.dial(t)
	first := ws.next(MsgTypeGeneration)
	if got := field(t, first, "generationCount"); got != 1.0 {
		t.Errorf("Expected the current generation on connect, got %v", got)
	}

	ws.send(ActionMessage{Action: "toggle-game-pause"})
	ack := ws.next(MsgTypeAck)
	if got := field(t, ack, "state"); got != "paused" {
		t.Errorf("Expected paused ack, got %v", got)
	}

	ws.send(ActionMessage{Action: "toggle-game-pause"})
	resumed := ws.next(MsgTypeGeneration)
	if field(t, resumed, "generationCount") == 1.0 {
		// The connect frame can race the first broadcast.
		resumed = ws.next(MsgTypeGeneration)
	}
	if got := field(t, resumed, "generationCount"); got != 2.0 {
		t.Errorf("Expected resume to broadcast generation 2, got %v", got)
	}

	ws.send(ActionMessage{Action: "save-game"})
	saved := ws.next(MsgTypeSaved)
	if field(t, saved, "seed") == "" {
		t.Errorf("Expected the seed in the saved message")
	}

	ws.send(ActionMessage{Action: "fly"})
	failed := ws.next(MsgTypeError)
	if got := field(t, failed, "action"); got != "fly" {
		t.Errorf("Expected error for fly, got %v", got)
	}

	event := ws.next(MsgTypeEvent)
	if field(t, event, "type") == "" {
		t.Errorf("Expected a game event to be pushed")
	}
}

func TestWebSocketNewGameBroadcasts(t *testing.T) {
	ts := newTestServer(t, nil)
	ws := ts.dial(t)

	ws.send(ActionMessage{Action: "new-game", Config: quietGame})
	gen := ws.next(MsgTypeGeneration)
	grid, ok := field(t, gen, "generation").([]interface{})
	if !ok || len(grid) != 6 {
		t.Fatalf("Expected a 6 row grid, got %v", field(t, gen, "generation"))
	}
	ack := ws.next(MsgTypeAck)
	if field(t, ack, "gameId") != field(t, gen, "gameId") {
		t.Errorf("Ack and broadcast refer to different games")
	}
}

func TestRateLimit(t *testing.T) {
	tuning := optimization.LowResourceConfig()
	tuning.MaxMessagesPerSecond = 2
	ts := newTestServer(t, tuning)
	ts.session.NewGame(quietGame, "")

	ws := ts.dial(t)
	for i := 0; i < 3; i++ {
		ws.send(ActionMessage{Action: "toggle-game-pause"})
	}
	failed := ws.next(MsgTypeError)
	if got := field(t, failed, "message"); got != "rate limit exceeded" {
		t.Errorf("Expected rate limit error, got %v", got)
	}
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	return body
}

func TestHTTPAPI(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, _ := http.Get(ts.URL + "/api/game/state")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 without a game, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	body, _ := json.Marshal(actionBody{Config: quietGame})
	resp, err := http.Post(ts.URL+"/api/game/new", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST new failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	decode(t, resp)

	resp, _ = http.Get(ts.URL + "/api/game/state")
	state := decode(t, resp)
	if state["state"] != "running" || state["generationCount"] != 1.0 {
		t.Errorf("Unexpected state %v", state)
	}

	resp, _ = http.Get(ts.URL + "/api/game/frame.png")
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Expected image/png, got %s", ct)
	}
	resp.Body.Close()

	resp, _ = http.Post(ts.URL+"/api/game/toggle-pause", "application/json", nil)
	result := decode(t, resp)["result"].(map[string]interface{})
	if result["state"] != "paused" {
		t.Errorf("Expected paused, got %v", result["state"])
	}

	resp, _ = http.Get(ts.URL + "/api/game/toggle-pause")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, _ = http.Get(ts.URL + "/api/saves")
	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("Expected 501 without storage, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, _ = http.Get(ts.URL + "/api/events?type=GAME_STARTED")
	replay := decode(t, resp)
	if replay["total_events"] != 1.0 || replay["source"] != "memory" {
		t.Errorf("Unexpected replay %v", replay)
	}

	resp, _ = http.Get(ts.URL + "/api/events?source=db&type=GAME_STARTED")
	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("Expected 501 for db replay without storage, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHTTPNewGameRejectsOversizedGrid(t *testing.T) {
	ts := newTestServer(t, nil)

	huge := map[string]string{"cols": "4096", "rows": "4096", "restart-interval": "0"}
	body, _ := json.Marshal(actionBody{Config: huge})
	resp, err := http.Post(ts.URL+"/api/game/new", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST new failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for a 4096x4096 grid, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	if _, err := ts.session.Status(); err == nil {
		t.Errorf("Expected no game to be started")
	}
}

func TestClientSendAfterClose(t *testing.T) {
	hub := NewHub(nil, nil, logger.Discard())
	c := NewClient(hub, nil)
	dropped := atomic.LoadInt64(&metrics.Get().WSDropped)

	c.closeSend()
	c.closeSend()
	c.reply(MsgTypeAck, nil)

	if got := atomic.LoadInt64(&metrics.Get().WSDropped) - dropped; got < 1 {
		t.Errorf("Expected the reply to be counted as dropped, got %d", got)
	}
	if c.trySend([]byte("{}")) {
		t.Errorf("Expected trySend to refuse a closed client")
	}
}

func TestClientConcurrentSendAndClose(t *testing.T) {
	hub := NewHub(nil, nil, logger.Discard())
	for i := 0; i < 50; i++ {
		c := NewClient(hub, nil)
		var wg sync.WaitGroup
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for k := 0; k < 20; k++ {
					c.reply(MsgTypeAck, nil)
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.closeSend()
		}()
		wg.Wait()

		for range c.send {
		}
	}
}
