package network

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/MRamiBalles/conway-life/internal/events"
	"github.com/MRamiBalles/conway-life/internal/platform/logger"
	"github.com/MRamiBalles/conway-life/internal/platform/metrics"
	"github.com/MRamiBalles/conway-life/internal/platform/optimization"
	"github.com/MRamiBalles/conway-life/internal/session"
)

// Message types sent to clients.
const (
	MsgTypeGeneration = "generation"
	MsgTypeEvent      = "event"
	MsgTypeAck        = "ack"
	MsgTypeSaved      = "saved"
	MsgTypeError      = "error"
)

// Message is the envelope of everything written to a WebSocket.
type Message struct {
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// Dispatcher executes client actions.
type Dispatcher interface {
	HandleAction(ctx context.Context, req session.Request) (session.Result, error)
	LastGeneration() (session.GenerationInfo, bool)
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.Mutex
	logger     *logger.Logger
	tuning     *optimization.Config
	dispatcher Dispatcher
	done       chan struct{}
}

// NewHub initializes a new WebSocket Hub.
func NewHub(dispatcher Dispatcher, tuning *optimization.Config, log *logger.Logger) *Hub {
	if tuning == nil {
		tuning = optimization.DefaultConfig()
	}
	return &Hub{
		broadcast:  make(chan []byte, tuning.BroadcastChannelBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     log,
		tuning:     tuning,
		dispatcher: dispatcher,
		done:       make(chan struct{}),
	}
}

// Run starts the Hub's main loop to handle client connections and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.closeSend()
			}
			h.mu.Unlock()
			h.logger.Info("WebSocket Hub shutting down.")
			return
		case client := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= h.tuning.MaxClients {
				h.mu.Unlock()
				h.logger.Warn("Client limit reached, refusing " + client.id)
				client.closeSend()
				continue
			}
			h.clients[client] = true
			h.mu.Unlock()
			metrics.Get().RecordWSConnection(1)
			h.logger.Info("New WebSocket client connected: " + client.id)
			h.sendLatest(client)
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
				metrics.Get().RecordWSConnection(-1)
				h.logger.Info("WebSocket client disconnected: " + client.id)
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				// A slow client misses frames instead of stalling the others.
				if client.trySend(message) {
					metrics.Get().RecordWSMessage(false)
				} else {
					metrics.Get().RecordWSDropped()
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// sendLatest gives a new client the current frame without waiting for the next generation.
func (h *Hub) sendLatest(c *Client) {
	if h.dispatcher == nil {
		return
	}
	if info, ok := h.dispatcher.LastGeneration(); ok {
		c.enqueue(newMessage(MsgTypeGeneration, info))
	}
}

// BroadcastGeneration sends a generation to every client. It never blocks:
// when the hub is backed up the generation is dropped.
func (h *Hub) BroadcastGeneration(info session.GenerationInfo) {
	h.publish(newMessage(MsgTypeGeneration, info))
}

// BroadcastEvent takes a GameEvent, serializes it to JSON, and sends it to all connected clients.
func (h *Hub) BroadcastEvent(event events.GameEvent) {
	h.publish(newMessage(MsgTypeEvent, event))
}

func (h *Hub) publish(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Errorf("Failed to serialize %s message for WebSocket broadcast: %v", msg.Type, err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		metrics.Get().RecordWSDropped()
	}
}

// StartEventPoller spawns a goroutine to poll the EventLog and push new events to the Hub.
// This allows the Hub to run independently from the session while picking up the same events.
func (h *Hub) StartEventPoller(ctx context.Context, eventLog *events.EventLog) {
	go func() {
		pollInterval := time.NewTicker(h.tuning.EventPollInterval)
		defer pollInterval.Stop()

		lastProcessedEvent := eventLog.Len()

		for {
			select {
			case <-ctx.Done():
				return
			case <-pollInterval.C:
				newEvents := eventLog.Since(lastProcessedEvent)
				for _, event := range newEvents {
					h.BroadcastEvent(event)
				}
				lastProcessedEvent += len(newEvents)
			}
		}
	}()
}

func newMessage(msgType string, payload interface{}) Message {
	return Message{Type: msgType, Timestamp: time.Now().UnixMilli(), Payload: payload}
}
