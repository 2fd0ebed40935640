package network

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/conway-life/internal/platform/metrics"
	"github.com/MRamiBalles/conway-life/internal/session"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 4096
	// Time allowed for one action to complete.
	actionTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ActionMessage is an incoming command from a client.
type ActionMessage struct {
	Action      string            `json:"action"`
	Config      map[string]string `json:"config,omitempty"`
	SavedGameID string            `json:"savedGameId,omitempty"`
}

// ErrorPayload is the payload of an error message.
type ErrorPayload struct {
	Action  string `json:"action,omitempty"`
	Message string `json:"message"`
}

// Client is an active WebSocket connection.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// sendMu orders sends against the close of send.
	sendMu sync.Mutex
	closed bool

	windowStart time.Time
	windowCount int
}

// NewClient creates a new WebSocket client and returns it.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		send: make(chan []byte, hub.tuning.ClientSendBuffer),
	}
}

// ID returns the identifier used as actor in game events.
func (c *Client) ID() string { return c.id }

// Register adds the client to the hub.
func (c *Client) Register() {
	select {
	case c.hub.register <- c:
	case <-c.hub.done:
		c.closeSend()
	}
}

// closeSend closes the send channel once. Later sends are dropped.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// trySend queues data without blocking. It reports false when the buffer is
// full or the client is gone.
func (c *Client) trySend(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// ServeWs upgrades the request and starts the client pumps.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		metrics.Get().RecordWSError()
		h.logger.Errorf("Failed to upgrade websocket connection: %v", err)
		return
	}

	client := NewClient(h, conn)
	client.Register()

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.WritePump()
	go client.ReadPump()
}

// ReadPump pumps actions from the websocket connection to the dispatcher.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				metrics.Get().RecordWSError()
				c.hub.logger.Errorf("WebSocket read error from %s: %v", c.id, err)
			}
			break
		}
		metrics.Get().RecordWSMessage(true)

		var action ActionMessage
		if err := json.Unmarshal(message, &action); err != nil {
			c.hub.logger.Warn("Failed to parse ActionMessage from " + c.id + ": " + err.Error())
			c.reply(MsgTypeError, ErrorPayload{Message: "invalid action message"})
			continue
		}

		c.handleAction(action)
	}
}

func (c *Client) handleAction(action ActionMessage) {
	// Rate limiting over a one second window
	now := time.Now()
	if now.Sub(c.windowStart) >= time.Second {
		c.windowStart = now
		c.windowCount = 0
	}
	c.windowCount++
	if c.windowCount > c.hub.tuning.MaxMessagesPerSecond {
		c.hub.logger.Warn("Rate limit exceeded for client " + c.id)
		c.reply(MsgTypeError, ErrorPayload{Action: action.Action, Message: "rate limit exceeded"})
		return
	}

	if c.hub.dispatcher == nil {
		c.reply(MsgTypeError, ErrorPayload{Action: action.Action, Message: "no game host"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	res, err := c.hub.dispatcher.HandleAction(ctx, session.Request{
		Action:      session.Action(action.Action),
		Config:      action.Config,
		SavedGameID: action.SavedGameID,
		ActorID:     c.id,
	})
	if err != nil {
		c.hub.logger.Warn("Action " + action.Action + " from " + c.id + " failed: " + err.Error())
		c.reply(MsgTypeError, ErrorPayload{Action: action.Action, Message: err.Error()})
		return
	}

	c.hub.logger.Event("CLIENT_ACTION", c.id, action.Action+" on game "+res.GameID)
	if res.Saved != nil {
		c.reply(MsgTypeSaved, res.Saved)
		return
	}
	c.reply(MsgTypeAck, res)
}

// reply queues a message for this client only.
func (c *Client) reply(msgType string, payload interface{}) {
	c.enqueue(newMessage(msgType, payload))
}

func (c *Client) enqueue(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.hub.logger.Errorf("Failed to serialize %s reply: %v", msg.Type, err)
		return
	}
	if c.trySend(data) {
		metrics.Get().RecordWSMessage(false)
	} else {
		metrics.Get().RecordWSDropped()
	}
}

// WritePump pumps messages from the hub to the websocket connection.
// Queued messages are batched into one frame, one JSON message per line.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				metrics.Get().RecordWSError()
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				metrics.Get().RecordWSError()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
