package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/seeit/report-server/internal/models"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Client messages.
const (
	MsgJoinRoom  = "join-room"
	MsgLeaveRoom = "leave-room"
)

// Server control events.
const (
	RoomJoined = "room:joined"
	RoomLeft   = "room:left"
	EventError = "error"
)

// TokenVerifier checks an officer token. Joining the police audience
// requires one.
type TokenVerifier interface {
	Verify(raw string) (*models.OfficerIdentity, error)
}

// ClientMessage is a control message sent by a websocket peer.
type ClientMessage struct {
	Type  string `json:"type"`
	Room  string `json:"room,omitempty"`
	Token string `json:"token,omitempty"`
}

// NewUpgrader returns a websocket upgrader accepting the given origins.
// An empty list or "*" accepts any origin.
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	_, wildcard := allowed["*"]
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || wildcard || len(allowed) == 0 {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

// Client is one websocket connection subscribed to the bus.
type Client struct {
	id       string
	conn     *websocket.Conn
	bus      *Bus
	verifier TokenVerifier
	logger   *zap.SugaredLogger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, bus *Bus, verifier TokenVerifier, logger *zap.SugaredLogger) *Client {
	return &Client{
		id:       uuid.NewString(),
		conn:     conn,
		bus:      bus,
		verifier: verifier,
		logger:   logger,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
	}
}

// ID implements Subscriber.
func (c *Client) ID() string { return c.id }

// Deliver queues event for writing. A full buffer drops the event.
func (c *Client) Deliver(event Event) bool {
	data, err := json.Marshal(event)
	if err != nil {
		c.logger.Errorw("Failed to marshal event", "event", event.Name, "error", err)
		return false
	}
	select {
	case <-c.done:
		return false
	case c.send <- data:
		return true
	default:
		c.logger.Warnw("Subscriber buffer full, dropping event", "client", c.id, "event", event.Name)
		return false
	}
}

// Run pumps the connection until the peer goes away. It blocks.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// close is safe to call from both pumps. The bus membership is dropped on
// every call, after done is closed, so a join racing a close cannot leave a
// dead subscriber registered.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
	c.bus.Leave(c)
}

func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debugw("Websocket read failed", "client", c.id, "error", err)
			}
			return
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg ClientMessage) {
	switch msg.Type {
	case MsgJoinRoom:
		audience, ok := ParseAudience(msg.Room)
		if !ok {
			c.reject("unknown room")
			return
		}
		if audience == Police {
			if _, err := c.verifier.Verify(msg.Token); err != nil {
				c.reject("police room requires a valid officer token")
				return
			}
		}
		if err := c.bus.Join(audience, c); err != nil {
			c.reject(err.Error())
			return
		}
		select {
		case <-c.done:
			c.bus.Leave(c)
			return
		default:
		}
		c.logger.Debugw("Subscriber joined room", "client", c.id, "room", audience)
		c.Deliver(Event{Name: RoomJoined, Data: map[string]string{"room": string(audience)}})
	case MsgLeaveRoom:
		left := map[string]string{}
		if room, ok := c.bus.AudienceOf(c.id); ok {
			left["room"] = string(room)
		}
		c.bus.Leave(c)
		c.Deliver(Event{Name: RoomLeft, Data: left})
	default:
		c.reject("unknown message type")
	}
}

func (c *Client) reject(message string) {
	c.Deliver(Event{Name: EventError, Data: map[string]string{"message": message}})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
