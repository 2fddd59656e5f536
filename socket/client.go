package socket

import (
	"encoding/json"
	"net/http"
	"time"

	"coedit/internal/document/model"
	"coedit/middleware"
	"coedit/pkg/logger"
	"coedit/pkg/metrics"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CheckOrigin allows the dev frontend to connect cross-origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one authenticated websocket connection. Identity fields are
// fixed at upgrade time; session fields (DocID, Color, Permission) belong
// to the read pump goroutine and change only on join, leave and disconnect.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	ID       string // connection id
	UserID   string
	Username string
	Email    string

	DocID      string
	Color      string
	Permission model.Permission

	Send chan []byte
}

func (c *Client) participant() Participant {
	return Participant{UserID: c.UserID, Username: c.Username, Color: c.Color}
}

// deliver queues a frame for the write pump, dropping it if the client has
// stopped draining its buffer. Dead connections are reaped by the pumps.
func (c *Client) deliver(frame []byte) {
	select {
	case c.Send <- frame:
	default:
		logger.Sugar.Warnf("Client %s's send buffer is full, dropping frame", c.UserID)
	}
}

// ServeWs upgrades an already-authenticated request. The auth middleware
// runs before this, so an unauthenticated connection never reaches a room.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, ident middleware.Identity) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		ID:       ulid.Make().String(),
		UserID:   ident.UserID,
		Username: ident.Username,
		Email:    ident.Email,
		Send:     make(chan []byte, 256),
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		// This runs on graceful close and abrupt network loss alike, so
		// roster cleanup never depends on an application-level leave.
		c.hub.Disconnect(c)
		c.conn.Close()
	}()

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Warnf("Read error on conn %s: %v", c.ID, err)
			}
			break
		}

		var env Envelope
		if err := json.Unmarshal(rawMessage, &env); err != nil {
			logger.Sugar.Warnf("Dropping unparseable frame from conn %s: %v", c.ID, err)
			metrics.DroppedEvents.WithLabelValues("malformed").Inc()
			continue
		}

		c.hub.Dispatch(c, env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second) // Ping every 30s to detect dead peers
	defer ticker.Stop()

	for {
		select {
		case message := <-c.Send:
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
