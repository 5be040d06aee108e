package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wiktoriasw/Invitations/internal/events"
	"github.com/wiktoriasw/Invitations/internal/middleware"
	"github.com/wiktoriasw/Invitations/internal/models"
	"github.com/wiktoriasw/Invitations/pkg/response"
)

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// StatsSource returns an organizer's event statistics; it fails for anyone else.
type StatsSource interface {
	Stats(ctx context.Context, requester *models.User, id uuid.UUID) (events.Stats, error)
}

// Client represents one organizer connection to an event's live feed.
type Client struct {
	ID       string
	EventID  uuid.UUID
	UserID   uuid.UUID
	JoinedAt time.Time
	hub      *Hub
	conn     *websocket.Conn
	send     chan WSMessage
	logger   *zap.Logger
}

// NewClient builds an unconnected client; ServeLive attaches the socket.
func NewClient(hub *Hub, eventID, userID uuid.UUID) *Client {
	return &Client{
		ID:       uuid.New().String(),
		EventID:  eventID,
		UserID:   userID,
		JoinedAt: time.Now(),
		hub:      hub,
		send:     make(chan WSMessage, 256),
		logger:   hub.logger,
	}
}

// Messages exposes the client's outgoing queue.
func (c *Client) Messages() <-chan WSMessage { return c.send }

// ServeLive handles GET /events/:uuid/live?token=... Browsers cannot set headers on a
// WebSocket handshake, so the bearer token travels in the query string.
func ServeLive(hub *Hub, resolver middleware.PrincipalResolver, stats StatsSource, origins middleware.OriginPolicy, logger *zap.Logger) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return origins.Allows(r.Header.Get("Origin"))
		},
	}
	return func(c *gin.Context) {
		eventID, err := uuid.Parse(c.Param("uuid"))
		if err != nil {
			response.Error(c, events.ErrEventNotFound)
			return
		}
		token := c.Query("token")
		if token == "" {
			token, _ = middleware.BearerToken(c.GetHeader("Authorization"))
		}
		if token == "" {
			response.Unauthorized(c, "not authenticated")
			return
		}
		user, err := resolver.ResolvePrincipal(c.Request.Context(), token)
		if err != nil {
			response.Error(c, err)
			return
		}
		snapshot, err := stats.Stats(c.Request.Context(), user, eventID)
		if err != nil {
			response.Error(c, err)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := NewClient(hub, eventID, user.UUID)
		client.conn = conn
		client.logger = logger
		hub.Register(client)
		if data, err := json.Marshal(snapshot); err == nil {
			client.send <- WSMessage{Event: EventStats, Data: data}
		}
		go client.writePump()
		client.readPump()
	}
}

// readPump only services control frames; the feed is one-way.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("live feed read", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
