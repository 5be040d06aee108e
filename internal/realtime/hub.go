package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wiktoriasw/Invitations/internal/models"
	"github.com/wiktoriasw/Invitations/pkg/metrics"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60

	EventStats         = "stats"
	EventGuestAnswered = "guest_answered"
)

// RSVPUpdate is the payload of a guest_answered message.
type RSVPUpdate struct {
	EventUUID uuid.UUID `json:"event_uuid"`
	GuestUUID uuid.UUID `json:"guest_uuid"`
	Name      string    `json:"name"`
	Surname   string    `json:"surname"`
	Answer    *bool     `json:"answer"`
	Menu      *string   `json:"menu"`
	Comments  *string   `json:"comments"`
	At        time.Time `json:"at"`
}

// Publisher publishes feed messages for every API instance.
type Publisher interface {
	PublishEventUpdate(ctx context.Context, eventID uuid.UUID, kind string, payload []byte) error
}

// Subscriber subscribes to an event's feed channel and invokes handler for incoming messages.
type Subscriber interface {
	SubscribeEvent(eventID uuid.UUID, handler func(kind string, payload []byte)) (cancel func(), err error)
}

// Hub maintains event_uuid -> set of organizer connections and broadcasts RSVP changes.
// With Redis configured, updates go through pub/sub so every instance delivers them exactly once.
type Hub struct {
	events map[uuid.UUID]map[string]*Client
	subs   map[uuid.UUID]func()
	mu     sync.RWMutex
	logger *zap.Logger
	pub    Publisher
	sub    Subscriber
}

// NewHub creates a live feed hub. pub and sub may be nil for a single instance.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		events: make(map[uuid.UUID]map[string]*Client),
		subs:   make(map[uuid.UUID]func()),
		logger: logger,
		pub:    pub,
		sub:    sub,
	}
}

// Register adds a client to an event room. The first client of a room starts its Redis subscription.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.events[c.EventID] == nil {
		h.events[c.EventID] = make(map[string]*Client)
		if h.sub != nil {
			eventID := c.EventID
			cancel, err := h.sub.SubscribeEvent(eventID, func(kind string, payload []byte) {
				h.Broadcast(eventID, kind, json.RawMessage(payload))
			})
			if err != nil {
				h.logger.Warn("live feed subscribe failed", zap.String("event_uuid", eventID.String()), zap.Error(err))
			} else {
				h.subs[eventID] = cancel
			}
		}
	}
	h.events[c.EventID][c.ID] = c
	h.mu.Unlock()
	metrics.LiveFeedClients.Inc()
	h.logger.Debug("organizer joined live feed", zap.String("client_id", c.ID), zap.String("event_uuid", c.EventID.String()))
}

// Unregister removes a client. The last client of a room cancels its Redis subscription.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	m, ok := h.events[c.EventID]
	if ok {
		if _, present := m[c.ID]; !present {
			h.mu.Unlock()
			return
		}
		delete(m, c.ID)
		close(c.send)
		if len(m) == 0 {
			delete(h.events, c.EventID)
			if cancel, ok := h.subs[c.EventID]; ok {
				cancel()
				delete(h.subs, c.EventID)
			}
		}
	}
	h.mu.Unlock()
	if ok {
		metrics.LiveFeedClients.Dec()
	}
	h.logger.Debug("organizer left live feed", zap.String("client_id", c.ID), zap.String("event_uuid", c.EventID.String()))
}

// Broadcast sends a message to the local clients of an event.
func (h *Hub) Broadcast(eventID uuid.UUID, kind string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return
		}
	}
	msg := WSMessage{Event: kind, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.events[eventID] {
		select {
		case c.send <- msg:
		default:
			// slow reader, drop
		}
	}
}

// Publish delivers a message to every instance: through Redis when configured, locally otherwise.
func (h *Hub) Publish(ctx context.Context, eventID uuid.UUID, kind string, payload interface{}) {
	if h.pub == nil {
		h.Broadcast(eventID, kind, payload)
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := h.pub.PublishEventUpdate(ctx, eventID, kind, data); err != nil {
		h.logger.Warn("live feed publish failed, delivering locally", zap.String("event_uuid", eventID.String()), zap.Error(err))
		h.Broadcast(eventID, kind, json.RawMessage(data))
	}
}

// GuestAnswered publishes a guest's stored RSVP to the event's organizers.
func (h *Hub) GuestAnswered(ctx context.Context, event *models.Event, g *models.Guest) {
	h.Publish(ctx, event.UUID, EventGuestAnswered, RSVPUpdate{
		EventUUID: event.UUID,
		GuestUUID: g.UUID,
		Name:      g.Name,
		Surname:   g.Surname,
		Answer:    g.Answer,
		Menu:      g.Menu,
		Comments:  g.Comments,
		At:        time.Now().UTC(),
	})
}

// ClientCount returns the number of organizers connected to an event on this instance.
func (h *Hub) ClientCount(eventID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.events[eventID])
}
