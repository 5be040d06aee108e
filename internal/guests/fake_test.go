package guests

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wiktoriasw/Invitations/internal/models"
)

// memStore is an in-memory Store with the same row semantics as the repository.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	events  map[int64]*models.Event
	guests  map[int64]*models.Guest
	applied []AnswerUpdate
}

func newMemStore() *memStore {
	return &memStore{events: map[int64]*models.Event{}, guests: map[int64]*models.Guest{}}
}

func (m *memStore) addEvent(organizerID int64, menu string, deadline time.Time) *models.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e := &models.Event{ID: m.nextID, UUID: uuid.New(), Name: "Party", Menu: menu, DecisionDeadline: deadline, OrganizerID: organizerID}
	m.events[e.ID] = e
	return e
}

func (m *memStore) GetEventByUUID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.UUID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) insert(g models.Guest) *models.Guest {
	m.nextID++
	g.ID = m.nextID
	g.UUID = uuid.New()
	g.CreatedAt = time.Now()
	m.guests[g.ID] = &g
	cp := g
	return &cp
}

func (m *memStore) Create(_ context.Context, g *models.Guest, withCompanion bool) (*models.Guest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var companion *models.Guest
	g.CompanionID = nil
	if withCompanion {
		companion = m.insert(models.Guest{EventID: g.EventID})
		g.CompanionID = &companion.ID
	}
	*g = *m.insert(*g)
	return companion, nil
}

func (m *memStore) GetWithEvent(_ context.Context, id uuid.UUID) (*models.Guest, *models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.guests {
		if g.UUID == id {
			gc, ec := *g, *m.events[g.EventID]
			return &gc, &ec, nil
		}
	}
	return nil, nil, nil
}

func (m *memStore) GetByUUID(_ context.Context, id uuid.UUID) (*models.Guest, error) {
	g, _, err := m.GetWithEvent(context.Background(), id)
	return g, err
}

func (m *memStore) GetByID(_ context.Context, id int64) (*models.Guest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.guests[id]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) FindPrimaryByCompanionID(_ context.Context, companionID int64) (*models.Guest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.guests {
		if g.CompanionID != nil && *g.CompanionID == companionID {
			cp := *g
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) List(_ context.Context, offset, limit int) ([]models.Guest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.guests))
	for id := range m.guests {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := []models.Guest{}
	for i, id := range ids {
		if i >= offset && len(out) < limit {
			out = append(out, *m.guests[id])
		}
	}
	return out, nil
}

func (m *memStore) ApplyAnswer(_ context.Context, u AnswerUpdate) (*models.Guest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applied = append(m.applied, u)
	if u.DeclineCompanionID != nil {
		if c, ok := m.guests[*u.DeclineCompanionID]; ok {
			no, empty := false, ""
			c.Answer, c.Menu, c.Comments = &no, &empty, &empty
		}
	}
	g, ok := m.guests[u.GuestID]
	if !ok {
		return nil, ErrGuestNotFound
	}
	answer := u.Answer
	g.Answer, g.Menu, g.Comments = &answer, u.Menu, u.Comments
	if u.Name != nil {
		g.Name = *u.Name
	}
	if u.Surname != nil {
		g.Surname = *u.Surname
	}
	cp := *g
	return &cp, nil
}

func (m *memStore) Delete(_ context.Context, guestID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.guests {
		if g.CompanionID != nil && *g.CompanionID == guestID {
			g.CompanionID = nil
		}
	}
	g, ok := m.guests[guestID]
	if !ok {
		return false, ErrGuestNotFound
	}
	delete(m.guests, guestID)
	if g.CompanionID != nil {
		delete(m.guests, *g.CompanionID)
		return true, nil
	}
	return false, nil
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	guests []uuid.UUID
}

func (r *recordingBroadcaster) GuestAnswered(_ context.Context, _ *models.Event, g *models.Guest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guests = append(r.guests, g.UUID)
}
