package guests

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wiktoriasw/Invitations/internal/events"
	"github.com/wiktoriasw/Invitations/internal/models"
)

const guestColumns = `g.id, g.uuid, g.event_id, g.name, g.surname, g.email, g.phone, g.answer, g.menu, g.comments,
	g.companion_id, g.created_at`

// Repository handles guest persistence. Event reads go through the event repository.
type Repository struct {
	pool   *pgxpool.Pool
	events *events.Repository
}

// NewRepository creates a guest repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, events: events.NewRepository(pool)}
}

func guestDest(g *models.Guest) []interface{} {
	return []interface{}{&g.ID, &g.UUID, &g.EventID, &g.Name, &g.Surname, &g.Email, &g.Phone,
		&g.Answer, &g.Menu, &g.Comments, &g.CompanionID, &g.CreatedAt}
}

func scanGuest(row pgx.Row) (*models.Guest, error) {
	var g models.Guest
	if err := row.Scan(guestDest(&g)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}

func collectGuests(rows pgx.Rows) ([]models.Guest, error) {
	defer rows.Close()
	list := []models.Guest{}
	for rows.Next() {
		g, err := scanGuest(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *g)
	}
	return list, rows.Err()
}

// GetEventByUUID returns the event guests are being added to, or nil when absent.
func (r *Repository) GetEventByUUID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return r.events.GetByUUID(ctx, id)
}

// Create inserts a guest. With withCompanion a blank companion row is inserted first in the
// same transaction and the guest's companion_id points at it.
func (r *Repository) Create(ctx context.Context, g *models.Guest, withCompanion bool) (*models.Guest, error) {
	const q = `INSERT INTO guests AS g (uuid, event_id, name, surname, email, phone, companion_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + guestColumns
	var companion *models.Guest
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		g.CompanionID = nil
		if withCompanion {
			c, err := scanGuest(tx.QueryRow(ctx, q, uuid.New(), g.EventID, "", "", "", "", nil))
			if err != nil {
				return fmt.Errorf("insert companion: %w", err)
			}
			companion = c
			g.CompanionID = &c.ID
		}
		created, err := scanGuest(tx.QueryRow(ctx, q, uuid.New(), g.EventID, g.Name, g.Surname, g.Email, g.Phone, g.CompanionID))
		if err != nil {
			return fmt.Errorf("insert guest: %w", err)
		}
		*g = *created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return companion, nil
}

// GetWithEvent returns a guest and its event in one round trip, or nils when absent.
func (r *Repository) GetWithEvent(ctx context.Context, id uuid.UUID) (*models.Guest, *models.Event, error) {
	q := `SELECT ` + guestColumns + `, ` + events.Columns("e") + `
		FROM guests g JOIN events e ON e.id = g.event_id WHERE g.uuid = $1`
	var g models.Guest
	var e models.Event
	dest := append(guestDest(&g), events.ScanDest(&e)...)
	if err := r.pool.QueryRow(ctx, q, id).Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return &g, &e, nil
}

// GetByUUID returns a guest, or nil when absent.
func (r *Repository) GetByUUID(ctx context.Context, id uuid.UUID) (*models.Guest, error) {
	return scanGuest(r.pool.QueryRow(ctx, `SELECT `+guestColumns+` FROM guests g WHERE g.uuid = $1`, id))
}

// GetByID returns a guest by internal id, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Guest, error) {
	return scanGuest(r.pool.QueryRow(ctx, `SELECT `+guestColumns+` FROM guests g WHERE g.id = $1`, id))
}

// FindPrimaryByCompanionID returns the guest whose companion_id is companionID, or nil.
func (r *Repository) FindPrimaryByCompanionID(ctx context.Context, companionID int64) (*models.Guest, error) {
	return scanGuest(r.pool.QueryRow(ctx, `SELECT `+guestColumns+` FROM guests g WHERE g.companion_id = $1 LIMIT 1`, companionID))
}

// List returns guests across all events ordered by id.
func (r *Repository) List(ctx context.Context, offset, limit int) ([]models.Guest, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+guestColumns+` FROM guests g ORDER BY g.id OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, err
	}
	return collectGuests(rows)
}

// ListByEvent returns a page of an event's guests ordered by id.
func (r *Repository) ListByEvent(ctx context.Context, eventID int64, offset, limit int) ([]models.Guest, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+guestColumns+` FROM guests g WHERE g.event_id = $1
		ORDER BY g.id OFFSET $2 LIMIT $3`, eventID, offset, limit)
	if err != nil {
		return nil, err
	}
	return collectGuests(rows)
}

// AllByEvent returns every guest of an event, companions included.
func (r *Repository) AllByEvent(ctx context.Context, eventID int64) ([]models.Guest, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+guestColumns+` FROM guests g WHERE g.event_id = $1 ORDER BY g.id`, eventID)
	if err != nil {
		return nil, err
	}
	return collectGuests(rows)
}

// ApplyAnswer stores an answer and, when DeclineCompanionID is set, forces that companion
// to decline, in one transaction.
func (r *Repository) ApplyAnswer(ctx context.Context, u AnswerUpdate) (*models.Guest, error) {
	const q = `UPDATE guests AS g SET answer = $1, menu = $2, comments = $3,
			name = COALESCE($4, g.name), surname = COALESCE($5, g.surname)
		WHERE g.id = $6
		RETURNING ` + guestColumns
	var updated *models.Guest
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if u.DeclineCompanionID != nil {
			if _, err := tx.Exec(ctx, `UPDATE guests SET answer = FALSE, menu = '', comments = '' WHERE id = $1`,
				*u.DeclineCompanionID); err != nil {
				return fmt.Errorf("decline companion: %w", err)
			}
		}
		g, err := scanGuest(tx.QueryRow(ctx, q, u.Answer, u.Menu, u.Comments, u.Name, u.Surname, u.GuestID))
		if err != nil {
			return fmt.Errorf("update answer: %w", err)
		}
		if g == nil {
			return ErrGuestNotFound
		}
		updated = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a guest atomically. A companion is first detached from its primary;
// a primary takes its companion row with it. It reports whether a companion was removed too.
func (r *Repository) Delete(ctx context.Context, guestID int64) (bool, error) {
	removedCompanion := false
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE guests SET companion_id = NULL WHERE companion_id = $1`, guestID); err != nil {
			return fmt.Errorf("detach primary: %w", err)
		}
		var companionID *int64
		err := tx.QueryRow(ctx, `DELETE FROM guests WHERE id = $1 RETURNING companion_id`, guestID).Scan(&companionID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrGuestNotFound
			}
			return fmt.Errorf("delete guest: %w", err)
		}
		if companionID != nil {
			if _, err := tx.Exec(ctx, `DELETE FROM guests WHERE id = $1`, *companionID); err != nil {
				return fmt.Errorf("delete companion: %w", err)
			}
			removedCompanion = true
		}
		return nil
	})
	return removedCompanion, err
}
