package events

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wiktoriasw/Invitations/internal/models"
)

var columnNames = []string{"id", "uuid", "name", "description", "is_public", "start_time", "location", "menu",
	"decision_deadline", "organizer_id", "background_photo", "created_at"}

var eventColumns = Columns("")

// Columns lists the event columns in ScanDest order, qualified by alias when it is set.
func Columns(alias string) string {
	if alias == "" {
		return strings.Join(columnNames, ", ")
	}
	return alias + "." + strings.Join(columnNames, ", "+alias+".")
}

// ScanDest returns scan destinations for a row selected with Columns.
func ScanDest(e *models.Event) []interface{} {
	return []interface{}{&e.ID, &e.UUID, &e.Name, &e.Description, &e.IsPublic, &e.StartTime, &e.Location,
		&e.Menu, &e.DecisionDeadline, &e.OrganizerID, &e.BackgroundPhoto, &e.CreatedAt}
}

// Repository handles event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	if err := row.Scan(ScanDest(&e)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func collectEvents(rows pgx.Rows) ([]models.Event, error) {
	defer rows.Close()
	list := []models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// Create inserts an event with a fresh uuid and fills the generated columns.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (uuid, name, description, is_public, start_time, location, menu, decision_deadline, organizer_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, uuid, created_at`
	e.UUID = uuid.New()
	return r.pool.QueryRow(ctx, q, e.UUID, e.Name, e.Description, e.IsPublic, e.StartTime, e.Location,
		e.Menu, e.DecisionDeadline, e.OrganizerID).Scan(&e.ID, &e.UUID, &e.CreatedAt)
}

// GetByUUID returns an event, or nil when absent.
func (r *Repository) GetByUUID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE uuid = $1`, id))
}

// ListByOrganizer returns events organized by organizerID, soonest first.
func (r *Repository) ListByOrganizer(ctx context.Context, organizerID int64, offset, limit int) ([]models.Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM events WHERE organizer_id = $1
		ORDER BY start_time, id OFFSET $2 LIMIT $3`, organizerID, offset, limit)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// ListPublic returns public events, soonest first.
func (r *Repository) ListPublic(ctx context.Context, offset, limit int) ([]models.Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM events WHERE is_public
		ORDER BY start_time, id OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// Update stores every mutable column of e.
func (r *Repository) Update(ctx context.Context, e *models.Event) error {
	const q = `UPDATE events SET name = $1, description = $2, is_public = $3, start_time = $4, location = $5,
		menu = $6, decision_deadline = $7, background_photo = $8 WHERE id = $9`
	_, err := r.pool.Exec(ctx, q, e.Name, e.Description, e.IsPublic, e.StartTime, e.Location,
		e.Menu, e.DecisionDeadline, e.BackgroundPhoto, e.ID)
	return err
}

// DeleteCascade removes every guest of the event and then the event, atomically.
// Primary rows go before companions because they hold the companion_id reference.
func (r *Repository) DeleteCascade(ctx context.Context, eventID int64) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM guests WHERE event_id = $1 AND companion_id IS NOT NULL`, eventID); err != nil {
			return fmt.Errorf("delete primary guests: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM guests WHERE event_id = $1`, eventID); err != nil {
			return fmt.Errorf("delete guests: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, eventID)
		if err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrEventNotFound
		}
		return nil
	})
}
