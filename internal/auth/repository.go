package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wiktoriasw/Invitations/internal/models"
)

const userColumns = `id, uuid, email, password_hash, role, created_at`

// Repository handles user and reset-token persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var role string
	if err := row.Scan(&u.ID, &u.UUID, &u.Email, &u.PasswordHash, &role, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

// GetUserByID returns a user by internal id, or nil when absent.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetUserByUUID returns a user by external id, or nil when absent.
func (r *Repository) GetUserByUUID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE uuid = $1`, id))
}

// GetUserByEmail returns a user by email, or nil when absent.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// ListUsers returns users ordered by id.
func (r *Repository) ListUsers(ctx context.Context, offset, limit int) ([]models.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *u)
	}
	return list, rows.Err()
}

// CreateUser inserts a user with a fresh uuid.
func (r *Repository) CreateUser(ctx context.Context, email, passwordHash string, role models.Role) (*models.User, error) {
	const q = `INSERT INTO users (uuid, email, password_hash, role) VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, uuid.New(), email, passwordHash, string(role)))
}

// UpdatePassword stores a new password hash.
func (r *Repository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, userID)
	return err
}

// UpdateRole changes a user's role.
func (r *Repository) UpdateRole(ctx context.Context, userID int64, role models.Role) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET role = $1 WHERE id = $2`, string(role), userID)
	return err
}

// CreateResetToken inserts a reset token.
func (r *Repository) CreateResetToken(ctx context.Context, t *models.ResetPasswordToken) error {
	const q = `INSERT INTO forgot_password_token (token, user_id, expire_time) VALUES ($1, $2, $3)`
	_, err := r.pool.Exec(ctx, q, t.Token, t.UserID, t.ExpireTime)
	return err
}

// GetResetToken returns a reset token, or nil when absent.
func (r *Repository) GetResetToken(ctx context.Context, token string) (*models.ResetPasswordToken, error) {
	const q = `SELECT token, user_id, expire_time FROM forgot_password_token WHERE token = $1`
	var t models.ResetPasswordToken
	err := r.pool.QueryRow(ctx, q, token).Scan(&t.Token, &t.UserID, &t.ExpireTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// RedeemResetToken deletes the token and stores the new hash in one transaction.
// It returns ErrTokenConsumed when the token was already deleted by a concurrent redemption.
func (r *Repository) RedeemResetToken(ctx context.Context, token string, userID int64, passwordHash string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM forgot_password_token WHERE token = $1 AND user_id = $2`, token, userID)
		if err != nil {
			return fmt.Errorf("delete reset token: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrTokenConsumed
		}
		if _, err := tx.Exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, userID); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		return nil
	})
}

// DeleteUserCascade removes the user's reset tokens, the guests of every event they organize,
// those events and finally the user, atomically. It returns the background photo keys of the
// removed events so the caller can clean up object storage.
func (r *Repository) DeleteUserCascade(ctx context.Context, userID int64) ([]string, error) {
	var photos []string
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM forgot_password_token WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("delete reset tokens: %w", err)
		}
		// Primary rows reference companions, so they go first.
		if _, err := tx.Exec(ctx, `DELETE FROM guests WHERE companion_id IS NOT NULL
			AND event_id IN (SELECT id FROM events WHERE organizer_id = $1)`, userID); err != nil {
			return fmt.Errorf("delete primary guests: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM guests
			WHERE event_id IN (SELECT id FROM events WHERE organizer_id = $1)`, userID); err != nil {
			return fmt.Errorf("delete guests: %w", err)
		}
		rows, err := tx.Query(ctx, `DELETE FROM events WHERE organizer_id = $1 RETURNING background_photo`, userID)
		if err != nil {
			return fmt.Errorf("delete events: %w", err)
		}
		for rows.Next() {
			var photo *string
			if err := rows.Scan(&photo); err != nil {
				rows.Close()
				return err
			}
			if photo != nil && *photo != "" {
				photos = append(photos, *photo)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("delete events: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrUserGone
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return photos, nil
}
