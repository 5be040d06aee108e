package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a user's platform role.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is a registered account. ID is internal; UUID is the external identifier.
type User struct {
	ID           int64     `json:"-"`
	UUID         uuid.UUID `json:"uuid"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// ResetPasswordToken is a single-use password reset credential.
type ResetPasswordToken struct {
	Token      string    `json:"token"`
	UserID     int64     `json:"-"`
	ExpireTime time.Time `json:"expire_time"`
}

// Expired reports whether the token is past its expiry at now.
func (t *ResetPasswordToken) Expired(now time.Time) bool {
	return now.After(t.ExpireTime)
}
