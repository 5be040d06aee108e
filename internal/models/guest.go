package models

import (
	"time"

	"github.com/google/uuid"
)

// Guest is an invitee of an event. A primary guest points at its companion
// through CompanionID; the companion row itself has CompanionID == nil.
type Guest struct {
	ID          int64     `json:"-"`
	UUID        uuid.UUID `json:"uuid"`
	EventID     int64     `json:"-"`
	Name        string    `json:"name"`
	Surname     string    `json:"surname"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Answer      *bool     `json:"answer"`
	Menu        *string   `json:"menu"`
	Comments    *string   `json:"comments"`
	CompanionID *int64    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasCompanion reports whether the guest owns a companion row.
func (g *Guest) HasCompanion() bool {
	return g.CompanionID != nil
}

// Answered reports whether the guest has answered yet.
func (g *Guest) Answered() bool {
	return g.Answer != nil
}

// Declined reports whether the stored answer is exactly false.
func (g *Guest) Declined() bool {
	return g.Answer != nil && !*g.Answer
}
