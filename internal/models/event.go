package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MenuSeparator splits Event.Menu into its options.
const MenuSeparator = ";"

// Event is an RSVP-able occasion owned by its organizer.
type Event struct {
	ID               int64     `json:"-"`
	UUID             uuid.UUID `json:"uuid"`
	Name             string    `json:"name"`
	Description      *string   `json:"description"`
	IsPublic         bool      `json:"is_public"`
	StartTime        time.Time `json:"start_time"`
	Location         string    `json:"location"`
	Menu             string    `json:"menu"`
	DecisionDeadline time.Time `json:"decision_deadline"`
	OrganizerID      int64     `json:"-"`
	BackgroundPhoto  *string   `json:"background_photo"`
	CreatedAt        time.Time `json:"created_at"`
}

// MenuOptions returns the semicolon-delimited menu as a slice.
func (e *Event) MenuOptions() []string {
	return strings.Split(e.Menu, MenuSeparator)
}

// HasMenuOption reports whether opt exactly matches one of the menu options.
func (e *Event) HasMenuOption(opt string) bool {
	for _, o := range e.MenuOptions() {
		if o == opt {
			return true
		}
	}
	return false
}

// DeadlinePassed reports whether answers are closed at now.
func (e *Event) DeadlinePassed(now time.Time) bool {
	return e.DecisionDeadline.Before(now)
}

// OrganizedBy reports whether u organizes the event.
func (e *Event) OrganizedBy(u *User) bool {
	return u != nil && e.OrganizerID == u.ID
}
