package entities

import (
	"strings"
	"time"
)

// DayHours is a working window for a single weekday, as zero-padded "HH:MM" strings.
type DayHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// WorkingHours maps lowercase weekday names ("monday"..."sunday") to working windows.
// Weekdays absent from the map are non-working days.
type WorkingHours map[string]DayHours

// Doctor represents a bookable practitioner owned by a clinic account
type Doctor struct {
	ID               string       `json:"id" db:"id"`
	AccountID        string       `json:"account_id" db:"account_id"`
	Name             string       `json:"name" db:"name"`
	Specialization   string       `json:"specialization" db:"specialization"`
	Email            string       `json:"email" db:"email"`
	Phone            string       `json:"phone" db:"phone"`
	Bio              string       `json:"bio" db:"bio"`
	GoogleCalendarID string       `json:"google_calendar_id" db:"google_calendar_id"`
	WorkingHours     WorkingHours `json:"working_hours" db:"working_hours"`
	Active           bool         `json:"active" db:"active"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at" db:"updated_at"`
}

// DisplayName returns the doctor's name with specialization when set
func (d *Doctor) DisplayName() string {
	if d.Specialization != "" {
		return d.Name + " - " + d.Specialization
	}
	return d.Name
}

// AvailableAt reports whether the doctor can be booked at the given instant.
// A doctor without a working-hours template is always available. Otherwise the
// instant is resolved in the clinic timezone and compared against that
// weekday's window, boundaries inclusive. Zero-padded "HH:MM" strings compare
// correctly lexicographically.
func (d *Doctor) AvailableAt(t time.Time, loc *time.Location) bool {
	if len(d.WorkingHours) == 0 {
		return true
	}

	local := t.In(loc)
	day := strings.ToLower(local.Weekday().String())
	hours, ok := d.WorkingHours[day]
	if !ok {
		return false
	}

	clock := local.Format("15:04")
	return hours.Start <= clock && clock <= hours.End
}
