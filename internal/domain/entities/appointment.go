package entities

import (
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusNoShow    AppointmentStatus = "no_show"
)

// DefaultDurationMinutes is applied when a booking does not specify a duration
const DefaultDurationMinutes = 30

// Valid reports whether the status is drawn from the fixed set
func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusConfirmed,
		AppointmentStatusCompleted, AppointmentStatusCancelled,
		AppointmentStatusNoShow:
		return true
	}
	return false
}

// Active reports whether the status counts toward conflict checks
func (s AppointmentStatus) Active() bool {
	return s == AppointmentStatusScheduled || s == AppointmentStatusConfirmed
}

// Appointment represents a booking in a doctor's calendar
type Appointment struct {
	ID                    string            `json:"id" db:"id"`
	AccountID             string            `json:"account_id" db:"account_id"`
	DoctorID              string            `json:"doctor_id" db:"doctor_id"`
	ContactID             string            `json:"contact_id" db:"contact_id"`
	ConversationID        *string           `json:"conversation_id,omitempty" db:"conversation_id"`
	ScheduledAt           time.Time         `json:"scheduled_at" db:"scheduled_at"`
	EndsAt                time.Time         `json:"ends_at" db:"ends_at"`
	DurationMinutes       int               `json:"duration_minutes" db:"duration_minutes"`
	Status                AppointmentStatus `json:"status" db:"status"`
	Notes                 string            `json:"notes" db:"notes"`
	GoogleCalendarEventID *string           `json:"google_calendar_event_id,omitempty" db:"google_calendar_event_id"`
	ReminderSentAt24h     *time.Time        `json:"reminder_sent_at_24h,omitempty" db:"reminder_sent_at_24h"`
	ReminderSentAt2h      *time.Time        `json:"reminder_sent_at_2h,omitempty" db:"reminder_sent_at_2h"`
	Metadata              map[string]any    `json:"metadata" db:"metadata"`
	CreatedAt             time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at" db:"updated_at"`
}

// RecalculateEndsAt derives ends_at from scheduled_at and duration. It must be
// called on every mutation path that touches either input; ends_at is never
// set independently.
func (a *Appointment) RecalculateEndsAt() {
	a.EndsAt = a.ScheduledAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Overlaps reports whether the appointment's half-open interval
// [scheduled_at, ends_at) intersects [start, end).
func (a *Appointment) Overlaps(start, end time.Time) bool {
	return a.ScheduledAt.Before(end) && a.EndsAt.After(start)
}

// AppendCancellationNote appends the cancellation reason to the notes field
func (a *Appointment) AppendCancellationNote(reason string) {
	note := "Cancelled: " + reason
	if a.Notes == "" {
		a.Notes = note
		return
	}
	a.Notes = a.Notes + "\n" + note
}

// NeedsReminder reports whether a reminder of the given type should be
// materialized now. The window is eligible only while scheduled_at lies
// between window and window+1h from now, and the per-appointment sent marker
// for that window is unset.
func (a *Appointment) NeedsReminder(rt ReminderType, now time.Time) bool {
	if a.ReminderSentAt(rt) != nil {
		return false
	}

	window := rt.Window()
	earliest := now.Add(window)
	latest := now.Add(window + time.Hour)
	return !a.ScheduledAt.Before(earliest) && !a.ScheduledAt.After(latest)
}

// ReminderSentAt returns the sent marker for the given reminder type, nil when unset
func (a *Appointment) ReminderSentAt(rt ReminderType) *time.Time {
	switch rt {
	case ReminderType24hBefore:
		return a.ReminderSentAt24h
	case ReminderType2hBefore:
		return a.ReminderSentAt2h
	}
	return nil
}

// MarkReminderSent stamps the sent marker for the given reminder type
func (a *Appointment) MarkReminderSent(rt ReminderType, at time.Time) {
	switch rt {
	case ReminderType24hBefore:
		a.ReminderSentAt24h = &at
	case ReminderType2hBefore:
		a.ReminderSentAt2h = &at
	}
}
