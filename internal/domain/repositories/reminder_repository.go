package repositories

import (
	"context"
	"time"

	"github.com/clinicdesk/clinic-scheduling/internal/domain/entities"
)

// DispatchOutcome is the terminal state a dispatch attempt resolves to
type DispatchOutcome string

const (
	// DispatchSent marks the reminder sent and stamps the appointment's
	// reminder-sent marker for the window.
	DispatchSent DispatchOutcome = "sent"

	// DispatchFailed marks the reminder failed with the error recorded.
	// Failed is terminal; the sweep never retries it.
	DispatchFailed DispatchOutcome = "failed"

	// DispatchCancelled marks the reminder cancelled without an attempt,
	// used when the owning appointment is no longer confirmed.
	DispatchCancelled DispatchOutcome = "cancelled"
)

// DispatchResult carries the outcome of one delivery attempt back into the
// claim transaction.
type DispatchResult struct {
	Outcome DispatchOutcome
	Error   string
}

// ReminderDispatchFunc attempts delivery of a claimed reminder. It runs while
// the claim is held; the returned result is written as the reminder's terminal
// status in the same atomic step that releases the claim.
type ReminderDispatchFunc func(ctx context.Context, reminder *entities.AppointmentReminder) DispatchResult

// ReminderRepository defines the interface for reminder data operations
type ReminderRepository interface {
	// Create creates a pending reminder. Creation is rejected with a conflict
	// error when a live (pending or sent) reminder of the same type already
	// exists for the appointment.
	Create(ctx context.Context, reminder *entities.AppointmentReminder) error

	// GetByID retrieves a reminder by ID
	GetByID(ctx context.Context, id string) (*entities.AppointmentReminder, error)

	// ListByAppointment retrieves all reminders for an appointment
	ListByAppointment(ctx context.Context, appointmentID string) ([]*entities.AppointmentReminder, error)

	// CancelPending transitions all pending reminders of an appointment to
	// cancelled, returning how many were cancelled.
	CancelPending(ctx context.Context, appointmentID string) (int, error)

	// SweepDue claims reminders that are pending with scheduled_for <= now and
	// invokes fn for each, independently. The claim is atomic with the read
	// that selected the reminder: a reminder claimed by one sweep is invisible
	// to concurrent sweeps, and claim plus terminal write commit as one step.
	// A sweep cancelled mid-flight leaves unprocessed reminders pending.
	// Returns the number of reminders processed.
	SweepDue(ctx context.Context, now time.Time, limit int, fn ReminderDispatchFunc) (int, error)
}
