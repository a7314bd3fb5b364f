package repositories

import (
	"context"
	"time"

	"github.com/clinicdesk/clinic-scheduling/internal/domain/entities"
)

// AppointmentRepository defines the interface for appointment data operations
type AppointmentRepository interface {
	// Create creates a new appointment
	Create(ctx context.Context, appointment *entities.Appointment) error

	// GetByID retrieves an appointment by ID within the account scope
	GetByID(ctx context.Context, accountID, id string) (*entities.Appointment, error)

	// GetByIDUnscoped retrieves an appointment by ID without account scoping.
	// Reserved for system paths that run across accounts, such as the reminder
	// dispatcher and the calendar sync worker.
	GetByIDUnscoped(ctx context.Context, id string) (*entities.Appointment, error)

	// Update updates an appointment
	Update(ctx context.Context, appointment *entities.Appointment) error

	// SetCalendarEventID stores or clears (nil) the external calendar event ID
	// without touching any other column. Used by the calendar sync worker,
	// which must not overwrite lifecycle transitions that landed while the
	// external call was in flight.
	SetCalendarEventID(ctx context.Context, id string, eventID *string) error

	// Delete destroys an appointment together with its reminders
	Delete(ctx context.Context, accountID, id string) error

	// HasConflict reports whether any appointment in an active status
	// (scheduled or confirmed) for the doctor overlaps [start, end).
	// excludeID removes the appointment being updated from the conflict set;
	// pass "" on create. The caller is responsible for serializing this check
	// with the subsequent write (per-doctor lock in the booking orchestrator).
	HasConflict(ctx context.Context, doctorID string, start, end time.Time, excludeID string) (bool, error)

	// List retrieves appointments for an account matching the filter
	List(ctx context.Context, accountID string, filter AppointmentFilter) ([]*entities.Appointment, error)

	// ListUpcoming retrieves appointments with scheduled_at after now. Without
	// a status filter only active statuses (scheduled, confirmed) are included.
	ListUpcoming(ctx context.Context, accountID string, now time.Time, filter AppointmentFilter) ([]*entities.Appointment, error)

	// ListToday retrieves appointments falling on the calendar day of now in
	// the given location.
	ListToday(ctx context.Context, accountID string, now time.Time, loc *time.Location) ([]*entities.Appointment, error)

	// ListNeedingReminders retrieves confirmed appointments across all
	// accounts whose start lies within the widest reminder horizon and which
	// still have an unstamped reminder marker. Callers re-check exact window
	// eligibility per reminder type.
	ListNeedingReminders(ctx context.Context, now time.Time) ([]*entities.Appointment, error)
}

// AppointmentFilter defines filters for listing appointments
type AppointmentFilter struct {
	DoctorID string
	Status   entities.AppointmentStatus
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}
