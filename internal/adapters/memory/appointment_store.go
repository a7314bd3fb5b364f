package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/clinicdesk/clinic-scheduling/internal/domain/entities"
	"github.com/clinicdesk/clinic-scheduling/internal/domain/repositories"
	apperrors "github.com/clinicdesk/clinic-scheduling/pkg/errors"
)

// AppointmentStore implements repositories.AppointmentRepository in memory
type AppointmentStore struct {
	s *Store
}

// Create creates a new appointment
func (a *AppointmentStore) Create(ctx context.Context, appointment *entities.Appointment) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	if _, exists := a.s.appointments[appointment.ID]; exists {
		return apperrors.NewConflictError(fmt.Sprintf("appointment with id %s already exists", appointment.ID))
	}
	a.s.appointments[appointment.ID] = cloneAppointment(appointment)
	return nil
}

// GetByID retrieves an appointment by ID within the account scope
func (a *AppointmentStore) GetByID(ctx context.Context, accountID, id string) (*entities.Appointment, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	appointment, ok := a.s.appointments[id]
	if !ok || appointment.AccountID != accountID {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
	}
	return cloneAppointment(appointment), nil
}

// GetByIDUnscoped retrieves an appointment by ID without account scoping
func (a *AppointmentStore) GetByIDUnscoped(ctx context.Context, id string) (*entities.Appointment, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	appointment, ok := a.s.appointments[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
	}
	return cloneAppointment(appointment), nil
}

// Update updates an appointment
func (a *AppointmentStore) Update(ctx context.Context, appointment *entities.Appointment) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	existing, ok := a.s.appointments[appointment.ID]
	if !ok || existing.AccountID != appointment.AccountID {
		return apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", appointment.ID))
	}
	appointment.UpdatedAt = time.Now()
	a.s.appointments[appointment.ID] = cloneAppointment(appointment)
	return nil
}

// SetCalendarEventID stores or clears the external calendar event ID without
// touching any other field
func (a *AppointmentStore) SetCalendarEventID(ctx context.Context, id string, eventID *string) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	existing, ok := a.s.appointments[id]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
	}
	if eventID != nil {
		v := *eventID
		existing.GoogleCalendarEventID = &v
	} else {
		existing.GoogleCalendarEventID = nil
	}
	existing.UpdatedAt = time.Now()
	return nil
}

// Delete destroys an appointment and all its reminders
func (a *AppointmentStore) Delete(ctx context.Context, accountID, id string) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	appointment, ok := a.s.appointments[id]
	if !ok || appointment.AccountID != accountID {
		return apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
	}

	delete(a.s.appointments, id)
	for rid, reminder := range a.s.reminders {
		if reminder.AppointmentID == id {
			delete(a.s.reminders, rid)
		}
	}
	return nil
}

// HasConflict reports whether any active appointment for the doctor overlaps [start, end)
func (a *AppointmentStore) HasConflict(ctx context.Context, doctorID string, start, end time.Time, excludeID string) (bool, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	for _, appointment := range a.s.appointments {
		if appointment.DoctorID != doctorID || appointment.ID == excludeID {
			continue
		}
		if !appointment.Status.Active() {
			continue
		}
		if appointment.Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}

// List retrieves appointments for an account matching the filter
func (a *AppointmentStore) List(ctx context.Context, accountID string, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	return a.collect(accountID, filter, nil), nil
}

// ListUpcoming retrieves appointments with scheduled_at after now
func (a *AppointmentStore) ListUpcoming(ctx context.Context, accountID string, now time.Time, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	return a.collect(accountID, filter, func(appt *entities.Appointment) bool {
		if !appt.ScheduledAt.After(now) {
			return false
		}
		if filter.Status == "" && !appt.Status.Active() {
			return false
		}
		return true
	}), nil
}

// ListToday retrieves appointments on the calendar day of now in loc
func (a *AppointmentStore) ListToday(ctx context.Context, accountID string, now time.Time, loc *time.Location) ([]*entities.Appointment, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	local := now.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	return a.collect(accountID, repositories.AppointmentFilter{}, func(appt *entities.Appointment) bool {
		return !appt.ScheduledAt.Before(dayStart) && appt.ScheduledAt.Before(dayEnd)
	}), nil
}

// ListNeedingReminders retrieves confirmed appointments across all accounts
// starting within the widest reminder horizon with an unstamped marker
func (a *AppointmentStore) ListNeedingReminders(ctx context.Context, now time.Time) ([]*entities.Appointment, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	horizon := now.Add(25 * time.Hour)

	var appointments []*entities.Appointment
	for _, appt := range a.s.appointments {
		if appt.Status != entities.AppointmentStatusConfirmed {
			continue
		}
		if !appt.ScheduledAt.After(now) || appt.ScheduledAt.After(horizon) {
			continue
		}
		if appt.ReminderSentAt24h != nil && appt.ReminderSentAt2h != nil {
			continue
		}
		appointments = append(appointments, cloneAppointment(appt))
	}

	sort.Slice(appointments, func(i, j int) bool {
		return appointments[i].ScheduledAt.Before(appointments[j].ScheduledAt)
	})
	return appointments, nil
}

// collect must be called with the store lock held
func (a *AppointmentStore) collect(accountID string, filter repositories.AppointmentFilter, extra func(*entities.Appointment) bool) []*entities.Appointment {
	var appointments []*entities.Appointment
	for _, appt := range a.s.appointments {
		if appt.AccountID != accountID {
			continue
		}
		if filter.DoctorID != "" && appt.DoctorID != filter.DoctorID {
			continue
		}
		if filter.Status != "" && appt.Status != filter.Status {
			continue
		}
		if filter.From != nil && appt.ScheduledAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && appt.ScheduledAt.After(*filter.To) {
			continue
		}
		if extra != nil && !extra(appt) {
			continue
		}
		appointments = append(appointments, cloneAppointment(appt))
	}

	sort.Slice(appointments, func(i, j int) bool {
		return appointments[i].ScheduledAt.Before(appointments[j].ScheduledAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(appointments) {
			return nil
		}
		appointments = appointments[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(appointments) {
		appointments = appointments[:filter.Limit]
	}

	return appointments
}
