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

// ReminderStore implements repositories.ReminderRepository in memory
type ReminderStore struct {
	s *Store
}

// Create creates a pending reminder, rejecting duplicates of a live type
func (r *ReminderStore) Create(ctx context.Context, reminder *entities.AppointmentReminder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.reminders {
		if existing.AppointmentID == reminder.AppointmentID &&
			existing.ReminderType == reminder.ReminderType &&
			existing.Live() {
			return apperrors.NewConflictError(fmt.Sprintf(
				"a live %s reminder already exists for appointment %s",
				reminder.ReminderType, reminder.AppointmentID,
			))
		}
	}

	r.s.reminders[reminder.ID] = cloneReminder(reminder)
	return nil
}

// Put seeds or overwrites a reminder directly, bypassing duplicate checks.
// Intended for tests and local fixtures.
func (r *ReminderStore) Put(reminder *entities.AppointmentReminder) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.reminders[reminder.ID] = cloneReminder(reminder)
}

// GetByID retrieves a reminder by ID
func (r *ReminderStore) GetByID(ctx context.Context, id string) (*entities.AppointmentReminder, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	reminder, ok := r.s.reminders[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("reminder with id %s not found", id))
	}
	return cloneReminder(reminder), nil
}

// ListByAppointment retrieves all reminders for an appointment
func (r *ReminderStore) ListByAppointment(ctx context.Context, appointmentID string) ([]*entities.AppointmentReminder, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var reminders []*entities.AppointmentReminder
	for _, reminder := range r.s.reminders {
		if reminder.AppointmentID == appointmentID {
			reminders = append(reminders, cloneReminder(reminder))
		}
	}

	sort.Slice(reminders, func(i, j int) bool {
		return reminders[i].ScheduledFor.Before(reminders[j].ScheduledFor)
	})
	return reminders, nil
}

// CancelPending transitions all pending reminders of an appointment to cancelled
func (r *ReminderStore) CancelPending(ctx context.Context, appointmentID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cancelled := 0
	for _, reminder := range r.s.reminders {
		if reminder.AppointmentID == appointmentID && reminder.Status == entities.ReminderStatusPending {
			reminder.Status = entities.ReminderStatusCancelled
			reminder.UpdatedAt = time.Now()
			cancelled++
		}
	}
	return cancelled, nil
}

// SweepDue claims due reminders and applies the dispatch result. The claimed
// set mirrors row locking: overlapping sweeps skip claimed reminders, and the
// claim is released only together with the terminal status (or rolled back to
// pending when the context is cancelled before finalizing).
func (r *ReminderStore) SweepDue(ctx context.Context, now time.Time, limit int, fn repositories.ReminderDispatchFunc) (int, error) {
	ids := r.claimDue(now, limit)

	processed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			r.releaseClaims(ids[processed:])
			return processed, err
		}

		r.s.mu.RLock()
		reminder := cloneReminder(r.s.reminders[id])
		r.s.mu.RUnlock()

		result := fn(ctx, reminder)
		r.finalize(id, now, result)
		processed++
	}

	return processed, nil
}

func (r *ReminderStore) claimDue(now time.Time, limit int) []string {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var due []*entities.AppointmentReminder
	for _, reminder := range r.s.reminders {
		if reminder.Status != entities.ReminderStatusPending || r.s.claimed[reminder.ID] {
			continue
		}
		if reminder.ScheduledFor.After(now) {
			continue
		}
		due = append(due, reminder)
	}

	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledFor.Before(due[j].ScheduledFor) })
	if limit > 0 && limit < len(due) {
		due = due[:limit]
	}

	ids := make([]string, 0, len(due))
	for _, reminder := range due {
		r.s.claimed[reminder.ID] = true
		ids = append(ids, reminder.ID)
	}
	return ids
}

func (r *ReminderStore) releaseClaims(ids []string) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range ids {
		delete(r.s.claimed, id)
	}
}

func (r *ReminderStore) finalize(id string, now time.Time, result repositories.DispatchResult) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	reminder, ok := r.s.reminders[id]
	if !ok {
		delete(r.s.claimed, id)
		return
	}

	switch result.Outcome {
	case repositories.DispatchSent:
		reminder.Status = entities.ReminderStatusSent
		sentAt := now
		reminder.SentAt = &sentAt
		if appt, ok := r.s.appointments[reminder.AppointmentID]; ok {
			appt.MarkReminderSent(reminder.ReminderType, now)
		}
	case repositories.DispatchCancelled:
		reminder.Status = entities.ReminderStatusCancelled
	default:
		reminder.Status = entities.ReminderStatusFailed
		errMsg := result.Error
		reminder.ErrorMessage = &errMsg
	}
	reminder.UpdatedAt = now

	delete(r.s.claimed, id)
}
