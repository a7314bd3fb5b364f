package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinic-scheduling/internal/domain/entities"
	"github.com/clinicdesk/clinic-scheduling/internal/domain/providers"
	"github.com/clinicdesk/clinic-scheduling/internal/domain/repositories"
	"github.com/clinicdesk/clinic-scheduling/internal/infrastructure/observability"
	apperrors "github.com/clinicdesk/clinic-scheduling/pkg/errors"
)

// nowFunc supplies the current time; injected so tests can pin the clock
type nowFunc func() time.Time

// CreateAppointmentInput carries the fields accepted when booking an appointment
type CreateAppointmentInput struct {
	AccountID       string
	DoctorID        string
	ContactID       string
	ConversationID  *string
	ScheduledAt     time.Time
	DurationMinutes int
	Status          entities.AppointmentStatus
	Notes           string
	Metadata        map[string]any
}

// UpdateAppointmentInput carries the partial update applied to an appointment.
// Nil fields are left untouched.
type UpdateAppointmentInput struct {
	DoctorID        *string
	ScheduledAt     *time.Time
	DurationMinutes *int
	Status          *entities.AppointmentStatus
	Notes           *string
	Metadata        map[string]any
}

// AppointmentService orchestrates the booking lifecycle: it gates every write
// behind doctor availability and conflict checks, drives status transitions,
// schedules reminders on confirmation, and publishes calendar events.
type AppointmentService struct {
	doctors          repositories.DoctorRepository
	contacts         repositories.ContactRepository
	conversations    repositories.ConversationRepository
	appointments     repositories.AppointmentRepository
	reminders        repositories.ReminderRepository
	scheduler        *ReminderScheduler
	eventBus         providers.EventBus
	locks            *doctorLocks
	loc              *time.Location
	now              nowFunc
	assistantEnabled bool
}

// NewAppointmentService creates a new appointment service. eventBus may be nil
// when calendar sync is disabled.
func NewAppointmentService(
	doctors repositories.DoctorRepository,
	contacts repositories.ContactRepository,
	conversations repositories.ConversationRepository,
	appointments repositories.AppointmentRepository,
	reminders repositories.ReminderRepository,
	scheduler *ReminderScheduler,
	eventBus providers.EventBus,
	loc *time.Location,
	now nowFunc,
	assistantEnabled bool,
) *AppointmentService {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AppointmentService{
		doctors:          doctors,
		contacts:         contacts,
		conversations:    conversations,
		appointments:     appointments,
		reminders:        reminders,
		scheduler:        scheduler,
		eventBus:         eventBus,
		locks:            newDoctorLocks(),
		loc:              loc,
		now:              now,
		assistantEnabled: assistantEnabled,
	}
}

// AssistantEnabled reports whether the conversational booking assistant is
// switched on for this deployment. Outer surfaces use it to decide whether to
// expose assistant-driven booking.
func (s *AppointmentService) AssistantEnabled() bool {
	return s.assistantEnabled
}

// Create books a new appointment. The availability and conflict gates run
// under the doctor's lock so that concurrent bookings for the same doctor are
// serialized; of two overlapping requests exactly one succeeds.
func (s *AppointmentService) Create(ctx context.Context, input CreateAppointmentInput) (*entities.Appointment, error) {
	if input.ScheduledAt.IsZero() {
		return nil, apperrors.NewValidationError("scheduled_at is required")
	}

	duration := input.DurationMinutes
	if duration == 0 {
		duration = entities.DefaultDurationMinutes
	}
	if duration < 0 {
		return nil, apperrors.NewValidationError("duration_minutes must be positive")
	}

	status := input.Status
	if status == "" {
		status = entities.AppointmentStatusScheduled
	}
	if !status.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid appointment status %q", status))
	}

	doctor, err := s.doctors.GetByID(ctx, input.AccountID, input.DoctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.Active {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("doctor with id %s not found", input.DoctorID))
	}

	if _, err := s.contacts.GetByID(ctx, input.AccountID, input.ContactID); err != nil {
		return nil, err
	}

	if input.ConversationID != nil {
		exists, err := s.conversations.Exists(ctx, input.AccountID, *input.ConversationID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("conversation with id %s not found", *input.ConversationID))
		}
	}

	now := s.now()
	appointment := &entities.Appointment{
		ID:              uuid.New().String(),
		AccountID:       input.AccountID,
		DoctorID:        input.DoctorID,
		ContactID:       input.ContactID,
		ConversationID:  input.ConversationID,
		ScheduledAt:     input.ScheduledAt,
		DurationMinutes: duration,
		Status:          status,
		Notes:           input.Notes,
		Metadata:        input.Metadata,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	appointment.RecalculateEndsAt()

	unlock := s.locks.acquire(input.DoctorID)
	defer unlock()

	if !doctor.AvailableAt(appointment.ScheduledAt, s.loc) {
		return nil, apperrors.NewUnavailableError("doctor is not available at this time")
	}

	conflict, err := s.appointments.HasConflict(ctx, input.DoctorID, appointment.ScheduledAt, appointment.EndsAt, "")
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, apperrors.NewConflictError("the requested time slot is already booked")
	}

	if err := s.appointments.Create(ctx, appointment); err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().
		Str("appointment_id", appointment.ID).
		Str("doctor_id", appointment.DoctorID).
		Time("scheduled_at", appointment.ScheduledAt).
		Str("status", string(appointment.Status)).
		Msg("appointment created")

	if appointment.Status == entities.AppointmentStatusConfirmed {
		if err := s.scheduler.ScheduleForAppointment(ctx, appointment); err != nil {
			observability.LoggerFromContext(ctx).Error().Err(err).
				Str("appointment_id", appointment.ID).
				Msg("failed to schedule reminders")
		}
	}

	s.publishEvent(ctx, doctor, appointment, entities.AppointmentEventCreated)

	return appointment, nil
}

// Get retrieves an appointment by ID within the account scope
func (s *AppointmentService) Get(ctx context.Context, accountID, id string) (*entities.Appointment, error) {
	return s.appointments.GetByID(ctx, accountID, id)
}

// Update applies a partial update. Changing the doctor, the start time, or
// the duration re-runs the availability and conflict gates under the doctor's
// lock. Moving the start time of a confirmed appointment cancels its pending
// reminders and schedules fresh ones against the new time.
func (s *AppointmentService) Update(ctx context.Context, accountID, id string, input UpdateAppointmentInput) (*entities.Appointment, error) {
	appointment, err := s.appointments.GetByID(ctx, accountID, id)
	if err != nil {
		return nil, err
	}

	previousScheduledAt := appointment.ScheduledAt
	timingChanged := false

	if input.DoctorID != nil && *input.DoctorID != appointment.DoctorID {
		appointment.DoctorID = *input.DoctorID
		timingChanged = true
	}
	if input.ScheduledAt != nil && !input.ScheduledAt.Equal(appointment.ScheduledAt) {
		appointment.ScheduledAt = *input.ScheduledAt
		timingChanged = true
	}
	if input.DurationMinutes != nil && *input.DurationMinutes != appointment.DurationMinutes {
		if *input.DurationMinutes <= 0 {
			return nil, apperrors.NewValidationError("duration_minutes must be positive")
		}
		appointment.DurationMinutes = *input.DurationMinutes
		timingChanged = true
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, apperrors.NewValidationError(fmt.Sprintf("invalid appointment status %q", *input.Status))
		}
		appointment.Status = *input.Status
	}
	if input.Notes != nil {
		appointment.Notes = *input.Notes
	}
	if input.Metadata != nil {
		appointment.Metadata = input.Metadata
	}

	appointment.RecalculateEndsAt()

	doctor, err := s.doctors.GetByID(ctx, accountID, appointment.DoctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.Active {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("doctor with id %s not found", appointment.DoctorID))
	}

	if timingChanged {
		unlock := s.locks.acquire(appointment.DoctorID)
		defer unlock()

		if !doctor.AvailableAt(appointment.ScheduledAt, s.loc) {
			return nil, apperrors.NewUnavailableError("doctor is not available at this time")
		}

		conflict, err := s.appointments.HasConflict(ctx, appointment.DoctorID, appointment.ScheduledAt, appointment.EndsAt, appointment.ID)
		if err != nil {
			return nil, err
		}
		if conflict {
			return nil, apperrors.NewConflictError("the requested time slot is already booked")
		}
	}

	if err := s.appointments.Update(ctx, appointment); err != nil {
		return nil, err
	}

	rescheduled := !appointment.ScheduledAt.Equal(previousScheduledAt)
	if rescheduled {
		if _, err := s.reminders.CancelPending(ctx, appointment.ID); err != nil {
			observability.LoggerFromContext(ctx).Error().Err(err).
				Str("appointment_id", appointment.ID).
				Msg("failed to cancel pending reminders after reschedule")
		}
		if appointment.Status == entities.AppointmentStatusConfirmed {
			if err := s.scheduler.ScheduleForAppointment(ctx, appointment); err != nil {
				observability.LoggerFromContext(ctx).Error().Err(err).
					Str("appointment_id", appointment.ID).
					Msg("failed to reschedule reminders")
			}
		}

		s.publishEvent(ctx, doctor, appointment, entities.AppointmentEventRescheduled)
	}

	return appointment, nil
}

// Confirm transitions an appointment to confirmed and schedules its
// reminders. Confirming an already confirmed appointment is a no-op beyond
// re-running the scheduler, which rejects duplicate live reminders.
func (s *AppointmentService) Confirm(ctx context.Context, accountID, id string) (*entities.Appointment, error) {
	appointment, err := s.appointments.GetByID(ctx, accountID, id)
	if err != nil {
		return nil, err
	}

	switch appointment.Status {
	case entities.AppointmentStatusScheduled:
		appointment.Status = entities.AppointmentStatusConfirmed
		if err := s.appointments.Update(ctx, appointment); err != nil {
			return nil, err
		}
	case entities.AppointmentStatusConfirmed:
		// already confirmed; fall through to reminder scheduling
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("cannot confirm a %s appointment", appointment.Status))
	}

	if err := s.scheduler.ScheduleForAppointment(ctx, appointment); err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).
			Str("appointment_id", appointment.ID).
			Msg("failed to schedule reminders on confirmation")
	}

	observability.LoggerFromContext(ctx).Info().
		Str("appointment_id", appointment.ID).
		Msg("appointment confirmed")

	return appointment, nil
}

// Complete transitions an appointment to completed. Pending reminders are
// left alone; the dispatcher cancels them at claim time because the
// appointment is no longer confirmed.
func (s *AppointmentService) Complete(ctx context.Context, accountID, id string) (*entities.Appointment, error) {
	appointment, err := s.appointments.GetByID(ctx, accountID, id)
	if err != nil {
		return nil, err
	}

	appointment.Status = entities.AppointmentStatusCompleted
	if err := s.appointments.Update(ctx, appointment); err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().
		Str("appointment_id", appointment.ID).
		Msg("appointment completed")

	return appointment, nil
}

// Cancel transitions an appointment to cancelled, appends the reason to its
// notes, and cancels all pending reminders.
func (s *AppointmentService) Cancel(ctx context.Context, accountID, id, reason string) (*entities.Appointment, error) {
	appointment, err := s.appointments.GetByID(ctx, accountID, id)
	if err != nil {
		return nil, err
	}

	appointment.Status = entities.AppointmentStatusCancelled
	if reason != "" {
		appointment.AppendCancellationNote(reason)
	}
	if err := s.appointments.Update(ctx, appointment); err != nil {
		return nil, err
	}

	cancelled, err := s.reminders.CancelPending(ctx, appointment.ID)
	if err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).
			Str("appointment_id", appointment.ID).
			Msg("failed to cancel pending reminders")
	}

	observability.LoggerFromContext(ctx).Info().
		Str("appointment_id", appointment.ID).
		Int("reminders_cancelled", cancelled).
		Msg("appointment cancelled")

	doctor, err := s.doctors.GetByID(ctx, accountID, appointment.DoctorID)
	if err == nil {
		s.publishEvent(ctx, doctor, appointment, entities.AppointmentEventCancelled)
	}

	return appointment, nil
}

// ListUpcoming retrieves appointments scheduled after now. Without an
// explicit status filter only active appointments are returned.
func (s *AppointmentService) ListUpcoming(ctx context.Context, accountID string, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	return s.appointments.ListUpcoming(ctx, accountID, s.now(), filter)
}

// ListToday retrieves appointments falling on today's calendar day in the
// clinic's timezone.
func (s *AppointmentService) ListToday(ctx context.Context, accountID string) ([]*entities.Appointment, error) {
	return s.appointments.ListToday(ctx, accountID, s.now(), s.loc)
}

// publishEvent emits a calendar sync event. Publishing is best-effort: a
// failure is logged and never surfaced to the booking path. Events are only
// emitted for doctors with a calendar binding.
func (s *AppointmentService) publishEvent(ctx context.Context, doctor *entities.Doctor, appointment *entities.Appointment, eventType entities.AppointmentEventType) {
	if s.eventBus == nil || doctor.GoogleCalendarID == "" {
		return
	}

	event := &entities.AppointmentEvent{
		ID:            uuid.New().String(),
		Type:          eventType,
		AccountID:     appointment.AccountID,
		AppointmentID: appointment.ID,
		DoctorID:      appointment.DoctorID,
		OccurredAt:    s.now(),
	}

	if err := s.eventBus.Publish(ctx, providers.EventChannelAppointments, event); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Str("appointment_id", appointment.ID).
			Str("event_type", string(eventType)).
			Msg("failed to publish appointment event")
	}
}
