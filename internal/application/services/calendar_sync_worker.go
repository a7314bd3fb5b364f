package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinic-scheduling/internal/domain/entities"
	"github.com/clinicdesk/clinic-scheduling/internal/domain/providers"
	"github.com/clinicdesk/clinic-scheduling/internal/domain/repositories"
	"github.com/clinicdesk/clinic-scheduling/internal/infrastructure/observability"
	apperrors "github.com/clinicdesk/clinic-scheduling/pkg/errors"
	"github.com/clinicdesk/clinic-scheduling/pkg/retry"
)

// CalendarSyncWorker consumes appointment events off the bus and mirrors them
// to the doctor's external calendar. Sync is best-effort: a failed push is
// logged and dropped, it never feeds back into the booking path.
type CalendarSyncWorker struct {
	bus          providers.EventBus
	provider     providers.CalendarProvider
	appointments repositories.AppointmentRepository
	doctors      repositories.DoctorRepository
	contacts     repositories.ContactRepository
	timezone     string
	loc          *time.Location
	retryCfg     retry.Config
}

// NewCalendarSyncWorker creates a new calendar sync worker
func NewCalendarSyncWorker(
	bus providers.EventBus,
	provider providers.CalendarProvider,
	appointments repositories.AppointmentRepository,
	doctors repositories.DoctorRepository,
	contacts repositories.ContactRepository,
	timezone string,
	loc *time.Location,
) *CalendarSyncWorker {
	if loc == nil {
		loc = time.UTC
	}
	return &CalendarSyncWorker{
		bus:          bus,
		provider:     provider,
		appointments: appointments,
		doctors:      doctors,
		contacts:     contacts,
		timezone:     timezone,
		loc:          loc,
		retryCfg: retry.Config{
			MaxAttempts:     3,
			InitialDelay:    500 * time.Millisecond,
			MaxDelay:        5 * time.Second,
			BackoffFactor:   2.0,
			MaxTotalTimeout: 30 * time.Second,
		},
	}
}

// Run subscribes to appointment events and processes them until the context
// is cancelled.
func (w *CalendarSyncWorker) Run(ctx context.Context) error {
	events, err := w.bus.Subscribe(ctx, providers.EventChannelAppointments)
	if err != nil {
		return apperrors.NewIntegrationError("failed to subscribe to appointment events", err)
	}

	logger := observability.GetLogger()
	logger.Info().Msg("calendar sync worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("calendar sync worker stopped")
			return nil
		case event, ok := <-events:
			if !ok {
				logger.Info().Msg("appointment event channel closed")
				return nil
			}
			w.handle(ctx, event)
		}
	}
}

func (w *CalendarSyncWorker) handle(ctx context.Context, event *entities.AppointmentEvent) {
	logger := observability.GetLogger().With().
		Str("event_id", event.ID).
		Str("event_type", string(event.Type)).
		Str("appointment_id", event.AppointmentID).
		Logger()

	appointment, err := w.appointments.GetByIDUnscoped(ctx, event.AppointmentID)
	if err != nil {
		logger.Warn().Err(err).Msg("appointment not found for calendar sync")
		return
	}

	doctor, err := w.doctors.GetByID(ctx, appointment.AccountID, appointment.DoctorID)
	if err != nil {
		logger.Warn().Err(err).Msg("doctor not found for calendar sync")
		return
	}
	if doctor.GoogleCalendarID == "" {
		return
	}

	if event.Type == entities.AppointmentEventCancelled {
		w.removeEvent(ctx, logger, appointment, doctor)
		return
	}

	w.syncEvent(ctx, logger, appointment, doctor)
}

func (w *CalendarSyncWorker) syncEvent(ctx context.Context, logger zerolog.Logger, appointment *entities.Appointment, doctor *entities.Doctor) {
	contact, err := w.contacts.GetByID(ctx, appointment.AccountID, appointment.ContactID)
	if err != nil {
		logger.Warn().Err(err).Msg("contact not found for calendar sync")
		return
	}

	calendarEvent := w.buildEvent(appointment, doctor, contact)

	existingID := ""
	if appointment.GoogleCalendarEventID != nil {
		existingID = *appointment.GoogleCalendarEventID
	}

	var eventID string
	err = retry.Do(ctx, w.retryCfg, func() error {
		var syncErr error
		eventID, syncErr = w.provider.Sync(ctx, doctor.GoogleCalendarID, existingID, calendarEvent)
		return syncErr
	})
	if err != nil {
		logger.Error().Err(err).Msg("calendar sync failed")
		return
	}

	if eventID != existingID {
		// targeted write: the appointment may have been cancelled or completed
		// while the external call was in flight
		if err := w.appointments.SetCalendarEventID(ctx, appointment.ID, &eventID); err != nil {
			logger.Error().Err(err).Msg("failed to store calendar event id")
			return
		}
	}

	logger.Info().Str("calendar_event_id", eventID).Msg("appointment synced to calendar")
}

func (w *CalendarSyncWorker) removeEvent(ctx context.Context, logger zerolog.Logger, appointment *entities.Appointment, doctor *entities.Doctor) {
	if appointment.GoogleCalendarEventID == nil {
		return
	}
	eventID := *appointment.GoogleCalendarEventID

	err := retry.Do(ctx, w.retryCfg, func() error {
		return w.provider.Delete(ctx, doctor.GoogleCalendarID, eventID)
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to delete calendar event")
		return
	}

	if err := w.appointments.SetCalendarEventID(ctx, appointment.ID, nil); err != nil {
		logger.Error().Err(err).Msg("failed to clear calendar event id")
		return
	}

	logger.Info().Str("calendar_event_id", eventID).Msg("calendar event removed")
}

func (w *CalendarSyncWorker) buildEvent(appointment *entities.Appointment, doctor *entities.Doctor, contact *entities.Contact) *providers.CalendarEvent {
	var description strings.Builder
	fmt.Fprintf(&description, "Patient: %s\n", contact.Name)
	if contact.PhoneNumber != "" {
		fmt.Fprintf(&description, "Phone: %s\n", contact.PhoneNumber)
	}
	if appointment.Notes != "" {
		fmt.Fprintf(&description, "Notes: %s\n", appointment.Notes)
	}

	var attendees []string
	if contact.Email != "" {
		attendees = append(attendees, contact.Email)
	}
	if doctor.Email != "" {
		attendees = append(attendees, doctor.Email)
	}

	return &providers.CalendarEvent{
		Summary:     fmt.Sprintf("Appointment with %s", contact.Name),
		Description: description.String(),
		Start:       appointment.ScheduledAt,
		End:         appointment.EndsAt,
		Timezone:    w.timezone,
		Attendees:   attendees,
	}
}
