package services

import (
	"context"
	"fmt"
	"time"

	"github.com/clinicdesk/clinic-scheduling/internal/domain/entities"
	"github.com/clinicdesk/clinic-scheduling/internal/domain/providers"
	"github.com/clinicdesk/clinic-scheduling/internal/domain/repositories"
	"github.com/clinicdesk/clinic-scheduling/internal/infrastructure/observability"
	apperrors "github.com/clinicdesk/clinic-scheduling/pkg/errors"
)

// ReminderDispatcher sweeps due pending reminders and delivers them over the
// reminder's channel. Each reminder is claimed by the repository before the
// dispatch callback runs, so concurrent sweeps never double-send; a reminder
// ends the sweep as sent, failed, or cancelled, never back in pending.
type ReminderDispatcher struct {
	reminders     repositories.ReminderRepository
	appointments  repositories.AppointmentRepository
	doctors       repositories.DoctorRepository
	contacts      repositories.ContactRepository
	messageSender providers.MessageSender
	mailSender    providers.MailSender
	loc           *time.Location
	interval      time.Duration
	batchSize     int
	now           nowFunc
}

// NewReminderDispatcher creates a new reminder dispatcher
func NewReminderDispatcher(
	reminders repositories.ReminderRepository,
	appointments repositories.AppointmentRepository,
	doctors repositories.DoctorRepository,
	contacts repositories.ContactRepository,
	messageSender providers.MessageSender,
	mailSender providers.MailSender,
	loc *time.Location,
	interval time.Duration,
	batchSize int,
	now nowFunc,
) *ReminderDispatcher {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ReminderDispatcher{
		reminders:     reminders,
		appointments:  appointments,
		doctors:       doctors,
		contacts:      contacts,
		messageSender: messageSender,
		mailSender:    mailSender,
		loc:           loc,
		interval:      interval,
		batchSize:     batchSize,
		now:           now,
	}
}

// Run sweeps on a fixed interval until the context is cancelled
func (d *ReminderDispatcher) Run(ctx context.Context) {
	logger := observability.GetLogger()
	logger.Info().
		Dur("interval", d.interval).
		Int("batch_size", d.batchSize).
		Msg("reminder dispatcher started")

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("reminder dispatcher stopped")
			return
		case <-ticker.C:
			processed, err := d.Sweep(ctx)
			if err != nil {
				logger.Error().Err(err).Int("processed", processed).Msg("reminder sweep aborted")
				continue
			}
			if processed > 0 {
				logger.Info().Int("processed", processed).Msg("reminder sweep completed")
			}
		}
	}
}

// Sweep dispatches all due reminders once and returns the number processed.
// A failed delivery marks that reminder failed and never stops the sweep.
func (d *ReminderDispatcher) Sweep(ctx context.Context) (int, error) {
	return d.reminders.SweepDue(ctx, d.now(), d.batchSize, d.dispatch)
}

// dispatch delivers a single claimed reminder. Reminders whose appointment is
// no longer confirmed are cancelled rather than sent; everything else either
// sends or records a terminal failure.
func (d *ReminderDispatcher) dispatch(ctx context.Context, reminder *entities.AppointmentReminder) repositories.DispatchResult {
	logger := observability.LoggerFromContext(ctx).With().
		Str("reminder_id", reminder.ID).
		Str("appointment_id", reminder.AppointmentID).
		Str("reminder_type", string(reminder.ReminderType)).
		Str("channel", string(reminder.Channel)).
		Logger()

	appointment, err := d.appointments.GetByIDUnscoped(ctx, reminder.AppointmentID)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			logger.Warn().Msg("appointment gone, cancelling reminder")
			return repositories.DispatchResult{Outcome: repositories.DispatchCancelled}
		}
		logger.Error().Err(err).Msg("failed to load appointment for reminder")
		return repositories.DispatchResult{Outcome: repositories.DispatchFailed, Error: err.Error()}
	}

	if appointment.Status != entities.AppointmentStatusConfirmed {
		logger.Info().Str("status", string(appointment.Status)).Msg("appointment not confirmed, cancelling reminder")
		return repositories.DispatchResult{Outcome: repositories.DispatchCancelled}
	}

	doctor, err := d.doctors.GetByID(ctx, appointment.AccountID, appointment.DoctorID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load doctor for reminder")
		return repositories.DispatchResult{Outcome: repositories.DispatchFailed, Error: err.Error()}
	}

	contact, err := d.contacts.GetByID(ctx, appointment.AccountID, appointment.ContactID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load contact for reminder")
		return repositories.DispatchResult{Outcome: repositories.DispatchFailed, Error: err.Error()}
	}

	if err := d.deliver(ctx, reminder, appointment, doctor, contact); err != nil {
		logger.Error().Err(err).Msg("reminder delivery failed")
		return repositories.DispatchResult{Outcome: repositories.DispatchFailed, Error: err.Error()}
	}

	logger.Info().Msg("reminder sent")
	return repositories.DispatchResult{Outcome: repositories.DispatchSent}
}

func (d *ReminderDispatcher) deliver(ctx context.Context, reminder *entities.AppointmentReminder, appointment *entities.Appointment, doctor *entities.Doctor, contact *entities.Contact) error {
	text := buildReminderMessage(reminder.ReminderType, appointment, doctor, contact, d.loc)

	switch reminder.Channel {
	case entities.ChannelWhatsApp:
		if d.messageSender == nil {
			return apperrors.NewChannelError("whatsapp sender is not configured", nil)
		}
		if contact.PhoneNumber == "" {
			return apperrors.NewChannelError(fmt.Sprintf("contact %s has no phone number for whatsapp delivery", contact.ID), nil)
		}
		if _, err := d.messageSender.Send(ctx, contact.PhoneNumber, text); err != nil {
			return apperrors.NewChannelError("whatsapp delivery failed", err)
		}
		return nil

	case entities.ChannelEmail:
		if d.mailSender == nil {
			return apperrors.NewChannelError("mail sender is not configured", nil)
		}
		if contact.Email == "" {
			return apperrors.NewChannelError(fmt.Sprintf("contact %s has no email address", contact.ID), nil)
		}
		if err := d.mailSender.Deliver(ctx, contact.Email, buildReminderSubject(reminder.ReminderType), text); err != nil {
			return apperrors.NewChannelError("email delivery failed", err)
		}
		return nil

	case entities.ChannelSMS:
		// no SMS provider is wired up; the channel exists so stored
		// preferences round-trip, but every dispatch on it fails
		return apperrors.NewChannelError("sms reminders are not implemented", nil)

	default:
		return apperrors.NewChannelError(fmt.Sprintf("unknown reminder channel %q", reminder.Channel), nil)
	}
}
