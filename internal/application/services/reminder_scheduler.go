package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinic-scheduling/internal/domain/entities"
	"github.com/clinicdesk/clinic-scheduling/internal/domain/repositories"
	"github.com/clinicdesk/clinic-scheduling/internal/infrastructure/observability"
	apperrors "github.com/clinicdesk/clinic-scheduling/pkg/errors"
)

// ReminderScheduler materializes reminder rows for confirmed appointments.
// It is invoked on confirmation and after a confirmed appointment is
// rescheduled, and swept periodically so that appointments confirmed long
// before their reminder window still get their reminders as the window
// opens. Calling it repeatedly for the same appointment is safe because
// duplicate live reminders are rejected by the repository.
type ReminderScheduler struct {
	appointments   repositories.AppointmentRepository
	reminders      repositories.ReminderRepository
	defaultChannel entities.ReminderChannel
	interval       time.Duration
	now            nowFunc
}

// NewReminderScheduler creates a new reminder scheduler
func NewReminderScheduler(
	appointments repositories.AppointmentRepository,
	reminders repositories.ReminderRepository,
	defaultChannel entities.ReminderChannel,
	interval time.Duration,
	now nowFunc,
) *ReminderScheduler {
	if !defaultChannel.Valid() {
		defaultChannel = entities.ChannelWhatsApp
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &ReminderScheduler{
		appointments:   appointments,
		reminders:      reminders,
		defaultChannel: defaultChannel,
		interval:       interval,
		now:            now,
	}
}

// Run evaluates reminder windows on a fixed interval until the context is
// cancelled.
func (s *ReminderScheduler) Run(ctx context.Context) {
	logger := observability.GetLogger()
	logger.Info().Dur("interval", s.interval).Msg("reminder scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("reminder scheduler stopped")
			return
		case <-ticker.C:
			scheduled, err := s.Sweep(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("reminder scheduling sweep failed")
				continue
			}
			if scheduled > 0 {
				logger.Info().Int("appointments", scheduled).Msg("reminder scheduling sweep completed")
			}
		}
	}
}

// Sweep scans confirmed appointments approaching a reminder window and
// materializes their reminders. Returns the number of appointments that had
// at least one window evaluated.
func (s *ReminderScheduler) Sweep(ctx context.Context) (int, error) {
	appointments, err := s.appointments.ListNeedingReminders(ctx, s.now())
	if err != nil {
		return 0, err
	}

	for _, appointment := range appointments {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := s.ScheduleForAppointment(ctx, appointment); err != nil {
			observability.LoggerFromContext(ctx).Error().Err(err).
				Str("appointment_id", appointment.ID).
				Msg("failed to schedule reminders during sweep")
		}
	}

	return len(appointments), nil
}

// ScheduleForAppointment evaluates both reminder windows against the
// appointment and creates a pending reminder for each eligible one. A window
// is skipped when its sent marker is set, when the appointment is too near or
// too far for the window, or when a live reminder of that type already exists.
func (s *ReminderScheduler) ScheduleForAppointment(ctx context.Context, appointment *entities.Appointment) error {
	now := s.now()
	logger := observability.LoggerFromContext(ctx)

	for _, rt := range entities.ReminderTypes {
		if !appointment.NeedsReminder(rt, now) {
			continue
		}

		reminder := &entities.AppointmentReminder{
			ID:            uuid.New().String(),
			AppointmentID: appointment.ID,
			ReminderType:  rt,
			Channel:       s.defaultChannel,
			Status:        entities.ReminderStatusPending,
			ScheduledFor:  appointment.ScheduledAt.Add(-rt.Window()),
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		if err := s.reminders.Create(ctx, reminder); err != nil {
			if apperrors.IsType(err, apperrors.ErrorTypeConflict) {
				// a live reminder of this type already covers the window
				continue
			}
			return err
		}

		logger.Info().
			Str("appointment_id", appointment.ID).
			Str("reminder_type", string(rt)).
			Time("scheduled_for", reminder.ScheduledFor).
			Msg("scheduled appointment reminder")
	}

	return nil
}
