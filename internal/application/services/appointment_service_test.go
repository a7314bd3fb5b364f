package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/clinic-scheduling/internal/adapters/memory"
	"github.com/clinicdesk/clinic-scheduling/internal/domain/entities"
	"github.com/clinicdesk/clinic-scheduling/internal/domain/repositories"
	apperrors "github.com/clinicdesk/clinic-scheduling/pkg/errors"
)

const testAccount = "acc-1"

// fixedNow is Monday 2026-01-05 09:00 UTC; the test doctors work Mon-Fri
var fixedNow = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store   *memory.Store
	service *AppointmentService
	doctor  *entities.Doctor
	contact *entities.Contact
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()

	doctor := &entities.Doctor{
		ID:        uuid.New().String(),
		AccountID: testAccount,
		Name:      "Dr. Amina Yusuf",
		WorkingHours: entities.WorkingHours{
			"monday":  {Start: "09:00", End: "17:00"},
			"tuesday": {Start: "09:00", End: "17:00"},
		},
		Active: true,
	}
	require.NoError(t, store.Doctors().Create(context.Background(), doctor))

	contact := &entities.Contact{
		ID:          uuid.New().String(),
		AccountID:   testAccount,
		Name:        "Chiamaka Obi",
		Email:       "chiamaka@example.com",
		PhoneNumber: "+2348033333333",
	}
	store.Contacts().Add(contact)

	now := func() time.Time { return fixedNow }
	scheduler := NewReminderScheduler(store.Appointments(), store.Reminders(), entities.ChannelWhatsApp, time.Minute, now)
	service := NewAppointmentService(
		store.Doctors(), store.Contacts(), store.Conversations(),
		store.Appointments(), store.Reminders(),
		scheduler, nil, time.UTC, now, false,
	)

	return &fixture{store: store, service: service, doctor: doctor, contact: contact}
}

func (f *fixture) createInput(offset time.Duration) CreateAppointmentInput {
	return CreateAppointmentInput{
		AccountID:   testAccount,
		DoctorID:    f.doctor.ID,
		ContactID:   f.contact.ID,
		ScheduledAt: fixedNow.Add(offset),
	}
}

func TestCreateAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.service.Create(ctx, f.createInput(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, entities.AppointmentStatusScheduled, appt.Status)
	assert.Equal(t, entities.DefaultDurationMinutes, appt.DurationMinutes)
	assert.Equal(t, appt.ScheduledAt.Add(30*time.Minute), appt.EndsAt)

	stored, err := f.store.Appointments().GetByID(ctx, testAccount, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appt.ScheduledAt, stored.ScheduledAt)
}

func TestCreateAppointmentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		mutate   func(*CreateAppointmentInput)
		wantType apperrors.ErrorType
	}{
		{"missing scheduled_at", func(in *CreateAppointmentInput) { in.ScheduledAt = time.Time{} }, apperrors.ErrorTypeValidation},
		{"negative duration", func(in *CreateAppointmentInput) { in.DurationMinutes = -15 }, apperrors.ErrorTypeValidation},
		{"unknown status", func(in *CreateAppointmentInput) { in.Status = "postponed" }, apperrors.ErrorTypeValidation},
		{"unknown doctor", func(in *CreateAppointmentInput) { in.DoctorID = "nope" }, apperrors.ErrorTypeNotFound},
		{"unknown contact", func(in *CreateAppointmentInput) { in.ContactID = "nope" }, apperrors.ErrorTypeNotFound},
		{"unknown conversation", func(in *CreateAppointmentInput) { id := "nope"; in.ConversationID = &id }, apperrors.ErrorTypeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := f.createInput(time.Hour)
			tt.mutate(&input)
			_, err := f.service.Create(ctx, input)
			assert.True(t, apperrors.IsType(err, tt.wantType), "got %v", err)
		})
	}
}

func TestCreateAppointmentConversationScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	convID := uuid.New().String()
	f.store.SeedConversation(testAccount, convID)

	input := f.createInput(time.Hour)
	input.ConversationID = &convID
	appt, err := f.service.Create(ctx, input)
	require.NoError(t, err)
	require.NotNil(t, appt.ConversationID)
	assert.Equal(t, convID, *appt.ConversationID)
}

func TestCreateAppointmentInactiveDoctor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Doctors().Deactivate(ctx, testAccount, f.doctor.ID))

	_, err := f.service.Create(ctx, f.createInput(time.Hour))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestCreateAppointmentOutsideWorkingHours(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Monday 18:00, past the 17:00 close
	input := f.createInput(9 * time.Hour)
	_, err := f.service.Create(ctx, input)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnavailable))

	// Saturday is not in the template
	input = f.createInput(5 * 24 * time.Hour)
	_, err = f.service.Create(ctx, input)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnavailable))
}

func TestCreateAppointmentConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Create(ctx, f.createInput(time.Hour))
	require.NoError(t, err)

	// overlapping slot for the same doctor
	input := f.createInput(time.Hour + 15*time.Minute)
	_, err = f.service.Create(ctx, input)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))

	// back-to-back is allowed
	_, err = f.service.Create(ctx, f.createInput(time.Hour+30*time.Minute))
	assert.NoError(t, err)
}

func TestConcurrentCreateOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.Create(ctx, f.createInput(time.Hour))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict), "got %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestCreateConfirmedSchedulesReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Tuesday 09:30, inside the 24h window from fixedNow
	input := f.createInput(24*time.Hour + 30*time.Minute)
	input.Status = entities.AppointmentStatusConfirmed
	appt, err := f.service.Create(ctx, input)
	require.NoError(t, err)

	reminders, err := f.store.Reminders().ListByAppointment(ctx, appt.ID)
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, entities.ReminderType24hBefore, reminders[0].ReminderType)
	assert.Equal(t, entities.ReminderStatusPending, reminders[0].Status)
	assert.Equal(t, appt.ScheduledAt.Add(-24*time.Hour), reminders[0].ScheduledFor)
}

func TestConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.service.Create(ctx, f.createInput(24*time.Hour+30*time.Minute))
	require.NoError(t, err)

	confirmed, err := f.service.Confirm(ctx, testAccount, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.AppointmentStatusConfirmed, confirmed.Status)

	reminders, err := f.store.Reminders().ListByAppointment(ctx, appt.ID)
	require.NoError(t, err)
	require.Len(t, reminders, 1)

	// confirming again neither fails nor duplicates reminders
	_, err = f.service.Confirm(ctx, testAccount, appt.ID)
	require.NoError(t, err)
	reminders, err = f.store.Reminders().ListByAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Len(t, reminders, 1)
}

func TestConfirmTerminalStatusRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.service.Create(ctx, f.createInput(time.Hour))
	require.NoError(t, err)
	_, err = f.service.Cancel(ctx, testAccount, appt.ID, "patient request")
	require.NoError(t, err)

	_, err = f.service.Confirm(ctx, testAccount, appt.ID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.service.Create(ctx, f.createInput(24*time.Hour+30*time.Minute))
	require.NoError(t, err)
	_, err = f.service.Confirm(ctx, testAccount, appt.ID)
	require.NoError(t, err)

	completed, err := f.service.Complete(ctx, testAccount, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.AppointmentStatusCompleted, completed.Status)

	// pending reminders are left in place; the dispatcher cancels them at
	// claim time because the appointment is no longer confirmed
	reminders, err := f.store.Reminders().ListByAppointment(ctx, appt.ID)
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, entities.ReminderStatusPending, reminders[0].Status)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	input := f.createInput(24*time.Hour + 30*time.Minute)
	input.Status = entities.AppointmentStatusConfirmed
	input.Notes = "first visit"
	appt, err := f.service.Create(ctx, input)
	require.NoError(t, err)

	cancelled, err := f.service.Cancel(ctx, testAccount, appt.ID, "patient travelling")
	require.NoError(t, err)
	assert.Equal(t, entities.AppointmentStatusCancelled, cancelled.Status)
	assert.Equal(t, "first visit\nCancelled: patient travelling", cancelled.Notes)

	reminders, err := f.store.Reminders().ListByAppointment(ctx, appt.ID)
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, entities.ReminderStatusCancelled, reminders[0].Status)

	// the cancelled slot is free again
	_, err = f.service.Create(ctx, f.createInput(24*time.Hour+30*time.Minute))
	assert.NoError(t, err)
}

func TestUpdateReschedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	input := f.createInput(24*time.Hour + 30*time.Minute)
	input.Status = entities.AppointmentStatusConfirmed
	appt, err := f.service.Create(ctx, input)
	require.NoError(t, err)

	reminders, _ := f.store.Reminders().ListByAppointment(ctx, appt.ID)
	require.Len(t, reminders, 1)
	originalReminder := reminders[0].ID

	// move within the 24h window on Tuesday
	newTime := fixedNow.Add(25 * time.Hour)
	updated, err := f.service.Update(ctx, testAccount, appt.ID, UpdateAppointmentInput{ScheduledAt: &newTime})
	require.NoError(t, err)
	assert.Equal(t, newTime, updated.ScheduledAt)
	assert.Equal(t, newTime.Add(30*time.Minute), updated.EndsAt)

	reminders, err = f.store.Reminders().ListByAppointment(ctx, appt.ID)
	require.NoError(t, err)

	var live *entities.AppointmentReminder
	for _, r := range reminders {
		if r.ID == originalReminder {
			assert.Equal(t, entities.ReminderStatusCancelled, r.Status)
			continue
		}
		if r.Live() {
			live = r
		}
	}
	require.NotNil(t, live, "expected a fresh pending reminder")
	assert.Equal(t, newTime.Add(-24*time.Hour), live.ScheduledFor)
}

func TestUpdateRerunsGatesOnTimingChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.service.Create(ctx, f.createInput(time.Hour))
	require.NoError(t, err)
	second, err := f.service.Create(ctx, f.createInput(2*time.Hour))
	require.NoError(t, err)

	// moving second onto first must conflict
	onTop := first.ScheduledAt
	_, err = f.service.Update(ctx, testAccount, second.ID, UpdateAppointmentInput{ScheduledAt: &onTop})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))

	// moving outside working hours is unavailable
	late := fixedNow.Add(10 * time.Hour)
	_, err = f.service.Update(ctx, testAccount, second.ID, UpdateAppointmentInput{ScheduledAt: &late})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnavailable))

	// a notes-only update skips the gates entirely even on a booked slot
	notes := "bring previous scans"
	updated, err := f.service.Update(ctx, testAccount, second.ID, UpdateAppointmentInput{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, updated.Notes)
}

func TestUpdateExtendingDurationChecksConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.service.Create(ctx, f.createInput(time.Hour))
	require.NoError(t, err)
	_, err = f.service.Create(ctx, f.createInput(time.Hour+30*time.Minute))
	require.NoError(t, err)

	longer := 60
	_, err = f.service.Update(ctx, testAccount, first.ID, UpdateAppointmentInput{DurationMinutes: &longer})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
}

func TestListUpcomingAndToday(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	today, err := f.service.Create(ctx, f.createInput(2*time.Hour))
	require.NoError(t, err)
	tomorrow, err := f.service.Create(ctx, f.createInput(25*time.Hour))
	require.NoError(t, err)
	_, err = f.service.Cancel(ctx, testAccount, today.ID, "")
	require.NoError(t, err)

	upcoming, err := f.service.ListUpcoming(ctx, testAccount, repositories.AppointmentFilter{})
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, tomorrow.ID, upcoming[0].ID)

	listedToday, err := f.service.ListToday(ctx, testAccount)
	require.NoError(t, err)
	require.Len(t, listedToday, 1)
	assert.Equal(t, today.ID, listedToday[0].ID)
}
