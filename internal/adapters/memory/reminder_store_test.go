package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/clinic-scheduling/internal/domain/entities"
	"github.com/clinicdesk/clinic-scheduling/internal/domain/repositories"
	apperrors "github.com/clinicdesk/clinic-scheduling/pkg/errors"
)

func pendingReminder(appointmentID string, rt entities.ReminderType, due time.Time) *entities.AppointmentReminder {
	return &entities.AppointmentReminder{
		ID:            uuid.New().String(),
		AppointmentID: appointmentID,
		ReminderType:  rt,
		Channel:       entities.ChannelWhatsApp,
		Status:        entities.ReminderStatusPending,
		ScheduledFor:  due,
	}
}

func TestReminderCreateRejectsLiveDuplicate(t *testing.T) {
	ctx := context.Background()
	store := NewStore().Reminders()
	due := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	first := pendingReminder("appt-1", entities.ReminderType24hBefore, due)
	require.NoError(t, store.Create(ctx, first))

	dup := pendingReminder("appt-1", entities.ReminderType24hBefore, due)
	err := store.Create(ctx, dup)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))

	// a different window is fine
	require.NoError(t, store.Create(ctx, pendingReminder("appt-1", entities.ReminderType2hBefore, due)))

	// once the first is cancelled, the same window can be re-created
	_, err = store.CancelPending(ctx, "appt-1")
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, pendingReminder("appt-1", entities.ReminderType24hBefore, due)))
}

func TestCancelPending(t *testing.T) {
	ctx := context.Background()
	store := NewStore().Reminders()
	due := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Create(ctx, pendingReminder("appt-1", entities.ReminderType24hBefore, due)))
	require.NoError(t, store.Create(ctx, pendingReminder("appt-1", entities.ReminderType2hBefore, due)))

	count, err := store.CancelPending(ctx, "appt-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	reminders, err := store.ListByAppointment(ctx, "appt-1")
	require.NoError(t, err)
	for _, r := range reminders {
		assert.Equal(t, entities.ReminderStatusCancelled, r.Status)
	}

	// other appointments untouched
	count, err = store.CancelPending(ctx, "appt-2")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSweepDueDispatchesAndFinalizes(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	appt := newAppointment("doc-1", now.Add(24*time.Hour), 30, entities.AppointmentStatusConfirmed)
	require.NoError(t, s.Appointments().Create(ctx, appt))

	due := pendingReminder(appt.ID, entities.ReminderType24hBefore, now.Add(-time.Minute))
	notDue := pendingReminder(appt.ID, entities.ReminderType2hBefore, now.Add(time.Hour))
	require.NoError(t, s.Reminders().Create(ctx, due))
	require.NoError(t, s.Reminders().Create(ctx, notDue))

	processed, err := s.Reminders().SweepDue(ctx, now, 10, func(ctx context.Context, r *entities.AppointmentReminder) repositories.DispatchResult {
		assert.Equal(t, due.ID, r.ID)
		return repositories.DispatchResult{Outcome: repositories.DispatchSent}
	})
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	got, err := s.Reminders().GetByID(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.ReminderStatusSent, got.Status)
	require.NotNil(t, got.SentAt)

	// the appointment marker is stamped together with the sent status
	updated, err := s.Appointments().GetByID(ctx, testAccount, appt.ID)
	require.NoError(t, err)
	assert.NotNil(t, updated.ReminderSentAt24h)
	assert.Nil(t, updated.ReminderSentAt2h)

	// the untouched reminder is still pending
	got, err = s.Reminders().GetByID(ctx, notDue.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.ReminderStatusPending, got.Status)
}

func TestSweepDueRecordsFailures(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	failing := pendingReminder("appt-1", entities.ReminderType24hBefore, now.Add(-time.Minute))
	ok := pendingReminder("appt-2", entities.ReminderType24hBefore, now.Add(-2*time.Minute))
	require.NoError(t, s.Reminders().Create(ctx, failing))
	require.NoError(t, s.Reminders().Create(ctx, ok))

	processed, err := s.Reminders().SweepDue(ctx, now, 10, func(ctx context.Context, r *entities.AppointmentReminder) repositories.DispatchResult {
		if r.ID == failing.ID {
			return repositories.DispatchResult{Outcome: repositories.DispatchFailed, Error: "sms reminders are not implemented"}
		}
		return repositories.DispatchResult{Outcome: repositories.DispatchSent}
	})
	require.NoError(t, err)
	// one failure never blocks the rest of the sweep
	assert.Equal(t, 2, processed)

	got, _ := s.Reminders().GetByID(ctx, failing.ID)
	assert.Equal(t, entities.ReminderStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "sms reminders are not implemented", *got.ErrorMessage)

	got, _ = s.Reminders().GetByID(ctx, ok.ID)
	assert.Equal(t, entities.ReminderStatusSent, got.Status)
}

func TestSweepDueCancelOutcome(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	r := pendingReminder("appt-1", entities.ReminderType24hBefore, now.Add(-time.Minute))
	require.NoError(t, s.Reminders().Create(ctx, r))

	_, err := s.Reminders().SweepDue(ctx, now, 10, func(ctx context.Context, _ *entities.AppointmentReminder) repositories.DispatchResult {
		return repositories.DispatchResult{Outcome: repositories.DispatchCancelled}
	})
	require.NoError(t, err)

	got, _ := s.Reminders().GetByID(ctx, r.ID)
	assert.Equal(t, entities.ReminderStatusCancelled, got.Status)
	assert.Nil(t, got.SentAt)
}

func TestSweepDueHonorsLimit(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	oldest := pendingReminder("appt-1", entities.ReminderType24hBefore, now.Add(-time.Hour))
	newer := pendingReminder("appt-2", entities.ReminderType24hBefore, now.Add(-time.Minute))
	require.NoError(t, s.Reminders().Create(ctx, oldest))
	require.NoError(t, s.Reminders().Create(ctx, newer))

	var seen []string
	processed, err := s.Reminders().SweepDue(ctx, now, 1, func(ctx context.Context, r *entities.AppointmentReminder) repositories.DispatchResult {
		seen = append(seen, r.ID)
		return repositories.DispatchResult{Outcome: repositories.DispatchSent}
	})
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	// oldest first
	assert.Equal(t, []string{oldest.ID}, seen)
}

func TestConcurrentSweepsNeverDoubleDispatch(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 20; i++ {
		r := pendingReminder(uuid.New().String(), entities.ReminderType24hBefore, now.Add(-time.Minute))
		require.NoError(t, s.Reminders().Create(ctx, r))
	}

	var mu sync.Mutex
	dispatched := make(map[string]int)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Reminders().SweepDue(ctx, now, 0, func(ctx context.Context, r *entities.AppointmentReminder) repositories.DispatchResult {
				mu.Lock()
				dispatched[r.ID]++
				mu.Unlock()
				return repositories.DispatchResult{Outcome: repositories.DispatchSent}
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, dispatched, 20)
	for id, count := range dispatched {
		assert.Equal(t, 1, count, "reminder %s dispatched more than once", id)
	}
}
