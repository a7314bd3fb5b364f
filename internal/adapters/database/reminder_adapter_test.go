package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/clinic-scheduling/internal/domain/entities"
	"github.com/clinicdesk/clinic-scheduling/internal/domain/repositories"
	"github.com/clinicdesk/clinic-scheduling/internal/infrastructure/clients/postgres"
	apperrors "github.com/clinicdesk/clinic-scheduling/pkg/errors"
)

func setupReminderAdapter(t *testing.T) (repositories.ReminderRepository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "postgres")
	return NewReminderAdapter(postgres.NewClientFromDB(db)), mock
}

var reminderColumns = []string{
	"id", "appointment_id", "reminder_type", "channel", "status",
	"scheduled_for", "sent_at", "error_message", "created_at", "updated_at",
}

func TestCreateMapsUniqueViolationToConflict(t *testing.T) {
	adapter, mock := setupReminderAdapter(t)

	mock.ExpectExec("INSERT INTO appointment_reminders").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_appointment_reminders_live"})

	err := adapter.Create(context.Background(), &entities.AppointmentReminder{
		ID:            "rem-1",
		AppointmentID: "appt-1",
		ReminderType:  entities.ReminderType24hBefore,
		Channel:       entities.ChannelWhatsApp,
		Status:        entities.ReminderStatusPending,
	})

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepDueClaimsAndCommitsSent(t *testing.T) {
	adapter, mock := setupReminderAdapter(t)
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	due := now.Add(-time.Minute)

	mock.ExpectQuery("SELECT id FROM appointment_reminders").
		WithArgs(string(entities.ReminderStatusPending), now, 100).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("rem-1"))

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WithArgs("rem-1", string(entities.ReminderStatusPending)).
		WillReturnRows(sqlmock.NewRows(reminderColumns).AddRow(
			"rem-1", "appt-1", "24h_before", "whatsapp", "pending",
			due, nil, nil, now, now,
		))
	mock.ExpectExec("UPDATE appointment_reminders").
		WithArgs(string(entities.ReminderStatusSent), now, "rem-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE appointments").
		WithArgs(now, "appt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var dispatched []string
	processed, err := adapter.SweepDue(context.Background(), now, 100, func(ctx context.Context, r *entities.AppointmentReminder) repositories.DispatchResult {
		dispatched = append(dispatched, r.ID)
		assert.Equal(t, entities.ReminderType24hBefore, r.ReminderType)
		return repositories.DispatchResult{Outcome: repositories.DispatchSent}
	})

	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, []string{"rem-1"}, dispatched)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepDueSkipsRowsClaimedElsewhere(t *testing.T) {
	adapter, mock := setupReminderAdapter(t)
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id FROM appointment_reminders").
		WithArgs(string(entities.ReminderStatusPending), now, 100).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("rem-1"))

	// the claim finds nothing: a concurrent sweep holds the row lock
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WithArgs("rem-1", string(entities.ReminderStatusPending)).
		WillReturnRows(sqlmock.NewRows(reminderColumns))
	mock.ExpectRollback()

	processed, err := adapter.SweepDue(context.Background(), now, 100, func(ctx context.Context, r *entities.AppointmentReminder) repositories.DispatchResult {
		t.Fatal("dispatch must not run for unclaimed reminders")
		return repositories.DispatchResult{}
	})

	require.NoError(t, err)
	assert.Zero(t, processed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepDueRecordsFailure(t *testing.T) {
	adapter, mock := setupReminderAdapter(t)
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id FROM appointment_reminders").
		WithArgs(string(entities.ReminderStatusPending), now, 100).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("rem-1"))

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WithArgs("rem-1", string(entities.ReminderStatusPending)).
		WillReturnRows(sqlmock.NewRows(reminderColumns).AddRow(
			"rem-1", "appt-1", "2h_before", "sms", "pending",
			now.Add(-time.Minute), nil, nil, now, now,
		))
	mock.ExpectExec("UPDATE appointment_reminders").
		WithArgs(string(entities.ReminderStatusFailed), "CHANNEL: sms reminders are not implemented", now, "rem-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	processed, err := adapter.SweepDue(context.Background(), now, 100, func(ctx context.Context, r *entities.AppointmentReminder) repositories.DispatchResult {
		return repositories.DispatchResult{
			Outcome: repositories.DispatchFailed,
			Error:   "CHANNEL: sms reminders are not implemented",
		}
	})

	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelPendingCountsRows(t *testing.T) {
	adapter, mock := setupReminderAdapter(t)

	mock.ExpectExec("UPDATE appointment_reminders").
		WithArgs(string(entities.ReminderStatusCancelled), sqlmock.AnyArg(), "appt-1", string(entities.ReminderStatusPending)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	count, err := adapter.CancelPending(context.Background(), "appt-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
