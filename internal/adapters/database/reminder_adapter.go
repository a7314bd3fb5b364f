package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/clinicdesk/clinic-scheduling/internal/domain/entities"
	"github.com/clinicdesk/clinic-scheduling/internal/domain/repositories"
	"github.com/clinicdesk/clinic-scheduling/internal/infrastructure/clients/postgres"
	apperrors "github.com/clinicdesk/clinic-scheduling/pkg/errors"
)

const pgUniqueViolation = "23505"

// ReminderAdapter implements the ReminderRepository interface. It uses raw SQL
// through sqlx: the sweep path needs row locking that the query builder does
// not express.
type ReminderAdapter struct {
	client *postgres.Client
	db     *sqlx.DB
}

// NewReminderAdapter creates a new reminder adapter
func NewReminderAdapter(client *postgres.Client) repositories.ReminderRepository {
	return &ReminderAdapter{
		client: client,
		db:     client.DB(),
	}
}

type reminderRow struct {
	ID            string         `db:"id"`
	AppointmentID string         `db:"appointment_id"`
	ReminderType  string         `db:"reminder_type"`
	Channel       string         `db:"channel"`
	Status        string         `db:"status"`
	ScheduledFor  time.Time      `db:"scheduled_for"`
	SentAt        sql.NullTime   `db:"sent_at"`
	ErrorMessage  sql.NullString `db:"error_message"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (r *reminderRow) toEntity() *entities.AppointmentReminder {
	reminder := &entities.AppointmentReminder{
		ID:            r.ID,
		AppointmentID: r.AppointmentID,
		ReminderType:  entities.ReminderType(r.ReminderType),
		Channel:       entities.ReminderChannel(r.Channel),
		Status:        entities.ReminderStatus(r.Status),
		ScheduledFor:  r.ScheduledFor,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.SentAt.Valid {
		reminder.SentAt = &r.SentAt.Time
	}
	if r.ErrorMessage.Valid {
		reminder.ErrorMessage = &r.ErrorMessage.String
	}
	return reminder
}

const reminderSelectColumns = `id, appointment_id, reminder_type, channel, status,
	scheduled_for, sent_at, error_message, created_at, updated_at`

// Create creates a pending reminder. The partial unique index on
// (appointment_id, reminder_type) over live statuses rejects duplicates.
func (a *ReminderAdapter) Create(ctx context.Context, reminder *entities.AppointmentReminder) error {
	query := `
		INSERT INTO appointment_reminders
		(id, appointment_id, reminder_type, channel, status, scheduled_for,
		 sent_at, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := a.db.ExecContext(ctx, query,
		reminder.ID, reminder.AppointmentID, reminder.ReminderType, reminder.Channel,
		reminder.Status, reminder.ScheduledFor, reminder.SentAt, reminder.ErrorMessage,
		reminder.CreatedAt, reminder.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
			return apperrors.NewConflictError(fmt.Sprintf(
				"a live %s reminder already exists for appointment %s",
				reminder.ReminderType, reminder.AppointmentID,
			))
		}
		return apperrors.NewInternalError("failed to create reminder", err)
	}

	return nil
}

// GetByID retrieves a reminder by ID
func (a *ReminderAdapter) GetByID(ctx context.Context, id string) (*entities.AppointmentReminder, error) {
	var row reminderRow
	query := `SELECT ` + reminderSelectColumns + ` FROM appointment_reminders WHERE id = $1`

	err := a.db.GetContext(ctx, &row, query, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("reminder with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get reminder", err)
	}

	return row.toEntity(), nil
}

// ListByAppointment retrieves all reminders for an appointment
func (a *ReminderAdapter) ListByAppointment(ctx context.Context, appointmentID string) ([]*entities.AppointmentReminder, error) {
	var rows []reminderRow
	query := `SELECT ` + reminderSelectColumns + `
		FROM appointment_reminders
		WHERE appointment_id = $1
		ORDER BY scheduled_for`

	if err := a.db.SelectContext(ctx, &rows, query, appointmentID); err != nil {
		return nil, apperrors.NewInternalError("failed to list reminders", err)
	}

	reminders := make([]*entities.AppointmentReminder, 0, len(rows))
	for i := range rows {
		reminders = append(reminders, rows[i].toEntity())
	}

	return reminders, nil
}

// CancelPending transitions all pending reminders of an appointment to cancelled
func (a *ReminderAdapter) CancelPending(ctx context.Context, appointmentID string) (int, error) {
	query := `
		UPDATE appointment_reminders
		SET status = $1, updated_at = $2
		WHERE appointment_id = $3 AND status = $4
	`
	result, err := a.db.ExecContext(ctx, query,
		entities.ReminderStatusCancelled, time.Now(), appointmentID, entities.ReminderStatusPending,
	)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to cancel pending reminders", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to get rows affected", err)
	}

	return int(rowsAffected), nil
}

// SweepDue claims due reminders one by one and applies the dispatch result.
// Each reminder runs in its own transaction: the row is locked with FOR UPDATE
// SKIP LOCKED (so overlapping sweeps never see each other's claims) and the
// terminal status commits together with the claim. Rolling back mid-flight
// leaves the reminder pending.
func (a *ReminderAdapter) SweepDue(ctx context.Context, now time.Time, limit int, fn repositories.ReminderDispatchFunc) (int, error) {
	var ids []string
	query := `
		SELECT id FROM appointment_reminders
		WHERE status = $1 AND scheduled_for <= $2
		ORDER BY scheduled_for
		LIMIT $3
	`
	if err := a.db.SelectContext(ctx, &ids, query, entities.ReminderStatusPending, now, limit); err != nil {
		return 0, apperrors.NewInternalError("failed to select due reminders", err)
	}

	processed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		claimed, err := a.processOne(ctx, id, now, fn)
		if err != nil {
			return processed, err
		}
		if claimed {
			processed++
		}
	}

	return processed, nil
}

func (a *ReminderAdapter) processOne(ctx context.Context, id string, now time.Time, fn repositories.ReminderDispatchFunc) (bool, error) {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, apperrors.NewInternalError("failed to begin sweep transaction", err)
	}
	defer tx.Rollback()

	var row reminderRow
	claimQuery := `SELECT ` + reminderSelectColumns + `
		FROM appointment_reminders
		WHERE id = $1 AND status = $2
		FOR UPDATE SKIP LOCKED`

	err = tx.GetContext(ctx, &row, claimQuery, id, entities.ReminderStatusPending)
	if err == sql.ErrNoRows {
		// Claimed by a concurrent sweep or no longer pending.
		return false, nil
	}
	if err != nil {
		return false, apperrors.NewInternalError("failed to claim reminder", err)
	}

	result := fn(ctx, row.toEntity())

	switch result.Outcome {
	case repositories.DispatchSent:
		_, err = tx.ExecContext(ctx, `
			UPDATE appointment_reminders
			SET status = $1, sent_at = $2, updated_at = $2
			WHERE id = $3
		`, entities.ReminderStatusSent, now, id)
		if err == nil {
			err = a.stampAppointmentMarker(ctx, tx, row.AppointmentID, entities.ReminderType(row.ReminderType), now)
		}
	case repositories.DispatchCancelled:
		_, err = tx.ExecContext(ctx, `
			UPDATE appointment_reminders
			SET status = $1, updated_at = $2
			WHERE id = $3
		`, entities.ReminderStatusCancelled, now, id)
	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE appointment_reminders
			SET status = $1, error_message = $2, updated_at = $3
			WHERE id = $4
		`, entities.ReminderStatusFailed, result.Error, now, id)
	}
	if err != nil {
		return false, apperrors.NewInternalError("failed to finalize reminder", err)
	}

	if err := tx.Commit(); err != nil {
		return false, apperrors.NewInternalError("failed to commit sweep transaction", err)
	}

	return true, nil
}

func (a *ReminderAdapter) stampAppointmentMarker(ctx context.Context, tx *sqlx.Tx, appointmentID string, rt entities.ReminderType, now time.Time) error {
	column := "reminder_sent_at_24h"
	if rt == entities.ReminderType2hBefore {
		column = "reminder_sent_at_2h"
	}

	query := fmt.Sprintf(`
		UPDATE appointments
		SET %s = $1, updated_at = $1
		WHERE id = $2
	`, column)

	_, err := tx.ExecContext(ctx, query, now, appointmentID)
	return err
}
