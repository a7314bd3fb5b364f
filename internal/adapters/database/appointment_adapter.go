package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/clinicdesk/clinic-scheduling/internal/domain/entities"
	"github.com/clinicdesk/clinic-scheduling/internal/domain/repositories"
	"github.com/clinicdesk/clinic-scheduling/internal/infrastructure/clients/postgres"
	apperrors "github.com/clinicdesk/clinic-scheduling/pkg/errors"
)

var appointmentColumns = []any{
	"id", "account_id", "doctor_id", "contact_id", "conversation_id",
	"scheduled_at", "ends_at", "duration_minutes", "status", "notes",
	"google_calendar_event_id", "reminder_sent_at_24h", "reminder_sent_at_2h",
	"metadata", "created_at", "updated_at",
}

// AppointmentAdapter implements the AppointmentRepository interface
type AppointmentAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAppointmentAdapter creates a new appointment adapter
func NewAppointmentAdapter(client *postgres.Client) repositories.AppointmentRepository {
	return &AppointmentAdapter{
		client: client,
		db:     goqu.New("postgres", client.SQLDB()),
	}
}

// Create creates a new appointment
func (a *AppointmentAdapter) Create(ctx context.Context, appointment *entities.Appointment) error {
	metadata, err := json.Marshal(appointment.Metadata)
	if err != nil {
		return apperrors.NewInternalError("failed to marshal metadata", err)
	}

	record := goqu.Record{
		"id":                       appointment.ID,
		"account_id":               appointment.AccountID,
		"doctor_id":                appointment.DoctorID,
		"contact_id":               appointment.ContactID,
		"conversation_id":          appointment.ConversationID,
		"scheduled_at":             appointment.ScheduledAt,
		"ends_at":                  appointment.EndsAt,
		"duration_minutes":         appointment.DurationMinutes,
		"status":                   appointment.Status,
		"notes":                    appointment.Notes,
		"google_calendar_event_id": appointment.GoogleCalendarEventID,
		"reminder_sent_at_24h":     appointment.ReminderSentAt24h,
		"reminder_sent_at_2h":      appointment.ReminderSentAt2h,
		"metadata":                 metadata,
		"created_at":               appointment.CreatedAt,
		"updated_at":               appointment.UpdatedAt,
	}

	query, args, err := a.db.Insert("appointments").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.SQLDB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create appointment", err)
	}

	return nil
}

// GetByID retrieves an appointment by ID within the account scope
func (a *AppointmentAdapter) GetByID(ctx context.Context, accountID, id string) (*entities.Appointment, error) {
	query, args, err := a.db.Select(appointmentColumns...).
		From("appointments").
		Where(goqu.Ex{"id": id, "account_id": accountID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	appointment, err := scanAppointment(a.client.SQLDB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get appointment", err)
	}

	return appointment, nil
}

// GetByIDUnscoped retrieves an appointment by ID without account scoping
func (a *AppointmentAdapter) GetByIDUnscoped(ctx context.Context, id string) (*entities.Appointment, error) {
	query, args, err := a.db.Select(appointmentColumns...).
		From("appointments").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	appointment, err := scanAppointment(a.client.SQLDB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get appointment", err)
	}

	return appointment, nil
}

// Update updates an appointment
func (a *AppointmentAdapter) Update(ctx context.Context, appointment *entities.Appointment) error {
	appointment.UpdatedAt = time.Now()

	metadata, err := json.Marshal(appointment.Metadata)
	if err != nil {
		return apperrors.NewInternalError("failed to marshal metadata", err)
	}

	record := goqu.Record{
		"doctor_id":                appointment.DoctorID,
		"contact_id":               appointment.ContactID,
		"conversation_id":          appointment.ConversationID,
		"scheduled_at":             appointment.ScheduledAt,
		"ends_at":                  appointment.EndsAt,
		"duration_minutes":         appointment.DurationMinutes,
		"status":                   appointment.Status,
		"notes":                    appointment.Notes,
		"google_calendar_event_id": appointment.GoogleCalendarEventID,
		"reminder_sent_at_24h":     appointment.ReminderSentAt24h,
		"reminder_sent_at_2h":      appointment.ReminderSentAt2h,
		"metadata":                 metadata,
		"updated_at":               appointment.UpdatedAt,
	}

	query, args, err := a.db.Update("appointments").
		Set(record).
		Where(goqu.Ex{"id": appointment.ID, "account_id": appointment.AccountID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.SQLDB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update appointment", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", appointment.ID))
	}

	return nil
}

// SetCalendarEventID stores or clears the external calendar event ID. The
// update is limited to that column so a slow calendar sync never clobbers
// status or reminder markers written in the meantime.
func (a *AppointmentAdapter) SetCalendarEventID(ctx context.Context, id string, eventID *string) error {
	query, args, err := a.db.Update("appointments").
		Set(goqu.Record{
			"google_calendar_event_id": eventID,
			"updated_at":               time.Now(),
		}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.SQLDB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to set calendar event id", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
	}

	return nil
}

// Delete destroys an appointment. Reminders go with it via the foreign key's
// ON DELETE CASCADE.
func (a *AppointmentAdapter) Delete(ctx context.Context, accountID, id string) error {
	query, args, err := a.db.Delete("appointments").
		Where(goqu.Ex{"id": id, "account_id": accountID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	result, err := a.client.SQLDB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to delete appointment", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
	}

	return nil
}

// HasConflict reports whether any active appointment for the doctor overlaps
// [start, end). Two intervals conflict when existing.scheduled_at < end AND
// existing.ends_at > start.
func (a *AppointmentAdapter) HasConflict(ctx context.Context, doctorID string, start, end time.Time, excludeID string) (bool, error) {
	ds := a.db.Select(goqu.COUNT("id")).
		From("appointments").
		Where(
			goqu.Ex{"doctor_id": doctorID},
			goqu.C("status").In(string(entities.AppointmentStatusScheduled), string(entities.AppointmentStatusConfirmed)),
			goqu.C("scheduled_at").Lt(end),
			goqu.C("ends_at").Gt(start),
		)

	if excludeID != "" {
		ds = ds.Where(goqu.C("id").Neq(excludeID))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build conflict query", err)
	}

	var count int
	if err := a.client.SQLDB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, apperrors.NewInternalError("failed to check conflicts", err)
	}

	return count > 0, nil
}

// List retrieves appointments for an account matching the filter
func (a *AppointmentAdapter) List(ctx context.Context, accountID string, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	ds := a.db.Select(appointmentColumns...).
		From("appointments").
		Where(goqu.Ex{"account_id": accountID})

	ds = applyFilter(ds, filter)

	return a.queryAppointments(ctx, ds)
}

// ListUpcoming retrieves appointments with scheduled_at after now. Without a
// status filter only active statuses are included.
func (a *AppointmentAdapter) ListUpcoming(ctx context.Context, accountID string, now time.Time, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	ds := a.db.Select(appointmentColumns...).
		From("appointments").
		Where(
			goqu.Ex{"account_id": accountID},
			goqu.C("scheduled_at").Gt(now),
		)

	if filter.Status == "" {
		ds = ds.Where(goqu.C("status").In(
			string(entities.AppointmentStatusScheduled),
			string(entities.AppointmentStatusConfirmed),
		))
	}

	ds = applyFilter(ds, filter)

	return a.queryAppointments(ctx, ds)
}

// ListToday retrieves appointments on the calendar day of now in loc
func (a *AppointmentAdapter) ListToday(ctx context.Context, accountID string, now time.Time, loc *time.Location) ([]*entities.Appointment, error) {
	local := now.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	ds := a.db.Select(appointmentColumns...).
		From("appointments").
		Where(
			goqu.Ex{"account_id": accountID},
			goqu.C("scheduled_at").Gte(dayStart),
			goqu.C("scheduled_at").Lt(dayEnd),
		).
		Order(goqu.I("scheduled_at").Asc())

	return a.queryAppointments(ctx, ds)
}

// ListNeedingReminders retrieves confirmed appointments starting within the
// widest reminder horizon (24h window + 1h slack) that still have an
// unstamped marker. Runs across accounts; the scheduler re-checks per-window
// eligibility.
func (a *AppointmentAdapter) ListNeedingReminders(ctx context.Context, now time.Time) ([]*entities.Appointment, error) {
	horizon := now.Add(25 * time.Hour)

	ds := a.db.Select(appointmentColumns...).
		From("appointments").
		Where(
			goqu.Ex{"status": string(entities.AppointmentStatusConfirmed)},
			goqu.C("scheduled_at").Gt(now),
			goqu.C("scheduled_at").Lte(horizon),
			goqu.Or(
				goqu.C("reminder_sent_at_24h").IsNull(),
				goqu.C("reminder_sent_at_2h").IsNull(),
			),
		).
		Order(goqu.I("scheduled_at").Asc())

	return a.queryAppointments(ctx, ds)
}

func applyFilter(ds *goqu.SelectDataset, filter repositories.AppointmentFilter) *goqu.SelectDataset {
	if filter.DoctorID != "" {
		ds = ds.Where(goqu.Ex{"doctor_id": filter.DoctorID})
	}
	if filter.Status != "" {
		ds = ds.Where(goqu.Ex{"status": filter.Status})
	}
	if filter.From != nil {
		ds = ds.Where(goqu.C("scheduled_at").Gte(*filter.From))
	}
	if filter.To != nil {
		ds = ds.Where(goqu.C("scheduled_at").Lte(*filter.To))
	}

	ds = ds.Order(goqu.I("scheduled_at").Asc())

	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	return ds
}

func (a *AppointmentAdapter) queryAppointments(ctx context.Context, ds *goqu.SelectDataset) ([]*entities.Appointment, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.SQLDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list appointments", err)
	}
	defer rows.Close()

	var appointments []*entities.Appointment
	for rows.Next() {
		appointment, err := scanAppointment(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan appointment", err)
		}
		appointments = append(appointments, appointment)
	}

	return appointments, rows.Err()
}

func scanAppointment(row rowScanner) (*entities.Appointment, error) {
	appointment := &entities.Appointment{}
	var conversationID, notes, calendarEventID sql.NullString
	var sent24h, sent2h sql.NullTime
	var metadata []byte

	err := row.Scan(
		&appointment.ID,
		&appointment.AccountID,
		&appointment.DoctorID,
		&appointment.ContactID,
		&conversationID,
		&appointment.ScheduledAt,
		&appointment.EndsAt,
		&appointment.DurationMinutes,
		&appointment.Status,
		&notes,
		&calendarEventID,
		&sent24h,
		&sent2h,
		&metadata,
		&appointment.CreatedAt,
		&appointment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if conversationID.Valid {
		appointment.ConversationID = &conversationID.String
	}
	appointment.Notes = notes.String
	if calendarEventID.Valid {
		appointment.GoogleCalendarEventID = &calendarEventID.String
	}
	if sent24h.Valid {
		appointment.ReminderSentAt24h = &sent24h.Time
	}
	if sent2h.Valid {
		appointment.ReminderSentAt2h = &sent2h.Time
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &appointment.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return appointment, nil
}
