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

var doctorColumns = []any{
	"id", "account_id", "name", "specialization", "email", "phone", "bio",
	"google_calendar_id", "working_hours", "active", "created_at", "updated_at",
}

// DoctorAdapter implements the DoctorRepository interface
type DoctorAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewDoctorAdapter creates a new doctor adapter
func NewDoctorAdapter(client *postgres.Client) repositories.DoctorRepository {
	return &DoctorAdapter{
		client: client,
		db:     goqu.New("postgres", client.SQLDB()),
	}
}

// Create creates a new doctor
func (a *DoctorAdapter) Create(ctx context.Context, doctor *entities.Doctor) error {
	hours, err := json.Marshal(doctor.WorkingHours)
	if err != nil {
		return apperrors.NewInternalError("failed to marshal working hours", err)
	}

	record := goqu.Record{
		"id":                 doctor.ID,
		"account_id":         doctor.AccountID,
		"name":               doctor.Name,
		"specialization":     doctor.Specialization,
		"email":              doctor.Email,
		"phone":              doctor.Phone,
		"bio":                doctor.Bio,
		"google_calendar_id": doctor.GoogleCalendarID,
		"working_hours":      hours,
		"active":             doctor.Active,
		"created_at":         doctor.CreatedAt,
		"updated_at":         doctor.UpdatedAt,
	}

	query, args, err := a.db.Insert("doctors").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.SQLDB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create doctor", err)
	}

	return nil
}

// GetByID retrieves a doctor by ID within the account scope
func (a *DoctorAdapter) GetByID(ctx context.Context, accountID, id string) (*entities.Doctor, error) {
	query, args, err := a.db.Select(doctorColumns...).
		From("doctors").
		Where(goqu.Ex{"id": id, "account_id": accountID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	doctor, err := scanDoctor(a.client.SQLDB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("doctor with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get doctor", err)
	}

	return doctor, nil
}

// Update updates a doctor
func (a *DoctorAdapter) Update(ctx context.Context, doctor *entities.Doctor) error {
	doctor.UpdatedAt = time.Now()

	hours, err := json.Marshal(doctor.WorkingHours)
	if err != nil {
		return apperrors.NewInternalError("failed to marshal working hours", err)
	}

	record := goqu.Record{
		"name":               doctor.Name,
		"specialization":     doctor.Specialization,
		"email":              doctor.Email,
		"phone":              doctor.Phone,
		"bio":                doctor.Bio,
		"google_calendar_id": doctor.GoogleCalendarID,
		"working_hours":      hours,
		"active":             doctor.Active,
		"updated_at":         doctor.UpdatedAt,
	}

	query, args, err := a.db.Update("doctors").
		Set(record).
		Where(goqu.Ex{"id": doctor.ID, "account_id": doctor.AccountID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.SQLDB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update doctor", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("doctor with id %s not found", doctor.ID))
	}

	return nil
}

// Deactivate soft-deletes a doctor by clearing the active flag
func (a *DoctorAdapter) Deactivate(ctx context.Context, accountID, id string) error {
	query, args, err := a.db.Update("doctors").
		Set(goqu.Record{"active": false, "updated_at": time.Now()}).
		Where(goqu.Ex{"id": id, "account_id": accountID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build deactivate query", err)
	}

	result, err := a.client.SQLDB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to deactivate doctor", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("doctor with id %s not found", id))
	}

	return nil
}

// List retrieves doctors for an account
func (a *DoctorAdapter) List(ctx context.Context, accountID string, activeOnly bool) ([]*entities.Doctor, error) {
	ds := a.db.Select(doctorColumns...).
		From("doctors").
		Where(goqu.Ex{"account_id": accountID}).
		Order(goqu.I("name").Asc())

	if activeOnly {
		ds = ds.Where(goqu.Ex{"active": true})
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.SQLDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list doctors", err)
	}
	defer rows.Close()

	var doctors []*entities.Doctor
	for rows.Next() {
		doctor, err := scanDoctor(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan doctor", err)
		}
		doctors = append(doctors, doctor)
	}

	return doctors, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDoctor(row rowScanner) (*entities.Doctor, error) {
	doctor := &entities.Doctor{}
	var specialization, email, phone, bio, calendarID sql.NullString
	var hours []byte

	err := row.Scan(
		&doctor.ID,
		&doctor.AccountID,
		&doctor.Name,
		&specialization,
		&email,
		&phone,
		&bio,
		&calendarID,
		&hours,
		&doctor.Active,
		&doctor.CreatedAt,
		&doctor.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	doctor.Specialization = specialization.String
	doctor.Email = email.String
	doctor.Phone = phone.String
	doctor.Bio = bio.String
	doctor.GoogleCalendarID = calendarID.String

	if len(hours) > 0 {
		if err := json.Unmarshal(hours, &doctor.WorkingHours); err != nil {
			return nil, fmt.Errorf("failed to unmarshal working hours: %w", err)
		}
	}

	return doctor, nil
}
