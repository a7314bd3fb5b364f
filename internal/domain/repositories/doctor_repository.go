package repositories

import (
	"context"

	"github.com/clinicdesk/clinic-scheduling/internal/domain/entities"
)

// DoctorRepository defines the interface for doctor data operations.
// All reads are scoped to a clinic account; a doctor belonging to a different
// account is reported as not found.
type DoctorRepository interface {
	// Create creates a new doctor
	Create(ctx context.Context, doctor *entities.Doctor) error

	// GetByID retrieves a doctor by ID within the account scope
	GetByID(ctx context.Context, accountID, id string) (*entities.Doctor, error)

	// Update updates a doctor
	Update(ctx context.Context, doctor *entities.Doctor) error

	// Deactivate soft-deletes a doctor by clearing the active flag.
	// Doctors are never hard-deleted while appointments reference them.
	Deactivate(ctx context.Context, accountID, id string) error

	// List retrieves doctors for an account, optionally only active ones
	List(ctx context.Context, accountID string, activeOnly bool) ([]*entities.Doctor, error)
}
