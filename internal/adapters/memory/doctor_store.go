package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/clinicdesk/clinic-scheduling/internal/domain/entities"
	apperrors "github.com/clinicdesk/clinic-scheduling/pkg/errors"
)

// DoctorStore implements repositories.DoctorRepository in memory
type DoctorStore struct {
	s *Store
}

// Create creates a new doctor
func (d *DoctorStore) Create(ctx context.Context, doctor *entities.Doctor) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()

	if _, exists := d.s.doctors[doctor.ID]; exists {
		return apperrors.NewConflictError(fmt.Sprintf("doctor with id %s already exists", doctor.ID))
	}
	d.s.doctors[doctor.ID] = cloneDoctor(doctor)
	return nil
}

// GetByID retrieves a doctor by ID within the account scope
func (d *DoctorStore) GetByID(ctx context.Context, accountID, id string) (*entities.Doctor, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()

	doctor, ok := d.s.doctors[id]
	if !ok || doctor.AccountID != accountID {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("doctor with id %s not found", id))
	}
	return cloneDoctor(doctor), nil
}

// Update updates a doctor
func (d *DoctorStore) Update(ctx context.Context, doctor *entities.Doctor) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()

	existing, ok := d.s.doctors[doctor.ID]
	if !ok || existing.AccountID != doctor.AccountID {
		return apperrors.NewNotFoundError(fmt.Sprintf("doctor with id %s not found", doctor.ID))
	}
	doctor.UpdatedAt = time.Now()
	d.s.doctors[doctor.ID] = cloneDoctor(doctor)
	return nil
}

// Deactivate soft-deletes a doctor by clearing the active flag
func (d *DoctorStore) Deactivate(ctx context.Context, accountID, id string) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()

	doctor, ok := d.s.doctors[id]
	if !ok || doctor.AccountID != accountID {
		return apperrors.NewNotFoundError(fmt.Sprintf("doctor with id %s not found", id))
	}
	doctor.Active = false
	doctor.UpdatedAt = time.Now()
	return nil
}

// List retrieves doctors for an account
func (d *DoctorStore) List(ctx context.Context, accountID string, activeOnly bool) ([]*entities.Doctor, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()

	var doctors []*entities.Doctor
	for _, doctor := range d.s.doctors {
		if doctor.AccountID != accountID {
			continue
		}
		if activeOnly && !doctor.Active {
			continue
		}
		doctors = append(doctors, cloneDoctor(doctor))
	}

	sort.Slice(doctors, func(i, j int) bool { return doctors[i].Name < doctors[j].Name })
	return doctors, nil
}

// ContactStore implements repositories.ContactRepository in memory
type ContactStore struct {
	s *Store
}

// Add seeds a contact into the store
func (c *ContactStore) Add(contact *entities.Contact) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.contacts[contact.ID] = cloneContact(contact)
}

// GetByID retrieves a contact by ID within the account scope
func (c *ContactStore) GetByID(ctx context.Context, accountID, id string) (*entities.Contact, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	contact, ok := c.s.contacts[id]
	if !ok || contact.AccountID != accountID {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("contact with id %s not found", id))
	}
	return cloneContact(contact), nil
}

// ConversationStore implements repositories.ConversationRepository in memory
type ConversationStore struct {
	s *Store
}

// Exists reports whether a conversation exists within the account scope
func (c *ConversationStore) Exists(ctx context.Context, accountID, id string) (bool, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	owner, ok := c.s.conversations[id]
	return ok && owner == accountID, nil
}
