package memory

import (
	"sync"
	"time"

	"github.com/clinicdesk/clinic-scheduling/internal/domain/entities"
)

// Store is an in-memory backing store for the repository interfaces. It is
// used by the unit tests and as a local development fallback when no database
// is configured. The per-entity repositories share one store and one lock.
type Store struct {
	mu sync.RWMutex

	doctors       map[string]*entities.Doctor
	contacts      map[string]*entities.Contact
	conversations map[string]string // conversation id -> account id
	appointments  map[string]*entities.Appointment
	reminders     map[string]*entities.AppointmentReminder

	// claimed marks reminders taken by an in-flight sweep so overlapping
	// sweeps skip them, mirroring FOR UPDATE SKIP LOCKED.
	claimed map[string]bool
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		doctors:       make(map[string]*entities.Doctor),
		contacts:      make(map[string]*entities.Contact),
		conversations: make(map[string]string),
		appointments:  make(map[string]*entities.Appointment),
		reminders:     make(map[string]*entities.AppointmentReminder),
		claimed:       make(map[string]bool),
	}
}

// Doctors returns the doctor repository view of the store
func (s *Store) Doctors() *DoctorStore {
	return &DoctorStore{s: s}
}

// Contacts returns the contact repository view of the store
func (s *Store) Contacts() *ContactStore {
	return &ContactStore{s: s}
}

// Conversations returns the conversation repository view of the store
func (s *Store) Conversations() *ConversationStore {
	return &ConversationStore{s: s}
}

// Appointments returns the appointment repository view of the store
func (s *Store) Appointments() *AppointmentStore {
	return &AppointmentStore{s: s}
}

// Reminders returns the reminder repository view of the store
func (s *Store) Reminders() *ReminderStore {
	return &ReminderStore{s: s}
}

// SeedConversation registers a conversation id for an account
func (s *Store) SeedConversation(accountID, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[id] = accountID
}

func cloneDoctor(d *entities.Doctor) *entities.Doctor {
	c := *d
	if d.WorkingHours != nil {
		c.WorkingHours = make(entities.WorkingHours, len(d.WorkingHours))
		for k, v := range d.WorkingHours {
			c.WorkingHours[k] = v
		}
	}
	return &c
}

func cloneContact(c *entities.Contact) *entities.Contact {
	cp := *c
	return &cp
}

func cloneAppointment(a *entities.Appointment) *entities.Appointment {
	c := *a
	c.ConversationID = cloneStringPtr(a.ConversationID)
	c.GoogleCalendarEventID = cloneStringPtr(a.GoogleCalendarEventID)
	c.ReminderSentAt24h = cloneTimePtr(a.ReminderSentAt24h)
	c.ReminderSentAt2h = cloneTimePtr(a.ReminderSentAt2h)
	if a.Metadata != nil {
		c.Metadata = make(map[string]any, len(a.Metadata))
		for k, v := range a.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

func cloneReminder(r *entities.AppointmentReminder) *entities.AppointmentReminder {
	c := *r
	c.SentAt = cloneTimePtr(r.SentAt)
	c.ErrorMessage = cloneStringPtr(r.ErrorMessage)
	return &c
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
