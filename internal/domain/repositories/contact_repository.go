package repositories

import (
	"context"

	"github.com/clinicdesk/clinic-scheduling/internal/domain/entities"
)

// ContactRepository reads patient contacts owned by the surrounding CRM
type ContactRepository interface {
	// GetByID retrieves a contact by ID within the account scope
	GetByID(ctx context.Context, accountID, id string) (*entities.Contact, error)
}

// ConversationRepository resolves originating conversations.
// The scheduling core only needs existence checks.
type ConversationRepository interface {
	// Exists reports whether a conversation exists within the account scope
	Exists(ctx context.Context, accountID, id string) (bool, error)
}
