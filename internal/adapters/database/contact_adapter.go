package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/clinicdesk/clinic-scheduling/internal/domain/entities"
	"github.com/clinicdesk/clinic-scheduling/internal/domain/repositories"
	"github.com/clinicdesk/clinic-scheduling/internal/infrastructure/clients/postgres"
	apperrors "github.com/clinicdesk/clinic-scheduling/pkg/errors"
)

// ContactAdapter implements the ContactRepository interface
type ContactAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewContactAdapter creates a new contact adapter
func NewContactAdapter(client *postgres.Client) repositories.ContactRepository {
	return &ContactAdapter{
		client: client,
		db:     goqu.New("postgres", client.SQLDB()),
	}
}

// GetByID retrieves a contact by ID within the account scope
func (a *ContactAdapter) GetByID(ctx context.Context, accountID, id string) (*entities.Contact, error) {
	query, args, err := a.db.Select(
		"id", "account_id", "name", "email", "phone_number", "created_at", "updated_at",
	).From("contacts").
		Where(goqu.Ex{"id": id, "account_id": accountID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	contact := &entities.Contact{}
	var email, phone sql.NullString

	err = a.client.SQLDB().QueryRowContext(ctx, query, args...).Scan(
		&contact.ID,
		&contact.AccountID,
		&contact.Name,
		&email,
		&phone,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("contact with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get contact", err)
	}

	contact.Email = email.String
	contact.PhoneNumber = phone.String

	return contact, nil
}

// ConversationAdapter implements the ConversationRepository interface
type ConversationAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewConversationAdapter creates a new conversation adapter
func NewConversationAdapter(client *postgres.Client) repositories.ConversationRepository {
	return &ConversationAdapter{
		client: client,
		db:     goqu.New("postgres", client.SQLDB()),
	}
}

// Exists reports whether a conversation exists within the account scope
func (a *ConversationAdapter) Exists(ctx context.Context, accountID, id string) (bool, error) {
	query, args, err := a.db.Select(goqu.COUNT("id")).
		From("conversations").
		Where(goqu.Ex{"id": id, "account_id": accountID}).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build query", err)
	}

	var count int
	if err := a.client.SQLDB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, apperrors.NewInternalError("failed to check conversation", err)
	}

	return count > 0, nil
}
