package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dkachur-dev/contact-vault/internal/domain"
)

// PostgresContactRepo implements domain.ContactRepository using PostgreSQL.
type PostgresContactRepo struct {
	db *sql.DB
}

// NewPostgresContactRepo creates a new repository instance.
func NewPostgresContactRepo(db *sql.DB) *PostgresContactRepo {
	return &PostgresContactRepo{db: db}
}

const contactColumns = `id, user_id, first_name, last_name, email, contact_number, birth_date,
	COALESCE(additional_information, ''), created_at, updated_at`

func scanContact(scan func(dest ...any) error) (*domain.Contact, error) {
	c := &domain.Contact{}
	err := scan(
		&c.ID,
		&c.UserID,
		&c.FirstName,
		&c.LastName,
		&c.Email,
		&c.Number,
		&c.BirthDate,
		&c.AdditionalInfo,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return c, nil
}

func collectContacts(rows *sql.Rows) ([]*domain.Contact, error) {
	defer rows.Close()

	contacts := make([]*domain.Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows.Scan)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return contacts, nil
}

// Create inserts a new contact for its owning user.
func (r *PostgresContactRepo) Create(ctx context.Context, contact *domain.Contact) error {
	query := `
		INSERT INTO contacts (id, user_id, first_name, last_name, email, contact_number, birth_date, additional_information, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10)
	`

	contact.CreatedAt = time.Now()
	contact.UpdatedAt = contact.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		contact.ID,
		contact.UserID,
		contact.FirstName,
		contact.LastName,
		contact.Email,
		contact.Number,
		contact.BirthDate,
		contact.AdditionalInfo,
		contact.CreatedAt,
		contact.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}
	return nil
}

// GetByID retrieves one contact, scoped to its owner.
func (r *PostgresContactRepo) GetByID(ctx context.Context, userID, id string) (*domain.Contact, error) {
	query := fmt.Sprintf(`SELECT %s FROM contacts WHERE id = $1 AND user_id = $2`, contactColumns)
	return scanContact(r.db.QueryRowContext(ctx, query, id, userID).Scan)
}

// List returns a page of the user's contacts, newest first.
func (r *PostgresContactRepo) List(ctx context.Context, userID string, limit, offset int) ([]*domain.Contact, error) {
	query := fmt.Sprintf(`SELECT %s FROM contacts WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, contactColumns)
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return collectContacts(rows)
}

// ListAll returns a page of contacts across every user.
func (r *PostgresContactRepo) ListAll(ctx context.Context, limit, offset int) ([]*domain.Contact, error) {
	query := fmt.Sprintf(`SELECT %s FROM contacts ORDER BY created_at DESC LIMIT $1 OFFSET $2`, contactColumns)
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return collectContacts(rows)
}

// Update persists the editable fields of a contact, scoped to its owner.
func (r *PostgresContactRepo) Update(ctx context.Context, contact *domain.Contact) error {
	query := `
		UPDATE contacts
		SET first_name = $1, last_name = $2, email = $3, contact_number = $4, birth_date = $5,
		    additional_information = NULLIF($6, ''), updated_at = $7
		WHERE id = $8 AND user_id = $9
	`

	contact.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		contact.FirstName,
		contact.LastName,
		contact.Email,
		contact.Number,
		contact.BirthDate,
		contact.AdditionalInfo,
		contact.UpdatedAt,
		contact.ID,
		contact.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a contact, scoped to its owner.
func (r *PostgresContactRepo) Delete(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// FindByFirstName searches the user's contacts by exact first name.
func (r *PostgresContactRepo) FindByFirstName(ctx context.Context, userID, firstName string) ([]*domain.Contact, error) {
	return r.findBy(ctx, userID, "first_name", firstName)
}

// FindByLastName searches the user's contacts by exact last name.
func (r *PostgresContactRepo) FindByLastName(ctx context.Context, userID, lastName string) ([]*domain.Contact, error) {
	return r.findBy(ctx, userID, "last_name", lastName)
}

// FindByEmail returns the user's contact with the given email.
func (r *PostgresContactRepo) FindByEmail(ctx context.Context, userID, email string) (*domain.Contact, error) {
	query := fmt.Sprintf(`SELECT %s FROM contacts WHERE user_id = $1 AND email = $2`, contactColumns)
	return scanContact(r.db.QueryRowContext(ctx, query, userID, email).Scan)
}

func (r *PostgresContactRepo) findBy(ctx context.Context, userID, column, value string) ([]*domain.Contact, error) {
	query := fmt.Sprintf(`SELECT %s FROM contacts WHERE user_id = $1 AND %s = $2 ORDER BY created_at DESC`, contactColumns, column)
	rows, err := r.db.QueryContext(ctx, query, userID, value)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	contacts, err := collectContacts(rows)
	if err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, domain.ErrNotFound
	}
	return contacts, nil
}
