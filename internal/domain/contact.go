package domain

import (
	"context"
	"time"
)

// Contact is a single address-book entry owned by one user.
type Contact struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Email          string    `json:"email"`
	Number         string    `json:"contact_number"`
	BirthDate      time.Time `json:"birth_date"`
	AdditionalInfo string    `json:"additional_information,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ContactRepository defines the contract for contact persistence. Every
// lookup except ListAll is scoped to the owning user.
type ContactRepository interface {
	Create(ctx context.Context, contact *Contact) error
	GetByID(ctx context.Context, userID, id string) (*Contact, error)
	List(ctx context.Context, userID string, limit, offset int) ([]*Contact, error)
	ListAll(ctx context.Context, limit, offset int) ([]*Contact, error)
	Update(ctx context.Context, contact *Contact) error
	Delete(ctx context.Context, userID, id string) error
	FindByFirstName(ctx context.Context, userID, firstName string) ([]*Contact, error)
	FindByLastName(ctx context.Context, userID, lastName string) ([]*Contact, error)
	FindByEmail(ctx context.Context, userID, email string) (*Contact, error)
}
