package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dkachur-dev/contact-vault/internal/domain"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// ContactUsecase implements the address-book operations. Every call is scoped
// to the owning user; ListAll is the one exception and its callers must hold
// the admin or moderator role.
type ContactUsecase struct {
	contacts domain.ContactRepository
	now      func() time.Time
}

func NewContactUsecase(contacts domain.ContactRepository, now func() time.Time) *ContactUsecase {
	if now == nil {
		now = time.Now
	}
	return &ContactUsecase{contacts: contacts, now: now}
}

// ContactInput carries the caller-editable contact fields.
type ContactInput struct {
	FirstName      string
	LastName       string
	Email          string
	Number         string
	BirthDate      time.Time
	AdditionalInfo string
}

func (u *ContactUsecase) Create(ctx context.Context, userID string, in ContactInput) (*domain.Contact, error) {
	contact := &domain.Contact{
		ID:             uuid.NewString(),
		UserID:         userID,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Email:          in.Email,
		Number:         in.Number,
		BirthDate:      in.BirthDate,
		AdditionalInfo: in.AdditionalInfo,
	}
	if err := u.contacts.Create(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

func (u *ContactUsecase) Get(ctx context.Context, userID, id string) (*domain.Contact, error) {
	return u.contacts.GetByID(ctx, userID, id)
}

func (u *ContactUsecase) List(ctx context.Context, userID string, limit, offset int) ([]*domain.Contact, error) {
	return u.contacts.List(ctx, userID, clampLimit(limit), max(offset, 0))
}

// ListAll returns contacts across all users. Authorization happens at the
// delivery layer via the role gate.
func (u *ContactUsecase) ListAll(ctx context.Context, limit, offset int) ([]*domain.Contact, error) {
	return u.contacts.ListAll(ctx, clampLimit(limit), max(offset, 0))
}

func (u *ContactUsecase) Update(ctx context.Context, userID, id string, in ContactInput) (*domain.Contact, error) {
	contact, err := u.contacts.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	contact.FirstName = in.FirstName
	contact.LastName = in.LastName
	contact.Email = in.Email
	contact.Number = in.Number
	contact.BirthDate = in.BirthDate
	contact.AdditionalInfo = in.AdditionalInfo

	if err := u.contacts.Update(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

func (u *ContactUsecase) Delete(ctx context.Context, userID, id string) error {
	return u.contacts.Delete(ctx, userID, id)
}

// Search finds contacts by exact first name, last name, or email, whichever
// is provided (checked in that order).
func (u *ContactUsecase) Search(ctx context.Context, userID, firstName, lastName, email string) ([]*domain.Contact, error) {
	switch {
	case firstName != "":
		return u.contacts.FindByFirstName(ctx, userID, firstName)
	case lastName != "":
		return u.contacts.FindByLastName(ctx, userID, lastName)
	case email != "":
		contact, err := u.contacts.FindByEmail(ctx, userID, email)
		if err != nil {
			return nil, err
		}
		return []*domain.Contact{contact}, nil
	default:
		return nil, errors.New("search requires first_name, last_name or email")
	}
}

// UpcomingBirthdays returns the user's contacts whose birthday falls within
// the next `days` days, excluding today. The comparison is by month and day
// only and handles windows that wrap the end of the year.
func (u *ContactUsecase) UpcomingBirthdays(ctx context.Context, userID string, days, limit, offset int) ([]*domain.Contact, error) {
	if days <= 0 {
		days = 7
	}
	contacts, err := u.contacts.List(ctx, userID, clampLimit(limit), max(offset, 0))
	if err != nil {
		return nil, err
	}

	from := u.now()
	to := from.AddDate(0, 0, days)

	upcoming := make([]*domain.Contact, 0)
	for _, c := range contacts {
		if inBirthdayWindow(c.BirthDate, from, to) {
			upcoming = append(upcoming, c)
		}
	}
	return upcoming, nil
}

// inBirthdayWindow reports whether birth's month/day lands strictly after
// from's and no later than to's, ignoring the year.
func inBirthdayWindow(birth, from, to time.Time) bool {
	b := monthDay(birth)
	f := monthDay(from)
	t := monthDay(to)
	if f <= t {
		return f < b && b <= t
	}
	// Window crosses the year boundary (e.g. Dec 28 .. Jan 4).
	return b > f || b <= t
}

func monthDay(t time.Time) int {
	return int(t.Month())*100 + t.Day()
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageLimit
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}
