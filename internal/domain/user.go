package domain

import (
	"context"
	"time"
)

// User represents the central identity entity of the system.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"` // stored lower-cased, unique
	PasswordHash string    `json:"-"`     // Never expose the password hash in JSON
	Avatar       string    `json:"avatar,omitempty"`
	Role         Role      `json:"role"`
	Confirmed    bool      `json:"confirmed"`
	RefreshToken string    `json:"-"` // SHA-256 of the live refresh token; empty when logged out
	ResetToken   string    `json:"-"` // SHA-256 of the live reset token; at most one live per user
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TokenPair defines the payload returned after a successful login or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// UserDirectory defines the contract for user data persistence.
// This interface is implemented in the 'internal/repository' package.
type UserDirectory interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	Count(ctx context.Context) (int64, error)

	// CompareAndSwapRefreshToken atomically replaces the stored refresh token
	// reference, succeeding only when the current value still equals old.
	// Two concurrent rotations with the same old token cannot both win.
	CompareAndSwapRefreshToken(ctx context.Context, id, old, new string) (bool, error)
}

// IdentityCache maps verified access tokens to resolved users so protected
// requests do not hit the directory every time. It is an optimization only:
// a miss (or any cache failure) falls through to the UserDirectory.
type IdentityCache interface {
	// Get returns the cached user for a raw access token, or (nil, nil) on miss.
	Get(ctx context.Context, token string) (*User, error)
	Put(ctx context.Context, token string, user *User, ttl time.Duration) error
	Invalidate(ctx context.Context, token string) error
	// InvalidateSubject drops every cached snapshot for an email, used on
	// logout and password change.
	InvalidateSubject(ctx context.Context, email string) error
}

// MailJob describes an email to be delivered by an external worker.
type MailJob struct {
	To       string `json:"to"`
	Name     string `json:"name"`
	Template string `json:"template"`
	Token    string `json:"token"`
}

// MailPublisher hands mail jobs to the delivery infrastructure (usually a
// message queue). Sending is best-effort from the caller's point of view.
type MailPublisher interface {
	Publish(ctx context.Context, job MailJob) error
}
