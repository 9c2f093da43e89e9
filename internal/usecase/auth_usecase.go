package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dkachur-dev/contact-vault/internal/domain"
	"github.com/dkachur-dev/contact-vault/pkg/security"
)

// TokenTTLs bundles the per-class token lifetimes from configuration.
type TokenTTLs struct {
	Access  time.Duration
	Refresh time.Duration
	Confirm time.Duration
	Reset   time.Duration
}

// AuthUsecase orchestrates login, token refresh, logout, email confirmation,
// the password-reset lifecycle, and the current-user resolution that runs on
// every protected request.
type AuthUsecase struct {
	users  domain.UserDirectory
	cache  domain.IdentityCache
	mailer domain.MailPublisher
	codec  *security.TokenCodec
	ttl    TokenTTLs

	// dummyHash absorbs a password comparison when the account does not
	// exist, so lookups for missing and existing emails take the same time.
	dummyHash string
}

func NewAuthUsecase(users domain.UserDirectory, cache domain.IdentityCache, mailer domain.MailPublisher, codec *security.TokenCodec, ttl TokenTTLs) *AuthUsecase {
	dummy, _ := security.HashPassword(uuid.NewString())
	return &AuthUsecase{
		users:     users,
		cache:     cache,
		mailer:    mailer,
		codec:     codec,
		ttl:       ttl,
		dummyHash: dummy,
	}
}

// Register creates an unconfirmed account and queues a confirmation email.
// The very first account becomes the admin; everyone after that is a plain
// user until an admin promotes them.
func (u *AuthUsecase) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	email = normalizeEmail(email)

	if _, err := u.users.GetByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrTransient
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, err
	}

	role := domain.RoleUser
	if n, err := u.users.Count(ctx); err == nil && n == 0 {
		role = domain.RoleAdmin
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := u.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, domain.ErrEmailTaken
		}
		return nil, domain.ErrTransient
	}

	u.sendMail(ctx, user, "confirm_email", security.ClassEmailConfirm, u.ttl.Confirm)
	return user, nil
}

// Login validates credentials and issues a fresh access/refresh pair.
// Unknown email, unconfirmed account, and wrong password all surface as the
// same ErrInvalidCredentials.
func (u *AuthUsecase) Login(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	email = normalizeEmail(email)

	user, err := u.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrTransient
		}
		// Burn a comparison so a missing account costs as much as a mismatch.
		_, _ = security.ComparePassword(password, u.dummyHash)
		return nil, domain.ErrInvalidCredentials
	}

	match, err := security.ComparePassword(password, user.PasswordHash)
	if err != nil || !match || !user.Confirmed {
		return nil, domain.ErrInvalidCredentials
	}

	pair, refreshHash, err := u.newPair(user.Email)
	if err != nil {
		return nil, err
	}

	user.RefreshToken = refreshHash
	if err := u.users.Update(ctx, user); err != nil {
		return nil, domain.ErrTransient
	}

	return pair, nil
}

// Refresh rotates a refresh token: the presented token must match the stored
// reference, and the directory swap is a compare-and-set so of two concurrent
// rotations with the same old token exactly one wins. Reuse of an already
// rotated-out token is treated as a hijack signal and kills the live session.
func (u *AuthUsecase) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := u.codec.Verify(refreshToken, security.ClassRefresh)
	if err != nil {
		return nil, err
	}

	user, err := u.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrTransient
		}
		return nil, domain.ErrInvalidCredentials
	}

	presented := security.HashToken(refreshToken)
	if subtle.ConstantTimeCompare([]byte(user.RefreshToken), []byte(presented)) != 1 {
		if user.RefreshToken != "" {
			// Rotated-out token reuse: force the current session out too.
			_, _ = u.users.CompareAndSwapRefreshToken(ctx, user.ID, user.RefreshToken, "")
			_ = u.cache.InvalidateSubject(ctx, user.Email)
		}
		return nil, domain.ErrInvalidCredentials
	}

	pair, newHash, err := u.newPair(user.Email)
	if err != nil {
		return nil, err
	}

	swapped, err := u.users.CompareAndSwapRefreshToken(ctx, user.ID, presented, newHash)
	if err != nil {
		return nil, domain.ErrTransient
	}
	if !swapped {
		// A concurrent refresh won the race; this token is now dead.
		return nil, domain.ErrInvalidCredentials
	}

	_ = u.cache.InvalidateSubject(ctx, user.Email)
	return pair, nil
}

// Logout invalidates the stored refresh token and the cached identity for the
// presented access token.
func (u *AuthUsecase) Logout(ctx context.Context, accessToken string) error {
	claims, err := u.codec.Verify(accessToken, security.ClassAccess)
	if err != nil {
		return err
	}

	user, err := u.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.ErrTransient
		}
		return domain.ErrInvalidCredentials
	}

	if user.RefreshToken != "" {
		_, _ = u.users.CompareAndSwapRefreshToken(ctx, user.ID, user.RefreshToken, "")
	}
	_ = u.cache.Invalidate(ctx, accessToken)
	_ = u.cache.InvalidateSubject(ctx, user.Email)
	return nil
}

// CurrentUser resolves a bearer access token to a full user record. The cache
// is consulted first; a miss falls through to the directory and refills the
// cache with a TTL no longer than the token has left to live.
func (u *AuthUsecase) CurrentUser(ctx context.Context, accessToken string) (*domain.User, error) {
	claims, err := u.codec.Verify(accessToken, security.ClassAccess)
	if err != nil {
		return nil, err
	}

	if cached, err := u.cache.Get(ctx, accessToken); err == nil && cached != nil {
		return cached, nil
	}

	user, err := u.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrTransient
		}
		return nil, domain.ErrInvalidCredentials
	}

	ttl := u.codec.RemainingLife(claims)
	if ttl > u.ttl.Access {
		ttl = u.ttl.Access
	}
	if ttl > 0 {
		_ = u.cache.Put(ctx, accessToken, user, ttl)
	}

	return user, nil
}

// RequestPasswordReset issues a reset token for the account and queues the
// reset email. Unknown emails are a silent no-op: the caller learns nothing
// about which addresses are registered. Issuing a new token implicitly
// invalidates the previous one, so at most one reset token is ever live.
func (u *AuthUsecase) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	user, err := u.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.ErrTransient
		}
		return nil
	}

	token, err := u.codec.Issue(user.Email, security.ClassPasswordReset, u.ttl.Reset)
	if err != nil {
		return err
	}

	user.ResetToken = security.HashToken(token)
	if err := u.users.Update(ctx, user); err != nil {
		return domain.ErrTransient
	}

	u.publish(ctx, domain.MailJob{To: user.Email, Name: user.Name, Template: "reset_password", Token: token})
	return nil
}

// ConsumePasswordReset verifies a reset token against the stored reference,
// installs the new password, and clears the reference so the token is
// single-use regardless of its remaining TTL. The live refresh session dies
// with the old password.
func (u *AuthUsecase) ConsumePasswordReset(ctx context.Context, email, token, newPassword string) error {
	email = normalizeEmail(email)

	claims, err := u.codec.Verify(token, security.ClassPasswordReset)
	if err != nil {
		return err
	}
	if claims.Subject != email {
		return domain.ErrInvalidCredentials
	}

	user, err := u.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.ErrTransient
		}
		return domain.ErrInvalidCredentials
	}

	presented := security.HashToken(token)
	if user.ResetToken == "" || subtle.ConstantTimeCompare([]byte(user.ResetToken), []byte(presented)) != 1 {
		return domain.ErrInvalidCredentials
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return err
	}

	user.PasswordHash = hash
	user.ResetToken = ""
	user.RefreshToken = ""
	if err := u.users.Update(ctx, user); err != nil {
		return domain.ErrTransient
	}

	_ = u.cache.InvalidateSubject(ctx, user.Email)
	return nil
}

// ConfirmEmail marks the token's subject as confirmed. Confirming an already
// confirmed account is not an error.
func (u *AuthUsecase) ConfirmEmail(ctx context.Context, token string) error {
	claims, err := u.codec.Verify(token, security.ClassEmailConfirm)
	if err != nil {
		return err
	}

	user, err := u.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.ErrTransient
		}
		return security.ErrInvalidToken
	}

	if user.Confirmed {
		return nil
	}

	user.Confirmed = true
	if err := u.users.Update(ctx, user); err != nil {
		return domain.ErrTransient
	}
	return nil
}

// ResendConfirmation queues another confirmation email, silently doing
// nothing for unknown or already confirmed accounts.
func (u *AuthUsecase) ResendConfirmation(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	user, err := u.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.ErrTransient
		}
		return nil
	}
	if user.Confirmed {
		return nil
	}

	u.sendMail(ctx, user, "confirm_email", security.ClassEmailConfirm, u.ttl.Confirm)
	return nil
}

// newPair issues an access/refresh token pair and returns the refresh token's
// stored reference alongside it.
func (u *AuthUsecase) newPair(email string) (*domain.TokenPair, string, error) {
	access, err := u.codec.Issue(email, security.ClassAccess, u.ttl.Access)
	if err != nil {
		return nil, "", err
	}
	refresh, err := u.codec.Issue(email, security.ClassRefresh, u.ttl.Refresh)
	if err != nil {
		return nil, "", err
	}

	pair := &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(u.ttl.Access.Seconds()),
	}
	return pair, security.HashToken(refresh), nil
}

func (u *AuthUsecase) sendMail(ctx context.Context, user *domain.User, template string, class security.TokenClass, ttl time.Duration) {
	token, err := u.codec.Issue(user.Email, class, ttl)
	if err != nil {
		return
	}
	u.publish(ctx, domain.MailJob{To: user.Email, Name: user.Name, Template: template, Token: token})
}

// publish is best-effort: mail delivery never fails an auth operation.
func (u *AuthUsecase) publish(ctx context.Context, job domain.MailJob) {
	if u.mailer == nil {
		return
	}
	_ = u.mailer.Publish(ctx, job)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
