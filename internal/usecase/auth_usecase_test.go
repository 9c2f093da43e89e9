package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkachur-dev/contact-vault/internal/domain"
	"github.com/dkachur-dev/contact-vault/pkg/security"
)

// fakeDirectory is an in-memory domain.UserDirectory. The mutex makes the
// compare-and-swap behave like the guarded UPDATE in the real repository.
type fakeDirectory struct {
	mu    sync.Mutex
	users map[string]*domain.User // keyed by email
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{users: make(map[string]*domain.User)}
}

func (d *fakeDirectory) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (d *fakeDirectory) GetByID(_ context.Context, id string) (*domain.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (d *fakeDirectory) Create(_ context.Context, user *domain.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[user.Email]; ok {
		return domain.ErrEmailTaken
	}
	cp := *user
	d.users[user.Email] = &cp
	return nil
}

func (d *fakeDirectory) Update(_ context.Context, user *domain.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[user.Email]; !ok {
		return domain.ErrNotFound
	}
	cp := *user
	d.users[user.Email] = &cp
	return nil
}

func (d *fakeDirectory) Count(_ context.Context) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.users)), nil
}

func (d *fakeDirectory) CompareAndSwapRefreshToken(_ context.Context, id, old, new string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.ID == id {
			if u.RefreshToken != old {
				return false, nil
			}
			u.RefreshToken = new
			return true, nil
		}
	}
	return false, nil
}

// fakeCache is an in-memory domain.IdentityCache. TTLs are ignored; the
// usecase never relies on cache expiry for correctness.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*domain.User // keyed by raw token
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*domain.User)}
}

func (c *fakeCache) Get(_ context.Context, token string) (*domain.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.entries[token]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (c *fakeCache) Put(_ context.Context, token string, user *domain.User, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *user
	c.entries[token] = &cp
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, token)
	return nil
}

func (c *fakeCache) InvalidateSubject(_ context.Context, email string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for token, u := range c.entries {
		if u.Email == email {
			delete(c.entries, token)
		}
	}
	return nil
}

func (c *fakeCache) contains(token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[token]
	return ok
}

// fakeMailer records published jobs.
type fakeMailer struct {
	mu   sync.Mutex
	jobs []domain.MailJob
}

func (m *fakeMailer) Publish(_ context.Context, job domain.MailJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *fakeMailer) lastJob(t *testing.T) domain.MailJob {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.jobs)
	return m.jobs[len(m.jobs)-1]
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type authFixture struct {
	dir    *fakeDirectory
	cache  *fakeCache
	mailer *fakeMailer
	clock  *fakeClock
	uc     *AuthUsecase
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	codec, err := security.NewTokenCodec("usecase-test-secret", "HS256", clock.Now)
	require.NoError(t, err)

	f := &authFixture{
		dir:    newFakeDirectory(),
		cache:  newFakeCache(),
		mailer: &fakeMailer{},
		clock:  clock,
	}
	f.uc = NewAuthUsecase(f.dir, f.cache, f.mailer, codec, TokenTTLs{
		Access:  15 * time.Minute,
		Refresh: 7 * 24 * time.Hour,
		Confirm: 24 * time.Hour,
		Reset:   2 * time.Hour,
	})
	return f
}

func (f *authFixture) seedUser(t *testing.T, email, password string, role domain.Role, confirmed bool) *domain.User {
	t.Helper()
	hash, err := security.HashPassword(password)
	require.NoError(t, err)

	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         "Test User",
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Confirmed:    confirmed,
	}
	require.NoError(t, f.dir.Create(context.Background(), user))
	return user
}

func TestLogin_IssuesWorkingTokenPair(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "a@x.com", "pw1", domain.RoleUser, true)

	pair, err := f.uc.Login(context.Background(), "a@x.com", "pw1")
	require.NoError(t, err)
	assert.Equal(t, "bearer", pair.TokenType)
	assert.Equal(t, int64(900), pair.ExpiresIn)

	resolved, err := f.uc.CurrentUser(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", resolved.Email)
	assert.Equal(t, domain.RoleUser, resolved.Role)
}

func TestLogin_NormalizesEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "a@x.com", "pw1", domain.RoleUser, true)

	_, err := f.uc.Login(context.Background(), "  A@X.COM ", "pw1")
	assert.NoError(t, err)
}

func TestLogin_IdenticalUnauthorizedErrors(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "a@x.com", "pw1", domain.RoleUser, true)
	f.seedUser(t, "pending@x.com", "pw1", domain.RoleUser, false)

	_, wrongPassword := f.uc.Login(context.Background(), "a@x.com", "wrong")
	_, missingUser := f.uc.Login(context.Background(), "missing@x.com", "pw1")
	_, unconfirmed := f.uc.Login(context.Background(), "pending@x.com", "pw1")

	assert.ErrorIs(t, wrongPassword, domain.ErrInvalidCredentials)
	assert.ErrorIs(t, missingUser, domain.ErrInvalidCredentials)
	assert.ErrorIs(t, unconfirmed, domain.ErrInvalidCredentials)

	// Anti-enumeration: the messages are byte-identical.
	assert.Equal(t, wrongPassword.Error(), missingUser.Error())
	assert.Equal(t, wrongPassword.Error(), unconfirmed.Error())
}

func TestRefresh_RotatesTokens(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "a@x.com", "pw1", domain.RoleUser, true)

	first, err := f.uc.Login(context.Background(), "a@x.com", "pw1")
	require.NoError(t, err)

	second, err := f.uc.Refresh(context.Background(), first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// The rotated-in token keeps working.
	third, err := f.uc.Refresh(context.Background(), second.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, second.RefreshToken, third.RefreshToken)
}

func TestRefresh_OldTokenIsDeadAfterRotation(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "a@x.com", "pw1", domain.RoleUser, true)

	first, err := f.uc.Login(context.Background(), "a@x.com", "pw1")
	require.NoError(t, err)

	_, err = f.uc.Refresh(context.Background(), first.RefreshToken)
	require.NoError(t, err)

	// Reusing the rotated-out token fails even though it has not expired.
	_, err = f.uc.Refresh(context.Background(), first.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestRefresh_ReuseKillsLiveSession(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "a@x.com", "pw1", domain.RoleUser, true)

	first, err := f.uc.Login(context.Background(), "a@x.com", "pw1")
	require.NoError(t, err)
	second, err := f.uc.Refresh(context.Background(), first.RefreshToken)
	require.NoError(t, err)

	// Reuse of the old token is treated as a hijack signal...
	_, err = f.uc.Refresh(context.Background(), first.RefreshToken)
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	// ...so the rotated-in token is revoked as well.
	_, err = f.uc.Refresh(context.Background(), second.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestRefresh_ConcurrentCallsExactlyOneWins(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "a@x.com", "pw1", domain.RoleUser, true)

	pair, err := f.uc.Login(context.Background(), "a@x.com", "pw1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.uc.Refresh(context.Background(), pair.RefreshToken)
		}()
	}
	wg.Wait()

	var wins, losses int
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
			losses++
		}
	}
	assert.Equal(t, 1, wins, "exactly one rotation must win")
	assert.Equal(t, 1, losses)
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "a@x.com", "pw1", domain.RoleUser, true)

	pair, err := f.uc.Login(context.Background(), "a@x.com", "pw1")
	require.NoError(t, err)

	_, err = f.uc.Refresh(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, security.ErrWrongTokenClass)
}

func TestCurrentUser_CachesIdentity(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "a@x.com", "pw1", domain.RoleUser, true)

	pair, err := f.uc.Login(context.Background(), "a@x.com", "pw1")
	require.NoError(t, err)

	_, err = f.uc.CurrentUser(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.True(t, f.cache.contains(pair.AccessToken))

	// Second resolution is served from the cache: even with the directory
	// record gone, the snapshot still answers.
	f.dir.mu.Lock()
	delete(f.dir.users, "a@x.com")
	f.dir.mu.Unlock()

	resolved, err := f.uc.CurrentUser(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", resolved.Email)
}

func TestCurrentUser_ExpiredToken(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "a@x.com", "pw1", domain.RoleUser, true)

	pair, err := f.uc.Login(context.Background(), "a@x.com", "pw1")
	require.NoError(t, err)

	f.clock.Advance(16 * time.Minute)
	_, err = f.uc.CurrentUser(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, security.ErrExpiredToken)
}

func TestCurrentUser_RejectsRefreshToken(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "a@x.com", "pw1", domain.RoleUser, true)

	pair, err := f.uc.Login(context.Background(), "a@x.com", "pw1")
	require.NoError(t, err)

	_, err = f.uc.CurrentUser(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, security.ErrWrongTokenClass)
}

func TestLogout_RevokesSessionAndCache(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "a@x.com", "pw1", domain.RoleUser, true)

	pair, err := f.uc.Login(context.Background(), "a@x.com", "pw1")
	require.NoError(t, err)
	_, err = f.uc.CurrentUser(context.Background(), pair.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.uc.Logout(context.Background(), pair.AccessToken))

	assert.False(t, f.cache.contains(pair.AccessToken))
	_, err = f.uc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestPasswordReset_FullFlow(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "a@x.com", "pw1", domain.RoleUser, true)

	require.NoError(t, f.uc.RequestPasswordReset(context.Background(), "a@x.com"))
	job := f.mailer.lastJob(t)
	assert.Equal(t, "reset_password", job.Template)
	assert.Equal(t, "a@x.com", job.To)

	require.NoError(t, f.uc.ConsumePasswordReset(context.Background(), "a@x.com", job.Token, "newpw"))

	_, err := f.uc.Login(context.Background(), "a@x.com", "pw1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = f.uc.Login(context.Background(), "a@x.com", "newpw")
	assert.NoError(t, err)
}

func TestPasswordReset_TokenIsSingleUse(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "a@x.com", "pw1", domain.RoleUser, true)

	require.NoError(t, f.uc.RequestPasswordReset(context.Background(), "a@x.com"))
	token := f.mailer.lastJob(t).Token

	require.NoError(t, f.uc.ConsumePasswordReset(context.Background(), "a@x.com", token, "newpw"))

	// The reference was cleared, so the same unexpired token is dead.
	err := f.uc.ConsumePasswordReset(context.Background(), "a@x.com", token, "anotherpw")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestPasswordReset_NewRequestSupersedesOld(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "a@x.com", "pw1", domain.RoleUser, true)

	require.NoError(t, f.uc.RequestPasswordReset(context.Background(), "a@x.com"))
	first := f.mailer.lastJob(t).Token
	require.NoError(t, f.uc.RequestPasswordReset(context.Background(), "a@x.com"))
	second := f.mailer.lastJob(t).Token
	require.NotEqual(t, first, second)

	err := f.uc.ConsumePasswordReset(context.Background(), "a@x.com", first, "newpw")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.NoError(t, f.uc.ConsumePasswordReset(context.Background(), "a@x.com", second, "newpw"))
}

func TestPasswordReset_UnknownEmailIsSilent(t *testing.T) {
	f := newAuthFixture(t)

	err := f.uc.RequestPasswordReset(context.Background(), "nobody@x.com")
	assert.NoError(t, err)
	assert.Zero(t, f.mailer.count())
}

func TestPasswordReset_RejectsOtherTokenClasses(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "a@x.com", "pw1", domain.RoleUser, true)

	pair, err := f.uc.Login(context.Background(), "a@x.com", "pw1")
	require.NoError(t, err)

	err = f.uc.ConsumePasswordReset(context.Background(), "a@x.com", pair.AccessToken, "newpw")
	assert.ErrorIs(t, err, security.ErrWrongTokenClass)
	err = f.uc.ConsumePasswordReset(context.Background(), "a@x.com", pair.RefreshToken, "newpw")
	assert.ErrorIs(t, err, security.ErrWrongTokenClass)
}

func TestPasswordReset_SubjectMustMatch(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "a@x.com", "pw1", domain.RoleUser, true)
	f.seedUser(t, "b@x.com", "pw2", domain.RoleUser, true)

	require.NoError(t, f.uc.RequestPasswordReset(context.Background(), "a@x.com"))
	token := f.mailer.lastJob(t).Token

	err := f.uc.ConsumePasswordReset(context.Background(), "b@x.com", token, "newpw")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestPasswordReset_InvalidatesSessions(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "a@x.com", "pw1", domain.RoleUser, true)

	pair, err := f.uc.Login(context.Background(), "a@x.com", "pw1")
	require.NoError(t, err)
	_, err = f.uc.CurrentUser(context.Background(), pair.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.uc.RequestPasswordReset(context.Background(), "a@x.com"))
	token := f.mailer.lastJob(t).Token
	require.NoError(t, f.uc.ConsumePasswordReset(context.Background(), "a@x.com", token, "newpw"))

	// Cached identity is gone and the refresh session died with the password.
	assert.False(t, f.cache.contains(pair.AccessToken))
	_, err = f.uc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestRegister_FirstUserBecomesAdmin(t *testing.T) {
	f := newAuthFixture(t)

	first, err := f.uc.Register(context.Background(), "Ada", "ada@x.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, first.Role)
	assert.False(t, first.Confirmed)

	second, err := f.uc.Register(context.Background(), "Bob", "bob@x.com", "password2")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, second.Role)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.uc.Register(context.Background(), "Ada", "ada@x.com", "password1")
	require.NoError(t, err)
	_, err = f.uc.Register(context.Background(), "Imposter", "ada@x.com", "password2")
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestConfirmEmail_Flow(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.uc.Register(context.Background(), "Ada", "ada@x.com", "password1")
	require.NoError(t, err)

	job := f.mailer.lastJob(t)
	require.Equal(t, "confirm_email", job.Template)

	// Unconfirmed accounts cannot log in.
	_, err = f.uc.Login(context.Background(), "ada@x.com", "password1")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	require.NoError(t, f.uc.ConfirmEmail(context.Background(), job.Token))
	_, err = f.uc.Login(context.Background(), "ada@x.com", "password1")
	assert.NoError(t, err)

	// Confirming twice is not an error.
	assert.NoError(t, f.uc.ConfirmEmail(context.Background(), job.Token))
}

func TestConfirmEmail_RejectsOtherClasses(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "a@x.com", "pw1", domain.RoleUser, true)

	pair, err := f.uc.Login(context.Background(), "a@x.com", "pw1")
	require.NoError(t, err)

	assert.ErrorIs(t, f.uc.ConfirmEmail(context.Background(), pair.AccessToken), security.ErrWrongTokenClass)
}

func TestResendConfirmation(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.uc.Register(context.Background(), "Ada", "ada@x.com", "password1")
	require.NoError(t, err)
	sent := f.mailer.count()

	require.NoError(t, f.uc.ResendConfirmation(context.Background(), "ada@x.com"))
	assert.Equal(t, sent+1, f.mailer.count())

	// Already-confirmed and unknown accounts are silent no-ops.
	require.NoError(t, f.uc.ConfirmEmail(context.Background(), f.mailer.lastJob(t).Token))
	require.NoError(t, f.uc.ResendConfirmation(context.Background(), "ada@x.com"))
	require.NoError(t, f.uc.ResendConfirmation(context.Background(), "nobody@x.com"))
	assert.Equal(t, sent+1, f.mailer.count())
}
