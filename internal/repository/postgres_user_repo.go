package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/dkachur-dev/contact-vault/internal/domain"
)

const uniqueViolation = "23505"

// PostgresUserRepo implements domain.UserDirectory using PostgreSQL.
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo creates a new repository instance.
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, name, email, password_hash, COALESCE(avatar, ''), role, confirmed,
	COALESCE(refresh_token, ''), COALESCE(reset_token, ''), created_at, updated_at`

func scanUser(row *sql.Row) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Avatar,
		&user.Role,
		&user.Confirmed,
		&user.RefreshToken,
		&user.ResetToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by their email address.
func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// GetByID retrieves a user by their UUID.
func (r *PostgresUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// Create inserts a new user. A duplicate email surfaces as domain.ErrEmailTaken.
func (r *PostgresUserRepo) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, name, email, password_hash, avatar, role, confirmed, refresh_token, reset_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10, $11)
	`

	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Avatar,
		user.Role,
		user.Confirmed,
		user.RefreshToken,
		user.ResetToken,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// Update persists the mutable fields of a user record.
func (r *PostgresUserRepo) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET name = $1, password_hash = $2, avatar = NULLIF($3, ''), role = $4, confirmed = $5,
		    refresh_token = NULLIF($6, ''), reset_token = NULLIF($7, ''), updated_at = $8
		WHERE id = $9
	`

	user.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		user.Name,
		user.PasswordHash,
		user.Avatar,
		user.Role,
		user.Confirmed,
		user.RefreshToken,
		user.ResetToken,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// Count returns the total number of registered users.
func (r *PostgresUserRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("database error: %w", err)
	}
	return n, nil
}

// CompareAndSwapRefreshToken replaces the stored refresh token reference in a
// single guarded UPDATE. The WHERE clause is the compare half of the CAS:
// when another rotation already changed the stored value, zero rows match and
// the swap reports failure.
func (r *PostgresUserRepo) CompareAndSwapRefreshToken(ctx context.Context, id, old, new string) (bool, error) {
	query := `
		UPDATE users
		SET refresh_token = NULLIF($1, ''), updated_at = $2
		WHERE id = $3 AND COALESCE(refresh_token, '') = $4
	`

	result, err := r.db.ExecContext(ctx, query, new, time.Now(), id, old)
	if err != nil {
		return false, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	return rows == 1, nil
}
