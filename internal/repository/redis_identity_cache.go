package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dkachur-dev/contact-vault/internal/domain"
)

// RedisIdentityCache implements domain.IdentityCache using Redis.
//
// Entries are keyed by the SHA-256 of the raw access token under
// "auth:identity:<digest>". A per-subject set "auth:identity:subject:<email>"
// indexes the live entry keys so a password change or logout can purge every
// snapshot for that email. The set may hold keys that already expired; they
// simply DEL to nothing.
type RedisIdentityCache struct {
	client *redis.Client
}

// NewRedisIdentityCache creates a new cache instance.
func NewRedisIdentityCache(client *redis.Client) *RedisIdentityCache {
	return &RedisIdentityCache{client: client}
}

func identityKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "auth:identity:" + hex.EncodeToString(sum[:])
}

func subjectKey(email string) string {
	return "auth:identity:subject:" + email
}

// Get returns the cached user for a raw access token, or (nil, nil) on miss.
func (r *RedisIdentityCache) Get(ctx context.Context, token string) (*domain.User, error) {
	payload, err := r.client.Get(ctx, identityKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis error: %w", err)
	}

	user := &domain.User{}
	if err := json.Unmarshal([]byte(payload), user); err != nil {
		// A corrupt snapshot is treated as a miss; the directory is the
		// source of truth anyway.
		return nil, nil
	}
	return user, nil
}

// Put stores a user snapshot under the token's key and records the key in the
// subject index. The caller caps ttl at the token's remaining lifetime.
func (r *RedisIdentityCache) Put(ctx context.Context, token string, user *domain.User, ttl time.Duration) error {
	payload, err := json.Marshal(snapshot(user))
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}

	key := identityKey(token)
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache identity: %w", err)
	}

	subj := subjectKey(user.Email)
	if err := r.client.SAdd(ctx, subj, key).Err(); err != nil {
		return fmt.Errorf("failed to index identity: %w", err)
	}
	if err := r.client.Expire(ctx, subj, ttl).Err(); err != nil {
		return fmt.Errorf("failed to index identity: %w", err)
	}
	return nil
}

// Invalidate removes the snapshot for one token immediately.
func (r *RedisIdentityCache) Invalidate(ctx context.Context, token string) error {
	return r.client.Del(ctx, identityKey(token)).Err()
}

// InvalidateSubject removes every snapshot recorded for an email.
func (r *RedisIdentityCache) InvalidateSubject(ctx context.Context, email string) error {
	subj := subjectKey(email)

	keys, err := r.client.SMembers(ctx, subj).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("redis error: %w", err)
	}

	if len(keys) > 0 {
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis error: %w", err)
		}
	}
	return r.client.Del(ctx, subj).Err()
}

// cachedIdentity is the wire form of a snapshot. Hashes and token references
// are deliberately excluded: the cache only answers "who is this", password
// and session checks always go to the directory.
type cachedIdentity struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Avatar    string      `json:"avatar,omitempty"`
	Role      domain.Role `json:"role"`
	Confirmed bool        `json:"confirmed"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func snapshot(user *domain.User) cachedIdentity {
	return cachedIdentity{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Avatar:    user.Avatar,
		Role:      user.Role,
		Confirmed: user.Confirmed,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
