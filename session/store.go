package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/caretrail/accesscore"
)

var (
	// ErrSessionNotFound covers missing, expired, and revoked sessions
	// alike.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRedisUnavailable marks a Redis failure; lookups fail closed.
	ErrRedisUnavailable = errors.New("session store unavailable")
)

const sessionIDBytes = 16

type storedSession struct {
	SessionID string    `json:"sid"`
	UserID    string    `json:"uid"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// Store keeps sessions in Redis with a per-user index for bulk
// revocation. It implements accesscore.SessionStore.
type Store struct {
	redis  redis.UniversalClient
	codec  codec
	prefix string
	ttl    time.Duration
}

// NewStore builds a session store. secret signs the outward JWT
// credential; ttl bounds session lifetime.
func NewStore(client redis.UniversalClient, secret []byte, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = "sess"
	}
	return &Store{
		redis:  client,
		codec:  codec{secret: secret},
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *Store) userKey(userID string) string {
	return s.prefix + "u:" + userID
}

// Create opens a session for userID and returns the signed credential.
func (s *Store) Create(ctx context.Context, userID string) (string, accesscore.SessionRecord, error) {
	raw := make([]byte, sessionIDBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", accesscore.SessionRecord{}, err
	}
	sessionID := base64.RawURLEncoding.EncodeToString(raw)

	now := time.Now().UTC()
	stored := storedSession{
		SessionID: sessionID,
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	encoded, err := json.Marshal(stored)
	if err != nil {
		return "", accesscore.SessionRecord{}, err
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, s.key(sessionID), encoded, s.ttl)
	pipe.SAdd(ctx, s.userKey(userID), sessionID)
	pipe.Expire(ctx, s.userKey(userID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", accesscore.SessionRecord{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	credential, err := s.codec.encode(sessionID, stored.IssuedAt, stored.ExpiresAt)
	if err != nil {
		return "", accesscore.SessionRecord{}, err
	}

	return credential, record(stored), nil
}

// Lookup resolves a credential to its session. Signature failures,
// missing records, and expired records are indistinguishable.
func (s *Store) Lookup(ctx context.Context, credential string) (accesscore.SessionRecord, error) {
	sessionID, err := s.codec.decode(credential)
	if err != nil {
		return accesscore.SessionRecord{}, ErrSessionNotFound
	}

	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return accesscore.SessionRecord{}, ErrSessionNotFound
		}
		return accesscore.SessionRecord{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var stored storedSession
	if err := json.Unmarshal(data, &stored); err != nil {
		return accesscore.SessionRecord{}, ErrSessionNotFound
	}
	if !time.Now().Before(stored.ExpiresAt) {
		_ = s.redis.Del(ctx, s.key(sessionID)).Err()
		return accesscore.SessionRecord{}, ErrSessionNotFound
	}

	return record(stored), nil
}

// Destroy removes one session by credential. Unknown credentials are a
// no-op.
func (s *Store) Destroy(ctx context.Context, credential string) error {
	sessionID, err := s.codec.decode(credential)
	if err != nil {
		return nil
	}

	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	var stored storedSession
	if err := json.Unmarshal(data, &stored); err == nil {
		_ = s.redis.SRem(ctx, s.userKey(stored.UserID), sessionID).Err()
	}
	if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RevokeAllForUser deletes every session of the user. After a password
// reset this runs before the reset reports success.
func (s *Store) RevokeAllForUser(ctx context.Context, userID string) error {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.key(id))
	}
	keys = append(keys, s.userKey(userID))
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func record(stored storedSession) accesscore.SessionRecord {
	return accesscore.SessionRecord{
		SessionID: stored.SessionID,
		UserID:    stored.UserID,
		IssuedAt:  stored.IssuedAt,
		ExpiresAt: stored.ExpiresAt,
	}
}
