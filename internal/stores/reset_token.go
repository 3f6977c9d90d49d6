package stores

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const resetRecordVersionV1 = 1

var (
	// ErrResetNotFound covers missing, expired, already-consumed, and
	// secret-mismatch lookups alike; callers must not distinguish them.
	ErrResetNotFound = errors.New("reset record not found")
	// ErrResetUnavailable marks a Redis failure; callers treat it as a
	// storage failure, never as an invalid token.
	ErrResetUnavailable = errors.New("reset store unavailable")
)

// ResetRecord is the server-side half of an outstanding reset token.
// The secret itself is never stored, only its SHA-256 hash.
type ResetRecord struct {
	UserID     string
	SecretHash [32]byte
	ExpiresAt  int64
}

// ResetTokenStore keeps outstanding reset tokens in Redis, keyed by
// reset id, with a per-user index so a new issuance invalidates any
// prior outstanding token for the same user.
type ResetTokenStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewResetTokenStore(redisClient redis.UniversalClient, prefix string) *ResetTokenStore {
	if prefix == "" {
		prefix = "acr"
	}
	return &ResetTokenStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *ResetTokenStore) key(resetID string) string {
	return s.prefix + ":" + resetID
}

func (s *ResetTokenStore) userKey(userID string) string {
	return s.prefix + "u:" + userID
}

// Issue stores the record under resetID and retires any prior
// outstanding token for the same user.
func (s *ResetTokenStore) Issue(ctx context.Context, resetID string, record ResetRecord, ttl time.Duration) error {
	encoded, err := encodeResetRecord(record)
	if err != nil {
		return err
	}

	prior, err := s.redis.GetSet(ctx, s.userKey(record.UserID), resetID).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrResetUnavailable, err)
	}
	if prior != "" && prior != resetID {
		if err := s.redis.Del(ctx, s.key(prior)).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrResetUnavailable, err)
		}
	}
	if err := s.redis.Expire(ctx, s.userKey(record.UserID), ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrResetUnavailable, err)
	}

	if err := s.redis.Set(ctx, s.key(resetID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrResetUnavailable, err)
	}
	return nil
}

// Verify checks the token without consuming it. Expired records are
// deleted eagerly; a secret mismatch is indistinguishable from a
// missing record.
func (s *ResetTokenStore) Verify(ctx context.Context, resetID string, secretHash [32]byte) (ResetRecord, error) {
	data, err := s.redis.Get(ctx, s.key(resetID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ResetRecord{}, ErrResetNotFound
		}
		return ResetRecord{}, fmt.Errorf("%w: %v", ErrResetUnavailable, err)
	}

	record, err := decodeResetRecord(data)
	if err != nil {
		return ResetRecord{}, ErrResetNotFound
	}
	if time.Now().Unix() > record.ExpiresAt {
		_ = s.redis.Del(ctx, s.key(resetID)).Err()
		return ResetRecord{}, ErrResetNotFound
	}
	if subtle.ConstantTimeCompare(record.SecretHash[:], secretHash[:]) != 1 {
		return ResetRecord{}, ErrResetNotFound
	}

	return record, nil
}

// Consume atomically validates and deletes the token. A consumed token
// can never be used again; concurrent consumers race on the WATCH and
// exactly one wins.
func (s *ResetTokenStore) Consume(ctx context.Context, resetID string, secretHash [32]byte) (ResetRecord, error) {
	const maxRetries = 4
	key := s.key(resetID)

	for i := 0; i < maxRetries; i++ {
		var matched ResetRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeResetRecord(data)
			if err != nil {
				return ErrResetNotFound
			}
			if time.Now().Unix() > record.ExpiresAt {
				_, derr := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if derr != nil {
					return derr
				}
				return ErrResetNotFound
			}
			if subtle.ConstantTimeCompare(record.SecretHash[:], secretHash[:]) != 1 {
				return ErrResetNotFound
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				pipe.Del(ctx, s.userKey(record.UserID))
				return nil
			})
			if err != nil {
				return err
			}

			matched = record
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil), errors.Is(err, ErrResetNotFound):
				return ResetRecord{}, ErrResetNotFound
			default:
				return ResetRecord{}, fmt.Errorf("%w: %v", ErrResetUnavailable, err)
			}
		}

		return matched, nil
	}

	return ResetRecord{}, ErrResetNotFound
}

func encodeResetRecord(record ResetRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(resetRecordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.UserID) > 65535 {
		return nil, errors.New("reset record user id too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)
	buf.Write(record.SecretHash[:])

	return buf.Bytes(), nil
}

func decodeResetRecord(data []byte) (ResetRecord, error) {
	var record ResetRecord
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return record, err
	}
	if version != resetRecordVersionV1 {
		return record, errors.New("invalid reset record version")
	}

	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return record, err
	}

	var userIDLen uint16
	if err := binary.Read(reader, binary.BigEndian, &userIDLen); err != nil {
		return record, err
	}
	userID := make([]byte, userIDLen)
	if _, err := io.ReadFull(reader, userID); err != nil {
		return record, err
	}
	record.UserID = string(userID)

	if _, err := io.ReadFull(reader, record.SecretHash[:]); err != nil {
		return record, err
	}

	return record, nil
}
