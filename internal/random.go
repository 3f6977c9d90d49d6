// Package internal holds small helpers shared by the engine and its
// stores: identifiers and reset-token encoding.
package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

const (
	resetIDSize     = 16
	resetSecretSize = 32
	resetTokenSize  = resetIDSize + resetSecretSize
)

// ResetID is the public half of a reset token; it is the storage key and
// is safe to log.
type ResetID [resetIDSize]byte

// NewResetID returns a random reset identifier.
func NewResetID() (ResetID, error) {
	var id ResetID
	_, err := rand.Read(id[:])
	return id, err
}

func (r ResetID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(r[:])
}

// ParseResetID decodes the string form produced by String.
func ParseResetID(s string) (ResetID, error) {
	var id ResetID

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(raw) != len(id) {
		return id, errors.New("invalid reset id size")
	}

	copy(id[:], raw)
	return id, nil
}

// NewResetSecret returns the secret half of a reset token. Only its
// SHA-256 hash is ever stored.
func NewResetSecret() ([resetSecretSize]byte, error) {
	var secret [resetSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

// HashResetSecret hashes the secret for storage and comparison.
func HashResetSecret(secret [resetSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// EncodeResetToken packs id and secret into the opaque token handed to
// the notification collaborator.
func EncodeResetToken(id ResetID, secret [resetSecretSize]byte) string {
	var raw [resetTokenSize]byte
	copy(raw[:resetIDSize], id[:])
	copy(raw[resetIDSize:], secret[:])
	return base64.RawURLEncoding.EncodeToString(raw[:])
}

// DecodeResetToken is the inverse of EncodeResetToken.
func DecodeResetToken(token string) (ResetID, [resetSecretSize]byte, error) {
	var (
		id     ResetID
		secret [resetSecretSize]byte
	)

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return id, secret, err
	}
	if len(raw) != resetTokenSize {
		return id, secret, errors.New("invalid reset token size")
	}

	copy(id[:], raw[:resetIDSize])
	copy(secret[:], raw[resetIDSize:])
	return id, secret, nil
}
