package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

const refreshTokenRawSize = 32

// NewRefreshToken returns a fresh opaque refresh-token string: 32 bytes of
// CSPRNG output, base64url without padding. The string is the record's
// identity and is never reused.
func NewRefreshToken() (string, error) {
	var raw [refreshTokenRawSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// ValidateRefreshToken rejects strings that cannot be a token this module
// issued, letting callers fail fast before any store round trip.
func ValidateRefreshToken(token string) error {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return err
	}
	if len(raw) != refreshTokenRawSize {
		return errors.New("invalid refresh token size")
	}
	return nil
}
