package jwtx

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
)

// DecodeUnverified reads the claims of a compact JWT without checking its
// signature. The result is only fit for display and expiry scheduling; the
// resource server remains the authority on whether the token is valid.
func DecodeUnverified(token string) (*IdentityClaims, error) {
	if strings.Count(token, ".") != 2 {
		return nil, ErrMalformed
	}

	claims := &IdentityClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, claims)

	// An alg we can't verify is irrelevant here, the claims are decoded
	// before the signing method is looked up.
	if err != nil && !errors.Is(err, jwt.ErrTokenUnverifiable) {
		return nil, errors.Join(ErrMalformed, err)
	}

	return claims, nil
}

// ExpiresWithin is a convenience over DecodeUnverified. Undecodable tokens
// report true so callers treat them as needing renewal.
func ExpiresWithin(token string, d time.Duration, now time.Time) bool {
	c, err := DecodeUnverified(token)
	if err != nil {
		return true
	}
	return c.ExpiresWithin(d, now)
}
