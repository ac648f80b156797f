package jwtx_test

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/aussiebroadwan/aichef/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func mint(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("not-checked"))
	require.NoError(t, err)
	return tok
}

func TestDecodeUnverifiedKeycloakToken(t *testing.T) {
	exp := time.Now().Add(5 * time.Minute).Truncate(time.Second)

	tok := mint(t, jwt.MapClaims{
		"sub":                "u1",
		"exp":                exp.Unix(),
		"preferred_username": "ann",
		"given_name":         "Ann",
		"family_name":        "Lee",
		"email":              "a@x.com",
		"email_verified":     true,
		"avatar":             "https://cdn/ann.png",
		"realm_access":       map[string]any{"roles": []string{"cook", "offline_access"}},
		"resource_access": map[string]any{
			"ai-chef": map[string]any{"roles": []string{"premium"}},
		},
	})

	c, err := jwtx.DecodeUnverified(tok)
	require.NoError(t, err)
	require.Equal(t, "u1", c.Subject)
	require.Equal(t, "ann", c.PreferredUsername)
	require.Equal(t, "Ann", c.GivenName)
	require.True(t, c.EmailVerified)
	require.Equal(t, "https://cdn/ann.png", c.Avatar)
	require.Equal(t, []string{"cook", "offline_access"}, c.RealmAccess.Roles)
	require.Equal(t, []string{"premium"}, c.ResourceAccess["ai-chef"].Roles)
	require.Equal(t, exp.Unix(), c.ExpiresAt.Unix())
}

func TestDecodeUnverifiedIgnoresSignature(t *testing.T) {
	tok := mint(t, jwt.MapClaims{"sub": "u1"})

	// Swap the signature for garbage, decoding must not care
	tampered := tok[:len(tok)-4] + "AAAA"
	c, err := jwtx.DecodeUnverified(tampered)
	require.NoError(t, err)
	require.Equal(t, "u1", c.Subject)
}

func TestDecodeUnverifiedUnknownAlg(t *testing.T) {
	enc := base64.RawURLEncoding.EncodeToString
	tok := enc([]byte(`{"alg":"XS999","typ":"JWT"}`)) + "." + enc([]byte(`{"sub":"u9"}`)) + ".sig"

	c, err := jwtx.DecodeUnverified(tok)
	require.NoError(t, err)
	require.Equal(t, "u9", c.Subject)
}

func TestDecodeUnverifiedMalformed(t *testing.T) {
	enc := base64.RawURLEncoding.EncodeToString

	tests := map[string]string{
		"empty":            "",
		"one segment":      "abc",
		"two segments":     "abc.def",
		"four segments":    "a.b.c.d",
		"bad base64":       "!!!.???.sig",
		"payload not json": enc([]byte(`{"alg":"HS256"}`)) + "." + enc([]byte("nope")) + ".sig",
		"wrong claim type": enc([]byte(`{"alg":"HS256"}`)) + "." + enc([]byte(`{"email":42}`)) + ".sig",
		"embedded token":   "embedded_42_1700000000000",
	}

	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			require.NotPanics(t, func() {
				c, err := jwtx.DecodeUnverified(tok)
				require.ErrorIs(t, err, jwtx.ErrMalformed)
				require.Nil(t, c)
			})
		})
	}
}

func TestExpiresWithin(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name   string
		exp    *jwt.NumericDate
		within time.Duration
		want   bool
	}{
		{"far future", jwt.NewNumericDate(now.Add(time.Hour)), 30 * time.Second, false},
		{"inside window", jwt.NewNumericDate(now.Add(10 * time.Second)), 30 * time.Second, true},
		{"already expired", jwt.NewNumericDate(now.Add(-time.Second)), 0, true},
		{"no exp", nil, time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &jwtx.IdentityClaims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: tt.exp}}
			require.Equal(t, tt.want, c.ExpiresWithin(tt.within, now))
		})
	}

	require.True(t, jwtx.ExpiresWithin("garbage", 0, now), "undecodable tokens need renewal")
}

func TestValidateExpiryAt(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	t.Run("valid token", func(t *testing.T) {
		c := &jwtx.IdentityClaims{RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		}}
		require.NoError(t, c.ValidateExpiryAt(now, 0))
	})

	t.Run("expired inside leeway", func(t *testing.T) {
		c := &jwtx.IdentityClaims{RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(-5 * time.Second)),
		}}
		require.NoError(t, c.ValidateExpiryAt(now, 10*time.Second))
		require.ErrorIs(t, c.ValidateExpiryAt(now, 0), jwtx.ErrExpired)
	})

	t.Run("not yet valid", func(t *testing.T) {
		c := &jwtx.IdentityClaims{RegisteredClaims: jwt.RegisteredClaims{
			NotBefore: jwt.NewNumericDate(now.Add(time.Minute)),
		}}
		require.ErrorIs(t, c.ValidateExpiryAt(now, 0), jwtx.ErrNotYetValid)
	})
}
