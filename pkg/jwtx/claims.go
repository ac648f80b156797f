package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Access lists the roles granted by a realm or a single client.
type Access struct {
	Roles []string `json:"roles,omitempty"`
}

// IdentityClaims are the claims an OpenID Connect provider (Keycloak in
// practice) puts into access and ID tokens. Only what the session layer
// displays or reasons about is modelled.
type IdentityClaims struct {
	jwt.RegisteredClaims

	// Session ID at the provider
	SID   string `json:"sid,omitempty"`
	Scope string `json:"scope,omitempty"`

	PreferredUsername string `json:"preferred_username,omitempty"`
	Name              string `json:"name,omitempty"`
	GivenName         string `json:"given_name,omitempty"`
	FamilyName        string `json:"family_name,omitempty"`
	Email             string `json:"email,omitempty"`
	EmailVerified     bool   `json:"email_verified,omitempty"`

	// Avatar claims, in the order they are consulted. Providers and
	// identity brokers don't agree on a name.
	Picture        string `json:"picture,omitempty"`
	Avatar         string `json:"avatar,omitempty"`
	ProfilePicture string `json:"profile_picture,omitempty"`
	Image          string `json:"image,omitempty"`

	RealmAccess    Access            `json:"realm_access,omitempty"`
	ResourceAccess map[string]Access `json:"resource_access,omitempty"`
}

// ExpiresWithin reports whether the token expires within d of now. Tokens
// without exp never expire.
func (c *IdentityClaims) ExpiresWithin(d time.Duration, now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !now.Add(d).Before(c.ExpiresAt.Time)
}

// ValidateExpiryAt ensures the token hasn't expired (exp) and isn't before
// nbf, allowing leeway either side for clock skew.
func (c *IdentityClaims) ValidateExpiryAt(now time.Time, leeway time.Duration) error {
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}

	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}

	return nil
}
