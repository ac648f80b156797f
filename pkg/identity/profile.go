// Package identity turns bearer tokens and host-app users into the profile
// shown to the user.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"

	"github.com/aussiebroadwan/aichef/pkg/jwtx"
)

// IdenticonBase is the avatar service used when no picture claim exists.
const IdenticonBase = "https://www.gravatar.com/avatar/"

// UserProfile is an immutable snapshot of who the session belongs to.
type UserProfile struct {
	ID            string   `json:"id"`
	Username      string   `json:"username"`
	Name          string   `json:"name,omitempty"`
	Email         string   `json:"email,omitempty"`
	EmailVerified bool     `json:"email_verified"`
	Roles         []string `json:"roles"`
	PictureURL    string   `json:"picture_url,omitempty"`
}

// HasRole reports whether the profile carries role.
func (p *UserProfile) HasRole(role string) bool {
	if p == nil {
		return false
	}
	_, found := slices.BinarySearch(p.Roles, role)
	return found
}

// FromToken decodes a profile from an access token. It returns nil for
// anything that isn't a decodable JWT, including the synthetic tokens
// issued by the embedded fallback.
func FromToken(token string) *UserProfile {
	claims, err := jwtx.DecodeUnverified(token)
	if err != nil {
		return nil
	}
	return FromClaims(claims)
}

// FromClaims builds a profile from already decoded claims.
func FromClaims(c *jwtx.IdentityClaims) *UserProfile {
	if c == nil {
		return nil
	}

	name := c.Name
	if name == "" {
		name = strings.TrimSpace(c.GivenName + " " + c.FamilyName)
	}

	return &UserProfile{
		ID:            c.Subject,
		Username:      c.PreferredUsername,
		Name:          name,
		Email:         c.Email,
		EmailVerified: c.EmailVerified,
		Roles:         normalizeRoles(c.RealmAccess.Roles),
		PictureURL:    ResolvePicture(c),
	}
}

// ResolvePicture walks the avatar claims in priority order, then falls back
// to an identicon keyed by email. Empty when nothing applies.
func ResolvePicture(c *jwtx.IdentityClaims) string {
	for _, candidate := range []string{c.Picture, c.Avatar, c.ProfilePicture, c.Image} {
		if candidate != "" {
			return candidate
		}
	}
	return IdenticonURL(c.Email)
}

// IdenticonURL returns a deterministic generated avatar for email.
func IdenticonURL(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ""
	}

	sum := sha256.Sum256([]byte(email))
	return IdenticonBase + hex.EncodeToString(sum[:]) + "?d=identicon&s=200"
}

func normalizeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
