package identity

import (
	"strconv"
	"strings"
)

// HostUser is the user a host application (the embedding messenger) vouches
// for when it launches the app.
type HostUser struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	IsPremium    bool   `json:"is_premium,omitempty"`
}

// Handle is the login name sent to the identity provider: the host username
// when set, otherwise the numeric id.
func (u HostUser) Handle() string {
	if u.Username != "" {
		return u.Username
	}
	return strconv.FormatInt(u.ID, 10)
}

// FromHostUser builds the profile shown before (or instead of) a decoded
// token. Host users have no roles and no email.
func FromHostUser(u HostUser) *UserProfile {
	return &UserProfile{
		ID:         strconv.FormatInt(u.ID, 10),
		Username:   u.Handle(),
		Name:       strings.TrimSpace(u.FirstName + " " + u.LastName),
		Roles:      []string{},
		PictureURL: u.PhotoURL,
	}
}

// Merge overlays the non-empty fields of decoded onto base. decoded wins
// because the provider knows the account, the host only knows the device.
func Merge(base, decoded *UserProfile) *UserProfile {
	switch {
	case base == nil:
		return decoded
	case decoded == nil:
		return base
	}

	out := *base
	if decoded.ID != "" {
		out.ID = decoded.ID
	}
	if decoded.Username != "" {
		out.Username = decoded.Username
	}
	if decoded.Name != "" {
		out.Name = decoded.Name
	}
	if decoded.Email != "" {
		out.Email = decoded.Email
		out.EmailVerified = decoded.EmailVerified
	}
	if len(decoded.Roles) > 0 {
		out.Roles = decoded.Roles
	}
	// An identicon is a worse picture than the host's real photo
	if decoded.PictureURL != "" && (out.PictureURL == "" || !strings.HasPrefix(decoded.PictureURL, IdenticonBase)) {
		out.PictureURL = decoded.PictureURL
	}
	return &out
}
