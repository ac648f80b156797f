package domain

import "time"

// PendingLogin is a browser login that has been sent to the identity
// provider and not yet come back. The PKCE verifier is sealed at rest.
type PendingLogin struct {
	ID             string // ULID
	State          string // OAuth2 state, unique
	VerifierSealed string // cryptox.Sealer output, state as associated data
	Nonce          string
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// IsExpired reports whether the login can no longer be completed.
func (p *PendingLogin) IsExpired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}
