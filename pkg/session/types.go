package session

import (
	"github.com/aussiebroadwan/aichef/pkg/identity"
)

// Status is where the session is in its lifecycle.
type Status int

const (
	StatusUninitialized Status = iota
	StatusAuthenticating
	StatusAuthenticated
	StatusUnauthenticated
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusAuthenticating:
		return "authenticating"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Source is the identity source that owns the credentials.
type Source int

const (
	SourceNone Source = iota
	SourceWebSSO
	SourceEmbedded
)

func (s Source) String() string {
	switch s {
	case SourceWebSSO:
		return "web_sso"
	case SourceEmbedded:
		return "embedded_assertion"
	default:
		return "none"
	}
}

func (s Source) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Trigger says why a renewal was requested.
type Trigger int

const (
	// TriggerTimer is the periodic background renewal.
	TriggerTimer Trigger = iota
	// TriggerExpired is a request noticing the token already expired.
	TriggerExpired
	// TriggerUnauthorized is a request rejected with 401. It forces a
	// refresh even if the token looks valid locally.
	TriggerUnauthorized
)

func (t Trigger) String() string {
	switch t {
	case TriggerTimer:
		return "timer"
	case TriggerExpired:
		return "expired"
	case TriggerUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	Status  Status                `json:"status"`
	Source  Source                `json:"source"`
	Profile *identity.UserProfile `json:"user"`

	// HostContainer is true when the process was launched by a host app.
	HostContainer bool `json:"host_container"`

	// Err is the last initialization, renewal or decode failure.
	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

func (s Snapshot) IsAuthenticated() bool { return s.Status == StatusAuthenticated }

func (s Snapshot) IsLoading() bool {
	return s.Status == StatusUninitialized || s.Status == StatusAuthenticating
}
