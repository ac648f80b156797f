package session

import (
	"errors"
	"fmt"
)

var (
	ErrClosed           = errors.New("session: controller closed")
	ErrNotAuthenticated = errors.New("session: not authenticated")
	ErrNoSSO            = errors.New("session: web sso not configured")
	ErrHostContainer    = errors.New("session: interactive login unavailable inside a host container")
)

// Kind classifies session failures.
type Kind int

const (
	KindInitialization Kind = iota + 1
	KindExchange
	KindRenewal
	KindSSORenewal
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindInitialization:
		return "initialization"
	case KindExchange:
		return "exchange"
	case KindRenewal:
		return "renewal"
	case KindSSORenewal:
		return "sso_renewal"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is a classified session failure.
type Error struct {
	Kind   Kind
	Source Source
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("session: %s failure (%s): %v", e.Kind, e.Source, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err carries a session Error of kind k.
func IsKind(err error, k Kind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == k
}
