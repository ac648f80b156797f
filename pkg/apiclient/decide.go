package apiclient

import "net/http"

type action int

const (
	// actionDone hands the response to the caller.
	actionDone action = iota
	// actionRetry resends with the token that is already current.
	actionRetry
	// actionRenewRetry forces a renewal, then resends.
	actionRenewRetry
)

// attempt is what decide needs to know about one finished send.
type attempt struct {
	status    int
	retried   bool
	retriable bool

	// sent is the token the request carried, current is the token held now.
	sent    string
	current string
}

// decide picks what happens after a response. Only a 401 is ever retried,
// only once, and only for sessions that support it. If another caller
// renewed while this request was in flight the new token is used as is.
func decide(a attempt) action {
	if a.status != http.StatusUnauthorized || a.retried || !a.retriable {
		return actionDone
	}
	if a.current != "" && a.current != a.sent {
		return actionRetry
	}
	return actionRenewRetry
}
