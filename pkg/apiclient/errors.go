package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// StatusError is a non-2xx API response, a 401 that survived its retry
// included.
type StatusError struct {
	Status  int
	Body    []byte
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("apiclient: %d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
	}
	return fmt.Sprintf("apiclient: %d %s", e.Status, http.StatusText(e.Status))
}

// Unauthorized reports whether the API rejected the credentials.
func (e *StatusError) Unauthorized() bool { return e.Status == http.StatusUnauthorized }

func newStatusError(resp *Response) *StatusError {
	e := &StatusError{Status: resp.Status, Body: resp.Body}

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(resp.Body, &body) == nil {
		e.Message = body.Error
		if e.Message == "" {
			e.Message = body.Message
		}
	}
	return e
}

// RenewalError means the request was never answered because the credentials
// could not be renewed. The session has been signed out by then.
type RenewalError struct {
	Err error
}

func (e *RenewalError) Error() string {
	return "apiclient: credential renewal failed: " + e.Err.Error()
}

func (e *RenewalError) Unwrap() error { return e.Err }
