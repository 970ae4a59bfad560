package api

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a request the backend answered but did not accept.
// Message is the server-supplied error string when one was sent,
// otherwise the HTTP status text.
type APIError struct {
	Op      string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: HTTP %d %s", e.Op, e.Status, http.StatusText(e.Status))
	}
	return e.Op + ": request failed"
}

// ErrLoginRequired is wrapped by an APIError when the backend redirected the
// request to its login page.
var ErrLoginRequired = errors.New("login required")

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrLoginRequired
	}
	return nil
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}
