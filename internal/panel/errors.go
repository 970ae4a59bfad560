package panel

import (
	"errors"
	"strings"
)

var (
	// ErrCancelled means the operator declined a confirmation; no request
	// was sent.
	ErrCancelled = errors.New("cancelled")
	// ErrNoTask is returned for an operation that needs a task id but got 0.
	ErrNoTask = errors.New("no task selected")
	// ErrMissingField wraps form validation failures.
	ErrMissingField = errors.New("missing required field")
	// ErrNoFile is returned when saving without a filename.
	ErrNoFile = errors.New("filename is required")
)

// alertText is what the operator sees for err: the server-supplied message
// for API errors, otherwise the wrapped network error.
func alertText(prefix string, err error) string {
	msg := strings.TrimSpace(err.Error())
	if prefix == "" {
		return msg
	}
	return prefix + ": " + msg
}
