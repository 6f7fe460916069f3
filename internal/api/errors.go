package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrVerificationRejected marks a 400/403 answer: the proof was missing,
	// spent or expired
	ErrVerificationRejected = errors.New("verification rejected")

	// ErrRequestFailed marks every other failed call
	ErrRequestFailed = errors.New("request failed")

	// errAborted marks calls whose context ended before an answer arrived
	errAborted = errors.New("request aborted by caller")
)

// StatusError carries the server-provided message of a failed call. Its
// Error text is the message alone so it can be shown to users as is.
type StatusError struct {
	Kind       error
	StatusCode int
	Message    string
	Err        error
}

func (e *StatusError) Error() string {
	return e.Message
}

// Unwrap exposes the kind sentinel and any transport error
func (e *StatusError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// IsVerificationStatus reports whether status means the proof was refused
func IsVerificationStatus(status int) bool {
	return status == http.StatusBadRequest || status == http.StatusForbidden
}

func statusFallback(status int) string {
	return fmt.Sprintf("HTTP %d", status)
}

func rejected(status int, msg string) *StatusError {
	return &StatusError{Kind: ErrVerificationRejected, StatusCode: status, Message: msg}
}

func failed(status int, msg string, err error) *StatusError {
	return &StatusError{Kind: ErrRequestFailed, StatusCode: status, Message: msg, Err: err}
}
