package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a download failure.
type ErrorKind int

const (
	// KindValidation is a bad or unsupported URL, rejected before enqueue.
	KindValidation ErrorKind = iota

	// KindTransfer is a failed fetch attempt. Retried up to the attempt budget.
	KindTransfer

	// KindIntegrity is a failed post-download verification.
	KindIntegrity

	// KindEnvironment is a missing external tool. Never retried.
	KindEnvironment

	// KindCancelled is a cancellation signal, not a failure.
	KindCancelled
)

// String returns a short identifier for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransfer:
		return "transfer"
	case KindIntegrity:
		return "integrity"
	case KindEnvironment:
		return "environment"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Message returns the human-readable description for a kind.
func Message(kind ErrorKind) string {
	switch kind {
	case KindValidation:
		return "Invalid or unsupported URL."
	case KindTransfer:
		return "Download failed. Check your connection or the source site."
	case KindIntegrity:
		return "Downloaded file failed verification."
	case KindEnvironment:
		return "A required tool is missing. Install ffmpeg and yt-dlp."
	case KindCancelled:
		return "Download cancelled."
	default:
		return "Unexpected error."
	}
}

// Error is the single error type produced by the download core.
type Error struct {
	Kind    ErrorKind
	URL     string
	Attempt int // 0 when not attempt-specific
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := Message(e.Kind)
	if e.URL != "" {
		msg = e.URL + ": " + msg
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d)", msg, e.Attempt)
	}
	if e.Err != nil {
		msg += " " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrCancelled) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.URL == "" && t.Err == nil
}

// ErrCancelled is returned by workers and progress callbacks once a job is cancelled.
var ErrCancelled = &Error{Kind: KindCancelled}

// NewValidationError reports an unacceptable URL.
func NewValidationError(url string, err error) *Error {
	return &Error{Kind: KindValidation, URL: url, Err: err}
}

// NewTransferError reports a failed fetch attempt.
func NewTransferError(url string, attempt int, err error) *Error {
	return &Error{Kind: KindTransfer, URL: url, Attempt: attempt, Err: err}
}

// NewIntegrityError reports a failed verification of a finished file.
func NewIntegrityError(url string, err error) *Error {
	return &Error{Kind: KindIntegrity, URL: url, Err: err}
}

// NewEnvironmentError reports a missing external dependency.
func NewEnvironmentError(err error) *Error {
	return &Error{Kind: KindEnvironment, Err: err}
}

// KindOf returns the kind of err and whether err carries one.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsKind reports whether err is a download *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
