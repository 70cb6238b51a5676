// Package apperror defines the error kinds shared by every layer of the blog.
//
// ERROR KINDS:
// The service layer never returns HTTP status codes. It returns an *AppError whose
// Err field is one of the sentinel kinds below, and the handler layer maps the kind
// to a status code (see handler/response.go).
//
//	ErrValidation   → 400  (bad slug, missing title, word cap exceeded)
//	ErrUnauthorized → 401  (wrong credentials, missing session)
//	ErrForbidden    → 403  (caller is not the post's author)
//	ErrNotFound     → 404  (post, file, account)
//	ErrConflict     → 409  (slug or email already taken)
//	ErrUnavailable  → 503  (generative API down, breaker open, quota exhausted)
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("upstream unavailable")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized means the caller could not be identified: bad credentials,
// an expired token, or a session that was revoked by logout.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Unavailable wraps a failure of an external collaborator (the generative
// text API, a remote identity provider). cause may be nil.
func Unavailable(message string, cause error) *AppError {
	err := ErrUnavailable
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrUnavailable, cause)
	}
	return &AppError{
		Err:     err,
		Message: message,
	}
}

// Kind returns the sentinel kind wrapped somewhere in err's chain, or nil
// when err carries no application kind (an unexpected internal failure).
func Kind(err error) error {
	for _, kind := range []error{
		ErrValidation, ErrUnauthorized, ErrForbidden,
		ErrNotFound, ErrConflict, ErrUnavailable,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
