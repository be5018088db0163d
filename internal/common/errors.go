// Package common defines shared constants and sentinel errors used across
// artivault layers. Callers should use errors.Is to match these values;
// the transport maps each sentinel to a status code.
package common

import "github.com/cockroachdb/errors"

var (
	// ErrBadRequest covers malformed input, conflicting pagination parameters
	// and query syntax/semantic errors.
	ErrBadRequest = errors.New("bad request")

	// ErrForbidden means the caller is authenticated but lacks a capability.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned both for missing and for invisible rows.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when content is already stored under another object type.
	ErrConflict = errors.New("conflict")

	// Auth errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	ErrInternal = errors.New("internal error")
)

// BadRequestf wraps ErrBadRequest with a formatted, user-facing reason.
func BadRequestf(format string, args ...any) error {
	return errors.Wrapf(ErrBadRequest, format, args...)
}

// NotFoundf wraps ErrNotFound with a formatted, user-facing reason.
func NotFoundf(format string, args ...any) error {
	return errors.Wrapf(ErrNotFound, format, args...)
}

// Forbiddenf wraps ErrForbidden with a formatted, user-facing reason.
func Forbiddenf(format string, args ...any) error {
	return errors.Wrapf(ErrForbidden, format, args...)
}

// Conflictf wraps ErrConflict with a formatted, user-facing reason.
func Conflictf(format string, args ...any) error {
	return errors.Wrapf(ErrConflict, format, args...)
}

// Reason returns the outermost message of err without the sentinel suffix,
// suitable for returning to API clients.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, s := range []error{ErrBadRequest, ErrForbidden, ErrNotFound, ErrConflict, ErrUnauthorized} {
		if errors.Is(err, s) {
			msg := err.Error()
			suffix := ": " + s.Error()
			if len(msg) > len(suffix) && msg[len(msg)-len(suffix):] == suffix {
				return msg[:len(msg)-len(suffix)]
			}
			return msg
		}
	}
	return err.Error()
}
