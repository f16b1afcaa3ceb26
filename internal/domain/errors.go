package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotJoined        = errors.New("not joined")
	ErrAuthorityOnly    = errors.New("authority role required")
	ErrAuthorityPresent = errors.New("another authority is already present")
)

// ValidationError is returned for malformed or out-of-range commands.
// It never changes room state.
type ValidationError struct {
	Msg string
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string { return e.Msg }

// AuthorizationError is returned when a non-authority participant
// attempts a privileged command. It is surfaced to the actor only.
type AuthorizationError struct {
	Action string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("only teachers can %s", e.Action)
}

func (e *AuthorizationError) Unwrap() error { return ErrAuthorityOnly }

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsAuthorization(err error) bool {
	var a *AuthorizationError
	return errors.As(err, &a)
}
