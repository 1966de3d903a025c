package models

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInactiveAccount    = errors.New("account is inactive")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrNotLoggedIn        = errors.New("no active session")
	ErrForbidden          = errors.New("not allowed")
	ErrNoPlan             = errors.New("patient has no evaluated meal plan")
	ErrInvalidState       = errors.New("record is not in the expected status")
)

// ValidationError reports a missing or out-of-range input field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
