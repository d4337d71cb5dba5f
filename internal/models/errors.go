package models

import "errors"

// Error taxonomy shared by every service. Handlers translate these into
// HTTP statuses in package respond.
var (
	ErrValidation         = errors.New("validation failed")
	ErrUnauthorized       = errors.New("not authorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrInvalidState       = errors.New("invalid state")
	ErrPreconditionFailed = errors.New("precondition failed")

	ErrDuplicateEmail     = errors.New("user already exists")
	ErrReservedEmail      = errors.New("email is reserved")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrBanned             = errors.New("account is banned")
)
