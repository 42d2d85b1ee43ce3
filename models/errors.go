package models

import "fmt"

// ErrorNotFound is returned when an update or delete target is absent.
type ErrorNotFound struct {
	Entity string
	ID     string
}

func (e ErrorNotFound) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ErrorConflict is a uniqueness violation or a concurrent modification.
type ErrorConflict struct {
	Message string
}

func (e ErrorConflict) Error() string {
	return e.Message
}

// ErrorUnauthenticated means there is no valid session.
type ErrorUnauthenticated struct{}

func (ErrorUnauthenticated) Error() string {
	return "please sign in"
}

// ErrorForbidden means the session is valid but lacks privilege.
type ErrorForbidden struct {
	Message string
}

func (e ErrorForbidden) Error() string {
	if e.Message == "" {
		return "you lack permission for this action"
	}
	return e.Message
}

type ErrorValidation struct {
	Field   string
	Message string
}

func (e ErrorValidation) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ErrorInvalidReference is raised when a reference field points at a row
// that breaks a relational invariant, e.g. a reply parent on another post.
type ErrorInvalidReference struct {
	Field   string
	Message string
}

func (e ErrorInvalidReference) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ErrorTransport wraps a mail delivery failure. It never leaves the mailer.
type ErrorTransport struct {
	Transport string
	Err       error
}

func (e ErrorTransport) Error() string {
	return fmt.Sprintf("%s transport: %v", e.Transport, e.Err)
}

func (e ErrorTransport) Unwrap() error {
	return e.Err
}
