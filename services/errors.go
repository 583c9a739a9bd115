package services

import (
	"errors"
	"fmt"
)

// Error kinds. Every DomainError unwraps to exactly one of these.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// DomainError is a business rule failure with a client facing message.
type DomainError struct {
	Kind    error
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Kind
}

func newError(kind error, message string) *DomainError {
	return &DomainError{Kind: kind, Message: message}
}

// NotFoundf builds a NotFound error
func NotFoundf(format string, args ...interface{}) error {
	return newError(ErrNotFound, fmt.Sprintf(format, args...))
}

// Conflictf builds a Conflict error
func Conflictf(format string, args ...interface{}) error {
	return newError(ErrConflict, fmt.Sprintf(format, args...))
}

// Validationf builds a Validation error
func Validationf(format string, args ...interface{}) error {
	return newError(ErrValidation, fmt.Sprintf(format, args...))
}

var (
	ErrStudentNotFound    = newError(ErrNotFound, "Student not found")
	ErrBookNotFound       = newError(ErrNotFound, "Book not found")
	ErrNoCopies           = newError(ErrConflict, "No copies available")
	ErrAlreadyBorrowed    = newError(ErrConflict, "Book already borrowed by this student")
	ErrNoBorrowRecord     = newError(ErrConflict, "No borrowed record found")
	ErrDuplicateISBN      = newError(ErrConflict, "Book with this ISBN already exists")
	ErrDuplicateEnroll    = newError(ErrConflict, "Enrollment number already exists")
	ErrStudentHasLoans    = newError(ErrConflict, "Cannot delete student with borrowed books")
	ErrConcurrentUpdate   = newError(ErrConflict, "Record was modified concurrently, please retry")
	ErrNotRatable         = newError(ErrNotFound, "Book not found in your history or not yet returned")
	ErrInvalidCredentials = newError(ErrUnauthorized, "Invalid credentials")
	ErrTokenRevoked       = newError(ErrUnauthorized, "Token has been revoked")
)

// KindOf returns the kind sentinel of err, or nil for internal errors.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrUnauthorized, ErrForbidden} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
