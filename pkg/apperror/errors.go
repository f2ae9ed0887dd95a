package apperror

import (
	"errors"
	"net/http"
)

// Kind is the machine-readable category of a rejected operation.
type Kind string

const (
	KindSelfReservation    Kind = "self_reservation"
	KindAlreadyReserved    Kind = "already_reserved"
	KindDuplicateCandidate Kind = "duplicate_candidate"
	KindCandidateNotFound  Kind = "candidate_not_found"
	KindPermission         Kind = "permission_denied"
	KindNotFound           Kind = "not_found"
	KindNotReservable      Kind = "not_reservable"
	KindInvalidInput       Kind = "invalid_input"
	KindUnauthorized       Kind = "unauthorized"
	KindInternal           Kind = "internal"
)

var (
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrBadRequest         = errors.New("bad request")
	ErrInternal           = errors.New("internal server error")
	ErrInvalidInput       = errors.New("invalid input")
	ErrSelfReservation    = errors.New("you can't reserve your own wish")
	ErrAlreadyReserved    = errors.New("this wish is already reserved")
	ErrDuplicateCandidate = errors.New("you are already a candidate for this wish")
	ErrCandidateNotFound  = errors.New("candidate not found")
	ErrNotReservable      = errors.New("this wish can't be reserved")
)

// AppError is a custom error type that can hold an HTTP status code
type AppError struct {
	Kind    Kind
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code int, message string, err error) *AppError {
	return &AppError{
		Kind:    KindOf(err),
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Wrap keeps err as the cause and overrides the human message.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Kind:    KindOf(err),
		Code:    MapErrorToStatus(err),
		Message: message,
		Err:     err,
	}
}

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrSelfReservation, KindSelfReservation},
	{ErrAlreadyReserved, KindAlreadyReserved},
	{ErrDuplicateCandidate, KindDuplicateCandidate},
	{ErrCandidateNotFound, KindCandidateNotFound},
	{ErrNotReservable, KindNotReservable},
	{ErrNotFound, KindNotFound},
	{ErrForbidden, KindPermission},
	{ErrUnauthorized, KindUnauthorized},
	{ErrBadRequest, KindInvalidInput},
	{ErrInvalidInput, KindInvalidInput},
}

// KindOf resolves the taxonomy kind of err, falling back to KindInternal.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Kind != "" && appErr.Kind != KindInternal {
		return appErr.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// MapErrorToStatus maps common errors to HTTP status codes
func MapErrorToStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != 0 {
		return appErr.Code
	}

	switch KindOf(err) {
	case KindNotFound, KindCandidateNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindPermission, KindSelfReservation, KindNotReservable:
		return http.StatusForbidden
	case KindAlreadyReserved, KindDuplicateCandidate:
		return http.StatusConflict
	case KindInvalidInput:
		return http.StatusBadRequest
	}
	// Default to internal server error
	return http.StatusInternalServerError
}
