package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure at the HTTP boundary.
type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindNotFound
	KindUnauthorized
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindStorage:
		return "storage"
	default:
		return "unexpected"
	}
}

// Status is the HTTP status a kind maps to.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Kind   Kind
	Status int
	Code   string
	Err    error
	// Fields carries per-field messages for validation failures.
	Fields map[string][]string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

// Internal reports whether the message should be hidden from clients.
func (e *Error) Internal() bool {
	return e.Kind == KindStorage || e.Kind == KindUnexpected
}

func New(status int, code string, err error) *Error {
	return &Error{Kind: kindForStatus(status), Status: status, Code: code, Err: err}
}

func Validation(code string, err error) *Error {
	return &Error{Kind: KindValidation, Status: KindValidation.Status(), Code: code, Err: err}
}

func InvalidFields(fields map[string][]string) *Error {
	return &Error{
		Kind:   KindValidation,
		Status: KindValidation.Status(),
		Code:   "invalid_fields",
		Err:    errors.New("validation failed"),
		Fields: fields,
	}
}

func NotFound(code string, err error) *Error {
	return &Error{Kind: KindNotFound, Status: KindNotFound.Status(), Code: code, Err: err}
}

func Unauthorized(code string, err error) *Error {
	return &Error{Kind: KindUnauthorized, Status: KindUnauthorized.Status(), Code: code, Err: err}
}

func Storage(code string, err error) *Error {
	return &Error{Kind: KindStorage, Status: KindStorage.Status(), Code: code, Err: fmt.Errorf("database error: %w", err)}
}

func Unexpected(code string, err error) *Error {
	return &Error{Kind: KindUnexpected, Status: KindUnexpected.Status(), Code: code, Err: fmt.Errorf("unexpected error: %w", err)}
}

// As unwraps err into an *Error, wrapping unknown errors as Unexpected.
func As(err error, fallbackCode string) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Unexpected(fallbackCode, err)
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindUnauthorized
	case status >= 400 && status < 500:
		return KindValidation
	default:
		return KindUnexpected
	}
}
