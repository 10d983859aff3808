package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation      Code = "VALIDATION_ERROR"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeStateConflict   Code = "STATE_CONFLICT"
	CodeIdempotency     Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal        Code = "INTERNAL_ERROR"
	CodePersistence     Code = "PERSISTENCE_ERROR"
	CodeExternalTimeout Code = "EXTERNAL_SERVICE_TIMEOUT"
	CodeExternalFailure Code = "EXTERNAL_SERVICE_FAILURE"
	// CodePartialCredit never fails a request; it tags warnings attached to a successful result.
	CodePartialCredit Code = "PARTIAL_CREDIT"
)

// Metadata drives how a code is rendered over HTTP. PublicMessage replaces
// the internal message when the code does not expose it.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:      {http.StatusBadRequest, false, "validation failed", true},
	CodeNotFound:        {http.StatusNotFound, false, "resource not found", false},
	CodeConflict:        {http.StatusConflict, false, "conflict detected", false},
	CodeStateConflict:   {http.StatusUnprocessableEntity, false, "state transition disallowed", true},
	CodeIdempotency:     {http.StatusConflict, false, "idempotency key reused", true},
	CodeInternal:        {http.StatusInternalServerError, true, "internal server error", false},
	CodePersistence:     {http.StatusServiceUnavailable, true, "persistence unavailable, retry the request", false},
	CodeExternalTimeout: {http.StatusGatewayTimeout, true, "external service timed out", true},
	CodeExternalFailure: {http.StatusBadGateway, true, "external service unavailable", true},
	CodePartialCredit:   {http.StatusOK, false, "work was credited to a subset of participants", true},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}

// IsRetryable reports whether the caller may safely resubmit the failed operation.
func IsRetryable(err error) bool {
	typed := As(err)
	if typed == nil {
		return false
	}
	return MetadataFor(typed.Code()).Retryable
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}
