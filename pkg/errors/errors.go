package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation              Code = "VALIDATION_ERROR"
	CodeNotFound                Code = "NOT_FOUND"
	CodeConflict                Code = "CONFLICT"
	CodeIdempotency             Code = "IDEMPOTENCY_KEY_REUSED"
	CodeGateway                 Code = "GATEWAY_ERROR"
	CodeMissingGatewayReference Code = "MISSING_GATEWAY_REFERENCE"
	CodePersistence             Code = "PERSISTENCE_ERROR"
	CodeInternal                Code = "INTERNAL_ERROR"
	CodeDependency              Code = "DEPENDENCY_ERROR"
)

// verificationFailed is shared by every failure on the payment verification
// path so the customer cannot tell a gateway outage from a database one.
const verificationFailed = "payment could not be verified, please retry or contact support"

// Metadata describes how a code is rendered to clients.
type Metadata struct {
	HTTPStatus int
	Retryable  bool
	// PublicMessage is returned unless ExposeMessage allows the error's own text.
	PublicMessage  string
	ExposeMessage  bool
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:              {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", ExposeMessage: true, DetailsAllowed: true},
	CodeNotFound:                {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found", ExposeMessage: true},
	CodeConflict:                {HTTPStatus: http.StatusConflict, PublicMessage: "conflict detected", ExposeMessage: true, DetailsAllowed: true},
	CodeIdempotency:             {HTTPStatus: http.StatusConflict, PublicMessage: "idempotency key reused", ExposeMessage: true, DetailsAllowed: true},
	CodeGateway:                 {HTTPStatus: http.StatusBadGateway, Retryable: true, PublicMessage: verificationFailed},
	CodeMissingGatewayReference: {HTTPStatus: http.StatusConflict, PublicMessage: "payment has not been registered for this order"},
	CodePersistence:             {HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: verificationFailed},
	CodeInternal:                {HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "internal server error"},
	CodeDependency:              {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "dependency unavailable"},
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded error. Its message is internal unless the code's
// metadata says otherwise; the cause is never rendered.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
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

// PublicMessage is the text safe to show a customer.
func (e *Error) PublicMessage() string {
	meta := MetadataFor(e.Code())
	if meta.ExposeMessage && e.Message() != "" {
		return e.Message()
	}
	return meta.PublicMessage
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// PublicDetails returns the details only for codes that allow them.
func (e *Error) PublicDetails() any {
	if !MetadataFor(e.Code()).DetailsAllowed {
		return nil
	}
	return e.Details()
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
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in the chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether the outermost coded error in err's chain has code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}

// IsRetryable reports whether the client may repeat the request unchanged.
func IsRetryable(err error) bool {
	typed := As(err)
	if typed == nil {
		return true
	}
	return MetadataFor(typed.Code()).Retryable
}
