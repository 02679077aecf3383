package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind identifies which class of failure a divide call ran into.
type Kind string

// Error kinds
const (
	KindValidation Kind = "VALIDATION_ERROR"
	KindTransport  Kind = "TRANSPORT_ERROR"
	KindServer     Kind = "SERVER_ERROR"
	KindProtocol   Kind = "PROTOCOL_ERROR"
)

func (k Kind) String() string {
	return string(k)
}

type DivideError struct {
	Message    string
	Kind       Kind
	StatusCode int
	Context    map[string]any
	Cause      error
}

func (e *DivideError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DivideError) Unwrap() error {
	return e.Cause
}

// ErrorKind is promoted to every concrete error type so callers can match on
// the kind without knowing the layer that failed.
func (e *DivideError) ErrorKind() Kind {
	return e.Kind
}

func NewDivideError(message string, kind Kind, statusCode int, context map[string]any) *DivideError {
	return &DivideError{
		Message:    message,
		Kind:       kind,
		StatusCode: statusCode,
		Context:    context,
	}
}

func (e *DivideError) WithCause(cause error) *DivideError {
	e.Cause = cause
	return e
}

type ValidationError struct {
	*DivideError
	Field string
	Value any
}

func NewValidationError(message, field string, value any) *ValidationError {
	return &ValidationError{
		DivideError: &DivideError{
			Message: message,
			Kind:    KindValidation,
			Context: map[string]any{
				"field": field,
				"value": value,
			},
		},
		Field: field,
		Value: value,
	}
}

type TransportError struct {
	*DivideError
	URL     string
	Timeout bool
}

func NewTransportError(message, url string, cause error) *TransportError {
	return &TransportError{
		DivideError: &DivideError{
			Message: message,
			Kind:    KindTransport,
			Context: map[string]any{
				"url": url,
			},
			Cause: cause,
		},
		URL:     url,
		Timeout: isTimeout(cause),
	}
}

type ServerError struct {
	*DivideError
	Body string
}

func NewServerError(statusCode int, url, body string) *ServerError {
	return &ServerError{
		DivideError: &DivideError{
			Message:    fmt.Sprintf("server responded with status %d", statusCode),
			Kind:       KindServer,
			StatusCode: statusCode,
			Context: map[string]any{
				"url":  url,
				"body": body,
			},
		},
		Body: body,
	}
}

type ProtocolError struct {
	*DivideError
}

func NewProtocolError(message string, context map[string]any, cause error) *ProtocolError {
	return &ProtocolError{
		DivideError: &DivideError{
			Message: message,
			Kind:    KindProtocol,
			Context: context,
			Cause:   cause,
		},
	}
}

type kinded interface {
	error
	ErrorKind() Kind
}

// KindOf returns the kind of the first classified error in err's chain, or ""
// when err is nil or was never classified.
func KindOf(err error) Kind {
	var k kinded
	if stderrors.As(err, &k) {
		return k.ErrorKind()
	}
	return ""
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsTransport(err error) bool  { return KindOf(err) == KindTransport }
func IsServer(err error) bool     { return KindOf(err) == KindServer }
func IsProtocol(err error) bool   { return KindOf(err) == KindProtocol }
