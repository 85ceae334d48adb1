package errx

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
)

// FieldErrors maps a request field to the reasons it was rejected.
type FieldErrors map[string][]string

// Add appends a reason for field.
func (f FieldErrors) Add(field, reason string) {
	f[field] = append(f[field], reason)
}

// Fields returns the sorted list of rejected fields.
func (f FieldErrors) Fields() []string {
	out := make([]string, 0, len(f))
	for k := range f {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Error represents a rich error with context and metadata
type Error struct {
	// Code is the unique error code, e.g. ACCESS_TOKEN_EXPIRED
	Code string `json:"code"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// Type categorizes the error
	Type Type `json:"type"`

	// HTTPStatus is the status the boundary answers with
	HTTPStatus int `json:"http_status"`

	// Fields holds per-field reasons for validation failures
	Fields FieldErrors `json:"errors,omitempty"`

	// Details contains additional context, logged but only exposed in debug mode
	Details map[string]any `json:"details,omitempty"`

	// Err is the underlying error (never serialized)
	Err error `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors carrying the same code, so sentinel-style comparisons work
// against freshly constructed registry errors.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithDetail adds a detail to the error and returns the error for chaining
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithField records a field level reason
func (e *Error) WithField(field, reason string) *Error {
	if e.Fields == nil {
		e.Fields = make(FieldErrors)
	}
	e.Fields.Add(field, reason)
	return e
}

// WithFields merges field level reasons
func (e *Error) WithFields(fields FieldErrors) *Error {
	for field, reasons := range fields {
		for _, r := range reasons {
			e.WithField(field, r)
		}
	}
	return e
}

// WithCause attaches the underlying error
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// New creates a new Error
func New(message string, errType Type) *Error {
	return &Error{
		Code:       string(errType),
		Message:    message,
		Type:       errType,
		HTTPStatus: typeToHTTPStatus(errType),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, message string, errType Type) *Error {
	if err == nil {
		return nil
	}

	// If it's already an Error, preserve code, status and details
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Code:       existingErr.Code,
			Message:    message,
			Type:       existingErr.Type,
			HTTPStatus: existingErr.HTTPStatus,
			Fields:     existingErr.Fields,
			Details:    existingErr.Details,
			Err:        err,
		}
	}

	return &Error{
		Code:       string(errType),
		Message:    message,
		Type:       errType,
		HTTPStatus: typeToHTTPStatus(errType),
		Err:        err,
	}
}

// Wrapf wraps an error with a formatted message
func Wrapf(err error, errType Type, format string, args ...any) *Error {
	return Wrap(err, fmt.Sprintf(format, args...), errType)
}

// Is checks if an error matches the target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}

// HasCode reports whether err carries the given registered code
func HasCode(err error, code *ErrorCode) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code.Code
}

func typeToHTTPStatus(t Type) int {
	switch t {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeAuthorization:
		return http.StatusUnauthorized
	case TypeForbidden:
		return http.StatusForbidden
	case TypeNotFound:
		return http.StatusNotFound
	case TypeConflict:
		return http.StatusConflict
	case TypeRateLimit:
		return http.StatusTooManyRequests
	case TypeBusiness:
		return http.StatusUnprocessableEntity
	case TypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
