package errx

// Type represents the category of error
type Type string

const (
	// TypeInternal represents internal server errors
	TypeInternal Type = "INTERNAL"

	// TypeValidation represents malformed input, carries field level reasons
	TypeValidation Type = "VALIDATION"

	// TypeAuthorization represents missing or unusable credentials
	TypeAuthorization Type = "AUTHORIZATION"

	// TypeForbidden represents an authenticated caller lacking scope or role
	TypeForbidden Type = "FORBIDDEN"

	// TypeNotFound represents resource not found errors
	TypeNotFound Type = "NOT_FOUND"

	// TypeConflict represents resource conflict errors
	TypeConflict Type = "CONFLICT"

	// TypeRateLimit represents throttled or blocked requests
	TypeRateLimit Type = "RATE_LIMIT"

	// TypeBusiness represents business logic errors
	TypeBusiness Type = "BUSINESS"

	// TypeExternal represents errors from external services
	TypeExternal Type = "EXTERNAL"
)

// String returns the string representation of the error type
func (t Type) String() string {
	return string(t)
}
