package errx

// Common error constructors for errors that do not deserve a registry code

// Internal creates an internal server error
func Internal(message string) *Error {
	return New(message, TypeInternal)
}

// Invalid creates a validation error carrying field level reasons
func Invalid(fields FieldErrors) *Error {
	return New("invalid data", TypeValidation).WithFields(fields)
}
