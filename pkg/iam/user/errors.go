package user

import (
	"net/http"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("USER")

var (
	CodeNotFound        = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "user not found")
	CodeEmailTaken      = ErrRegistry.Register("EMAIL_TAKEN", errx.TypeValidation, http.StatusBadRequest, "email-already-taken")
	CodeAlreadyExists   = ErrRegistry.Register("ALREADY_EXISTS", errx.TypeValidation, http.StatusBadRequest, "users.already-exists")
	CodeCannotDeleteOwn = ErrRegistry.Register("CANNOT_DELETE_OWN", errx.TypeValidation, http.StatusBadRequest, "cannot-delete-own-account")
	CodeSelfModify      = ErrRegistry.Register("SELF_MODIFY", errx.TypeValidation, http.StatusBadRequest, "invalid data")
	CodeNoEmailChange   = ErrRegistry.Register("NO_EMAIL_CHANGE", errx.TypeNotFound, http.StatusNotFound, "not found")
)

func ErrUserNotFound() *errx.Error { return ErrRegistry.New(CodeNotFound) }

// ErrEmailTaken is the duplicate identity failure, reported on the email field
func ErrEmailTaken() *errx.Error {
	return ErrRegistry.New(CodeEmailTaken).WithField("email", "already taken")
}

func ErrAlreadyExists() *errx.Error {
	return ErrRegistry.New(CodeAlreadyExists).WithField("email", "already exists")
}

func ErrCannotDeleteOwnAccount() *errx.Error { return ErrRegistry.New(CodeCannotDeleteOwn) }

func ErrSelfModify(field, reason string) *errx.Error {
	return ErrRegistry.New(CodeSelfModify).WithField(field, reason)
}

func ErrNoEmailChange() *errx.Error { return ErrRegistry.New(CodeNoEmailChange) }
