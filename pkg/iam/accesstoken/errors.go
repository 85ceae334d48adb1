package accesstoken

import (
	"net/http"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("ACCESS_TOKEN")

var (
	CodeNoCredential          = ErrRegistry.Register("NO_CREDENTIAL", errx.TypeAuthorization, http.StatusUnauthorized, "authentication required")
	CodeCredentialNotFound    = ErrRegistry.Register("NOT_FOUND", errx.TypeAuthorization, http.StatusUnauthorized, "invalid access token")
	CodeCredentialExpired     = ErrRegistry.Register("EXPIRED", errx.TypeAuthorization, http.StatusUnauthorized, "access token expired")
	CodeCredentialInvalidated = ErrRegistry.Register("INVALIDATED", errx.TypeAuthorization, http.StatusUnauthorized, "access token no longer valid")
	CodeInsufficientScope     = ErrRegistry.Register("INSUFFICIENT_SCOPE", errx.TypeForbidden, http.StatusForbidden, "insufficient scope")
	CodeSuperuserRequired     = ErrRegistry.Register("SUPERUSER_REQUIRED", errx.TypeForbidden, http.StatusForbidden, "superuser required")
	CodeTokenNotFound         = ErrRegistry.Register("TOKEN_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "not found")
	CodeCannotDeleteCurrent   = ErrRegistry.Register("CANNOT_DELETE_CURRENT", errx.TypeNotFound, http.StatusNotFound, "cannot-delete-current-token")
	CodeTooMany               = ErrRegistry.Register("TOO_MANY", errx.TypeValidation, http.StatusBadRequest, "too-many-access-tokens")
)

func ErrNoCredential() *errx.Error          { return ErrRegistry.New(CodeNoCredential) }
func ErrCredentialNotFound() *errx.Error    { return ErrRegistry.New(CodeCredentialNotFound) }
func ErrCredentialExpired() *errx.Error     { return ErrRegistry.New(CodeCredentialExpired) }
func ErrCredentialInvalidated() *errx.Error { return ErrRegistry.New(CodeCredentialInvalidated) }
func ErrInsufficientScope() *errx.Error     { return ErrRegistry.New(CodeInsufficientScope) }
func ErrSuperuserRequired() *errx.Error     { return ErrRegistry.New(CodeSuperuserRequired) }
func ErrTokenNotFound() *errx.Error         { return ErrRegistry.New(CodeTokenNotFound) }
func ErrCannotDeleteCurrent() *errx.Error   { return ErrRegistry.New(CodeCannotDeleteCurrent) }
func ErrTooMany() *errx.Error               { return ErrRegistry.New(CodeTooMany) }
