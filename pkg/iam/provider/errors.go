package provider

import (
	"net/http"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("PROVIDER")

var (
	CodeUnknownProvider = ErrRegistry.Register("UNKNOWN", errx.TypeNotFound, http.StatusNotFound, "unknown-provider")
	CodeLoginFailed     = ErrRegistry.Register("LOGIN_FAILED", errx.TypeNotFound, http.StatusNotFound, "login failed")
	CodeAlreadyLinked   = ErrRegistry.Register("ALREADY_LINKED", errx.TypeValidation, http.StatusBadRequest, "already exists")
	CodeNotFound        = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "not found")
	CodeLastProvider    = ErrRegistry.Register("LAST_PROVIDER", errx.TypeValidation, http.StatusBadRequest, "cannot delete last login provider")
	CodeAuthFailed      = ErrRegistry.Register("AUTHENTICATION_FAILED", errx.TypeValidation, http.StatusBadRequest, "authentication failed")
)

func ErrUnknownProvider() *errx.Error { return ErrRegistry.New(CodeUnknownProvider) }

// ErrLoginFailed is returned for unknown accounts and bad credentials alike
func ErrLoginFailed() *errx.Error { return ErrRegistry.New(CodeLoginFailed) }

// ErrAlreadyLinked is the duplicate identity failure of Finalize
func ErrAlreadyLinked() *errx.Error { return ErrRegistry.New(CodeAlreadyLinked) }

func ErrNotFound() *errx.Error     { return ErrRegistry.New(CodeNotFound) }
func ErrLastProvider() *errx.Error { return ErrRegistry.New(CodeLastProvider) }
func ErrAuthFailed() *errx.Error   { return ErrRegistry.New(CodeAuthFailed) }
