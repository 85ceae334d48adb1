package jobx

import (
	"net/http"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("JOBX")

var (
	CodeJobNotFound    = ErrRegistry.Register("JOB_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "job not found")
	CodeNoHandler      = ErrRegistry.Register("NO_HANDLER", errx.TypeInternal, http.StatusInternalServerError, "no handler registered for job type")
	CodeInvalidJob     = ErrRegistry.Register("INVALID_JOB", errx.TypeValidation, http.StatusBadRequest, "invalid job definition")
	CodeAlreadyRunning = ErrRegistry.Register("ALREADY_RUNNING", errx.TypeConflict, http.StatusConflict, "worker is already running")
)

func ErrJobNotFound() *errx.Error    { return ErrRegistry.New(CodeJobNotFound) }
func ErrNoHandler() *errx.Error      { return ErrRegistry.New(CodeNoHandler) }
func ErrInvalidJob() *errx.Error     { return ErrRegistry.New(CodeInvalidJob) }
func ErrAlreadyRunning() *errx.Error { return ErrRegistry.New(CodeAlreadyRunning) }
