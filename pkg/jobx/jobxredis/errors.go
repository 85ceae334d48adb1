package jobxredis

import (
	"net/http"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("JOBX_REDIS")

var (
	CodeBackend  = ErrRegistry.Register("BACKEND", errx.TypeExternal, http.StatusBadGateway, "job queue unavailable")
	CodeNotFound = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "job not found")
	CodeCorrupt  = ErrRegistry.Register("CORRUPT", errx.TypeInternal, http.StatusInternalServerError, "job data could not be decoded")
)

func errBackend(op string, err error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeBackend, err).WithDetail("op", op)
}

func errNotFound(id string) *errx.Error {
	return ErrRegistry.New(CodeNotFound).WithDetail("job_id", id)
}

func errCorrupt(id string, err error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeCorrupt, err).WithDetail("job_id", id)
}
