package fsx

import (
	"context"
	"net/http"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
)

// FileInfo describes one entry of a tree
type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// FileReader gives read-only access to a tree of files addressed by
// slash separated paths relative to its root.
type FileReader interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	List(ctx context.Context, path string) ([]FileInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

var ErrRegistry = errx.NewRegistry("FSX")

var (
	CodeNotFound    = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "file not found")
	CodeOutsideRoot = ErrRegistry.Register("OUTSIDE_ROOT", errx.TypeValidation, http.StatusBadRequest, "path leaves the root")
)

func ErrNotFound(path string) *errx.Error {
	return ErrRegistry.New(CodeNotFound).WithDetail("path", path)
}

func ErrOutsideRoot(path string) *errx.Error {
	return ErrRegistry.New(CodeOutsideRoot).WithDetail("path", path)
}
