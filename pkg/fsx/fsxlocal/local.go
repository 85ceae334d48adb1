package fsxlocal

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/fsx"
)

// LocalFileSystem implements fsx.FileReader on a directory of the local disk
type LocalFileSystem struct {
	basePath string
}

// NewLocalFileSystem opens basePath, which must be an existing directory
func NewLocalFileSystem(basePath string) (*LocalFileSystem, error) {
	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, errx.Wrap(err, "resolve base path", errx.TypeInternal)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, errx.Wrapf(err, errx.TypeInternal, "open %s", basePath)
	}
	if !info.IsDir() {
		return nil, errx.New(basePath+" is not a directory", errx.TypeValidation)
	}
	return &LocalFileSystem{basePath: absPath}, nil
}

var _ fsx.FileReader = (*LocalFileSystem)(nil)

func (fs *LocalFileSystem) ReadFile(_ context.Context, path string) ([]byte, error) {
	full, err := fs.fullPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if os.IsNotExist(err) {
		return nil, fsx.ErrNotFound(path)
	}
	if err != nil {
		return nil, errx.Wrapf(err, errx.TypeInternal, "read %s", path)
	}
	return data, nil
}

func (fs *LocalFileSystem) List(_ context.Context, path string) ([]fsx.FileInfo, error) {
	full, err := fs.fullPath(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if os.IsNotExist(err) {
		return nil, fsx.ErrNotFound(path)
	}
	if err != nil {
		return nil, errx.Wrapf(err, errx.TypeInternal, "list %s", path)
	}

	infos := make([]fsx.FileInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue // removed while listing
		}
		infos = append(infos, fsx.FileInfo{
			Name:    info.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			IsDir:   info.IsDir(),
		})
	}
	return infos, nil
}

func (fs *LocalFileSystem) Exists(_ context.Context, path string) (bool, error) {
	full, err := fs.fullPath(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errx.Wrapf(err, errx.TypeInternal, "stat %s", path)
	}
	return true, nil
}

// fullPath maps a relative path below the base, refusing ones that escape it
func (fs *LocalFileSystem) fullPath(path string) (string, error) {
	full := filepath.Join(fs.basePath, filepath.FromSlash(path))
	if full != fs.basePath && !strings.HasPrefix(full, fs.basePath+string(filepath.Separator)) {
		return "", fsx.ErrOutsideRoot(path)
	}
	return full, nil
}
