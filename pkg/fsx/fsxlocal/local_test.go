package fsxlocal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/fsx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadListExists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "de"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "de", "welcome.txt"), []byte("Hallo"), 0o644))

	fs, err := NewLocalFileSystem(dir)
	require.NoError(t, err)

	data, err := fs.ReadFile(ctx, "de/welcome.txt")
	require.NoError(t, err)
	assert.Equal(t, "Hallo", string(data))

	ok, err := fs.Exists(ctx, "de/welcome.txt")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = fs.Exists(ctx, "en/welcome.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := fs.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "de", entries[0].Name)
	assert.True(t, entries[0].IsDir)

	_, err = fs.ReadFile(ctx, "missing.txt")
	assert.True(t, errx.HasCode(err, fsx.CodeNotFound))
	_, err = fs.List(ctx, "missing")
	assert.True(t, errx.HasCode(err, fsx.CodeNotFound))
}

func TestPathsStayBelowRoot(t *testing.T) {
	fs, err := NewLocalFileSystem(t.TempDir())
	require.NoError(t, err)

	_, err = fs.ReadFile(context.Background(), "../../etc/passwd")
	assert.True(t, errx.HasCode(err, fsx.CodeOutsideRoot))
}

func TestBaseMustBeDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := NewLocalFileSystem(file)
	assert.Error(t, err)
	_, err = NewLocalFileSystem(filepath.Join(file, "nope"))
	assert.Error(t, err)
}
