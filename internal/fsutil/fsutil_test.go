package fsutil

import (
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/gridio/pkg/errors"
)

func TestWriteFileAtomic(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/out/sub/model.nc"

	require.NoError(t, WriteFileAtomic(fs, path, func(w io.Writer) error {
		_, err := io.WriteString(w, "first")
		return err
	}))
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	failure := errors.New(errors.ErrorTypeSchemaMismatch, "bad table")
	err = WriteFileAtomic(fs, path, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return failure
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchemaMismatch))

	data, err = afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data), "previous artifact kept")

	entries, err := afero.ReadDir(fs, "/out/sub")
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary file removed")
}

func TestWriteFileAtomicRejectsDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/out/model.nc", 0o755))
	err := WriteFileAtomic(fs, "/out/model.nc", func(io.Writer) error { return nil })
	assert.True(t, errors.IsType(err, errors.ErrorTypeDestinationUnwritable))
}

func TestStageAndCommitDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	dest := "/data/net"
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dest, "loads-p_set.csv"), []byte("old"), 0o644))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dest, "README"), []byte("keep"), 0o644))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dest, "buses.csv"), []byte("old"), 0o644))

	staged, err := StageDir(fs, dest)
	require.NoError(t, err)
	assert.True(t, IsTemp(filepath.Base(staged)))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(staged, "buses.csv"), []byte("new"), 0o644))

	isTable := func(name string) bool { return strings.Contains(name, ".csv") }
	require.NoError(t, CommitDir(fs, staged, dest, isTable))

	data, err := afero.ReadFile(fs, filepath.Join(dest, "buses.csv"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	exists, _ := afero.Exists(fs, filepath.Join(dest, "loads-p_set.csv"))
	assert.False(t, exists, "stale table removed")
	exists, _ = afero.Exists(fs, filepath.Join(dest, "README"))
	assert.True(t, exists, "foreign file kept")
	exists, _ = afero.Exists(fs, staged)
	assert.False(t, exists)
}

func TestStageDirOverFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/net", []byte("x"), 0o644))
	_, err := StageDir(fs, "/data/net")
	assert.True(t, errors.IsType(err, errors.ErrorTypeDestinationUnwritable))
}
