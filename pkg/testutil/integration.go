package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// IntegrationTest marks a test as an integration test
func IntegrationTest(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// TestEnvironment bundles what an adapter test needs: a context, a
// filesystem with a scratch directory and a test logger.
type TestEnvironment struct {
	t      *testing.T
	ctx    context.Context
	cancel context.CancelFunc

	Fs     afero.Fs
	Dir    string
	Logger *zap.Logger
}

// NewTestEnvironment creates an environment on an in-memory filesystem.
func NewTestEnvironment(t *testing.T) *TestEnvironment {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/work", 0o755))
	return newEnvironment(t, fs, "/work")
}

// NewOSTestEnvironment creates an environment on the real filesystem, in a
// directory removed when the test ends.
func NewOSTestEnvironment(t *testing.T) *TestEnvironment {
	t.Helper()
	return newEnvironment(t, afero.NewOsFs(), t.TempDir())
}

func newEnvironment(t *testing.T, fs afero.Fs, dir string) *TestEnvironment {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return &TestEnvironment{t: t, ctx: ctx, cancel: cancel, Fs: fs, Dir: dir, Logger: TestLogger(t)}
}

// Context returns the test context
func (e *TestEnvironment) Context() context.Context {
	return e.ctx
}

// Path joins elem onto the scratch directory.
func (e *TestEnvironment) Path(elem ...string) string {
	return filepath.Join(append([]string{e.Dir}, elem...)...)
}

// WriteFile creates a file under the scratch directory.
func (e *TestEnvironment) WriteFile(name string, content []byte) string {
	e.t.Helper()
	path := e.Path(name)
	require.NoError(e.t, afero.WriteFile(e.Fs, path, content, 0o644))
	return path
}

// ReadFile reads a file under the scratch directory.
func (e *TestEnvironment) ReadFile(name string) []byte {
	e.t.Helper()
	data, err := afero.ReadFile(e.Fs, e.Path(name))
	require.NoError(e.t, err)
	return data
}

// Files lists the file names in a directory of the scratch directory.
func (e *TestEnvironment) Files(dir string) []string {
	e.t.Helper()
	entries, err := afero.ReadDir(e.Fs, e.Path(dir))
	require.NoError(e.t, err)
	out := make([]string, 0, len(entries))
	for _, fi := range entries {
		out = append(out, fi.Name())
	}
	return out
}
