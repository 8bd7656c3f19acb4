// Package fsutil stages writes on an afero filesystem so that a failed
// export never replaces a previous artifact with a partial one.
package fsutil

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/ajitpratap0/gridio/pkg/errors"
)

// OrOS returns fs, or the operating system filesystem when fs is nil.
func OrOS(fs afero.Fs) afero.Fs {
	if fs == nil {
		return afero.NewOsFs()
	}
	return fs
}

func tempPrefix(path string) string {
	return "." + filepath.Base(path) + ".tmp-"
}

// IsTemp reports whether name is a staging artifact left by this package.
func IsTemp(name string) bool {
	return strings.HasPrefix(name, ".") && strings.Contains(name, ".tmp-")
}

// WriteFileAtomic writes path through a temporary sibling file that is
// renamed over path only after write returned successfully.
func WriteFileAtomic(fs afero.Fs, path string, write func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeDestinationUnwritable, "cannot create directory %s", dir)
	}
	if info, statErr := fs.Stat(path); statErr == nil && info.IsDir() {
		return errors.Newf(errors.ErrorTypeDestinationUnwritable, "%s is a directory", path)
	}

	tmp, err := afero.TempFile(fs, dir, tempPrefix(path))
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeDestinationUnwritable, "cannot create file in %s", dir)
	}
	name := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = fs.Remove(name)
		}
	}()

	if err = write(tmp); err != nil {
		return errors.Propagate(err, errors.ErrorTypeDestinationUnwritable, "failed to write "+path)
	}
	if err = tmp.Sync(); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeDestinationUnwritable, "failed to sync %s", path)
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeDestinationUnwritable, "failed to close %s", path)
	}
	if err = fs.Rename(name, path); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeDestinationUnwritable, "failed to move %s into place", path)
	}
	return nil
}

// StageDir creates an empty staging directory next to dest.
func StageDir(fs afero.Fs, dest string) (string, error) {
	parent := filepath.Dir(filepath.Clean(dest))
	if err := fs.MkdirAll(parent, 0o755); err != nil {
		return "", errors.Wrapf(err, errors.ErrorTypeDestinationUnwritable, "cannot create directory %s", parent)
	}
	if info, err := fs.Stat(dest); err == nil && !info.IsDir() {
		return "", errors.Newf(errors.ErrorTypeDestinationUnwritable, "%s exists and is not a directory", dest)
	}
	dir, err := afero.TempDir(fs, parent, tempPrefix(dest))
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrorTypeDestinationUnwritable, "cannot create staging directory in %s", parent)
	}
	return dir, nil
}

// CommitDir moves the files of staged into dest and removes staged. Files
// already in dest for which stale returns true and that staged does not
// replace are deleted; other files in dest are left alone.
func CommitDir(fs afero.Fs, staged, dest string, stale func(name string) bool) error {
	if err := fs.MkdirAll(dest, 0o755); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeDestinationUnwritable, "cannot create directory %s", dest)
	}
	incoming, err := afero.ReadDir(fs, staged)
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeInternal, "cannot list staging directory %s", staged)
	}
	keep := make(map[string]bool, len(incoming))
	for _, fi := range incoming {
		keep[fi.Name()] = true
	}

	existing, err := afero.ReadDir(fs, dest)
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeDestinationUnwritable, "cannot list %s", dest)
	}
	for _, fi := range existing {
		if fi.IsDir() || keep[fi.Name()] || stale == nil || !stale(fi.Name()) {
			continue
		}
		if err := fs.Remove(filepath.Join(dest, fi.Name())); err != nil {
			return errors.Wrapf(err, errors.ErrorTypeDestinationUnwritable, "cannot remove stale %s", fi.Name())
		}
	}

	for _, fi := range incoming {
		if err := fs.Rename(filepath.Join(staged, fi.Name()), filepath.Join(dest, fi.Name())); err != nil {
			return errors.Wrapf(err, errors.ErrorTypeDestinationUnwritable, "cannot move %s into %s", fi.Name(), dest)
		}
	}
	return Discard(fs, staged)
}

// Discard removes a staging directory or file.
func Discard(fs afero.Fs, path string) error {
	if err := fs.RemoveAll(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, errors.ErrorTypeInternal, "cannot remove %s", path)
	}
	return nil
}
