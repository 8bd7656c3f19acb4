package fetch

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"

	"github.com/ajitpratap0/gridio/pkg/compression"
	"github.com/ajitpratap0/gridio/pkg/errors"
)

// BundleKind is the container type of a remote bundle.
type BundleKind int

const (
	// NotBundle is a plain file
	NotBundle BundleKind = iota
	// Zip is a zip archive
	Zip
	// Tar is a tarball, possibly compressed
	Tar
)

var tarSuffixes = map[string]compression.Algorithm{
	".tar":     compression.None,
	".tgz":     compression.Gzip,
	".tar.gz":  compression.Gzip,
	".tar.zst": compression.Zstd,
	".tar.lz4": compression.LZ4,
}

// Bundle reports the container type of the file name and its name without
// the bundle suffix.
func Bundle(name string) (BundleKind, compression.Algorithm, string) {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".zip") {
		return Zip, compression.None, name[:len(name)-len(".zip")]
	}
	for suffix, alg := range tarSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return Tar, alg, name[:len(name)-len(suffix)]
		}
	}
	return NotBundle, compression.None, name
}

// extract unpacks the bundle file src into the directory dest. Entries that
// would land outside dest, links and device files are rejected.
func extract(fs afero.Fs, src, dest string, kind BundleKind, alg compression.Algorithm) error {
	data, err := afero.ReadFile(fs, src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeSourceUnreadable, "cannot read bundle %s", src)
	}
	if err := fs.MkdirAll(dest, 0o755); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeDestinationUnwritable, "cannot create %s", dest)
	}
	switch kind {
	case Zip:
		return extractZip(fs, data, dest)
	case Tar:
		return extractTar(fs, data, dest, alg)
	default:
		return errors.Newf(errors.ErrorTypeInternal, "%s is not a bundle", src)
	}
}

// target resolves an entry name inside dest.
func target(dest, name string) (string, error) {
	slashed := strings.ReplaceAll(name, `\`, "/")
	if path.IsAbs(slashed) || filepath.VolumeName(name) != "" {
		return "", errors.Newf(errors.ErrorTypeSourceUnreadable, "bundle entry %q is an absolute path", name)
	}
	for _, part := range strings.Split(slashed, "/") {
		if part == ".." {
			return "", errors.Newf(errors.ErrorTypeSourceUnreadable, "bundle entry %q escapes the bundle", name)
		}
	}
	return filepath.Join(dest, filepath.FromSlash(path.Clean(slashed))), nil
}

func writeEntry(fs afero.Fs, dst string, r io.Reader) error {
	if err := fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeDestinationUnwritable, "cannot create %s", filepath.Dir(dst))
	}
	f, err := fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeDestinationUnwritable, "cannot create %s", dst)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, errors.ErrorTypeSourceUnreadable, "cannot unpack %s", dst)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeDestinationUnwritable, "cannot close %s", dst)
	}
	return nil
}

func extractZip(fs afero.Fs, data []byte, dest string) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSourceUnreadable, "bundle is not a zip archive")
	}
	for _, zf := range zr.File {
		dst, err := target(dest, zf.Name)
		if err != nil {
			return err
		}
		mode := zf.Mode()
		switch {
		case mode.IsDir():
			if err := fs.MkdirAll(dst, 0o755); err != nil {
				return errors.Wrapf(err, errors.ErrorTypeDestinationUnwritable, "cannot create %s", dst)
			}
			continue
		case !mode.IsRegular():
			return errors.Newf(errors.ErrorTypeSourceUnreadable, "bundle entry %q is not a regular file", zf.Name)
		}
		rc, err := zf.Open()
		if err != nil {
			return errors.Wrapf(err, errors.ErrorTypeSourceUnreadable, "cannot open bundle entry %s", zf.Name)
		}
		err = writeEntry(fs, dst, rc)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func extractTar(fs afero.Fs, data []byte, dest string, alg compression.Algorithm) error {
	in, err := compression.NewReader(bytes.NewReader(data), alg)
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeSourceUnreadable, "cannot decompress %s bundle", alg)
	}
	defer in.Close()

	tr := tar.NewReader(in)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeSourceUnreadable, "bundle is not a valid tarball")
		}
		dst, err := target(dest, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := fs.MkdirAll(dst, 0o755); err != nil {
				return errors.Wrapf(err, errors.ErrorTypeDestinationUnwritable, "cannot create %s", dst)
			}
		case tar.TypeReg:
			if err := writeEntry(fs, dst, tr); err != nil {
				return err
			}
		case tar.TypeXGlobalHeader, tar.TypeXHeader:
		default:
			return errors.Newf(errors.ErrorTypeSourceUnreadable, "bundle entry %q is not a regular file", hdr.Name)
		}
	}
}
