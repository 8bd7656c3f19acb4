package netio

import (
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"

	"github.com/ajitpratap0/gridio/internal/fsutil"
	"github.com/ajitpratap0/gridio/pkg/errors"
	"github.com/ajitpratap0/gridio/pkg/netio/archive"
	"github.com/ajitpratap0/gridio/pkg/netio/format"
)

// workbookEntry is present in every Office Open XML package.
const workbookEntry = "[Content_Types].xml"

// Sniff determines the format of the artifact at path on fs (the OS
// filesystem when nil).
func Sniff(fs afero.Fs, path string) (format.Format, error) {
	fs = fsutil.OrOS(fs)
	info, err := fs.Stat(path)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrorTypeSourceUnreadable, "cannot access %s", path)
	}
	if info.IsDir() {
		return format.CSV, nil
	}
	if filepath.Ext(path) != "" {
		if f, ok := format.FromExtension(path); ok && f.SingleFile() {
			return f, nil
		}
	}
	return sniffContent(fs, path, info.Size())
}

func sniffContent(fs afero.Fs, path string, size int64) (format.Format, error) {
	file, err := fs.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrorTypeSourceUnreadable, "cannot open %s", path)
	}
	defer file.Close()

	zr, err := zip.NewReader(file, size)
	if err != nil {
		return "", errors.Newf(errors.ErrorTypeSourceUnreadable, "cannot determine the format of %s", path)
	}
	for _, zf := range zr.File {
		switch {
		case zf.Name == archive.AttrsEntry:
			attrs, err := archive.ReadAttrs(fs, path)
			if err != nil {
				return "", err
			}
			return attrs.Variant, nil
		case strings.EqualFold(zf.Name, workbookEntry):
			return format.Excel, nil
		}
	}
	return "", errors.Newf(errors.ErrorTypeSourceUnreadable, "%s is a zip file but neither an archive nor a workbook", path)
}
