// Package format holds what every network adapter shares: the closed set of
// formats, the options an export or import accepts, and the Adapter contract.
package format

import (
	"path/filepath"
	"strings"

	"github.com/ajitpratap0/gridio/pkg/errors"
)

// Format identifies a persisted artifact layout.
type Format string

const (
	// CSV is a directory of delimited text files
	CSV Format = "csv"
	// NetCDF is a single-file archive of Arrow IPC variables
	NetCDF Format = "netcdf"
	// HDF5 is a single-file archive of Parquet variables
	HDF5 Format = "hdf5"
	// Excel is a spreadsheet workbook
	Excel Format = "excel"
)

// Formats lists every format in a stable order.
var Formats = []Format{CSV, NetCDF, HDF5, Excel}

var extensions = map[string]Format{
	".nc":   NetCDF,
	".h5":   HDF5,
	".hdf5": HDF5,
	".xlsx": Excel,
}

var aliases = map[string]Format{
	"csv":    CSV,
	"folder": CSV,
	"netcdf": NetCDF,
	"nc":     NetCDF,
	"hdf5":   HDF5,
	"h5":     HDF5,
	"excel":  Excel,
	"xlsx":   Excel,
}

// Parse returns the format named s. Common extensions are accepted as aliases.
func Parse(s string) (Format, error) {
	f, ok := aliases[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))]
	if !ok {
		return "", errors.Newf(errors.ErrorTypeConfig, "unknown format %q", s)
	}
	return f, nil
}

// String returns the format tag.
func (f Format) String() string { return string(f) }

// Extension returns the canonical file extension, "" for directories.
func (f Format) Extension() string {
	switch f {
	case NetCDF:
		return ".nc"
	case HDF5:
		return ".h5"
	case Excel:
		return ".xlsx"
	default:
		return ""
	}
}

// SingleFile reports whether the artifact is one file rather than a directory.
func (f Format) SingleFile() bool {
	return f != CSV
}

// FromExtension picks a format by the extension of path. A path without an
// extension is a CSV directory.
func FromExtension(path string) (Format, bool) {
	ext := strings.ToLower(filepath.Ext(strings.TrimRight(path, `/\`)))
	if ext == "" {
		return CSV, true
	}
	f, ok := extensions[ext]
	return f, ok
}
