// Package netio is the public surface of gridio: export a network to any
// supported format and import it back, by explicit format or by sniffing
// the artifact.
//
//	err := netio.ExportToNetCDF(ctx, n, "model.nc", format.Options{})
//	back, err := netio.Open(ctx, "model.nc", format.Options{})
//
// Every operation accepts a string path or a *url.URL. Imports also accept
// http(s), s3 and gs URLs; the source is downloaded into the fetch cache
// first and bundles (.zip, .tar, .tar.gz, ...) are unpacked.
package netio

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/gridio/pkg/errors"
	"github.com/ajitpratap0/gridio/pkg/fetch"
	"github.com/ajitpratap0/gridio/pkg/logger"
	"github.com/ajitpratap0/gridio/pkg/netio/format"
	"github.com/ajitpratap0/gridio/pkg/network"
)

var (
	fetcherMu sync.Mutex
	fetcher   *fetch.Fetcher
)

// UseFetcher sets the fetcher remote sources are retrieved with. Without it
// a fetcher with the default configuration is created on first use.
func UseFetcher(f *fetch.Fetcher) {
	fetcherMu.Lock()
	defer fetcherMu.Unlock()
	fetcher = f
}

func currentFetcher(log *zap.Logger) *fetch.Fetcher {
	fetcherMu.Lock()
	defer fetcherMu.Unlock()
	if fetcher == nil {
		fetcher = fetch.New(fetch.DefaultConfig(), nil, log)
	}
	return fetcher
}

// ExportToCSVFolder writes n as a directory of CSV files.
func ExportToCSVFolder[P Path](ctx context.Context, n *network.Network, dest P, opts format.Options) error {
	return exportAs(ctx, n, dest, format.CSV, opts)
}

// ImportFromCSVFolder reads a directory of CSV files. src may be a remote
// bundle.
func ImportFromCSVFolder[P Path](ctx context.Context, src P, opts format.Options) (*network.Network, error) {
	return importAs(ctx, src, format.CSV, opts)
}

// ExportToNetCDF writes n as a netcdf archive.
func ExportToNetCDF[P Path](ctx context.Context, n *network.Network, dest P, opts format.Options) error {
	return exportAs(ctx, n, dest, format.NetCDF, opts)
}

// ImportFromNetCDF reads a netcdf archive.
func ImportFromNetCDF[P Path](ctx context.Context, src P, opts format.Options) (*network.Network, error) {
	return importAs(ctx, src, format.NetCDF, opts)
}

// ExportToHDF5 writes n as an hdf5 archive.
func ExportToHDF5[P Path](ctx context.Context, n *network.Network, dest P, opts format.Options) error {
	return exportAs(ctx, n, dest, format.HDF5, opts)
}

// ImportFromHDF5 reads an hdf5 archive.
func ImportFromHDF5[P Path](ctx context.Context, src P, opts format.Options) (*network.Network, error) {
	return importAs(ctx, src, format.HDF5, opts)
}

// ExportToExcel writes n as a spreadsheet workbook.
func ExportToExcel[P Path](ctx context.Context, n *network.Network, dest P, opts format.Options) error {
	return exportAs(ctx, n, dest, format.Excel, opts)
}

// ImportFromExcel reads a spreadsheet workbook.
func ImportFromExcel[P Path](ctx context.Context, src P, opts format.Options) (*network.Network, error) {
	return importAs(ctx, src, format.Excel, opts)
}

// Export writes n in the format named by tag, or, when tag is empty, the
// format the extension of dest implies.
func Export[P Path](ctx context.Context, n *network.Network, dest P, tag string, opts format.Options) error {
	loc, err := locate(dest)
	if err != nil {
		return err
	}
	f, err := chooseFormat(loc, tag)
	if err != nil {
		return err
	}
	return export(ctx, n, loc, f, opts)
}

// Open imports src, picking the adapter from the artifact itself: a
// directory is a CSV folder, a known extension names its format, and a
// file without one is recognized by its content.
func Open[P Path](ctx context.Context, src P, opts format.Options) (*network.Network, error) {
	loc, err := locate(src)
	if err != nil {
		return nil, err
	}
	local, opts, err := retrieve(ctx, loc, opts)
	if err != nil {
		return nil, err
	}
	f, err := Sniff(opts.Fs, local)
	if err != nil {
		return nil, err
	}
	logger.Or(opts.Logger).Debug("detected format", zap.String("path", local), zap.Stringer("format", f))
	return read(ctx, local, f, opts)
}

func chooseFormat(loc location, tag string) (format.Format, error) {
	if tag != "" {
		return format.Parse(tag)
	}
	f, ok := format.FromExtension(loc.String())
	if !ok {
		return "", errors.Newf(errors.ErrorTypeConfig, "cannot tell the format of %s from its extension", loc)
	}
	return f, nil
}

func exportAs[P Path](ctx context.Context, n *network.Network, dest P, f format.Format, opts format.Options) error {
	loc, err := locate(dest)
	if err != nil {
		return err
	}
	return export(ctx, n, loc, f, opts)
}

func export(ctx context.Context, n *network.Network, loc location, f format.Format, opts format.Options) error {
	if loc.remote != nil {
		return errors.Newf(errors.ErrorTypeConfig, "cannot export to remote destination %s", loc)
	}
	a, err := Lookup(f)
	if err != nil {
		return err
	}
	return a.Export(ctx, n, loc.local, opts)
}

func importAs[P Path](ctx context.Context, src P, f format.Format, opts format.Options) (*network.Network, error) {
	loc, err := locate(src)
	if err != nil {
		return nil, err
	}
	local, opts, err := retrieve(ctx, loc, opts)
	if err != nil {
		return nil, err
	}
	return read(ctx, local, f, opts)
}

func read(ctx context.Context, local string, f format.Format, opts format.Options) (*network.Network, error) {
	a, err := Lookup(f)
	if err != nil {
		return nil, err
	}
	return a.Import(ctx, local, opts)
}

// retrieve returns the local path of loc, downloading remote sources. The
// returned options read from the filesystem the download landed on.
func retrieve(ctx context.Context, loc location, opts format.Options) (string, format.Options, error) {
	if loc.remote == nil {
		return loc.local, opts, nil
	}
	fe := currentFetcher(opts.Logger)
	local, err := fe.Fetch(ctx, loc.remote)
	if err != nil {
		return "", opts, err
	}
	opts.Fs = fe.Fs()
	return local, opts, nil
}
