// Package gridio persists power system network models: component tables,
// snapshot and investment period indices with their weightings, metadata
// and shapes.
//
// # Formats
//
//   - csv: a folder of delimited text files, one per table
//   - netcdf: a single-file archive of Arrow IPC variables
//   - hdf5: a single-file archive of Parquet variables
//   - excel: an xlsx workbook with one sheet per table
//
// Every format reads back the network it was given. The netcdf and hdf5
// formats additionally take a precision policy: float32 storage, a
// compression filter and quantization to a number of significant decimals.
//
// # Usage
//
//	import (
//	    "github.com/ajitpratap0/gridio/pkg/compression"
//	    "github.com/ajitpratap0/gridio/pkg/netio"
//	    "github.com/ajitpratap0/gridio/pkg/netio/format"
//	    "github.com/ajitpratap0/gridio/pkg/policy"
//	)
//
//	err := netio.ExportToHDF5(ctx, n, "model.h5", format.Options{
//	    Policy: &policy.Policy{Compression: &policy.Compression{
//	        Algorithm:             compression.Zstd,
//	        Level:                 5,
//	        LeastSignificantDigit: policy.Digits(3),
//	    }},
//	})
//	back, err := netio.Open(ctx, "model.h5", format.Options{})
//
// Imports accept http(s), s3 and gs URLs as well; see package fetch.
//
// # Package Organization
//
//   - pkg/network: the in-memory model
//   - pkg/schema: component classes and their attributes
//   - pkg/codec: tables, indices and geometries as format-neutral frames
//   - pkg/assembler: splitting a network into frames and back
//   - pkg/policy, pkg/compression: precision and compression
//   - pkg/netio: the format adapters and the public operations
//   - pkg/fetch: remote retrieval and the download cache
//   - pkg/config, pkg/logger, pkg/metrics, pkg/observability: ambient services
//   - cmd/gridio: the command line tool
//
// # Command Line
//
//	gridio convert https://example.org/scigrid.zip scigrid.nc --compression zstd:5:3
//	gridio inspect scigrid.nc
package gridio
