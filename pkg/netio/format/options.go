package format

import (
	"runtime"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/ajitpratap0/gridio/pkg/compression"
	"github.com/ajitpratap0/gridio/pkg/errors"
	"github.com/ajitpratap0/gridio/pkg/formats/dsv"
	"github.com/ajitpratap0/gridio/pkg/policy"
	"github.com/ajitpratap0/gridio/pkg/schema"
)

// Options configures one export or import call. The zero value of every
// field selects the format default.
type Options struct {
	// QuoteChar quotes CSV cells; the same character must be used to import
	QuoteChar rune
	// Policy decides float width, quantization and compression on export
	Policy *policy.Policy
	// Fs is the filesystem artifacts live on, the OS filesystem when nil
	Fs afero.Fs
	// Logger receives progress logs, the global logger when nil
	Logger *zap.Logger
	// Workers bounds per-table fan-out, runtime.NumCPU() when zero
	Workers int
	// Registry is the component schema, the built-in one when nil
	Registry *schema.Registry
	// Report, when set, receives what the export did to stored values
	Report func(policy.Report)
}

// Defaults returns the explicit defaults of f.
func Defaults(f Format) Options {
	o := Options{QuoteChar: dsv.Default.Quote, Workers: runtime.NumCPU()}
	switch f {
	case NetCDF:
		o.Policy = policy.Lossless(compression.Zlib, 4)
	case HDF5:
		o.Policy = policy.Lossless(compression.Zstd, 3)
	default:
		o.Policy = policy.Exact()
	}
	return o
}

// Resolve returns o with every unset field replaced by the default of f.
func (o Options) Resolve(f Format) Options {
	d := Defaults(f)
	if o.QuoteChar == 0 {
		o.QuoteChar = d.QuoteChar
	}
	if o.Policy == nil {
		o.Policy = d.Policy
	}
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
	if o.Workers <= 0 {
		o.Workers = d.Workers
	}
	if o.Registry == nil {
		o.Registry = schema.Default()
	}
	return o
}

// Validate rejects options f cannot honour.
func (o Options) Validate(f Format) error {
	if err := o.Policy.Validate(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid precision policy")
	}
	if f == CSV {
		if err := o.Dialect().Validate(); err != nil {
			return err
		}
	}
	if f == Excel && o.Policy.Algorithm() != compression.None {
		return errors.New(errors.ErrorTypeConfig, "excel workbooks do not take a compression filter")
	}
	return nil
}

// Dialect returns the delimited text dialect of o.
func (o Options) Dialect() dsv.Dialect {
	return dsv.WithQuote(o.QuoteChar)
}
