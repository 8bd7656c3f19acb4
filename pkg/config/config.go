// Package config holds the gridio configuration: logging, tracing, remote
// retrieval and the per-format export defaults the CLI applies.
//
// The configuration is organized into sections:
//   - Logging: level and encoding of the zap logger
//   - Tracing: OpenTelemetry exporter settings
//   - Fetch: cache directory and remote source clients
//   - CSV, NetCDF, HDF5, Excel: quote character and precision policy per format
//
// Example usage:
//
//	cfg, err := config.Load("gridio.yaml", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	opts, err := cfg.Options(format.HDF5)
package config

import (
	"runtime"
	"unicode/utf8"

	"go.uber.org/zap/zapcore"

	"github.com/ajitpratap0/gridio/pkg/errors"
	"github.com/ajitpratap0/gridio/pkg/fetch"
	"github.com/ajitpratap0/gridio/pkg/logger"
	"github.com/ajitpratap0/gridio/pkg/netio/format"
	"github.com/ajitpratap0/gridio/pkg/policy"
)

// Config is the complete gridio configuration.
type Config struct {
	// Logging configures the global logger
	Logging logger.Config `yaml:"logging" json:"logging" mapstructure:"logging"`

	// Tracing configures span export
	Tracing TracingConfig `yaml:"tracing" json:"tracing" mapstructure:"tracing"`

	// Workers bounds per-table fan-out; 0 means one worker per CPU
	Workers int `yaml:"workers" json:"workers" mapstructure:"workers"`

	// Fetch configures remote sources and the download cache
	Fetch fetch.Config `yaml:"fetch" json:"fetch" mapstructure:"fetch"`

	// Per-format export settings
	CSV    FormatConfig `yaml:"csv" json:"csv" mapstructure:"csv"`
	NetCDF FormatConfig `yaml:"netcdf" json:"netcdf" mapstructure:"netcdf"`
	HDF5   FormatConfig `yaml:"hdf5" json:"hdf5" mapstructure:"hdf5"`
	Excel  FormatConfig `yaml:"excel" json:"excel" mapstructure:"excel"`
}

// TracingConfig controls the OpenTelemetry exporter.
type TracingConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	// Exporter is "stdout" or "none"
	Exporter     string  `yaml:"exporter" json:"exporter" mapstructure:"exporter"`
	SamplingRate float64 `yaml:"sampling_rate" json:"sampling_rate" mapstructure:"sampling_rate"`
}

// FormatConfig holds the export settings of one format. Empty fields keep
// the format default.
type FormatConfig struct {
	// QuoteChar is a single character quoting CSV cells
	QuoteChar string `yaml:"quote_char,omitempty" json:"quote_char,omitempty" mapstructure:"quote_char"`
	// Float32 stores float columns at single precision
	Float32 bool `yaml:"float32,omitempty" json:"float32,omitempty" mapstructure:"float32"`
	// Compression is "none" or algorithm[:level[:digits]]
	Compression string `yaml:"compression,omitempty" json:"compression,omitempty" mapstructure:"compression"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Logging: logger.Config{
			Level:    "info",
			Encoding: "console",
		},
		Tracing: TracingConfig{
			Exporter:     "stdout",
			SamplingRate: 1.0,
		},
		Workers: runtime.NumCPU(),
		Fetch:   fetch.DefaultConfig(),
	}
}

// Section returns the settings of f.
func (c *Config) Section(f format.Format) FormatConfig {
	switch f {
	case format.NetCDF:
		return c.NetCDF
	case format.HDF5:
		return c.HDF5
	case format.Excel:
		return c.Excel
	default:
		return c.CSV
	}
}

// SetSection replaces the settings of f.
func (c *Config) SetSection(f format.Format, s FormatConfig) {
	switch f {
	case format.NetCDF:
		c.NetCDF = s
	case format.HDF5:
		c.HDF5 = s
	case format.Excel:
		c.Excel = s
	default:
		c.CSV = s
	}
}

// Quote returns the quote character of s, 0 when unset.
func (s FormatConfig) Quote() (rune, error) {
	if s.QuoteChar == "" {
		return 0, nil
	}
	if utf8.RuneCountInString(s.QuoteChar) != 1 {
		return 0, errors.Newf(errors.ErrorTypeConfig, "quote character %q must be a single character", s.QuoteChar)
	}
	r, _ := utf8.DecodeRuneInString(s.QuoteChar)
	return r, nil
}

// Policy returns the precision policy of s for f. It is nil when s leaves
// everything at the format default.
func (s FormatConfig) Policy(f format.Format) (*policy.Policy, error) {
	if s.Compression == "" {
		if !s.Float32 {
			return nil, nil
		}
		p := *format.Defaults(f).Policy
		p.Float32 = true
		return &p, nil
	}
	c, err := policy.ParseCompression(s.Compression)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeConfig, "%s compression", f)
	}
	return &policy.Policy{Float32: s.Float32, Compression: c}, nil
}

// Options converts the section of f into adapter options.
func (c *Config) Options(f format.Format) (format.Options, error) {
	s := c.Section(f)
	q, err := s.Quote()
	if err != nil {
		return format.Options{}, err
	}
	p, err := s.Policy(f)
	if err != nil {
		return format.Options{}, err
	}
	return format.Options{QuoteChar: q, Policy: p, Workers: c.Workers}, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.Logging.Level != "" {
		if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
			return errors.Wrapf(err, errors.ErrorTypeConfig, "invalid log level %q", c.Logging.Level)
		}
	}
	switch c.Logging.Encoding {
	case "", "json", "console":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "invalid log encoding %q", c.Logging.Encoding)
	}

	switch c.Tracing.Exporter {
	case "", "stdout", "none":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported trace exporter %q", c.Tracing.Exporter)
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return errors.Newf(errors.ErrorTypeConfig, "sampling rate %v is outside [0, 1]", c.Tracing.SamplingRate)
	}

	if c.Workers < 0 {
		return errors.New(errors.ErrorTypeConfig, "workers must not be negative")
	}
	if c.Fetch.HTTP.MaxRedirects < 0 {
		return errors.New(errors.ErrorTypeConfig, "fetch.http.max_redirects must not be negative")
	}
	if c.Fetch.S3.Concurrency < 0 || c.Fetch.S3.PartSize < 0 {
		return errors.New(errors.ErrorTypeConfig, "fetch.s3 part size and concurrency must not be negative")
	}

	for _, f := range format.Formats {
		opts, err := c.Options(f)
		if err != nil {
			return errors.Wrapf(err, errors.ErrorTypeConfig, "%s section", f)
		}
		if err := opts.Resolve(f).Validate(f); err != nil {
			return errors.Wrapf(err, errors.ErrorTypeConfig, "%s section", f)
		}
	}
	return nil
}
