package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/gridio/pkg/compression"
	"github.com/ajitpratap0/gridio/pkg/errors"
	"github.com/ajitpratap0/gridio/pkg/netio/format"
)

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader(afero.NewMemMapFs()).Load("")
	require.NoError(t, err)

	want := Default()
	assert.Equal(t, want.Logging.Level, cfg.Logging.Level)
	assert.Equal(t, want.Workers, cfg.Workers)
	assert.Equal(t, want.Fetch.HTTP.RequestTimeout, cfg.Fetch.HTTP.RequestTimeout)
	assert.Equal(t, want.Fetch.HTTP.TLSMinVersion, cfg.Fetch.HTTP.TLSMinVersion)
	assert.Equal(t, 1.0, cfg.Tracing.SamplingRate)
	assert.Equal(t, FormatConfig{}, cfg.HDF5)
}

func TestLoadFileWithSubstitution(t *testing.T) {
	fs := afero.NewMemMapFs()
	t.Setenv("GRIDIO_TEST_CACHE", "/var/cache/networks")
	writeFile(t, fs, "/etc/gridio.yaml", `
logging:
  level: debug
workers: 3
fetch:
  cache_dir: ${GRIDIO_TEST_CACHE}
  http:
    request_timeout: 2m
  s3:
    region: ${GRIDIO_TEST_REGION:-eu-west-1}
csv:
  quote_char: "'"
hdf5:
  compression: "lz4:7:2"
  float32: true
`)

	cfg, err := NewLoader(fs).Load("/etc/gridio.yaml")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "/var/cache/networks", cfg.Fetch.CacheDir)
	assert.Equal(t, "eu-west-1", cfg.Fetch.S3.Region)
	assert.Equal(t, 2*time.Minute, cfg.Fetch.HTTP.RequestTimeout)
	// untouched keys keep their defaults
	assert.Equal(t, Default().Fetch.HTTP.MaxRedirects, cfg.Fetch.HTTP.MaxRedirects)
	assert.Equal(t, "'", cfg.CSV.QuoteChar)
	assert.Equal(t, FormatConfig{Float32: true, Compression: "lz4:7:2"}, cfg.HDF5)
}

func TestLoadJSON(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/gridio.json", `{"workers": 2, "netcdf": {"compression": "none"}}`)
	cfg, err := NewLoader(fs).Load("/gridio.json")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, "none", cfg.NetCDF.Compression)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/gridio.yaml", "workers: 3\nlogging:\n  level: debug\n")
	t.Setenv("GRIDIO_WORKERS", "5")
	t.Setenv("GRIDIO_LOGGING_LEVEL", "warn")
	t.Setenv("GRIDIO_HDF5_COMPRESSION", "zstd:9")

	cfg, err := NewLoader(fs).Load("/gridio.yaml")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Workers)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "zstd:9", cfg.HDF5.Compression)
}

func TestFlagOverridesEnvironment(t *testing.T) {
	t.Setenv("GRIDIO_LOGGING_LEVEL", "warn")
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")

	l := NewLoader(afero.NewMemMapFs())
	require.NoError(t, l.BindFlag("logging.level", flags.Lookup("log-level")))

	// an unset flag does not win over the environment
	cfg, err := l.Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)

	require.NoError(t, flags.Parse([]string{"--log-level", "error"}))
	cfg, err = l.Load("")
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Logging.Level)

	assert.Error(t, l.BindFlag("workers", flags.Lookup("missing")))
}

func TestLoadErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/broken.yaml", "workers: [\n")
	writeFile(t, fs, "/invalid.yaml", "excel:\n  compression: zlib\n")

	cases := []string{"/missing.yaml", "/broken.yaml", "/invalid.yaml"}
	for _, path := range cases {
		_, err := NewLoader(fs).Load(path)
		require.Error(t, err, path)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig), path)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"log level":      func(c *Config) { c.Logging.Level = "loud" },
		"log encoding":   func(c *Config) { c.Logging.Encoding = "xml" },
		"exporter":       func(c *Config) { c.Tracing.Exporter = "jaeger" },
		"sampling":       func(c *Config) { c.Tracing.SamplingRate = 1.5 },
		"workers":        func(c *Config) { c.Workers = -1 },
		"redirects":      func(c *Config) { c.Fetch.HTTP.MaxRedirects = -1 },
		"quote length":   func(c *Config) { c.CSV.QuoteChar = "''" },
		"quote is comma": func(c *Config) { c.CSV.QuoteChar = "," },
		"algorithm":      func(c *Config) { c.NetCDF.Compression = "rar" },
		"digits":         func(c *Config) { c.HDF5.Compression = "zstd:3:-1" },
		"excel filter":   func(c *Config) { c.Excel.Compression = "gzip" },
	}
	require.NoError(t, Default().Validate())
	for name, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		err := cfg.Validate()
		require.Error(t, err, name)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig), name)
	}
}

func TestOptions(t *testing.T) {
	cfg := Default()
	cfg.Workers = 2

	opts, err := cfg.Options(format.NetCDF)
	require.NoError(t, err)
	assert.Nil(t, opts.Policy)
	assert.Equal(t, 2, opts.Workers)
	assert.Equal(t, rune(0), opts.QuoteChar)

	cfg.NetCDF.Float32 = true
	opts, err = cfg.Options(format.NetCDF)
	require.NoError(t, err)
	require.NotNil(t, opts.Policy)
	assert.True(t, opts.Policy.Float32)
	// the format's own filter is kept
	assert.Equal(t, compression.Zlib, opts.Policy.Algorithm())
	assert.False(t, format.Defaults(format.NetCDF).Policy.Float32)

	cfg.HDF5.Compression = "none"
	opts, err = cfg.Options(format.HDF5)
	require.NoError(t, err)
	require.NotNil(t, opts.Policy)
	assert.Equal(t, compression.None, opts.Policy.Algorithm())

	cfg.SetSection(format.CSV, FormatConfig{QuoteChar: "§"})
	opts, err = cfg.Options(format.CSV)
	require.NoError(t, err)
	assert.Equal(t, '§', opts.QuoteChar)
	assert.Equal(t, "§", cfg.Section(format.CSV).QuoteChar)
}

func TestSaveAndReload(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := Default()
	cfg.Workers = 7
	cfg.Fetch.CacheDir = "/cache"
	cfg.Fetch.HTTP.RequestTimeout = 90 * time.Second
	cfg.Excel.Float32 = true
	require.NoError(t, Save(fs, "/out/gridio.yaml", cfg))

	back, err := NewLoader(fs).Load("/out/gridio.yaml")
	require.NoError(t, err)
	assert.Equal(t, 7, back.Workers)
	assert.Equal(t, cfg.Fetch, back.Fetch)
	assert.Equal(t, cfg.Tracing, back.Tracing)
	assert.Equal(t, cfg.Logging.Level, back.Logging.Level)
	assert.Equal(t, FormatConfig{Float32: true}, back.Excel)
	assert.Equal(t, FormatConfig{}, back.CSV)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("GRIDIO_TEST_A", "x")
	assert.Equal(t, "x-y-", substituteEnvVars("${GRIDIO_TEST_A}-${GRIDIO_TEST_B:-y}-${GRIDIO_TEST_B}"))
	assert.Equal(t, "open ${end", substituteEnvVars("open ${end"))
}
