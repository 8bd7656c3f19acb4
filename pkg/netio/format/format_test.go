package format

import (
	"context"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ajitpratap0/gridio/pkg/compression"
	"github.com/ajitpratap0/gridio/pkg/errors"
	"github.com/ajitpratap0/gridio/pkg/metrics"
	"github.com/ajitpratap0/gridio/pkg/policy"
)

func TestParse(t *testing.T) {
	for in, want := range map[string]Format{
		"csv": CSV, "folder": CSV, "NetCDF": NetCDF, ".nc": NetCDF,
		"h5": HDF5, "hdf5": HDF5, " xlsx ": Excel, "excel": Excel,
	} {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := Parse("parquet")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestFromExtension(t *testing.T) {
	cases := map[string]Format{
		"out/model":      CSV,
		"out/model/":     CSV,
		"model.nc":       NetCDF,
		"MODEL.H5":       HDF5,
		"a/b/model.hdf5": HDF5,
		"model.xlsx":     Excel,
	}
	for path, want := range cases {
		got, ok := FromExtension(path)
		assert.True(t, ok, path)
		assert.Equal(t, want, got, path)
	}
	_, ok := FromExtension("model.zip")
	assert.False(t, ok)

	for _, f := range Formats {
		assert.Equal(t, f != CSV, f.SingleFile())
		if f.SingleFile() {
			got, ok := FromExtension("x" + f.Extension())
			assert.True(t, ok)
			assert.Equal(t, f, got)
		}
	}
}

func TestResolveFillsDefaults(t *testing.T) {
	o := Options{}.Resolve(NetCDF)
	assert.Equal(t, '"', o.QuoteChar)
	assert.Equal(t, compression.Zlib, o.Policy.Algorithm())
	assert.NotNil(t, o.Fs)
	assert.NotNil(t, o.Registry)
	assert.Positive(t, o.Workers)

	assert.Equal(t, compression.Zstd, Options{}.Resolve(HDF5).Policy.Algorithm())
	assert.Equal(t, compression.None, Options{}.Resolve(CSV).Policy.Algorithm())
	assert.Equal(t, compression.None, Options{}.Resolve(Excel).Policy.Algorithm())

	custom := Options{QuoteChar: '\'', Workers: 2, Policy: policy.Lossless(compression.LZ4, 1)}.Resolve(NetCDF)
	assert.Equal(t, '\'', custom.QuoteChar)
	assert.Equal(t, 2, custom.Workers)
	assert.Equal(t, compression.LZ4, custom.Policy.Algorithm())
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Options{}.Resolve(CSV).Validate(CSV))
	assert.NoError(t, Options{Policy: policy.Lossless(compression.Gzip, 9)}.Resolve(CSV).Validate(CSV))

	err := Options{QuoteChar: ','}.Resolve(CSV).Validate(CSV)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig), "got %v", err)

	err = Options{Policy: policy.Lossless(compression.Zstd, 3)}.Resolve(Excel).Validate(Excel)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	err = Options{Policy: &policy.Policy{Compression: &policy.Compression{Algorithm: compression.Zlib, Level: 12}}}.Resolve(NetCDF).Validate(NetCDF)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	// the quote character only matters to csv
	assert.NoError(t, Options{QuoteChar: ','}.Resolve(HDF5).Validate(HDF5))
}

func TestObserveLogsAndCounts(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	opts := Options{Logger: zap.New(core)}

	ok := metrics.Operations.WithLabelValues("hdf5", metrics.OpImport, "success")
	failed := metrics.Operations.WithLabelValues("hdf5", metrics.OpImport, string(errors.ErrorTypeSourceUnreadable))
	tables := metrics.Tables.WithLabelValues("hdf5", metrics.OpImport)
	okBefore, failedBefore, tablesBefore := promtest.ToFloat64(ok), promtest.ToFloat64(failed), promtest.ToFloat64(tables)

	err := Observe(context.Background(), opts, HDF5, metrics.OpImport, "model.h5", func(_ context.Context, log *zap.Logger) (int, error) {
		log.Debug("inside")
		return 4, nil
	})
	require.NoError(t, err)

	broken := errors.New(errors.ErrorTypeSourceUnreadable, "truncated")
	err = Observe(context.Background(), opts, HDF5, metrics.OpImport, "model.h5", func(context.Context, *zap.Logger) (int, error) {
		return 0, broken
	})
	assert.Equal(t, broken, err)

	assert.Equal(t, okBefore+1, promtest.ToFloat64(ok))
	assert.Equal(t, failedBefore+1, promtest.ToFloat64(failed))
	assert.Equal(t, tablesBefore+4, promtest.ToFloat64(tables))

	finished := logs.FilterMessage("import finished").All()
	require.Len(t, finished, 1)
	assert.EqualValues(t, 4, finished[0].ContextMap()["tables"])
	assert.Len(t, logs.FilterMessage("import failed").All(), 1)
	assert.Len(t, logs.FilterMessage("inside").All(), 1)
}

func TestDeclare(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	var got []policy.Report
	opts := Options{Report: func(r policy.Report) { got = append(got, r) }}

	Declare(opts, zap.New(core), policy.Exact().Report(3))
	assert.Equal(t, 0, logs.Len())

	p := &policy.Policy{Float32: true, Compression: &policy.Compression{Algorithm: compression.Zlib, LeastSignificantDigit: policy.Digits(2)}}
	Declare(opts, zap.New(core), p.Report(3))
	assert.Equal(t, 1, logs.Len())
	require.Len(t, got, 2)
	assert.False(t, got[0].Lossy)
	assert.True(t, got[1].Lossy)
	assert.Equal(t, 3, got[1].Columns)
}
