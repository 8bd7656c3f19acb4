package columnar

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/ajitpratap0/gridio/pkg/codec"
	"github.com/ajitpratap0/gridio/pkg/compression"
	"github.com/ajitpratap0/gridio/pkg/errors"
	"github.com/ajitpratap0/gridio/pkg/network"
	"github.com/ajitpratap0/gridio/pkg/policy"
)

var start = time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)

func staticFrame(t *testing.T) *codec.Frame {
	tbl := network.NewTable(network.NameIndex("gen0", "gen1", "gen2"),
		network.NewFloat("p_nom", []float64{100.5, math.NaN(), math.Inf(1)}),
		network.NewInt("build_year", []int64{2020, 2025, 2030}),
		network.NewBool("committable", []bool{true, false, true}),
		network.NewString("bus", []string{"b0", "", "b2"}),
		network.NewTime("commissioned", []time.Time{start, {}, start.Add(time.Nanosecond)}),
		network.NewGeometry("geometry", []geom.T{geom.NewPointFlat(geom.XY, []float64{1, 2}), nil, nil}),
	)
	f, err := codec.EncodeTable(codec.StaticKey("Generator"), tbl, nil)
	require.NoError(t, err)
	return f
}

func roundTrip(t *testing.T, f *codec.Frame, config *WriterConfig) *codec.Frame {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, f, config))
	back, err := ReadFrame(buf.Bytes(), config.Format)
	require.NoError(t, err)
	return back
}

func assertSameTable(t *testing.T, want, got *codec.Frame) {
	assert.Equal(t, want.Descriptor(), got.Descriptor())
	a, err := codec.DecodeTable(want)
	require.NoError(t, err)
	b, err := codec.DecodeTable(got)
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}

func TestRoundTripAllAlgorithms(t *testing.T) {
	for _, format := range []Format{Arrow, Parquet} {
		for _, alg := range compression.Algorithms {
			t.Run(string(format)+"/"+string(alg), func(t *testing.T) {
				f := staticFrame(t)
				back := roundTrip(t, f, &WriterConfig{Format: format, Compression: alg, Level: compression.Better})
				assertSameTable(t, f, back)
			})
		}
	}
}

func TestRoundTripMultiIndexAndEmpty(t *testing.T) {
	ix := network.NewIndex(
		network.NewInt(network.PeriodLevel, []int64{2020, 2020, 2030, 2030}),
		network.NewTime(network.TimestepLevel, network.HourlyRange(start, 4)),
	)
	for _, format := range []Format{Arrow, Parquet} {
		f, err := codec.EncodeTable(codec.DynamicKey("Load", "p_set"), network.NewTable(ix), nil)
		require.NoError(t, err)
		back := roundTrip(t, f, &WriterConfig{Format: format})
		assertSameTable(t, f, back)

		f, err = codec.EncodeTable(codec.StaticKey("Bus"), network.NewTable(network.NameIndex(), network.NewFloat("v_nom", []float64{})), nil)
		require.NoError(t, err)
		back = roundTrip(t, f, &WriterConfig{Format: format})
		assert.Equal(t, 0, back.Len())
		assert.Equal(t, f.Descriptor(), back.Descriptor())
	}
}

func TestFloat32Storage(t *testing.T) {
	tbl := network.NewTable(network.NameIndex("a", "b"), network.NewFloat("v", []float64{1.0 / 3, 2.5}))
	f, err := codec.EncodeTable("t", tbl, &policy.Policy{Float32: true})
	require.NoError(t, err)

	for _, format := range []Format{Arrow, Parquet} {
		back := roundTrip(t, f, &WriterConfig{Format: format})
		fd := back.Field("v")
		require.NotNil(t, fd)
		assert.True(t, fd.Float32)
		assert.Equal(t, float64(float32(1.0/3)), fd.Floats()[0])
		assert.Equal(t, 2.5, fd.Floats()[1])
	}
}

func TestReadForeignArrowFile(t *testing.T) {
	mem := memory.NewGoAllocator()
	sc := arrow.NewSchema([]arrow.Field{
		{Name: "name", Type: arrow.BinaryTypes.String},
		{Name: "v_nom", Type: arrow.PrimitiveTypes.Float64},
	}, nil)
	b := array.NewRecordBuilder(mem, sc)
	defer b.Release()
	b.Field(0).(*array.StringBuilder).AppendValues([]string{"bus0", "bus1"}, nil)
	b.Field(1).(*array.Float64Builder).AppendValues([]float64{110, 380}, nil)
	rec := b.NewRecord()
	defer rec.Release()

	var buf bytes.Buffer
	fw, err := ipc.NewFileWriter(&buf, ipc.WithSchema(sc))
	require.NoError(t, err)
	require.NoError(t, fw.Write(rec))
	require.NoError(t, fw.Close())

	f, err := ReadFrame(buf.Bytes(), Arrow)
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, f.Descriptor().IndexNames())
	assert.Equal(t, []float64{110, 380}, f.Field("v_nom").Floats())
}

func TestReadGarbage(t *testing.T) {
	for _, format := range []Format{Arrow, Parquet} {
		_, err := ReadFrame([]byte("not a columnar file"), format)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeSourceUnreadable))
	}
	_, err := ReadFrame(nil, Format("orc"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
