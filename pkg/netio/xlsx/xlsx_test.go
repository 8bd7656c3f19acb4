package xlsx

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ajitpratap0/gridio/pkg/compression"
	"github.com/ajitpratap0/gridio/pkg/errors"
	"github.com/ajitpratap0/gridio/pkg/meta"
	"github.com/ajitpratap0/gridio/pkg/netio/format"
	"github.com/ajitpratap0/gridio/pkg/network"
	"github.com/ajitpratap0/gridio/pkg/policy"
	"github.com/ajitpratap0/gridio/pkg/testutil"
)

func roundTrip(t *testing.T, n *network.Network, opts format.Options) *network.Network {
	t.Helper()
	env := testutil.NewTestEnvironment(t)
	opts.Fs, opts.Logger = env.Fs, env.Logger
	dest := env.Path("model.xlsx")
	require.NoError(t, New().Export(env.Context(), n, dest, opts))
	back, err := New().Import(env.Context(), dest, opts)
	require.NoError(t, err)
	return back
}

func TestRoundTripFixtures(t *testing.T) {
	for name, build := range map[string]func(*testing.T) *network.Network{
		"scipy-like":     testutil.ScipyLike,
		"ac-dc":          testutil.ACDC,
		"shapes":         testutil.ACDCWithShapes,
		"time-dependent": testutil.TimeDependentEfficiency,
	} {
		t.Run(name, func(t *testing.T) {
			n := build(t)
			testutil.RequireNetworksEqual(t, n, roundTrip(t, n, format.Options{}), testutil.Exact()...)
		})
	}
}

func TestMetadataShapes(t *testing.T) {
	for name, m := range map[string]meta.Value{
		"flat": testutil.FlatMeta, "nested": testutil.NestedMeta, "mixed": testutil.MixedMeta,
	} {
		t.Run(name, func(t *testing.T) {
			back := roundTrip(t, testutil.WithMeta(testutil.ScipyLike(t), m), format.Options{})
			assert.True(t, meta.Equal(m, back.Meta))
		})
	}
}

func TestSpecialValues(t *testing.T) {
	n := testutil.ScipyLike(t)
	gen := n.Component("Generator")
	gen.Dynamic["availability_of_a_rather_long_custom_attribute"] = network.NewTable(n.Snapshots.Clone(),
		network.NewFloat("Frankfurt gas", []float64{math.NaN(), math.Inf(1), math.Inf(-1), 1e-20}),
		network.NewFloat("Kassel wind", []float64{1e300, -0.0, 123456789.123456789, math.NaN()}),
	)
	n.Component("Bus").Static.Set(network.NewString("code", []string{"007", "1e3", ""}))

	back := roundTrip(t, n, format.Options{})
	testutil.RequireNetworksEqual(t, n, back, testutil.Exact()...)

	codes := back.Component("Bus").Static.Column("code")
	assert.Equal(t, network.String, codes.Type)
	assert.Equal(t, []string{"007", "1e3", ""}, codes.Strings())
}

func TestPrecisionPolicy(t *testing.T) {
	n := testutil.ScipyLike(t)
	var report policy.Report
	back := roundTrip(t, n, format.Options{Policy: &policy.Policy{Float32: true}, Report: func(r policy.Report) { report = r }})
	testutil.RequireNetworksEqual(t, n, back, testutil.Float32()...)
	assert.True(t, report.Lossy)
	assert.True(t, report.Float32)

	env := testutil.NewTestEnvironment(t)
	err := New().Export(env.Context(), n, env.Path("x.xlsx"), format.Options{Fs: env.Fs, Policy: policy.Lossless(compression.Zlib, 4)})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig), "got %v", err)
}

func TestWorkbookLayout(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	n := testutil.ACDC(t)
	gen := n.Component("Generator")
	gen.Dynamic["availability_of_a_rather_long_custom_attribute"] = network.NewTable(n.Snapshots.Clone(),
		network.NewFloat("Norway hydro", []float64{1, 2, 3, 4, 5, 6}))
	dest := env.Path("model.xlsx")
	require.NoError(t, New().Export(env.Context(), n, dest, format.Options{Fs: env.Fs}))

	wb, err := excelize.OpenReader(bytes.NewReader(env.ReadFile("model.xlsx")))
	require.NoError(t, err)
	defer wb.Close()

	sheets := wb.GetSheetList()
	assert.Equal(t, []string{NetworkSheet, CatalogSheet, "snapshots", "investment_periods"}, sheets[:4])
	assert.Contains(t, sheets, "buses")
	assert.Contains(t, sheets, "generators-p_max_pu")
	assert.NotContains(t, sheets, "loads-q_set")
	for _, s := range sheets {
		assert.LessOrEqual(t, len([]rune(s)), excelize.MaxSheetNameLength, s)
	}

	rows, err := wb.GetRows("generators-p_max_pu")
	require.NoError(t, err)
	assert.Equal(t, []string{"index:period", "index:timestep", "Norway hydro"}, rows[0])
	assert.Len(t, rows, 7)

	buses, err := wb.GetRows("buses")
	require.NoError(t, err)
	assert.Equal(t, "index:name", buses[0][0])
	col := -1
	for i, h := range buses[0] {
		if h == "v_nom" {
			col = i
		}
	}
	require.Positive(t, col)
	cell, err := excelize.CoordinatesToCellName(col+1, 2)
	require.NoError(t, err)
	typ, err := wb.GetCellType("buses", cell)
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeInlineString, typ)
	assert.NotEqual(t, excelize.CellTypeSharedString, typ)

	catalog, err := wb.GetRows(CatalogSheet)
	require.NoError(t, err)
	assert.Equal(t, catalogHeader, catalog[0])
	var long []string
	for _, rec := range catalog[1:] {
		if rec[0] == "Generator/availability_of_a_rather_long_custom_attribute" {
			long = rec
		}
	}
	require.NotNil(t, long)
	assert.True(t, strings.HasPrefix(long[1], "generators-availability"))
	assert.True(t, strings.HasSuffix(long[1], "~1"))

	back, err := New().Import(env.Context(), dest, format.Options{Fs: env.Fs})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6},
		back.Component("Generator").Dynamic["availability_of_a_rather_long_custom_attribute"].Column("Norway hydro").Floats())
}

func TestSheetNames(t *testing.T) {
	nm := newNamer()
	assert.Equal(t, "buses", nm.name("buses"))
	assert.Equal(t, "Buses~1", nm.name("Buses"))
	assert.Equal(t, "network~1", nm.name("network"))
	assert.Equal(t, "a_b_c", nm.name("a/b?c"))

	long := strings.Repeat("x", 40)
	first := nm.name(long)
	second := nm.name(long)
	assert.Equal(t, strings.Repeat("x", 29)+"~1", first)
	assert.Equal(t, strings.Repeat("x", 29)+"~2", second)
}

func TestHandWrittenWorkbook(t *testing.T) {
	wb := excelize.NewFile()
	defer wb.Close()
	require.NoError(t, wb.SetSheetName("Sheet1", "network"))
	set := func(sheet string, rows ...[]interface{}) {
		if idx, _ := wb.GetSheetIndex(sheet); idx < 0 {
			_, err := wb.NewSheet(sheet)
			require.NoError(t, err)
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, wb.SetSheetRow(sheet, cell, &row))
		}
	}
	set("network", []interface{}{"name", "crs"}, []interface{}{"handmade", "EPSG:3857"})
	set("snapshots", []interface{}{"snapshot", "objective"},
		[]interface{}{"2015-01-01 00:00:00", 1}, []interface{}{"2015-01-01 01:00:00", 3})
	set("buses", []interface{}{"name", "v_nom"}, []interface{}{"b0", 110}, []interface{}{"b1", 220.5})
	set("loads", []interface{}{"name", "bus"}, []interface{}{"l0", "b0"})
	set("loads-p_set", []interface{}{"snapshot", "l0"},
		[]interface{}{"2015-01-01 00:00:00", 5}, []interface{}{"2015-01-01 01:00:00", 6.5})

	var buf bytes.Buffer
	require.NoError(t, wb.Write(&buf))
	env := testutil.NewTestEnvironment(t)
	src := env.WriteFile("handmade.xlsx", buf.Bytes())

	n, err := New().Import(env.Context(), src, format.Options{Fs: env.Fs})
	require.NoError(t, err)
	assert.Equal(t, "handmade", n.Name)
	assert.Equal(t, "EPSG:3857", n.CRS)
	assert.Equal(t, []float64{1, 3}, n.SnapshotWeightings.Column("objective").Floats())
	assert.Equal(t, []float64{1, 1}, n.SnapshotWeightings.Column("stores").Floats())
	assert.Equal(t, network.Time, n.Snapshots.Levels[0].Type)
	assert.Equal(t, []float64{110, 220.5}, n.Component("Bus").Static.Column("v_nom").Floats())
	assert.Equal(t, []string{"b0"}, n.Component("Load").Static.Column("bus").Strings())
	assert.Equal(t, []float64{5, 6.5}, n.Component("Load").Dynamic["p_set"].Column("l0").Floats())
}

func TestFailedExportIsAtomic(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	dest := env.Path("model.xlsx")
	require.NoError(t, New().Export(env.Context(), testutil.ScipyLike(t), dest, format.Options{Fs: env.Fs}))
	before := env.ReadFile("model.xlsx")

	broken := testutil.ScipyLike(t)
	broken.Component("Bus").Static.Set(network.NewFloat("v_nom", []float64{5}))
	require.Error(t, New().Export(env.Context(), broken, dest, format.Options{Fs: env.Fs}))
	assert.Equal(t, before, env.ReadFile("model.xlsx"))
	assert.Equal(t, []string{"model.xlsx"}, env.Files(""))
}

func TestImportErrors(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	opts := format.Options{Fs: env.Fs}

	_, err := New().Import(env.Context(), env.Path("missing.xlsx"), opts)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSourceUnreadable))

	_, err = New().Import(env.Context(), env.WriteFile("garbage.xlsx", []byte("not a workbook")), opts)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSourceUnreadable))

	require.NoError(t, env.Fs.MkdirAll(env.Path("dir.xlsx"), 0o755))
	_, err = New().Import(env.Context(), env.Path("dir.xlsx"), opts)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSourceUnreadable))

	wb := excelize.NewFile()
	defer wb.Close()
	_, err = wb.NewSheet(CatalogSheet)
	require.NoError(t, err)
	require.NoError(t, wb.SetSheetRow(CatalogSheet, "A1", &[]interface{}{"key", "sheet", "rows", "descriptor"}))
	require.NoError(t, wb.SetSheetRow(CatalogSheet, "A2", &[]interface{}{"Bus/static", "buses", 1, `{"key":"Bus/static","fields":[]}`}))
	var buf bytes.Buffer
	require.NoError(t, wb.Write(&buf))
	_, err = New().Import(env.Context(), env.WriteFile("dangling.xlsx", buf.Bytes()), opts)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchemaMismatch), "got %v", err)
}
