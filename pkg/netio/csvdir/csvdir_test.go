package csvdir

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/gridio/pkg/compression"
	"github.com/ajitpratap0/gridio/pkg/errors"
	"github.com/ajitpratap0/gridio/pkg/meta"
	"github.com/ajitpratap0/gridio/pkg/netio/format"
	"github.com/ajitpratap0/gridio/pkg/network"
	"github.com/ajitpratap0/gridio/pkg/policy"
	"github.com/ajitpratap0/gridio/pkg/testutil"
)

func roundTrip(t *testing.T, env *testutil.TestEnvironment, n *network.Network, opts format.Options) *network.Network {
	t.Helper()
	opts.Fs, opts.Logger = env.Fs, env.Logger
	dir := env.Path("net")
	a := New()
	require.NoError(t, a.Export(env.Context(), n, dir, opts))
	back, err := a.Import(env.Context(), dir, opts)
	require.NoError(t, err)
	return back
}

func TestRoundTripFixtures(t *testing.T) {
	fixtures := map[string]func(*testing.T) *network.Network{
		"scipy-like":     testutil.ScipyLike,
		"ac-dc":          testutil.ACDC,
		"shapes":         testutil.ACDCWithShapes,
		"time-dependent": testutil.TimeDependentEfficiency,
	}
	for name, build := range fixtures {
		t.Run(name, func(t *testing.T) {
			env := testutil.NewTestEnvironment(t)
			n := build(t)
			testutil.RequireNetworksEqual(t, n, roundTrip(t, env, n, format.Options{}), testutil.Exact()...)
		})
	}
}

func TestMetadataShapes(t *testing.T) {
	for name, m := range map[string]meta.Value{
		"flat": testutil.FlatMeta, "nested": testutil.NestedMeta, "mixed": testutil.MixedMeta, "empty": meta.Map(),
	} {
		t.Run(name, func(t *testing.T) {
			env := testutil.NewTestEnvironment(t)
			n := testutil.WithMeta(testutil.ScipyLike(t), m)
			back := roundTrip(t, env, n, format.Options{})
			assert.True(t, meta.Equal(m, back.Meta))
		})
	}
}

func TestFileLayout(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	n := testutil.ACDCWithShapes(t)
	require.NoError(t, New().Export(env.Context(), n, env.Path("net"), format.Options{Fs: env.Fs}))

	files := env.Files("net")
	for _, want := range []string{
		"network.csv", "snapshots.csv", "investment_periods.csv", "shapes.csv",
		"buses.csv", "links.csv", "links-p_max_pu.csv", "generators-p_max_pu.csv", "loads-p_set.csv",
	} {
		assert.Contains(t, files, want)
	}
	assert.NotContains(t, files, "loads-q_set.csv", "empty time-varying tables are not written")

	header := strings.SplitN(string(env.ReadFile("net/loads-p_set.csv")), "\n", 2)[0]
	assert.Equal(t, "period,timestep,GB load", header)
	header = strings.SplitN(string(env.ReadFile("net/snapshots.csv")), "\n", 2)[0]
	assert.Equal(t, "period,timestep,objective,stores,generators", header)
}

func TestQuoteChar(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	n := testutil.WithMeta(testutil.ScipyLike(t), testutil.MixedMeta)
	dir := env.Path("net")
	a := New()

	opts := format.Options{Fs: env.Fs, QuoteChar: '\''}
	require.NoError(t, a.Export(env.Context(), n, dir, opts))

	back, err := a.Import(env.Context(), dir, opts)
	require.NoError(t, err)
	testutil.RequireNetworksEqual(t, n, back, testutil.Exact()...)

	_, err = a.Import(env.Context(), dir, format.Options{Fs: env.Fs})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeQuoteMismatch), "got %v", err)
}

func TestMultiLevelSnapshots(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	n := testutil.ACDC(t)
	back := roundTrip(t, env, n, format.Options{})

	assert.Equal(t, []string{network.PeriodLevel, network.TimestepLevel}, back.Snapshots.Names())
	assert.Equal(t, n.Snapshots.Levels[0].Ints(), back.Snapshots.Levels[0].Ints())
	assert.Equal(t, n.Snapshots.Levels[1].Times(), back.Snapshots.Levels[1].Times())
	assert.True(t, n.Component("Generator").Dynamic["p_max_pu"].Equal(back.Component("Generator").Dynamic["p_max_pu"]))
	assert.Equal(t, []int64{2020, 2030}, back.InvestmentPeriods.Levels[0].Ints())
}

func TestNullGeometry(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	n := testutil.ACDCWithShapes(t)
	back := roundTrip(t, env, n, format.Options{})

	got := back.Shapes.Column("geometry").Geometries()
	want := n.Shapes.Column("geometry").Geometries()
	require.Len(t, got, 3)
	assert.Nil(t, got[1])
	assert.True(t, network.GeometryEqual(want[0], got[0]))
	assert.True(t, network.GeometryEqual(want[2], got[2]))
	assert.Equal(t, "EPSG:3035", back.CRS)
}

func TestPrecisionPolicy(t *testing.T) {
	t.Run("quantized", func(t *testing.T) {
		env := testutil.NewTestEnvironment(t)
		var report policy.Report
		opts := format.Options{
			Policy: &policy.Policy{Compression: &policy.Compression{Algorithm: compression.None, LeastSignificantDigit: policy.Digits(3)}},
			Report: func(r policy.Report) { report = r },
		}
		n := testutil.ScipyLike(t)
		back := roundTrip(t, env, n, opts)
		testutil.RequireNetworksEqual(t, n, back, testutil.Tolerance(1e-3, 0)...)
		assert.True(t, report.Lossy)
		assert.Greater(t, report.Columns, 0)
	})
	t.Run("float32", func(t *testing.T) {
		env := testutil.NewTestEnvironment(t)
		n := testutil.ScipyLike(t)
		back := roundTrip(t, env, n, format.Options{Policy: &policy.Policy{Float32: true}})
		testutil.RequireNetworksEqual(t, n, back, testutil.Float32()...)
	})
}

func TestEmptyAndPopulatedTables(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	back := roundTrip(t, env, testutil.ScipyLike(t), format.Options{})

	loads := back.Component("Load")
	qset, ok := loads.Dynamic["q_set"]
	require.True(t, ok)
	assert.True(t, qset.Empty())
	assert.Len(t, qset.Columns, 0)
	assert.Equal(t, 4, qset.Len())

	pset := loads.Dynamic["p_set"]
	require.False(t, pset.Empty())
	assert.Equal(t, []float64{210, 198.5, 230.25, 250}, pset.Column("Frankfurt load").Floats())
}

func TestStringsKeepLineBreaksAndBlanks(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	n := network.New("text")
	require.NoError(t, n.Add("Bus", "b0", map[string]interface{}{"carrier": "  ", "note": "line1\r\nline2"}))
	require.NoError(t, n.Add("Bus", "b1", map[string]interface{}{"carrier": "AC", "note": "cr\ronly"}))

	for _, q := range []rune{'"', '\''} {
		back := roundTrip(t, env, n, format.Options{QuoteChar: q})
		bus := back.Component("Bus")
		assert.Equal(t, []string{"  ", "AC"}, bus.Static.Column("carrier").Strings())
		assert.Equal(t, []string{"line1\r\nline2", "cr\ronly"}, bus.Static.Column("note").Strings())
	}
}

func TestCompressedFiles(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	n := testutil.ScipyLike(t)
	back := roundTrip(t, env, n, format.Options{Policy: policy.Lossless(compression.Gzip, compression.Default)})
	testutil.RequireNetworksEqual(t, n, back, testutil.Exact()...)

	for _, f := range env.Files("net") {
		assert.True(t, strings.HasSuffix(f, ".csv.gz"), f)
	}
}

func TestExportReplacesTablesAndKeepsForeignFiles(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	dir := env.Path("net")
	opts := format.Options{Fs: env.Fs}
	a := New()

	require.NoError(t, a.Export(env.Context(), testutil.ScipyLike(t), dir, opts))
	env.WriteFile("net/README.md", []byte("notes"))

	n := testutil.TimeDependentEfficiency(t)
	require.NoError(t, a.Export(env.Context(), n, dir, opts))
	back, err := a.Import(env.Context(), dir, opts)
	require.NoError(t, err)
	testutil.RequireNetworksEqual(t, n, back, testutil.Exact()...)

	files := env.Files("net")
	assert.Contains(t, files, "README.md")
	assert.NotContains(t, files, "lines.csv")
	for _, f := range env.Files("") {
		assert.False(t, strings.Contains(f, ".tmp-"), "staging directory %s left behind", f)
	}
}

func TestFailedExportLeavesDestination(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	dir := env.Path("net")
	opts := format.Options{Fs: env.Fs}
	a := New()
	require.NoError(t, a.Export(env.Context(), testutil.ScipyLike(t), dir, opts))
	before := env.ReadFile("net/buses.csv")

	broken := testutil.ScipyLike(t)
	broken.Component("Bus").Static.Set(network.NewFloat("v_nom", []float64{5}))
	err := a.Export(env.Context(), broken, dir, opts)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchemaMismatch))
	assert.Equal(t, before, env.ReadFile("net/buses.csv"))
}

func TestImportErrors(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	opts := format.Options{Fs: env.Fs}
	a := New()

	_, err := a.Import(env.Context(), env.Path("missing"), opts)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSourceUnreadable))

	file := env.WriteFile("plain.txt", []byte("x"))
	_, err = a.Import(env.Context(), file, opts)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSourceUnreadable))

	require.NoError(t, env.Fs.MkdirAll(env.Path("empty"), 0o755))
	_, err = a.Import(env.Context(), env.Path("empty"), opts)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSourceUnreadable))

	env.WriteFile("bad/snapshots.csv", []byte("snapshot,objective\n2015-01-01 00:00:00,1.0\n"))
	env.WriteFile("bad/loads-p_set.csv", []byte("timestep,l0\n2015-01-01 00:00:00,1.0\n"))
	_, err = a.Import(env.Context(), env.Path("bad"), opts)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchemaMismatch), "got %v", err)

	env.WriteFile("typed/buses.csv", []byte("name,v_nom\nb0,high\n"))
	_, err = a.Import(env.Context(), env.Path("typed"), opts)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchemaMismatch), "got %v", err)
}

func TestImportsHandWrittenDirectory(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	env.WriteFile("hand/snapshots.csv", []byte("snapshot,objective\n0,1.0\n1,1.0\n"))
	env.WriteFile("hand/buses.csv", []byte("name,v_nom\nb0,110\nb1,220\n"))
	env.WriteFile("hand/loads.csv", []byte("name,bus\nl0,b0\n"))
	env.WriteFile("hand/loads-p_set.csv", []byte("snapshot,l0\n0,5\n1,6.5\n"))

	n, err := New().Import(env.Context(), env.Path("hand"), format.Options{Fs: env.Fs})
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1}, n.Snapshots.Levels[0].Ints())
	assert.Equal(t, []float64{1, 1}, n.SnapshotWeightings.Column("generators").Floats())
	assert.Equal(t, []float64{110, 220}, n.Component("Bus").Static.Column("v_nom").Floats())
	assert.Equal(t, []float64{5, 6.5}, n.Component("Load").Dynamic["p_set"].Column("l0").Floats())
	assert.Equal(t, network.DefaultCRS, n.CRS)
}

func TestFileNames(t *testing.T) {
	n := network.New("x")
	r := n.Registry()
	assert.Equal(t, "generators-p_max_pu.csv", fileName(r, "Generator/p_max_pu"))
	assert.Equal(t, "Generator/p_max_pu", format.TableKey(r, "generators-p_max_pu"))
	assert.Equal(t, "buses.csv", fileName(r, "Bus/static"))
	assert.Equal(t, "Bus/static", format.TableKey(r, "buses"))
	assert.Equal(t, "Widget/static", format.TableKey(r, "Widget"))
	assert.Equal(t, "Widget/size", format.TableKey(r, "Widget-size"))
	assert.Equal(t, "snapshots", format.TableKey(r, "snapshots"))

	stem, alg, ok := splitName("loads-p_set.csv.zst")
	require.True(t, ok)
	assert.Equal(t, "loads-p_set", stem)
	assert.Equal(t, compression.Zstd, alg)
	_, _, ok = splitName("notes.txt")
	assert.False(t, ok)
	assert.Equal(t, "buses.csv", filepath.Base(compressed("buses.csv", compression.None)))
}
