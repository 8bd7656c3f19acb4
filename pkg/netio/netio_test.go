package netio

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/gridio/pkg/errors"
	"github.com/ajitpratap0/gridio/pkg/fetch"
	"github.com/ajitpratap0/gridio/pkg/netio/format"
	"github.com/ajitpratap0/gridio/pkg/network"
	"github.com/ajitpratap0/gridio/pkg/testutil"
)

type dirPath string

func options(env *testutil.TestEnvironment) format.Options {
	return format.Options{Fs: env.Fs, Logger: env.Logger}
}

func fileURL(p string) *url.URL {
	return &url.URL{Scheme: "file", Path: filepath.ToSlash(p)}
}

func TestNamedOperationsRoundTrip(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	ctx, opts := env.Context(), options(env)
	n := testutil.ScipyLike(t)

	type pair struct {
		dest  string
		write func(string) error
		read  func(string) (*network.Network, error)
	}
	pairs := map[format.Format]pair{
		format.CSV: {env.Path("csv"),
			func(p string) error { return ExportToCSVFolder(ctx, n, p, opts) },
			func(p string) (*network.Network, error) { return ImportFromCSVFolder(ctx, p, opts) }},
		format.NetCDF: {env.Path("model.nc"),
			func(p string) error { return ExportToNetCDF(ctx, n, p, opts) },
			func(p string) (*network.Network, error) { return ImportFromNetCDF(ctx, p, opts) }},
		format.HDF5: {env.Path("model.h5"),
			func(p string) error { return ExportToHDF5(ctx, n, p, opts) },
			func(p string) (*network.Network, error) { return ImportFromHDF5(ctx, p, opts) }},
		format.Excel: {env.Path("model.xlsx"),
			func(p string) error { return ExportToExcel(ctx, n, p, opts) },
			func(p string) (*network.Network, error) { return ImportFromExcel(ctx, p, opts) }},
	}
	for f, p := range pairs {
		require.NoError(t, p.write(p.dest), f)
		back, err := p.read(p.dest)
		require.NoError(t, err, f)
		testutil.RequireNetworksEqual(t, n, back, testutil.Exact()...)

		sniffed, err := Sniff(env.Fs, p.dest)
		require.NoError(t, err)
		assert.Equal(t, f, sniffed)
	}
}

func TestPathTypesAreInterchangeable(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	ctx, opts := env.Context(), options(env)
	n := testutil.ACDC(t)

	require.NoError(t, ExportToCSVFolder(ctx, n, env.Path("a"), opts))
	require.NoError(t, ExportToCSVFolder(ctx, n, dirPath(env.Path("b")), opts))
	require.NoError(t, ExportToCSVFolder(ctx, n, fileURL(env.Path("c")), opts))
	require.NoError(t, ExportToCSVFolder(ctx, n, "file://"+filepath.ToSlash(env.Path("d")), opts))

	for _, dir := range []string{"b", "c", "d"} {
		assert.Equal(t, env.Files("a"), env.Files(dir), dir)
		for _, name := range env.Files("a") {
			assert.Equal(t, env.ReadFile(filepath.Join("a", name)), env.ReadFile(filepath.Join(dir, name)), name)
		}
	}

	fromString, err := ImportFromCSVFolder(ctx, env.Path("a"), opts)
	require.NoError(t, err)
	fromNamed, err := ImportFromCSVFolder(ctx, dirPath(env.Path("a")), opts)
	require.NoError(t, err)
	fromURL, err := ImportFromCSVFolder(ctx, fileURL(env.Path("a")), opts)
	require.NoError(t, err)
	testutil.RequireNetworksEqual(t, fromString, fromNamed, testutil.Exact()...)
	testutil.RequireNetworksEqual(t, fromString, fromURL, testutil.Exact()...)

	require.NoError(t, ExportToHDF5(ctx, n, fileURL(env.Path("m.h5")), opts))
	require.NoError(t, ExportToHDF5(ctx, n, env.Path("n.h5"), opts))
	assert.Equal(t, env.ReadFile("m.h5"), env.ReadFile("n.h5"))
}

func TestExportPicksFormat(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	ctx, opts := env.Context(), options(env)
	n := testutil.TimeDependentEfficiency(t)

	require.NoError(t, Export(ctx, n, env.Path("by-ext.nc"), "", opts))
	require.NoError(t, Export(ctx, n, env.Path("by-tag.bin"), "hdf5", opts))
	require.NoError(t, Export(ctx, n, env.Path("folder"), "", opts))

	for path, want := range map[string]format.Format{
		"by-ext.nc":  format.NetCDF,
		"by-tag.bin": format.HDF5,
		"folder":     format.CSV,
	} {
		got, err := Sniff(env.Fs, env.Path(path))
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	err := Export(ctx, n, env.Path("model.parquet"), "", opts)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	err = Export(ctx, n, env.Path("model.nc"), "sqlite", opts)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	err = Export(ctx, n, "https://example.com/model.nc", "", opts)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestOpenSniffsContent(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	ctx, opts := env.Context(), options(env)
	n := testutil.ACDCWithShapes(t)

	for _, f := range []format.Format{format.NetCDF, format.HDF5, format.Excel} {
		named := env.Path("model" + f.Extension())
		require.NoError(t, Export(ctx, n, named, "", opts))
		bare := env.Path("model-" + f.String())
		require.NoError(t, env.Fs.Rename(named, bare))

		got, err := Sniff(env.Fs, bare)
		require.NoError(t, err)
		assert.Equal(t, f, got)

		back, err := Open(ctx, bare, opts)
		require.NoError(t, err, f)
		testutil.RequireNetworksEqual(t, n, back, testutil.Exact()...)
	}
}

func TestComponentsNamedLikeIndexLevels(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	ctx, opts := env.Context(), options(env)

	single := testutil.ScipyLike(t)
	steps := single.Snapshots.Len()
	series := func(v float64) []float64 {
		out := make([]float64, steps)
		for i := range out {
			out[i] = v + float64(i)/10
		}
		return out
	}
	require.NoError(t, single.Add("Generator", network.SnapshotLevel, map[string]interface{}{"p_max_pu": series(0.1)}))

	multi := testutil.ACDC(t)
	steps = multi.Snapshots.Len()
	require.NoError(t, multi.Add("Generator", network.PeriodLevel, map[string]interface{}{"p_max_pu": series(0.2)}))
	require.NoError(t, multi.Add("Generator", network.TimestepLevel, map[string]interface{}{"p_max_pu": series(0.3)}))

	for name, n := range map[string]*network.Network{"single": single, "multi": multi} {
		for _, f := range []format.Format{format.CSV, format.NetCDF, format.HDF5, format.Excel} {
			dest := env.Path(name + "-model" + f.Extension())
			require.NoError(t, Export(ctx, n, dest, f.String(), opts), "%s %s", name, f)
			back, err := Open(ctx, dest, opts)
			require.NoError(t, err, "%s %s", name, f)
			testutil.RequireNetworksEqual(t, n, back, testutil.Exact()...)
		}
	}
}

func TestSniffErrors(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("readme.txt")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	paths := []string{
		env.Path("missing"),
		env.WriteFile("notes", []byte("plain text")),
		env.WriteFile("other.zip", buf.Bytes()),
	}
	for _, p := range paths {
		_, err := Sniff(env.Fs, p)
		require.Error(t, err, p)
		assert.True(t, errors.IsType(err, errors.ErrorTypeSourceUnreadable), p)

		_, err = Open(env.Context(), p, options(env))
		assert.True(t, errors.IsType(err, errors.ErrorTypeSourceUnreadable), p)
	}
}

func TestLocate(t *testing.T) {
	loc, err := locate("s3://bucket/networks/model.nc")
	require.NoError(t, err)
	require.NotNil(t, loc.remote)
	assert.Equal(t, "bucket", loc.remote.Host)

	loc, err = locate(`C:\networks\model.nc`)
	require.NoError(t, err)
	assert.Nil(t, loc.remote)

	loc, err = locate(&url.URL{Path: "rel/dir/"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean("rel/dir"), loc.local)

	for _, bad := range []string{"", "ftp://host/model.nc"} {
		_, err := locate(bad)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig), bad)
	}
	_, err = locate((*url.URL)(nil))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

// serveRemote exports n and serves it as a zipped CSV folder and as a
// netcdf archive.
func serveRemote(t *testing.T, env *testutil.TestEnvironment, n *network.Network) *httptest.Server {
	opts := options(env)
	require.NoError(t, ExportToCSVFolder(env.Context(), n, env.Path("remote", "net"), opts))
	require.NoError(t, ExportToNetCDF(env.Context(), n, env.Path("remote", "model.nc"), opts))

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range env.Files(filepath.Join("remote", "net")) {
		w, err := zw.Create("net/" + name)
		require.NoError(t, err)
		_, err = w.Write(env.ReadFile(filepath.Join("remote", "net", name)))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	bundle := buf.Bytes()
	archive := env.ReadFile(filepath.Join("remote", "model.nc"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/net.zip":
			_, _ = w.Write(bundle)
		case "/model.nc":
			_, _ = w.Write(archive)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteSources(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	n := testutil.ScipyLike(t)
	srv := serveRemote(t, env, n)

	cache := afero.NewMemMapFs()
	UseFetcher(fetch.New(fetch.Config{CacheDir: "/cache", HTTP: fetch.DefaultHTTPConfig()}, cache, env.Logger))
	t.Cleanup(func() { UseFetcher(nil) })

	// the local filesystem in the options is not consulted for remote sources
	opts := format.Options{Fs: afero.NewMemMapFs(), Logger: env.Logger}

	back, err := ImportFromCSVFolder(env.Context(), srv.URL+"/net.zip", opts)
	require.NoError(t, err)
	testutil.RequireNetworksEqual(t, n, back, testutil.Exact()...)

	u, err := url.Parse(srv.URL + "/net.zip")
	require.NoError(t, err)
	back, err = Open(env.Context(), u, opts)
	require.NoError(t, err)
	testutil.RequireNetworksEqual(t, n, back, testutil.Exact()...)

	back, err = Open(env.Context(), srv.URL+"/model.nc", opts)
	require.NoError(t, err)
	testutil.RequireNetworksEqual(t, n, back, testutil.Exact()...)

	_, err = Open(env.Context(), srv.URL+"/absent.nc", opts)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRemote))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, format.Formats, r.Formats())

	a, err := r.Adapter(format.HDF5)
	require.NoError(t, err)
	assert.Equal(t, format.HDF5, a.Format())

	_, err = r.Adapter(format.Format("parquet"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
