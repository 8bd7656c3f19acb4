// Package csvdir stores networks as a directory of delimited text files.
//
// # Layout
//
//	network.csv                 name, crs and metadata (JSON) of the network
//	snapshots.csv               snapshot index levels, then weightings
//	investment_periods.csv      period, then weightings (when present)
//	shapes.csv                  shapes with geometries as WKT (when present)
//	<list_name>.csv             static table of a class, first column "name"
//	<list_name>-<attr>.csv      time-varying table, snapshot levels first
//
// Every file may carry a compression suffix (buses.csv.gz, loads-p_set.csv.zst)
// when the export policy names a compression algorithm; import detects it by
// extension. The quote character is a contract between export and import: a
// file written with one quote character and read with another fails with a
// quote mismatch error instead of yielding shifted values.
//
// Exports are written to a staging directory next to the destination and
// moved into place only once every table was written, so a failed export
// leaves the previous contents of the destination alone.
package csvdir

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/ajitpratap0/gridio/internal/fsutil"
	"github.com/ajitpratap0/gridio/internal/parallel"
	"github.com/ajitpratap0/gridio/pkg/assembler"
	"github.com/ajitpratap0/gridio/pkg/codec"
	"github.com/ajitpratap0/gridio/pkg/compression"
	"github.com/ajitpratap0/gridio/pkg/errors"
	"github.com/ajitpratap0/gridio/pkg/formats/dsv"
	"github.com/ajitpratap0/gridio/pkg/metrics"
	"github.com/ajitpratap0/gridio/pkg/netio/format"
	"github.com/ajitpratap0/gridio/pkg/network"
)

// Adapter reads and writes CSV directories.
type Adapter struct{}

// New creates a CSV directory adapter.
func New() *Adapter {
	return &Adapter{}
}

// Format returns format.CSV.
func (a *Adapter) Format() format.Format {
	return format.CSV
}

// Export writes n to the directory dest.
func (a *Adapter) Export(ctx context.Context, n *network.Network, dest string, opts format.Options) error {
	opts = opts.Resolve(format.CSV)
	if err := opts.Validate(format.CSV); err != nil {
		return err
	}
	return format.Observe(ctx, opts, format.CSV, metrics.OpExport, dest, func(ctx context.Context, log *zap.Logger) (int, error) {
		parts, err := assembler.Disassemble(n)
		if err != nil {
			return 0, err
		}
		frames, report, err := parts.Encode(ctx, opts.Registry, opts.Policy, opts.Workers)
		if err != nil {
			return 0, err
		}

		staged, err := fsutil.StageDir(opts.Fs, dest)
		if err != nil {
			return 0, err
		}
		committed := false
		defer func() {
			if !committed {
				_ = fsutil.Discard(opts.Fs, staged)
			}
		}()

		w := &writer{fs: opts.Fs, dir: staged, dialect: opts.Dialect(), algorithm: opts.Policy.Algorithm(), level: opts.Policy.Level()}
		header, row, err := parts.NetworkRecord()
		if err != nil {
			return 0, err
		}
		if err := w.write(networkFile+ext, [][]string{header, row}); err != nil {
			return 0, err
		}

		err = parallel.ForEach(ctx, parallel.Limit(opts.Workers), frames, func(_ context.Context, _ int, f *codec.Frame) error {
			header, rows, err := codec.TextRows(f)
			if err != nil {
				return err
			}
			name := fileName(opts.Registry, f.Key)
			log.Debug("writing table", zap.String("table", f.Key), zap.String("file", name), zap.Int("rows", len(rows)))
			return w.write(name, append([][]string{header}, rows...))
		})
		if err != nil {
			return 0, err
		}

		if err := fsutil.CommitDir(opts.Fs, staged, dest, isTableFile); err != nil {
			return 0, err
		}
		committed = true
		format.Declare(opts, log, report)
		return len(frames), nil
	})
}

type writer struct {
	fs        afero.Fs
	dir       string
	dialect   dsv.Dialect
	algorithm compression.Algorithm
	level     compression.Level
}

func (w *writer) write(name string, records [][]string) (err error) {
	path := filepath.Join(w.dir, compressed(name, w.algorithm))
	f, err := w.fs.Create(path)
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeDestinationUnwritable, "cannot create %s", name)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, errors.ErrorTypeDestinationUnwritable, "failed to close %s", name)
		}
	}()

	cw, err := compression.NewWriter(f, w.algorithm, w.level)
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeConfig, "cannot compress %s", name)
	}
	if err := dsv.NewWriter(cw, w.dialect).WriteAll(records); err != nil {
		_ = cw.Close()
		return errors.Wrapf(err, errors.ErrorTypeDestinationUnwritable, "failed to write %s", name)
	}
	if err := cw.Close(); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeDestinationUnwritable, "failed to write %s", name)
	}
	return nil
}

// table is one table file found in a directory.
type table struct {
	key       string
	file      string
	algorithm compression.Algorithm
}

// Import reads the network stored in directory src.
func (a *Adapter) Import(ctx context.Context, src string, opts format.Options) (*network.Network, error) {
	opts = opts.Resolve(format.CSV)
	if err := opts.Validate(format.CSV); err != nil {
		return nil, err
	}
	var out *network.Network
	err := format.Observe(ctx, opts, format.CSV, metrics.OpImport, src, func(ctx context.Context, log *zap.Logger) (int, error) {
		tables, err := list(opts, src)
		if err != nil {
			return 0, err
		}
		r := &reader{fs: opts.Fs, dir: src, dialect: opts.Dialect()}
		parts := assembler.NewParts()

		if t, ok := tables[networkFile]; ok {
			records, err := r.read(t, true)
			if err != nil {
				return 0, err
			}
			if len(records) < 2 {
				return 0, errors.Newf(errors.ErrorTypeSchemaMismatch, "%s has no network record", t.file)
			}
			if err := parts.SetNetworkRecord(records[0], records[1]); err != nil {
				return 0, errors.Propagate(err, errors.ErrorTypeSchemaMismatch, t.file)
			}
			delete(tables, networkFile)
		}

		read := 0
		// index tables type the levels of every time-varying table
		for _, key := range []string{codec.SnapshotsKey, codec.InvestmentPeriodsKey} {
			t, ok := tables[key]
			if !ok {
				continue
			}
			f, err := r.indexFrame(t)
			if err != nil {
				return 0, err
			}
			if err := parts.AddFrame(f); err != nil {
				return 0, errors.Propagate(err, errors.ErrorTypeSchemaMismatch, t.file)
			}
			delete(tables, key)
			read++
		}

		rest := make([]table, 0, len(tables))
		for _, t := range tables {
			rest = append(rest, t)
		}
		sort.Slice(rest, func(i, j int) bool { return rest[i].key < rest[j].key })

		snapshots := parts.Snapshots
		if snapshots == nil {
			snapshots = network.NewWithRegistry("", opts.Registry).Snapshots
		}
		frames, err := parallel.Map(ctx, parallel.Limit(opts.Workers), rest, func(_ context.Context, t table) (*codec.Frame, error) {
			log.Debug("reading table", zap.String("table", t.key), zap.String("file", t.file))
			return r.tableFrame(opts, t, snapshots)
		})
		if err != nil {
			return 0, err
		}
		for i, f := range frames {
			if err := parts.AddFrame(f); err != nil {
				return 0, errors.Propagate(err, errors.ErrorTypeSchemaMismatch, rest[i].file)
			}
		}

		n, err := assembler.Assemble(parts, opts.Registry)
		if err != nil {
			return 0, err
		}
		out = n
		return read + len(frames), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// list finds the table files of src keyed by frame key, or networkFile.
func list(opts format.Options, src string) (map[string]table, error) {
	info, err := opts.Fs.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(err, errors.ErrorTypeSourceUnreadable, "%s does not exist", src)
		}
		return nil, errors.Wrapf(err, errors.ErrorTypeSourceUnreadable, "cannot access %s", src)
	}
	if !info.IsDir() {
		return nil, errors.Newf(errors.ErrorTypeSourceUnreadable, "%s is not a directory", src)
	}
	entries, err := afero.ReadDir(opts.Fs, src)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeSourceUnreadable, "cannot list %s", src)
	}

	tables := make(map[string]table)
	for _, e := range entries {
		if e.IsDir() || fsutil.IsTemp(e.Name()) {
			continue
		}
		stem, alg, ok := splitName(e.Name())
		if !ok {
			continue
		}
		key := networkFile
		if stem != networkFile {
			key = format.TableKey(opts.Registry, stem)
		}
		if prev, dup := tables[key]; dup {
			return nil, errors.Newf(errors.ErrorTypeSourceUnreadable, "both %s and %s hold table %s", prev.file, e.Name(), key)
		}
		tables[key] = table{key: key, file: e.Name(), algorithm: alg}
	}
	if len(tables) == 0 {
		return nil, errors.Newf(errors.ErrorTypeSourceUnreadable, "%s holds no network tables", src)
	}
	return tables, nil
}

type reader struct {
	fs      afero.Fs
	dir     string
	dialect dsv.Dialect
}

// read returns the records of t. Records must have a uniform width unless
// ragged is set.
func (r *reader) read(t table, ragged bool) ([][]string, error) {
	f, err := r.fs.Open(filepath.Join(r.dir, t.file))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeSourceUnreadable, "cannot open %s", t.file)
	}
	defer f.Close()

	var in io.Reader = f
	if t.algorithm != compression.None {
		cr, err := compression.NewReader(f, t.algorithm)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeSourceUnreadable, "cannot decompress %s", t.file)
		}
		defer cr.Close()
		in = cr
	}

	dr := dsv.NewReader(in, r.dialect)
	if ragged {
		dr.FieldsPerRecord = -1
	}
	records, err := dr.ReadAll()
	if err != nil {
		return nil, errors.Propagate(err, errors.ErrorTypeSourceUnreadable, "failed to read "+t.file)
	}
	if len(records) == 0 {
		return nil, errors.Newf(errors.ErrorTypeSchemaMismatch, "%s has no header", t.file)
	}
	return records, nil
}

func (r *reader) frame(t table, nIndex int, header []string, rows [][]string, levels, values codec.Hints) (*codec.Frame, error) {
	f, err := codec.TextFrame(t.key, header, rows, nIndex)
	if err != nil {
		return nil, errors.Propagate(err, errors.ErrorTypeSchemaMismatch, t.file)
	}
	if err := codec.Resolve(f, levels, values); err != nil {
		return nil, errors.Propagate(err, errors.ErrorTypeSchemaMismatch, t.file)
	}
	return f, nil
}

// indexFrame reads snapshots or investment periods: index levels are the
// columns before the first weighting column.
func (r *reader) indexFrame(t table) (*codec.Frame, error) {
	records, err := r.read(t, false)
	if err != nil {
		return nil, err
	}
	header := records[0]
	weightings := network.SnapshotWeightingColumns
	if t.key == codec.InvestmentPeriodsKey {
		weightings = network.InvestmentPeriodWeightingColumns
	}
	nIndex := len(header)
	for i, h := range header {
		if contains(weightings, h) {
			nIndex = i
			break
		}
	}
	levels := codec.Hints{}
	if t.key == codec.InvestmentPeriodsKey && nIndex > 0 {
		levels[header[0]] = network.Int
	}
	return r.frame(t, nIndex, header, records[1:], levels, assembler.WeightingHints(header[nIndex:]))
}

func (r *reader) tableFrame(opts format.Options, t table, snapshots *network.Index) (*codec.Frame, error) {
	records, err := r.read(t, false)
	if err != nil {
		return nil, err
	}
	header := records[0]
	class, attr, _ := assembler.SplitKey(t.key)
	cls, _ := opts.Registry.Class(class)

	switch {
	case t.key == codec.ShapesKey:
		values := codec.Hints{codec.GeometryColumn: network.Geometry}
		return r.frame(t, 1, header, records[1:], assembler.NameHints(header[0]), values)
	case attr == codec.StaticSuffix:
		return r.frame(t, 1, header, records[1:], assembler.NameHints(header[0]), assembler.StaticHints(cls))
	default:
		nIndex := len(snapshots.Levels)
		for i, name := range snapshots.Names() {
			if i >= len(header) || header[i] != name {
				return nil, errors.Newf(errors.ErrorTypeSchemaMismatch, "%s: index columns %v do not match snapshot levels %v",
					t.file, header[:min(len(header), nIndex)], snapshots.Names())
			}
		}
		levels, values := assembler.DynamicHints(cls, attr, header[nIndex:], snapshots)
		return r.frame(t, nIndex, header, records[1:], levels, values)
	}
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
