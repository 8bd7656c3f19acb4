// Package xlsx stores networks as a spreadsheet workbook.
//
// # Layout
//
//	network               name, crs and metadata (JSON) of the network
//	_tables               catalog: frame key, sheet, row count, descriptor
//	snapshots             snapshot index levels, then weightings
//	investment_periods    periods and weightings (when present)
//	shapes                shapes with geometries as WKT (when present)
//	<list_name>           static table of a class
//	<list_name>-<attr>    time-varying table of a class
//
// Row 1 of a table sheet holds the column headers; index columns come first
// and are tagged "index:<level>", which keeps multi-level snapshot indexes
// unambiguous in a flat sheet. Numbers, integers and booleans are written as
// typed cells; timestamps, geometries and infinities as text and NaN as a
// blank cell. Sheet names longer than 31 characters are cut and suffixed;
// the catalog maps them back to frame keys and restores exact dtypes.
//
// A workbook without catalog (edited by hand, say) is read by sheet name
// and index tags, with the component schema typing the columns.
package xlsx

import (
	"bytes"
	"context"
	"io"
	"os"
	"strconv"

	"github.com/spf13/afero"
	"github.com/spf13/cast"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/ajitpratap0/gridio/internal/fsutil"
	"github.com/ajitpratap0/gridio/internal/parallel"
	"github.com/ajitpratap0/gridio/pkg/assembler"
	"github.com/ajitpratap0/gridio/pkg/codec"
	"github.com/ajitpratap0/gridio/pkg/errors"
	"github.com/ajitpratap0/gridio/pkg/metrics"
	"github.com/ajitpratap0/gridio/pkg/netio/format"
	"github.com/ajitpratap0/gridio/pkg/network"
)

// Adapter reads and writes workbooks.
type Adapter struct{}

// New creates a workbook adapter.
func New() *Adapter {
	return &Adapter{}
}

// Format returns format.Excel.
func (a *Adapter) Format() format.Format {
	return format.Excel
}

type sheet struct {
	frame *codec.Frame
	name  string
	rows  [][]interface{}
}

// Export writes n to the workbook dest.
func (a *Adapter) Export(ctx context.Context, n *network.Network, dest string, opts format.Options) error {
	opts = opts.Resolve(format.Excel)
	if err := opts.Validate(format.Excel); err != nil {
		return err
	}
	return format.Observe(ctx, opts, format.Excel, metrics.OpExport, dest, func(ctx context.Context, log *zap.Logger) (int, error) {
		parts, err := assembler.Disassemble(n)
		if err != nil {
			return 0, err
		}
		frames, report, err := parts.Encode(ctx, opts.Registry, opts.Policy, opts.Workers)
		if err != nil {
			return 0, err
		}

		names := newNamer()
		sheets := make([]*sheet, len(frames))
		for i, f := range frames {
			sheets[i] = &sheet{frame: f, name: names.name(format.TableName(opts.Registry, f.Key))}
		}
		err = parallel.ForEach(ctx, parallel.Limit(opts.Workers), sheets, func(_ context.Context, _ int, s *sheet) error {
			rows, err := cells(s.frame)
			if err != nil {
				return err
			}
			if len(rows)+1 > excelize.TotalRows || len(s.frame.Fields) > excelize.MaxColumns {
				return errors.Newf(errors.ErrorTypeDestinationUnwritable, "table %s has %d rows and %d columns, more than a sheet holds",
					s.frame.Key, len(rows), len(s.frame.Fields))
			}
			s.rows = rows
			return nil
		})
		if err != nil {
			return 0, err
		}

		header, record, err := parts.NetworkRecord()
		if err != nil {
			return 0, err
		}
		wb, err := build(header, record, sheets, log)
		if err != nil {
			return 0, err
		}
		defer wb.Close()

		err = fsutil.WriteFileAtomic(opts.Fs, dest, func(w io.Writer) error {
			if err := wb.Write(w); err != nil {
				return errors.Wrap(err, errors.ErrorTypeDestinationUnwritable, "failed to write workbook")
			}
			return nil
		})
		if err != nil {
			return 0, err
		}
		format.Declare(opts, log, report)
		return len(frames), nil
	})
}

// build lays out the workbook: network sheet first, then the catalog and
// the tables in frame order.
func build(header, record []string, sheets []*sheet, log *zap.Logger) (*excelize.File, error) {
	wb := excelize.NewFile()
	fail := func(err error, what string) (*excelize.File, error) {
		_ = wb.Close()
		return nil, errors.Propagate(err, errors.ErrorTypeDestinationUnwritable, what)
	}

	if err := wb.SetSheetName(wb.GetSheetName(0), NetworkSheet); err != nil {
		return fail(err, "network sheet")
	}
	first := [][]interface{}{textCells(header), textCells(record)}
	for _, v := range record {
		if len(v) > excelize.TotalCellChars {
			return fail(errors.Newf(errors.ErrorTypeDestinationUnwritable, "network attribute of %d characters does not fit a cell", len(v)), "network sheet")
		}
	}
	if err := writeSheet(wb, NetworkSheet, first); err != nil {
		return fail(err, "network sheet")
	}

	catalog := [][]interface{}{textCells(catalogHeader)}
	for _, s := range sheets {
		d, err := s.frame.Descriptor().Marshal()
		if err != nil {
			return fail(err, "descriptor of "+s.frame.Key)
		}
		catalog = append(catalog, []interface{}{s.frame.Key, s.name, len(s.rows), d})
	}
	if _, err := wb.NewSheet(CatalogSheet); err != nil {
		return fail(err, "catalog sheet")
	}
	if err := writeSheet(wb, CatalogSheet, catalog); err != nil {
		return fail(err, "catalog sheet")
	}

	for _, s := range sheets {
		if _, err := wb.NewSheet(s.name); err != nil {
			return fail(err, "sheet "+s.name)
		}
		body := append([][]interface{}{headerRow(s.frame)}, s.rows...)
		if err := writeSheet(wb, s.name, body); err != nil {
			return fail(err, "sheet "+s.name)
		}
		log.Debug("wrote sheet", zap.String("table", s.frame.Key), zap.String("sheet", s.name), zap.Int("rows", len(s.rows)))
	}
	return wb, nil
}

func textCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func writeSheet(wb *excelize.File, name string, rows [][]interface{}) error {
	sw, err := wb.NewStreamWriter(name)
	if err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	return sw.Flush()
}

// Import reads the network stored in the workbook src.
func (a *Adapter) Import(ctx context.Context, src string, opts format.Options) (*network.Network, error) {
	opts = opts.Resolve(format.Excel)
	if err := opts.Validate(format.Excel); err != nil {
		return nil, err
	}
	var out *network.Network
	err := format.Observe(ctx, opts, format.Excel, metrics.OpImport, src, func(ctx context.Context, log *zap.Logger) (int, error) {
		wb, err := open(opts.Fs, src)
		if err != nil {
			return 0, err
		}
		defer wb.Close()

		parts := assembler.NewParts()
		if contains(wb.GetSheetList(), NetworkSheet) {
			records, err := rows(wb, NetworkSheet)
			if err != nil {
				return 0, err
			}
			if len(records) >= 2 {
				records = pad(records, len(records[0]), 2)
				if err := parts.SetNetworkRecord(records[0], records[1][:len(records[0])]); err != nil {
					return 0, errors.Propagate(err, errors.ErrorTypeSchemaMismatch, "network sheet")
				}
			}
		}

		var frames []*codec.Frame
		if contains(wb.GetSheetList(), CatalogSheet) {
			frames, err = readCatalogued(ctx, wb, opts)
		} else {
			log.Debug("workbook has no table catalog, reading sheets by name")
			frames, err = readUncatalogued(ctx, wb, opts, parts)
		}
		if err != nil {
			return 0, err
		}
		for _, f := range frames {
			if err := parts.AddFrame(f); err != nil {
				return 0, errors.Propagate(err, errors.ErrorTypeSchemaMismatch, "table "+f.Key)
			}
		}

		n, err := assembler.Assemble(parts, opts.Registry)
		if err != nil {
			return 0, err
		}
		out = n
		return len(frames), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func open(fs afero.Fs, src string) (*excelize.File, error) {
	info, err := fs.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(err, errors.ErrorTypeSourceUnreadable, "%s does not exist", src)
		}
		return nil, errors.Wrapf(err, errors.ErrorTypeSourceUnreadable, "cannot access %s", src)
	}
	if info.IsDir() {
		return nil, errors.Newf(errors.ErrorTypeSourceUnreadable, "%s is a directory", src)
	}
	data, err := afero.ReadFile(fs, src)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeSourceUnreadable, "cannot read %s", src)
	}
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeSourceUnreadable, "%s is not a workbook", src)
	}
	return wb, nil
}

// rows returns the raw cell values of a sheet.
func rows(wb *excelize.File, name string) ([][]string, error) {
	out, err := wb.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeSourceUnreadable, "cannot read sheet %s", name)
	}
	return out, nil
}

type entry struct {
	key        string
	sheet      string
	rows       int
	descriptor codec.Descriptor
	records    [][]string
}

// readCatalogued reads the tables listed in the catalog sheet. Sheets are
// read one at a time, cells are parsed in parallel.
func readCatalogued(ctx context.Context, wb *excelize.File, opts format.Options) ([]*codec.Frame, error) {
	catalog, err := rows(wb, CatalogSheet)
	if err != nil {
		return nil, err
	}
	if len(catalog) == 0 {
		return nil, errors.New(errors.ErrorTypeSchemaMismatch, "table catalog is empty")
	}
	present := make(map[string]bool)
	for _, s := range wb.GetSheetList() {
		present[s] = true
	}

	var entries []*entry
	for i, rec := range pad(catalog[1:], len(catalogHeader), 0) {
		count, err := cast.ToIntE(rec[2])
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeSchemaMismatch, "catalog row %d: row count %q", i+2, rec[2])
		}
		d, err := codec.ParseDescriptor(rec[3])
		if err != nil {
			return nil, errors.Propagate(err, errors.ErrorTypeSchemaMismatch, "catalog row "+strconv.Itoa(i+2))
		}
		if !present[rec[1]] {
			return nil, errors.Newf(errors.ErrorTypeSchemaMismatch, "catalog lists sheet %q for table %s but the workbook lacks it", rec[1], rec[0])
		}
		e := &entry{key: rec[0], sheet: rec[1], rows: count, descriptor: d}
		if e.records, err = rows(wb, e.sheet); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return parallel.Map(ctx, parallel.Limit(opts.Workers), entries, func(_ context.Context, e *entry) (*codec.Frame, error) {
		return e.frame()
	})
}

func (e *entry) frame() (*codec.Frame, error) {
	if len(e.records) == 0 {
		return nil, errors.Newf(errors.ErrorTypeSchemaMismatch, "sheet %s has no header", e.sheet)
	}
	names, nIndex, err := untag(e.sheet, e.records[0])
	if err != nil {
		return nil, err
	}
	want := e.descriptor.Fields
	if len(names) != len(want) {
		return nil, errors.Newf(errors.ErrorTypeSchemaMismatch, "sheet %s has %d columns, catalog describes %d", e.sheet, len(names), len(want))
	}
	levels, values := codec.Hints{}, codec.Hints{}
	for i, fd := range want {
		if names[i] != fd.Name || (i < nIndex) != fd.Index {
			return nil, errors.Newf(errors.ErrorTypeSchemaMismatch, "sheet %s column %d is %q, catalog describes %q", e.sheet, i+1, e.records[0][i], fd.Name)
		}
		if fd.Index {
			levels[fd.Name] = fd.Type
		} else {
			values[fd.Name] = fd.Type
		}
	}

	body := pad(e.records[1:], len(names), e.rows)
	if len(body) != e.rows {
		return nil, errors.Newf(errors.ErrorTypeSchemaMismatch, "sheet %s has %d rows, catalog lists %d", e.sheet, len(body), e.rows)
	}
	f, err := codec.TextFrame(e.key, names, body, nIndex)
	if err != nil {
		return nil, errors.Propagate(err, errors.ErrorTypeSchemaMismatch, "sheet "+e.sheet)
	}
	if err := codec.Resolve(f, levels, values); err != nil {
		return nil, errors.Propagate(err, errors.ErrorTypeSchemaMismatch, "sheet "+e.sheet)
	}
	for i, fd := range want {
		f.Fields[i].Float32 = fd.Float32
	}
	return f, nil
}

// readUncatalogued reads every sheet but the network sheet, keyed by sheet
// name. Index columns are the tagged ones; without tags a static sheet is
// indexed by its first column and a time-varying sheet by as many columns
// as the snapshots have levels.
func readUncatalogued(ctx context.Context, wb *excelize.File, opts format.Options, parts *assembler.Parts) ([]*codec.Frame, error) {
	var index, rest []*entry
	for _, name := range wb.GetSheetList() {
		if name == NetworkSheet {
			continue
		}
		records, err := rows(wb, name)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			continue
		}
		e := &entry{key: keyOf(opts.Registry, name), sheet: name, rows: len(records) - 1, records: records}
		if e.key == codec.SnapshotsKey || e.key == codec.InvestmentPeriodsKey {
			index = append(index, e)
		} else {
			rest = append(rest, e)
		}
	}

	var frames []*codec.Frame
	for _, e := range index {
		f, err := e.guess(opts, nil)
		if err != nil {
			return nil, err
		}
		if err := parts.AddFrame(f); err != nil {
			return nil, errors.Propagate(err, errors.ErrorTypeSchemaMismatch, "sheet "+e.sheet)
		}
	}
	snapshots := parts.Snapshots
	if snapshots == nil {
		snapshots = network.NewWithRegistry("", opts.Registry).Snapshots
	}
	more, err := parallel.Map(ctx, parallel.Limit(opts.Workers), rest, func(_ context.Context, e *entry) (*codec.Frame, error) {
		return e.guess(opts, snapshots)
	})
	if err != nil {
		return nil, err
	}
	return append(frames, more...), nil
}

func (e *entry) guess(opts format.Options, snapshots *network.Index) (*codec.Frame, error) {
	names, nIndex, err := untag(e.sheet, e.records[0])
	if err != nil {
		return nil, err
	}
	class, attr, _ := assembler.SplitKey(e.key)
	cls, _ := opts.Registry.Class(class)

	var levels, values codec.Hints
	switch {
	case e.key == codec.SnapshotsKey || e.key == codec.InvestmentPeriodsKey:
		canonical := network.SnapshotWeightingColumns
		if e.key == codec.InvestmentPeriodsKey {
			canonical = network.InvestmentPeriodWeightingColumns
		}
		if nIndex == 0 {
			nIndex = len(names)
			for i, n := range names {
				if contains(canonical, n) {
					nIndex = i
					break
				}
			}
		}
		levels = codec.Hints{}
		if e.key == codec.InvestmentPeriodsKey && nIndex > 0 {
			levels[names[0]] = network.Int
		}
		values = assembler.WeightingHints(names[nIndex:])
	case e.key == codec.ShapesKey:
		nIndex = max(nIndex, 1)
		levels = assembler.NameHints(names[0])
		values = codec.Hints{codec.GeometryColumn: network.Geometry}
	case attr == codec.StaticSuffix:
		nIndex = max(nIndex, 1)
		levels = assembler.NameHints(names[0])
		values = assembler.StaticHints(cls)
	default:
		if nIndex == 0 {
			nIndex = len(snapshots.Levels)
		}
		levels, values = assembler.DynamicHints(cls, attr, names[min(nIndex, len(names)):], snapshots)
	}

	f, err := codec.TextFrame(e.key, names, pad(e.records[1:], len(names), e.rows), nIndex)
	if err != nil {
		return nil, errors.Propagate(err, errors.ErrorTypeSchemaMismatch, "sheet "+e.sheet)
	}
	if err := codec.Resolve(f, levels, values); err != nil {
		return nil, errors.Propagate(err, errors.ErrorTypeSchemaMismatch, "sheet "+e.sheet)
	}
	return f, nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
