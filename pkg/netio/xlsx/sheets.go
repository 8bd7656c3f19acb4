package xlsx

import (
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ajitpratap0/gridio/pkg/codec"
	"github.com/ajitpratap0/gridio/pkg/errors"
	"github.com/ajitpratap0/gridio/pkg/netio/format"
	"github.com/ajitpratap0/gridio/pkg/network"
	"github.com/ajitpratap0/gridio/pkg/schema"
)

// Reserved sheets.
const (
	NetworkSheet = "network"
	CatalogSheet = "_tables"
)

// IndexTag prefixes the header of index columns.
const IndexTag = "index:"

// catalog columns
var catalogHeader = []string{"key", "sheet", "rows", "descriptor"}

const invalidSheetChars = `:\/?*[]`

// namer assigns unique, valid sheet names.
type namer struct {
	used map[string]bool
}

func newNamer() *namer {
	return &namer{used: map[string]bool{
		strings.ToLower(NetworkSheet): true,
		strings.ToLower(CatalogSheet): true,
	}}
}

// name returns a sheet name for base. Characters Excel rejects become "_";
// names longer than the sheet name limit or already taken are cut and get a
// "~<n>" suffix. Sheet names compare case-insensitively.
func (n *namer) name(base string) string {
	base = strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalidSheetChars, r) {
			return '_'
		}
		return r
	}, base)
	base = strings.Trim(base, "'")
	if base == "" {
		base = "table"
	}
	candidate := base
	for i := 1; ; i++ {
		if len([]rune(candidate)) <= excelize.MaxSheetNameLength && !n.used[strings.ToLower(candidate)] {
			n.used[strings.ToLower(candidate)] = true
			return candidate
		}
		suffix := "~" + strconv.Itoa(i)
		r := []rune(base)
		if keep := excelize.MaxSheetNameLength - len(suffix); len(r) > keep {
			r = r[:keep]
		}
		candidate = string(r) + suffix
	}
}

// headerRow renders the first row of a table sheet.
func headerRow(f *codec.Frame) []interface{} {
	out := make([]interface{}, len(f.Fields))
	for i, fd := range f.Fields {
		if fd.Index {
			out[i] = IndexTag + fd.Name
		} else {
			out[i] = fd.Name
		}
	}
	return out
}

// cells renders the rows of f as typed cell values: numbers, booleans and
// text. NaN is a blank cell, infinities and timestamps and geometries are
// text.
func cells(f *codec.Frame) ([][]interface{}, error) {
	cols := make([][]interface{}, len(f.Fields))
	for i, fd := range f.Fields {
		c, err := columnCells(fd.Column)
		if err != nil {
			return nil, errors.Propagate(err, errors.ErrorTypeInternal, "table "+f.Key)
		}
		cols[i] = c
	}
	rows := make([][]interface{}, f.Len())
	for r := range rows {
		row := make([]interface{}, len(cols))
		for i := range cols {
			row[i] = cols[i][r]
		}
		rows[r] = row
	}
	return rows, nil
}

func columnCells(c *network.Column) ([]interface{}, error) {
	out := make([]interface{}, c.Len())
	switch c.Type {
	case network.Float:
		for i, v := range c.Floats() {
			switch {
			case math.IsNaN(v):
				out[i] = nil
			case math.IsInf(v, 0):
				out[i] = codec.FormatFloat(v)
			default:
				out[i] = v
			}
		}
	case network.Int:
		for i, v := range c.Ints() {
			out[i] = v
		}
	case network.Bool:
		for i, v := range c.Bools() {
			out[i] = v
		}
	default:
		text, err := codec.FormatColumn(c)
		if err != nil {
			return nil, err
		}
		for i, s := range text {
			if len(s) > excelize.TotalCellChars {
				return nil, errors.Newf(errors.ErrorTypeDestinationUnwritable,
					"column %s row %d holds %d characters, a cell takes at most %d", c.Name, i+1, len(s), excelize.TotalCellChars)
			}
			out[i] = s
		}
	}
	return out, nil
}

// untag splits a sheet header into column names and the number of leading
// index columns. Index columns must come first.
func untag(sheet string, row []string) ([]string, int, error) {
	names := make([]string, len(row))
	nIndex := 0
	for i, h := range row {
		name, isIndex := strings.CutPrefix(h, IndexTag)
		if isIndex {
			if i != nIndex {
				return nil, 0, errors.Newf(errors.ErrorTypeSchemaMismatch, "sheet %s: index column %q follows value columns", sheet, name)
			}
			nIndex++
		}
		names[i] = name
	}
	return names, nIndex, nil
}

// pad extends every row to width cells; trailing blank cells are not stored
// in a workbook. Rows missing at the end are added when there are fewer
// than rows.
func pad(records [][]string, width, rows int) [][]string {
	for len(records) < rows {
		records = append(records, nil)
	}
	for i, r := range records {
		if len(r) < width {
			records[i] = append(r, make([]string, width-len(r))...)
		}
	}
	return records
}

// keyOf guesses the frame key of a sheet written without a catalog.
func keyOf(r *schema.Registry, sheet string) string {
	return format.TableKey(r, sheet)
}
