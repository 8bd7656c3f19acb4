package codec

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/twpayne/go-geom"

	"github.com/ajitpratap0/gridio/pkg/errors"
	"github.com/ajitpratap0/gridio/pkg/network"
	"github.com/ajitpratap0/gridio/pkg/schema"
)

// TimeLayout is how timestamps are written to text cells, always in UTC.
const TimeLayout = "2006-01-02 15:04:05.999999999"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// FormatFloat renders v so that it parses back to the same float64 and is
// still recognised as a float: integral values keep a ".0" suffix. NaN is
// the empty cell.
func FormatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return ""
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// FormatBool renders booleans the way dataframe tools do.
func FormatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// FormatCell renders one value as text.
func FormatCell(v interface{}) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case float64:
		return FormatFloat(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case bool:
		return FormatBool(x), nil
	case string:
		return x, nil
	case time.Time:
		return FormatTime(x), nil
	case geom.T:
		return MarshalWKT(x)
	default:
		return "", errors.Newf(errors.ErrorTypeInternal, "cannot format %T as text", v)
	}
}

// FormatColumn renders every value of c as text.
func FormatColumn(c *network.Column) ([]string, error) {
	out := make([]string, c.Len())
	for i := range out {
		s, err := FormatCell(c.Value(i))
		if err != nil {
			return nil, errors.Propagate(err, errors.ErrorTypeInternal, "column "+c.Name)
		}
		out[i] = s
	}
	return out, nil
}

// ParseCell parses a text cell as dtype t. A blank cell is a missing value
// (nil) except for strings, which are kept as written; integers have no
// missing value.
func ParseCell(t network.DType, s string) (interface{}, error) {
	if t == network.String {
		return s, nil
	}
	if strings.TrimSpace(s) == "" {
		if t == network.Int {
			return nil, errors.New(errors.ErrorTypeSchemaMismatch, "empty integer cell")
		}
		return nil, nil
	}
	switch t {
	case network.Float:
		v, err := schema.ParseFloat(s)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeSchemaMismatch, "%q is not a number", s)
		}
		return v, nil
	case network.Int:
		v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeSchemaMismatch, "%q is not an integer", s)
		}
		return v, nil
	case network.Bool:
		v, ok := schema.ParseBool(s)
		if !ok {
			if f, err := schema.ParseFloat(s); err == nil && (f == 0 || f == 1) {
				return f == 1, nil
			}
			return nil, errors.Newf(errors.ErrorTypeSchemaMismatch, "%q is not a boolean", s)
		}
		return v, nil
	case network.Time:
		v, err := schema.ParseTime(s)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeSchemaMismatch, "%q is not a timestamp", s)
		}
		return v, nil
	case network.Geometry:
		g, err := UnmarshalWKT(s)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeInternal, "unknown dtype %s", t)
	}
}

// ParseColumn parses text cells into a column of dtype t.
func ParseColumn(name string, t network.DType, cells []string) (*network.Column, error) {
	c := network.NewColumn(name, t, 0)
	for i, s := range cells {
		v, err := ParseCell(t, s)
		if err != nil {
			return nil, errors.Propagate(err, errors.ErrorTypeSchemaMismatch, "column "+name+" row "+strconv.Itoa(i+1))
		}
		if err := c.Append(v); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeSchemaMismatch, "column "+name)
		}
	}
	return c, nil
}

var inference = schema.NewTypeInferenceEngine(nil)

// InferColumn types text cells that carry no declared dtype.
func InferColumn(name string, cells []string) (*network.Column, error) {
	return ParseColumn(name, inference.InferType(name, cells).Type, cells)
}

// Hints maps field names to known dtypes.
type Hints map[string]network.DType

// Resolve replaces every text field of f with a typed field: index fields
// named in levels and value fields named in values are parsed as that dtype,
// the rest are inferred. Non-text fields are left alone.
func Resolve(f *Frame, levels, values Hints) error {
	for _, fd := range f.Fields {
		if fd.Type != network.String {
			continue
		}
		cells := fd.Strings()
		hints := values
		if fd.Index {
			hints = levels
		}
		var (
			c   *network.Column
			err error
		)
		if t, ok := hints[fd.Name]; ok {
			c, err = ParseColumn(fd.Name, t, cells)
		} else {
			c, err = InferColumn(fd.Name, cells)
		}
		if err != nil {
			return errors.Propagate(err, errors.ErrorTypeSchemaMismatch, "table "+f.Key)
		}
		fd.Column = c
	}
	return nil
}

// TextFrame builds a frame whose fields are all text, as read from a
// delimited file or worksheet: the first nIndex columns are index levels.
func TextFrame(key string, header []string, rows [][]string, nIndex int) (*Frame, error) {
	if nIndex < 1 || nIndex > len(header) {
		return nil, errors.Newf(errors.ErrorTypeSchemaMismatch, "table %s: header %v has no index columns", key, header)
	}
	cols := make([][]string, len(header))
	for i := range cols {
		cols[i] = make([]string, len(rows))
	}
	for r, row := range rows {
		if len(row) != len(header) {
			return nil, errors.Newf(errors.ErrorTypeSchemaMismatch, "table %s row %d has %d cells, header has %d", key, r+1, len(row), len(header))
		}
		for i, cell := range row {
			cols[i][r] = cell
		}
	}
	f := &Frame{Key: key, Fields: make([]*Field, len(header))}
	// a value column may share its name with an index level
	levels := make(map[string]bool, nIndex)
	values := make(map[string]bool, len(header)-nIndex)
	for i, name := range header {
		seen := values
		if i < nIndex {
			seen = levels
		}
		if seen[name] {
			return nil, errors.Newf(errors.ErrorTypeSchemaMismatch, "table %s has duplicate column %q", key, name)
		}
		seen[name] = true
		f.Fields[i] = &Field{Column: network.NewString(name, cols[i]), Index: i < nIndex}
	}
	return f, nil
}

// TextRows renders a frame as a header and rows of text cells.
func TextRows(f *Frame) ([]string, [][]string, error) {
	header := make([]string, len(f.Fields))
	cols := make([][]string, len(f.Fields))
	for i, fd := range f.Fields {
		header[i] = fd.Name
		cells, err := FormatColumn(fd.Column)
		if err != nil {
			return nil, nil, err
		}
		cols[i] = cells
	}
	rows := make([][]string, f.Len())
	for r := range rows {
		row := make([]string, len(cols))
		for i := range cols {
			row[i] = cols[i][r]
		}
		rows[r] = row
	}
	return header, rows, nil
}
