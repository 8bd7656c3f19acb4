package network

import (
	"fmt"
	"math"
	"time"

	"github.com/twpayne/go-geom"

	"github.com/ajitpratap0/gridio/pkg/schema"
)

// DType is the storage-independent type tag of a column.
type DType = schema.DType

// Column dtypes
const (
	Float    = schema.Float
	Int      = schema.Int
	Bool     = schema.Bool
	String   = schema.String
	Time     = schema.Time
	Geometry = schema.Geometry
)

// Column is a named, typed vector. Data holds []float64, []int64, []bool,
// []string, []time.Time or []geom.T according to Type.
type Column struct {
	Name string
	Type DType
	Data interface{}
}

// NewFloat creates a float column
func NewFloat(name string, values []float64) *Column {
	return &Column{Name: name, Type: Float, Data: values}
}

// NewInt creates an int column
func NewInt(name string, values []int64) *Column {
	return &Column{Name: name, Type: Int, Data: values}
}

// NewBool creates a bool column
func NewBool(name string, values []bool) *Column {
	return &Column{Name: name, Type: Bool, Data: values}
}

// NewString creates a string column
func NewString(name string, values []string) *Column {
	return &Column{Name: name, Type: String, Data: values}
}

// NewTime creates a timestamp column. Values are normalised to UTC.
func NewTime(name string, values []time.Time) *Column {
	for i := range values {
		values[i] = values[i].UTC()
	}
	return &Column{Name: name, Type: Time, Data: values}
}

// NewGeometry creates a geometry column; nil entries are missing geometries.
func NewGeometry(name string, values []geom.T) *Column {
	return &Column{Name: name, Type: Geometry, Data: values}
}

// NewColumn creates a column of n missing values of type t.
func NewColumn(name string, t DType, n int) *Column {
	switch t {
	case Float:
		v := make([]float64, n)
		for i := range v {
			v[i] = math.NaN()
		}
		return NewFloat(name, v)
	case Int:
		return NewInt(name, make([]int64, n))
	case Bool:
		return NewBool(name, make([]bool, n))
	case Time:
		return NewTime(name, make([]time.Time, n))
	case Geometry:
		return NewGeometry(name, make([]geom.T, n))
	default:
		return NewString(name, make([]string, n))
	}
}

// Fill creates a column of n copies of v.
func Fill(name string, t DType, v interface{}, n int) (*Column, error) {
	c := NewColumn(name, t, 0)
	for i := 0; i < n; i++ {
		if err := c.Append(v); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Len returns the number of values
func (c *Column) Len() int {
	switch d := c.Data.(type) {
	case []float64:
		return len(d)
	case []int64:
		return len(d)
	case []bool:
		return len(d)
	case []string:
		return len(d)
	case []time.Time:
		return len(d)
	case []geom.T:
		return len(d)
	default:
		return 0
	}
}

// Floats returns the data of a float column, or nil.
func (c *Column) Floats() []float64 {
	v, _ := c.Data.([]float64)
	return v
}

// Ints returns the data of an int column, or nil.
func (c *Column) Ints() []int64 {
	v, _ := c.Data.([]int64)
	return v
}

// Bools returns the data of a bool column, or nil.
func (c *Column) Bools() []bool {
	v, _ := c.Data.([]bool)
	return v
}

// Strings returns the data of a string column, or nil.
func (c *Column) Strings() []string {
	v, _ := c.Data.([]string)
	return v
}

// Times returns the data of a time column, or nil.
func (c *Column) Times() []time.Time {
	v, _ := c.Data.([]time.Time)
	return v
}

// Geometries returns the data of a geometry column, or nil.
func (c *Column) Geometries() []geom.T {
	v, _ := c.Data.([]geom.T)
	return v
}

// Value returns the i-th value boxed.
func (c *Column) Value(i int) interface{} {
	switch d := c.Data.(type) {
	case []float64:
		return d[i]
	case []int64:
		return d[i]
	case []bool:
		return d[i]
	case []string:
		return d[i]
	case []time.Time:
		return d[i]
	case []geom.T:
		return d[i]
	default:
		return nil
	}
}

// Validate checks that Data matches Type.
func (c *Column) Validate() error {
	ok := false
	switch c.Type {
	case Float:
		_, ok = c.Data.([]float64)
	case Int:
		_, ok = c.Data.([]int64)
	case Bool:
		_, ok = c.Data.([]bool)
	case String:
		_, ok = c.Data.([]string)
	case Time:
		_, ok = c.Data.([]time.Time)
	case Geometry:
		_, ok = c.Data.([]geom.T)
	}
	if !ok {
		return fmt.Errorf("column %q: data %T does not match dtype %s", c.Name, c.Data, c.Type)
	}
	return nil
}

// Append converts v to the column's dtype and appends it. A nil v appends a
// missing value.
func (c *Column) Append(v interface{}) error {
	switch c.Type {
	case Float:
		f := math.NaN()
		if v != nil {
			var ok bool
			if f, ok = toFloat(v); !ok {
				return fmt.Errorf("column %q: cannot store %T as float", c.Name, v)
			}
		}
		c.Data = append(c.Floats(), f)
	case Int:
		var i int64
		switch x := v.(type) {
		case nil:
		case int:
			i = int64(x)
		case int32:
			i = int64(x)
		case int64:
			i = x
		case float64:
			if x != math.Trunc(x) {
				return fmt.Errorf("column %q: %v is not an integer", c.Name, x)
			}
			i = int64(x)
		default:
			return fmt.Errorf("column %q: cannot store %T as int", c.Name, v)
		}
		c.Data = append(c.Ints(), i)
	case Bool:
		b, ok := v.(bool)
		if !ok && v != nil {
			return fmt.Errorf("column %q: cannot store %T as bool", c.Name, v)
		}
		c.Data = append(c.Bools(), b)
	case String:
		s, ok := v.(string)
		if !ok && v != nil {
			s = fmt.Sprint(v)
		}
		c.Data = append(c.Strings(), s)
	case Time:
		t, ok := v.(time.Time)
		if !ok && v != nil {
			return fmt.Errorf("column %q: cannot store %T as time", c.Name, v)
		}
		c.Data = append(c.Times(), t.UTC())
	case Geometry:
		var g geom.T
		if v != nil {
			var ok bool
			if g, ok = v.(geom.T); !ok {
				return fmt.Errorf("column %q: cannot store %T as geometry", c.Name, v)
			}
		}
		c.Data = append(c.Geometries(), g)
	default:
		return fmt.Errorf("column %q: unknown dtype %s", c.Name, c.Type)
	}
	return nil
}

// Take returns a column holding the values at positions idx; -1 yields a missing value.
func (c *Column) Take(idx []int) *Column {
	out := NewColumn(c.Name, c.Type, len(idx))
	for i, j := range idx {
		if j < 0 {
			continue
		}
		switch d := c.Data.(type) {
		case []float64:
			out.Floats()[i] = d[j]
		case []int64:
			out.Ints()[i] = d[j]
		case []bool:
			out.Bools()[i] = d[j]
		case []string:
			out.Strings()[i] = d[j]
		case []time.Time:
			out.Times()[i] = d[j]
		case []geom.T:
			out.Geometries()[i] = d[j]
		}
	}
	return out
}

// Clone returns a deep copy of the column. Geometries are shared.
func (c *Column) Clone() *Column {
	out := &Column{Name: c.Name, Type: c.Type}
	switch d := c.Data.(type) {
	case []float64:
		out.Data = append([]float64(nil), d...)
	case []int64:
		out.Data = append([]int64(nil), d...)
	case []bool:
		out.Data = append([]bool(nil), d...)
	case []string:
		out.Data = append([]string(nil), d...)
	case []time.Time:
		out.Data = append([]time.Time(nil), d...)
	case []geom.T:
		out.Data = append([]geom.T(nil), d...)
	}
	return out
}

// Rename returns a shallow copy of the column under a new name.
func (c *Column) Rename(name string) *Column {
	return &Column{Name: name, Type: c.Type, Data: c.Data}
}

// Cast converts the column to dtype t. Conversions that would change values
// (fractional floats to int, arbitrary text to numbers) fail.
func (c *Column) Cast(t DType) (*Column, error) {
	if c.Type == t {
		return c, nil
	}
	n := c.Len()
	out := NewColumn(c.Name, t, 0)
	switch {
	case c.Type == String:
		strs := c.Strings()
		for i := 0; i < n; i++ {
			v, err := parseText(t, strs[i])
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", c.Name, i, err)
			}
			if err := out.Append(v); err != nil {
				return nil, err
			}
		}
	case t == String:
		for i := 0; i < n; i++ {
			if err := out.Append(fmt.Sprint(c.Value(i))); err != nil {
				return nil, err
			}
		}
	case t == Float && c.Type == Int:
		for _, v := range c.Ints() {
			out.Data = append(out.Floats(), float64(v))
		}
	case t == Float && c.Type == Bool:
		for _, v := range c.Bools() {
			f := 0.0
			if v {
				f = 1
			}
			out.Data = append(out.Floats(), f)
		}
	case t == Int && c.Type == Float:
		for i, v := range c.Floats() {
			if v != math.Trunc(v) || math.IsNaN(v) {
				return nil, fmt.Errorf("column %q row %d: %v is not an integer", c.Name, i, v)
			}
			out.Data = append(out.Ints(), int64(v))
		}
	case t == Bool && c.Type == Int:
		for _, v := range c.Ints() {
			out.Data = append(out.Bools(), v != 0)
		}
	case t == Bool && c.Type == Float:
		for _, v := range c.Floats() {
			out.Data = append(out.Bools(), v != 0 && !math.IsNaN(v))
		}
	default:
		return nil, fmt.Errorf("column %q: cannot cast %s to %s", c.Name, c.Type, t)
	}
	return out, nil
}

// Equal reports whether two columns hold the same name, dtype and values.
// NaN equals NaN; geometries compare by layout and coordinates.
func (c *Column) Equal(o *Column) bool {
	if c.Name != o.Name || c.Type != o.Type || c.Len() != o.Len() {
		return false
	}
	for i := 0; i < c.Len(); i++ {
		if !valueEqual(c.Value(i), o.Value(i)) {
			return false
		}
	}
	return true
}

func valueEqual(a, b interface{}) bool {
	switch x := a.(type) {
	case float64:
		y := b.(float64)
		return x == y || (math.IsNaN(x) && math.IsNaN(y))
	case time.Time:
		return x.Equal(b.(time.Time))
	case geom.T:
		y, _ := b.(geom.T)
		return GeometryEqual(x, y)
	case nil:
		return b == nil
	default:
		return a == b
	}
}

// GeometryEqual compares two geometries by type, layout and flat coordinates.
func GeometryEqual(a, b geom.T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fmt.Sprintf("%T", a) != fmt.Sprintf("%T", b) || a.Layout() != b.Layout() {
		return false
	}
	ac, bc := a.FlatCoords(), b.FlatCoords()
	if len(ac) != len(bc) {
		return false
	}
	for i := range ac {
		if ac[i] != bc[i] {
			return false
		}
	}
	ae, be := a.Ends(), b.Ends()
	if len(ae) != len(be) {
		return false
	}
	for i := range ae {
		if ae[i] != be[i] {
			return false
		}
	}
	return true
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func parseText(t DType, s string) (interface{}, error) {
	if s == "" {
		if t == Int {
			return nil, fmt.Errorf("missing integer")
		}
		return nil, nil
	}
	switch t {
	case Float:
		return schema.ParseFloat(s)
	case Int:
		f, err := schema.ParseFloat(s)
		if err != nil {
			return nil, err
		}
		return f, nil
	case Bool:
		b, ok := schema.ParseBool(s)
		if !ok {
			return nil, fmt.Errorf("%q is not a boolean", s)
		}
		return b, nil
	case Time:
		return schema.ParseTime(s)
	default:
		return nil, fmt.Errorf("cannot parse text as %s", t)
	}
}
