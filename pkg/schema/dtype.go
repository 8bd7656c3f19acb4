package schema

import "fmt"

// DType is the storage-independent type tag of a column.
type DType string

const (
	// Float is a 64-bit float column; NaN marks a missing value
	Float DType = "float"
	// Int is a 64-bit signed integer column
	Int DType = "int"
	// Bool is a boolean column
	Bool DType = "bool"
	// String is a text column
	String DType = "string"
	// Time is a timestamp column at nanosecond resolution, UTC
	Time DType = "time"
	// Geometry is a column of geometries; nil marks a missing geometry
	Geometry DType = "geometry"
)

// ParseDType validates a dtype tag read from storage.
func ParseDType(s string) (DType, error) {
	switch d := DType(s); d {
	case Float, Int, Bool, String, Time, Geometry:
		return d, nil
	default:
		return "", fmt.Errorf("unknown dtype %q", s)
	}
}

// Numeric reports whether values of d are numbers.
func (d DType) Numeric() bool {
	return d == Float || d == Int
}
