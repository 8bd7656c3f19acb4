package codec

import (
	"github.com/ajitpratap0/gridio/pkg/errors"
	"github.com/ajitpratap0/gridio/pkg/network"
	"github.com/ajitpratap0/gridio/pkg/policy"
)

// EncodeTable converts a table to a frame. Float columns pass through p;
// index levels are stored unchanged. A table without columns or rows still
// encodes its index and column set.
func EncodeTable(key string, t *network.Table, p *policy.Policy) (*Frame, error) {
	if t == nil {
		return nil, errors.Newf(errors.ErrorTypeInternal, "table %s is nil", key)
	}
	if err := t.Validate(); err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeSchemaMismatch, "table %s is malformed", key)
	}

	f := &Frame{Key: key, Fields: make([]*Field, 0, len(t.Index.Levels)+len(t.Columns))}
	for _, l := range t.Index.Levels {
		f.Fields = append(f.Fields, &Field{Column: l, Index: true})
	}
	for _, c := range t.Columns {
		fd := &Field{Column: c}
		if c.Type == network.Float && p.Lossy() {
			fd.Column = network.NewFloat(c.Name, p.Apply(c.Floats()))
			fd.Float32 = p.Float32
		}
		f.Fields = append(f.Fields, fd)
	}
	return f, nil
}

// DecodeTable converts a frame back to a table.
func DecodeTable(f *Frame) (*network.Table, error) {
	levels := f.IndexFields()
	if len(levels) == 0 {
		return nil, errors.Newf(errors.ErrorTypeSchemaMismatch, "table %s has no index", f.Key)
	}

	ix := &network.Index{Levels: make([]*network.Column, len(levels))}
	for i, l := range levels {
		ix.Levels[i] = l.Column
	}
	t := network.NewTable(ix)
	for _, fd := range f.ValueFields() {
		t.Columns = append(t.Columns, fd.Column)
	}
	if err := t.Validate(); err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeSchemaMismatch, "table %s is malformed", f.Key)
	}
	return t, nil
}

// Keys of frames inside an artifact.
const (
	SnapshotsKey         = "snapshots"
	InvestmentPeriodsKey = "investment_periods"
	ShapesKey            = "shapes"
	StaticSuffix         = "static"
)

// StaticKey names the frame of a class's static table.
func StaticKey(class string) string {
	return class + "/" + StaticSuffix
}

// DynamicKey names the frame of a class's time-varying attribute table.
func DynamicKey(class, attr string) string {
	return class + "/" + attr
}
