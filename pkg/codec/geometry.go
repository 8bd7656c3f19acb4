package codec

import (
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/ajitpratap0/gridio/pkg/errors"
	"github.com/ajitpratap0/gridio/pkg/network"
	"github.com/ajitpratap0/gridio/pkg/policy"
)

// GeometryColumn is the name of the geometry column of the shapes table.
const GeometryColumn = "geometry"

// EncodeShapes converts the shapes table to a frame. The geometry column is
// required; missing geometries are nil and stay nil.
func EncodeShapes(t *network.Table, p *policy.Policy) (*Frame, error) {
	c := t.Column(GeometryColumn)
	if c == nil || c.Type != network.Geometry {
		return nil, errors.Newf(errors.ErrorTypeSchemaMismatch, "shapes table needs a %q geometry column", GeometryColumn)
	}
	return EncodeTable(ShapesKey, t, p)
}

// DecodeShapes rebuilds the shapes table. A geometry column that arrives as
// text (WKT) or binary-as-text is parsed.
func DecodeShapes(f *Frame) (*network.Table, error) {
	t, err := DecodeTable(f)
	if err != nil {
		return nil, err
	}
	c := t.Column(GeometryColumn)
	if c == nil {
		return nil, errors.Newf(errors.ErrorTypeSchemaMismatch, "shapes table has no %q column", GeometryColumn)
	}
	if c.Type == network.String {
		g, err := ParseWKTColumn(c)
		if err != nil {
			return nil, err
		}
		t.Set(g)
	}
	return t, nil
}

// MarshalWKB encodes g as little-endian WKB. A nil geometry yields nil.
func MarshalWKB(g geom.T) ([]byte, error) {
	if g == nil {
		return nil, nil
	}
	b, err := wkb.Marshal(g, wkb.NDR)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSchemaMismatch, "failed to encode geometry as WKB")
	}
	return b, nil
}

// UnmarshalWKB decodes WKB. Empty input yields a nil geometry.
func UnmarshalWKB(b []byte) (geom.T, error) {
	if len(b) == 0 {
		return nil, nil
	}
	g, err := wkb.Unmarshal(b)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSourceUnreadable, "failed to decode WKB geometry")
	}
	return g, nil
}

// MarshalWKT encodes g as WKT. A nil geometry yields "".
func MarshalWKT(g geom.T) (string, error) {
	if g == nil {
		return "", nil
	}
	s, err := wkt.Marshal(g)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeSchemaMismatch, "failed to encode geometry as WKT")
	}
	return s, nil
}

// UnmarshalWKT decodes WKT. An empty string yields a nil geometry.
func UnmarshalWKT(s string) (geom.T, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeSourceUnreadable, "failed to decode WKT geometry %q", truncate(s, 40))
	}
	return g, nil
}

// ParseWKTColumn converts a text column of WKT to a geometry column.
func ParseWKTColumn(c *network.Column) (*network.Column, error) {
	cells := c.Strings()
	out := make([]geom.T, len(cells))
	for i, s := range cells {
		g, err := UnmarshalWKT(s)
		if err != nil {
			return nil, errors.Propagate(err, errors.ErrorTypeSourceUnreadable, "column "+c.Name)
		}
		out[i] = g
	}
	return network.NewGeometry(c.Name, out), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
