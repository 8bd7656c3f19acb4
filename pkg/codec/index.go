package codec

import (
	"github.com/ajitpratap0/gridio/pkg/errors"
	"github.com/ajitpratap0/gridio/pkg/network"
	"github.com/ajitpratap0/gridio/pkg/policy"
)

// EncodeIndex converts an index and its weightings to a frame. Weightings
// may be nil, in which case only the index levels are stored.
func EncodeIndex(key string, ix *network.Index, weightings *network.Table, p *policy.Policy) (*Frame, error) {
	if ix == nil {
		return nil, errors.Newf(errors.ErrorTypeInternal, "index %s is nil", key)
	}
	t := weightings
	if t == nil {
		t = network.NewTable(ix)
	} else if !t.Index.Equal(ix) {
		return nil, errors.Newf(errors.ErrorTypeSchemaMismatch, "weightings of %s are not aligned with the index", key)
	}
	return EncodeTable(key, t, p)
}

// DecodeIndex rebuilds an index and its weightings. Weighting columns are
// matched by name and returned in the order of canonical; canonical columns
// missing from the frame default to 1, others are kept after them.
func DecodeIndex(f *Frame, canonical []string) (*network.Index, *network.Table, error) {
	t, err := DecodeTable(f)
	if err != nil {
		return nil, nil, err
	}
	w, err := AlignWeightings(t, canonical)
	if err != nil {
		return nil, nil, errors.Propagate(err, errors.ErrorTypeSchemaMismatch, "weightings of "+f.Key)
	}
	return t.Index, w, nil
}

// AlignWeightings orders weighting columns canonically and fills gaps with 1.
func AlignWeightings(t *network.Table, canonical []string) (*network.Table, error) {
	out := network.NewTable(t.Index)
	for _, name := range canonical {
		c := t.Column(name)
		if c == nil {
			ones := make([]float64, t.Len())
			for i := range ones {
				ones[i] = 1
			}
			out.Set(network.NewFloat(name, ones))
			continue
		}
		fc, err := c.Cast(network.Float)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeSchemaMismatch, "weighting %s is not numeric", name)
		}
		out.Set(fc)
	}
	for _, c := range t.Columns {
		if out.Column(c.Name) == nil {
			out.Set(c)
		}
	}
	return out, nil
}
