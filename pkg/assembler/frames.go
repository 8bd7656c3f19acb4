package assembler

import (
	"context"
	"strings"

	"github.com/ajitpratap0/gridio/internal/parallel"
	"github.com/ajitpratap0/gridio/pkg/codec"
	"github.com/ajitpratap0/gridio/pkg/errors"
	"github.com/ajitpratap0/gridio/pkg/meta"
	"github.com/ajitpratap0/gridio/pkg/network"
	"github.com/ajitpratap0/gridio/pkg/policy"
	"github.com/ajitpratap0/gridio/pkg/schema"
)

type job struct {
	key string
	run func() (*codec.Frame, error)
}

// Encode converts parts to frames through policy pol, at most workers tables
// at a time. Frames come back in a stable order: snapshots, investment
// periods, shapes, then each class's static table followed by its
// time-varying tables sorted by attribute. The report counts the float
// columns pol was applied to.
func (p *Parts) Encode(ctx context.Context, r *schema.Registry, pol *policy.Policy, workers int) ([]*codec.Frame, policy.Report, error) {
	if r == nil {
		r = schema.Default()
	}
	var jobs []job
	if p.Snapshots != nil {
		jobs = append(jobs, job{codec.SnapshotsKey, func() (*codec.Frame, error) {
			return codec.EncodeIndex(codec.SnapshotsKey, p.Snapshots, p.SnapshotWeightings, pol)
		}})
	}
	if p.InvestmentPeriods != nil {
		jobs = append(jobs, job{codec.InvestmentPeriodsKey, func() (*codec.Frame, error) {
			return codec.EncodeIndex(codec.InvestmentPeriodsKey, p.InvestmentPeriods, p.InvestmentPeriodWeightings, pol)
		}})
	}
	if p.Shapes != nil {
		jobs = append(jobs, job{codec.ShapesKey, func() (*codec.Frame, error) {
			return codec.EncodeShapes(p.Shapes, pol)
		}})
	}
	for _, class := range p.Classes(r) {
		if t, ok := p.Static[class]; ok {
			key := codec.StaticKey(class)
			jobs = append(jobs, job{key, func() (*codec.Frame, error) { return codec.EncodeTable(key, t, pol) }})
		}
		for _, attr := range p.Attributes(class) {
			key, t := codec.DynamicKey(class, attr), p.Dynamic[class][attr]
			jobs = append(jobs, job{key, func() (*codec.Frame, error) { return codec.EncodeTable(key, t, pol) }})
		}
	}

	frames, err := parallel.Map(ctx, parallel.Limit(workers), jobs, func(_ context.Context, j job) (*codec.Frame, error) {
		return j.run()
	})
	if err != nil {
		return nil, policy.Report{}, err
	}
	columns := 0
	for _, f := range frames {
		columns += f.FloatColumns()
	}
	return frames, pol.Report(columns), nil
}

// SplitKey returns the class and table part of a component frame key, e.g.
// ("Generator", "static") for "Generator/static".
func SplitKey(key string) (class, table string, ok bool) {
	i := strings.LastIndexByte(key, '/')
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}

// AddFrame decodes f into p according to its key.
func (p *Parts) AddFrame(f *codec.Frame) error {
	switch f.Key {
	case codec.SnapshotsKey:
		ix, w, err := codec.DecodeIndex(f, network.SnapshotWeightingColumns)
		if err != nil {
			return err
		}
		p.Snapshots, p.SnapshotWeightings = ix, w
	case codec.InvestmentPeriodsKey:
		ix, w, err := codec.DecodeIndex(f, network.InvestmentPeriodWeightingColumns)
		if err != nil {
			return err
		}
		p.InvestmentPeriods, p.InvestmentPeriodWeightings = ix, w
	case codec.ShapesKey:
		t, err := codec.DecodeShapes(f)
		if err != nil {
			return err
		}
		p.Shapes = t
	default:
		class, table, ok := SplitKey(f.Key)
		if !ok {
			return errors.Newf(errors.ErrorTypeSchemaMismatch, "unexpected table %q", f.Key)
		}
		t, err := codec.DecodeTable(f)
		if err != nil {
			return err
		}
		if table == codec.StaticSuffix {
			p.Static[class] = t
		} else {
			p.SetDynamic(class, table, t)
		}
	}
	return nil
}

// StaticHints returns the dtypes of the static columns of cls, for typing
// text read from delimited files and worksheets.
func StaticHints(cls *schema.Class) codec.Hints {
	h := codec.Hints{}
	if cls == nil {
		return h
	}
	for _, a := range cls.Attributes {
		h[a.Name] = a.Type
	}
	return h
}

// NameHints types the index level of a table keyed by component name.
func NameHints(level string) codec.Hints {
	return codec.Hints{level: network.String}
}

// DynamicHints types the index levels of a time-varying table of attr like
// the snapshots, and its value columns like the attribute. Value columns are
// component names and may repeat a level name.
func DynamicHints(cls *schema.Class, attr string, columns []string, snapshots *network.Index) (levels, values codec.Hints) {
	t := network.Float
	if cls != nil {
		if a, ok := cls.Attribute(attr); ok {
			t = a.Type
		}
	}
	values = make(codec.Hints, len(columns))
	for _, c := range columns {
		values[c] = t
	}
	return IndexHints(snapshots), values
}

// IndexHints maps each level of ix to its dtype.
func IndexHints(ix *network.Index) codec.Hints {
	h := codec.Hints{}
	if ix == nil {
		return h
	}
	for _, l := range ix.Levels {
		h[l.Name] = l.Type
	}
	return h
}

// WeightingHints types weighting columns as floats.
func WeightingHints(columns []string) codec.Hints {
	h := codec.Hints{}
	for _, c := range columns {
		h[c] = network.Float
	}
	return h
}

// Columns of the network attribute record.
const (
	AttrName = "name"
	AttrCRS  = "crs"
	AttrMeta = "meta"
)

// NetworkRecord renders the network attributes as one header and one row of
// text, with the metadata as a JSON document.
func (p *Parts) NetworkRecord() ([]string, []string, error) {
	m, err := meta.Encode(p.Meta)
	if err != nil {
		return nil, nil, errors.Propagate(err, errors.ErrorTypeInternal, "network metadata")
	}
	return []string{AttrName, AttrCRS, AttrMeta}, []string{p.Name, p.CRS, m}, nil
}

// SetNetworkRecord reads the network attributes from a record written by
// NetworkRecord. Unknown columns are ignored and missing ones keep their
// current value.
func (p *Parts) SetNetworkRecord(header, row []string) error {
	if len(header) != len(row) {
		return errors.Newf(errors.ErrorTypeSchemaMismatch, "network record has %d values for %d columns", len(row), len(header))
	}
	for i, h := range header {
		switch h {
		case AttrName:
			p.Name = row[i]
		case AttrCRS:
			p.CRS = row[i]
		case AttrMeta:
			m, err := meta.Decode(row[i])
			if err != nil {
				return err
			}
			p.Meta = m
		}
	}
	return nil
}
