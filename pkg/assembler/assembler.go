// Package assembler splits a network into the tables the codecs persist and
// rebuilds a network from them.
//
// Disassemble leaves out what Assemble can reconstruct from the component
// schema: static columns holding only the schema default, and time-varying
// tables of schema attributes that no component overrides. Assemble restores
// both, so every class present after import has one table per schema
// time-varying attribute, empty (zero columns, snapshot rows) when nothing
// was stored for it.
package assembler

import (
	"sort"

	"github.com/ajitpratap0/gridio/pkg/codec"
	"github.com/ajitpratap0/gridio/pkg/errors"
	"github.com/ajitpratap0/gridio/pkg/meta"
	"github.com/ajitpratap0/gridio/pkg/network"
	"github.com/ajitpratap0/gridio/pkg/schema"
)

// NameLevel is the index level of static and shapes tables.
const NameLevel = "name"

// Parts is a network split into persistable tables.
type Parts struct {
	Name string
	CRS  string
	Meta meta.Value

	Snapshots          *network.Index
	SnapshotWeightings *network.Table

	// InvestmentPeriods is nil when the network has none
	InvestmentPeriods          *network.Index
	InvestmentPeriodWeightings *network.Table

	// Static maps class name to its static table
	Static map[string]*network.Table
	// Dynamic maps class name to attribute to time-varying table
	Dynamic map[string]map[string]*network.Table

	// Shapes is nil when the network has none
	Shapes *network.Table
}

// NewParts returns empty parts.
func NewParts() *Parts {
	return &Parts{
		Meta:    meta.Map(),
		Static:  make(map[string]*network.Table),
		Dynamic: make(map[string]map[string]*network.Table),
	}
}

// SetDynamic records a time-varying table.
func (p *Parts) SetDynamic(class, attr string, t *network.Table) {
	m, ok := p.Dynamic[class]
	if !ok {
		m = make(map[string]*network.Table)
		p.Dynamic[class] = m
	}
	m[attr] = t
}

// Classes returns every class with a static or time-varying table, in
// registry order followed by unknown classes sorted by name.
func (p *Parts) Classes(r *schema.Registry) []string {
	present := make(map[string]bool, len(p.Static))
	for c := range p.Static {
		present[c] = true
	}
	for c := range p.Dynamic {
		present[c] = true
	}
	var out []string
	for _, c := range r.Classes() {
		if present[c.Name] {
			out = append(out, c.Name)
			delete(present, c.Name)
		}
	}
	extra := make([]string, 0, len(present))
	for c := range present {
		extra = append(extra, c)
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// Attributes returns the time-varying attributes stored for class, sorted.
func (p *Parts) Attributes(class string) []string {
	out := make([]string, 0, len(p.Dynamic[class]))
	for a := range p.Dynamic[class] {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Tables counts the component tables.
func (p *Parts) Tables() int {
	n := len(p.Static)
	for _, m := range p.Dynamic {
		n += len(m)
	}
	return n
}

// Disassemble splits n into parts. The network is not modified; tables in
// the result share columns with it.
func Disassemble(n *network.Network) (*Parts, error) {
	if n == nil {
		return nil, errors.New(errors.ErrorTypeInternal, "network is nil")
	}
	if err := n.Snapshots.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSchemaMismatch, "invalid snapshots")
	}

	p := NewParts()
	p.Name = n.Name
	p.CRS = n.CRS
	p.Meta = n.Meta
	p.Snapshots = n.Snapshots
	p.SnapshotWeightings = n.SnapshotWeightings
	p.InvestmentPeriods = n.InvestmentPeriods
	p.InvestmentPeriodWeightings = n.InvestmentPeriodWeightings
	p.Shapes = n.Shapes

	reg := n.Registry()
	for _, class := range n.Classes() {
		c := n.Components[class]
		cls, known := reg.Class(class)

		if c.Static != nil {
			static := network.NewTable(c.Static.Index)
			for _, col := range c.Static.Columns {
				if known && isDefault(cls, col) {
					continue
				}
				static.Columns = append(static.Columns, col)
			}
			p.Static[class] = static
		}

		for attr, t := range c.Dynamic {
			if t == nil {
				continue
			}
			if known && len(t.Columns) == 0 {
				if a, ok := cls.Attribute(attr); ok && a.Varying {
					continue
				}
			}
			p.SetDynamic(class, attr, t)
		}
	}
	return p, nil
}

// isDefault reports whether col is a schema attribute holding its default in
// every row.
func isDefault(cls *schema.Class, col *network.Column) bool {
	a, ok := cls.Attribute(col.Name)
	if !ok || a.Type != col.Type {
		return false
	}
	def, err := network.Fill(col.Name, a.Type, a.Default, col.Len())
	if err != nil {
		return false
	}
	return col.Equal(def)
}

// Assemble builds a network from parts using the component schema r (the
// built-in schema when nil).
func Assemble(p *Parts, r *schema.Registry) (*network.Network, error) {
	if p == nil {
		return nil, errors.New(errors.ErrorTypeInternal, "parts are nil")
	}
	if r == nil {
		r = schema.Default()
	}

	n := network.NewWithRegistry(p.Name, r)
	n.Meta = p.Meta
	if p.CRS != "" {
		n.CRS = p.CRS
	}
	n.Shapes = p.Shapes

	if p.Snapshots != nil {
		if err := p.Snapshots.Validate(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeSchemaMismatch, "invalid snapshots")
		}
		w, err := weightings("snapshot", p.Snapshots, p.SnapshotWeightings, network.SnapshotWeightingColumns)
		if err != nil {
			return nil, err
		}
		n.Snapshots = p.Snapshots
		n.SnapshotWeightings = w
	}
	if p.InvestmentPeriods != nil {
		if err := p.InvestmentPeriods.Validate(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeSchemaMismatch, "invalid investment periods")
		}
		w, err := weightings("investment period", p.InvestmentPeriods, p.InvestmentPeriodWeightings, network.InvestmentPeriodWeightingColumns)
		if err != nil {
			return nil, err
		}
		n.InvestmentPeriods = p.InvestmentPeriods
		n.InvestmentPeriodWeightings = w
	}

	for _, class := range p.Classes(r) {
		cls, known := r.Class(class)
		var (
			c   *network.Component
			err error
		)
		if known {
			c, err = assembleKnown(cls, p.Static[class], p.Dynamic[class], n.Snapshots)
		} else {
			c, err = assembleUnknown(class, p.Static[class], p.Dynamic[class])
		}
		if err != nil {
			return nil, err
		}
		n.Components[class] = c
	}
	return n, nil
}

func weightings(what string, ix *network.Index, w *network.Table, canonical []string) (*network.Table, error) {
	if w == nil {
		w = network.NewTable(ix)
	}
	if !w.Index.Equal(ix) {
		return nil, errors.Newf(errors.ErrorTypeSchemaMismatch, "%s weightings are not aligned with the index", what)
	}
	out, err := codec.AlignWeightings(w, canonical)
	if err != nil {
		return nil, errors.Propagate(err, errors.ErrorTypeSchemaMismatch, what+" weightings")
	}
	out.Index = ix
	return out, nil
}

// nameIndex checks that a static table is keyed by component name and
// returns its index with a string level.
func nameIndex(class string, t *network.Table) (*network.Index, error) {
	if len(t.Index.Levels) != 1 {
		return nil, errors.Newf(errors.ErrorTypeSchemaMismatch, "%s static table has %d index levels", class, len(t.Index.Levels))
	}
	level := t.Index.Levels[0]
	if level.Type == network.String && level.Name == NameLevel {
		return t.Index, nil
	}
	s, err := level.Cast(network.String)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeSchemaMismatch, "%s component names", class)
	}
	return network.NewIndex(s.Rename(NameLevel)), nil
}

func assembleKnown(cls *schema.Class, static *network.Table, dynamic map[string]*network.Table, snapshots *network.Index) (*network.Component, error) {
	if static == nil {
		static = network.NewTable(network.NameIndex())
	}
	ix, err := nameIndex(cls.Name, static)
	if err != nil {
		return nil, err
	}

	out := network.NewTable(ix)
	rows := ix.Len()
	for _, a := range cls.Attributes {
		if a.Varying && a.Status == schema.Output {
			continue
		}
		col := static.Column(a.Name)
		if col == nil {
			col, err = network.Fill(a.Name, a.Type, a.Default, rows)
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrorTypeInternal, "%s default of %s", cls.Name, a.Name)
			}
		} else if col, err = col.Cast(a.Type); err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeSchemaMismatch, "%s attribute %s", cls.Name, a.Name)
		}
		out.Set(col)
	}
	for _, col := range static.Columns {
		if out.Column(col.Name) == nil {
			out.Set(col)
		}
	}

	c := &network.Component{Class: cls.Name, Static: out, Dynamic: make(map[string]*network.Table)}
	for _, a := range cls.Varying() {
		t, ok := dynamic[a.Name]
		if !ok {
			c.Dynamic[a.Name] = network.NewTable(snapshots.Clone())
			continue
		}
		if !t.Index.Equal(snapshots) {
			return nil, errors.Newf(errors.ErrorTypeSchemaMismatch, "%s-%s is not indexed by the snapshots", cls.Name, a.Name)
		}
		typed := network.NewTable(t.Index)
		for _, col := range t.Columns {
			tc, err := col.Cast(a.Type)
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrorTypeSchemaMismatch, "%s-%s", cls.Name, a.Name)
			}
			typed.Columns = append(typed.Columns, tc)
		}
		c.Dynamic[a.Name] = typed
	}
	for attr, t := range dynamic {
		if _, ok := c.Dynamic[attr]; !ok {
			c.Dynamic[attr] = t
		}
	}
	return c, nil
}

func assembleUnknown(class string, static *network.Table, dynamic map[string]*network.Table) (*network.Component, error) {
	if static == nil {
		static = network.NewTable(network.NameIndex())
	}
	ix, err := nameIndex(class, static)
	if err != nil {
		return nil, err
	}
	c := &network.Component{
		Class:   class,
		Static:  network.NewTable(ix, static.Columns...),
		Dynamic: make(map[string]*network.Table, len(dynamic)),
	}
	for attr, t := range dynamic {
		c.Dynamic[attr] = t
	}
	return c, nil
}
