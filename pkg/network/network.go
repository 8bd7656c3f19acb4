// Package network holds the in-memory model that gridio persists: component
// tables, the snapshot index with its weightings, investment periods,
// free-form metadata and optional shapes.
package network

import (
	"fmt"
	"sort"

	"github.com/ajitpratap0/gridio/pkg/meta"
	"github.com/ajitpratap0/gridio/pkg/schema"
)

// DefaultCRS is assumed when a persisted network records no CRS.
const DefaultCRS = "EPSG:4326"

// Weighting column sets, in canonical order.
var (
	SnapshotWeightingColumns         = []string{"objective", "stores", "generators"}
	InvestmentPeriodWeightingColumns = []string{"objective", "years"}
)

// Snapshot index level names.
const (
	SnapshotLevel = "snapshot"
	PeriodLevel   = "period"
	TimestepLevel = "timestep"
)

// Component holds the tables of one component class.
type Component struct {
	Class string
	// Static has one row per component, indexed by "name"
	Static *Table
	// Dynamic maps a varying attribute to a table indexed by snapshot whose
	// columns are the components overriding the static value
	Dynamic map[string]*Table
}

// Len returns the number of components
func (c *Component) Len() int {
	return c.Static.Len()
}

// Names returns the component names
func (c *Component) Names() []string {
	return c.Static.Index.Levels[0].Strings()
}

// Network is the in-memory model
type Network struct {
	Name string

	Snapshots          *Index
	SnapshotWeightings *Table

	InvestmentPeriods          *Index
	InvestmentPeriodWeightings *Table

	// Components by class name
	Components map[string]*Component

	Meta meta.Value

	// Shapes is indexed by shape name and has a "geometry" column
	Shapes *Table
	CRS    string

	registry *schema.Registry
}

// New creates an empty network with the single snapshot "now".
func New(name string) *Network {
	return NewWithRegistry(name, schema.Default())
}

// NewWithRegistry is New with a custom component schema.
func NewWithRegistry(name string, r *schema.Registry) *Network {
	n := &Network{
		Name:       name,
		Components: make(map[string]*Component),
		Meta:       meta.Map(),
		CRS:        DefaultCRS,
		registry:   r,
	}
	_ = n.SetSnapshots(NewString(SnapshotLevel, []string{"now"}))
	return n
}

// Registry returns the component schema of the network
func (n *Network) Registry() *schema.Registry {
	if n.registry == nil {
		return schema.Default()
	}
	return n.registry
}

// Component returns the tables of a class, or nil if none were added.
func (n *Network) Component(class string) *Component {
	return n.Components[class]
}

// Classes returns the names of classes holding components, in schema order
// followed by unknown classes sorted by name.
func (n *Network) Classes() []string {
	out := make([]string, 0, len(n.Components))
	known := make(map[string]bool)
	for _, c := range n.Registry().Classes() {
		known[c.Name] = true
		if _, ok := n.Components[c.Name]; ok {
			out = append(out, c.Name)
		}
	}
	var extra []string
	for name := range n.Components {
		if !known[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// SetSnapshots replaces the snapshot index. Weightings reset to 1 and every
// time-varying table is realigned to the new index.
func (n *Network) SetSnapshots(levels ...*Column) error {
	ix := NewIndex(levels...)
	if err := ix.Validate(); err != nil {
		return fmt.Errorf("invalid snapshots: %w", err)
	}
	n.Snapshots = ix
	n.SnapshotWeightings = onesTable(ix, SnapshotWeightingColumns)
	for _, c := range n.Components {
		for attr, t := range c.Dynamic {
			c.Dynamic[attr] = t.Reindex(ix)
		}
	}
	return nil
}

// SetInvestmentPeriods sets the investment periods. Single-level snapshots
// are expanded to the (period, timestep) product; two-level snapshots must
// only use listed periods.
func (n *Network) SetInvestmentPeriods(periods ...int64) error {
	ix := NewIndex(NewInt(PeriodLevel, append([]int64{}, periods...)))
	if err := ix.Validate(); err != nil {
		return fmt.Errorf("invalid investment periods: %w", err)
	}
	for i := 1; i < len(periods); i++ {
		if periods[i] <= periods[i-1] {
			return fmt.Errorf("investment periods must be strictly increasing")
		}
	}

	if !n.Snapshots.MultiLevel() {
		steps := n.Snapshots.Levels[0]
		var pos []int
		var level []int64
		for _, p := range periods {
			for i := 0; i < steps.Len(); i++ {
				level = append(level, p)
				pos = append(pos, i)
			}
		}
		expanded := NewIndex(NewInt(PeriodLevel, level), steps.Take(pos).Rename(TimestepLevel))
		if err := expanded.Validate(); err != nil {
			return fmt.Errorf("invalid snapshots: %w", err)
		}
		// overrides repeat in every period
		for _, c := range n.Components {
			for attr, t := range c.Dynamic {
				c.Dynamic[attr] = t.Take(pos, expanded)
			}
		}
		n.Snapshots = expanded
		n.SnapshotWeightings = onesTable(expanded, SnapshotWeightingColumns)
	} else {
		allowed := make(map[int64]bool, len(periods))
		for _, p := range periods {
			allowed[p] = true
		}
		first := n.Snapshots.Levels[0]
		for i := 0; i < first.Len(); i++ {
			p, ok := first.Value(i).(int64)
			if !ok || !allowed[p] {
				return fmt.Errorf("snapshot period %v is not an investment period", first.Value(i))
			}
		}
	}

	n.InvestmentPeriods = ix
	n.InvestmentPeriodWeightings = onesTable(ix, InvestmentPeriodWeightingColumns)
	return nil
}

// Add adds one component. Attributes absent from attrs take their schema
// default. A []float64 (or []int64, []int) value of a time-varying attribute
// becomes the component's column in the attribute's dynamic table and must
// have one value per snapshot.
func (n *Network) Add(class, name string, attrs map[string]interface{}) error {
	cls, ok := n.Registry().Class(class)
	if !ok {
		return fmt.Errorf("unknown component class %q", class)
	}
	c := n.ensureComponent(cls)

	for _, existing := range c.Names() {
		if existing == name {
			return fmt.Errorf("%s %q already exists", class, name)
		}
	}

	series := make(map[string][]float64)
	scalars := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		if s, ok := asSeries(v); ok {
			a, known := cls.Attribute(k)
			if known && !a.Varying {
				return fmt.Errorf("%s attribute %q does not vary over snapshots", class, k)
			}
			if len(s) != n.Snapshots.Len() {
				return fmt.Errorf("%s %q attribute %q has %d values for %d snapshots", class, name, k, len(s), n.Snapshots.Len())
			}
			series[k] = s
			continue
		}
		scalars[k] = v
	}

	rows := c.Static.Len()
	for k, v := range scalars {
		if c.Static.Column(k) != nil {
			continue
		}
		t, err := dtypeOf(v)
		if err != nil {
			return fmt.Errorf("%s attribute %q: %w", class, k, err)
		}
		c.Static.Set(NewColumn(k, t, rows))
	}

	level := c.Static.Index.Levels[0]
	if err := level.Append(name); err != nil {
		return err
	}
	for _, col := range c.Static.Columns {
		v, given := scalars[col.Name]
		if !given {
			if a, ok := cls.Attribute(col.Name); ok {
				v = a.Default
			}
		}
		if err := col.Append(v); err != nil {
			return fmt.Errorf("%s %q: %w", class, name, err)
		}
	}

	for k, s := range series {
		t, ok := c.Dynamic[k]
		if !ok {
			t = NewTable(n.Snapshots.Clone())
			c.Dynamic[k] = t
		}
		t.Set(NewFloat(name, append([]float64{}, s...)))
	}
	return nil
}

func (n *Network) ensureComponent(cls *schema.Class) *Component {
	if c, ok := n.Components[cls.Name]; ok {
		return c
	}
	c := &Component{
		Class:   cls.Name,
		Static:  NewTable(NameIndex()),
		Dynamic: make(map[string]*Table),
	}
	for _, a := range cls.Attributes {
		if a.Varying && a.Status == schema.Output {
			continue
		}
		c.Static.Set(NewColumn(a.Name, a.Type, 0))
	}
	for _, a := range cls.Varying() {
		c.Dynamic[a.Name] = NewTable(n.Snapshots.Clone())
	}
	n.Components[cls.Name] = c
	return c
}

func onesTable(ix *Index, columns []string) *Table {
	t := NewTable(ix.Clone())
	for _, name := range columns {
		v := make([]float64, ix.Len())
		for i := range v {
			v[i] = 1
		}
		t.Set(NewFloat(name, v))
	}
	return t
}

func asSeries(v interface{}) ([]float64, bool) {
	switch s := v.(type) {
	case []float64:
		return s, true
	case []int64:
		out := make([]float64, len(s))
		for i, x := range s {
			out[i] = float64(x)
		}
		return out, true
	case []int:
		out := make([]float64, len(s))
		for i, x := range s {
			out[i] = float64(x)
		}
		return out, true
	default:
		return nil, false
	}
}

func dtypeOf(v interface{}) (DType, error) {
	switch v.(type) {
	case float64, float32:
		return Float, nil
	case int, int32, int64:
		return Int, nil
	case bool:
		return Bool, nil
	case string:
		return String, nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}
