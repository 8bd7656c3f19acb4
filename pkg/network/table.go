package network

import (
	"fmt"
)

// Table is a set of equally long named columns sharing a row index.
// Columns are addressed by name; their order carries no meaning.
type Table struct {
	Index   *Index
	Columns []*Column
}

// NewTable creates a table
func NewTable(index *Index, columns ...*Column) *Table {
	return &Table{Index: index, Columns: columns}
}

// Len returns the number of rows
func (t *Table) Len() int {
	return t.Index.Len()
}

// Empty reports whether the table has zero rows or zero columns.
func (t *Table) Empty() bool {
	return t == nil || t.Len() == 0 || len(t.Columns) == 0
}

// Column returns the column with the given name, or nil.
func (t *Table) Column(name string) *Column {
	if t == nil {
		return nil
	}
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Names returns the column names in storage order.
func (t *Table) Names() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Set replaces the column of the same name or appends c.
func (t *Table) Set(c *Column) {
	for i, existing := range t.Columns {
		if existing.Name == c.Name {
			t.Columns[i] = c
			return
		}
	}
	t.Columns = append(t.Columns, c)
}

// Drop removes a column and reports whether it existed.
func (t *Table) Drop(name string) bool {
	for i, c := range t.Columns {
		if c.Name == name {
			t.Columns = append(t.Columns[:i], t.Columns[i+1:]...)
			return true
		}
	}
	return false
}

// Reorder arranges the columns in the given order. Columns not named keep
// their relative order after the named ones.
func (t *Table) Reorder(names ...string) error {
	out := make([]*Column, 0, len(t.Columns))
	used := make(map[string]bool, len(names))
	for _, n := range names {
		c := t.Column(n)
		if c == nil {
			return fmt.Errorf("column %q not found", n)
		}
		out = append(out, c)
		used[n] = true
	}
	for _, c := range t.Columns {
		if !used[c.Name] {
			out = append(out, c)
		}
	}
	t.Columns = out
	return nil
}

// Reindex returns a table on index ix, aligning rows by tuple key. Rows of ix
// missing from t get missing values.
func (t *Table) Reindex(ix *Index) *Table {
	pos := t.Index.Positions()
	idx := make([]int, ix.Len())
	for i := range idx {
		j, ok := pos[ix.Key(i)]
		if !ok {
			j = -1
		}
		idx[i] = j
	}
	return t.Take(idx, ix)
}

// Take returns the rows at positions idx, relabelled with index ix.
func (t *Table) Take(idx []int, ix *Index) *Table {
	out := &Table{Index: ix.Clone(), Columns: make([]*Column, len(t.Columns))}
	for i, c := range t.Columns {
		out.Columns[i] = c.Take(idx)
	}
	return out
}

// Validate checks column types, lengths and name uniqueness.
func (t *Table) Validate() error {
	if err := t.Index.Validate(); err != nil {
		return err
	}
	n := t.Len()
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if err := c.Validate(); err != nil {
			return err
		}
		if c.Len() != n {
			return fmt.Errorf("column %q has %d rows, index has %d", c.Name, c.Len(), n)
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate column %q", c.Name)
		}
		seen[c.Name] = true
	}
	return nil
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := &Table{Index: t.Index.Clone(), Columns: make([]*Column, len(t.Columns))}
	for i, c := range t.Columns {
		out.Columns[i] = c.Clone()
	}
	return out
}

// Equal compares indexes and columns by name, ignoring column order.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == nil && o == nil
	}
	if !t.Index.Equal(o.Index) || len(t.Columns) != len(o.Columns) {
		return false
	}
	for _, c := range t.Columns {
		oc := o.Column(c.Name)
		if oc == nil || !c.Equal(oc) {
			return false
		}
	}
	return true
}
