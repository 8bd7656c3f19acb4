package network

import (
	"fmt"
	"strings"
	"time"
)

// Index labels the rows of a table. It has one level (snapshot, name) or
// several (period, timestep). Row order is significant.
type Index struct {
	Levels []*Column
}

// NewIndex creates an index from its levels.
func NewIndex(levels ...*Column) *Index {
	return &Index{Levels: levels}
}

// NameIndex creates the single-level "name" index of a static table.
func NameIndex(names ...string) *Index {
	return NewIndex(NewString("name", append([]string{}, names...)))
}

// TimeIndex creates a single-level "snapshot" index from timestamps.
func TimeIndex(times ...time.Time) *Index {
	return NewIndex(NewTime("snapshot", append([]time.Time{}, times...)))
}

// HourlyRange returns n timestamps starting at start, one hour apart.
func HourlyRange(start time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * time.Hour).UTC()
	}
	return out
}

// Len returns the number of rows
func (ix *Index) Len() int {
	if ix == nil || len(ix.Levels) == 0 {
		return 0
	}
	return ix.Levels[0].Len()
}

// Names returns the level names in order.
func (ix *Index) Names() []string {
	if ix == nil {
		return nil
	}
	out := make([]string, len(ix.Levels))
	for i, l := range ix.Levels {
		out[i] = l.Name
	}
	return out
}

// MultiLevel reports whether the index has more than one level.
func (ix *Index) MultiLevel() bool {
	return ix != nil && len(ix.Levels) > 1
}

// Level returns the level with the given name.
func (ix *Index) Level(name string) *Column {
	if ix == nil {
		return nil
	}
	for _, l := range ix.Levels {
		if l.Name == name {
			return l
		}
	}
	return nil
}

// Key renders row i as a comparable tuple key.
func (ix *Index) Key(i int) string {
	parts := make([]string, len(ix.Levels))
	for j, l := range ix.Levels {
		switch v := l.Value(i).(type) {
		case time.Time:
			parts[j] = v.UTC().Format(time.RFC3339Nano)
		default:
			parts[j] = fmt.Sprint(v)
		}
	}
	return strings.Join(parts, "\x1f")
}

// Positions maps every tuple key to its row.
func (ix *Index) Positions() map[string]int {
	out := make(map[string]int, ix.Len())
	for i := 0; i < ix.Len(); i++ {
		out[ix.Key(i)] = i
	}
	return out
}

// Validate checks that levels have equal length, unique names and that row
// tuples are unique.
func (ix *Index) Validate() error {
	if ix == nil || len(ix.Levels) == 0 {
		return fmt.Errorf("index has no levels")
	}
	n := ix.Levels[0].Len()
	seen := make(map[string]bool, len(ix.Levels))
	for _, l := range ix.Levels {
		if err := l.Validate(); err != nil {
			return err
		}
		if l.Len() != n {
			return fmt.Errorf("index level %q has %d rows, expected %d", l.Name, l.Len(), n)
		}
		if seen[l.Name] {
			return fmt.Errorf("duplicate index level %q", l.Name)
		}
		seen[l.Name] = true
	}
	keys := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		k := ix.Key(i)
		if keys[k] {
			return fmt.Errorf("duplicate index entry %s", strings.ReplaceAll(k, "\x1f", ", "))
		}
		keys[k] = true
	}
	return nil
}

// Clone returns a deep copy.
func (ix *Index) Clone() *Index {
	if ix == nil {
		return nil
	}
	out := &Index{Levels: make([]*Column, len(ix.Levels))}
	for i, l := range ix.Levels {
		out.Levels[i] = l.Clone()
	}
	return out
}

// Take returns an index of the rows at positions idx.
func (ix *Index) Take(idx []int) *Index {
	out := &Index{Levels: make([]*Column, len(ix.Levels))}
	for i, l := range ix.Levels {
		out.Levels[i] = l.Take(idx)
	}
	return out
}

// Equal compares level names, dtypes and values.
func (ix *Index) Equal(o *Index) bool {
	if ix == nil || o == nil {
		return ix == nil && o == nil
	}
	if len(ix.Levels) != len(o.Levels) {
		return false
	}
	for i := range ix.Levels {
		if !ix.Levels[i].Equal(o.Levels[i]) {
			return false
		}
	}
	return true
}
