// Package schema describes the component classes a network may hold.
//
// The set of classes is closed and known at build time. Each class declares its
// attributes (name, dtype, default, whether it may vary per snapshot). Codecs
// iterate this schema instead of discovering attributes at run time.
package schema

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// Status tells whether an attribute is set by the user or produced by a solver.
type Status string

const (
	// Input attributes are set by the modeller
	Input Status = "input"
	// Output attributes are written by external computations
	Output Status = "output"
)

// Attribute declares one column of a component class.
type Attribute struct {
	Name    string
	Type    DType
	Default interface{}
	Varying bool
	Status  Status
}

// DefaultFloat returns the default as a float64, or NaN.
func (a Attribute) DefaultFloat() float64 {
	switch v := a.Default.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return math.NaN()
	}
}

// Class is a named category of network element.
type Class struct {
	// Name is the singular class name, e.g. "Generator"
	Name string
	// ListName names the class's tables, e.g. "generators"
	ListName string
	// Attributes in declaration order; "name" is implicit and not listed
	Attributes []Attribute

	byName map[string]int
}

// Attribute looks up an attribute by name.
func (c *Class) Attribute(name string) (Attribute, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Attribute{}, false
	}
	return c.Attributes[i], true
}

// Varying returns the attributes that may hold per-snapshot values, in declaration order.
func (c *Class) Varying() []Attribute {
	out := make([]Attribute, 0, len(c.Attributes))
	for _, a := range c.Attributes {
		if a.Varying {
			out = append(out, a)
		}
	}
	return out
}

// Registry is a read-only set of classes, addressable by class or list name.
type Registry struct {
	classes []*Class
	byName  map[string]*Class
	byList  map[string]*Class
}

// NewRegistry builds a registry. Duplicate class, list or attribute names are rejected.
func NewRegistry(classes ...*Class) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]*Class, len(classes)),
		byList: make(map[string]*Class, len(classes)),
	}
	for _, c := range classes {
		if _, dup := r.byName[c.Name]; dup {
			return nil, fmt.Errorf("duplicate class %q", c.Name)
		}
		if _, dup := r.byList[c.ListName]; dup {
			return nil, fmt.Errorf("duplicate list name %q", c.ListName)
		}
		c.byName = make(map[string]int, len(c.Attributes))
		for i, a := range c.Attributes {
			if a.Name == "name" {
				return nil, fmt.Errorf("class %s: attribute \"name\" is implicit", c.Name)
			}
			if _, dup := c.byName[a.Name]; dup {
				return nil, fmt.Errorf("class %s: duplicate attribute %q", c.Name, a.Name)
			}
			c.byName[a.Name] = i
		}
		r.classes = append(r.classes, c)
		r.byName[c.Name] = c
		r.byList[c.ListName] = c
	}
	return r, nil
}

// Class returns the class with the given singular name.
func (r *Registry) Class(name string) (*Class, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// ByListName returns the class whose tables are named list.
func (r *Registry) ByListName(list string) (*Class, bool) {
	c, ok := r.byList[list]
	return c, ok
}

// Classes returns all classes in declaration order.
func (r *Registry) Classes() []*Class {
	out := make([]*Class, len(r.classes))
	copy(out, r.classes)
	return out
}

// Names returns the sorted class names.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.classes))
	for _, c := range r.classes {
		out = append(out, c.Name)
	}
	sort.Strings(out)
	return out
}

var (
	defaultRegistry *Registry
	defaultOnce     sync.Once
)

// Default returns the registry of built-in network component classes.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := NewRegistry(builtinClasses()...)
		if err != nil {
			panic(err)
		}
		defaultRegistry = r
	})
	return defaultRegistry
}
