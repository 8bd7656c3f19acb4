// Package codec converts network tables to and from Frame, the
// format-neutral representation every adapter reads and writes.
//
// A Frame is an ordered list of typed fields. Index levels come first and are
// flagged; the remaining fields are the table's columns. The frame's
// Descriptor (key, field names, dtypes, flags) is small JSON that binary
// formats store next to the data so the frame can be rebuilt exactly.
package codec

import (
	"github.com/ajitpratap0/gridio/pkg/errors"
	"github.com/ajitpratap0/gridio/pkg/json"
	"github.com/ajitpratap0/gridio/pkg/network"
	"github.com/ajitpratap0/gridio/pkg/schema"
)

// Field is one column of a frame.
type Field struct {
	*network.Column
	// Index marks an index level
	Index bool
	// Float32 marks a float column stored at 32 bit width
	Float32 bool
}

// Frame is a table in transit between the model and a storage format.
type Frame struct {
	// Key names the table inside an artifact, e.g. "Generator/p_max_pu"
	Key    string
	Fields []*Field
}

// Len returns the number of rows
func (f *Frame) Len() int {
	if len(f.Fields) == 0 {
		return 0
	}
	return f.Fields[0].Len()
}

// IndexFields returns the index levels in order.
func (f *Frame) IndexFields() []*Field {
	var out []*Field
	for _, fd := range f.Fields {
		if fd.Index {
			out = append(out, fd)
		}
	}
	return out
}

// ValueFields returns the non-index fields in order.
func (f *Frame) ValueFields() []*Field {
	var out []*Field
	for _, fd := range f.Fields {
		if !fd.Index {
			out = append(out, fd)
		}
	}
	return out
}

// Field returns the field with the given name, or nil.
func (f *Frame) Field(name string) *Field {
	for _, fd := range f.Fields {
		if fd.Name == name {
			return fd
		}
	}
	return nil
}

// FloatColumns counts non-index float fields.
func (f *Frame) FloatColumns() int {
	n := 0
	for _, fd := range f.ValueFields() {
		if fd.Type == network.Float {
			n++
		}
	}
	return n
}

// Descriptor describes the layout of a frame.
type Descriptor struct {
	Key    string            `json:"key"`
	Fields []FieldDescriptor `json:"fields"`
}

// FieldDescriptor describes one field.
type FieldDescriptor struct {
	Name    string        `json:"name"`
	Type    network.DType `json:"type"`
	Index   bool          `json:"index,omitempty"`
	Float32 bool          `json:"float32,omitempty"`
}

// Descriptor returns the frame's layout.
func (f *Frame) Descriptor() Descriptor {
	d := Descriptor{Key: f.Key, Fields: make([]FieldDescriptor, len(f.Fields))}
	for i, fd := range f.Fields {
		d.Fields[i] = FieldDescriptor{Name: fd.Name, Type: fd.Type, Index: fd.Index, Float32: fd.Float32}
	}
	return d
}

// IndexNames returns the names of the index fields.
func (d Descriptor) IndexNames() []string {
	var out []string
	for _, fd := range d.Fields {
		if fd.Index {
			out = append(out, fd.Name)
		}
	}
	return out
}

// Lookup returns the field descriptor with the given name.
func (d Descriptor) Lookup(name string) (FieldDescriptor, bool) {
	for _, fd := range d.Fields {
		if fd.Name == name {
			return fd, true
		}
	}
	return FieldDescriptor{}, false
}

// Marshal renders the descriptor as JSON.
func (d Descriptor) Marshal() (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode frame descriptor")
	}
	return string(b), nil
}

// ParseDescriptor decodes and validates a descriptor.
func ParseDescriptor(s string) (Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return d, errors.Wrap(err, errors.ErrorTypeSourceUnreadable, "failed to decode frame descriptor")
	}
	if d.Key == "" {
		return d, errors.New(errors.ErrorTypeSourceUnreadable, "frame descriptor has no key")
	}
	hasIndex := false
	for _, fd := range d.Fields {
		if _, err := schema.ParseDType(string(fd.Type)); err != nil {
			return d, errors.Wrapf(err, errors.ErrorTypeSourceUnreadable, "frame %s field %s", d.Key, fd.Name)
		}
		hasIndex = hasIndex || fd.Index
	}
	if !hasIndex {
		return d, errors.Newf(errors.ErrorTypeSchemaMismatch, "frame %s has no index", d.Key)
	}
	return d, nil
}
