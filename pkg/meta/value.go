// Package meta holds the free-form metadata attached to a network.
//
// Metadata is a closed tagged variant: null, bool, number, string, list, or an
// ordered map of further values. It is opaque to gridio beyond a reversible
// encoding to a single string, which every storage format can hold.
package meta

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a metadata value. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	num  string // canonical JSON number literal
	s    string
	list []Value
	m    *orderedMap
}

// Entry is one key/value pair of a map Value.
type Entry struct {
	Key   string
	Value Value
}

type orderedMap struct {
	keys   []string
	values map[string]Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns an integral number value.
func Int(i int64) Value { return Value{kind: KindNumber, num: strconv.FormatInt(i, 10)} }

// Float returns a number value. NaN and infinities cannot be encoded and are
// rejected by Encode.
func Float(f float64) Value {
	return Value{kind: KindNumber, num: strconv.FormatFloat(f, 'g', -1, 64)}
}

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// List returns a list value holding vs in order.
func List(vs ...Value) Value {
	out := make([]Value, len(vs))
	copy(out, vs)
	return Value{kind: KindList, list: out}
}

// Map returns a map value holding entries in order. Later duplicates replace
// earlier values but keep the first position.
func Map(entries ...Entry) Value {
	m := &orderedMap{values: make(map[string]Value, len(entries))}
	for _, e := range entries {
		m.set(e.Key, e.Value)
	}
	return Value{kind: KindMap, m: m}
}

// E is shorthand for Entry{Key: k, Value: v}.
func E(k string, v Value) Entry { return Entry{Key: k, Value: v} }

func number(lit string) Value { return Value{kind: KindNumber, num: lit} }

func (m *orderedMap) set(k string, v Value) {
	if _, ok := m.values[k]; !ok {
		m.keys = append(m.keys, k)
	}
	m.values[k] = v
}

// Kind returns the variant of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsFloat returns the number held by v as a float64.
func (v Value) AsFloat() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.num, 64)
	return f, err == nil
}

// AsInt returns the number held by v if it is integral.
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	i, err := strconv.ParseInt(v.num, 10, 64)
	if err == nil {
		return i, true
	}
	f, ok := v.AsFloat()
	if !ok || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}

// Len returns the number of items in a list or map, and 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.list)
	case KindMap:
		return len(v.m.keys)
	default:
		return 0
	}
}

// Index returns the i-th list item.
func (v Value) Index(i int) Value {
	if v.kind != KindList || i < 0 || i >= len(v.list) {
		return Null()
	}
	return v.list[i]
}

// Keys returns the keys of a map in insertion order.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	out := make([]string, len(v.m.keys))
	copy(out, v.m.keys)
	return out
}

// Get returns the value stored under key in a map.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Null(), false
	}
	got, ok := v.m.values[key]
	return got, ok
}

// Entries returns the entries of a map in insertion order.
func (v Value) Entries() []Entry {
	if v.kind != KindMap {
		return nil
	}
	out := make([]Entry, 0, len(v.m.keys))
	for _, k := range v.m.keys {
		out = append(out, Entry{Key: k, Value: v.m.values[k]})
	}
	return out
}

// With returns a copy of map v with key set to val.
func (v Value) With(key string, val Value) Value {
	entries := v.Entries()
	entries = append(entries, Entry{Key: key, Value: val})
	return Map(entries...)
}

// Equal reports structural equality. Maps compare by key set regardless of
// order, numbers compare by numeric value.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		if a.num == b.num {
			return true
		}
		fa, okA := a.AsFloat()
		fb, okB := b.AsFloat()
		return okA && okB && fa == fb
	case KindString:
		return a.s == b.s
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.m.keys) != len(b.m.keys) {
			return false
		}
		for k, av := range a.m.values {
			bv, ok := b.m.values[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// Equal reports whether v and other are structurally equal.
func (v Value) Equal(other Value) bool { return Equal(v, other) }

// FromAny converts plain Go values (as produced by encoding/json, or literals
// in code) into a Value. Go maps have no order, so their keys are sorted.
func FromAny(x interface{}) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case int:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint32:
		return Int(int64(t)), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case fmt.Stringer:
		return String(t.String()), nil
	case []interface{}:
		items := make([]Value, 0, len(t))
		for i, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Null(), fmt.Errorf("item %d: %w", i, err)
			}
			items = append(items, v)
		}
		return List(items...), nil
	case []string:
		items := make([]Value, 0, len(t))
		for _, item := range t {
			items = append(items, String(item))
		}
		return List(items...), nil
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries := make([]Entry, 0, len(keys))
		for _, k := range keys {
			v, err := FromAny(t[k])
			if err != nil {
				return Null(), fmt.Errorf("key %q: %w", k, err)
			}
			entries = append(entries, Entry{Key: k, Value: v})
		}
		return Map(entries...), nil
	case map[string]string:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries := make([]Entry, 0, len(keys))
		for _, k := range keys {
			entries = append(entries, Entry{Key: k, Value: String(t[k])})
		}
		return Map(entries...), nil
	default:
		return Null(), fmt.Errorf("unsupported metadata type %T", x)
	}
}

// MustFromAny is FromAny for literals known to be valid.
func MustFromAny(x interface{}) Value {
	v, err := FromAny(x)
	if err != nil {
		panic(err)
	}
	return v
}

// ToAny converts v into plain Go values: nil, bool, float64 or int64, string,
// []interface{} and map[string]interface{}.
func ToAny(v Value) interface{} {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		if i, err := strconv.ParseInt(v.num, 10, 64); err == nil {
			return i
		}
		f, _ := v.AsFloat()
		return f
	case KindString:
		return v.s
	case KindList:
		out := make([]interface{}, len(v.list))
		for i, item := range v.list {
			out[i] = ToAny(item)
		}
		return out
	case KindMap:
		out := make(map[string]interface{}, len(v.m.keys))
		for k, item := range v.m.values {
			out[k] = ToAny(item)
		}
		return out
	default:
		return nil
	}
}
