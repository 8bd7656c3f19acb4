package format

import (
	"strings"

	"github.com/ajitpratap0/gridio/pkg/codec"
	"github.com/ajitpratap0/gridio/pkg/schema"
)

var reserved = map[string]bool{
	codec.SnapshotsKey:         true,
	codec.InvestmentPeriodsKey: true,
	codec.ShapesKey:            true,
}

// ListName is the table name stem of class: its list name, or the class name
// itself for classes outside the schema.
func ListName(r *schema.Registry, class string) string {
	if cls, ok := r.Class(class); ok {
		return cls.ListName
	}
	return class
}

func className(r *schema.Registry, list string) string {
	if cls, ok := r.ByListName(list); ok {
		return cls.Name
	}
	return list
}

// TableName returns the flat name of the table with frame key key, as used
// for file stems and sheet names: "buses" for "Bus/static",
// "generators-p_max_pu" for "Generator/p_max_pu".
func TableName(r *schema.Registry, key string) string {
	if reserved[key] {
		return key
	}
	class, table, _ := strings.Cut(key, "/")
	if table == codec.StaticSuffix {
		return ListName(r, class)
	}
	return ListName(r, class) + "-" + table
}

// TableKey maps a flat table name back to a frame key. A name that is a
// schema list is a static table; otherwise the name is split at the first
// "-" whose prefix is a schema list, then at the first "-" at all.
func TableKey(r *schema.Registry, name string) string {
	if reserved[name] {
		return name
	}
	if _, ok := r.ByListName(name); ok {
		return codec.StaticKey(className(r, name))
	}
	for i := 0; i < len(name); i++ {
		if name[i] != '-' {
			continue
		}
		if _, ok := r.ByListName(name[:i]); ok && i < len(name)-1 {
			return codec.DynamicKey(className(r, name[:i]), name[i+1:])
		}
	}
	if list, attr, ok := strings.Cut(name, "-"); ok && list != "" && attr != "" {
		return codec.DynamicKey(list, attr)
	}
	return codec.StaticKey(name)
}
