package netio

import (
	"sync"

	"github.com/ajitpratap0/gridio/pkg/errors"
	"github.com/ajitpratap0/gridio/pkg/netio/archive"
	"github.com/ajitpratap0/gridio/pkg/netio/csvdir"
	"github.com/ajitpratap0/gridio/pkg/netio/format"
	"github.com/ajitpratap0/gridio/pkg/netio/xlsx"
)

// Registry maps formats to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[format.Format]format.Adapter
}

// NewRegistry returns a registry holding the built-in adapters.
func NewRegistry() *Registry {
	r := &Registry{adapters: make(map[format.Format]format.Adapter)}
	r.Register(csvdir.New())
	for _, f := range []format.Format{format.NetCDF, format.HDF5} {
		a, _ := archive.New(f)
		r.Register(a)
	}
	r.Register(xlsx.New())
	return r
}

// Register installs a, replacing the adapter of its format.
func (r *Registry) Register(a format.Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Format()] = a
}

// Adapter returns the adapter of f.
func (r *Registry) Adapter(f format.Format) (format.Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[f]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "no adapter for format %q", f)
	}
	return a, nil
}

// Formats lists the registered formats in canonical order.
func (r *Registry) Formats() []format.Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []format.Format
	for _, f := range format.Formats {
		if _, ok := r.adapters[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

var defaultRegistry = NewRegistry()

// Register installs a in the registry the package functions use.
func Register(a format.Adapter) {
	defaultRegistry.Register(a)
}

// Lookup returns the adapter the package functions use for f.
func Lookup(f format.Format) (format.Adapter, error) {
	return defaultRegistry.Adapter(f)
}
