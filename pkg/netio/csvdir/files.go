package csvdir

import (
	"strings"

	"github.com/ajitpratap0/gridio/pkg/compression"
	"github.com/ajitpratap0/gridio/pkg/netio/format"
	"github.com/ajitpratap0/gridio/pkg/schema"
)

const (
	ext         = ".csv"
	networkFile = "network"
)

// fileName returns the file a frame is stored in, without compression suffix.
func fileName(r *schema.Registry, key string) string {
	return format.TableName(r, key) + ext
}

// splitName returns the stem and compression of a table file, and false for
// files that are not tables.
func splitName(name string) (string, compression.Algorithm, bool) {
	a := compression.FromExtension(name)
	if a != compression.None {
		name = strings.TrimSuffix(name, "."+a.Extension())
	}
	if !strings.HasSuffix(name, ext) || len(name) == len(ext) {
		return "", compression.None, false
	}
	return strings.TrimSuffix(name, ext), a, true
}

func isTableFile(name string) bool {
	_, _, ok := splitName(name)
	return ok
}

func compressed(name string, a compression.Algorithm) string {
	if e := a.Extension(); e != "" {
		return name + "." + e
	}
	return name
}
