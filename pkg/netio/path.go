package netio

import (
	"net/url"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/ajitpratap0/gridio/pkg/errors"
	"github.com/ajitpratap0/gridio/pkg/fetch"
)

// Path is a location accepted by the public operations: a plain string
// path, any string-based path type, or a URL. file:// URLs and strings
// name local paths; http(s), s3 and gs URLs name remote sources.
type Path interface {
	~string | *url.URL
}

// location is a resolved Path.
type location struct {
	// local is set for local paths
	local string
	// remote is set for remote sources
	remote *url.URL
}

func (l location) String() string {
	if l.remote != nil {
		return l.remote.Redacted()
	}
	return l.local
}

func locate[P Path](p P) (location, error) {
	if u, ok := any(p).(*url.URL); ok {
		return fromURL(u)
	}
	s := reflect.ValueOf(p).String()
	if s == "" {
		return location{}, errors.New(errors.ErrorTypeConfig, "empty path")
	}
	if i := strings.Index(s, "://"); i > 0 && !isDriveLetter(s[:i]) {
		u, err := url.Parse(s)
		if err != nil {
			return location{}, errors.Wrapf(err, errors.ErrorTypeConfig, "invalid url %q", s)
		}
		return fromURL(u)
	}
	return location{local: filepath.Clean(s)}, nil
}

func fromURL(u *url.URL) (location, error) {
	if u == nil {
		return location{}, errors.New(errors.ErrorTypeConfig, "nil url")
	}
	switch {
	case u.Scheme == "" || strings.EqualFold(u.Scheme, "file"):
		p := u.Path
		if p == "" {
			p = u.Opaque
		}
		if p == "" {
			return location{}, errors.Newf(errors.ErrorTypeConfig, "url %q has no path", u.String())
		}
		return location{local: filepath.Clean(filepath.FromSlash(p))}, nil
	case fetch.IsRemote(u):
		return location{remote: u}, nil
	default:
		return location{}, errors.Newf(errors.ErrorTypeConfig, "unsupported url scheme %q", u.Scheme)
	}
}

func isDriveLetter(s string) bool {
	return len(s) == 1 && (s[0] >= 'a' && s[0] <= 'z' || s[0] >= 'A' && s[0] <= 'Z')
}
