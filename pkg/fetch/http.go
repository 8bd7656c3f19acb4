package fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/ajitpratap0/gridio/pkg/errors"
)

// HTTPConfig configures the client used for http(s) sources.
type HTTPConfig struct {
	// Connection settings
	MaxIdleConns        int           `json:"max_idle_conns" yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `json:"max_idle_conns_per_host" yaml:"max_idle_conns_per_host" mapstructure:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `json:"idle_conn_timeout" yaml:"idle_conn_timeout" mapstructure:"idle_conn_timeout"`

	// HTTP/2 settings
	EnableHTTP2 bool `json:"enable_http2" yaml:"enable_http2" mapstructure:"enable_http2"`

	// Timeouts
	DialTimeout           time.Duration `json:"dial_timeout" yaml:"dial_timeout" mapstructure:"dial_timeout"`
	TLSHandshakeTimeout   time.Duration `json:"tls_handshake_timeout" yaml:"tls_handshake_timeout" mapstructure:"tls_handshake_timeout"`
	ResponseHeaderTimeout time.Duration `json:"response_header_timeout" yaml:"response_header_timeout" mapstructure:"response_header_timeout"`
	RequestTimeout        time.Duration `json:"request_timeout" yaml:"request_timeout" mapstructure:"request_timeout"`
	KeepAlive             time.Duration `json:"keep_alive" yaml:"keep_alive" mapstructure:"keep_alive"`

	// TLS settings
	TLSMinVersion uint16 `json:"tls_min_version" yaml:"tls_min_version" mapstructure:"tls_min_version"`

	MaxRedirects int `json:"max_redirects" yaml:"max_redirects" mapstructure:"max_redirects"`
}

// DefaultHTTPConfig returns the default client configuration. Downloads of
// large bundles may take minutes, so only the header wait is bounded
// tightly.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		EnableHTTP2:           true,
		DialTimeout:           30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		RequestTimeout:        10 * time.Minute,
		KeepAlive:             30 * time.Second,
		TLSMinVersion:         tls.VersionTLS12,
		MaxRedirects:          10,
	}
}

// NewHTTPClient creates the client for http(s) sources.
func NewHTTPClient(config HTTPConfig, logger *zap.Logger) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: config.TLSMinVersion,
		},
	}

	// Enable HTTP/2 if configured
	if config.EnableHTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			logger.Warn("failed to configure HTTP/2", zap.Error(err))
		}
	}

	maxRedirects := config.MaxRedirects
	return &http.Client{
		Transport: transport,
		Timeout:   config.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
}

// HTTPGetter downloads http(s) URLs.
type HTTPGetter struct {
	Client *http.Client
}

// Get streams the body of u into w.
func (g *HTTPGetter) Get(ctx context.Context, u *url.URL, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeConfig, "invalid url %s", u.Redacted())
	}
	resp, err := g.Client.Do(req)
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeRemote, "request to %s failed", u.Redacted())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf(errors.ErrorTypeRemote, "%s answered %s", u.Redacted(), resp.Status).
			WithDetail("status", resp.StatusCode)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeRemote, "download of %s interrupted", u.Redacted())
	}
	return nil
}
