// Package fetch retrieves remote network artifacts into a local cache so
// the format adapters can read them like local paths.
//
// Supported schemes are http and https, s3 (bucket/key through the AWS
// ranged downloader) and gs (Google Cloud Storage). Bundles (.zip, .tar,
// .tar.gz, .tgz, .tar.zst, .tar.lz4) are unpacked after download; the
// returned path is then the directory holding the network, or the single
// archive or workbook file the bundle contains. Single compressed files
// (model.nc.zst, model.xlsx.gz) are decompressed next to the download.
//
// The cache is keyed by URL: a second fetch of the same URL reuses the
// downloaded file unless Config.Refresh is set.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/ajitpratap0/gridio/internal/fsutil"
	"github.com/ajitpratap0/gridio/pkg/compression"
	"github.com/ajitpratap0/gridio/pkg/errors"
	"github.com/ajitpratap0/gridio/pkg/logger"
	"github.com/ajitpratap0/gridio/pkg/metrics"
)

// completeMarker is written into an extracted bundle once unpacking
// finished.
const completeMarker = ".gridio-complete"

// Config configures remote retrieval.
type Config struct {
	// CacheDir holds downloads, os.UserCacheDir()/gridio when empty
	CacheDir string `json:"cache_dir" yaml:"cache_dir" mapstructure:"cache_dir"`
	// Refresh downloads again even when the cache holds the URL
	Refresh bool       `json:"refresh" yaml:"refresh" mapstructure:"refresh"`
	HTTP    HTTPConfig `json:"http" yaml:"http" mapstructure:"http"`
	S3      S3Config   `json:"s3" yaml:"s3" mapstructure:"s3"`
	GCS     GCSConfig  `json:"gcs" yaml:"gcs" mapstructure:"gcs"`
}

// DefaultConfig returns the default retrieval configuration.
func DefaultConfig() Config {
	return Config{HTTP: DefaultHTTPConfig()}
}

// Getter writes the content of a remote object to w.
type Getter interface {
	Get(ctx context.Context, u *url.URL, w io.Writer) error
}

// Fetcher downloads remote artifacts into its cache.
type Fetcher struct {
	config Config
	fs     afero.Fs
	logger *zap.Logger

	mu      sync.RWMutex
	getters map[string]Getter
}

// New creates a fetcher writing to fs (the OS filesystem when nil) with the
// http, https, s3 and gs getters installed.
func New(config Config, fs afero.Fs, log *zap.Logger) *Fetcher {
	log = logger.Or(log).With(zap.String("component", "fetch"))
	httpGetter := &HTTPGetter{Client: NewHTTPClient(config.HTTP, log)}
	return &Fetcher{
		config: config,
		fs:     fsutil.OrOS(fs),
		logger: log,
		getters: map[string]Getter{
			"http":  httpGetter,
			"https": httpGetter,
			"s3":    &S3Getter{Config: config.S3},
			"gs":    &GCSGetter{Config: config.GCS},
		},
	}
}

// Fs returns the filesystem downloads are written to.
func (f *Fetcher) Fs() afero.Fs {
	return f.fs
}

// Register installs g for scheme, replacing any getter registered before.
func (f *Fetcher) Register(scheme string, g Getter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getters[strings.ToLower(scheme)] = g
}

func (f *Fetcher) getter(scheme string) (Getter, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	g, ok := f.getters[strings.ToLower(scheme)]
	return g, ok
}

// IsRemote reports whether u names a remote object rather than a local path.
func IsRemote(u *url.URL) bool {
	if u == nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "s3", "gs":
		return true
	default:
		return false
	}
}

func (f *Fetcher) cacheDir() (string, error) {
	if f.config.CacheDir != "" {
		return f.config.CacheDir, nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeConfig, "no cache directory configured")
	}
	return filepath.Join(dir, "gridio"), nil
}

// Fetch downloads u and returns the local path of the artifact.
func (f *Fetcher) Fetch(ctx context.Context, u *url.URL) (string, error) {
	if u == nil {
		return "", errors.New(errors.ErrorTypeConfig, "no url given")
	}
	g, ok := f.getter(u.Scheme)
	if !ok {
		return "", errors.Newf(errors.ErrorTypeConfig, "unsupported url scheme %q", u.Scheme)
	}
	root, err := f.cacheDir()
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256([]byte(u.String()))
	dir := filepath.Join(root, hex.EncodeToString(sum[:8]))
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		name = "download"
	}
	file := filepath.Join(dir, name)
	kind, alg, stem := Bundle(name)
	unpacked := filepath.Join(dir, stem)
	// single compressed files are kept decompressed next to the download
	fileAlg := compression.None
	if kind == NotBundle {
		fileAlg = compression.FromExtension(name)
	}
	plain := strings.TrimSuffix(file, "."+fileAlg.Extension())

	log := f.logger.With(zap.String("url", u.Redacted()), zap.String("path", file))
	if !f.config.Refresh {
		if kind == NotBundle && f.exists(plain) {
			log.Debug("using cached download")
			return plain, nil
		}
		if kind != NotBundle && f.exists(filepath.Join(unpacked, completeMarker)) {
			log.Debug("using cached bundle")
			return f.locate(unpacked)
		}
	}

	timer := metrics.NewTimer()
	var size int64
	err = fsutil.WriteFileAtomic(f.fs, file, func(w io.Writer) error {
		cw := &countingWriter{w: w}
		err := g.Get(ctx, u, cw)
		size = cw.n
		return err
	})
	metrics.ObserveOperation(u.Scheme, metrics.OpFetch, timer.Stop(), err)
	if err != nil {
		log.Error("fetch failed", zap.Error(err))
		return "", errors.Propagate(err, errors.ErrorTypeRemote, "fetch "+u.Redacted())
	}
	metrics.FetchBytes.WithLabelValues(u.Scheme).Add(float64(size))
	log.Info("fetched", zap.Int64("bytes", size), zap.Duration("duration", timer.Stop()))

	if kind == NotBundle {
		if fileAlg == compression.None {
			return file, nil
		}
		return plain, f.decompress(file, plain, fileAlg)
	}
	if err := fsutil.Discard(f.fs, unpacked); err != nil {
		return "", err
	}
	if err := extract(f.fs, file, unpacked, kind, alg); err != nil {
		_ = fsutil.Discard(f.fs, unpacked)
		return "", err
	}
	if err := afero.WriteFile(f.fs, filepath.Join(unpacked, completeMarker), nil, 0o644); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeDestinationUnwritable, "cannot mark bundle unpacked")
	}
	log.Debug("unpacked bundle", zap.String("dir", unpacked))
	return f.locate(unpacked)
}

func (f *Fetcher) decompress(file, plain string, alg compression.Algorithm) error {
	comp, err := compression.NewCompressor(&compression.Config{Algorithm: alg})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "no decompressor")
	}
	src, err := f.fs.Open(file)
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeSourceUnreadable, "cannot open %s", file)
	}
	defer src.Close()
	err = fsutil.WriteFileAtomic(f.fs, plain, func(w io.Writer) error {
		if err := comp.DecompressStream(w, src); err != nil {
			return errors.Wrapf(err, errors.ErrorTypeSourceUnreadable, "%s is not valid %s data", file, alg)
		}
		return nil
	})
	if err != nil {
		return errors.Propagate(err, errors.ErrorTypeSourceUnreadable, "cannot decompress "+file)
	}
	return nil
}

func (f *Fetcher) exists(p string) bool {
	_, err := f.fs.Stat(p)
	return err == nil
}

// locate finds the artifact inside an unpacked bundle: a sole file, a sole
// directory descended into, or the directory itself.
func (f *Fetcher) locate(dir string) (string, error) {
	for {
		entries, err := afero.ReadDir(f.fs, dir)
		if err != nil {
			return "", errors.Wrapf(err, errors.ErrorTypeSourceUnreadable, "cannot list %s", dir)
		}
		var visible []os.FileInfo
		for _, e := range entries {
			if !strings.HasPrefix(e.Name(), ".") && !strings.HasPrefix(e.Name(), "__MACOSX") {
				visible = append(visible, e)
			}
		}
		if len(visible) != 1 {
			return dir, nil
		}
		next := filepath.Join(dir, visible[0].Name())
		if !visible[0].IsDir() {
			if strings.EqualFold(filepath.Ext(next), ".csv") {
				return dir, nil
			}
			return next, nil
		}
		dir = next
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
