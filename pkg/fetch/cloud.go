package fetch

import (
	"context"
	"io"
	"net/url"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/gridio/pkg/errors"
)

// S3Config configures s3:// sources.
type S3Config struct {
	Region string `json:"region" yaml:"region" mapstructure:"region"`
	// Endpoint overrides the service endpoint, for S3 compatible stores;
	// it implies path-style addressing
	Endpoint string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	// PartSize and Concurrency tune the ranged download
	PartSize    int64 `json:"part_size" yaml:"part_size" mapstructure:"part_size"`
	Concurrency int   `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`
}

// GCSConfig configures gs:// sources.
type GCSConfig struct {
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file" mapstructure:"credentials_file"`
	// Token is an OAuth2 access token, used instead of credentials
	Token    string `json:"token" yaml:"token" mapstructure:"token"`
	Endpoint string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	// Anonymous reads public buckets without credentials
	Anonymous bool `json:"anonymous" yaml:"anonymous" mapstructure:"anonymous"`
}

// S3Getter downloads s3://bucket/key URLs with the ranged downloader. The
// client is created on first use.
type S3Getter struct {
	Config S3Config

	once       sync.Once
	downloader *manager.Downloader
	err        error
}

func (g *S3Getter) init(ctx context.Context) error {
	g.once.Do(func() {
		var opts []func(*awsconfig.LoadOptions) error
		if g.Config.Region != "" {
			opts = append(opts, awsconfig.WithRegion(g.Config.Region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			g.err = errors.Wrap(err, errors.ErrorTypeConfig, "cannot load AWS configuration")
			return
		}
		client := s3.NewFromConfig(cfg, func(o *s3.Options) {
			if g.Config.Endpoint != "" {
				o.BaseEndpoint = aws.String(g.Config.Endpoint)
				o.UsePathStyle = true
			}
		})
		g.downloader = manager.NewDownloader(client, func(d *manager.Downloader) {
			if g.Config.PartSize > 0 {
				d.PartSize = g.Config.PartSize
			}
			if g.Config.Concurrency > 0 {
				d.Concurrency = g.Config.Concurrency
			}
		})
	})
	return g.err
}

// Get downloads the object into memory, then copies it to w; the
// downloader needs random access to its target.
func (g *S3Getter) Get(ctx context.Context, u *url.URL, w io.Writer) error {
	if err := g.init(ctx); err != nil {
		return err
	}
	bucket, key := u.Host, strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return errors.Newf(errors.ErrorTypeConfig, "%s does not name a bucket and key", u.Redacted())
	}
	buf := manager.NewWriteAtBuffer(nil)
	if _, err := g.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeRemote, "cannot download %s", u.Redacted())
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeDestinationUnwritable, "cannot store %s", u.Redacted())
	}
	return nil
}

// GCSGetter downloads gs://bucket/object URLs. The client is created on
// first use.
type GCSGetter struct {
	Config GCSConfig

	once   sync.Once
	client *storage.Client
	err    error
}

func (g *GCSGetter) clientOptions() []option.ClientOption {
	var opts []option.ClientOption
	switch {
	case g.Config.Anonymous:
		opts = append(opts, option.WithoutAuthentication())
	case g.Config.Token != "":
		opts = append(opts, option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: g.Config.Token})))
	case g.Config.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(g.Config.CredentialsFile))
	}
	if g.Config.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.Config.Endpoint))
	}
	return opts
}

func (g *GCSGetter) init(ctx context.Context) error {
	g.once.Do(func() {
		client, err := storage.NewClient(ctx, g.clientOptions()...)
		if err != nil {
			g.err = errors.Wrap(err, errors.ErrorTypeConfig, "cannot create storage client")
			return
		}
		g.client = client
	})
	return g.err
}

// Get streams the object into w.
func (g *GCSGetter) Get(ctx context.Context, u *url.URL, w io.Writer) error {
	if err := g.init(ctx); err != nil {
		return err
	}
	bucket, object := u.Host, strings.TrimPrefix(u.Path, "/")
	if bucket == "" || object == "" {
		return errors.Newf(errors.ErrorTypeConfig, "%s does not name a bucket and object", u.Redacted())
	}
	r, err := g.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeRemote, "cannot open %s", u.Redacted())
	}
	defer r.Close()
	if _, err := io.Copy(w, r); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeRemote, "download of %s interrupted", u.Redacted())
	}
	return nil
}

// Close releases the storage client.
func (g *GCSGetter) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
