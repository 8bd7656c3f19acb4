package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/gridio/internal/fsutil"
	"github.com/ajitpratap0/gridio/pkg/errors"
	"github.com/ajitpratap0/gridio/pkg/netio/format"
)

// EnvPrefix prefixes environment overrides: GRIDIO_WORKERS,
// GRIDIO_LOGGING_LEVEL, GRIDIO_HDF5_COMPRESSION and so on.
const EnvPrefix = "GRIDIO"

// Loader merges defaults, a configuration file, environment variables and
// bound command line flags, in increasing priority.
type Loader struct {
	v  *viper.Viper
	fs afero.Fs
}

// NewLoader creates a loader reading files from fs (the OS filesystem when
// nil).
func NewLoader(fs afero.Fs) *Loader {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v, fs: fsutil.OrOS(fs)}
}

// BindFlag lets flag override key when the flag is set.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return errors.Newf(errors.ErrorTypeInternal, "no flag to bind to %s", key)
	}
	return l.v.BindPFlag(key, flag)
}

// Load reads path (skipped when empty) over the defaults and validates the
// result.
func (l *Loader) Load(path string) (*Config, error) {
	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to marshal defaults")
	}
	l.v.SetConfigType("yaml")
	if err := l.v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to read defaults")
	}
	// empty format sections are omitted from the defaults document; their
	// keys must still be known for environment overrides
	for _, f := range format.Formats {
		l.v.SetDefault(string(f)+".quote_char", "")
		l.v.SetDefault(string(f)+".float32", false)
		l.v.SetDefault(string(f)+".compression", "")
	}

	if path != "" {
		data, err := afero.ReadFile(l.fs, path)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeConfig, "failed to read config file %s", path)
		}
		l.v.SetConfigType(configType(path))
		if err := l.v.MergeConfig(strings.NewReader(substituteEnvVars(string(data)))); err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeConfig, "failed to parse config file %s", path)
		}
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is NewLoader(nil).Load(path).
func Load(path string) (*Config, error) {
	return NewLoader(nil).Load(path)
}

// Save writes cfg as YAML to path, replacing it atomically.
func Save(fs afero.Fs, path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to marshal YAML")
	}
	err = fsutil.WriteFileAtomic(fsutil.OrOS(fs), path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return errors.Propagate(err, errors.ErrorTypeDestinationUnwritable, "failed to write config file")
	}
	return nil
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".toml":
		return "toml"
	default:
		return "yaml"
	}
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
// ${VAR_NAME:-fallback} uses fallback when the variable is unset or empty.
func substituteEnvVars(content string) string {
	var out strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		name, fallback, _ := strings.Cut(content[start+2:end], ":-")
		value := os.Getenv(name)
		if value == "" {
			value = fallback
		}
		out.WriteString(content[:start])
		out.WriteString(value)
		content = content[end+1:]
	}
	out.WriteString(content)
	return out.String()
}
