// Package archive stores networks as a single-file archive: a zip container
// whose entries are columnar variables grouped by component class.
//
// # Layout
//
//	attrs.json                  global attributes: name, crs, encoded metadata,
//	                            variant, precision report and the table list
//	snapshots.<ext>             snapshot index levels and weightings
//	investment_periods.<ext>    investment periods and weightings
//	shapes.<ext>                shapes, geometries as WKB
//	<Class>/static.<ext>        static table of a class
//	<Class>/<attr>.<ext>        time-varying table of a class
//
// The netcdf variant stores Arrow IPC files (.arrow), the hdf5 variant
// Parquet files (.parquet). Both read back to the same network. Frame
// descriptors in the schema metadata restore index levels and dtypes.
//
// Compression follows the export policy per variable: Arrow buffers take
// lz4 or zstd natively and any other algorithm deflates the container entry;
// Parquet pages take every algorithm natively. The archive is written to a
// temporary file and renamed over the destination, so a failed export never
// leaves a file that imports as a different network.
package archive

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/ajitpratap0/gridio/internal/fsutil"
	"github.com/ajitpratap0/gridio/internal/parallel"
	"github.com/ajitpratap0/gridio/pkg/assembler"
	"github.com/ajitpratap0/gridio/pkg/codec"
	"github.com/ajitpratap0/gridio/pkg/compression"
	"github.com/ajitpratap0/gridio/pkg/errors"
	"github.com/ajitpratap0/gridio/pkg/formats/columnar"
	"github.com/ajitpratap0/gridio/pkg/json"
	"github.com/ajitpratap0/gridio/pkg/meta"
	"github.com/ajitpratap0/gridio/pkg/metrics"
	"github.com/ajitpratap0/gridio/pkg/netio/format"
	"github.com/ajitpratap0/gridio/pkg/network"
	"github.com/ajitpratap0/gridio/pkg/policy"
)

// AttrsEntry is the name of the global attributes entry.
const AttrsEntry = "attrs.json"

// Magic identifies archives written by this package.
const Magic = "gridio"

// Attrs are the global attributes of an archive.
type Attrs struct {
	Magic   string        `json:"format"`
	Version int           `json:"version"`
	Variant format.Format `json:"variant"`
	Name    string        `json:"name"`
	CRS     string        `json:"crs"`
	// Meta is the metadata as a JSON document
	Meta   string        `json:"meta"`
	Policy policy.Report `json:"policy"`
	// Tables lists the frame keys in write order
	Tables []string `json:"tables"`
}

// Variant binds a format to the columnar encoding of its variables.
type Variant struct {
	Format    format.Format
	Columnar  columnar.Format
	Extension string
}

var (
	// NetCDF stores variables as Arrow IPC files
	NetCDF = Variant{Format: format.NetCDF, Columnar: columnar.Arrow, Extension: ".arrow"}
	// HDF5 stores variables as Parquet files
	HDF5 = Variant{Format: format.HDF5, Columnar: columnar.Parquet, Extension: ".parquet"}
)

func variantOf(entry string) (Variant, bool) {
	switch path.Ext(entry) {
	case NetCDF.Extension:
		return NetCDF, true
	case HDF5.Extension:
		return HDF5, true
	default:
		return Variant{}, false
	}
}

// Adapter reads and writes archives of one variant.
type Adapter struct {
	variant Variant
}

// New creates an adapter for the netcdf or hdf5 format.
func New(f format.Format) (*Adapter, error) {
	switch f {
	case format.NetCDF:
		return &Adapter{variant: NetCDF}, nil
	case format.HDF5:
		return &Adapter{variant: HDF5}, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "%s is not an archive format", f)
	}
}

// Format returns the format of the adapter's variant.
func (a *Adapter) Format() format.Format {
	return a.variant.Format
}

// method returns the zip method of variable entries and the compression
// left to the columnar writer.
func (a *Adapter) method(p *policy.Policy) (uint16, compression.Algorithm) {
	alg := p.Algorithm()
	switch {
	case alg == compression.None:
		return zip.Store, compression.None
	case a.variant.Columnar == columnar.Parquet:
		return zip.Store, alg
	case alg == compression.LZ4 || alg == compression.Zstd:
		return zip.Store, alg
	default:
		return zip.Deflate, compression.None
	}
}

type encoded struct {
	key  string
	data []byte
}

// Export writes n to the file dest.
func (a *Adapter) Export(ctx context.Context, n *network.Network, dest string, opts format.Options) error {
	f := a.variant.Format
	opts = opts.Resolve(f)
	if err := opts.Validate(f); err != nil {
		return err
	}
	return format.Observe(ctx, opts, f, metrics.OpExport, dest, func(ctx context.Context, log *zap.Logger) (int, error) {
		parts, err := assembler.Disassemble(n)
		if err != nil {
			return 0, err
		}
		frames, report, err := parts.Encode(ctx, opts.Registry, opts.Policy, opts.Workers)
		if err != nil {
			return 0, err
		}

		method, alg := a.method(opts.Policy)
		config := &columnar.WriterConfig{Format: a.variant.Columnar, Compression: alg, Level: opts.Policy.Level()}
		vars, err := parallel.Map(ctx, parallel.Limit(opts.Workers), frames, func(_ context.Context, fr *codec.Frame) (encoded, error) {
			var buf bytes.Buffer
			cfg := *config
			if err := columnar.WriteFrame(&buf, fr, &cfg); err != nil {
				return encoded{}, err
			}
			log.Debug("encoded table", zap.String("table", fr.Key), zap.Int("bytes", buf.Len()))
			return encoded{key: fr.Key, data: buf.Bytes()}, nil
		})
		if err != nil {
			return 0, err
		}

		attrs := Attrs{Magic: Magic, Version: 1, Variant: f, Name: parts.Name, CRS: parts.CRS, Policy: report}
		if attrs.Meta, err = meta.Encode(parts.Meta); err != nil {
			return 0, errors.Propagate(err, errors.ErrorTypeInternal, "network metadata")
		}
		for _, v := range vars {
			attrs.Tables = append(attrs.Tables, v.key)
		}

		err = fsutil.WriteFileAtomic(opts.Fs, dest, func(w io.Writer) error {
			return a.writeZip(w, attrs, vars, method, opts.Policy.Level())
		})
		if err != nil {
			return 0, err
		}
		format.Declare(opts, log, report)
		return len(vars), nil
	})
}

func (a *Adapter) writeZip(w io.Writer, attrs Attrs, vars []encoded, method uint16, level compression.Level) error {
	zw := zip.NewWriter(w)
	flateLevel := int(level)
	if flateLevel == 0 {
		flateLevel = flate.DefaultCompression
	}
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flateLevel)
	})

	header, err := json.Marshal(attrs)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode archive attributes")
	}
	if err := writeEntry(zw, AttrsEntry, zip.Deflate, header); err != nil {
		return err
	}
	for _, v := range vars {
		if err := writeEntry(zw, v.key+a.variant.Extension, method, v.data); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeDestinationUnwritable, "failed to finish archive")
	}
	return nil
}

func writeEntry(zw *zip.Writer, name string, method uint16, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeDestinationUnwritable, "cannot add %s to archive", name)
	}
	if _, err := w.Write(data); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeDestinationUnwritable, "failed to write %s", name)
	}
	return nil
}

// Import reads the network stored in the archive src.
func (a *Adapter) Import(ctx context.Context, src string, opts format.Options) (*network.Network, error) {
	f := a.variant.Format
	opts = opts.Resolve(f)
	if err := opts.Validate(f); err != nil {
		return nil, err
	}
	var out *network.Network
	err := format.Observe(ctx, opts, f, metrics.OpImport, src, func(ctx context.Context, log *zap.Logger) (int, error) {
		zr, err := open(opts.Fs, src)
		if err != nil {
			return 0, err
		}
		attrs, err := readAttrs(zr)
		if err != nil {
			return 0, err
		}
		if attrs.Variant != f {
			log.Debug("archive written as another variant", zap.String("variant", string(attrs.Variant)))
		}

		entries := make(map[string]*zip.File)
		for _, zf := range zr.File {
			if _, ok := variantOf(zf.Name); ok {
				entries[strings.TrimSuffix(zf.Name, path.Ext(zf.Name))] = zf
			}
		}
		for _, key := range attrs.Tables {
			if _, ok := entries[key]; !ok {
				return 0, errors.Newf(errors.ErrorTypeSchemaMismatch, "archive lists table %s but does not hold it", key)
			}
		}
		keys := make([]string, 0, len(entries))
		for key := range entries {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		frames, err := parallel.Map(ctx, parallel.Limit(opts.Workers), keys, func(_ context.Context, key string) (*codec.Frame, error) {
			return readVariable(entries[key], key)
		})
		if err != nil {
			return 0, err
		}

		parts := assembler.NewParts()
		parts.Name, parts.CRS = attrs.Name, attrs.CRS
		if parts.Meta, err = meta.Decode(attrs.Meta); err != nil {
			return 0, err
		}
		for _, fr := range frames {
			if err := parts.AddFrame(fr); err != nil {
				return 0, errors.Propagate(err, errors.ErrorTypeSchemaMismatch, "table "+fr.Key)
			}
		}
		n, err := assembler.Assemble(parts, opts.Registry)
		if err != nil {
			return 0, err
		}
		if attrs.Policy.Lossy {
			log.Debug("archive was written with reduced precision", zap.Bool("float32", attrs.Policy.Float32))
		}
		out = n
		return len(frames), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func readVariable(zf *zip.File, key string) (*codec.Frame, error) {
	v, _ := variantOf(zf.Name)
	rc, err := zf.Open()
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeSourceUnreadable, "cannot open %s", zf.Name)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeSourceUnreadable, "cannot read %s", zf.Name)
	}
	fr, err := columnar.ReadFrame(data, v.Columnar)
	if err != nil {
		return nil, errors.Propagate(err, errors.ErrorTypeSourceUnreadable, "variable "+key)
	}
	fr.Key = key
	return fr, nil
}

func open(fs afero.Fs, src string) (*zip.Reader, error) {
	info, err := fs.Stat(src)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeSourceUnreadable, "cannot access %s", src)
	}
	if info.IsDir() {
		return nil, errors.Newf(errors.ErrorTypeSourceUnreadable, "%s is a directory", src)
	}
	data, err := afero.ReadFile(fs, src)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeSourceUnreadable, "cannot read %s", src)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeSourceUnreadable, "%s is not an archive", src)
	}
	return zr, nil
}

func readAttrs(zr *zip.Reader) (*Attrs, error) {
	for _, zf := range zr.File {
		if zf.Name != AttrsEntry {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeSourceUnreadable, "cannot open archive attributes")
		}
		defer rc.Close()
		var attrs Attrs
		if err := json.NewDecoder(rc).Decode(&attrs); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeSourceUnreadable, "cannot decode archive attributes")
		}
		if attrs.Magic != Magic {
			return nil, errors.Newf(errors.ErrorTypeSourceUnreadable, "unexpected archive format %q", attrs.Magic)
		}
		return &attrs, nil
	}
	return nil, errors.Newf(errors.ErrorTypeSourceUnreadable, "archive has no %s", AttrsEntry)
}

// ReadAttrs returns the global attributes of the archive at src.
func ReadAttrs(fs afero.Fs, src string) (*Attrs, error) {
	zr, err := open(fsutil.OrOS(fs), src)
	if err != nil {
		return nil, err
	}
	return readAttrs(zr)
}
