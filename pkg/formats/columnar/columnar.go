// Package columnar stores codec frames as Apache Arrow IPC or Apache Parquet
// files. The frame descriptor travels in the schema metadata so that a frame
// read back has the same field order, dtypes and index flags.
package columnar

import (
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/gridio/pkg/codec"
	"github.com/ajitpratap0/gridio/pkg/compression"
	"github.com/ajitpratap0/gridio/pkg/errors"
	"github.com/ajitpratap0/gridio/pkg/network"
)

// Format represents a columnar storage format
type Format string

const (
	// Parquet is Apache Parquet format
	Parquet Format = "parquet"
	// Arrow is Apache Arrow IPC file format
	Arrow Format = "arrow"
)

// DescriptorKey is the schema metadata key holding the frame descriptor.
const DescriptorKey = "gridio.frame"

// WriterConfig configures columnar writers
type WriterConfig struct {
	Format      Format
	Compression compression.Algorithm
	Level       compression.Level
	Allocator   memory.Allocator
}

// DefaultWriterConfig returns default writer configuration
func DefaultWriterConfig() *WriterConfig {
	return &WriterConfig{
		Format:      Parquet,
		Compression: compression.Zstd,
		Allocator:   memory.NewGoAllocator(),
	}
}

// WriteFrame writes f to w as one columnar file.
func WriteFrame(w io.Writer, f *codec.Frame, config *WriterConfig) error {
	if config == nil {
		config = DefaultWriterConfig()
	}
	if config.Allocator == nil {
		config.Allocator = memory.NewGoAllocator()
	}

	rec, err := buildRecord(f, config.Allocator)
	if err != nil {
		return err
	}
	defer rec.Release()

	switch config.Format {
	case Arrow:
		err = writeArrow(w, rec, config)
	case Parquet:
		err = writeParquet(w, rec, config)
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported columnar format: %s", config.Format)
	}
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeDestinationUnwritable, "failed to write %s frame %s", config.Format, f.Key)
	}
	return nil
}

// ReadFrame reads a frame written by WriteFrame from the complete file contents.
func ReadFrame(data []byte, format Format) (*codec.Frame, error) {
	var (
		f   *codec.Frame
		err error
	)
	switch format {
	case Arrow:
		f, err = readArrow(data)
	case Parquet:
		f, err = readParquet(data)
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported columnar format: %s", format)
	}
	if err != nil {
		return nil, errors.Propagate(err, errors.ErrorTypeSourceUnreadable, fmt.Sprintf("failed to read %s frame", format))
	}
	return f, nil
}

// Schema conversion helpers

func arrowType(fd *codec.Field) (arrow.DataType, error) {
	switch fd.Type {
	case network.Float:
		if fd.Float32 {
			return arrow.PrimitiveTypes.Float32, nil
		}
		return arrow.PrimitiveTypes.Float64, nil
	case network.Int:
		return arrow.PrimitiveTypes.Int64, nil
	case network.Bool:
		return arrow.FixedWidthTypes.Boolean, nil
	case network.String:
		return arrow.BinaryTypes.String, nil
	case network.Time:
		return arrow.FixedWidthTypes.Timestamp_ns, nil
	case network.Geometry:
		// WKB
		return arrow.BinaryTypes.Binary, nil
	default:
		return nil, fmt.Errorf("unsupported field type: %s", fd.Type)
	}
}

func dtypeOf(t arrow.DataType) (network.DType, error) {
	switch t.ID() {
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return network.Float, nil
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32:
		return network.Int, nil
	case arrow.BOOL:
		return network.Bool, nil
	case arrow.STRING, arrow.LARGE_STRING:
		return network.String, nil
	case arrow.TIMESTAMP:
		return network.Time, nil
	case arrow.BINARY, arrow.LARGE_BINARY:
		return network.Geometry, nil
	default:
		return "", fmt.Errorf("unsupported arrow type: %s", t)
	}
}

func buildRecord(f *codec.Frame, mem memory.Allocator) (arrow.Record, error) {
	desc, err := f.Descriptor().Marshal()
	if err != nil {
		return nil, err
	}

	fields := make([]arrow.Field, len(f.Fields))
	for i, fd := range f.Fields {
		t, err := arrowType(fd)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeInternal, "frame %s field %s", f.Key, fd.Name)
		}
		fields[i] = arrow.Field{Name: fd.Name, Type: t, Nullable: fd.Type == network.Geometry || fd.Type == network.Time}
	}
	md := arrow.NewMetadata([]string{DescriptorKey}, []string{desc})
	sc := arrow.NewSchema(fields, &md)

	b := array.NewRecordBuilder(mem, sc)
	defer b.Release()

	for i, fd := range f.Fields {
		if err := appendField(b.Field(i), fd); err != nil {
			return nil, errors.Propagate(err, errors.ErrorTypeInternal, fmt.Sprintf("frame %s field %s", f.Key, fd.Name))
		}
	}
	return b.NewRecord(), nil
}

func appendField(builder array.Builder, fd *codec.Field) error {
	switch b := builder.(type) {
	case *array.Float64Builder:
		b.AppendValues(fd.Floats(), nil)
	case *array.Float32Builder:
		src := fd.Floats()
		narrow := make([]float32, len(src))
		for i, v := range src {
			narrow[i] = float32(v)
		}
		b.AppendValues(narrow, nil)
	case *array.Int64Builder:
		b.AppendValues(fd.Ints(), nil)
	case *array.BooleanBuilder:
		b.AppendValues(fd.Bools(), nil)
	case *array.StringBuilder:
		b.AppendValues(fd.Strings(), nil)
	case *array.TimestampBuilder:
		for _, t := range fd.Times() {
			if t.IsZero() {
				b.AppendNull()
				continue
			}
			b.Append(arrow.Timestamp(t.UnixNano()))
		}
	case *array.BinaryBuilder:
		for _, g := range fd.Geometries() {
			wkb, err := codec.MarshalWKB(g)
			if err != nil {
				return err
			}
			if wkb == nil {
				b.AppendNull()
				continue
			}
			b.Append(wkb)
		}
	default:
		return fmt.Errorf("unsupported builder type: %T", builder)
	}
	return nil
}

// descriptorFor recovers the descriptor from schema metadata, or derives one
// treating the first column as the index when the file was not written by
// gridio.
func descriptorFor(sc *arrow.Schema, fallback *string) (codec.Descriptor, error) {
	md := sc.Metadata()
	if i := md.FindKey(DescriptorKey); i >= 0 {
		return codec.ParseDescriptor(md.Values()[i])
	}
	if fallback != nil {
		return codec.ParseDescriptor(*fallback)
	}

	d := codec.Descriptor{Key: "unknown"}
	for i, f := range sc.Fields() {
		t, err := dtypeOf(f.Type)
		if err != nil {
			return d, errors.Wrapf(err, errors.ErrorTypeSourceUnreadable, "column %s", f.Name)
		}
		d.Fields = append(d.Fields, codec.FieldDescriptor{Name: f.Name, Type: t, Index: i == 0, Float32: f.Type.ID() == arrow.FLOAT32})
	}
	if len(d.Fields) == 0 {
		return d, errors.New(errors.ErrorTypeSchemaMismatch, "columnar file has no columns")
	}
	return d, nil
}

// newFrame allocates empty fields following d.
func newFrame(d codec.Descriptor) *codec.Frame {
	f := &codec.Frame{Key: d.Key, Fields: make([]*codec.Field, len(d.Fields))}
	for i, fd := range d.Fields {
		f.Fields[i] = &codec.Field{Column: network.NewColumn(fd.Name, fd.Type, 0), Index: fd.Index, Float32: fd.Float32}
	}
	return f
}

// appendArray appends the values of arr to fd, widening float32 and decoding WKB.
func appendArray(fd *codec.Field, arr arrow.Array) error {
	n := arr.Len()
	switch a := arr.(type) {
	case *array.Float64:
		out := fd.Floats()
		for i := 0; i < n; i++ {
			out = append(out, a.Value(i))
		}
		fd.Data = out
	case *array.Float32:
		out := fd.Floats()
		for i := 0; i < n; i++ {
			out = append(out, float64(a.Value(i)))
		}
		fd.Data = out
	case *array.Int64:
		fd.Data = append(fd.Ints(), a.Int64Values()...)
	case *array.Int32:
		out := fd.Ints()
		for i := 0; i < n; i++ {
			out = append(out, int64(a.Value(i)))
		}
		fd.Data = out
	case *array.Boolean:
		out := fd.Bools()
		for i := 0; i < n; i++ {
			out = append(out, a.Value(i))
		}
		fd.Data = out
	case *array.String:
		out := fd.Strings()
		for i := 0; i < n; i++ {
			out = append(out, a.Value(i))
		}
		fd.Data = out
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		out := fd.Times()
		for i := 0; i < n; i++ {
			if a.IsNull(i) {
				out = append(out, time.Time{})
				continue
			}
			out = append(out, a.Value(i).ToTime(unit).UTC())
		}
		fd.Data = out
	case *array.Binary:
		for i := 0; i < n; i++ {
			var raw []byte
			if !a.IsNull(i) {
				raw = a.Value(i)
			}
			g, err := codec.UnmarshalWKB(raw)
			if err != nil {
				return err
			}
			if err := fd.Append(g); err != nil {
				return err
			}
		}
	default:
		return errors.Newf(errors.ErrorTypeSchemaMismatch, "field %s: unsupported arrow type %s", fd.Name, arr.DataType())
	}
	return nil
}

// checkSchema verifies that the file's columns match the descriptor.
func checkSchema(sc *arrow.Schema, d codec.Descriptor) error {
	if sc.NumFields() != len(d.Fields) {
		return errors.Newf(errors.ErrorTypeSchemaMismatch, "frame %s: descriptor lists %d fields, file has %d", d.Key, len(d.Fields), sc.NumFields())
	}
	for i, fd := range d.Fields {
		if sc.Field(i).Name != fd.Name {
			return errors.Newf(errors.ErrorTypeSchemaMismatch, "frame %s: column %d is %q, descriptor says %q", d.Key, i, sc.Field(i).Name, fd.Name)
		}
	}
	return nil
}
