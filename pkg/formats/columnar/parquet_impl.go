package columnar

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ajitpratap0/gridio/pkg/codec"
	"github.com/ajitpratap0/gridio/pkg/compression"
)

func writeParquet(w io.Writer, rec arrow.Record, config *WriterConfig) error {
	opts := []parquet.WriterProperty{
		parquet.WithCompression(getParquetCompression(config.Compression)),
		parquet.WithVersion(parquet.V2_LATEST),
		parquet.WithAllocator(config.Allocator),
	}
	// levels only mean something to the gzip and zstd codecs
	if config.Level > 0 && (config.Compression == compression.Zstd || usesGzip(config.Compression)) {
		opts = append(opts, parquet.WithCompressionLevel(int(config.Level)))
	}
	props := parquet.NewWriterProperties(opts...)

	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(config.Allocator),
		pqarrow.WithStoreSchema(),
	)

	fw, err := pqarrow.NewFileWriter(rec.Schema(), w, props, arrowProps)
	if err != nil {
		return fmt.Errorf("failed to create Parquet writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("failed to write row group: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to close Parquet writer: %w", err)
	}
	return nil
}

func readParquet(data []byte) (*codec.Frame, error) {
	fr, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create Parquet reader: %w", err)
	}
	defer fr.Close()

	mem := memory.NewGoAllocator()
	reader, err := pqarrow.NewFileReader(fr, pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, fmt.Errorf("failed to create Arrow reader: %w", err)
	}

	tbl, err := reader.ReadTable(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to read table: %w", err)
	}
	defer tbl.Release()

	sc := tbl.Schema()
	d, err := descriptorFor(sc, fr.MetaData().KeyValueMetadata().FindValue(DescriptorKey))
	if err != nil {
		return nil, err
	}
	if err := checkSchema(sc, d); err != nil {
		return nil, err
	}

	f := newFrame(d)
	for i, fd := range f.Fields {
		for _, chunk := range tbl.Column(i).Data().Chunks() {
			if err := appendArray(fd, chunk); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

func usesGzip(a compression.Algorithm) bool {
	return a == compression.Zlib || a == compression.Gzip || a == compression.Deflate
}

func getParquetCompression(a compression.Algorithm) compress.Compression {
	switch {
	case usesGzip(a):
		return compress.Codecs.Gzip
	case a == compression.Zstd:
		return compress.Codecs.Zstd
	case a == compression.LZ4:
		return compress.Codecs.Lz4Raw
	case a == compression.Snappy || a == compression.S2:
		return compress.Codecs.Snappy
	default:
		return compress.Codecs.Uncompressed
	}
}
