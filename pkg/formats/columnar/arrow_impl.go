package columnar

import (
	"bytes"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/gridio/pkg/codec"
	"github.com/ajitpratap0/gridio/pkg/compression"
)

// ipcOptions maps the configured algorithm to IPC body compression. Only
// LZ4 frame and Zstandard exist in the IPC format; other algorithms are
// left to the container.
func ipcOptions(rec arrow.Record, config *WriterConfig) []ipc.Option {
	opts := []ipc.Option{ipc.WithSchema(rec.Schema()), ipc.WithAllocator(config.Allocator)}
	switch config.Compression {
	case compression.LZ4:
		opts = append(opts, ipc.WithLZ4())
	case compression.Zstd:
		opts = append(opts, ipc.WithZstd())
	}
	return opts
}

func writeArrow(w io.Writer, rec arrow.Record, config *WriterConfig) error {
	fw, err := ipc.NewFileWriter(w, ipcOptions(rec, config)...)
	if err != nil {
		return fmt.Errorf("failed to create Arrow writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("failed to write record batch: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to close Arrow writer: %w", err)
	}
	return nil
}

func readArrow(data []byte) (*codec.Frame, error) {
	reader, err := ipc.NewFileReader(bytes.NewReader(data), ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, fmt.Errorf("failed to create Arrow reader: %w", err)
	}
	defer reader.Close()

	sc := reader.Schema()
	d, err := descriptorFor(sc, nil)
	if err != nil {
		return nil, err
	}
	if err := checkSchema(sc, d); err != nil {
		return nil, err
	}

	f := newFrame(d)
	for b := 0; b < reader.NumRecords(); b++ {
		// owned by the reader until the next call
		rec, err := reader.Record(b)
		if err != nil {
			return nil, fmt.Errorf("failed to read record batch %d: %w", b, err)
		}
		for i, fd := range f.Fields {
			if err := appendArray(fd, rec.Column(i)); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}
