package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestSpansAreExported(t *testing.T) {
	var buf bytes.Buffer
	config := DefaultTracingConfig()
	config.Output = &buf
	config.PrettyPrint = false

	shutdown, err := Init(config)
	require.NoError(t, err)

	ctx, span := StartSpan(context.Background(), "gridio.export", attribute.String("format", "csv"))
	span.SetAttribute("tables", 3)
	_, child := StartSpan(ctx, "gridio.table")
	child.End(errors.New("boom"))
	span.End(nil)

	require.NoError(t, shutdown(context.Background()))
	out := buf.String()
	assert.Contains(t, out, "gridio.export")
	assert.Contains(t, out, "gridio.table")
	assert.Contains(t, out, "boom")
}

func TestUnknownExporter(t *testing.T) {
	config := DefaultTracingConfig()
	config.ExporterType = "jaeger"
	_, err := Init(config)
	assert.Error(t, err)
}
