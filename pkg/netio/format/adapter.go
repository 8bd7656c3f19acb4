package format

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/gridio/pkg/logger"
	"github.com/ajitpratap0/gridio/pkg/metrics"
	"github.com/ajitpratap0/gridio/pkg/network"
	"github.com/ajitpratap0/gridio/pkg/observability"
	"github.com/ajitpratap0/gridio/pkg/policy"
)

// Adapter persists networks in one format. Export writes a complete
// artifact at dest or fails without replacing what was there; Import reads
// an artifact fully into memory.
type Adapter interface {
	Format() Format
	Export(ctx context.Context, n *network.Network, dest string, opts Options) error
	Import(ctx context.Context, src string, opts Options) (*network.Network, error)
}

// Observe runs fn as operation op of format f on path, with a trace span,
// start and finish logs and operation metrics. fn returns the number of
// tables it handled.
func Observe(ctx context.Context, opts Options, f Format, op, path string, fn func(ctx context.Context, log *zap.Logger) (int, error)) error {
	ctx = logger.ContextWith(ctx, op, string(f), path)
	log := logger.WithContext(ctx, opts.Logger)

	ctx, span := observability.StartSpan(ctx, "gridio."+op,
		attribute.String("gridio.format", string(f)),
		attribute.String("gridio.path", path),
	)
	timer := metrics.NewTimer()
	log.Info(op + " started")

	tables, err := fn(ctx, log)

	elapsed := timer.Stop()
	metrics.ObserveOperation(string(f), op, elapsed, err)
	span.SetAttribute("gridio.tables", tables)
	span.End(err)

	if err != nil {
		log.Error(op+" failed", zap.Error(err), zap.Duration("duration", elapsed))
		return err
	}
	metrics.AddTables(string(f), op, tables)
	log.Info(op+" finished", zap.Int("tables", tables), zap.Duration("duration", elapsed))
	return nil
}

// Declare hands the precision report of an export to opts.Report and logs
// it when values were altered.
func Declare(opts Options, log *zap.Logger, r policy.Report) {
	if r.Lossy {
		fields := []zap.Field{zap.Bool("float32", r.Float32), zap.Int("columns", r.Columns)}
		if r.LeastSignificantDigit != nil {
			fields = append(fields, zap.Int("least_significant_digit", *r.LeastSignificantDigit))
		}
		log.Info("float values stored with reduced precision", fields...)
	}
	if opts.Report != nil {
		opts.Report(r)
	}
}
