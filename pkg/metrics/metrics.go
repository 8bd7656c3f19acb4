// Package metrics exposes Prometheus metrics for gridio operations.
//
// # Overview
//
// Every export, import and remote fetch is counted and timed:
//
//	timer := metrics.NewTimer()
//	err := adapter.Export(ctx, n, dest, opts)
//	metrics.ObserveOperation("netcdf", metrics.OpExport, timer.Stop(), err)
//
// The collectors are registered with the default registry on package load,
// so a process serving promhttp.Handler() exposes them without further setup.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ajitpratap0/gridio/pkg/errors"
)

// Operation label values.
const (
	OpExport = "export"
	OpImport = "import"
	OpFetch  = "fetch"
)

var (
	// Operations counts finished operations.
	// Labels: format, operation (export/import), status (success or error type)
	//
	// Example:
	//	metrics.Operations.WithLabelValues("csv", "export", "success").Inc()
	Operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridio_operations_total",
			Help: "Total number of export and import operations",
		},
		[]string{"format", "operation", "status"},
	)

	// OperationDuration tracks the wall time of operations in seconds.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "gridio_operation_duration_seconds",
			Help: "Duration of export and import operations in seconds",
			Buckets: []float64{
				0.001, // 1ms - tiny networks
				0.01,  // 10ms
				0.1,   // 100ms
				1,     // 1s - typical workbooks
				10,    // 10s - large archives
				60,    // 1m - remote bundles
			},
		},
		[]string{"format", "operation"},
	)

	// Tables counts tables written or read.
	Tables = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridio_tables_total",
			Help: "Total number of tables written or read",
		},
		[]string{"format", "operation"},
	)

	// FetchBytes counts bytes retrieved from remote sources.
	FetchBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridio_fetch_bytes_total",
			Help: "Total bytes downloaded from remote sources",
		},
		[]string{"scheme"},
	)
)

// Status returns the status label for err: "success" or the error type.
func Status(err error) string {
	if err == nil {
		return "success"
	}
	return string(errors.TypeOf(err))
}

// ObserveOperation records one finished operation.
func ObserveOperation(format, operation string, d time.Duration, err error) {
	Operations.WithLabelValues(format, operation, Status(err)).Inc()
	OperationDuration.WithLabelValues(format, operation).Observe(d.Seconds())
}

// AddTables records n tables handled by an operation.
func AddTables(format, operation string, n int) {
	Tables.WithLabelValues(format, operation).Add(float64(n))
}

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed duration since creation. It can be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
