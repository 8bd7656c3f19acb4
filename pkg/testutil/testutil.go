// Package testutil provides fixtures and assertions shared by gridio tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/gridio/pkg/meta"
	"github.com/ajitpratap0/gridio/pkg/network"
)

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// Tolerance returns comparison options for float values that may differ by
// up to abs, or by relative error rel (float32 narrowing). NaN equals NaN.
func Tolerance(abs, rel float64) []cmp.Option {
	return []cmp.Option{
		cmpopts.EquateNaNs(),
		cmpopts.EquateApprox(rel, abs),
		cmp.Comparer(network.GeometryEqual),
	}
}

// Exact returns comparison options for bit-identical values. NaN equals NaN.
func Exact() []cmp.Option {
	return Tolerance(0, 0)
}

// float32Rel bounds the relative error of narrowing a float64 to float32.
const float32Rel = 1e-7

// Float32 returns comparison options for values stored at 32 bit width.
func Float32() []cmp.Option {
	return Tolerance(0, float32Rel)
}

// DiffColumns compares two columns with opts and returns a readable diff,
// or "" when they match.
func DiffColumns(want, got *network.Column, opts ...cmp.Option) string {
	if want.Type != got.Type {
		return "dtype " + string(want.Type) + " != " + string(got.Type)
	}
	return cmp.Diff(want.Data, got.Data, opts...)
}

// RequireTablesEqual asserts that two tables have the same index and the
// same columns by name. Column order is ignored.
func RequireTablesEqual(t *testing.T, want, got *network.Table, what string, opts ...cmp.Option) {
	t.Helper()
	require.NotNil(t, got, what)
	require.Equal(t, want.Index.Names(), got.Index.Names(), "%s index levels", what)
	for i, l := range want.Index.Levels {
		if d := DiffColumns(l, got.Index.Levels[i]); d != "" {
			t.Fatalf("%s index level %s differs (-want +got):\n%s", what, l.Name, d)
		}
	}
	assert.ElementsMatch(t, want.Names(), got.Names(), "%s columns", what)
	for _, c := range want.Columns {
		gc := got.Column(c.Name)
		require.NotNil(t, gc, "%s column %s", what, c.Name)
		if d := DiffColumns(c, gc, opts...); d != "" {
			t.Errorf("%s column %s differs (-want +got):\n%s", what, c.Name, d)
		}
	}
}

// RequireNetworksEqual asserts that got holds the same name, metadata,
// snapshots, investment periods, shapes and component tables as want.
// Float values are compared with opts; everything else exactly.
func RequireNetworksEqual(t *testing.T, want, got *network.Network, opts ...cmp.Option) {
	t.Helper()
	require.NotNil(t, got)
	assert.Equal(t, want.Name, got.Name, "name")
	assert.Equal(t, want.CRS, got.CRS, "crs")
	assert.True(t, meta.Equal(want.Meta, got.Meta), "metadata: want %s got %s", mustEncode(want.Meta), mustEncode(got.Meta))

	RequireTablesEqual(t, want.SnapshotWeightings, got.SnapshotWeightings, "snapshot weightings", opts...)
	if want.InvestmentPeriods == nil {
		assert.Nil(t, got.InvestmentPeriods, "investment periods")
	} else {
		RequireTablesEqual(t, want.InvestmentPeriodWeightings, got.InvestmentPeriodWeightings, "investment period weightings", opts...)
	}
	if want.Shapes == nil {
		assert.Nil(t, got.Shapes, "shapes")
	} else {
		RequireTablesEqual(t, want.Shapes, got.Shapes, "shapes", opts...)
	}

	require.Equal(t, want.Classes(), got.Classes(), "classes")
	for _, class := range want.Classes() {
		wc, gc := want.Component(class), got.Component(class)
		RequireTablesEqual(t, wc.Static, gc.Static, class, opts...)
		for attr, wt := range wc.Dynamic {
			gt, ok := gc.Dynamic[attr]
			require.True(t, ok, "%s-%s missing", class, attr)
			RequireTablesEqual(t, wt, gt, class+"-"+attr, opts...)
		}
		assert.Len(t, gc.Dynamic, len(wc.Dynamic), "%s time-varying attributes", class)
	}
}

func mustEncode(v meta.Value) string {
	s, err := meta.Encode(v)
	if err != nil {
		return err.Error()
	}
	return s
}

