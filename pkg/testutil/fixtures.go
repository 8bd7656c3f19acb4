package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/ajitpratap0/gridio/pkg/meta"
	"github.com/ajitpratap0/gridio/pkg/network"
)

// Start is the first snapshot of every fixture.
var Start = time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)

// Metadata shapes every format must round-trip.
var (
	FlatMeta   = meta.MustFromAny(map[string]interface{}{"author": "Jane Doe", "project": "grid study"})
	NestedMeta = meta.MustFromAny(map[string]interface{}{
		"scenario": map[string]interface{}{
			"name":   "base",
			"config": map[string]interface{}{"solver": map[string]interface{}{"name": "highs", "threads": 4}},
		},
	})
	MixedMeta = meta.MustFromAny(map[string]interface{}{
		"version": 3,
		"ratio":   0.25,
		"enabled": true,
		"note":    `quoted "text", with commas`,
		"tags":    []interface{}{"a", 1, false},
		"nothing": nil,
	})
)

// ScipyLike builds a small single-level network: buses, carriers, generators
// with per-snapshot availability, loads with demand series, lines and a
// transformer, over four hourly snapshots.
func ScipyLike(t *testing.T) *network.Network {
	t.Helper()
	n := network.New("scipy-like")
	n.Meta = FlatMeta
	require.NoError(t, n.SetSnapshots(network.NewTime(network.SnapshotLevel, network.HourlyRange(Start, 4))))
	objective := n.SnapshotWeightings.Column("objective").Floats()
	for i := range objective {
		objective[i] = 2
	}

	add := func(class, name string, attrs map[string]interface{}) {
		require.NoError(t, n.Add(class, name, attrs))
	}
	add("Carrier", "AC", map[string]interface{}{"co2_emissions": 0.0})
	add("Carrier", "gas", map[string]interface{}{"co2_emissions": 0.19, "color": "#d35050", "nice_name": "Gas, open cycle"})
	add("Bus", "Frankfurt", map[string]interface{}{"v_nom": 380.0, "x": 8.68, "y": 50.11})
	add("Bus", "Mannheim", map[string]interface{}{"v_nom": 380.0, "x": 8.47, "y": 49.49})
	add("Bus", "Kassel", map[string]interface{}{"v_nom": 220.0, "x": 9.48, "y": 51.31})
	add("Generator", "Frankfurt gas", map[string]interface{}{
		"bus": "Frankfurt", "carrier": "gas", "p_nom": 500.0, "marginal_cost": 50.0,
	})
	add("Generator", "Kassel wind", map[string]interface{}{
		"bus": "Kassel", "p_nom": 300.0, "p_nom_extendable": true,
		"p_max_pu": []float64{0.1, 0.45, 0.871234567891, 0.3},
	})
	add("Load", "Frankfurt load", map[string]interface{}{"bus": "Frankfurt", "p_set": []float64{210, 198.5, 230.25, 250}})
	add("Load", "Mannheim load", map[string]interface{}{"bus": "Mannheim", "p_set": []float64{90.125, 80, 85.5, 1e-3}})
	add("Line", "F-M", map[string]interface{}{"bus0": "Frankfurt", "bus1": "Mannheim", "x": 0.1, "r": 0.01, "s_nom": 1000.0, "length": 72.5})
	add("Line", "F-K", map[string]interface{}{"bus0": "Frankfurt", "bus1": "Kassel", "x": 0.2, "r": 0.02, "s_nom": 800.0})
	add("Transformer", "K-T", map[string]interface{}{"bus0": "Kassel", "bus1": "Frankfurt", "x": 0.05, "s_nom": 600.0, "tap_ratio": 1.05})
	return n
}

// ACDC builds a network on a two-level (period, timestep) snapshot index
// with AC and DC buses joined by a link.
func ACDC(t *testing.T) *network.Network {
	t.Helper()
	n := network.New("ac-dc")
	n.Meta = NestedMeta
	require.NoError(t, n.SetSnapshots(network.NewTime(network.SnapshotLevel, network.HourlyRange(Start, 3))))
	require.NoError(t, n.SetInvestmentPeriods(2020, 2030))
	years := n.InvestmentPeriodWeightings.Column("years").Floats()
	years[0], years[1] = 10, 10
	objective := n.InvestmentPeriodWeightings.Column("objective").Floats()
	objective[0], objective[1] = 1, 0.5

	add := func(class, name string, attrs map[string]interface{}) {
		require.NoError(t, n.Add(class, name, attrs))
	}
	add("Bus", "Norway", map[string]interface{}{"v_nom": 380.0, "carrier": "AC"})
	add("Bus", "Norway DC", map[string]interface{}{"v_nom": 200.0, "carrier": "DC"})
	add("Bus", "GB DC", map[string]interface{}{"v_nom": 200.0, "carrier": "DC"})
	add("Link", "Norway converter", map[string]interface{}{"bus0": "Norway", "bus1": "Norway DC", "p_nom": 800.0, "efficiency": 0.98})
	add("Link", "DC link", map[string]interface{}{
		"bus0": "Norway DC", "bus1": "GB DC", "p_nom": 1400.0, "carrier": "DC",
		"p_max_pu": []float64{1, 0.9, 0.8, 1, 0.95, 0.85},
	})
	add("Generator", "Norway hydro", map[string]interface{}{
		"bus": "Norway", "p_nom": 1200.0, "build_year": int64(2020),
		"p_max_pu": []float64{0.5, 0.6, 0.7, 0.55, 0.65, 0.75},
	})
	add("Load", "GB load", map[string]interface{}{"bus": "GB DC", "p_set": []float64{100, 110, 120, 105, 115, 125}})
	return n
}

// ACDCWithShapes is ACDC with a shapes table in which one geometry is
// missing.
func ACDCWithShapes(t *testing.T) *network.Network {
	t.Helper()
	n := ACDC(t)

	norway := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{{4.5, 58}, {11, 58}, {11, 64}, {4.5, 64}, {4.5, 58}}})
	link := geom.NewLineString(geom.XY).MustSetCoords([]geom.Coord{{6.6, 58.3}, {-1.6, 55.1}})
	n.Shapes = network.NewTable(network.NameIndex("Norway", "GB DC", "DC link"),
		network.NewGeometry("geometry", []geom.T{norway, nil, link}),
		network.NewString("component", []string{"Bus", "Bus", "Link"}),
		network.NewString("idx", []string{"Norway", "GB DC", "DC link"}),
		network.NewString("type", []string{"country", "", "line"}),
	)
	n.CRS = "EPSG:3035"
	return n
}

// TimeDependentEfficiency builds a network whose conversion efficiencies
// and standing losses vary per snapshot.
func TimeDependentEfficiency(t *testing.T) *network.Network {
	t.Helper()
	n := network.New("time-dependent-efficiency")
	n.Meta = MixedMeta
	require.NoError(t, n.SetSnapshots(network.NewTime(network.SnapshotLevel, network.HourlyRange(Start, 3))))

	add := func(class, name string, attrs map[string]interface{}) {
		require.NoError(t, n.Add(class, name, attrs))
	}
	add("Bus", "elec", nil)
	add("Bus", "heat", map[string]interface{}{"carrier": "heat"})
	add("Generator", "chp", map[string]interface{}{"bus": "elec", "p_nom": 100.0, "efficiency": []float64{0.4, 0.42, 0.38}})
	add("Link", "heat pump", map[string]interface{}{"bus0": "elec", "bus1": "heat", "p_nom": 10.0, "efficiency": []float64{3.1, 2.9, 3.3}})
	add("Store", "heat store", map[string]interface{}{"bus": "heat", "e_nom": 50.0, "standing_loss": []float64{0.01, 0.02, 0.015}})
	add("StorageUnit", "battery", map[string]interface{}{
		"bus": "elec", "p_nom": 5.0, "max_hours": 4.0,
		"efficiency_store": []float64{0.95, 0.94, 0.96}, "efficiency_dispatch": []float64{0.9, 0.9, 0.91},
	})
	return n
}

// WithMeta returns n with its metadata replaced.
func WithMeta(n *network.Network, m meta.Value) *network.Network {
	n.Meta = m
	return n
}
