package schema

import "math"

var inf = math.Inf(1)

func str(name, def string) Attribute {
	return Attribute{Name: name, Type: String, Default: def, Status: Input}
}

func num(name string, def float64) Attribute {
	return Attribute{Name: name, Type: Float, Default: def, Status: Input}
}

func integer(name string, def int64) Attribute {
	return Attribute{Name: name, Type: Int, Default: def, Status: Input}
}

func flag(name string, def bool) Attribute {
	return Attribute{Name: name, Type: Bool, Default: def, Status: Input}
}

// series is a static input that may be overridden per snapshot.
func series(name string, def float64) Attribute {
	return Attribute{Name: name, Type: Float, Default: def, Varying: true, Status: Input}
}

// result is a per-snapshot output written by solvers.
func result(name string) Attribute {
	return Attribute{Name: name, Type: Float, Default: 0.0, Varying: true, Status: Output}
}

func builtinClasses() []*Class {
	return []*Class{
		{
			Name: "Bus", ListName: "buses",
			Attributes: []Attribute{
				num("v_nom", 1), str("type", ""), num("x", 0), num("y", 0),
				str("carrier", "AC"), str("unit", ""),
				series("v_mag_pu_set", 1), num("v_mag_pu_min", 0), num("v_mag_pu_max", inf),
				str("control", "PQ"), str("generator", ""), str("sub_network", ""),
				result("p"), result("q"), result("v_mag_pu"), result("v_ang"), result("marginal_price"),
			},
		},
		{
			Name: "Carrier", ListName: "carriers",
			Attributes: []Attribute{
				num("co2_emissions", 0), str("color", ""), str("nice_name", ""),
				num("max_growth", inf), num("max_relative_growth", 0),
			},
		},
		{
			Name: "GlobalConstraint", ListName: "global_constraints",
			Attributes: []Attribute{
				str("type", "primary_energy"), integer("investment_period", 0),
				str("carrier_attribute", "co2_emissions"), str("sense", "<="),
				num("constant", 0), num("mu", 0),
			},
		},
		{
			Name: "Generator", ListName: "generators",
			Attributes: []Attribute{
				str("bus", ""), str("control", "PQ"), str("type", ""),
				num("p_nom", 0), flag("p_nom_extendable", false), num("p_nom_min", 0), num("p_nom_max", inf),
				series("p_min_pu", 0), series("p_max_pu", 1), series("p_set", 0), series("q_set", 0),
				num("sign", 1), str("carrier", ""), series("marginal_cost", 0), num("capital_cost", 0),
				series("efficiency", 1), flag("committable", false), integer("build_year", 0), num("lifetime", inf),
				num("p_nom_opt", 0), result("p"), result("q"), result("status"),
			},
		},
		{
			Name: "Line", ListName: "lines",
			Attributes: []Attribute{
				str("bus0", ""), str("bus1", ""), str("type", ""),
				num("x", 0), num("r", 0), num("g", 0), num("b", 0),
				num("s_nom", 0), flag("s_nom_extendable", false), num("s_nom_min", 0), num("s_nom_max", inf),
				series("s_max_pu", 1), num("capital_cost", 0), num("length", 0),
				str("carrier", "AC"), num("num_parallel", 1), num("v_ang_min", -inf), num("v_ang_max", inf),
				result("p0"), result("q0"), result("p1"), result("q1"),
			},
		},
		{
			Name: "Link", ListName: "links",
			Attributes: []Attribute{
				str("bus0", ""), str("bus1", ""), str("type", ""), str("carrier", ""),
				series("efficiency", 1), num("p_nom", 0), flag("p_nom_extendable", false),
				series("p_set", 0), series("p_min_pu", 0), series("p_max_pu", 1),
				num("capital_cost", 0), series("marginal_cost", 0), num("length", 0),
				result("p0"), result("p1"),
			},
		},
		{
			Name: "Load", ListName: "loads",
			Attributes: []Attribute{
				str("bus", ""), str("carrier", ""), str("type", ""),
				series("p_set", 0), series("q_set", 0), num("sign", -1), flag("active", true),
				result("p"), result("q"),
			},
		},
		{
			Name: "ShuntImpedance", ListName: "shunt_impedances",
			Attributes: []Attribute{
				str("bus", ""), num("g", 0), num("b", 0), num("sign", -1),
				result("p"), result("q"),
			},
		},
		{
			Name: "StorageUnit", ListName: "storage_units",
			Attributes: []Attribute{
				str("bus", ""), str("control", "PQ"), str("type", ""), str("carrier", ""),
				num("p_nom", 0), flag("p_nom_extendable", false),
				series("p_min_pu", -1), series("p_max_pu", 1), series("p_set", 0), series("q_set", 0),
				num("sign", 1), series("marginal_cost", 0), num("capital_cost", 0),
				num("state_of_charge_initial", 0), flag("cyclic_state_of_charge", false), num("max_hours", 1),
				series("efficiency_store", 1), series("efficiency_dispatch", 1), series("standing_loss", 0),
				series("inflow", 0), series("spill_cost", 0),
				result("p"), result("q"), result("state_of_charge"), result("spill"),
			},
		},
		{
			Name: "Store", ListName: "stores",
			Attributes: []Attribute{
				str("bus", ""), str("type", ""), str("carrier", ""),
				num("e_nom", 0), flag("e_nom_extendable", false),
				series("e_min_pu", 0), series("e_max_pu", 1), num("e_initial", 0), flag("e_cyclic", false),
				series("p_set", 0), series("q_set", 0), num("sign", 1),
				series("marginal_cost", 0), num("capital_cost", 0), series("standing_loss", 0),
				result("p"), result("q"), result("e"),
			},
		},
		{
			Name: "Transformer", ListName: "transformers",
			Attributes: []Attribute{
				str("bus0", ""), str("bus1", ""), str("type", ""), str("model", "t"),
				num("x", 0), num("r", 0), num("g", 0), num("b", 0),
				num("s_nom", 0), flag("s_nom_extendable", false), series("s_max_pu", 1),
				num("capital_cost", 0), num("tap_ratio", 1), num("phase_shift", 0),
				result("p0"), result("q0"), result("p1"), result("q1"),
			},
		},
	}
}
