package flowmodel

import "github.com/cepro/besscontroller/quantity"

// PhysicalConstraints describes the hard physical limits active for a
// control tick: fuse ratings, inverter limits, and the EVSE's permitted
// current range per IEC 61851.
type PhysicalConstraints struct {
	MaxGridImportKW     float64 // fuse import rating
	MaxGridExportKW     float64 // fuse export rating
	MaxBatteryChargeKW  float64
	MaxBatteryDischarge float64
	EVSEMinCurrentA     float64 // >= 6A per IEC 61851 when a vehicle is connected
	EVSEMaxCurrentA     float64
	Phases              int // 1 or 3
	PhaseVoltageV       float64
}

// EVSEMinPowerKW returns the minimum non-zero power the EVSE can deliver.
func (p PhysicalConstraints) EVSEMinPowerKW() float64 {
	return currentToPower(p.EVSEMinCurrentA, p.Phases, p.PhaseVoltageV)
}

// EVSEMaxPowerKW returns the maximum power the EVSE can deliver.
func (p PhysicalConstraints) EVSEMaxPowerKW() float64 {
	return currentToPower(p.EVSEMaxCurrentA, p.Phases, p.PhaseVoltageV)
}

func currentToPower(a float64, phases int, voltage float64) float64 {
	return voltage * a * float64(phases) / 1000.0
}

// SafetyConstraints describes the battery safety envelope active for a
// control tick.
type SafetyConstraints struct {
	BatteryMinSoCPct       float64
	BatteryMaxSoCPct       float64
	HousePriority          bool // ComputeFlows serves house load first whatever this holds; false unless set in config
	MaxBatteryCyclesPerDay float64
	MaxBatteryTempC        float64
}

// EconomicConstraints describes the pricing inputs and preferences that
// govern arbitrage and export decisions for a control tick.
type EconomicConstraints struct {
	GridPrice               quantity.PriceKWh
	ExportPrice             quantity.PriceKWh
	PreferSelfConsumption   bool
	ArbitrageThresholdPrice quantity.PriceKWh
	ArbitrageHysteresis     float64 // price-units/kWh, default 0.05
	EVDepartureTime         *int64  // unix seconds, nil if unknown
	EVTargetSoCPct          *float64
}

// Constraints is the immutable composite of the three constraint tiers held
// together for a single control tick. It is constructed once per controller
// instantiation (or replaced atomically by an operator) and never mutated
// in place.
type Constraints struct {
	Physical PhysicalConstraints
	Safety   SafetyConstraints
	Economic EconomicConstraints

	// Version is an opaque identifier of this constraint set, carried
	// through to the persisted snapshot so that the constraints active for
	// a given tick can be traced after the fact.
	Version string
}
