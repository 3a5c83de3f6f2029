package flowmodel

import (
	"fmt"
	"math"
	"time"
)

// ControlMode names the rule that was responsible for the committed
// snapshot, carried through to the persisted record.
type ControlMode string

const (
	ControlModeSchedule  ControlMode = "schedule"
	ControlModeArbitrage ControlMode = "arbitrage"
	ControlModeSafety    ControlMode = "safety"
	ControlModeManual    ControlMode = "manual"
	ControlModeIdle      ControlMode = "idle"
)

const maxDecisionReasonLen = 256

// PowerSnapshot is the central value object of the power-flow model: a
// complete, self-balancing allocation of power across PV, house load,
// battery, EV, and grid import/export at a single instant.
//
// All six power fields are rounded to 3 decimal places on construction so
// that persisted snapshots are byte-stable.
type PowerSnapshot struct {
	PVKW          float64 `json:"pv_kw"`
	HouseLoadKW   float64 `json:"house_load_kw"`
	BatteryKW     float64 `json:"battery_power_kw"` // signed: +charge, -discharge
	EVKW          float64 `json:"ev_power_kw"`
	GridImportKW  float64 `json:"grid_import_kw"`
	GridExportKW  float64 `json:"grid_export_kw"`
	Timestamp     time.Time `json:"timestamp"`

	BatterySoCPct      float64  `json:"battery_soc_pct"`
	BatteryTempC       *float64 `json:"battery_temp_c,omitempty"`
	GridFrequencyHz    *float64 `json:"grid_frequency_hz,omitempty"`
	GridVoltageV       *float64 `json:"grid_voltage_v,omitempty"`
	GridAvailable      bool     `json:"grid_available"`
	ConstraintsVersion string   `json:"constraints_version"`
	FuseLimitA         float64  `json:"fuse_limit_a"`
	ControlMode        ControlMode `json:"control_mode"`
	DecisionReason     string   `json:"decision_reason"`
	SpotPrice          float64  `json:"spot_price"`
	EstimatedCost      float64  `json:"estimated_cost"`
	ScheduleID         *string  `json:"schedule_id,omitempty"`
	DeviationFromScheduleKW *float64 `json:"deviation_from_schedule_kw,omitempty"`
}

// round3 rounds v to 3 decimal places.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// newSnapshot constructs a PowerSnapshot, rounding all power fields to 3
// decimal places. The decision reason is set separately (WithDecisionReason
// truncates it). It does not verify invariants; callers must call
// VerifyPowerBalance and the other Verify* checks before committing.
func newSnapshot(pv, house, battery, ev, gridImport, gridExport float64, t time.Time) PowerSnapshot {
	return PowerSnapshot{
		PVKW:          round3(pv),
		HouseLoadKW:   round3(house),
		BatteryKW:     round3(battery),
		EVKW:          round3(ev),
		GridImportKW:  round3(gridImport),
		GridExportKW:  round3(gridExport),
		Timestamp:     t,
		GridAvailable: true,
	}
}

// WithDecisionReason truncates reason to maxDecisionReasonLen runes and
// returns a copy of the snapshot carrying it.
func (s PowerSnapshot) WithDecisionReason(reason string) PowerSnapshot {
	r := []rune(reason)
	if len(r) > maxDecisionReasonLen {
		r = r[:maxDecisionReasonLen]
	}
	s.DecisionReason = string(r)
	return s
}

// VerifyPowerBalance checks invariant 1: sources equal sinks within
// quantity.Epsilon. Returns an error describing the imbalance if it does
// not hold.
func (s PowerSnapshot) VerifyPowerBalance() error {
	sources := s.PVKW + s.GridImportKW + math.Max(-s.BatteryKW, 0)
	sinks := s.HouseLoadKW + s.EVKW + math.Max(s.BatteryKW, 0) + s.GridExportKW
	diff := sources - sinks
	if math.Abs(diff) > epsilon {
		return &PowerBalanceViolation{Snapshot: s, Detail: fmt.Sprintf("sources=%.3f sinks=%.3f diff=%.3f", sources, sinks, diff)}
	}
	return nil
}

// VerifyNoSimultaneousFlow checks invariant 2: at most one of grid import
// and grid export is positive.
func (s PowerSnapshot) VerifyNoSimultaneousFlow() error {
	if s.GridImportKW > epsilon && s.GridExportKW > epsilon {
		return fmt.Errorf("simultaneous import (%.3f) and export (%.3f)", s.GridImportKW, s.GridExportKW)
	}
	return nil
}

// VerifyFuseLimits checks invariant 3 against the given physical
// constraints.
func (s PowerSnapshot) VerifyFuseLimits(c PhysicalConstraints) error {
	if s.GridImportKW > c.MaxGridImportKW+epsilon {
		return &FuseLimitViolation{Detail: fmt.Sprintf("grid import %.3f exceeds fuse limit %.3f", s.GridImportKW, c.MaxGridImportKW)}
	}
	if s.GridExportKW > c.MaxGridExportKW+epsilon {
		return &FuseLimitViolation{Detail: fmt.Sprintf("grid export %.3f exceeds fuse limit %.3f", s.GridExportKW, c.MaxGridExportKW)}
	}
	return nil
}

// VerifyBatteryRange checks that the battery power is within its charge
// and discharge limits.
func (s PowerSnapshot) VerifyBatteryRange(c PhysicalConstraints) error {
	if s.BatteryKW > c.MaxBatteryChargeKW+epsilon {
		return &BatterySoCOutOfRange{Detail: fmt.Sprintf("battery charge %.3f exceeds limit %.3f", s.BatteryKW, c.MaxBatteryChargeKW)}
	}
	if s.BatteryKW < -c.MaxBatteryDischarge-epsilon {
		return &BatterySoCOutOfRange{Detail: fmt.Sprintf("battery discharge %.3f exceeds limit %.3f", -s.BatteryKW, c.MaxBatteryDischarge)}
	}
	return nil
}

// VerifyEVRange checks that the EV power is either zero or within the
// EVSE's permitted band (invariant 6 — no sub-minimum current).
func (s PowerSnapshot) VerifyEVRange(c PhysicalConstraints) error {
	if s.EVKW <= epsilon {
		return nil
	}
	minKW := c.EVSEMinPowerKW()
	maxKW := c.EVSEMaxPowerKW()
	if s.EVKW < minKW-epsilon || s.EVKW > maxKW+epsilon {
		return fmt.Errorf("ev power %.3f outside permitted band [%.3f,%.3f]", s.EVKW, minKW, maxKW)
	}
	return nil
}

const epsilon = 0.01
