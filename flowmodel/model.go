package flowmodel

import (
	"fmt"
	"math"
	"time"
)

// ScheduleSource is the read-only view of an active schedule that the
// model needs: the setpoint in force at a given instant, if any. It is
// declared here rather than imported from the schedule package so that
// schedule stays free to depend on flowmodel (for the re-planner's
// current-inputs contract) without creating an import cycle; *schedule.
// Schedule satisfies this interface structurally.
type ScheduleSource interface {
	PowerAt(t time.Time) (float64, bool)
	ScheduleID() string
}

// ComputeFlows is the pure, synchronous heart of the controller: given a
// measurement snapshot and the constraint hierarchy active for this tick,
// it computes a single complete PowerSnapshot or returns a typed error.
// It performs no I/O, reads no clock other than inputs.Timestamp, and uses
// no randomness or global state — this is deliberate, it is the
// most-tested surface in the repository.
//
// sched is read once via sched.PowerAt(inputs.Timestamp) to obtain the
// economic target for the battery; a nil sched is treated as "no schedule
// available", matching the controller's permanent idle-battery default.
func ComputeFlows(inputs PowerFlowInputs, constraints Constraints, sched ScheduleSource) (PowerSnapshot, error) {
	if err := validateInputs(inputs); err != nil {
		return PowerSnapshot{}, &InvalidInputs{Detail: err.Error()}
	}

	phys := constraints.Physical
	safe := constraints.Safety
	econ := constraints.Economic

	pvAvailable := inputs.PVProductionKW
	gridImport := 0.0
	gridExport := 0.0

	// Step 1: house load, priority 1.
	houseLoad := inputs.HouseLoadKW
	if pvAvailable >= houseLoad {
		pvAvailable -= houseLoad
	} else {
		gridImport += houseLoad - pvAvailable
		pvAvailable = 0
	}

	// Step 2: EV charging, priority 2 when connected.
	evKW := 0.0
	var urgency float64
	if inputs.EV != nil && inputs.EV.Connected {
		urgency = evUrgency(*inputs.EV, inputs.Timestamp)

		desired := desiredEVPower(urgency, econ, phys)

		// Clamp so grid_import + max(desired - pvAvailable, 0) <= max_grid_import_kw.
		additionalImportNeeded := math.Max(desired-pvAvailable, 0)
		if gridImport+additionalImportNeeded > phys.MaxGridImportKW {
			allowedAdditionalImport := math.Max(phys.MaxGridImportKW-gridImport, 0)
			desired = pvAvailable + allowedAdditionalImport
			if desired < 0 {
				desired = 0
			}
		}

		// IEC 61851: below the minimum current, snap to zero.
		minKW := phys.EVSEMinPowerKW()
		if desired > epsilon && desired < minKW {
			desired = 0
		}
		maxKW := phys.EVSEMaxPowerKW()
		if desired > maxKW {
			desired = maxKW
		}

		evKW = desired
		if evKW <= pvAvailable {
			pvAvailable -= evKW
		} else {
			gridImport += evKW - pvAvailable
			pvAvailable = 0
		}
	}

	// Step 3: battery, priority 3.
	scheduledSetpoint := 0.0
	haveSchedule := false
	if sched != nil {
		if v, ok := sched.PowerAt(inputs.Timestamp); ok {
			scheduledSetpoint = v
			haveSchedule = true
		}
	}

	batteryKW, pvAvailable2, gridImport2 := allocateBattery(
		inputs.BatterySoCPct,
		scheduledSetpoint,
		haveSchedule,
		pvAvailable,
		gridImport,
		phys,
		safe,
		econ,
	)
	pvAvailable = pvAvailable2
	gridImport = gridImport2

	// Step 4: grid export, priority 4.
	if pvAvailable > epsilon {
		if econ.PreferSelfConsumption && inputs.BatterySoCPct < safe.BatteryMaxSoCPct {
			// Route residual PV to battery charge, re-entering the battery
			// allocation with the surplus as an additional charge
			// opportunity, bounded by the remaining charge headroom.
			extraCharge := math.Min(pvAvailable, phys.MaxBatteryChargeKW-batteryKW)
			if extraCharge > epsilon {
				batteryKW += extraCharge
				pvAvailable -= extraCharge
			}
		}
	}
	if pvAvailable > epsilon {
		gridExport = math.Min(pvAvailable, phys.MaxGridExportKW)
		pvAvailable -= gridExport
	}
	// Any remaining surplus is curtailed, not represented in the snapshot.

	snap := newSnapshot(inputs.PVProductionKW, houseLoad, batteryKW, evKW, gridImport, gridExport, inputs.Timestamp)
	snap.BatterySoCPct = inputs.BatterySoCPct
	snap.BatteryTempC = &inputs.BatteryTempC
	snap.FuseLimitA = phys.EVSEMaxCurrentA // informational; callers typically overwrite with the site fuse rating
	snap.ConstraintsVersion = constraints.Version
	snap.ControlMode = controlModeFor(haveSchedule, econ)
	snap.DecisionReason = decisionReason(urgency, haveSchedule, econ, batteryKW, evKW)
	snap.SpotPrice = float64(econ.GridPrice)
	snap.EstimatedCost = round3(gridImport*float64(econ.GridPrice) - gridExport*float64(econ.ExportPrice))
	if haveSchedule {
		id := sched.ScheduleID()
		snap.ScheduleID = &id
		deviation := round3(batteryKW - scheduledSetpoint)
		snap.DeviationFromScheduleKW = &deviation
	}

	// Step 5: self-verification. A violation here is a programmer error.
	if err := snap.VerifyPowerBalance(); err != nil {
		return PowerSnapshot{}, &PowerBalanceViolation{Snapshot: snap, Detail: err.Error()}
	}

	// Step 6: constraint audit, belt and braces.
	if err := snap.VerifyFuseLimits(phys); err != nil {
		return PowerSnapshot{}, &FuseLimitViolation{Detail: err.Error()}
	}
	if err := snap.VerifyNoSimultaneousFlow(); err != nil {
		return PowerSnapshot{}, &FuseLimitViolation{Detail: err.Error()}
	}
	if err := snap.VerifyBatteryRange(phys); err != nil {
		return PowerSnapshot{}, &BatterySoCOutOfRange{Detail: err.Error()}
	}
	if err := snap.VerifyEVRange(phys); err != nil {
		return PowerSnapshot{}, &FuseLimitViolation{Detail: err.Error()}
	}

	return snap, nil
}

// allocateBattery applies the SoC-floor/ceiling overrides and opportunistic
// arbitrage rules on top of the scheduled setpoint, then clamps to the
// physical charge/discharge limits and the remaining fuse headroom.
func allocateBattery(
	socPct float64,
	scheduledSetpoint float64,
	haveSchedule bool,
	pvAvailable float64,
	gridImport float64,
	phys PhysicalConstraints,
	safe SafetyConstraints,
	econ EconomicConstraints,
) (batteryKW, newPVAvailable, newGridImport float64) {

	target := 0.0

	switch {
	case socPct <= safe.BatteryMinSoCPct:
		// Force charge, never discharge. Charge at the lesser of the
		// scheduled value and what headroom is available.
		maxAllowedImport := math.Max(phys.MaxGridImportKW-gridImport, 0)
		target = math.Min(math.Max(scheduledSetpoint, 0), math.Min(pvAvailable+maxAllowedImport, phys.MaxBatteryChargeKW))
		if target < 0 {
			target = 0
		}
	case socPct >= safe.BatteryMaxSoCPct:
		// Force discharge or idle, never charge.
		target = math.Min(scheduledSetpoint, 0)
	default:
		if haveSchedule {
			target = scheduledSetpoint
		} else if econ.GridPrice >= econ.ArbitrageThresholdPrice {
			// Opportunistic arbitrage: discharge to offset grid import.
			target = -math.Min(phys.MaxBatteryDischarge, math.Max(gridImport, 0))
		} else if float64(econ.GridPrice) < float64(econ.ArbitrageThresholdPrice)-econ.ArbitrageHysteresis && pvAvailable > epsilon {
			// Absorb excess PV while price is cheap.
			target = math.Min(phys.MaxBatteryChargeKW, pvAvailable)
		}
	}

	// Clamp to inverter limits.
	if target > phys.MaxBatteryChargeKW {
		target = phys.MaxBatteryChargeKW
	}
	if target < -phys.MaxBatteryDischarge {
		target = -phys.MaxBatteryDischarge
	}

	// Clamp so grid_import doesn't exceed the fuse: if charging from the
	// grid, don't push import above the limit.
	if target > 0 {
		fromPV := math.Min(target, pvAvailable)
		fromGrid := target - fromPV
		allowedFromGrid := math.Max(phys.MaxGridImportKW-gridImport, 0)
		if fromGrid > allowedFromGrid {
			fromGrid = allowedFromGrid
			target = fromPV + fromGrid
		}
		pvAvailable -= fromPV
		gridImport += fromGrid
	} else if target < 0 {
		// Discharging offsets existing import/house load first.
		offset := -target
		offsetAgainstImport := math.Min(offset, gridImport)
		gridImport -= offsetAgainstImport
		remaining := offset - offsetAgainstImport
		// any further discharge beyond offsetting import becomes available
		// as additional PV-like headroom for EV/export re-entrant logic.
		pvAvailable += remaining
	}

	return target, pvAvailable, gridImport
}

// evUrgency computes the charge urgency in [0,1] relative to `now`
// (typically inputs.Timestamp).
func evUrgency(ev EVState, now time.Time) float64 {
	if !ev.HasDepartureAt {
		return 0
	}
	socGap := ev.TargetSoCPct - ev.SoCPct
	if socGap <= 0 {
		return 0
	}
	dtH := ev.DepartureTime.Sub(now).Hours()
	if dtH <= 0 {
		return 1
	}
	energyNeeded := (socGap / 100) * ev.CapacityKWh
	requiredRate := energyNeeded / math.Max(dtH, epsilon)
	if ev.MaxChargeKW <= 0 {
		return 1
	}
	return math.Max(0, math.Min(1, requiredRate/ev.MaxChargeKW))
}

// desiredEVPower chooses the pre-clamp EV power target from urgency.
func desiredEVPower(urgency float64, econ EconomicConstraints, phys PhysicalConstraints) float64 {
	maxKW := phys.EVSEMaxPowerKW()
	minKW := phys.EVSEMinPowerKW()

	switch {
	case urgency > 0.8:
		return maxKW
	case float64(econ.GridPrice) < float64(econ.ArbitrageThresholdPrice):
		return 0.8 * maxKW
	case urgency > 0:
		return minKW
	default:
		return 0
	}
}

func controlModeFor(haveSchedule bool, econ EconomicConstraints) ControlMode {
	if haveSchedule {
		return ControlModeSchedule
	}
	if econ.GridPrice >= econ.ArbitrageThresholdPrice {
		return ControlModeArbitrage
	}
	return ControlModeIdle
}

func decisionReason(urgency float64, haveSchedule bool, econ EconomicConstraints, batteryKW, evKW float64) string {
	if urgency > 0.8 {
		return fmt.Sprintf("EV urgency %.2f — max charge", urgency)
	}
	if haveSchedule {
		return fmt.Sprintf("Following schedule — battery %.2f kW", batteryKW)
	}
	if econ.GridPrice >= econ.ArbitrageThresholdPrice && batteryKW < 0 {
		return fmt.Sprintf("Arbitrage — discharging at price %.3f", float64(econ.GridPrice))
	}
	return "Self-consumption"
}

func validateInputs(inputs PowerFlowInputs) error {
	if math.IsNaN(inputs.PVProductionKW) || math.IsInf(inputs.PVProductionKW, 0) {
		return fmt.Errorf("pv_production_kw is not finite")
	}
	if inputs.PVProductionKW < 0 {
		return fmt.Errorf("pv_production_kw must not be negative")
	}
	if inputs.HouseLoadKW < 0 {
		return fmt.Errorf("house_load_kw must not be negative")
	}
	if inputs.BatterySoCPct < 0 || inputs.BatterySoCPct > 100 {
		return fmt.Errorf("battery_soc_pct %g out of [0,100]", inputs.BatterySoCPct)
	}
	if inputs.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is zero")
	}
	return nil
}
