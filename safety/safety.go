// Package safety implements the policy veto/downgrade layer
// applied to every candidate snapshot before it is committed and issued
// to devices. Rules run in a fixed priority order and the first rule to
// act short-circuits the rest, in the sequential named-rule style of the
// pack's rule-based energy controllers (each rule returns a decision with
// an explanation, rather than a single monolithic boolean expression).
package safety

import (
	"time"

	"github.com/cepro/besscontroller/flowmodel"
	"github.com/cepro/besscontroller/quantity"
)

// Verdict is the outcome of running the safety rules against a candidate
// snapshot: either it is allowed unchanged, or a corrective action was
// taken and must be reflected in the committed snapshot.
type Verdict struct {
	Allow            bool
	CorrectiveAction string
	Reason           string
}

// allowed returns the "no objection" verdict.
func allowed() Verdict {
	return Verdict{Allow: true}
}

func corrected(action, reason string) Verdict {
	return Verdict{Allow: false, CorrectiveAction: action, Reason: reason}
}

// Monitor tracks the small amount of state the rules need across ticks:
// how many consecutive ticks the fuse has been near its limit, and how
// many battery cycles have occurred today.
type Monitor struct {
	safe flowmodel.SafetyConstraints

	fuseNearLimitStreak int
	cycleCountToday      float64
	lastEnergySign       int // -1 discharging, 0 idle, +1 charging
	lastResetDay         int
}

// NewMonitor creates a Monitor enforcing safe.
func NewMonitor(safe flowmodel.SafetyConstraints) *Monitor {
	return &Monitor{safe: safe}
}

// Check runs every rule in priority order against the candidate snapshot
// and the physical constraints the fuse limit is measured against. It
// mutates committed in place when a rule requires a corrective action,
// and returns the verdict of the first rule that acted (or allowed() if
// none did).
func (m *Monitor) Check(committed *flowmodel.PowerSnapshot, phys flowmodel.PhysicalConstraints, now time.Time) Verdict {
	m.resetDailyCounterIfNeeded(now)
	m.trackCycle(committed.BatteryKW)

	if v := m.checkTemperature(committed); !v.Allow {
		return v
	}
	if v := m.checkSoCEmergencyStop(committed); !v.Allow {
		return v
	}
	if v := m.checkFuseNearLimit(committed, phys); !v.Allow {
		return v
	}
	if v := m.checkDailyCycleLimit(committed); !v.Allow {
		return v
	}

	return allowed()
}

// checkTemperature forces the battery to 0 if it is above its safe
// operating temperature.
func (m *Monitor) checkTemperature(committed *flowmodel.PowerSnapshot) Verdict {
	if committed.BatteryTempC == nil || *committed.BatteryTempC <= m.safe.MaxBatteryTempC {
		return allowed()
	}

	committed.BatteryKW = 0
	return corrected("battery_power=0", "battery temperature exceeds safe operating limit")
}

// checkSoCEmergencyStop vetoes battery power entirely outside the
// emergency SoC band, independent of the model's own SoC floor/ceiling
// (which governs normal operation, not emergency shutdown).
func (m *Monitor) checkSoCEmergencyStop(committed *flowmodel.PowerSnapshot) Verdict {
	const (
		emergencyLowPct  = 5
		emergencyHighPct = 98
	)
	if committed.BatterySoCPct >= emergencyLowPct && committed.BatterySoCPct <= emergencyHighPct {
		return allowed()
	}

	committed.BatteryKW = 0
	return corrected("battery_power=0", "battery SoC outside emergency safe band")
}

// checkFuseNearLimit downgrades EV first, then battery, if predicted grid
// import has stayed within 5% of the fuse limit for more than one
// consecutive tick.
func (m *Monitor) checkFuseNearLimit(committed *flowmodel.PowerSnapshot, phys flowmodel.PhysicalConstraints) Verdict {
	limit := phys.MaxGridImportKW
	nearLimit := limit > 0 && committed.GridImportKW >= limit*0.95

	if !nearLimit {
		m.fuseNearLimitStreak = 0
		return allowed()
	}

	m.fuseNearLimitStreak++
	if m.fuseNearLimitStreak <= 1 {
		return allowed()
	}

	over := committed.GridImportKW - limit*0.95
	if committed.EVKW > 0 {
		reduction := committed.EVKW
		if reduction > over {
			reduction = over
		}
		committed.EVKW -= reduction
		committed.GridImportKW -= reduction
		return corrected("ev_power reduced", "grid import near fuse limit for multiple ticks")
	}
	if committed.BatteryKW > 0 {
		reduction := committed.BatteryKW
		if reduction > over {
			reduction = over
		}
		committed.BatteryKW -= reduction
		committed.GridImportKW -= reduction
		return corrected("battery_power reduced", "grid import near fuse limit for multiple ticks")
	}

	return allowed()
}

// checkDailyCycleLimit clamps battery power to 0 once the configured
// daily cycle budget has been used.
func (m *Monitor) checkDailyCycleLimit(committed *flowmodel.PowerSnapshot) Verdict {
	if m.safe.MaxBatteryCyclesPerDay <= 0 || m.cycleCountToday < m.safe.MaxBatteryCyclesPerDay {
		return allowed()
	}

	committed.BatteryKW = 0
	return corrected("battery_power=0", "daily battery cycle budget exhausted")
}

// trackCycle counts a half-cycle every time the battery's direction of
// flow reverses, a simple best-effort proxy for full-cycle accounting.
func (m *Monitor) trackCycle(batteryKW float64) {
	sign := 0
	if batteryKW > quantity.Epsilon {
		sign = 1
	} else if batteryKW < -quantity.Epsilon {
		sign = -1
	}

	if sign != 0 && m.lastEnergySign != 0 && sign != m.lastEnergySign {
		m.cycleCountToday += 0.5
	}
	if sign != 0 {
		m.lastEnergySign = sign
	}
}

// resetDailyCounterIfNeeded clears the cycle counter at local midnight.
func (m *Monitor) resetDailyCounterIfNeeded(now time.Time) {
	day := now.YearDay()
	if m.lastResetDay == 0 {
		m.lastResetDay = day
		return
	}
	if day != m.lastResetDay {
		m.cycleCountToday = 0
		m.lastResetDay = day
	}
}
