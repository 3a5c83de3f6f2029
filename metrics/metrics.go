// Package metrics exposes the control loop's running counters and gauges,
// built on plain sync/atomic values in the lock-free, no-library style
// already used for the schedule cell and the device last-known-good cache.
package metrics

import (
	"math"
	"sync/atomic"
	"time"
)

// Gauge is a lock-free float64 gauge, read and written via atomic bit
// manipulation since the standard library has no atomic float64.
type Gauge struct {
	bits atomic.Uint64
}

func (g *Gauge) Set(v float64) {
	g.bits.Store(math.Float64bits(v))
}

func (g *Gauge) Get() float64 {
	return math.Float64frombits(g.bits.Load())
}

// Counter is a lock-free monotonic counter.
type Counter struct {
	n atomic.Uint64
}

func (c *Counter) Inc() {
	c.n.Add(1)
}

func (c *Counter) Get() uint64 {
	return c.n.Load()
}

// Registry is the fixed set of gauges and counters the control loop
// updates every tick.
type Registry struct {
	PVKW               Gauge
	HouseLoadKW        Gauge
	BatteryPowerKW      Gauge
	EVPowerKW          Gauge
	GridImportKW       Gauge
	GridExportKW       Gauge
	PowerBalanceErrorKW Gauge
	FuseUtilizationPct Gauge

	TicksTotal               Counter
	TickErrorsTotal          Counter
	ConstraintViolationsTotal Counter
	SafetyEventsTotal        Counter
	TickOverrunTotal         Counter

	lastTickUnixNano  atomic.Int64
	consecutiveErrors atomic.Int64
}

// NewRegistry creates a Registry with all gauges and counters at zero.
func NewRegistry() *Registry {
	return &Registry{}
}

// RecordTick updates controller_health's bookkeeping: the wall-clock time
// of the tick that just ran, and whether it extends or resets the streak
// of consecutive tick failures.
func (r *Registry) RecordTick(t time.Time, tickErr error) {
	r.lastTickUnixNano.Store(t.UnixNano())
	if tickErr != nil {
		r.consecutiveErrors.Add(1)
	} else {
		r.consecutiveErrors.Store(0)
	}
}

// LastTick returns the wall-clock time of the most recently recorded
// tick, or the zero time if none has run yet.
func (r *Registry) LastTick() time.Time {
	ns := r.lastTickUnixNano.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// ConsecutiveErrors returns the number of ticks that have failed in a row
// up to and including the most recent one, reset to zero on success.
func (r *Registry) ConsecutiveErrors() int64 {
	return r.consecutiveErrors.Load()
}

// Snapshot is a point-in-time, read-only copy of every metric, suitable
// for serving from a status endpoint without holding any locks.
type Snapshot struct {
	PVKW                float64 `json:"pv_kw"`
	HouseLoadKW         float64 `json:"house_load_kw"`
	BatteryPowerKW       float64 `json:"battery_power_kw"`
	EVPowerKW           float64 `json:"ev_power_kw"`
	GridImportKW        float64 `json:"grid_import_kw"`
	GridExportKW        float64 `json:"grid_export_kw"`
	PowerBalanceErrorKW float64 `json:"power_balance_error_kw"`
	FuseUtilizationPct  float64 `json:"fuse_utilization_pct"`

	TicksTotal                uint64 `json:"ticks_total"`
	TickErrorsTotal           uint64 `json:"tick_errors_total"`
	ConstraintViolationsTotal uint64 `json:"constraint_violations_total"`
	SafetyEventsTotal         uint64 `json:"safety_events_total"`
	TickOverrunTotal          uint64 `json:"tick_overrun_total"`
}

// Snapshot reads every metric into a plain struct.
func (r *Registry) Snapshot() Snapshot {
	return Snapshot{
		PVKW:                r.PVKW.Get(),
		HouseLoadKW:         r.HouseLoadKW.Get(),
		BatteryPowerKW:      r.BatteryPowerKW.Get(),
		EVPowerKW:           r.EVPowerKW.Get(),
		GridImportKW:        r.GridImportKW.Get(),
		GridExportKW:        r.GridExportKW.Get(),
		PowerBalanceErrorKW: r.PowerBalanceErrorKW.Get(),
		FuseUtilizationPct:  r.FuseUtilizationPct.Get(),

		TicksTotal:                r.TicksTotal.Get(),
		TickErrorsTotal:           r.TickErrorsTotal.Get(),
		ConstraintViolationsTotal: r.ConstraintViolationsTotal.Get(),
		SafetyEventsTotal:         r.SafetyEventsTotal.Get(),
		TickOverrunTotal:          r.TickOverrunTotal.Get(),
	}
}
