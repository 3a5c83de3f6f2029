// Package powerflow implements the real-time control loop: each tick it
// gathers device and forecast state, runs the power-flow model and safety
// monitor, ramps the result, issues device commands, and persists the
// outcome — a select-over-ticker loop generalized from a single
// BESS-arbitrage decision to the full five-actuator allocation.
package powerflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cepro/besscontroller/devices"
	"github.com/cepro/besscontroller/flowmodel"
	"github.com/cepro/besscontroller/forecast"
	"github.com/cepro/besscontroller/metrics"
	"github.com/cepro/besscontroller/persistence"
	"github.com/cepro/besscontroller/safety"
	"github.com/cepro/besscontroller/schedule"
)

// Controller owns the real-time tick loop and every device handle it
// drives. Device handles are shared-for-read, but the controller is the
// sole writer of commands to them — no other goroutine may call SetPower,
// SetCurrent, Start, Stop, or SetExportLimit while Run is active.
type Controller struct {
	battery    devices.Battery
	evse       devices.EVSE // nil when no charge point is configured
	inverter   devices.SolarInverter
	gridMeter  devices.GridMeter
	houseMeter devices.HouseMeter

	scheduleCell *schedule.Cell
	replanner    *schedule.Replanner // set via SetReplanner once both are constructed
	forecast     forecast.Handle
	safetyMonitor *safety.Monitor
	sink         persistence.Sink
	ring         *persistence.Ring
	metrics      *metrics.Registry

	constraints flowmodel.Constraints
	cfg         Config
	logger      *slog.Logger

	cache caches

	mu             sync.Mutex
	lastBatteryKW  float64
	lastEVCurrentA float64
	lastInputs     flowmodel.PowerFlowInputs
	lastDegraded   bool
}

// Health reports the control loop's liveness, as served by
// ControllerHealth.
type Health struct {
	LastTick          time.Time `json:"last_tick"`
	ConsecutiveErrors int64     `json:"consecutive_errors"`
	Degraded          bool      `json:"degraded"`
}

// Devices groups the hardware handles a Controller drives. EVSE is
// optional and may be nil.
type Devices struct {
	Battery    devices.Battery
	EVSE       devices.EVSE
	Inverter   devices.SolarInverter
	GridMeter  devices.GridMeter
	HouseMeter devices.HouseMeter
}

// New creates a Controller. constraints is the static tier hierarchy
// active at startup; it may be swapped out between ticks via
// SetConstraints if the site's configuration changes at runtime.
func New(
	d Devices,
	scheduleCell *schedule.Cell,
	forecastHandle forecast.Handle,
	safetyMonitor *safety.Monitor,
	sink persistence.Sink,
	ring *persistence.Ring,
	reg *metrics.Registry,
	constraints flowmodel.Constraints,
	cfg Config,
) *Controller {
	return &Controller{
		battery:       d.Battery,
		evse:          d.EVSE,
		inverter:      d.Inverter,
		gridMeter:     d.GridMeter,
		houseMeter:    d.HouseMeter,
		scheduleCell:  scheduleCell,
		forecast:      forecastHandle,
		safetyMonitor: safetyMonitor,
		sink:          sink,
		ring:          ring,
		metrics:       reg,
		constraints:   constraints,
		cfg:           cfg.withDefaults(),
		logger:        slog.Default().With("component", "powerflow_controller"),
	}
}

// SetConstraints atomically swaps the constraint hierarchy used by the
// next tick onward (replace_constraints).
func (c *Controller) SetConstraints(constraints flowmodel.Constraints) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.constraints = constraints
}

// CurrentConstraints returns the constraint hierarchy active for the next
// tick (current_constraints).
func (c *Controller) CurrentConstraints() flowmodel.Constraints {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.constraints
}

// SetReplanner wires the Replanner that TriggerReplan enqueues work on.
// It is set after construction, rather than taken as a New() parameter,
// because the Replanner itself needs a reference to this Controller's
// LastInputs to source its current_inputs argument.
func (c *Controller) SetReplanner(r *schedule.Replanner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replanner = r
}

// TriggerReplan enqueues one re-plan outside the periodic cadence. It is
// a no-op if no Replanner has been wired in.
func (c *Controller) TriggerReplan() {
	c.mu.Lock()
	r := c.replanner
	c.mu.Unlock()
	if r != nil {
		r.Trigger()
	}
}

// LastInputs returns the measurement snapshot gathered on the most recent
// tick, used by the Replanner to source a re-plan's current_inputs
// argument.
func (c *Controller) LastInputs() flowmodel.PowerFlowInputs {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastInputs
}

// ScheduleNow returns a snapshot of the currently active schedule
// (schedule_now).
func (c *Controller) ScheduleNow() *schedule.Schedule {
	return c.scheduleCell.Current()
}

// LatestSnapshot returns the most recently committed snapshot, read from
// the in-memory ring (latest_snapshot). ok is false if no tick has
// committed yet.
func (c *Controller) LatestSnapshot() (snap flowmodel.PowerSnapshot, ok bool) {
	recent := c.ring.Recent(1)
	if len(recent) == 0 {
		return flowmodel.PowerSnapshot{}, false
	}
	return recent[0], true
}

// SnapshotsBetween returns every committed snapshot in the ring's
// retained history whose timestamp falls within [start, end]
// (snapshots_between). Older history is the persistence layer's
// responsibility, not this controller's.
func (c *Controller) SnapshotsBetween(start, end time.Time) []flowmodel.PowerSnapshot {
	return c.ring.Between(start, end)
}

// ControllerHealth reports the tick loop's liveness: when it last ran,
// how many ticks have failed consecutively, and whether it is degraded:
// the latest gathered inputs came from the last-known-good cache, or the
// most recent tick failed.
func (c *Controller) ControllerHealth() Health {
	c.mu.Lock()
	degraded := c.lastDegraded
	c.mu.Unlock()

	return Health{
		LastTick:          c.metrics.LastTick(),
		ConsecutiveErrors: c.metrics.ConsecutiveErrors(),
		Degraded:          degraded || c.metrics.ConsecutiveErrors() > 0,
	}
}

// Run drives the tick loop until ctx is cancelled. On cancellation it
// releases the device handles, waiting at most cfg.ShutdownDeadline for
// them to close.
func (c *Controller) Run(ctx context.Context) error {
	c.logger.Info("starting power flow controller",
		"tick_period", c.cfg.TickPeriod,
		"max_staleness", c.cfg.MaxStaleness,
	)

	ticker := time.NewTicker(c.cfg.TickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return c.shutdown()
		case now := <-ticker.C:
			start := time.Now()
			c.tick(ctx, now)
			elapsed := time.Since(start)
			if elapsed > c.cfg.TickPeriod {
				c.metrics.TickOverrunTotal.Inc()
				c.logger.Warn("tick overran its period", "elapsed", elapsed, "period", c.cfg.TickPeriod)
			}
		}
	}
}

// shutdown closes every device handle that has a Close method, giving them
// up to ShutdownDeadline. The tick loop here is synchronous per-iteration
// so there is nothing left in flight by the time ctx.Done() fires.
func (c *Controller) shutdown() error {
	deadline := time.NewTimer(c.cfg.ShutdownDeadline)
	defer deadline.Stop()
	c.logger.Info("power flow controller shutting down")

	released := make(chan struct{})
	go func() {
		defer close(released)
		for _, d := range []any{c.battery, c.evse, c.inverter, c.gridMeter, c.houseMeter} {
			if closer, ok := d.(interface{ Close() error }); ok {
				if err := closer.Close(); err != nil {
					c.logger.Warn("failed to release device handle", "error", err)
				}
			}
		}
	}()
	select {
	case <-released:
	case <-deadline.C:
		c.logger.Warn("device handles not released within shutdown deadline")
	}
	return nil
}

func (c *Controller) tick(ctx context.Context, now time.Time) {
	tickCtx, cancel := context.WithTimeout(ctx, devices.OperationDeadline)
	defer cancel()

	c.metrics.TicksTotal.Inc()

	var tickErr error
	defer func() { c.metrics.RecordTick(now, tickErr) }()

	inputs, err := c.gather(tickCtx, now)
	if err != nil {
		c.metrics.TickErrorsTotal.Inc()
		c.logger.Error("tick aborted: could not gather inputs", "error", err)
		tickErr = err
		return
	}

	c.mu.Lock()
	c.lastInputs = inputs
	c.lastDegraded = inputs.Degraded
	c.mu.Unlock()

	constraints := c.CurrentConstraints()
	sched := c.scheduleCell.Current()

	snap, err := flowmodel.ComputeFlows(inputs, constraints, sched)
	if err != nil {
		c.metrics.TickErrorsTotal.Inc()
		c.metrics.ConstraintViolationsTotal.Inc()
		c.logger.Error("tick aborted: model rejected inputs", "error", err)
		tickErr = err
		return
	}

	if verdict := c.safetyMonitor.Check(&snap, constraints.Physical, now); !verdict.Allow {
		c.metrics.SafetyEventsTotal.Inc()
		c.logger.Warn("safety monitor corrected snapshot", "action", verdict.CorrectiveAction, "reason", verdict.Reason)
		snap = snap.WithDecisionReason(verdict.Reason)
	}

	snap.FuseLimitA = c.cfg.SiteFuseLimitA

	c.applyRamp(&snap, constraints)

	c.issueCommands(tickCtx, &snap, constraints)

	if err := c.sink.Put(ctx, &snap); err != nil {
		c.logger.Error("failed to persist snapshot", "error", err)
	}
	c.ring.Push(snap)

	c.metrics.ObserveSnapshot(&snap, c.cfg.SiteFuseLimitA)

	c.mu.Lock()
	c.lastBatteryKW = snap.BatteryKW
	c.mu.Unlock()
}

// applyRamp limits how far the battery and EV setpoints may move from the
// previous committed tick.
func (c *Controller) applyRamp(snap *flowmodel.PowerSnapshot, constraints flowmodel.Constraints) {
	c.mu.Lock()
	prevBattery := c.lastBatteryKW
	prevEVCurrent := c.lastEVCurrentA
	c.mu.Unlock()

	tickSeconds := c.cfg.TickPeriod.Seconds()
	snap.BatteryKW = rampBattery(prevBattery, snap.BatteryKW, c.cfg.MaxBatteryRampKWPerS, tickSeconds)

	targetCurrentA := kwToCurrent(snap.EVKW, constraints.Physical.Phases, constraints.Physical.PhaseVoltageV)
	rampedCurrentA := rampEVCurrent(prevEVCurrent, targetCurrentA, c.cfg.MaxEVCurrentStepA)
	snap.EVKW = currentToKW(rampedCurrentA, constraints.Physical.Phases, constraints.Physical.PhaseVoltageV)

	c.mu.Lock()
	c.lastEVCurrentA = rampedCurrentA
	c.mu.Unlock()
}

func kwToCurrent(kw float64, phases int, voltage float64) float64 {
	if phases <= 0 || voltage <= 0 {
		return 0
	}
	return kw * 1000 / (voltage * float64(phases))
}

func currentToKW(a float64, phases int, voltage float64) float64 {
	return voltage * a * float64(phases) / 1000
}

// issueCommands writes the committed snapshot out to every device
// concurrently. A single device's command failure is logged and does not
// prevent the others from being issued.
func (c *Controller) issueCommands(ctx context.Context, snap *flowmodel.PowerSnapshot, constraints flowmodel.Constraints) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := c.battery.SetPower(ctx, snap.BatteryKW); err != nil {
			c.logger.Error("failed to set battery power", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := c.inverter.SetExportLimit(ctx, constraints.Physical.MaxGridExportKW); err != nil {
			c.logger.Error("failed to set inverter export limit", "error", err)
		}
	}()

	if c.evse != nil {
		currentA := kwToCurrent(snap.EVKW, constraints.Physical.Phases, constraints.Physical.PhaseVoltageV)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.evse.SetCurrent(ctx, currentA); err != nil {
				c.logger.Error("failed to set EVSE current", "error", err)
			}
		}()
	}

	wg.Wait()
}
