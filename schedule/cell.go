package schedule

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cepro/besscontroller/flowmodel"
	"github.com/cepro/besscontroller/forecast"
)

// Cell is a single-writer/many-reader atomic reference to the currently
// active Schedule. Readers call Current() to get an O(1) snapshot
// reference; the re-planner (the single writer) calls Replace() to swap in
// a new schedule atomically. This avoids taking a lock on the hot tick
// path.
type Cell struct {
	ptr atomic.Pointer[Schedule]
}

// NewCell creates a Cell pre-populated with the permanent idle default,
// used until the first re-plan succeeds.
func NewCell() *Cell {
	c := &Cell{}
	c.ptr.Store(Idle())
	return c
}

// Current returns the currently active schedule. Never nil.
func (c *Cell) Current() *Schedule {
	return c.ptr.Load()
}

// Replace atomically swaps in a new schedule.
func (c *Cell) Replace(s *Schedule) {
	c.ptr.Store(s)
}

// ReplanFunc produces a new Schedule from the current measurement
// snapshot and a forecast handle. A separate horizon optimizer is
// expected to implement this; the power-flow core only consumes its
// input/output contract. currentInputs gives the optimizer live
// measurements (SoC, PV, load) and forecastHandle gives it price and
// consumption/production lookups over the planning horizon.
type ReplanFunc func(ctx context.Context, currentInputs flowmodel.PowerFlowInputs, forecastHandle forecast.Handle) (*Schedule, error)

// Replanner drives a ReplanFunc on a periodic cadence, on demand, and
// always at boot, replacing the Cell's schedule atomically on success. A
// failed re-plan is logged and the previous schedule is retained — the
// controller never blocks on a failed re-plan.
type Replanner struct {
	cell           *Cell
	fn             ReplanFunc
	inputsSource   func() flowmodel.PowerFlowInputs
	forecastHandle forecast.Handle
	trigger        chan struct{}
	logger         *slog.Logger
}

// NewReplanner creates a Replanner that writes into cell. inputsSource is
// called once per re-plan to fetch the controller's latest gathered
// measurements; forecastHandle is passed through unchanged.
func NewReplanner(cell *Cell, fn ReplanFunc, inputsSource func() flowmodel.PowerFlowInputs, forecastHandle forecast.Handle) *Replanner {
	return &Replanner{
		cell:           cell,
		fn:             fn,
		inputsSource:   inputsSource,
		forecastHandle: forecastHandle,
		trigger:        make(chan struct{}, 1),
		logger:         slog.Default().With("component", "replanner"),
	}
}

// Trigger enqueues one re-plan outside the periodic cadence. Non-blocking:
// if a trigger is already pending it is coalesced.
func (r *Replanner) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run loops forever, re-planning every period and on explicit Trigger
// calls, always re-planning once immediately at startup. Exits when ctx is
// cancelled.
func (r *Replanner) Run(ctx context.Context, period time.Duration) {
	r.replanOnce(ctx)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.replanOnce(ctx)
		case <-r.trigger:
			r.replanOnce(ctx)
		}
	}
}

func (r *Replanner) replanOnce(ctx context.Context) {
	var inputs flowmodel.PowerFlowInputs
	if r.inputsSource != nil {
		inputs = r.inputsSource()
	}

	sched, err := r.fn(ctx, inputs, r.forecastHandle)
	if err != nil {
		r.logger.Error("re-plan failed, keeping previous schedule", "error", err)
		return
	}
	r.logger.Info("re-plan succeeded", "schedule_id", sched.ID, "intervals", len(sched.Intervals))
	r.cell.Replace(sched)
}
