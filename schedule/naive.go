package schedule

import (
	"context"
	"time"

	"github.com/cepro/besscontroller/flowmodel"
	"github.com/cepro/besscontroller/forecast"
)

// NaiveReplanner is a reference re-planner used when no external horizon
// optimizer is wired in: it always produces a single idle interval
// covering the next 24 hours. It exists so that the re-plan cadence, the
// atomic swap, and the "failed re-plan retains previous schedule"
// behavior all have a concrete, testable code path even before a real
// multi-hour optimizer is available.
type NaiveReplanner struct {
	horizon time.Duration
}

// NewNaiveReplanner creates a NaiveReplanner that plans horizon into the
// future (typically 24h).
func NewNaiveReplanner(horizon time.Duration) *NaiveReplanner {
	return &NaiveReplanner{horizon: horizon}
}

// Replan implements ReplanFunc, producing an idle schedule covering
// [now, now+horizon). It ignores currentInputs and forecastHandle — a
// real horizon optimizer would read price/consumption/production from
// forecastHandle and the live SoC from currentInputs to pick setpoints.
func (n *NaiveReplanner) Replan(ctx context.Context, currentInputs flowmodel.PowerFlowInputs, forecastHandle forecast.Handle) (*Schedule, error) {
	now := time.Now()
	return &Schedule{
		ID:         "naive-idle",
		ReceivedAt: now,
		Intervals: []Interval{
			{Start: now, End: now.Add(n.horizon), SetpointKW: 0},
		},
	}, nil
}
