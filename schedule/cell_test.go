package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cepro/besscontroller/flowmodel"
	"github.com/cepro/besscontroller/forecast"
)

func noInputs() flowmodel.PowerFlowInputs { return flowmodel.PowerFlowInputs{} }

func TestCell_NewCellStartsIdle(t *testing.T) {
	c := NewCell()
	assert.Equal(t, "idle", c.Current().ID)
}

func TestCell_ReplaceSwapsSchedule(t *testing.T) {
	c := NewCell()
	next := &Schedule{ID: "next"}
	c.Replace(next)

	assert.Same(t, next, c.Current())
}

func TestReplanner_RunReplansImmediatelyAtStartup(t *testing.T) {
	cell := NewCell()
	var calls atomic.Int32
	fn := func(ctx context.Context, currentInputs flowmodel.PowerFlowInputs, forecastHandle forecast.Handle) (*Schedule, error) {
		calls.Add(1)
		return &Schedule{ID: "from-fn"}, nil
	}

	r := NewReplanner(cell, fn, noInputs, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		r.Run(ctx, time.Hour)
		close(done)
	}()

	<-done

	assert.GreaterOrEqual(t, calls.Load(), int32(1))
	assert.Equal(t, "from-fn", cell.Current().ID)
}

func TestReplanner_FailedReplanRetainsPreviousSchedule(t *testing.T) {
	cell := NewCell()
	original := &Schedule{ID: "original"}
	cell.Replace(original)

	fn := func(ctx context.Context, currentInputs flowmodel.PowerFlowInputs, forecastHandle forecast.Handle) (*Schedule, error) {
		return nil, assertError{}
	}

	r := NewReplanner(cell, fn, noInputs, nil)
	r.replanOnce(context.Background())

	assert.Same(t, original, cell.Current())
}

func TestReplanner_TriggerCoalesces(t *testing.T) {
	cell := NewCell()
	r := NewReplanner(cell, func(ctx context.Context, currentInputs flowmodel.PowerFlowInputs, forecastHandle forecast.Handle) (*Schedule, error) {
		return &Schedule{ID: "x"}, nil
	}, noInputs, nil)

	r.Trigger()
	r.Trigger() // should not block, second is coalesced away

	require.Len(t, r.trigger, 1)
}

type assertError struct{}

func (assertError) Error() string { return "replan failed" }
