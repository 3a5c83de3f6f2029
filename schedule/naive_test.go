package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cepro/besscontroller/flowmodel"
)

func TestNaiveReplanner_ProducesIdleIntervalCoveringHorizon(t *testing.T) {
	n := NewNaiveReplanner(24 * time.Hour)

	sched, err := n.Replan(context.Background(), flowmodel.PowerFlowInputs{}, nil)
	require.NoError(t, err)

	require.Len(t, sched.Intervals, 1)
	assert.Equal(t, 0.0, sched.Intervals[0].SetpointKW)
	assert.WithinDuration(t, sched.Intervals[0].Start.Add(24*time.Hour), sched.Intervals[0].End, time.Second)
}

func TestNaiveReplanner_IDIsStable(t *testing.T) {
	n := NewNaiveReplanner(time.Hour)
	sched, err := n.Replan(context.Background(), flowmodel.PowerFlowInputs{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "naive-idle", sched.ID)
}
