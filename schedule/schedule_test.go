package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSchedule_PowerAt_WithinInterval(t *testing.T) {
	now := time.Now()
	s := &Schedule{
		ID: "s1",
		Intervals: []Interval{
			{Start: now, End: now.Add(time.Hour), SetpointKW: 2.5},
		},
	}

	kw, ok := s.PowerAt(now.Add(time.Minute))
	assert.True(t, ok)
	assert.Equal(t, 2.5, kw)
}

func TestSchedule_PowerAt_BeyondCoverageReturnsFalse(t *testing.T) {
	now := time.Now()
	s := &Schedule{
		Intervals: []Interval{
			{Start: now, End: now.Add(time.Hour), SetpointKW: 2.5},
		},
	}

	kw, ok := s.PowerAt(now.Add(2 * time.Hour))
	assert.False(t, ok)
	assert.Equal(t, 0.0, kw)
}

func TestSchedule_PowerAt_NilScheduleIsIdle(t *testing.T) {
	var s *Schedule

	kw, ok := s.PowerAt(time.Now())
	assert.False(t, ok)
	assert.Equal(t, 0.0, kw)
}

func TestIdle_IsEmptyAndNamed(t *testing.T) {
	s := Idle()
	assert.Equal(t, "idle", s.ID)
	assert.Empty(t, s.Intervals)
}
