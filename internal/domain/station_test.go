package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func newTestStation(t *testing.T, maxQueue int) *Station {
	t.Helper()
	s, err := NewStation("st-1", "Central", "CEN", StationTrain, Position{X: 1, Y: 2}, nil)
	require.NoError(t, err)
	s.MaxQueueLength = maxQueue
	return s
}

func TestNewStationDefaults(t *testing.T) {
	s, err := NewStation("st-1", "Central", "CEN", StationMultimodalHub, Position{}, nil)
	require.NoError(t, err)

	assert.Equal(t, StationActive, s.Status)
	assert.Equal(t, 100, s.Condition)
	assert.Equal(t, 0, s.CurrentQueueLength)
	assert.Equal(t, 100, s.MaxQueueLength)
	assert.Equal(t, 30, s.MaintenanceIntervalDays)
	assert.True(t, s.IsOperational())
	assert.False(t, s.IsMultimodal())

	_, err = NewStation("", "x", "x", StationBusStop, Position{}, nil)
	assert.True(t, errors.Is(err, ErrInvalidID))

	_, err = NewStation("st-2", "x", "x", StationType("airport"), Position{}, nil)
	assert.Error(t, err)
}

func TestStationQueueClamp(t *testing.T) {
	s := newTestStation(t, 30)

	assert.True(t, s.AddToQueue(25))
	assert.Equal(t, 25, s.CurrentQueueLength)

	assert.False(t, s.AddToQueue(10))
	assert.Equal(t, 25, s.CurrentQueueLength)

	assert.False(t, s.AddToQueue(-1))
	assert.Equal(t, 25, s.CurrentQueueLength)

	assert.Equal(t, 25, s.RemoveFromQueue(40))
	assert.Equal(t, 0, s.CurrentQueueLength)
	assert.Equal(t, 0, s.RemoveFromQueue(5))
}

func TestStationQueueStaysInBounds(t *testing.T) {
	s := newTestStation(t, 50)
	ops := []int{10, 30, 20, -15, 40, -100, 50, 1, -7, 7}
	for _, n := range ops {
		if n >= 0 {
			s.AddToQueue(n)
		} else {
			s.RemoveFromQueue(-n)
		}
		require.GreaterOrEqual(t, s.CurrentQueueLength, 0)
		require.LessOrEqual(t, s.CurrentQueueLength, s.MaxQueueLength)
	}
}

func TestStationBoardVehicle(t *testing.T) {
	s := newTestStation(t, 100)
	require.True(t, s.AddToQueue(50))

	boarded := s.BoardVehicle(40, t0)

	assert.Equal(t, 40, boarded)
	assert.Equal(t, 10, s.CurrentQueueLength)
	assert.Equal(t, 40, s.TotalPassengersServed)
	require.NotNil(t, s.LastServedAt)
	assert.True(t, s.LastServedAt.Equal(t0))

	assert.Equal(t, 10, s.BoardVehicle(40, t0.Add(time.Minute)))
	assert.Equal(t, 0, s.CurrentQueueLength)
	assert.Equal(t, 50, s.TotalPassengersServed)

	assert.Equal(t, 0, s.BoardVehicle(40, t0.Add(2*time.Minute)))
	assert.True(t, s.LastServedAt.Equal(t0.Add(time.Minute)))
}

func TestStationDailyStatistics(t *testing.T) {
	s := newTestStation(t, 100)

	s.AddToQueue(60)
	s.BoardVehicle(60, t0)
	assert.Equal(t, 60, s.DailyPeak)
	assert.Equal(t, 60, s.ServedToday)

	s.AddToQueue(20)
	s.BoardVehicle(20, t0.Add(24*time.Hour))
	assert.Equal(t, 1, s.DaysTracked)
	assert.InDelta(t, 60.0, s.DailyAverage, 1e-9)
	assert.Equal(t, 20, s.ServedToday)
	assert.Equal(t, 60, s.DailyPeak)

	s.AddToQueue(10)
	s.BoardVehicle(10, t0.Add(48*time.Hour))
	assert.Equal(t, 2, s.DaysTracked)
	assert.InDelta(t, 40.0, s.DailyAverage, 1e-9)
}

func TestStationOccupancyBands(t *testing.T) {
	tests := []struct {
		queue int
		want  QueueStatus
	}{
		{0, QueueEmpty},
		{1, QueueLow},
		{33, QueueLow},
		{34, QueueModerate},
		{66, QueueModerate},
		{67, QueueHigh},
		{89, QueueHigh},
		{90, QueueCritical},
		{100, QueueCritical},
	}
	for _, tt := range tests {
		s := newTestStation(t, 100)
		require.True(t, s.AddToQueue(tt.queue))
		assert.Equal(t, tt.want, s.QueueStatus(), "queue=%d", tt.queue)
		assert.InDelta(t, float64(tt.queue), s.OccupancyRate(), 1e-9)
	}

	s := newTestStation(t, 100)
	s.AddToQueue(100)
	assert.True(t, s.IsOvercrowded())
	s.RemoveFromQueue(1)
	assert.False(t, s.IsOvercrowded())
}

func TestStationDegradeToMaintenance(t *testing.T) {
	s := newTestStation(t, 100)

	s.DegradeCondition(85)

	assert.Equal(t, 15, s.Condition)
	assert.Equal(t, StationMaintenance, s.Status)
	assert.False(t, s.IsOperational())

	s.DegradeCondition(500)
	assert.Equal(t, 0, s.Condition)
}

func TestStationMaintenance(t *testing.T) {
	s := newTestStation(t, 100)
	s.DegradeCondition(85)
	require.True(t, s.NeedsMaintenance(t0))

	s.PerformMaintenance(NewMoney(1200, 0), t0)

	assert.Equal(t, 45, s.Condition)
	assert.Equal(t, StationActive, s.Status)
	assert.Equal(t, NewMoney(1200, 0), s.TotalMaintenanceCost)
	require.NotNil(t, s.NextMaintenanceAt)
	assert.True(t, s.NextMaintenanceAt.Equal(t0.AddDate(0, 0, 30)))
	assert.True(t, s.NeedsMaintenance(t0), "condition still below 50")

	s.PerformMaintenance(NewMoney(300, 0), t0)
	s.PerformMaintenance(NewMoney(300, 0), t0)
	assert.Equal(t, 100, s.Condition)
	assert.Equal(t, NewMoney(1800, 0), s.TotalMaintenanceCost)
	assert.False(t, s.NeedsMaintenance(t0.AddDate(0, 0, 29)))
	assert.True(t, s.NeedsMaintenance(t0.AddDate(0, 0, 30)))
}

func TestStationScores(t *testing.T) {
	s := newTestStation(t, 100)
	assert.Equal(t, 0, s.AccessibilityScore())
	assert.Equal(t, 0, s.ComfortScore())

	s.Features = NewFeatures(FeatureElevator, FeatureEscalator, FeatureRamp)
	assert.Equal(t, 40, s.AccessibilityScore())
	assert.Equal(t, 0, s.ComfortScore())

	s.Features = s.Features.With(FeatureShelter).With(FeatureSeating)
	assert.Equal(t, 35, s.ComfortScore())

	var all Features
	for f := range featureNames {
		all = all.With(f)
	}
	s.Features = all
	assert.Equal(t, 100, s.AccessibilityScore())
	assert.Equal(t, 100, s.ComfortScore())

	s.Features = all.Without(FeatureElevator)
	assert.Equal(t, 85, s.AccessibilityScore())
}

func TestStationPolicyWeightsSumTo100(t *testing.T) {
	p := DefaultStationPolicy()
	for name, table := range map[string]map[Feature]int{
		"accessibility": p.AccessibilityWeights,
		"comfort":       p.ComfortWeights,
	} {
		sum := 0
		for _, w := range table {
			sum += w
		}
		assert.Equal(t, 100, sum, name)
	}
}

func TestStationConnections(t *testing.T) {
	s := newTestStation(t, 100)

	require.NoError(t, s.AddConnection("st-9"))
	require.NoError(t, s.AddConnection("st-3"))
	require.NoError(t, s.AddConnection("st-9"))
	assert.True(t, s.IsMultimodal())
	assert.Equal(t, []string{"st-3", "st-9"}, s.Connections())
	assert.True(t, s.IsConnectedTo("st-3"))

	assert.ErrorIs(t, s.AddConnection(""), ErrInvalidID)
	assert.ErrorIs(t, s.AddConnection(s.ID), ErrInvalidID)

	assert.True(t, s.RemoveConnection("st-3"))
	assert.False(t, s.RemoveConnection("st-3"))
	assert.True(t, s.RemoveConnection("st-9"))
	assert.False(t, s.IsMultimodal())
}

func TestStationCloseAndOpen(t *testing.T) {
	s := newTestStation(t, 100)
	s.AddToQueue(10)

	assert.False(t, s.Open())
	assert.True(t, s.Close())
	assert.False(t, s.Close())
	assert.Equal(t, 0, s.CurrentQueueLength)
	assert.False(t, s.IsOperational())
	assert.True(t, s.Open())
	assert.Equal(t, StationActive, s.Status)
}

func TestParseFeature(t *testing.T) {
	f, err := ParseFeature(" Tactile_Paving ")
	require.NoError(t, err)
	assert.Equal(t, FeatureTactilePaving, f)
	assert.Equal(t, "tactile_paving", f.String())

	_, err = ParseFeature("helipad")
	assert.Error(t, err)
}

func TestStationCloneIsIndependent(t *testing.T) {
	s := newTestStation(t, 100)
	require.NoError(t, s.AddConnection("st-2"))
	s.BoardVehicle(0, t0)

	c := s.Clone()
	require.NoError(t, c.AddConnection("st-3"))
	c.AddToQueue(5)

	assert.Equal(t, []string{"st-2"}, s.ConnectionIDs)
	assert.Equal(t, 0, s.CurrentQueueLength)
}
