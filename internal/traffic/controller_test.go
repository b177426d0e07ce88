package traffic

import (
	"sync"
	"testing"
	"time"

	"github.com/chrisdamba/deliverysim/internal/models"
	"github.com/chrisdamba/deliverysim/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewControllerStartsGreen(t *testing.T) {
	c := NewController(DefaultPositions())
	snap := c.Snapshot()
	require.Len(t, snap, 4)
	for i, s := range snap {
		assert.Equal(t, i+1, s.ID)
		assert.Equal(t, models.SignalGreen, s.State)
	}
}

func TestTickTogglesAllTogether(t *testing.T) {
	c := NewController(DefaultPositions())
	c.Tick()
	for _, s := range c.Snapshot() {
		assert.Equal(t, models.SignalRed, s.State)
	}
	c.Tick()
	for _, s := range c.Snapshot() {
		assert.Equal(t, models.SignalGreen, s.State)
	}
}

func TestStateNear(t *testing.T) {
	c := NewController(DefaultPositions())

	state, ok := c.StateNear(models.Point{X: 50.5, Y: 20}, DetectionRadius)
	require.True(t, ok)
	assert.Equal(t, models.SignalGreen, state)

	_, ok = c.StateNear(models.Point{X: 52, Y: 20}, DetectionRadius)
	assert.False(t, ok, "radius is exclusive")

	_, ok = c.StateNear(models.Point{X: 20, Y: 20}, DetectionRadius)
	assert.False(t, ok)

	c.Tick()
	state, ok = c.StateNear(models.Point{X: 80, Y: 50}, DetectionRadius)
	require.True(t, ok)
	assert.Equal(t, models.SignalRed, state)
}

func TestSnapshotIsACopy(t *testing.T) {
	c := NewController(DefaultPositions())
	snap := c.Snapshot()
	snap[0].State = models.SignalRed
	assert.Equal(t, models.SignalGreen, c.Snapshot()[0].State)
}

func TestStartCyclesOnSchedule(t *testing.T) {
	v := scheduler.NewVirtual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	c := NewController(DefaultPositions())

	var changes [][]models.TrafficSignal
	c.OnChange(func(s []models.TrafficSignal) { changes = append(changes, s) })

	timer := c.Start(v, DefaultPeriod)
	v.Advance(4999 * time.Millisecond)
	assert.Empty(t, changes)

	v.Advance(time.Millisecond)
	require.Len(t, changes, 1)
	assert.Equal(t, models.SignalRed, changes[0][0].State)

	v.Advance(10 * time.Second)
	require.Len(t, changes, 3)
	assert.Equal(t, models.SignalRed, changes[2][3].State)

	timer.Stop()
	v.Advance(time.Minute)
	assert.Len(t, changes, 3)
}

func TestConcurrentReaders(t *testing.T) {
	c := NewController(DefaultPositions())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c.StateNear(models.Point{X: 50, Y: 50}, DetectionRadius)
				c.Snapshot()
			}
		}()
	}
	for j := 0; j < 200; j++ {
		c.Tick()
	}
	wg.Wait()
}

func TestObserverAddedDuringTickWaitsForNextTick(t *testing.T) {
	c := NewController(DefaultPositions())
	registered := false
	late := 0
	c.OnChange(func([]models.TrafficSignal) {
		if !registered {
			registered = true
			c.OnChange(func([]models.TrafficSignal) { late++ })
		}
	})

	c.Tick()
	assert.Zero(t, late)
	c.Tick()
	assert.Equal(t, 1, late)
}
