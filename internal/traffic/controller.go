// Package traffic cycles the intersection signals on one shared timer.
package traffic

import (
	"slices"
	"sync"
	"time"

	"github.com/chrisdamba/deliverysim/internal/models"
	"github.com/chrisdamba/deliverysim/internal/scheduler"
)

const (
	DefaultPeriod   = 5 * time.Second
	DetectionRadius = 2.0
)

// DefaultPositions are the signalled intersections of the default grid.
func DefaultPositions() []models.Point {
	return []models.Point{
		{X: 50, Y: 20},
		{X: 50, Y: 50},
		{X: 20, Y: 50},
		{X: 80, Y: 50},
	}
}

// Controller owns every signal. Tick is the only mutator, readers may run on any goroutine.
type Controller struct {
	mu        sync.RWMutex
	signals   []models.TrafficSignal
	observers []func([]models.TrafficSignal)
}

func NewController(positions []models.Point) *Controller {
	c := &Controller{signals: make([]models.TrafficSignal, len(positions))}
	for i, p := range positions {
		c.signals[i] = models.TrafficSignal{ID: i + 1, Position: p, State: models.SignalGreen}
	}
	return c
}

// Tick flips every signal at once and notifies observers with the new states.
func (c *Controller) Tick() {
	c.mu.Lock()
	for i := range c.signals {
		c.signals[i].State = c.signals[i].State.Toggle()
	}
	observers := slices.Clone(c.observers)
	snapshot := append([]models.TrafficSignal(nil), c.signals...)
	c.mu.Unlock()

	for _, fn := range observers {
		fn(snapshot)
	}
}

// StateNear returns the state of the first signal strictly within radius of p.
func (c *Controller) StateNear(p models.Point, radius float64) (models.SignalState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.signals {
		if models.Distance(s.Position, p) < radius {
			return s.State, true
		}
	}
	return "", false
}

func (c *Controller) Snapshot() []models.TrafficSignal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.TrafficSignal(nil), c.signals...)
}

// OnChange registers fn to run after every Tick.
func (c *Controller) OnChange(fn func([]models.TrafficSignal)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Start arms the shared cycle. Stop the returned timer to halt it.
func (c *Controller) Start(s scheduler.Scheduler, period time.Duration) scheduler.Timer {
	if period <= 0 {
		period = DefaultPeriod
	}
	return scheduler.Every(s, period, c.Tick)
}
