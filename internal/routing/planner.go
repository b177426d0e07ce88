// Package routing plans the vehicle's path from the depot to a delivery point.
package routing

import (
	"github.com/chrisdamba/deliverysim/internal/models"
)

const DefaultPenalty = 20.0

// Planner returns an ordered list of waypoints from origin to destination. The first point is
// always origin. A single-point path means the vehicle is already there.
type Planner interface {
	Plan(origin, destination models.Point) []models.Point
}

// SignalReader exposes the current signal states.
type SignalReader interface {
	Snapshot() []models.TrafficSignal
}

// AxisAligned moves along x first and then along y, ignoring roads and signals.
type AxisAligned struct{}

func (AxisAligned) Plan(origin, destination models.Point) []models.Point {
	if models.Near(origin, destination, models.Epsilon) {
		return []models.Point{origin}
	}
	path := []models.Point{origin}
	corner := models.Point{X: destination.X, Y: origin.Y}
	if !models.Near(corner, origin, models.Epsilon) && !models.Near(corner, destination, models.Epsilon) {
		path = append(path, corner)
	}
	return append(path, destination)
}

// redNear reports whether the first signal within radius of p is red.
func redNear(signals []models.TrafficSignal, p models.Point, radius float64) bool {
	for _, s := range signals {
		if models.Distance(s.Position, p) < radius {
			return s.State == models.SignalRed
		}
	}
	return false
}

// PathCost is the travel distance of path plus penalty for every waypoint after the first that
// sits at a red signal.
func PathCost(path []models.Point, signals []models.TrafficSignal, penalty, radius float64) float64 {
	var cost float64
	for i := 1; i < len(path); i++ {
		cost += models.Distance(path[i-1], path[i])
		if redNear(signals, path[i], radius) {
			cost += penalty
		}
	}
	return cost
}
