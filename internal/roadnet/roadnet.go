// Package roadnet holds the fixed, axis-aligned road graph the vehicle drives on.
package roadnet

import (
	"math"

	"github.com/chrisdamba/deliverysim/internal/models"
)

type Network struct {
	segments      []models.RoadSegment
	intersections []models.Point
	horizontalYs  []float64
	verticalXs    []float64
}

// New builds a network from undirected segments. Declaration order is kept and decides snap ties.
func New(segments []models.RoadSegment) *Network {
	n := &Network{segments: append([]models.RoadSegment(nil), segments...)}
	seen := make(map[string]bool)
	for _, s := range n.segments {
		for _, p := range []models.Point{s.Start, s.End} {
			if seen[p.Key()] {
				continue
			}
			seen[p.Key()] = true
			n.intersections = append(n.intersections, p)
		}
		switch {
		case s.Start.Y == s.End.Y:
			n.horizontalYs = appendUnique(n.horizontalYs, s.Start.Y)
		case s.Start.X == s.End.X:
			n.verticalXs = appendUnique(n.verticalXs, s.Start.X)
		}
	}
	return n
}

func appendUnique(vals []float64, v float64) []float64 {
	for _, x := range vals {
		if x == v {
			return vals
		}
	}
	return append(vals, v)
}

// Grid builds a lattice of horizontal roads at ys and vertical roads at xs, split at every
// crossing so that each crossing is an intersection.
func Grid(xs, ys []float64) *Network {
	var segments []models.RoadSegment
	for _, y := range ys {
		for i := 0; i+1 < len(xs); i++ {
			segments = append(segments, models.RoadSegment{
				Start: models.Point{X: xs[i], Y: y},
				End:   models.Point{X: xs[i+1], Y: y},
			})
		}
	}
	for _, x := range xs {
		for i := 0; i+1 < len(ys); i++ {
			segments = append(segments, models.RoadSegment{
				Start: models.Point{X: x, Y: ys[i]},
				End:   models.Point{X: x, Y: ys[i+1]},
			})
		}
	}
	return New(segments)
}

// Default is the three-by-three street grid around the depot at (20,20): roads at
// y = 20, 50, 80 and x = 20, 50, 80, each spanning 20 to 80.
func Default() *Network {
	lines := []float64{20, 50, 80}
	return Grid(lines, lines)
}

func (n *Network) Segments() []models.RoadSegment {
	return append([]models.RoadSegment(nil), n.segments...)
}

// Intersections returns every distinct segment endpoint in declaration order.
func (n *Network) Intersections() []models.Point {
	return append([]models.Point(nil), n.intersections...)
}

func (n *Network) IsIntersection(p models.Point) bool {
	for _, q := range n.intersections {
		if models.Near(p, q, models.Epsilon) {
			return true
		}
	}
	return false
}

// NeighborsOf returns the far endpoint of every segment that has an endpoint at p.
func (n *Network) NeighborsOf(p models.Point) []models.Point {
	var out []models.Point
	for _, s := range n.segments {
		if models.Near(s.Start, p, models.Epsilon) {
			out = append(out, s.End)
		}
		if models.Near(s.End, p, models.Epsilon) {
			out = append(out, s.Start)
		}
	}
	return out
}

// SnapToNetwork moves p onto the nearest horizontal road's y and nearest vertical road's x.
// A network missing one orientation leaves that coordinate untouched.
func (n *Network) SnapToNetwork(p models.Point) models.Point {
	return models.Point{
		X: nearest(n.verticalXs, p.X),
		Y: nearest(n.horizontalYs, p.Y),
	}
}

func nearest(vals []float64, v float64) float64 {
	if len(vals) == 0 {
		return v
	}
	best := vals[0]
	for _, x := range vals[1:] {
		if math.Abs(x-v) < math.Abs(best-v) {
			best = x
		}
	}
	return best
}
