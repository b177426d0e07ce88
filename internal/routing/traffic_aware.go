package routing

import (
	"math"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/chrisdamba/deliverysim/internal/models"
	"github.com/chrisdamba/deliverysim/internal/roadnet"
	"github.com/chrisdamba/deliverysim/internal/traffic"
)

// TrafficAware finds the cheapest route over the road network where arriving at a red signal
// costs Penalty extra. Signal states are read once per Plan call.
type TrafficAware struct {
	Network *roadnet.Network
	Signals SignalReader
	Penalty float64
	Radius  float64
}

func NewTrafficAware(network *roadnet.Network, signals SignalReader) *TrafficAware {
	return &TrafficAware{
		Network: network,
		Signals: signals,
		Penalty: DefaultPenalty,
		Radius:  traffic.DetectionRadius,
	}
}

// Plan falls back to the straight line [origin, destination] when either end is off the
// network or no route connects them.
func (t *TrafficAware) Plan(origin, destination models.Point) []models.Point {
	if models.Distance(origin, destination) < models.Epsilon {
		return []models.Point{origin}
	}
	fallback := []models.Point{origin, destination}

	var signals []models.TrafficSignal
	if t.Signals != nil {
		signals = t.Signals.Snapshot()
	}
	g, nodes := t.buildGraph(signals)

	from, ok := lookup(nodes, origin)
	if !ok {
		return fallback
	}
	to, ok := lookup(nodes, destination)
	if !ok {
		return fallback
	}

	shortest := path.DijkstraAllFrom(g.Node(from), g)
	routes, weight := shortest.AllTo(to)
	if len(routes) == 0 || math.IsInf(weight, 1) {
		return fallback
	}

	best := routes[0]
	for _, r := range routes[1:] {
		if lessByID(r, best) {
			best = r
		}
	}

	out := make([]models.Point, len(best))
	for i, n := range best {
		out[i] = nodes[n.ID()]
	}
	out[0] = origin
	out[len(out)-1] = destination
	return out
}

// buildGraph assigns node ids in intersection declaration order so equal-cost routes break
// ties the same way on every run.
func (t *TrafficAware) buildGraph(signals []models.TrafficSignal) (*simple.WeightedDirectedGraph, []models.Point) {
	g := simple.NewWeightedDirectedGraph(0, math.Inf(1))
	nodes := t.Network.Intersections()
	ids := make(map[string]int64, len(nodes))
	for i, p := range nodes {
		ids[p.Key()] = int64(i)
		g.AddNode(simple.Node(i))
	}

	weight := func(u, v models.Point) float64 {
		w := models.Distance(u, v)
		if redNear(signals, v, t.Radius) {
			w += t.Penalty
		}
		return w
	}
	for _, s := range t.Network.Segments() {
		a, b := ids[s.Start.Key()], ids[s.End.Key()]
		if a == b {
			continue
		}
		g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(a), T: simple.Node(b), W: weight(s.Start, s.End)})
		g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(b), T: simple.Node(a), W: weight(s.End, s.Start)})
	}
	return g, nodes
}

// lookup finds the intersection strictly within Epsilon of p, measured as a straight line.
func lookup(nodes []models.Point, p models.Point) (int64, bool) {
	for i, n := range nodes {
		if models.Distance(n, p) < models.Epsilon {
			return int64(i), true
		}
	}
	return 0, false
}

func lessByID(a, b []graph.Node) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i].ID() != b[i].ID() {
			return a[i].ID() < b[i].ID()
		}
	}
	return len(a) < len(b)
}
